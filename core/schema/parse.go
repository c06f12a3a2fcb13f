package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotModel is returned for documents that are not model definitions.
var ErrNotModel = errors.New("not a model definition")

// Extensions lists the file extensions recognized as definition files.
var Extensions = []string{".yaml", ".yml", ".json"}

// IsDefinitionFile reports whether name has a recognized extension.
func IsDefinitionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseFile parses a model definition from a YAML or JSON file.
func ParseFile(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read file %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return Model{}, err
	}
	m.Source = path
	return m, nil
}

// Parse parses a model definition from YAML (or JSON) bytes and normalizes it.
func Parse(data []byte) (Model, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Model{}, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return Model{}, ErrNotModel
	}
	if !hasKey(doc.Content[0], "identity") {
		return Model{}, ErrNotModel
	}

	var m Model
	if err := doc.Decode(&m); err != nil {
		return Model{}, fmt.Errorf("decode model: %w", err)
	}

	if err := Validate(m); err != nil {
		return Model{}, fmt.Errorf("validate model %q: %w", m.Identity, err)
	}

	return m.Normalize(), nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Validate validates a model definition.
func Validate(m Model) error {
	var errs []string

	if m.Identity == "" {
		errs = append(errs, "identity is required")
	} else if !isValidIdentifier(m.Identity) {
		errs = append(errs, fmt.Sprintf("identity %q is not a valid identifier", m.Identity))
	}

	if m.Connection != "" && !isValidIdentifier(m.Connection) {
		errs = append(errs, fmt.Sprintf("connection %q is not a valid identifier", m.Connection))
	}

	var keys []string
	for _, name := range sortedNames(m.Attributes) {
		attr := m.Attributes[name]
		if !isValidIdentifier(name) {
			errs = append(errs, fmt.Sprintf("attribute name %q is not a valid identifier", name))
		}
		if err := validateAttribute(name, attr); err != nil {
			errs = append(errs, err.Error())
		}
		if attr.PrimaryKey {
			keys = append(keys, name)
		}
	}

	if len(keys) > 1 {
		errs = append(errs, fmt.Sprintf("multiple primary keys: %s", strings.Join(keys, ", ")))
	}
	if m.PrimaryKey != "" {
		if len(keys) == 1 && keys[0] != m.PrimaryKey {
			errs = append(errs, fmt.Sprintf("primary_key %q conflicts with attribute %q", m.PrimaryKey, keys[0]))
		}
		if _, ok := m.Attributes[m.PrimaryKey]; !ok && m.PrimaryKey != DefaultPrimaryKey {
			errs = append(errs, fmt.Sprintf("primary_key %q is not an attribute", m.PrimaryKey))
		}
	}

	for _, r := range m.CustomRoutes {
		if r.IsStatic() && r.Status != 0 && (r.Status < 100 || r.Status > 599) {
			errs = append(errs, fmt.Sprintf("custom route %q: invalid status %d", r.Key, r.Status))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
