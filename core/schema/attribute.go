package schema

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Attribute defines a single field of a model.
type Attribute struct {
	// Type is the attribute type. See the Type constants.
	Type AttributeType `yaml:"type" json:"type"`

	PrimaryKey    bool `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	AutoIncrement bool `yaml:"autoIncrement,omitempty" json:"autoIncrement,omitempty"`
	Unique        bool `yaml:"unique,omitempty" json:"unique,omitempty"`

	// Required attributes must be present on create.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// DefaultsTo is applied on create when the attribute is absent.
	DefaultsTo any `yaml:"defaultsTo,omitempty" json:"defaultsTo,omitempty"`

	// Enum lists the allowed values for string attributes.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`
}

// AttributeType is the type of an attribute.
type AttributeType string

const (
	TypeString   AttributeType = "string"
	TypeText     AttributeType = "text"
	TypeInteger  AttributeType = "integer"
	TypeFloat    AttributeType = "float"
	TypeBoolean  AttributeType = "boolean"
	TypeDate     AttributeType = "date"
	TypeDatetime AttributeType = "datetime"
	TypeJSON     AttributeType = "json"
	TypeArray    AttributeType = "array"

	// Semantic types (string with validation)
	TypeEmail AttributeType = "email"
	TypeUUID  AttributeType = "uuid"

	// Hashed, never returned
	TypeSecret AttributeType = "secret"
)

// UnmarshalYAML accepts the shorthand "name: string" as well as a mapping.
func (a *Attribute) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = Attribute{Type: AttributeType(node.Value)}
		return nil
	}

	type plain Attribute
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = Attribute(p)
	return nil
}

// IsInternal reports whether the attribute is hidden from responses.
func (a Attribute) IsInternal() bool {
	return a.Type == TypeSecret
}

// IsNumeric reports whether values are stored as numbers.
func (a Attribute) IsNumeric() bool {
	return a.Type == TypeInteger || a.Type == TypeFloat
}

// SQLType returns the SQLite column type for this attribute.
func (a Attribute) SQLType() string {
	switch a.Type {
	case TypeInteger, TypeBoolean:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	default:
		return "TEXT" // json and array are stored encoded
	}
}

// validateAttribute validates a single attribute definition.
func validateAttribute(name string, attr Attribute) error {
	if !isValidType(attr.Type) {
		return fmt.Errorf("attribute %q: unknown type %q", name, attr.Type)
	}

	if attr.AutoIncrement && attr.Type != TypeInteger {
		return fmt.Errorf("attribute %q: autoIncrement requires type integer", name)
	}

	if len(attr.Enum) > 0 && attr.Type != TypeString {
		return fmt.Errorf("attribute %q: enum requires type string", name)
	}

	if attr.DefaultsTo != nil {
		if err := validateDefault(name, attr); err != nil {
			return err
		}
	}

	return nil
}

// validateDefault checks that a default value matches the attribute type.
func validateDefault(name string, attr Attribute) error {
	switch attr.Type {
	case TypeInteger:
		switch attr.DefaultsTo.(type) {
		case int, int64, float64:
			return nil
		default:
			return fmt.Errorf("attribute %q: defaultsTo must be an integer", name)
		}
	case TypeFloat:
		switch attr.DefaultsTo.(type) {
		case int, int64, float64:
			return nil
		default:
			return fmt.Errorf("attribute %q: defaultsTo must be a number", name)
		}
	case TypeBoolean:
		if _, ok := attr.DefaultsTo.(bool); !ok {
			return fmt.Errorf("attribute %q: defaultsTo must be a boolean", name)
		}
	case TypeString:
		s, ok := attr.DefaultsTo.(string)
		if !ok {
			return fmt.Errorf("attribute %q: defaultsTo must be a string", name)
		}
		if len(attr.Enum) > 0 && !contains(attr.Enum, s) {
			return fmt.Errorf("attribute %q: defaultsTo %q is not a valid enum value", name, s)
		}
	}
	return nil
}

func isValidType(t AttributeType) bool {
	switch t {
	case TypeString, TypeText, TypeInteger, TypeFloat, TypeBoolean,
		TypeDate, TypeDatetime, TypeJSON, TypeArray,
		TypeEmail, TypeUUID, TypeSecret:
		return true
	default:
		return false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedNames(attrs map[string]Attribute) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
