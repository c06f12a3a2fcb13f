package formatter

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAML formats output as a YAML document with count and data keys.
type YAML struct{}

// Name returns the formatter name.
func (YAML) Name() string { return "yaml" }

// FormatList writes the projected records as a YAML document.
func (YAML) FormatList(w io.Writer, columns []string, records []map[string]any, opts FormatOptions) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{
		"count": len(records),
		"data":  project(columns, records),
	}); err != nil {
		return err
	}
	return enc.Close()
}
