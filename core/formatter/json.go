package formatter

import (
	"encoding/json"
	"io"
)

// JSON formats output as {"count": n, "data": [...]}.
type JSON struct{}

// Name returns the formatter name.
func (JSON) Name() string { return "json" }

// FormatList writes the projected records as a JSON document.
func (JSON) FormatList(w io.Writer, columns []string, records []map[string]any, opts FormatOptions) error {
	enc := json.NewEncoder(w)
	if !opts.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(map[string]any{
		"count": len(records),
		"data":  project(columns, records),
	})
}
