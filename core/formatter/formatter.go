// Package formatter renders tabular command output as table, json or yaml.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Formatter writes a list of records in one output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// FormatList writes records, restricted to columns in the given order.
	FormatList(w io.Writer, columns []string, records []map[string]any, opts FormatOptions) error
}

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// NoHeader disables the header row for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (json only).
	Compact bool
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a registry holding the table, json and yaml
// formatters, with table as the default.
func NewRegistry() *Registry {
	r := &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
	for _, f := range []Formatter{Table{}, JSON{}, YAML{}} {
		r.formatters[f.Name()] = f
	}
	return r
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}
	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name. An empty name selects the default.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultFmt
	}
	f, ok := r.formatters[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", name, r.names())
	}
	return f, nil
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// project restricts each record to columns, keeping nil for absent fields.
func project(columns []string, records []map[string]any) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		row := make(map[string]any, len(columns))
		for _, col := range columns {
			row[col] = rec[col]
		}
		out[i] = row
	}
	return out
}
