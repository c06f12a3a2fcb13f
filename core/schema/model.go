package schema

import (
	"fmt"

	"github.com/artpar/modelwire/core/route"
	"gopkg.in/yaml.v3"
)

// DefaultConnection is the connection used when a model names none.
const DefaultConnection = "default"

// DefaultPrimaryKey is the attribute added when no primary key is declared.
const DefaultPrimaryKey = "id"

// Definition is implemented by anything that can be registered as a model.
type Definition interface {
	ModelDefinition() Model
}

// Model is the root definition of a data collection.
type Model struct {
	// Identity is the unique collection name.
	Identity string `yaml:"identity" json:"identity"`

	// Connection names the data-layer connection holding the collection.
	Connection string `yaml:"connection,omitempty" json:"connection,omitempty"`

	// PrimaryKey names the primary key attribute. Derived when empty.
	PrimaryKey string `yaml:"primary_key,omitempty" json:"primaryKey,omitempty"`

	Attributes map[string]Attribute `yaml:"attributes" json:"attributes"`

	AutoCreatedAt bool `yaml:"auto_created_at,omitempty" json:"autoCreatedAt,omitempty"`
	AutoUpdatedAt bool `yaml:"auto_updated_at,omitempty" json:"autoUpdatedAt,omitempty"`

	// Includes restricts the synthesized routes; nil keeps every route.
	Includes []route.Pattern `yaml:"includes,omitempty" json:"-"`

	// Excludes removes synthesized routes; it wins over Includes.
	Excludes []route.Pattern `yaml:"excludes,omitempty" json:"-"`

	// CustomRoutes overlays the default route table.
	CustomRoutes CustomRoutes `yaml:"custom_routes,omitempty" json:"-"`

	// Source is the file the model was parsed from, if any.
	Source string `yaml:"-" json:"-"`
}

// ModelDefinition implements Definition.
func (m Model) ModelDefinition() Model {
	return m
}

// Normalize fills in the connection and primary key. It returns a copy and
// never mutates the attribute map of m.
func (m Model) Normalize() Model {
	out := m
	if out.Connection == "" {
		out.Connection = DefaultConnection
	}

	attrs := make(map[string]Attribute, len(m.Attributes)+1)
	for name, attr := range m.Attributes {
		attrs[name] = attr
	}

	if out.PrimaryKey != "" {
		if attr, ok := attrs[out.PrimaryKey]; ok {
			attr.PrimaryKey = true
			attrs[out.PrimaryKey] = attr
		}
	} else {
		for _, name := range sortedNames(attrs) {
			if attrs[name].PrimaryKey {
				out.PrimaryKey = name
				break
			}
		}
	}

	if out.PrimaryKey == "" {
		out.PrimaryKey = DefaultPrimaryKey
		attrs[DefaultPrimaryKey] = Attribute{
			Type:          TypeInteger,
			AutoIncrement: true,
			PrimaryKey:    true,
			Unique:        true,
		}
	}

	if _, ok := attrs[out.PrimaryKey]; !ok {
		attrs[out.PrimaryKey] = Attribute{Type: TypeInteger, AutoIncrement: true, PrimaryKey: true, Unique: true}
	}

	out.Attributes = attrs
	return out
}

// Key returns the primary key attribute.
func (m Model) Key() Attribute {
	return m.Attributes[m.PrimaryKey]
}

// AttributeNames returns the attribute names sorted, primary key first.
func (m Model) AttributeNames() []string {
	names := sortedNames(m.Attributes)
	if m.PrimaryKey == "" {
		return names
	}
	out := make([]string, 0, len(names))
	out = append(out, m.PrimaryKey)
	for _, n := range names {
		if n != m.PrimaryKey {
			out = append(out, n)
		}
	}
	return out
}

// Schema returns the attribute map exposed by the info route.
func (m Model) Schema() map[string]Attribute {
	out := make(map[string]Attribute, len(m.Attributes))
	for name, attr := range m.Attributes {
		out[name] = attr
	}
	if m.AutoCreatedAt {
		out["createdAt"] = Attribute{Type: TypeDatetime}
	}
	if m.AutoUpdatedAt {
		out["updatedAt"] = Attribute{Type: TypeDatetime}
	}
	return out
}

// CustomRoute is a route key bound either to a named handler or to a static
// response.
type CustomRoute struct {
	Key     string
	Handler string
	Status  int
	Body    any
}

// IsStatic reports whether the route writes a fixed response.
func (c CustomRoute) IsStatic() bool {
	return c.Handler == ""
}

// CustomRoutes is an ordered list of custom routes, decoded from a mapping.
type CustomRoutes []CustomRoute

// Keys returns the route keys in definition order.
func (c CustomRoutes) Keys() []string {
	keys := make([]string, len(c))
	for i, r := range c {
		keys[i] = r.Key
	}
	return keys
}

// UnmarshalYAML decodes a mapping of route key to handler name or static
// response, keeping definition order.
func (c *CustomRoutes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: custom_routes must be a mapping", node.Line)
	}

	routes := make(CustomRoutes, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		r := CustomRoute{Key: key.Value}

		switch value.Kind {
		case yaml.ScalarNode:
			r.Handler = value.Value
		case yaml.MappingNode:
			var spec struct {
				Handler string    `yaml:"handler"`
				Status  int       `yaml:"status"`
				Body    yaml.Node `yaml:"body"`
			}
			if err := value.Decode(&spec); err != nil {
				return fmt.Errorf("custom route %q: %w", key.Value, err)
			}
			r.Handler = spec.Handler
			r.Status = spec.Status
			if !spec.Body.IsZero() {
				if err := spec.Body.Decode(&r.Body); err != nil {
					return fmt.Errorf("custom route %q body: %w", key.Value, err)
				}
			}
		default:
			return fmt.Errorf("line %d: custom route %q must be a handler name or response", value.Line, key.Value)
		}

		routes = append(routes, r)
	}

	*c = routes
	return nil
}
