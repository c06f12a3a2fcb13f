// Package datalayer registers model definitions, opens the configured
// adapters and exposes each model as a live Collection.
package datalayer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/modelwire/adapters/clock"
	"github.com/artpar/modelwire/adapters/hasher"
	"github.com/artpar/modelwire/adapters/idgen"
	"github.com/artpar/modelwire/adapters/memory"
	"github.com/artpar/modelwire/config"
	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/schema"
	"github.com/artpar/modelwire/ports"
	"github.com/rs/zerolog"
)

// Factory opens an adapter for a configured connection.
type Factory func(ctx context.Context, conn config.Connection) (ports.Adapter, error)

// MemoryFactory opens a fresh in-memory adapter.
func MemoryFactory(ctx context.Context, conn config.Connection) (ports.Adapter, error) {
	return memory.New(), nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithAdapter registers a factory for the named adapter kind.
func WithAdapter(name string, f Factory) Option {
	return func(r *Registry) { r.factories[name] = f }
}

// WithHasher sets the hasher used for secret attributes.
func WithHasher(h ports.Hasher) Option {
	return func(r *Registry) { r.hasher = h }
}

// WithClock sets the clock used for automatic timestamps.
func WithClock(c ports.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithIDGenerator sets the generator for uuid and string primary keys.
func WithIDGenerator(g ports.IDGenerator) Option {
	return func(r *Registry) { r.ids = g }
}

// Registry collects model definitions and turns them into collections.
type Registry struct {
	logger zerolog.Logger

	hasher ports.Hasher
	clock  ports.Clock
	ids    ports.IDGenerator

	mu          sync.Mutex
	order       []string
	models      map[string]schema.Model
	factories   map[string]Factory
	adapters    map[string]ports.Adapter // by connection signature
	collections *Collections
}

// NewRegistry creates a registry. The "memory" adapter kind is always
// available.
func NewRegistry(logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:      logger,
		hasher:      hasher.NewBcrypt(0),
		clock:       clock.Real{},
		ids:         idgen.UUID{},
		models:      make(map[string]schema.Model),
		factories:   map[string]Factory{"memory": MemoryFactory},
		adapters:    make(map[string]ports.Adapter),
		collections: newCollections(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadCollection registers a definition. A later definition with the same
// identity replaces the earlier one and keeps its position.
func (r *Registry) LoadCollection(def schema.Definition) {
	m := def.ModelDefinition().Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[m.Identity]; !ok {
		r.order = append(r.order, m.Identity)
	}
	r.models[m.Identity] = m
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []schema.Model {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]schema.Model, len(r.order))
	for i, name := range r.order {
		out[i] = r.models[name]
	}
	return out
}

// Initialize opens the configured connections, defines every registered
// model on its connection and replaces the collection set. Adapters are
// reused across calls for identical connections.
func (r *Registry) Initialize(ctx context.Context, cfg config.DataLayerConfig) (*Collections, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make(map[string]config.Connection, len(cfg.Connections)+1)
	for name, c := range cfg.Connections {
		conns[name] = c
	}
	if _, ok := conns[schema.DefaultConnection]; !ok && cfg.MemoryFallbackEnabled() {
		conns[schema.DefaultConnection] = config.Connection{Adapter: "memory"}
	}

	collections := newCollections()
	for _, name := range r.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m := r.models[name]
		conn, ok := conns[m.Connection]
		if !ok {
			return nil, apperr.Newf(apperr.KindDataLayer, "Unknown connection '%s' for model '%s'", m.Connection, m.Identity)
		}

		adapter, err := r.open(ctx, m.Connection, conn)
		if err != nil {
			return nil, err
		}
		if err := adapter.Define(ctx, m); err != nil {
			return nil, apperr.Wrap(apperr.KindDataLayer, err, fmt.Sprintf("Unable to define model '%s': %v", m.Identity, err))
		}

		collections.add(&Collection{
			model:   m,
			adapter: adapter,
			hasher:  r.hasher,
			clock:   r.clock,
			ids:     r.ids,
		})
	}

	r.collections = collections
	r.logger.Debug().
		Strs("collections", collections.Names()).
		Int("connections", len(r.adapters)).
		Msg("data layer initialized")
	return collections, nil
}

// open returns the adapter for a connection, opening it on first use.
func (r *Registry) open(ctx context.Context, name string, conn config.Connection) (ports.Adapter, error) {
	key := name + "\x00" + conn.Adapter + "\x00" + conn.DSN
	if a, ok := r.adapters[key]; ok {
		return a, nil
	}

	kind := conn.Adapter
	if kind == "" {
		kind = "memory"
	}
	factory, ok := r.factories[kind]
	if !ok {
		return nil, apperr.Newf(apperr.KindDataLayer, "Unknown adapter '%s' for connection '%s'", kind, name)
	}

	a, err := factory(ctx, conn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDataLayer, err, fmt.Sprintf("Unable to open connection '%s': %v", name, err))
	}
	r.adapters[key] = a
	return a, nil
}

// Collections returns the collection set of the last Initialize.
func (r *Registry) Collections() *Collections {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collections
}

// Close closes every adapter opened by the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if err := r.adapters[k].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.adapters = make(map[string]ports.Adapter)
	return errors.Join(errs...)
}

// Collections is an insertion-ordered set of collections keyed by name.
type Collections struct {
	order  []string
	byName map[string]*Collection
}

func newCollections() *Collections {
	return &Collections{byName: make(map[string]*Collection)}
}

func (c *Collections) add(col *Collection) {
	if _, ok := c.byName[col.Name()]; !ok {
		c.order = append(c.order, col.Name())
	}
	c.byName[col.Name()] = col
}

// Get returns the named collection.
func (c *Collections) Get(name string) (*Collection, bool) {
	if c == nil {
		return nil, false
	}
	col, ok := c.byName[name]
	return col, ok
}

// Names returns the collection names in registration order.
func (c *Collections) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// All returns the collections in registration order.
func (c *Collections) All() []*Collection {
	if c == nil {
		return nil
	}
	out := make([]*Collection, len(c.order))
	for i, name := range c.order {
		out[i] = c.byName[name]
	}
	return out
}

// Len returns the number of collections.
func (c *Collections) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
