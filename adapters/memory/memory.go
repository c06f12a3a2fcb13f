// Package memory provides an in-memory implementation of ports.Adapter.
// Records live only for the lifetime of the process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/modelwire/adapters/idgen"
	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/schema"
	"github.com/artpar/modelwire/ports"
)

// ErrUnknownCollection is returned for collections that were never defined.
var ErrUnknownCollection = errors.New("unknown collection")

// ErrDuplicate is returned when a unique attribute would be repeated.
var ErrDuplicate = errors.New("already exists")

type collection struct {
	model   schema.Model
	records []query.Record
}

// Adapter is an in-memory implementation of ports.Adapter.
type Adapter struct {
	mu          sync.RWMutex
	collections map[string]*collection
	seq         *idgen.Counter
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{
		collections: make(map[string]*collection),
		seq:         idgen.NewCounter(),
	}
}

// Define registers the model. Records already stored are kept.
func (a *Adapter) Define(ctx context.Context, model schema.Model) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.collections[model.Identity]; ok {
		c.model = model
		return nil
	}
	a.collections[model.Identity] = &collection{model: model}
	return nil
}

// Find returns copies of the records matching q.
func (a *Adapter) Find(ctx context.Context, name string, q query.Query) ([]query.Record, error) {
	keys, err := query.ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	c, err := a.get(name)
	if err != nil {
		return nil, err
	}

	matched := c.match(q.Where)
	query.SortRecords(matched, keys)
	matched = query.Window(matched, q.Skip, q.Limit)

	out := make([]query.Record, len(matched))
	for i, rec := range matched {
		out[i] = copyRecord(query.Project(rec, q.Select))
	}
	return out, nil
}

// Create stores values, assigning the next autoIncrement key when absent.
func (a *Adapter) Create(ctx context.Context, name string, values query.Record) (query.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, err := a.get(name)
	if err != nil {
		return nil, err
	}

	rec := copyRecord(values)
	pk := c.model.PrimaryKey
	key := c.model.Key()

	if rec[pk] == nil {
		if !key.AutoIncrement {
			return nil, fmt.Errorf("create %s: missing primary key %q", name, pk)
		}
		rec[pk] = a.seq.Next(name)
	} else if key.AutoIncrement {
		if n, ok := toInt64(rec[pk]); ok {
			rec[pk] = n
			a.seq.Observe(name, n)
		}
	}

	if err := c.checkUnique(rec, -1); err != nil {
		return nil, err
	}

	c.records = append(c.records, rec)
	return copyRecord(rec), nil
}

// Update merges values into every matching record.
func (a *Adapter) Update(ctx context.Context, name string, where any, values query.Record) ([]query.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, err := a.get(name)
	if err != nil {
		return nil, err
	}

	var updated []query.Record
	for i, rec := range c.records {
		if !query.Matches(rec, where, c.model.PrimaryKey) {
			continue
		}
		next := copyRecord(rec)
		for k, v := range values {
			next[k] = v
		}
		if err := c.checkUnique(next, i); err != nil {
			return nil, err
		}
		c.records[i] = next
		updated = append(updated, copyRecord(next))
	}
	return updated, nil
}

// Destroy removes every matching record.
func (a *Adapter) Destroy(ctx context.Context, name string, where any) ([]query.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, err := a.get(name)
	if err != nil {
		return nil, err
	}

	var removed []query.Record
	kept := c.records[:0]
	for _, rec := range c.records {
		if query.Matches(rec, where, c.model.PrimaryKey) {
			removed = append(removed, rec)
			continue
		}
		kept = append(kept, rec)
	}
	c.records = kept
	return removed, nil
}

// Count returns the number of matching records.
func (a *Adapter) Count(ctx context.Context, name string, where any) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, err := a.get(name)
	if err != nil {
		return 0, err
	}
	return len(c.match(where)), nil
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}

// Ensure interface compliance.
var _ ports.Adapter = (*Adapter)(nil)

func (a *Adapter) get(name string) (*collection, error) {
	c, ok := a.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

func (c *collection) match(where any) []query.Record {
	out := make([]query.Record, 0, len(c.records))
	for _, rec := range c.records {
		if query.Matches(rec, where, c.model.PrimaryKey) {
			out = append(out, rec)
		}
	}
	return out
}

// checkUnique rejects rec if a unique attribute repeats the value of another
// record. skip is the index of the record being replaced, or -1.
func (c *collection) checkUnique(rec query.Record, skip int) error {
	for name, attr := range c.model.Attributes {
		if !attr.Unique && !attr.PrimaryKey {
			continue
		}
		v := rec[name]
		if v == nil {
			continue
		}
		for i, other := range c.records {
			if i != skip && query.Equal(other[name], v) {
				return fmt.Errorf("%w: a record with that '%s' already exists", ErrDuplicate, name)
			}
		}
	}
	return nil
}

func copyRecord(rec query.Record) query.Record {
	out := make(query.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
