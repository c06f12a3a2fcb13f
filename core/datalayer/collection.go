package datalayer

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/artpar/modelwire/adapters/clock"
	"github.com/artpar/modelwire/adapters/hasher"
	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/schema"
	"github.com/artpar/modelwire/ports"
)

// Collection is a live model bound to its adapter. Values written through it
// are validated and coerced to the attribute types; secret attributes are
// hashed on write and never returned.
type Collection struct {
	model   schema.Model
	adapter ports.Adapter
	hasher  ports.Hasher
	clock   ports.Clock
	ids     ports.IDGenerator

	mu     sync.RWMutex
	routes []string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.model.Identity
}

// Model returns the normalized definition.
func (c *Collection) Model() schema.Model {
	return c.model
}

// PrimaryKey returns the primary key attribute name.
func (c *Collection) PrimaryKey() string {
	return c.model.PrimaryKey
}

// Schema returns the attribute definitions exposed by the info route.
func (c *Collection) Schema() map[string]schema.Attribute {
	return c.model.Schema()
}

// Routes returns the active route keys attached for this collection.
func (c *Collection) Routes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.routes...)
}

// SetRoutes records the active route keys.
func (c *Collection) SetRoutes(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append([]string{}, keys...)
}

// CoerceID converts a path identifier to the primary key type.
func (c *Collection) CoerceID(id string) any {
	if c.model.Key().Type == schema.TypeInteger {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
	}
	return id
}

// Find returns the records matching q.
func (c *Collection) Find(ctx context.Context, q query.Query) ([]query.Record, error) {
	records, err := c.adapter.Find(ctx, c.Name(), q)
	if err != nil {
		return nil, c.wrap(err)
	}
	return c.present(records), nil
}

// FindOne returns the first record matching where.
func (c *Collection) FindOne(ctx context.Context, where any) (query.Record, bool, error) {
	one := 1
	records, err := c.Find(ctx, query.Query{Where: where, Limit: &one})
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	return records[0], true, nil
}

// FindByID returns the record with the given primary key.
func (c *Collection) FindByID(ctx context.Context, id any) (query.Record, bool, error) {
	return c.FindOne(ctx, []any{id})
}

// Create validates and stores values.
func (c *Collection) Create(ctx context.Context, values query.Record) (query.Record, error) {
	rec, err := c.prepare(values, true)
	if err != nil {
		return nil, err
	}

	created, err := c.adapter.Create(ctx, c.Name(), rec)
	if err != nil {
		return nil, c.wrap(err)
	}
	return c.strip(created), nil
}

// CreateEach creates every element of values in order, stopping at the
// first failure.
func (c *Collection) CreateEach(ctx context.Context, values []query.Record) ([]query.Record, error) {
	out := make([]query.Record, 0, len(values))
	for _, v := range values {
		rec, err := c.Create(ctx, v)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindOrCreate returns the first record matching where, creating one from
// values when none exists.
func (c *Collection) FindOrCreate(ctx context.Context, where any, values query.Record) (query.Record, error) {
	rec, ok, err := c.FindOne(ctx, where)
	if err != nil {
		return nil, err
	}
	if ok {
		return rec, nil
	}
	return c.Create(ctx, values)
}

// Update applies values to every record matching where.
func (c *Collection) Update(ctx context.Context, where any, values query.Record) ([]query.Record, error) {
	rec, err := c.prepare(values, false)
	if err != nil {
		return nil, err
	}

	updated, err := c.adapter.Update(ctx, c.Name(), where, rec)
	if err != nil {
		return nil, c.wrap(err)
	}
	return c.present(updated), nil
}

// Destroy removes every record matching where.
func (c *Collection) Destroy(ctx context.Context, where any) ([]query.Record, error) {
	removed, err := c.adapter.Destroy(ctx, c.Name(), where)
	if err != nil {
		return nil, c.wrap(err)
	}
	return c.present(removed), nil
}

// Count returns the number of records matching where.
func (c *Collection) Count(ctx context.Context, where any) (int, error) {
	n, err := c.adapter.Count(ctx, c.Name(), where)
	if err != nil {
		return 0, c.wrap(err)
	}
	return n, nil
}

// prepare validates and coerces values for a create or an update.
func (c *Collection) prepare(values query.Record, creating bool) (query.Record, error) {
	rec := make(query.Record, len(values)+2)
	for name, v := range values {
		attr, known := c.model.Attributes[name]
		if !known {
			rec[name] = v
			continue
		}
		coerced, err := coerce(name, attr, v)
		if err != nil {
			return nil, err
		}
		if attr.Type == schema.TypeSecret && coerced != nil {
			coerced, err = c.hash(coerced.(string))
			if err != nil {
				return nil, err
			}
		}
		rec[name] = coerced
	}

	now := clock.Stamp(c.clock.Now())
	if creating {
		for _, name := range c.model.AttributeNames() {
			attr := c.model.Attributes[name]
			if _, ok := rec[name]; !ok && attr.DefaultsTo != nil {
				v, err := coerce(name, attr, attr.DefaultsTo)
				if err != nil {
					return nil, err
				}
				rec[name] = v
			}
			if attr.Required && rec[name] == nil {
				return nil, apperr.Newf(apperr.KindValidation, "Missing required attribute '%s'", name)
			}
		}

		pk := c.model.PrimaryKey
		if key := c.model.Key(); rec[pk] == nil && !key.AutoIncrement {
			rec[pk] = c.ids.New()
		}
		if c.model.AutoCreatedAt {
			rec["createdAt"] = now
		}
	} else {
		for name, v := range rec {
			if attr, ok := c.model.Attributes[name]; ok && attr.Required && v == nil {
				return nil, apperr.Newf(apperr.KindValidation, "Missing required attribute '%s'", name)
			}
		}
	}
	if c.model.AutoUpdatedAt {
		rec["updatedAt"] = now
	}
	return rec, nil
}

func (c *Collection) hash(plaintext string) (string, error) {
	if hasher.IsHash(plaintext) {
		return plaintext, nil
	}
	h, err := c.hasher.Hash(plaintext)
	if err != nil {
		return "", apperr.Wrap(apperr.KindDataLayer, err, "Unable to hash secret attribute")
	}
	return string(h), nil
}

// strip removes internal attributes from a record in place.
func (c *Collection) strip(rec query.Record) query.Record {
	for name, attr := range c.model.Attributes {
		if attr.IsInternal() {
			delete(rec, name)
		}
	}
	return rec
}

func (c *Collection) present(records []query.Record) []query.Record {
	if records == nil {
		return []query.Record{}
	}
	for _, rec := range records {
		c.strip(rec)
	}
	return records
}

// wrap tags adapter failures as data-layer errors, keeping typed errors as
// they are.
func (c *Collection) wrap(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.KindDataLayer, err, err.Error())
}

// Authenticate reports whether plaintext matches the stored secret attribute
// of the record with the given primary key.
func (c *Collection) Authenticate(ctx context.Context, id any, attribute, plaintext string) (bool, error) {
	if attr, ok := c.model.Attributes[attribute]; !ok || attr.Type != schema.TypeSecret {
		return false, apperr.Newf(apperr.KindValidation, "Attribute '%s' is not a secret", attribute)
	}

	records, err := c.adapter.Find(ctx, c.Name(), query.Query{Where: []any{id}})
	if err != nil {
		return false, c.wrap(err)
	}
	if len(records) == 0 {
		return false, nil
	}
	stored, _ := records[0][attribute].(string)
	return stored != "" && c.hasher.Compare([]byte(stored), plaintext), nil
}
