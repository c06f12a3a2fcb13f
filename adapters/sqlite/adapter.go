package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/schema"
	"github.com/artpar/modelwire/ports"
)

// ErrUnknownCollection is returned for collections that were never defined.
var ErrUnknownCollection = errors.New("unknown collection")

// Adapter implements ports.Adapter using SQLite.
type Adapter struct {
	db *DB

	mu     sync.RWMutex
	models map[string]schema.Model
}

// NewAdapter creates an adapter over an open database.
func NewAdapter(db *DB) *Adapter {
	return &Adapter{db: db, models: make(map[string]schema.Model)}
}

// Define creates or extends the table backing model.
func (a *Adapter) Define(ctx context.Context, model schema.Model) error {
	if err := a.db.migrate(ctx, model); err != nil {
		return err
	}

	a.mu.Lock()
	a.models[model.Identity] = model
	a.mu.Unlock()
	return nil
}

// Find returns the records matching q.
func (a *Adapter) Find(ctx context.Context, name string, q query.Query) ([]query.Record, error) {
	model, err := a.model(name)
	if err != nil {
		return nil, err
	}

	keys, err := query.ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	columns := model.Schema()
	b := &whereBuilder{columns: columns, pk: model.PrimaryKey}
	clause, pushdown := b.build(q.Where)
	for _, k := range keys {
		if _, ok := columns[k.Field]; !ok {
			pushdown = false
		}
	}

	if !pushdown {
		all, err := a.selectRows(ctx, model, "1=1", nil, "")
		if err != nil {
			return nil, err
		}
		matched := all[:0]
		for _, rec := range all {
			if query.Matches(rec, q.Where, model.PrimaryKey) {
				matched = append(matched, rec)
			}
		}
		query.SortRecords(matched, keys)
		return project(query.Window(matched, q.Skip, q.Limit), q.Select), nil
	}

	var tail strings.Builder
	if len(keys) > 0 {
		order := make([]string, len(keys))
		for i, k := range keys {
			order[i] = quote(k.Field)
			if k.Desc {
				order[i] += " DESC"
			}
		}
		tail.WriteString(" ORDER BY " + strings.Join(order, ", "))
	} else {
		tail.WriteString(" ORDER BY rowid")
	}
	limit := -1
	if q.Limit != nil && *q.Limit > 0 {
		limit = *q.Limit
	}
	fmt.Fprintf(&tail, " LIMIT %d OFFSET %d", limit, q.Skip)

	records, err := a.selectRows(ctx, model, clause, b.args, tail.String())
	if err != nil {
		return nil, err
	}
	return project(records, q.Select), nil
}

// Create inserts values and returns the stored row.
func (a *Adapter) Create(ctx context.Context, name string, values query.Record) (query.Record, error) {
	model, err := a.model(name)
	if err != nil {
		return nil, err
	}
	columns := model.Schema()

	var (
		cols []string
		args []any
	)
	for _, col := range sortedKeys(values) {
		attr, ok := columns[col]
		if !ok {
			continue
		}
		v, err := encode(attr, values[col])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", name, col, err)
		}
		cols = append(cols, quote(col))
		args = append(args, v)
	}

	var stmt string
	if len(cols) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(name))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(name), strings.Join(cols, ", "), placeholders(len(cols)))
	}

	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return nil, fmt.Errorf("insert %s: %w", name, err)
	}

	rowID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", name, err)
	}
	rows, err := a.selectRows(ctx, model, "rowid = ?", []any{rowID}, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: row %d not found", name, rowID)
	}
	return rows[0], nil
}

// Update applies values to the matching rows and returns them as stored.
func (a *Adapter) Update(ctx context.Context, name string, where any, values query.Record) ([]query.Record, error) {
	model, err := a.model(name)
	if err != nil {
		return nil, err
	}
	columns := model.Schema()

	ids, err := a.matchingKeys(ctx, model, where)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	for _, col := range sortedKeys(values) {
		attr, ok := columns[col]
		if !ok {
			continue
		}
		v, err := encode(attr, values[col])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", name, col, err)
		}
		sets = append(sets, quote(col)+" = ?")
		args = append(args, v)
	}

	pk := quote(model.PrimaryKey)
	if len(sets) > 0 {
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)", quote(name), strings.Join(sets, ", "), pk, placeholders(len(ids)))
		if _, err := a.db.ExecContext(ctx, stmt, append(args, ids...)...); err != nil {
			if isUniqueConstraintError(err) {
				return nil, fmt.Errorf("%w: %v", ErrDuplicate, err)
			}
			return nil, fmt.Errorf("update %s: %w", name, err)
		}
	}

	// The primary key itself may have been rewritten.
	if v, ok := values[model.PrimaryKey]; ok {
		if enc, err := encode(model.Key(), v); err == nil {
			ids = []any{enc}
		}
	}
	return a.selectRows(ctx, model, pk+" IN ("+placeholders(len(ids))+")", ids, " ORDER BY rowid")
}

// Destroy deletes the matching rows and returns them.
func (a *Adapter) Destroy(ctx context.Context, name string, where any) ([]query.Record, error) {
	model, err := a.model(name)
	if err != nil {
		return nil, err
	}

	records, err := a.Find(ctx, name, query.Query{Where: where})
	if err != nil || len(records) == 0 {
		return nil, err
	}

	ids := make([]any, len(records))
	for i, rec := range records {
		ids[i], _ = encode(model.Key(), rec[model.PrimaryKey])
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", quote(name), quote(model.PrimaryKey), placeholders(len(ids)))
	if _, err := a.db.ExecContext(ctx, stmt, ids...); err != nil {
		return nil, fmt.Errorf("delete %s: %w", name, err)
	}
	return records, nil
}

// Count returns the number of matching rows.
func (a *Adapter) Count(ctx context.Context, name string, where any) (int, error) {
	model, err := a.model(name)
	if err != nil {
		return 0, err
	}

	b := &whereBuilder{columns: model.Schema(), pk: model.PrimaryKey}
	clause, ok := b.build(where)
	if !ok {
		records, err := a.Find(ctx, name, query.Query{Where: where})
		return len(records), err
	}

	var n int
	row := a.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", quote(name), clause), b.args...)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// Close closes the database.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ensure interface compliance.
var _ ports.Adapter = (*Adapter)(nil)

func (a *Adapter) model(name string) (schema.Model, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m, ok := a.models[name]
	if !ok {
		return schema.Model{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return m, nil
}

func (a *Adapter) matchingKeys(ctx context.Context, model schema.Model, where any) ([]any, error) {
	records, err := a.Find(ctx, model.Identity, query.Query{Where: where})
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(records))
	for i, rec := range records {
		ids[i], _ = encode(model.Key(), rec[model.PrimaryKey])
	}
	return ids, nil
}

func (a *Adapter) selectRows(ctx context.Context, model schema.Model, clause string, args []any, tail string) ([]query.Record, error) {
	columns := model.Schema()
	names := columnOrder(model, columns)
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s%s", strings.Join(quoted, ", "), quote(model.Identity), clause, tail)
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model.Identity, err)
	}
	defer rows.Close()

	records := []query.Record{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", model.Identity, err)
		}

		rec := make(query.Record, len(names))
		for i, n := range names {
			rec[n] = decode(columns[n], values[i])
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func project(records []query.Record, fields []string) []query.Record {
	if len(fields) == 0 {
		return records
	}
	out := make([]query.Record, len(records))
	for i, rec := range records {
		out[i] = query.Project(rec, fields)
	}
	return out
}

// encode converts a record value into its column representation.
func encode(attr schema.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch attr.Type {
	case schema.TypeJSON, schema.TypeArray:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	}
	switch v.(type) {
	case string, int, int64, float64, []byte:
		return v, nil
	}
	return fmt.Sprint(v), nil
}

// decode converts a scanned column value back into a record value.
func decode(attr schema.Attribute, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch attr.Type {
	case schema.TypeJSON, schema.TypeArray:
		s, ok := v.(string)
		if !ok {
			return v
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return s
		}
		return out
	case schema.TypeBoolean:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case schema.TypeFloat:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}

func sortedKeys(rec query.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
