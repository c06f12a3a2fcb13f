// Package query normalizes HTTP query parameters into the structured query
// descriptor consumed by the data layer.
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/artpar/modelwire/core/apperr"
)

// DefaultLimit is applied when a caller does not ask for an unlimited query.
const DefaultLimit = 10

// reserved keys are assigned onto the descriptor; everything else becomes an
// implicit equality filter inside Where.
var reserved = map[string]bool{
	"limit":  true,
	"skip":   true,
	"sort":   true,
	"select": true,
	"where":  true,
}

// Query is the normalized {where, sort, limit, skip, select} descriptor.
type Query struct {
	// Where is either map[string]any (field filters) or []any (primary keys).
	Where any `json:"where"`

	// Sort is a map of field to direction or a "field DESC" style string.
	Sort any `json:"sort"`

	// Limit is nil for unlimited queries.
	Limit *int `json:"limit,omitempty"`

	Skip int `json:"skip"`

	Select []string `json:"select,omitempty"`
}

// Option overrides one of the base defaults before request values apply.
type Option func(*Query)

// Unlimited removes the default limit.
func Unlimited() Option {
	return func(q *Query) { q.Limit = nil }
}

// WithLimit replaces the default limit.
func WithLimit(n int) Option {
	return func(q *Query) { q.Limit = &n }
}

// WithSelect sets the default projection.
func WithSelect(fields ...string) Option {
	return func(q *Query) { q.Select = append([]string(nil), fields...) }
}

// WithWhere seeds the where clause, e.g. from a request body.
// A map is copied so the caller's value is never mutated.
func WithWhere(where any) Option {
	return func(q *Query) {
		if m, ok := where.(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for k, v := range m {
				cp[k] = v
			}
			where = cp
		}
		q.Where = where
	}
}

// Base returns the descriptor every request starts from.
func Base() Query {
	limit := DefaultLimit
	return Query{
		Where: map[string]any{},
		Sort:  map[string]any{},
		Limit: &limit,
	}
}

// Normalize builds a Query from request query values.
func Normalize(values url.Values, opts ...Option) (Query, error) {
	q := Base()
	for _, opt := range opts {
		opt(&q)
	}

	params := fold(values)

	if raw, ok := params["where"]; ok {
		q.Where = parseValue(raw)
	}

	for key, raw := range params {
		if key == "where" {
			continue
		}
		val := parseValue(raw)

		if !reserved[key] {
			where, ok := q.Where.(map[string]any)
			if !ok {
				if _, isArray := q.Where.([]any); isArray {
					return Query{}, apperr.Newf(apperr.KindInvalidQuery,
						"Cannot apply filter '%s' to an array 'where' parameter!", key)
				}
				continue
			}
			where[key] = val
			continue
		}

		switch key {
		case "select":
			q.Select = toStrings(val)
		case "sort":
			q.Sort = val
		case "limit":
			if val == nil {
				q.Limit = nil
				continue
			}
			n, err := toInt(key, val)
			if err != nil {
				return Query{}, err
			}
			q.Limit = &n
		case "skip":
			if val == nil {
				q.Skip = 0
				continue
			}
			n, err := toInt(key, val)
			if err != nil {
				return Query{}, err
			}
			q.Skip = n
		}
	}

	switch q.Where.(type) {
	case map[string]any, []any:
	default:
		return Query{}, apperr.New(apperr.KindInvalidQuery, "Invalid 'where' parameter specified!")
	}

	return q, nil
}

// fold collapses url.Values into single values or sequences, folding the
// "key[]" array syntax onto "key".
func fold(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		name := strings.TrimSuffix(key, "[]")
		arraySyntax := name != key

		var existing []any
		if prev, ok := out[name]; ok {
			switch p := prev.(type) {
			case []any:
				existing = p
			default:
				existing = []any{p}
			}
		}

		if len(vals) == 1 && !arraySyntax && existing == nil {
			out[name] = vals[0]
			continue
		}
		for _, v := range vals {
			existing = append(existing, v)
		}
		out[name] = existing
	}
	return out
}

// parseValue opportunistically decodes JSON strings. Sequences are left as-is.
func parseValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return s
	}
	return decoded
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, scalarString(item))
		}
		return out
	default:
		return []string{scalarString(val)}
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func toInt(key string, v any) (int, error) {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && val >= 0 {
			return int(val), nil
		}
	case int:
		if val >= 0 {
			return val, nil
		}
	}
	return 0, apperr.Newf(apperr.KindInvalidQuery, "Invalid '%s' parameter specified!", key)
}
