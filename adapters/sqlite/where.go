package sqlite

import (
	"sort"
	"strings"

	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/schema"
)

// whereBuilder translates where clauses into SQL. Clauses it cannot express
// faithfully report ok=false and are evaluated in process instead.
type whereBuilder struct {
	columns map[string]schema.Attribute
	pk      string
	args    []any
}

func (b *whereBuilder) build(where any) (string, bool) {
	switch w := where.(type) {
	case nil:
		return "1=1", true
	case []any:
		return b.in(quote(b.pk), b.columns[b.pk], w, false)
	case map[string]any:
		return b.object(w)
	}
	return "", false
}

func (b *whereBuilder) object(w map[string]any) (string, bool) {
	if len(w) == 0 {
		return "1=1", true
	}

	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		var (
			part string
			ok   bool
		)
		switch key {
		case "or", "and":
			part, ok = b.group(key, w[key])
		default:
			part, ok = b.field(key, w[key])
		}
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " AND ") + ")", true
}

func (b *whereBuilder) group(op string, cond any) (string, bool) {
	clauses, ok := cond.([]any)
	if !ok {
		return "", false
	}
	if len(clauses) == 0 {
		if op == "or" {
			return "0=1", true
		}
		return "1=1", true
	}

	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		part, ok := b.build(c)
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " "+strings.ToUpper(op)+" ") + ")", true
}

func (b *whereBuilder) field(name string, cond any) (string, bool) {
	attr, ok := b.columns[name]
	if !ok || attr.Type == schema.TypeJSON || attr.Type == schema.TypeArray {
		return "", false
	}
	col := quote(name)

	switch c := cond.(type) {
	case nil:
		return col + " IS NULL", true
	case []any:
		return b.in(col, attr, c, false)
	case map[string]any:
		if !query.IsOperatorMap(c) {
			return "", false
		}
		ops := make([]string, 0, len(c))
		for op := range c {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		parts := make([]string, 0, len(ops))
		for _, op := range ops {
			part, ok := b.operator(col, attr, op, c[op])
			if !ok {
				return "", false
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " AND ") + ")", true
	default:
		v, ok := bindValue(attr, cond)
		if !ok {
			return "", false
		}
		b.args = append(b.args, v)
		return col + " = ?", true
	}
}

func (b *whereBuilder) operator(col string, attr schema.Attribute, op string, operand any) (string, bool) {
	compare := map[string]string{
		"<": "<", "lessThan": "<",
		"<=": "<=", "lessThanOrEqual": "<=",
		">": ">", "greaterThan": ">",
		">=": ">=", "greaterThanOrEqual": ">=",
	}

	if sqlOp, ok := compare[op]; ok {
		v, ok := bindValue(attr, operand)
		if !ok || v == nil {
			return "", false
		}
		b.args = append(b.args, v)
		return col + " " + sqlOp + " ?", true
	}

	switch op {
	case "!", "not":
		switch o := operand.(type) {
		case nil:
			return col + " IS NOT NULL", true
		case []any:
			return b.in(col, attr, o, true)
		default:
			v, ok := bindValue(attr, o)
			if !ok {
				return "", false
			}
			b.args = append(b.args, v)
			return "(" + col + " IS NULL OR " + col + " <> ?)", true
		}
	case "in", "nin":
		list, ok := operand.([]any)
		if !ok {
			return "", false
		}
		return b.in(col, attr, list, op == "nin")
	case "contains", "startsWith", "endsWith":
		s, ok := operand.(string)
		if !ok || s == "" {
			return "", false
		}
		s = escapeLike(s)
		switch op {
		case "contains":
			s = "%" + s + "%"
		case "startsWith":
			s += "%"
		case "endsWith":
			s = "%" + s
		}
		b.args = append(b.args, s)
		return col + ` LIKE ? ESCAPE '\'`, true
	}
	return "", false
}

func (b *whereBuilder) in(col string, attr schema.Attribute, list []any, negate bool) (string, bool) {
	if len(list) == 0 {
		if negate {
			return "1=1", true
		}
		return "0=1", true
	}

	for _, item := range list {
		v, ok := bindValue(attr, item)
		if !ok || v == nil {
			return "", false
		}
		b.args = append(b.args, v)
	}

	if negate {
		return "(" + col + " IS NULL OR " + col + " NOT IN (" + placeholders(len(list)) + "))", true
	}
	return col + " IN (" + placeholders(len(list)) + ")", true
}

// bindValue converts a scalar operand for comparison against a column.
func bindValue(attr schema.Attribute, v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case bool:
		if attr.Type != schema.TypeBoolean {
			return nil, false
		}
		if x {
			return int64(1), true
		}
		return int64(0), true
	case string:
		if attr.IsNumeric() || attr.Type == schema.TypeBoolean {
			return nil, false
		}
		return x, true
	case float64, int, int64:
		if !attr.IsNumeric() {
			return nil, false
		}
		return x, true
	}
	return nil, false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
