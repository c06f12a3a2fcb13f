package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Record is a single entity as stored by the data layer.
type Record = map[string]any

// operators understood inside a field condition such as {"age": {">": 21}}.
var operators = map[string]bool{
	"<": true, "lessThan": true,
	"<=": true, "lessThanOrEqual": true,
	">": true, "greaterThan": true,
	">=": true, "greaterThanOrEqual": true,
	"!": true, "not": true,
	"in": true, "nin": true,
	"contains": true, "startsWith": true, "endsWith": true,
	"like": true,
}

// IsOperatorMap reports whether every key of m is a known operator.
func IsOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !operators[k] {
			return false
		}
	}
	return true
}

// Matches evaluates a where clause against a record. An array where matches
// records whose primary key is one of its elements.
func Matches(rec Record, where any, primaryKey string) bool {
	switch w := where.(type) {
	case nil:
		return true
	case []any:
		return in(rec[primaryKey], w)
	case map[string]any:
		for key, cond := range w {
			switch key {
			case "or":
				clauses, _ := cond.([]any)
				matched := false
				for _, c := range clauses {
					if Matches(rec, c, primaryKey) {
						matched = true
						break
					}
				}
				if !matched {
					return false
				}
			case "and":
				clauses, _ := cond.([]any)
				for _, c := range clauses {
					if !Matches(rec, c, primaryKey) {
						return false
					}
				}
			default:
				if !matchField(rec[key], cond) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}

func matchField(actual, cond any) bool {
	switch c := cond.(type) {
	case []any:
		return in(actual, c)
	case map[string]any:
		if !IsOperatorMap(c) {
			return Equal(actual, c)
		}
		for op, operand := range c {
			if !applyOperator(op, actual, operand) {
				return false
			}
		}
		return true
	default:
		return Equal(actual, cond)
	}
}

func applyOperator(op string, actual, operand any) bool {
	switch op {
	case "<", "lessThan":
		return actual != nil && Compare(actual, operand) < 0
	case "<=", "lessThanOrEqual":
		return actual != nil && Compare(actual, operand) <= 0
	case ">", "greaterThan":
		return actual != nil && Compare(actual, operand) > 0
	case ">=", "greaterThanOrEqual":
		return actual != nil && Compare(actual, operand) >= 0
	case "!", "not":
		if list, ok := operand.([]any); ok {
			return !in(actual, list)
		}
		return !Equal(actual, operand)
	case "in":
		list, _ := operand.([]any)
		return in(actual, list)
	case "nin":
		list, _ := operand.([]any)
		return !in(actual, list)
	case "contains":
		return strings.Contains(lower(actual), lower(operand))
	case "startsWith":
		return strings.HasPrefix(lower(actual), lower(operand))
	case "endsWith":
		return strings.HasSuffix(lower(actual), lower(operand))
	case "like":
		return likeMatch(lower(actual), lower(operand))
	}
	return false
}

func lower(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return strings.ToLower(fmt.Sprint(v))
}

// likeMatch implements SQL LIKE with % and _ wildcards.
func likeMatch(s, pattern string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func in(actual any, list []any) bool {
	for _, item := range list {
		if Equal(actual, item) {
			return true
		}
	}
	return false
}

// Equal compares two values, treating all numeric kinds as float64.
func Equal(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// rank orders values of different kinds: nil < bool < number < string < other.
func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := v.(string); ok {
		return 3
	}
	return 4
}

// Compare returns -1, 0 or 1 ordering a relative to b.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
