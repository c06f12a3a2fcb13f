package datalayer

import (
	"encoding/json"
	"math"
	"net/mail"
	"strconv"
	"time"

	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/schema"
	"github.com/google/uuid"
)

// coerce converts v to the representation stored for attr, or reports a
// validation error. nil always passes through.
func coerce(name string, attr schema.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	invalid := func() error {
		return apperr.Newf(apperr.KindValidation, "Invalid value for attribute '%s': expected %s", name, attr.Type).
			With("attribute", name)
	}

	switch attr.Type {
	case schema.TypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int64(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, nil
			}
		}
		return nil, invalid()

	case schema.TypeFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, nil
			}
		}
		return nil, invalid()

	case schema.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, nil
			}
		}
		return nil, invalid()

	case schema.TypeJSON:
		return v, nil

	case schema.TypeArray:
		if list, ok := v.([]any); ok {
			return list, nil
		}
		return nil, invalid()
	}

	s, ok := v.(string)
	if !ok {
		return nil, invalid()
	}

	switch attr.Type {
	case schema.TypeEmail:
		if addr, err := mail.ParseAddress(s); err != nil || addr.Address != s {
			return nil, invalid()
		}
	case schema.TypeUUID:
		if _, err := uuid.Parse(s); err != nil {
			return nil, invalid()
		}
	case schema.TypeDate:
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return nil, invalid()
		}
	case schema.TypeDatetime:
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return nil, invalid()
		}
	}

	if len(attr.Enum) > 0 && !contains(attr.Enum, s) {
		return nil, apperr.Newf(apperr.KindValidation, "Invalid value for attribute '%s': must be one of %v", name, attr.Enum).
			With("attribute", name)
	}
	return s, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
