package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/modelwire/core/apperr"
)

// SortKey is one resolved ordering criterion.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSort resolves the Sort value of a Query. Map keys are ordered by name
// since JSON objects carry no key order once decoded.
func ParseSort(v any) ([]SortKey, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return parseSortString(s)
	case map[string]any:
		fields := make([]string, 0, len(s))
		for f := range s {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		keys := make([]SortKey, 0, len(fields))
		for _, f := range fields {
			desc, err := direction(s[f])
			if err != nil {
				return nil, err
			}
			keys = append(keys, SortKey{Field: f, Desc: desc})
		}
		return keys, nil
	}
	return nil, apperr.New(apperr.KindInvalidQuery, "Invalid 'sort' parameter specified!")
}

func parseSortString(s string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1:
			keys = append(keys, SortKey{Field: fields[0]})
		case 2:
			desc, err := direction(fields[1])
			if err != nil {
				return nil, err
			}
			keys = append(keys, SortKey{Field: fields[0], Desc: desc})
		default:
			return nil, apperr.Newf(apperr.KindInvalidQuery, "Invalid sort clause %q", part)
		}
	}
	return keys, nil
}

func direction(v any) (bool, error) {
	switch d := v.(type) {
	case string:
		switch strings.ToLower(d) {
		case "asc", "1":
			return false, nil
		case "desc", "-1":
			return true, nil
		}
	default:
		if f, ok := toFloat(v); ok {
			if f == 1 {
				return false, nil
			}
			if f == -1 {
				return true, nil
			}
		}
	}
	return false, apperr.Newf(apperr.KindInvalidQuery, "Invalid sort direction %v", fmt.Sprint(v))
}

// SortRecords orders records in place by keys. The sort is stable.
func SortRecords(records []Record, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			c := Compare(records[i][k.Field], records[j][k.Field])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Window applies skip and limit. A nil or non-positive limit is unlimited.
func Window(records []Record, skip int, limit *int) []Record {
	if skip >= len(records) {
		return []Record{}
	}
	if skip > 0 {
		records = records[skip:]
	}
	if limit != nil && *limit > 0 && *limit < len(records) {
		records = records[:*limit]
	}
	return records
}

// Project keeps only the selected fields of rec. An empty selection keeps all.
func Project(rec Record, fields []string) Record {
	if len(fields) == 0 {
		return rec
	}
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}
