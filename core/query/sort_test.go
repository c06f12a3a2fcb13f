package query

import (
	"reflect"
	"testing"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []SortKey
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"empty map", map[string]any{}, []SortKey{}, false},
		{"string", "firstName DESC, id", []SortKey{{"firstName", true}, {"id", false}}, false},
		{"map numeric", map[string]any{"b": float64(-1), "a": float64(1)}, []SortKey{{"a", false}, {"b", true}}, false},
		{"map words", map[string]any{"a": "DESC"}, []SortKey{{"a", true}}, false},
		{"bad direction", map[string]any{"a": float64(2)}, nil, true},
		{"bad clause", "a b c", nil, true},
		{"bad type", float64(1), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSort(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSort = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSortRecordsAndWindow(t *testing.T) {
	records := []Record{
		{"id": 1, "name": "b"},
		{"id": 2, "name": "a"},
		{"id": 3, "name": "c"},
	}
	SortRecords(records, []SortKey{{Field: "name", Desc: true}})

	var names []string
	for _, r := range records {
		names = append(names, r["name"].(string))
	}
	if !reflect.DeepEqual(names, []string{"c", "b", "a"}) {
		t.Errorf("sorted names = %v", names)
	}

	limit := 1
	if got := Window(records, 1, &limit); len(got) != 1 || got[0]["name"] != "b" {
		t.Errorf("Window(1,1) = %v", got)
	}
	if got := Window(records, 5, nil); len(got) != 0 {
		t.Errorf("Window past end = %v", got)
	}
	if got := Window(records, 0, nil); len(got) != 3 {
		t.Errorf("Window unlimited = %v", got)
	}
}

func TestProject(t *testing.T) {
	rec := Record{"id": 1, "a": "x", "b": "y"}
	if got := Project(rec, []string{"a"}); !reflect.DeepEqual(got, Record{"a": "x"}) {
		t.Errorf("Project = %v", got)
	}
	if got := Project(rec, nil); len(got) != 3 {
		t.Errorf("Project(nil) = %v", got)
	}
}
