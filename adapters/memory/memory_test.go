package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/modelwire/adapters/memory"
	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/schema"
)

func employeeModel() schema.Model {
	return schema.Model{
		Identity: "employee",
		Attributes: map[string]schema.Attribute{
			"firstName": {Type: schema.TypeString},
			"email":     {Type: schema.TypeEmail, Unique: true},
			"age":       {Type: schema.TypeInteger},
		},
	}.Normalize()
}

func setup(t *testing.T) (*memory.Adapter, context.Context) {
	t.Helper()

	a := memory.New()
	ctx := context.Background()
	if err := a.Define(ctx, employeeModel()); err != nil {
		t.Fatalf("Define() error = %v", err)
	}

	for _, rec := range []query.Record{
		{"firstName": "Bob", "email": "bob@example.com", "age": int64(40)},
		{"firstName": "alice", "email": "alice@example.com", "age": int64(30)},
		{"firstName": "Carol", "email": "carol@example.com", "age": int64(35)},
	} {
		if _, err := a.Create(ctx, "employee", rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	return a, ctx
}

func TestCreate_AutoIncrement(t *testing.T) {
	a, ctx := setup(t)

	rec, err := a.Create(ctx, "employee", query.Record{"firstName": "Dan"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec["id"] != int64(4) {
		t.Errorf("id = %v, want 4", rec["id"])
	}

	rec, err = a.Create(ctx, "employee", query.Record{"id": float64(10), "firstName": "Eve"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec["id"] != int64(10) {
		t.Errorf("explicit id = %#v, want int64(10)", rec["id"])
	}

	rec, _ = a.Create(ctx, "employee", query.Record{"firstName": "Fay"})
	if rec["id"] != int64(11) {
		t.Errorf("id after explicit = %v, want 11", rec["id"])
	}
}

func TestCreate_Duplicate(t *testing.T) {
	a, ctx := setup(t)

	_, err := a.Create(ctx, "employee", query.Record{"email": "bob@example.com"})
	if !errors.Is(err, memory.ErrDuplicate) {
		t.Errorf("Create() error = %v, want ErrDuplicate", err)
	}

	_, err = a.Create(ctx, "employee", query.Record{"id": int64(1)})
	if !errors.Is(err, memory.ErrDuplicate) {
		t.Errorf("Create() with taken id error = %v, want ErrDuplicate", err)
	}
}

func TestFind(t *testing.T) {
	a, ctx := setup(t)
	limit := 2

	tests := []struct {
		name  string
		q     query.Query
		names []string
	}{
		{"all in insertion order", query.Query{}, []string{"Bob", "alice", "Carol"}},
		{"equality", query.Query{Where: map[string]any{"firstName": "Bob"}}, []string{"Bob"}},
		{"operator", query.Query{Where: map[string]any{"age": map[string]any{">=": float64(35)}}}, []string{"Bob", "Carol"}},
		{"primary key list", query.Query{Where: []any{float64(1), float64(3)}}, []string{"Bob", "Carol"}},
		{"sort string", query.Query{Sort: "age DESC"}, []string{"Bob", "Carol", "alice"}},
		{"sort map", query.Query{Sort: map[string]any{"age": float64(1)}}, []string{"alice", "Carol", "Bob"}},
		{"skip and limit", query.Query{Sort: "age", Skip: 1, Limit: &limit}, []string{"Carol", "Bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Find(ctx, "employee", tt.q)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(got) != len(tt.names) {
				t.Fatalf("Find() returned %d records, want %d", len(got), len(tt.names))
			}
			for i, rec := range got {
				if rec["firstName"] != tt.names[i] {
					t.Errorf("record %d firstName = %v, want %s", i, rec["firstName"], tt.names[i])
				}
			}
		})
	}
}

func TestFind_SelectAndCopy(t *testing.T) {
	a, ctx := setup(t)

	got, err := a.Find(ctx, "employee", query.Query{Select: []string{"firstName"}})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got[0]) != 1 {
		t.Errorf("projected record = %v, want only firstName", got[0])
	}

	all, _ := a.Find(ctx, "employee", query.Query{})
	all[0]["firstName"] = "mutated"
	again, _ := a.Find(ctx, "employee", query.Query{})
	if again[0]["firstName"] != "Bob" {
		t.Error("Find should return copies")
	}
}

func TestFind_InvalidSort(t *testing.T) {
	a, ctx := setup(t)
	if _, err := a.Find(ctx, "employee", query.Query{Sort: float64(5)}); err == nil {
		t.Error("expected error for invalid sort")
	}
}

func TestUpdate(t *testing.T) {
	a, ctx := setup(t)

	updated, err := a.Update(ctx, "employee", map[string]any{"age": map[string]any{"<": float64(36)}}, query.Record{"age": int64(50)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(updated) != 2 {
		t.Errorf("updated %d, want 2", len(updated))
	}

	n, _ := a.Count(ctx, "employee", map[string]any{"age": float64(50)})
	if n != 2 {
		t.Errorf("Count(age=50) = %d, want 2", n)
	}

	_, err = a.Update(ctx, "employee", []any{float64(2)}, query.Record{"email": "bob@example.com"})
	if !errors.Is(err, memory.ErrDuplicate) {
		t.Errorf("Update() error = %v, want ErrDuplicate", err)
	}
}

func TestDestroy(t *testing.T) {
	a, ctx := setup(t)

	removed, err := a.Destroy(ctx, "employee", []any{float64(2)})
	if err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if len(removed) != 1 || removed[0]["firstName"] != "alice" {
		t.Errorf("removed = %v", removed)
	}

	n, _ := a.Count(ctx, "employee", nil)
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	removed, _ = a.Destroy(ctx, "employee", nil)
	if len(removed) != 2 {
		t.Errorf("Destroy(nil) removed %d, want 2", len(removed))
	}
}

func TestDefine_KeepsRecords(t *testing.T) {
	a, ctx := setup(t)

	if err := a.Define(ctx, employeeModel()); err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	n, _ := a.Count(ctx, "employee", nil)
	if n != 3 {
		t.Errorf("Count() after redefine = %d, want 3", n)
	}
}

func TestUnknownCollection(t *testing.T) {
	a := memory.New()
	ctx := context.Background()

	if _, err := a.Find(ctx, "nope", query.Query{}); !errors.Is(err, memory.ErrUnknownCollection) {
		t.Errorf("Find() error = %v", err)
	}
	if _, err := a.Count(ctx, "nope", nil); !errors.Is(err, memory.ErrUnknownCollection) {
		t.Errorf("Count() error = %v", err)
	}
}
