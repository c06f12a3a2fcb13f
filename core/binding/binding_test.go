package binding_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/artpar/modelwire/core/binding"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestHandlers(t *testing.T) {
	h := binding.NewHandlers()
	noop := func(*binding.Context, *datalayer.Collection, http.ResponseWriter, *http.Request) {}

	if err := h.Register("", noop); err == nil {
		t.Error("Register() with empty name succeeded")
	}
	if err := h.Register("nil", nil); err == nil {
		t.Error("Register() with nil handler succeeded")
	}

	h.Register("status", noop)
	h.Register("echo", noop)

	if !h.Has("status") || h.Has("missing") {
		t.Error("Has() mismatch")
	}
	if names := h.Names(); len(names) != 2 || names[0] != "echo" || names[1] != "status" {
		t.Errorf("Names() = %v, want [echo status]", names)
	}
}

func TestBind(t *testing.T) {
	ctx := &binding.Context{Logger: zerolog.Nop()}

	var got *binding.Context
	handler := binding.Bind(ctx, nil, func(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
		got = b
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got != ctx || rec.Code != http.StatusTeapot {
		t.Errorf("bound handler saw %p with code %d", got, rec.Code)
	}
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     string
	}{
		{"empty", "", http.StatusOK, `{}`},
		{"whitespace", "  \n", http.StatusOK, `{}`},
		{"null", "null", http.StatusOK, `{}`},
		{"object", `{"name":"a"}`, http.StatusOK, `{"name":"a"}`},
		{"array", `[{"name":"a"},{"name":"b"}]`, http.StatusOK, `[{"name":"a"},{"name":"b"}]`},
		{"malformed", `{"name":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen any
			h := binding.ParseBody(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = binding.Body(r)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				var env map[string]any
				json.Unmarshal(rec.Body.Bytes(), &env)
				if env["success"] != false {
					t.Errorf("error response = %s", rec.Body.String())
				}
				return
			}

			got, _ := json.Marshal(seen)
			if string(got) != tt.want {
				t.Errorf("Body() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBody_WithoutParser(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if m, ok := binding.BodyObject(r); !ok || len(m) != 0 {
		t.Errorf("BodyObject() = %v, %v; want empty object", m, ok)
	}
}

func TestParam(t *testing.T) {
	router := chi.NewRouter()
	var got string
	router.Get("/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = binding.Param(r, "id")
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/42", nil))
	if got != "42" {
		t.Errorf("chi Param() = %q, want 42", got)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = binding.Param(r, "id")
	})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/7", nil))
	if got != "7" {
		t.Errorf("mux Param() = %q, want 7", got)
	}
}
