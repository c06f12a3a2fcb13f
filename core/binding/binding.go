// Package binding defines the context shared by every generated route and
// the signature of route handlers, and keeps the registry of named handlers
// that definition files refer to.
package binding

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/artpar/modelwire/config"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Context is shared by all handlers. It is built once per mount and never
// mutated afterwards.
type Context struct {
	Config *config.Config
	Logger zerolog.Logger
	Models *datalayer.Collections
}

// HandlerFunc serves a request for a model. m is nil for handlers mounted
// at the root of an API.
type HandlerFunc func(b *Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request)

// Bind fixes the context and model of h.
func Bind(b *Context, m *datalayer.Collection, h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(b, m, w, r)
	})
}

// FromHTTP adapts a plain handler.
func FromHTTP(h http.Handler) HandlerFunc {
	return func(_ *Context, _ *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}

// Param returns a path parameter of the matched route.
func Param(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return r.PathValue(name)
}

// Handlers is a concurrency-safe registry of named handlers.
type Handlers struct {
	mu     sync.RWMutex
	byName map[string]HandlerFunc
}

// NewHandlers creates an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{byName: make(map[string]HandlerFunc)}
}

// Register adds or replaces the handler registered under name.
func (h *Handlers) Register(name string, fn HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("handler name is required")
	}
	if fn == nil {
		return fmt.Errorf("handler %q is nil", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.byName[name] = fn
	return nil
}

// Get returns the handler registered under name.
func (h *Handlers) Get(name string) (HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.byName[name]
	return fn, ok
}

// Has reports whether name is registered.
func (h *Handlers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Names returns the registered names, sorted.
func (h *Handlers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.byName))
	for name := range h.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
