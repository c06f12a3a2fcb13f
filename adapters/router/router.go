// Package router adapts a chi router to ports.App.
package router

import (
	"net/http"
	"strings"
	"sync"

	"github.com/artpar/modelwire/ports"
	"github.com/go-chi/chi/v5"
)

// Router registers routes on a chi router. chi's routing tree is not safe
// for concurrent mutation, so registration is serialized.
type Router struct {
	mu  sync.Mutex
	mux chi.Router
}

// New wraps mux. A nil mux gets a fresh chi router.
func New(mux chi.Router) *Router {
	if mux == nil {
		mux = chi.NewRouter()
	}
	return &Router{mux: mux}
}

// Mount attaches h below prefix. The handler sees the full request path.
func (r *Router) Mount(prefix string, h http.Handler) {
	prefix = "/" + strings.Trim(prefix, "/")

	r.mu.Lock()
	defer r.mu.Unlock()

	if prefix == "/" {
		r.mux.Handle("/*", h)
		return
	}
	r.mux.Handle(prefix, h)
	r.mux.Handle(prefix+"/*", h)
}

// Method registers h for method and pattern.
func (r *Router) Method(method, pattern string, h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mux.Method(method, pattern, h)
}

// ServeHTTP dispatches to the wrapped router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the wrapped router.
func (r *Router) Handler() chi.Router {
	return r.mux
}

var _ ports.App = (*Router)(nil)
