package mount

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/artpar/modelwire/core/binding"
	"github.com/artpar/modelwire/core/response"
	"github.com/artpar/modelwire/core/route"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// ManifestNames are the file names probed, in order, for an API manifest.
var ManifestNames = []string{"api.yaml", "api.yml", "api.json"}

// errNoHandler reports an API directory that cannot be turned into a handler.
var errNoHandler = errors.New("API module does not export a request handler")

// Manifest describes the handler of an API module.
type Manifest struct {
	// Handler names a registered binding handler serving the whole API.
	Handler string `yaml:"handler"`

	// Routes are static responses relative to the API base.
	Routes []StaticRoute `yaml:"routes"`
}

// StaticRoute is a fixed response declared in a manifest.
type StaticRoute struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Status int    `yaml:"status"`
	Body   any    `yaml:"body"`
}

// ReadManifest reads the manifest of the API module in dir.
func ReadManifest(dir string) (Manifest, string, error) {
	for _, name := range ManifestNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Manifest{}, path, fmt.Errorf("%w: %v", errNoHandler, err)
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, path, fmt.Errorf("%w: %s: %v", errNoHandler, path, err)
		}
		return m, path, nil
	}
	return Manifest{}, "", fmt.Errorf("%w: no manifest in %s", errNoHandler, dir)
}

// handler builds the request handler of an API module mounted at prefix.
func (m *Mounter) handler(man Manifest, prefix string) (http.Handler, error) {
	var fallback http.Handler
	if man.Handler != "" {
		fn, ok := m.handlers.Get(man.Handler)
		if !ok {
			return nil, fmt.Errorf("%w: unknown handler %q", errNoHandler, man.Handler)
		}
		fallback = binding.ParseBody(binding.Bind(m.binding, nil, fn))
	}

	if len(man.Routes) == 0 {
		if fallback == nil {
			return nil, errNoHandler
		}
		return fallback, nil
	}

	mux := chi.NewRouter()
	for _, r := range man.Routes {
		key, ok := route.ParseKey(r.Method + " " + r.Path)
		if !ok {
			return nil, fmt.Errorf("%w: invalid route %q %q", errNoHandler, r.Method, r.Path)
		}
		if r.Status != 0 && (r.Status < 100 || r.Status > 599) {
			return nil, fmt.Errorf("%w: invalid status %d for %s", errNoHandler, r.Status, key)
		}

		h := response.Static(r.Status, r.Body)
		path := prefix + route.RouterPath(key.Path)
		if key.Path == "/" {
			mux.Method(key.Method, prefix, h)
		}
		mux.Method(key.Method, path, h)
	}
	if fallback != nil {
		mux.NotFound(fallback.ServeHTTP)
		mux.MethodNotAllowed(fallback.ServeHTTP)
	}
	return mux, nil
}
