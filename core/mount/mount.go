// Package mount discovers versioned API modules, mounts their handlers on
// the application and attaches the route table of every loaded model below
// each API.
package mount

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/artpar/modelwire/adapters/metrics"
	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/binding"
	"github.com/artpar/modelwire/core/crud"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/artpar/modelwire/core/response"
	"github.com/artpar/modelwire/core/route"
	"github.com/artpar/modelwire/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRoot is the URL prefix APIs are mounted below.
	DefaultRoot = "/api"

	// DefaultPath is the directory scanned for API modules.
	DefaultPath = "routes/api"

	// PoweredBy is the X-Powered-By header value.
	PoweredBy = "modelwire"
)

var versionPattern = regexp.MustCompile(`^v\d+$`)

// API describes one API module.
type API struct {
	// Base is used verbatim as the URL segment when set.
	Base string `yaml:"base" json:"base"`

	// Version is used as the base when Base is empty and it looks like v1.
	Version string `yaml:"version" json:"version"`

	// Path is the module directory, relative to the root directory.
	Path string `yaml:"path" json:"path"`
}

// Options control a Mount call.
type Options struct {
	// RootDir resolves relative paths.
	RootDir string

	// Root is the URL prefix, DefaultRoot when empty.
	Root string

	// Path is the directory scanned when APIs is nil, DefaultPath when empty.
	Path string

	// APIs replaces the directory scan.
	APIs []API
}

// Option configures a Mounter.
type Option func(*Mounter)

// WithMetrics instruments every attached route.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Mounter) { m.metrics = c }
}

// WithPoweredBy toggles the X-Powered-By header.
func WithPoweredBy(enabled bool) Option {
	return func(m *Mounter) { m.poweredBy = enabled }
}

// Mounter attaches API modules and model routes to an application.
type Mounter struct {
	app       ports.App
	binding   *binding.Context
	handlers  *binding.Handlers
	metrics   *metrics.Collector
	poweredBy bool
	logger    zerolog.Logger
}

// New creates a mounter. Handlers are looked up in handlers; b is passed to
// every bound handler.
func New(app ports.App, b *binding.Context, handlers *binding.Handlers, opts ...Option) *Mounter {
	if handlers == nil {
		handlers = binding.NewHandlers()
	}
	m := &Mounter{
		app:       app,
		binding:   b,
		handlers:  handlers,
		poweredBy: true,
		logger:    b.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NormalizeRoot returns root with a leading and a trailing slash.
func NormalizeRoot(root string) string {
	if root == "" {
		root = DefaultRoot
	}
	root = strings.Trim(root, "/")
	if root == "" {
		return "/"
	}
	return "/" + root + "/"
}

// Mount mounts every API module and returns the bases of those that
// succeeded, in descriptor order. A failing module is logged and skipped;
// only an unreadable API directory fails the call.
func (m *Mounter) Mount(ctx context.Context, opts Options) ([]string, error) {
	root := NormalizeRoot(opts.Root)

	apis, err := m.discover(opts)
	if err != nil {
		return nil, err
	}

	results := make([]error, len(apis))
	var g errgroup.Group
	for i, api := range apis {
		g.Go(func() error {
			results[i] = m.mountSafe(ctx, root, api)
			return nil
		})
	}
	g.Wait()

	var bases []string
	for i, api := range apis {
		if err := results[i]; err != nil {
			m.logger.Warn().Msgf("Unable to load API [%s,%s]", api.Base, api.Path)
			m.logger.Debug().Err(err).Str("base", api.Base).Str("path", api.Path).Msg("API load failure")
			if m.metrics != nil {
				m.metrics.APILoadFailures.Inc()
			}
			continue
		}
		bases = append(bases, api.Base)
	}

	if len(bases) == 0 {
		m.logger.Debug().Msg("No APIs found to load")
	} else {
		m.logger.Debug().Msgf("Loaded APIs: %v", bases)
	}
	if m.metrics != nil {
		m.metrics.APIsMounted.Set(float64(len(bases)))
	}
	return bases, nil
}

// discover resolves the API descriptors of opts.
func (m *Mounter) discover(opts Options) ([]API, error) {
	if opts.APIs != nil {
		apis := make([]API, 0, len(opts.APIs))
		for _, api := range opts.APIs {
			resolved, ok := resolveAPI(opts.RootDir, api)
			if !ok {
				m.logger.Debug().Str("version", api.Version).Str("path", api.Path).Msg("skipping API with invalid version")
				continue
			}
			apis = append(apis, resolved)
		}
		return apis, nil
	}

	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	dir := resolve(opts.RootDir, path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Directory("Unable to read API directory: ", dir, err)
	}

	var apis []API
	for _, entry := range entries {
		if versionPattern.MatchString(entry.Name()) {
			apis = append(apis, API{Base: entry.Name(), Path: filepath.Join(dir, entry.Name())})
		}
	}
	return apis, nil
}

// resolveAPI applies the base precedence of explicit descriptors: a literal
// base, then a v<digits> version, then the directory name. A descriptor with
// any other version is dropped.
func resolveAPI(rootDir string, api API) (API, bool) {
	api.Path = resolve(rootDir, api.Path)
	switch {
	case api.Base != "":
	case api.Version != "":
		if !versionPattern.MatchString(api.Version) {
			return API{}, false
		}
		api.Base = api.Version
	default:
		api.Base = filepath.Base(api.Path)
	}
	return api, true
}

// mountSafe mounts one API, turning a panic into an error.
func (m *Mounter) mountSafe(ctx context.Context, root string, api API) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic mounting API %s: %v", api.Base, r)
		}
	}()
	return m.mountOne(ctx, root, api)
}

func (m *Mounter) mountOne(ctx context.Context, root string, api API) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(api.Path)
	if err != nil {
		return apperr.Directory("Unable to read API directory: ", api.Path, err)
	}
	if !info.IsDir() {
		return apperr.Directory("Unable to read API directory: ", api.Path, fmt.Errorf("not a directory"))
	}

	man, _, err := ReadManifest(api.Path)
	if err != nil {
		return err
	}

	prefix := strings.TrimSuffix(root+api.Base, "/")
	h, err := m.handler(man, prefix)
	if err != nil {
		return err
	}

	// A failing descriptor registers nothing: tables resolve before the first
	// registration.
	cols := m.binding.Models.All()
	tables := make([]*crud.Table, len(cols))
	for i, col := range cols {
		table, err := m.Table(col)
		if err != nil {
			return fmt.Errorf("attach %s: %w", col.Name(), err)
		}
		tables[i] = table
	}

	m.app.Mount(prefix, m.poweredByHeader(h))
	for i, col := range cols {
		m.attach(prefix, col, tables[i])
	}
	return nil
}

// Table returns the active route table of col: the defaults overlaid by its
// custom routes, filtered by its includes and excludes.
func (m *Mounter) Table(col *datalayer.Collection) (*crud.Table, error) {
	model := col.Model()

	custom := route.NewTable[binding.HandlerFunc]()
	for _, cr := range model.CustomRoutes {
		if cr.IsStatic() {
			custom.Set(cr.Key, binding.FromHTTP(response.Static(cr.Status, cr.Body)))
			continue
		}
		fn, ok := m.handlers.Get(cr.Handler)
		if !ok {
			return nil, fmt.Errorf("route %q references unknown handler %q", cr.Key, cr.Handler)
		}
		custom.Set(cr.Key, fn)
	}

	return route.Merge(crud.Defaults(), custom).Filter(model.Includes, model.Excludes), nil
}

func (m *Mounter) attach(prefix string, col *datalayer.Collection, table *crud.Table) {
	col.SetRoutes(table.Keys())

	base := prefix + "/" + col.Name()
	for _, e := range table.Entries() {
		key, _ := route.ParseKey(e.Key)

		var h http.Handler = binding.ParseBody(binding.Bind(m.binding, col, e.Handler))
		h = m.metrics.Instrument(col.Name(), e.Key, h)
		h = m.poweredByHeader(h)

		if key.Path == "/" {
			m.app.Method(key.Method, base, h)
		}
		m.app.Method(key.Method, base+route.RouterPath(key.Path), h)
	}

	if m.metrics != nil {
		m.metrics.RoutesAttached.WithLabelValues(col.Name()).Set(float64(table.Len()))
	}
	m.logger.Debug().Str("model", col.Name()).Strs("routes", table.Keys()).Str("base", base).Msg("routes attached")
}

func (m *Mounter) poweredByHeader(next http.Handler) http.Handler {
	if !m.poweredBy {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Powered-By", PoweredBy)
		next.ServeHTTP(w, r)
	})
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}
