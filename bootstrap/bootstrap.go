// Package bootstrap wires configuration, logging, the data layer and the
// route mounter around a host application. It is the entry point of the
// library:
//
//	inst, err := bootstrap.New(router.New(mux), bootstrap.Options{AppRoot: "."})
//	...
//	models, apis, err := inst.Autowire(ctx, bootstrap.AutowireOptions{})
package bootstrap

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/artpar/modelwire/adapters/hasher"
	"github.com/artpar/modelwire/adapters/metrics"
	"github.com/artpar/modelwire/adapters/sqlite"
	"github.com/artpar/modelwire/config"
	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/binding"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/artpar/modelwire/core/loader"
	"github.com/artpar/modelwire/core/mount"
	"github.com/artpar/modelwire/core/schema"
	"github.com/artpar/modelwire/ports"
	"github.com/rs/zerolog"
)

// Options configure an Instance.
type Options struct {
	// AppRoot resolves every relative path. Defaults to the working directory.
	AppRoot string

	// ConfigRoot is the configuration directory, "config" when empty.
	ConfigRoot string

	// Profile selects the profile overlay. Falls back to MODELWIRE_PROFILE.
	Profile string

	// LogLevel overrides the configured log level.
	LogLevel string

	// LogOutput receives log lines. Defaults to stdout.
	LogOutput io.Writer

	// Metrics overrides the collector created when metrics are enabled.
	Metrics *metrics.Collector

	// DataLayer is passed to the data-layer registry.
	DataLayer []datalayer.Option
}

// ModelOptions control Models.
type ModelOptions struct {
	// Paths are the model directories, loader.DefaultPaths when empty.
	Paths []string
}

// RouteOptions control Routes.
type RouteOptions struct {
	// Root is the URL prefix, "/api" when empty.
	Root string

	// Path is the directory scanned for API modules, "routes/api" when empty.
	Path string

	// APIs replaces the directory scan when non-nil.
	APIs []mount.API
}

// AutowireOptions control Autowire.
type AutowireOptions struct {
	Models ModelOptions
	Routes RouteOptions
}

// Instance owns the configuration, logger, data layer and handler registry
// used to wire an application.
type Instance struct {
	app      ports.App
	root     string
	config   *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Collector
	registry *datalayer.Registry
	handlers *binding.Handlers
}

// New creates an instance for app. A nil app is rejected.
func New(app ports.App, opts Options) (*Instance, error) {
	if app == nil {
		return nil, apperr.New(apperr.KindInvalidApp, "Invalid app passed!")
	}

	root := opts.AppRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDirectory, err, "Unable to resolve app root")
		}
		root = wd
	}

	cfg, err := config.Load(root, opts.ConfigRoot, opts.Profile)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(out, level, cfg.Logging.Format)

	m := opts.Metrics
	if m == nil && cfg.Metrics.Enabled {
		m = metrics.New()
	}

	dlOpts := append([]datalayer.Option{
		datalayer.WithAdapter("sqlite", openSQLite),
		datalayer.WithHasher(hasher.NewBcrypt(cfg.Security.BcryptCost)),
	}, opts.DataLayer...)

	inst := &Instance{
		app:      app,
		root:     root,
		config:   cfg,
		logger:   logger,
		metrics:  m,
		registry: datalayer.NewRegistry(logger, dlOpts...),
		handlers: binding.NewHandlers(),
	}

	logger.Debug().
		Str("root", root).
		Str("profile", cfg.Profile).
		Bool("metrics", m != nil).
		Msg("modelwire initialized")
	return inst, nil
}

func openSQLite(ctx context.Context, conn config.Connection) (ports.Adapter, error) {
	db, err := sqlite.Open(conn.DSN)
	if err != nil {
		return nil, err
	}
	return sqlite.NewAdapter(db), nil
}

// NewLogger creates a timestamped logger writing JSON, or human readable
// lines when format is "console". An unknown level means debug.
func NewLogger(out io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.DebugLevel
	}

	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Handle registers a named handler for custom routes and API manifests.
// Handlers must be registered before the models referring to them load.
func (i *Instance) Handle(name string, fn binding.HandlerFunc) error {
	return i.handlers.Register(name, fn)
}

// Define registers a model defined in code. It takes effect on the next
// Models call. Handlers named by its custom routes must already be registered.
func (i *Instance) Define(def schema.Definition) error {
	m := def.ModelDefinition()
	if err := schema.Validate(m); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, err.Error())
	}
	if err := loader.CheckHandlers(m, i.handlers); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, err.Error())
	}
	i.registry.LoadCollection(m)
	return nil
}

// Models loads the model directories and initializes the data layer. It
// returns the names of every registered model.
func (i *Instance) Models(ctx context.Context, opts ModelOptions) ([]string, error) {
	l := loader.New(i.registry, i.handlers, i.config.DataLayer, i.metrics, i.logger)
	return l.Load(ctx, i.root, opts.Paths)
}

// Routes mounts the API modules and attaches the routes of every loaded
// model. It returns the bases of the mounted APIs.
func (i *Instance) Routes(ctx context.Context, opts RouteOptions) ([]string, error) {
	b := &binding.Context{
		Config: i.config,
		Logger: i.logger,
		Models: i.registry.Collections(),
	}
	m := mount.New(i.app, b, i.handlers,
		mount.WithMetrics(i.metrics),
		mount.WithPoweredBy(i.config.Server.PoweredByEnabled()),
	)
	return m.Mount(ctx, mount.Options{
		RootDir: i.root,
		Root:    opts.Root,
		Path:    opts.Path,
		APIs:    opts.APIs,
	})
}

// Autowire runs Models then Routes.
func (i *Instance) Autowire(ctx context.Context, opts AutowireOptions) ([]string, []string, error) {
	models, err := i.Models(ctx, opts.Models)
	if err != nil {
		return nil, nil, err
	}
	apis, err := i.Routes(ctx, opts.Routes)
	if err != nil {
		return models, nil, err
	}
	return models, apis, nil
}

// Config returns the loaded configuration.
func (i *Instance) Config() *config.Config { return i.config }

// Logger returns the instance logger.
func (i *Instance) Logger() zerolog.Logger { return i.logger }

// Metrics returns the metrics collector, nil when metrics are disabled.
func (i *Instance) Metrics() *metrics.Collector { return i.metrics }

// Collections returns the live collections of the last Models call.
func (i *Instance) Collections() *datalayer.Collections { return i.registry.Collections() }

// Definitions returns every registered model definition.
func (i *Instance) Definitions() []schema.Model { return i.registry.Definitions() }

// Handlers returns the handler registry.
func (i *Instance) Handlers() *binding.Handlers { return i.handlers }

// Root returns the app root.
func (i *Instance) Root() string { return i.root }

// Close releases the data-layer connections.
func (i *Instance) Close() error {
	return i.registry.Close()
}
