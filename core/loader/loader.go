// Package loader discovers model definition files and registers them with
// the data layer.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/modelwire/adapters/metrics"
	"github.com/artpar/modelwire/config"
	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/artpar/modelwire/core/schema"
	"github.com/rs/zerolog"
)

// DefaultPaths are scanned when no model paths are given.
var DefaultPaths = []string{"models"}

// HandlerSet reports whether a named handler is registered.
type HandlerSet interface {
	Has(name string) bool
}

// Loader loads model directories into a data-layer registry.
type Loader struct {
	registry *datalayer.Registry
	handlers HandlerSet
	config   config.DataLayerConfig
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// New creates a loader. handlers may be nil, in which case every custom
// route naming a handler is rejected. m may be nil.
func New(registry *datalayer.Registry, handlers HandlerSet, cfg config.DataLayerConfig, m *metrics.Collector, logger zerolog.Logger) *Loader {
	return &Loader{
		registry: registry,
		handlers: handlers,
		config:   cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Load scans paths relative to rootDir, registers every valid definition and
// initializes the data layer once. It returns the collection names in
// registration order.
func (l *Loader) Load(ctx context.Context, rootDir string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	for _, p := range paths {
		if err := l.loadDir(ctx, resolve(rootDir, p)); err != nil {
			return nil, err
		}
	}

	collections, err := l.registry.Initialize(ctx, l.config)
	if err != nil {
		return nil, err
	}

	names := collections.Names()
	if len(names) == 0 {
		l.logger.Debug().Msg("No models found to load")
	} else {
		l.logger.Debug().Msgf("Loaded models: %v", names)
	}
	if l.metrics != nil {
		l.metrics.ModelsLoaded.Set(float64(len(names)))
	}
	return names, nil
}

func (l *Loader) loadDir(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return apperr.Directory("Unable to read model directory: ", dir, err)
	}
	if !info.IsDir() {
		return apperr.Directory("Unable to read model directory: ", dir, fmt.Errorf("not a directory"))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperr.Directory("Unable to read model directory: ", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !schema.IsDefinitionFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		model, err := l.parse(path)
		if err != nil {
			l.logger.Warn().Msgf("Unable to load model: %s", path)
			l.logger.Debug().Err(err).Str("path", path).Msg("model load failure")
			if l.metrics != nil {
				l.metrics.ModelLoadFailures.Inc()
			}
			continue
		}

		l.registry.LoadCollection(model)
		l.logger.Debug().Str("model", model.Identity).Str("path", path).Msg("model registered")
	}
	return nil
}

func (l *Loader) parse(path string) (schema.Model, error) {
	model, err := schema.ParseFile(path)
	if err != nil {
		return schema.Model{}, err
	}

	if err := CheckHandlers(model, l.handlers); err != nil {
		return schema.Model{}, err
	}
	return model, nil
}

// CheckHandlers reports the first custom route of model naming a handler
// missing from handlers. A nil set has no handlers.
func CheckHandlers(model schema.Model, handlers HandlerSet) error {
	for _, cr := range model.CustomRoutes {
		if cr.IsStatic() {
			continue
		}
		if handlers == nil || !handlers.Has(cr.Handler) {
			return fmt.Errorf("route %q references unknown handler %q", cr.Key, cr.Handler)
		}
	}
	return nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}
