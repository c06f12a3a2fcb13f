// Package config provides configuration loading and validation.
//
// Configuration is read from <dir>/default.yaml and overlaid with
// <dir>/<profile>.yaml by a deep merge. Values are passed through untouched
// except for the sections below, which are decoded and defaulted. A Config is
// never mutated after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/modelwire/core/apperr"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when no profile is given.
const DefaultProfile = "default"

// DefaultDir is the configuration directory relative to the app root.
const DefaultDir = "config"

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	DataLayer DataLayerConfig `yaml:"datalayer"`
	Security  SecurityConfig  `yaml:"security"`

	// Profile is the profile the configuration was loaded for.
	Profile string `yaml:"-"`

	raw map[string]any
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// PoweredBy adds "X-Powered-By: modelwire" to attached routes.
	PoweredBy *bool `yaml:"powered_by"`
}

// PoweredByEnabled reports whether the X-Powered-By header is sent.
func (s ServerConfig) PoweredByEnabled() bool {
	return s.PoweredBy == nil || *s.PoweredBy
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// DataLayerConfig configures data-layer connections.
type DataLayerConfig struct {
	// MemoryFallback adds a "default" memory connection when none is
	// configured. Defaults to true.
	MemoryFallback *bool                 `yaml:"memory_fallback"`
	Connections    map[string]Connection `yaml:"connections"`
}

// MemoryFallbackEnabled reports whether the memory fallback applies.
func (d DataLayerConfig) MemoryFallbackEnabled() bool {
	return d.MemoryFallback == nil || *d.MemoryFallback
}

// Connection configures a single named data-layer connection.
type Connection struct {
	Adapter string `yaml:"adapter"` // "memory" or "sqlite"
	DSN     string `yaml:"dsn,omitempty"`
}

// SecurityConfig configures hashing of secret attributes.
type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// Load reads configuration for profile from dir. A relative dir is resolved
// against root. An empty profile falls back to MODELWIRE_PROFILE and then to
// DefaultProfile. A missing default file yields an empty configuration; a
// missing profile file is an error.
func Load(root, dir, profile string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if profile == "" {
		profile = os.Getenv("MODELWIRE_PROFILE")
	}
	if profile == "" {
		profile = DefaultProfile
	}

	merged, err := readTree(dir, DefaultProfile, false)
	if err != nil {
		return nil, err
	}
	if profile != DefaultProfile {
		overlay, err := readTree(dir, profile, true)
		if err != nil {
			return nil, err
		}
		merged = Merge(merged, overlay)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigLoad, err, "Unable to load config: "+err.Error())
	}
	cfg.Profile = profile
	return cfg, nil
}

// Default returns a configuration built only from defaults and environment
// overrides.
func Default() *Config {
	cfg, err := decode(map[string]any{})
	if err != nil {
		// Only environment overrides can fail validation here.
		cfg = &Config{raw: map[string]any{}}
		setDefaults(cfg)
	}
	cfg.Profile = DefaultProfile
	return cfg
}

// Parse builds a configuration from YAML bytes, as if it were the default
// profile file.
func Parse(data []byte) (*Config, error) {
	tree, err := parseTree(data)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(tree)
	if err != nil {
		return nil, err
	}
	cfg.Profile = DefaultProfile
	return cfg, nil
}

// readTree reads <dir>/<name>.{yaml,yml,json}.
func readTree(dir, name string, required bool) (map[string]any, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfigLoad, err, "Unable to read config: "+path).With("path", path)
		}

		tree, err := parseTree(data)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfigLoad, err, "Unable to parse config: "+path).With("path", path)
		}
		return tree, nil
	}

	if required {
		return nil, apperr.Newf(apperr.KindConfigLoad, "Unable to load config profile '%s' from %s", name, dir).With("path", dir)
	}
	return map[string]any{}, nil
}

func parseTree(data []byte) (map[string]any, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

func decode(tree map[string]any) (*Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.raw = tree

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Merge deep-merges overlay onto base and returns the result. Nested maps are
// merged; every other value in overlay replaces the one in base. Neither
// argument is modified.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		bm, bok := out[k].(map[string]any)
		om, ook := v.(map[string]any)
		if bok && ook {
			out[k] = Merge(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}

// Get returns the raw value at a dotted path such as "server.port".
func (c *Config) Get(path string) (any, bool) {
	var cur any = c.raw
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Raw returns a copy of the merged configuration tree.
func (c *Config) Raw() map[string]any {
	return Merge(map[string]any{}, c.raw)
}

// applyEnvOverrides applies MODELWIRE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("MODELWIRE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MODELWIRE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MODELWIRE_SERVER_POWERED_BY"); v != "" {
		b := parseBool(v)
		cfg.Server.PoweredBy = &b
	}

	// Logging configuration
	if v := os.Getenv("MODELWIRE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MODELWIRE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("MODELWIRE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MODELWIRE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Data layer configuration
	if v := os.Getenv("MODELWIRE_DATALAYER_MEMORY_FALLBACK"); v != "" {
		b := parseBool(v)
		cfg.DataLayer.MemoryFallback = &b
	}
	if v := os.Getenv("MODELWIRE_DATALAYER_DSN"); v != "" {
		conns := make(map[string]Connection, len(cfg.DataLayer.Connections)+1)
		for name, c := range cfg.DataLayer.Connections {
			conns[name] = c
		}
		conns["default"] = Connection{Adapter: "sqlite", DSN: v}
		cfg.DataLayer.Connections = conns
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1337
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = 10
	}

	for name, c := range cfg.DataLayer.Connections {
		if c.Adapter == "" {
			c.Adapter = "memory"
			cfg.DataLayer.Connections[name] = c
		}
	}
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, disabled")
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	return nil
}
