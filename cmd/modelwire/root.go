package main

import (
	"fmt"
	"os"

	"github.com/artpar/modelwire/adapters/router"
	"github.com/artpar/modelwire/bootstrap"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	appRoot    string
	configRoot string
	profile    string
	logLevel   string
	modelPaths []string
	apiRoot    string
	apiPath    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modelwire",
	Short: "Convention-driven REST routes for model definitions",
	Long: `modelwire discovers model definitions and versioned API modules from a
directory layout and serves a CRUD route surface for every model.

Layout:
  config/default.yaml       # configuration, overlaid by config/<profile>.yaml
  models/*.yaml             # model definitions
  routes/api/v1/api.yaml    # API module manifests

Commands:
  modelwire serve     # Start the HTTP server
  modelwire routes    # Print the attached routes
  modelwire validate  # Validate configuration and model definitions`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&appRoot, "root", "r", ".", "application root directory")
	flags.StringVar(&configRoot, "config-dir", "config", "configuration directory, relative to the root")
	flags.StringVarP(&profile, "profile", "p", "", "configuration profile (default $MODELWIRE_PROFILE or \"default\")")
	flags.StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flags.StringSliceVar(&modelPaths, "models", nil, "model directories, relative to the root (default models)")
	flags.StringVar(&apiRoot, "api-root", "/api", "URL prefix APIs are mounted below")
	flags.StringVar(&apiPath, "api-dir", "routes/api", "directory scanned for API modules")
}

// wire creates an instance on a fresh chi router and autowires it.
func wire(cmd *cobra.Command) (*bootstrap.Instance, chi.Router, error) {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID, middleware.Recoverer)

	inst, err := bootstrap.New(router.New(mux), bootstrap.Options{
		AppRoot:    appRoot,
		ConfigRoot: configRoot,
		Profile:    profile,
		LogLevel:   logLevel,
		LogOutput:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}

	_, _, err = inst.Autowire(cmd.Context(), bootstrap.AutowireOptions{
		Models: bootstrap.ModelOptions{Paths: modelPaths},
		Routes: bootstrap.RouteOptions{Root: apiRoot, Path: apiPath},
	})
	if err != nil {
		inst.Close()
		return nil, nil, err
	}
	return inst, mux, nil
}
