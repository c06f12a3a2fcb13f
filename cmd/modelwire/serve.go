package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Load the models and API modules below the root directory and serve
their routes.

Environment variables:
  MODELWIRE_PROFILE              - Configuration profile
  MODELWIRE_SERVER_HOST          - Listen host (default: 0.0.0.0)
  MODELWIRE_SERVER_PORT          - Listen port (default: 1337)
  MODELWIRE_LOG_LEVEL            - Log level: debug, info, warn, error
  MODELWIRE_LOG_FORMAT           - Log format: console or json
  MODELWIRE_METRICS_ENABLED      - Serve Prometheus metrics
  MODELWIRE_DATALAYER_DSN        - SQLite DSN for the default connection

Examples:
  modelwire serve
  modelwire serve --root ./app --profile production
  modelwire serve --models models,extra_models --api-root /rest`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	inst, mux, err := wire(cmd)
	if err != nil {
		return err
	}
	defer inst.Close()

	cfg := inst.Config()
	logger := inst.Logger()

	if m := inst.Metrics(); m != nil {
		mux.Handle(cfg.Metrics.Path, m.Handler())
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
