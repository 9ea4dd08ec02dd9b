package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/finance-capture/internal/api"
	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/metrics"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve capture sessions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides server.port)")
	return cmd
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close resources")
		}
	}()

	recorder := metrics.NewRecorder()
	deps := a.deps
	deps.Observer = recorder
	registry := capture.NewRegistry(deps)

	handler := api.NewRouter(api.Deps{
		Registry: registry,
		Ledger:   a.store,
		Settings: prefs,
		Metrics:  recorder.Handler(),
		Logger:   log,
	})

	// WriteTimeout leaves room for ?wait=true on a full extraction.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Extraction.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("provider", cfg.Extraction.Provider).
			Str("ledger", cfg.Ledger.Driver).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	registry.CloseAll()

	log.Info().Msg("Server exited")
	return nil
}
