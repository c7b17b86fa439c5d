package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"musallago/internal/api"
	"musallago/pkg/config"
	"musallago/pkg/logging"
	"musallago/pkg/probe"
	"musallago/pkg/version"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), c.configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Musallago Started", "version", version.Version)

	app, cleanup, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer cleanup()

	results := probe.Run(ctx, app.startupProbes())
	if err := probe.AnalyzeResults(slog.Default(), results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	hub := api.NewConnectivityHub(slog.With("component", "connectivity_ws"))
	go app.Connectivity.Watch(ctx, time.Duration(cfg.Connectivity.Interval), hub.Publish)

	// Refresh the offline catalog around the last known fix.
	if loc, ok := app.Places.LastLocation(ctx); ok {
		app.Places.StartProactiveCache(ctx, loc.Point)
	}

	metricsH, err := api.NewMetricsHandler(app.Tracker)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	quit := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(quit) }) }

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		Places:       api.NewPlacesHandler(app.Places, float64(cfg.Places.DefaultRadius)),
		Directions:   api.NewDirectionsHandler(app.Directions),
		Cache:        api.NewCacheHandler(app.Places, app.Cache),
		Connectivity: api.NewConnectivityHandler(app.Connectivity, hub),
		Stats:        api.NewStatsHandler(app.Tracker, app.Client.Backoff(), backends...),
		Metrics:      metricsH,
	}, shutdown)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit <-chan struct{}) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
