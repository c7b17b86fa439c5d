package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"musallago/pkg/cache"
	"musallago/pkg/config"
	"musallago/pkg/db"
	"musallago/pkg/directions"
	"musallago/pkg/logging"
	"musallago/pkg/places"
	"musallago/pkg/probe"
	"musallago/pkg/remote"
	"musallago/pkg/request"
	"musallago/pkg/store"
	"musallago/pkg/tracker"
)

// App holds the wired services shared by every command.
type App struct {
	Cfg          *config.Config
	Store        *store.SQLiteStore
	Cache        *cache.Store
	Client       *request.Client
	Tracker      *tracker.Tracker
	Places       *places.Service
	Directions   *directions.Service
	Connectivity *probe.Connectivity
}

// newApp opens the database, validates the cache schema and builds the resolvers.
// The returned cleanup waits for background prefetches before closing the store.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.NewSQLiteStore(dbConn)

	cs := cache.New(st,
		cache.WithSchemaVersion(cfg.Cache.SchemaVersion),
		cache.WithLogger(logger.With("component", "cache")),
	)
	if err := cs.Init(ctx); err != nil {
		_ = cs.Close()
		return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	client := request.New(request.ClientConfig{
		Timeout:   time.Duration(cfg.Request.Timeout),
		Retries:   cfg.Request.Retries,
		BaseDelay: time.Duration(cfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(cfg.Request.Backoff.MaxDelay),
		MinGap:    time.Duration(cfg.Request.MinGap),
	})
	client.SetLogger(logging.RequestLogger)

	if cfg.Places.BaseURL == "" {
		logger.Warn("No places backend configured, serving from cache only", "env", config.EnvPlacesURL)
	}
	if cfg.Routing.Key == "" {
		logger.Warn("No routing key configured, directions will be approximate", "env", config.EnvMapsKey)
	}

	tr := tracker.New()
	placeSrc := remote.NewRestPlaceSource(client, cfg.Places.BaseURL, cfg.Places.Key, logger.With("component", "places_backend"))
	routeSrc := remote.NewGoogleDirections(client, cfg.Routing.BaseURL, cfg.Routing.Key, cfg.Routing.Mode)

	placeSvc := places.NewService(placeSrc,
		cache.NewPlaceCache(cs, time.Duration(cfg.Cache.PlacesTTL)),
		cache.NewLocationCache(cs, time.Duration(cfg.Cache.LocationTTL)),
		tr,
		logger.With("component", "places"),
		places.WithPrefetch(cfg.Places.PrefetchRadiiMeters(), cfg.Places.PrefetchThreshold),
		places.WithPrefetchTimeout(time.Duration(cfg.Places.PrefetchTimeout)),
	)

	dirSvc := directions.NewService(routeSrc,
		cache.NewRouteCache(cs, time.Duration(cfg.Cache.DirectionsTTL)),
		tr,
		logger.With("component", "directions"),
		directions.Options{
			Timeout:         time.Duration(cfg.Routing.Timeout),
			SyntheticPoints: cfg.Routing.SyntheticPoints,
		},
	)

	conn := probe.NewConnectivity(cfg.Connectivity.URL, time.Duration(cfg.Connectivity.Timeout), logger.With("component", "connectivity"))

	app := &App{
		Cfg:          cfg,
		Store:        st,
		Cache:        cs,
		Client:       client,
		Tracker:      tr,
		Places:       placeSvc,
		Directions:   dirSvc,
		Connectivity: conn,
	}
	cleanup := func() {
		placeSvc.Wait()
		if err := cs.Close(); err != nil {
			logger.Error("Failed to close cache store", "error", err)
		}
	}
	return app, cleanup, nil
}

// startupProbes lists the checks run before serving. Only the store is critical;
// the app is expected to start offline.
func (a *App) startupProbes() []probe.Probe {
	return []probe.Probe{
		{
			Name:     "Cache Store",
			Check:    a.Store.Ping,
			Critical: true,
		},
		{
			Name:     "Connectivity",
			Check:    a.Connectivity.Check,
			Timeout:  time.Duration(a.Cfg.Connectivity.Timeout) + time.Second,
			Critical: false,
		},
	}
}

// backends are the request client provider names reported by /api/stats.
var backends = []string{"supabase", "google-maps"}
