package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"musallago/pkg/version"
)

// Handlers groups every handler the server mounts. Nil handlers are skipped.
type Handlers struct {
	Places       *PlacesHandler
	Directions   *DirectionsHandler
	Cache        *CacheHandler
	Connectivity *ConnectivityHandler
	Stats        *StatsHandler
	Metrics      http.Handler
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health + version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Diagnostics
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// 3. Places
	if h.Places != nil {
		mux.HandleFunc("GET /api/places/nearby", h.Places.HandleNearby)
		mux.HandleFunc("GET /api/places/{id}", h.Places.HandlePlace)
	}

	// 4. Directions
	if h.Directions != nil {
		mux.HandleFunc("GET /api/directions", h.Directions.HandleDirections)
	}

	// 5. Offline cache management
	if h.Cache != nil {
		mux.HandleFunc("POST /api/cache/prefetch", h.Cache.HandlePrefetch)
		mux.HandleFunc("GET /api/cache/stats", h.Cache.HandleStats)
		mux.HandleFunc("DELETE /api/cache", h.Cache.HandleClearAll)
		mux.HandleFunc("DELETE /api/cache/places", h.Cache.HandleClearPlaces)
	}

	// 6. Connectivity
	if h.Connectivity != nil {
		mux.HandleFunc("GET /api/offline", h.Connectivity.HandleOffline)
		mux.Handle("GET /api/ws/connectivity", h.Connectivity.Hub())
	}

	// 7. Shutdown
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Directions may wait on the routing provider for its full timeout.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
