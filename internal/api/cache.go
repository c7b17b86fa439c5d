package api

import (
	"context"
	"log/slog"
	"net/http"

	"musallago/pkg/geo"
	"musallago/pkg/model"
)

// PlaceCacheManager covers the proactive prefetch and place cache maintenance.
type PlaceCacheManager interface {
	StartProactiveCache(ctx context.Context, user geo.Point) bool
	CacheStats(ctx context.Context) model.CacheStats
	ClearPlaces(ctx context.Context) error
}

// CacheClearer wipes every cached entry.
type CacheClearer interface {
	ClearAll(ctx context.Context) error
}

// CacheHandler exposes the offline cache to the settings screen.
type CacheHandler struct {
	places PlaceCacheManager
	store  CacheClearer
}

func NewCacheHandler(p PlaceCacheManager, s CacheClearer) *CacheHandler {
	return &CacheHandler{places: p, store: s}
}

// HandlePrefetch handles POST /api/cache/prefetch?lat=&lon=.
// The prefetch outlives the request; started is false when one is already running.
func (h *CacheHandler) HandlePrefetch(w http.ResponseWriter, r *http.Request) {
	user, err := parsePoint(r.URL.Query(), "lat", "lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	started := h.places.StartProactiveCache(r.Context(), user)
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

// HandleStats handles GET /api/cache/stats.
func (h *CacheHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.places.CacheStats(r.Context()))
}

// HandleClearAll handles DELETE /api/cache.
func (h *CacheHandler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		slog.Error("Failed to clear cache", "error", err)
		http.Error(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}
	slog.Info("Cache cleared via API")
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearPlaces handles DELETE /api/cache/places.
func (h *CacheHandler) HandleClearPlaces(w http.ResponseWriter, r *http.Request) {
	if err := h.places.ClearPlaces(r.Context()); err != nil {
		slog.Error("Failed to clear place cache", "error", err)
		http.Error(w, "failed to clear place cache", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
