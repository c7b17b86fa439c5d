package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"musallago/pkg/geo"
	"musallago/pkg/model"
)

// PlaceResolver is the subset of places.Service the HTTP layer needs.
type PlaceResolver interface {
	GetNearby(ctx context.Context, user geo.Point, radiusM float64) []model.Place
	HasCachedCatalog(ctx context.Context) bool
	GetPlaceByID(ctx context.Context, id string) (*model.Place, bool)
}

// PlacesHandler serves nearby search and place detail.
type PlacesHandler struct {
	resolver      PlaceResolver
	defaultRadius float64
}

// NewPlacesHandler creates a handler. defaultRadius applies when the request omits radius.
func NewPlacesHandler(r PlaceResolver, defaultRadius float64) *PlacesHandler {
	return &PlacesHandler{resolver: r, defaultRadius: defaultRadius}
}

// NearbyResponse is the body of GET /api/places/nearby.
type NearbyResponse struct {
	Places  []model.Place `json:"places"`
	Count   int           `json:"count"`
	RadiusM float64       `json:"radius_m"`
	// CachedCatalog tells an empty result apart: offline with no data vs nothing nearby.
	CachedCatalog bool `json:"cached_catalog"`
}

// HandleNearby handles GET /api/places/nearby?lat=&lon=&radius=.
func (h *PlacesHandler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, err := parsePoint(q, "lat", "lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radius, err := parseRadius(q, "radius", h.defaultRadius)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found := h.resolver.GetNearby(r.Context(), user, radius)
	slog.Debug("Nearby places served", "origin", user.String(), "radius_m", radius, "count", len(found))

	writeJSON(w, http.StatusOK, NearbyResponse{
		Places:        found,
		Count:         len(found),
		RadiusM:       radius,
		CachedCatalog: h.resolver.HasCachedCatalog(r.Context()),
	})
}

// HandlePlace handles GET /api/places/{id}.
func (h *PlacesHandler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid place id", http.StatusBadRequest)
		return
	}

	p, ok := h.resolver.GetPlaceByID(r.Context(), id)
	if !ok {
		http.Error(w, "place not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
