package api

import (
	"context"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"musallago/pkg/directions"
	"musallago/pkg/geo"
)

// RouteResolver is the subset of directions.Service the HTTP layer needs.
type RouteResolver interface {
	Route(ctx context.Context, origin, dest geo.Point) directions.Result
}

// DirectionsHandler serves routes as GeoJSON for the map view.
type DirectionsHandler struct {
	resolver RouteResolver
}

func NewDirectionsHandler(r RouteResolver) *DirectionsHandler {
	return &DirectionsHandler{resolver: r}
}

// DirectionsResponse is the body of GET /api/directions.
type DirectionsResponse struct {
	Source        directions.Source          `json:"source"`
	DistanceM     float64                    `json:"distance_m"`
	Distance      string                     `json:"distance"`
	StraightLineM float64                    `json:"straight_line_m"`
	Route         *geojson.FeatureCollection `json:"route"`
	Instructions  []string                   `json:"instructions"`
}

// HandleDirections handles GET /api/directions?from_lat=&from_lon=&to_lat=&to_lon=&name=.
func (h *DirectionsHandler) HandleDirections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, err := parsePoint(q, "from_lat", "from_lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dest, err := parsePoint(q, "to_lat", "to_lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := h.resolver.Route(r.Context(), origin, dest)
	fc := geo.RouteFeatureCollection(res.Points, map[string]interface{}{
		"source":     string(res.Source),
		"distance_m": res.DistanceM,
	})

	writeJSON(w, http.StatusOK, DirectionsResponse{
		Source:        res.Source,
		DistanceM:     res.DistanceM,
		Distance:      directions.FormatDistance(res.DistanceM),
		StraightLineM: geo.Distance(origin, dest),
		Route:         fc,
		Instructions:  directions.OfflineInstructions(origin, dest, q.Get("name")),
	})
}
