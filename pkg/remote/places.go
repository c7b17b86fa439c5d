// Package remote holds the clients for the two network collaborators:
// the place catalog backend and the walking-directions provider.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"musallago/pkg/geo"
	"musallago/pkg/model"
	"musallago/pkg/request"
)

// ErrNotFound is returned when the backend has no row for the requested id.
var ErrNotFound = errors.New("place not found")

// PlaceSource yields place records from the backend.
type PlaceSource interface {
	FetchAllPlaces(ctx context.Context) ([]model.Place, error)
	PlaceDetail(ctx context.Context, id string) (*model.Place, error)
}

// PlaceRecord is the row shape returned by the places table.
type PlaceRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	City      string    `json:"city"`
	Capacity  *int      `json:"capacity"`
	Amenities []string  `json:"amenities"`
	Photo     *string   `json:"photo"`
	AvgRating *float64  `json:"avg_rating"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPlace maps the row to the domain type.
func (r *PlaceRecord) ToPlace() model.Place {
	p := model.Place{
		ID:        r.ID,
		Title:     strings.TrimSpace(r.Title),
		Type:      model.ParsePlaceType(r.Type),
		Lat:       r.Latitude,
		Lon:       r.Longitude,
		City:      r.City,
		Capacity:  r.Capacity,
		Amenities: model.NewAmenities(r.Amenities...),
		AvgRating: r.AvgRating,
		CreatedAt: r.CreatedAt,
	}
	if r.Photo != nil {
		p.Photo = *r.Photo
	}
	return p
}

// RestPlaceSource reads the catalog from a PostgREST endpoint.
type RestPlaceSource struct {
	client  *request.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewRestPlaceSource creates a source rooted at baseURL (the project URL, without /rest/v1).
func NewRestPlaceSource(client *request.Client, baseURL, apiKey string, logger *slog.Logger) *RestPlaceSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RestPlaceSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (s *RestPlaceSource) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if s.apiKey != "" {
		h["apikey"] = s.apiKey
		h["Authorization"] = "Bearer " + s.apiKey
	}
	return h
}

func (s *RestPlaceSource) fetch(ctx context.Context, query url.Values) ([]model.Place, error) {
	u := fmt.Sprintf("%s/rest/v1/places?%s", s.baseURL, query.Encode())
	body, err := s.client.GetWithHeaders(ctx, u, s.headers())
	if err != nil {
		return nil, err
	}

	var rows []PlaceRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, request.Malformed("places", fmt.Errorf("failed to decode places: %w", err))
	}

	out := make([]model.Place, 0, len(rows))
	for i := range rows {
		if rows[i].ID == "" {
			s.logger.Warn("Skipping place without id", "title", rows[i].Title)
			continue
		}
		p := rows[i].ToPlace()
		if err := geo.ValidatePoint(p.Point()); err != nil {
			s.logger.Warn("Skipping place with invalid coordinates", "id", p.ID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// FetchAllPlaces returns the full catalog. Filtering by radius happens client-side.
func (s *RestPlaceSource) FetchAllPlaces(ctx context.Context) ([]model.Place, error) {
	places, err := s.fetch(ctx, url.Values{"select": {"*"}})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Fetched place catalog", "count", len(places))
	return places, nil
}

// PlaceDetail returns a single place or ErrNotFound.
func (s *RestPlaceSource) PlaceDetail(ctx context.Context, id string) (*model.Place, error) {
	places, err := s.fetch(ctx, url.Values{"select": {"*"}, "id": {"eq." + id}})
	if err != nil {
		return nil, err
	}
	for i := range places {
		if places[i].ID == id {
			return &places[i], nil
		}
	}
	return nil, ErrNotFound
}
