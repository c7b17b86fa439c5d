package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"musallago/pkg/geo"
	"musallago/pkg/request"
)

// DefaultDirectionsURL is the Directions API JSON endpoint.
const DefaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

// ErrNoRoute is returned when the provider answers but has no usable route.
var ErrNoRoute = errors.New("no route returned")

// RouteSource yields an encoded polyline between two points.
type RouteSource interface {
	FetchRoute(ctx context.Context, origin, dest geo.Point) (string, error)
}

// GoogleDirections calls the Directions API.
type GoogleDirections struct {
	client  *request.Client
	baseURL string
	apiKey  string
	mode    string
}

// NewGoogleDirections creates a route source. Empty baseURL and mode use the walking defaults.
func NewGoogleDirections(client *request.Client, baseURL, apiKey, mode string) *GoogleDirections {
	if baseURL == "" {
		baseURL = DefaultDirectionsURL
	}
	if mode == "" {
		mode = "walking"
	}
	return &GoogleDirections{client: client, baseURL: baseURL, apiKey: apiKey, mode: mode}
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

func latLng(p geo.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// FetchRoute returns routes[0].overview_polyline.points.
func (g *GoogleDirections) FetchRoute(ctx context.Context, origin, dest geo.Point) (string, error) {
	q := url.Values{}
	q.Set("origin", latLng(origin))
	q.Set("destination", latLng(dest))
	q.Set("mode", g.mode)
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	sep := "?"
	if strings.Contains(g.baseURL, "?") {
		sep = "&"
	}
	body, err := g.client.Get(ctx, g.baseURL+sep+q.Encode())
	if err != nil {
		return "", err
	}

	var resp directionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", request.Malformed("directions", fmt.Errorf("failed to decode directions: %w", err))
	}
	if resp.Status != "OK" {
		if resp.ErrorMessage != "" {
			return "", fmt.Errorf("%w: status %s: %s", ErrNoRoute, resp.Status, resp.ErrorMessage)
		}
		return "", fmt.Errorf("%w: status %s", ErrNoRoute, resp.Status)
	}
	if len(resp.Routes) == 0 || resp.Routes[0].OverviewPolyline.Points == "" {
		return "", ErrNoRoute
	}
	return resp.Routes[0].OverviewPolyline.Points, nil
}
