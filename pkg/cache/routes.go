package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"musallago/pkg/geo"
)

// routeKeyDecimals quantizes route endpoints to ~1m so near-identical requests share an entry.
const routeKeyDecimals = 5

// CachedRoute is a decoded route polyline between two coordinates.
type CachedRoute struct {
	Origin      geo.Point   `json:"origin"`
	Destination geo.Point   `json:"destination"`
	Polyline    []geo.Point `json:"polyline"`
	CachedAt    time.Time   `json:"cached_at"`
}

// RouteCache stores routes keyed by their quantized endpoint pair.
type RouteCache struct {
	store *Store
	ttl   time.Duration
}

// NewRouteCache creates a RouteCache. A zero ttl means DirectionsTTL.
func NewRouteCache(s *Store, ttl time.Duration) *RouteCache {
	if ttl <= 0 {
		ttl = DirectionsTTL
	}
	return &RouteCache{store: s, ttl: ttl}
}

// RouteKey builds cached_directions_{fromLat}_{fromLng}_{toLat}_{toLng}.
func RouteKey(origin, dest geo.Point) string {
	o := geo.Quantize(origin, routeKeyDecimals)
	d := geo.Quantize(dest, routeKeyDecimals)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', routeKeyDecimals, 64) }
	return fmt.Sprintf("%s%s_%s_%s_%s", KeyDirectionsPref, f(o.Lat), f(o.Lon), f(d.Lat), f(d.Lon))
}

// Save overwrites the route for the pair.
func (c *RouteCache) Save(ctx context.Context, origin, dest geo.Point, polyline []geo.Point) error {
	r := CachedRoute{
		Origin:      origin,
		Destination: dest,
		Polyline:    polyline,
		CachedAt:    c.store.Now(),
	}
	return c.store.Put(ctx, RouteKey(origin, dest), r)
}

// Load returns the cached polyline for the pair if younger than the TTL.
func (c *RouteCache) Load(ctx context.Context, origin, dest geo.Point) ([]geo.Point, bool) {
	e, ok := Load[CachedRoute](ctx, c.store, RouteKey(origin, dest), c.ttl)
	if !ok || len(e.Payload.Polyline) < 2 {
		return nil, false
	}
	return e.Payload.Polyline, true
}

// Clear removes every cached route.
func (c *RouteCache) Clear(ctx context.Context) error {
	_, err := c.store.DeleteByPrefix(ctx, KeyDirectionsPref)
	return err
}
