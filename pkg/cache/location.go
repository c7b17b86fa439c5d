package cache

import (
	"context"
	"time"

	"musallago/pkg/geo"
)

// CachedLocation is the last known user coordinate.
type CachedLocation struct {
	geo.Point
	CachedAt time.Time `json:"cached_at"`
}

// LocationCache holds the last user fix with a short TTL.
type LocationCache struct {
	store *Store
	ttl   time.Duration
}

// NewLocationCache creates a LocationCache. A zero ttl means LocationTTL.
func NewLocationCache(s *Store, ttl time.Duration) *LocationCache {
	if ttl <= 0 {
		ttl = LocationTTL
	}
	return &LocationCache{store: s, ttl: ttl}
}

// Save overwrites the cached location.
func (c *LocationCache) Save(ctx context.Context, p geo.Point) error {
	return c.store.Put(ctx, KeyUserLocation, p)
}

// Load returns the cached location if it is younger than the TTL.
func (c *LocationCache) Load(ctx context.Context) (CachedLocation, bool) {
	e, ok := Load[geo.Point](ctx, c.store, KeyUserLocation, c.ttl)
	if !ok {
		return CachedLocation{}, false
	}
	return CachedLocation{Point: e.Payload, CachedAt: e.CachedAt}, true
}
