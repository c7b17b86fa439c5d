package cache

import (
	"context"
	"fmt"
	"time"

	"musallago/pkg/model"
)

// PlaceCatalogSnapshot is the whole catalog cached as one unit.
type PlaceCatalogSnapshot struct {
	Places   []model.Place `json:"places"`
	CachedAt time.Time     `json:"cached_at"`
}

// PlaceCache stores the place catalog plus per-place detail records.
type PlaceCache struct {
	store *Store
	ttl   time.Duration
}

// NewPlaceCache creates a PlaceCache. A zero ttl means PlacesTTL.
func NewPlaceCache(s *Store, ttl time.Duration) *PlaceCache {
	if ttl <= 0 {
		ttl = PlacesTTL
	}
	return &PlaceCache{store: s, ttl: ttl}
}

func detailKey(id string) string {
	return KeyPlaceDetailPref + id
}

// SaveCatalog overwrites the catalog snapshot, then stores each place under its detail key
// so the detail screen never has to decode the full catalog.
func (c *PlaceCache) SaveCatalog(ctx context.Context, places []model.Place) error {
	now := c.store.Now()
	snap := PlaceCatalogSnapshot{Places: places, CachedAt: now}
	if err := c.store.Put(ctx, KeyPlaces, snap); err != nil {
		return err
	}

	failed := 0
	for i := range places {
		if err := c.store.Put(ctx, detailKey(places[i].ID), places[i]); err != nil {
			failed++
			c.store.logger.Warn("Failed to cache place detail", "id", places[i].ID, "error", err)
		}
	}

	if err := c.store.SetRaw(ctx, KeyLastUpdate, []byte(now.UTC().Format(time.RFC3339))); err != nil {
		c.store.logger.Warn("Failed to record cache update time", "error", err)
	}

	c.store.logger.Debug("Place catalog cached", "count", len(places), "detail_failures", failed)
	return nil
}

// LoadCatalog returns the cached catalog, or false if missing or older than the TTL.
func (c *PlaceCache) LoadCatalog(ctx context.Context) ([]model.Place, bool) {
	e, ok := Load[PlaceCatalogSnapshot](ctx, c.store, KeyPlaces, c.ttl)
	if !ok {
		return nil, false
	}
	return e.Payload.Places, true
}

// SaveDetail stores a single place record.
func (c *PlaceCache) SaveDetail(ctx context.Context, p *model.Place) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("place without id")
	}
	return c.store.Put(ctx, detailKey(p.ID), *p)
}

// LoadDetail returns a single cached place, with its own TTL check.
func (c *PlaceCache) LoadDetail(ctx context.Context, id string) (*model.Place, bool) {
	e, ok := Load[model.Place](ctx, c.store, detailKey(id), c.ttl)
	if !ok {
		return nil, false
	}
	p := e.Payload
	return &p, true
}

// Stats reports the cached catalog size and freshness. Size is best-effort.
func (c *PlaceCache) Stats(ctx context.Context) model.CacheStats {
	var st model.CacheStats

	if places, ok := c.LoadCatalog(ctx); ok {
		st.PlacesCount = len(places)
	}
	if raw, ok := c.store.GetRaw(ctx, KeyLastUpdate); ok {
		if ts, err := time.Parse(time.RFC3339, string(raw)); err == nil {
			st.LastUpdate = &ts
		}
	}
	st.CacheSizeBytes = c.store.Size(ctx)
	return st
}

// Clear removes the catalog, every detail record and the update marker.
func (c *PlaceCache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, KeyPlaces); err != nil {
		return fmt.Errorf("failed to clear place catalog: %w", err)
	}
	if _, err := c.store.DeleteByPrefix(ctx, KeyPlaceDetailPref); err != nil {
		return fmt.Errorf("failed to clear place details: %w", err)
	}
	if err := c.store.Delete(ctx, KeyLastUpdate); err != nil {
		return fmt.Errorf("failed to clear update marker: %w", err)
	}
	return nil
}
