package api

import (
	"context"
	"time"

	"musallago/pkg/directions"
	"musallago/pkg/geo"
	"musallago/pkg/model"
)

type mockPlaces struct {
	GetNearbyFunc           func(ctx context.Context, user geo.Point, radiusM float64) []model.Place
	HasCachedCatalogFunc    func(ctx context.Context) bool
	GetPlaceByIDFunc        func(ctx context.Context, id string) (*model.Place, bool)
	StartProactiveCacheFunc func(ctx context.Context, user geo.Point) bool
	CacheStatsFunc          func(ctx context.Context) model.CacheStats
	ClearPlacesFunc         func(ctx context.Context) error
}

func (m *mockPlaces) GetNearby(ctx context.Context, user geo.Point, radiusM float64) []model.Place {
	if m.GetNearbyFunc != nil {
		return m.GetNearbyFunc(ctx, user, radiusM)
	}
	return []model.Place{}
}

func (m *mockPlaces) HasCachedCatalog(ctx context.Context) bool {
	if m.HasCachedCatalogFunc != nil {
		return m.HasCachedCatalogFunc(ctx)
	}
	return false
}

func (m *mockPlaces) GetPlaceByID(ctx context.Context, id string) (*model.Place, bool) {
	if m.GetPlaceByIDFunc != nil {
		return m.GetPlaceByIDFunc(ctx, id)
	}
	return nil, false
}

func (m *mockPlaces) StartProactiveCache(ctx context.Context, user geo.Point) bool {
	if m.StartProactiveCacheFunc != nil {
		return m.StartProactiveCacheFunc(ctx, user)
	}
	return true
}

func (m *mockPlaces) CacheStats(ctx context.Context) model.CacheStats {
	if m.CacheStatsFunc != nil {
		return m.CacheStatsFunc(ctx)
	}
	return model.CacheStats{}
}

func (m *mockPlaces) ClearPlaces(ctx context.Context) error {
	if m.ClearPlacesFunc != nil {
		return m.ClearPlacesFunc(ctx)
	}
	return nil
}

type mockRoutes struct {
	RouteFunc func(ctx context.Context, origin, dest geo.Point) directions.Result
}

func (m *mockRoutes) Route(ctx context.Context, origin, dest geo.Point) directions.Result {
	if m.RouteFunc != nil {
		return m.RouteFunc(ctx, origin, dest)
	}
	pts := geo.Interpolate(origin, dest, 11)
	return directions.Result{Points: pts, Source: directions.SourceSynthetic, DistanceM: geo.PathLength(pts)}
}

type mockClearer struct {
	ClearAllFunc func(ctx context.Context) error
}

func (m *mockClearer) ClearAll(ctx context.Context) error {
	if m.ClearAllFunc != nil {
		return m.ClearAllFunc(ctx)
	}
	return nil
}

type mockChecker struct {
	IsOfflineFunc func(ctx context.Context) bool
}

func (m *mockChecker) IsOffline(ctx context.Context) bool {
	if m.IsOfflineFunc != nil {
		return m.IsOfflineFunc(ctx)
	}
	return false
}

type mockBackoff struct {
	GetStateFunc func(provider string) (int, time.Time)
}

func (m *mockBackoff) GetState(provider string) (int, time.Time) {
	if m.GetStateFunc != nil {
		return m.GetStateFunc(provider)
	}
	return 0, time.Time{}
}
