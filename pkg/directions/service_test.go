package directions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musallago/pkg/cache"
	"musallago/pkg/geo"
	"musallago/pkg/request"
	"musallago/pkg/store"
	"musallago/pkg/tracker"
)

var (
	quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	errOffline  = &request.NetworkError{Kind: request.KindUnreachable, Provider: "google-maps"}

	home   = geo.Point{Lat: 24.86073, Lon: 67.00112}
	masjid = geo.Point{Lat: 24.85990, Lon: 67.00399}
	road   = []geo.Point{home, {Lat: 24.86101, Lon: 67.00250}, masjid}
)

type fixture struct {
	svc    *Service
	routes *cache.RouteCache
	clock  *time.Time
	tr     *tracker.Tracker
}

func newFixture(t *testing.T, src *mockRouteSource) *fixture {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{clock: &now, tr: tracker.New()}
	s := cache.New(store.NewMemoryStore(), cache.WithClock(func() time.Time { return *f.clock }), cache.WithLogger(quietLogger))
	require.NoError(t, s.Init(context.Background()))
	f.routes = cache.NewRouteCache(s, 0)
	f.svc = NewService(src, f.routes, f.tr, quietLogger, Options{Timeout: 200 * time.Millisecond})
	return f
}

func online() *mockRouteSource {
	return &mockRouteSource{FetchRouteFunc: func(context.Context, geo.Point, geo.Point) (string, error) {
		return geo.EncodePolyline(road), nil
	}}
}

func offline() *mockRouteSource {
	return &mockRouteSource{FetchRouteFunc: func(context.Context, geo.Point, geo.Point) (string, error) {
		return "", errOffline
	}}
}

func TestRoute_NetworkThenCache(t *testing.T) {
	ctx := context.Background()
	src := online()
	f := newFixture(t, src)

	res := f.svc.Route(ctx, home, masjid)
	assert.Equal(t, SourceNetwork, res.Source)
	require.Len(t, res.Points, 3)
	assert.InDelta(t, road[1].Lat, res.Points[1].Lat, 1e-9)
	assert.Greater(t, res.DistanceM, 0.0)

	res = f.svc.Route(ctx, home, masjid)
	assert.Equal(t, SourceCache, res.Source)
	assert.Len(t, res.Points, 3)
	assert.Equal(t, int32(1), src.calls.Load())

	// Cache key is quantised: a sub-metre jitter still hits.
	jitter := geo.Point{Lat: home.Lat + 1e-7, Lon: home.Lon - 1e-7}
	assert.Equal(t, SourceCache, f.svc.Route(ctx, jitter, masjid).Source)

	snap := f.tr.Snapshot()[tracker.ProviderDirections]
	assert.Equal(t, int64(2), snap.CacheHits)
	assert.Equal(t, int64(1), snap.APISuccess)
}

func TestRoute_NeverEmpty(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		cached bool
		src    *mockRouteSource
		want   Source
	}{
		{"CacheHitNetworkDown", true, offline(), SourceCache},
		{"CacheMissNetworkUp", false, online(), SourceNetwork},
		{"CacheMissNetworkDown", false, offline(), SourceSynthetic},
		{"CacheMissGarbagePolyline", false, &mockRouteSource{FetchRouteFunc: func(context.Context, geo.Point, geo.Point) (string, error) {
			return "_p~iF", nil
		}}, SourceSynthetic},
		{"CacheMissSinglePoint", false, &mockRouteSource{FetchRouteFunc: func(context.Context, geo.Point, geo.Point) (string, error) {
			return geo.EncodePolyline([]geo.Point{home}), nil
		}}, SourceSynthetic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.src)
			if tt.cached {
				require.NoError(t, f.routes.Save(ctx, home, masjid, road))
			}
			res := f.svc.Route(ctx, home, masjid)
			assert.GreaterOrEqual(t, len(res.Points), 2)
			assert.Equal(t, tt.want, res.Source)
		})
	}
}

func TestRoute_SyntheticIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, offline())

	res := f.svc.Route(ctx, home, masjid)
	require.Equal(t, SourceSynthetic, res.Source)
	assert.Len(t, res.Points, DefaultSyntheticPoints)

	_, ok := f.routes.Load(ctx, home, masjid)
	assert.False(t, ok)
}

func TestRoute_SyntheticEquator(t *testing.T) {
	f := newFixture(t, offline())

	pts := f.svc.GetRoute(context.Background(), geo.Point{Lat: 0, Lon: 0}, geo.Point{Lat: 0, Lon: 10})
	require.Len(t, pts, 11)
	for i, p := range pts {
		assert.InDelta(t, float64(i), p.Lon, 1e-9)
		assert.Equal(t, 0.0, p.Lat)
	}
}

func TestRoute_Timeout(t *testing.T) {
	src := &mockRouteSource{FetchRouteFunc: func(ctx context.Context, _, _ geo.Point) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	f := newFixture(t, src)

	start := time.Now()
	res := f.svc.Route(context.Background(), home, masjid)
	assert.Equal(t, SourceSynthetic, res.Source)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRoute_ExpiredCacheRefetches(t *testing.T) {
	ctx := context.Background()
	src := online()
	f := newFixture(t, src)

	require.NoError(t, f.routes.Save(ctx, home, masjid, road))
	*f.clock = f.clock.Add(cache.DirectionsTTL + time.Second)

	assert.Equal(t, SourceNetwork, f.svc.Route(ctx, home, masjid).Source)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRoute_InvalidCoordinates(t *testing.T) {
	src := &mockRouteSource{FetchRouteFunc: func(context.Context, geo.Point, geo.Point) (string, error) {
		return "", errors.New("must not be called")
	}}
	f := newFixture(t, src)

	res := f.svc.Route(context.Background(), geo.Point{Lat: 95, Lon: 200}, geo.Point{Lat: math.NaN(), Lon: -10})
	require.Len(t, res.Points, 2)
	assert.Equal(t, geo.Point{Lat: 90, Lon: 180}, res.Points[0])
	assert.Equal(t, geo.Point{Lat: 0, Lon: -10}, res.Points[1])
	assert.Equal(t, SourceSynthetic, res.Source)
	assert.Zero(t, src.calls.Load())
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		m    float64
		want string
	}{
		{0, "0 m"},
		{12.4, "12 m"},
		{999.4, "999 m"},
		{1000, "1.0 km"},
		{1234, "1.2 km"},
		{15690, "15.7 km"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.m), "FormatDistance(%v)", tt.m)
	}
}

func TestOfflineInstructions(t *testing.T) {
	origin := geo.Point{Lat: 0, Lon: 0}

	t.Run("East", func(t *testing.T) {
		dest := geo.Point{Lat: 0, Lon: 0.005} // ~556 m
		got := OfflineInstructions(origin, dest, "Masjid Noor")
		require.Len(t, got, 5)
		assert.Equal(t, "Head east towards Masjid Noor", got[0])
		assert.Equal(t, "Continue straight for approximately 556 m", got[1])
		assert.Equal(t, "Look for landmarks and signs for Masjid Noor", got[2])
		assert.Equal(t, "Your destination will be on your right", got[3])
		assert.Equal(t, "Note: these are approximate directions. Connect to the internet for turn-by-turn navigation.", got[4])
	})

	t.Run("SouthwestFar", func(t *testing.T) {
		dest := geo.Point{Lat: -0.02, Lon: -0.02}
		got := OfflineInstructions(origin, dest, "Musalla")
		assert.Equal(t, "Head southwest towards Musalla", got[0])
		assert.Equal(t, "Continue straight for approximately 3.1 km", got[1])
		assert.Equal(t, "Your destination will be on your left", got[3])
	})

	t.Run("NoName", func(t *testing.T) {
		got := OfflineInstructions(origin, geo.Point{Lat: 0.01}, "")
		assert.Equal(t, "Head north towards your destination", got[0])
	})
}
