package tracker

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Snapshot(t *testing.T) {
	tr := New()
	assert.Empty(t, tr.Snapshot())

	tr.TrackCacheHit(ProviderPlaces)
	tr.TrackCacheMiss(ProviderPlaces)
	tr.TrackAPISuccess(ProviderPlaces)
	tr.TrackAPIFailure(ProviderPlaces)
	tr.TrackAPIZero(ProviderPlaces)
	tr.Track(ProviderPlaces, Fallback)
	tr.Track(ProviderPlaces, Fallback)
	tr.Track(ProviderPlaces, numEvents) // ignored

	assert.Equal(t, ProviderStats{
		CacheHits:     1,
		CacheMisses:   1,
		APISuccess:    1,
		APIFailures:   1,
		APIZeroResult: 1,
		Fallbacks:     2,
	}, tr.Snapshot()[ProviderPlaces])
}

func TestProviderStats_HitRate(t *testing.T) {
	assert.Zero(t, ProviderStats{}.HitRate())
	assert.Equal(t, int64(66), ProviderStats{CacheHits: 2, CacheMisses: 1}.HitRate())
	assert.Equal(t, int64(100), ProviderStats{CacheHits: 4}.HitRate())
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackAPISuccess(ProviderDirections)
			tr.TrackCacheMiss(ProviderPlaces)
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, int64(50), snap[ProviderDirections].APISuccess)
	assert.Equal(t, int64(50), snap[ProviderPlaces].CacheMisses)
	assert.Equal(t, []string{ProviderDirections, ProviderPlaces}, tr.Providers())
}

func TestCollector(t *testing.T) {
	tr := New()
	tr.TrackAPIFailure(ProviderPlaces)
	tr.TrackFallback(ProviderPlaces)

	c := NewCollector(tr)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP musallago_fallbacks_total Responses served from cache or synthesized after a failure.
# TYPE musallago_fallbacks_total counter
musallago_fallbacks_total{provider="places"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "musallago_fallbacks_total"))
	assert.Equal(t, 6, testutil.CollectAndCount(c))
}
