// Package tracker counts cache and network outcomes per resolver.
package tracker

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Provider names used across the resolvers.
const (
	ProviderPlaces     = "places"
	ProviderDirections = "directions"
)

// Event is one countable outcome of a resolver call.
type Event int

const (
	CacheHit Event = iota
	CacheMiss
	APISuccess
	APIFailure
	APIZero
	// Fallback is a response served from cache or synthesized after a network failure.
	Fallback

	numEvents
)

type counters [numEvents]atomic.Int64

// Tracker is safe for concurrent use. The zero value is not; use New.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*counters
}

// ProviderStats is a point-in-time copy of one provider's counters.
type ProviderStats struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIFailures   int64 `json:"api_failures"`
	APIZeroResult int64 `json:"api_zero_result"`
	Fallbacks     int64 `json:"fallbacks"`
}

// HitRate is the cache hit percentage, rounded down. Zero when nothing was looked up.
func (s ProviderStats) HitRate() int64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return s.CacheHits * 100 / total
}

func New() *Tracker {
	return &Tracker{providers: make(map[string]*counters)}
}

// Track records one event for provider.
func (t *Tracker) Track(provider string, ev Event) {
	if ev < 0 || ev >= numEvents {
		return
	}
	t.get(provider)[ev].Add(1)
}

func (t *Tracker) get(provider string) *counters {
	t.mu.RLock()
	c := t.providers[provider]
	t.mu.RUnlock()
	if c != nil {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c = t.providers[provider]; c == nil {
		c = new(counters)
		t.providers[provider] = c
	}
	return c
}

func (t *Tracker) TrackCacheHit(provider string)   { t.Track(provider, CacheHit) }
func (t *Tracker) TrackCacheMiss(provider string)  { t.Track(provider, CacheMiss) }
func (t *Tracker) TrackAPISuccess(provider string) { t.Track(provider, APISuccess) }
func (t *Tracker) TrackAPIFailure(provider string) { t.Track(provider, APIFailure) }
func (t *Tracker) TrackAPIZero(provider string)    { t.Track(provider, APIZero) }
func (t *Tracker) TrackFallback(provider string)   { t.Track(provider, Fallback) }

// Snapshot copies the current counters of every provider seen so far.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ProviderStats, len(t.providers))
	for name, c := range t.providers {
		out[name] = ProviderStats{
			CacheHits:     c[CacheHit].Load(),
			CacheMisses:   c[CacheMiss].Load(),
			APISuccess:    c[APISuccess].Load(),
			APIFailures:   c[APIFailure].Load(),
			APIZeroResult: c[APIZero].Load(),
			Fallbacks:     c[Fallback].Load(),
		}
	}
	return out
}

// Providers returns the tracked provider names in sorted order.
func (t *Tracker) Providers() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	t.mu.RUnlock()
	slices.Sort(names)
	return names
}
