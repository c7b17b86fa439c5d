// Package places resolves nearby prayer spaces, preferring the network and
// degrading to the offline catalog when the network is unavailable.
package places

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"musallago/pkg/cache"
	"musallago/pkg/geo"
	"musallago/pkg/model"
	"musallago/pkg/remote"
	"musallago/pkg/tracker"
)

// Prefetch defaults.
var (
	DefaultPrefetchRadii = []float64{5000, 15000, 50000}
)

const (
	DefaultPrefetchThreshold = 20
	defaultPrefetchTimeout   = 2 * time.Minute
	defaultFetchTimeout      = time.Minute
)

// Service is the proximity resolver. It never returns errors to its callers:
// an empty slice means neither the network nor the cache had data.
type Service struct {
	src      remote.PlaceSource
	places   *cache.PlaceCache
	location *cache.LocationCache
	tracker  *tracker.Tracker
	logger   *slog.Logger

	radii           []float64
	threshold       int
	prefetchTimeout time.Duration
	fetchTimeout    time.Duration

	fetches singleflight.Group

	// Catalog writes are ordered by fetch start; an older fetch never overwrites a newer one.
	fetchSeq     atomic.Uint64
	writeMu      sync.Mutex
	lastWriteSeq uint64

	prefetching atomic.Bool
	bg          sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithPrefetch overrides the radius ladder and the early-stop threshold.
func WithPrefetch(radii []float64, threshold int) Option {
	return func(s *Service) {
		if len(radii) > 0 {
			s.radii = slices.Clone(radii)
		}
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

// WithPrefetchTimeout bounds a background prefetch run.
func WithPrefetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.prefetchTimeout = d
		}
	}
}

// NewService creates the resolver.
func NewService(src remote.PlaceSource, pc *cache.PlaceCache, lc *cache.LocationCache, tr *tracker.Tracker, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tr == nil {
		tr = tracker.New()
	}
	s := &Service{
		src:             src,
		places:          pc,
		location:        lc,
		tracker:         tr,
		logger:          logger,
		radii:           slices.Clone(DefaultPrefetchRadii),
		threshold:       DefaultPrefetchThreshold,
		prefetchTimeout: defaultPrefetchTimeout,
		fetchTimeout:    defaultFetchTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type fetchResult struct {
	places []model.Place
	seq    uint64
}

// fetchCatalog fetches the full catalog. Concurrent callers share one request,
// which runs detached from any single caller so one cancellation cannot fail the others.
func (s *Service) fetchCatalog(ctx context.Context) (fetchResult, error) {
	ch := s.fetches.DoChan("catalog", func() (interface{}, error) {
		seq := s.fetchSeq.Add(1)
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		places, err := s.src.FetchAllPlaces(fctx)
		if err != nil {
			return nil, err
		}
		return fetchResult{places: places, seq: seq}, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return fetchResult{}, ctx.Err()
	}
	if r.Err != nil {
		return fetchResult{}, r.Err
	}
	if r.Shared {
		s.logger.Debug("Catalog fetch shared with concurrent caller")
	}
	res := r.Val.(fetchResult)
	// Callers own their slice; annotation must not leak between them.
	res.places = slices.Clone(res.places)
	return res, nil
}

// rank annotates every place with its distance from origin and sorts ascending.
// Ties are broken by ID so the order is stable across runs.
func rank(places []model.Place, origin geo.Point) []model.Place {
	out := make([]model.Place, len(places))
	for i := range places {
		out[i] = places[i].WithDistanceFrom(origin)
	}
	slices.SortStableFunc(out, func(a, b model.Place) int {
		if c := cmp.Compare(*a.DistanceM, *b.DistanceM); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func withinRadius(ranked []model.Place, radiusM float64) []model.Place {
	out := make([]model.Place, 0, len(ranked))
	for i := range ranked {
		if d, ok := ranked[i].Distance(); ok && d <= radiusM {
			out = append(out, ranked[i])
		}
	}
	return out
}

// saveCatalog persists the ranked catalog unless a newer fetch already did.
func (s *Service) saveCatalog(ctx context.Context, ranked []model.Place, seq uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if seq <= s.lastWriteSeq {
		s.logger.Debug("Skipping catalog write from older fetch", "seq", seq, "latest", s.lastWriteSeq)
		return
	}
	if err := s.places.SaveCatalog(ctx, ranked); err != nil {
		s.logger.Warn("Failed to cache place catalog", "error", err)
		return
	}
	s.lastWriteSeq = seq
}

// fetchAndCache is the network path: fetch, rank from user, persist catalog and location.
func (s *Service) fetchAndCache(ctx context.Context, user geo.Point) ([]model.Place, error) {
	res, err := s.fetchCatalog(ctx)
	if err != nil {
		s.tracker.TrackAPIFailure(tracker.ProviderPlaces)
		return nil, err
	}
	if len(res.places) == 0 {
		s.tracker.TrackAPIZero(tracker.ProviderPlaces)
	} else {
		s.tracker.TrackAPISuccess(tracker.ProviderPlaces)
	}

	ranked := rank(res.places, user)
	s.saveCatalog(ctx, ranked, res.seq)
	if err := s.location.Save(ctx, user); err != nil {
		s.logger.Warn("Failed to cache user location", "error", err)
	}
	return ranked, nil
}

// GetNearby returns places within radiusM of user, nearest first.
func (s *Service) GetNearby(ctx context.Context, user geo.Point, radiusM float64) []model.Place {
	if err := geo.ValidatePoint(user); err != nil {
		s.logger.Warn("Rejecting nearby query", "user", user, "error", err)
		return []model.Place{}
	}

	ranked, err := s.fetchAndCache(ctx, user)
	if err == nil {
		out := withinRadius(ranked, radiusM)
		s.logger.Debug("Nearby from network", "total", len(ranked), "in_radius", len(out), "radius_m", radiusM)
		return out
	}

	s.logger.Info("Place fetch failed, using offline catalog", "error", err)
	cached, ok := s.places.LoadCatalog(ctx)
	if !ok {
		s.tracker.TrackCacheMiss(tracker.ProviderPlaces)
		s.logger.Warn("No network and no cached catalog")
		return []model.Place{}
	}
	s.tracker.TrackCacheHit(tracker.ProviderPlaces)
	s.tracker.TrackFallback(tracker.ProviderPlaces)

	// Stored distances belong to the origin of the fetch that wrote the snapshot.
	out := withinRadius(rank(cached, user), radiusM)
	s.logger.Debug("Nearby from cache", "total", len(cached), "in_radius", len(out), "radius_m", radiusM)
	return out
}

// HasCachedCatalog reports whether an unexpired, non-empty catalog is cached.
func (s *Service) HasCachedCatalog(ctx context.Context) bool {
	cached, ok := s.places.LoadCatalog(ctx)
	return ok && len(cached) > 0
}

// GetPlaceByID tries the network first and falls back to the cached detail record.
// A place the backend reports as missing is not served from cache.
func (s *Service) GetPlaceByID(ctx context.Context, id string) (*model.Place, bool) {
	if id == "" {
		return nil, false
	}

	p, err := s.src.PlaceDetail(ctx, id)
	switch {
	case err == nil:
		s.tracker.TrackAPISuccess(tracker.ProviderPlaces)
		if err := s.places.SaveDetail(ctx, p); err != nil {
			s.logger.Warn("Failed to cache place detail", "id", id, "error", err)
		}
		return s.annotate(ctx, p), true
	case errors.Is(err, remote.ErrNotFound):
		s.tracker.TrackAPIZero(tracker.ProviderPlaces)
		s.logger.Debug("Place not found", "id", id)
		return nil, false
	}

	s.tracker.TrackAPIFailure(tracker.ProviderPlaces)
	s.logger.Info("Place detail fetch failed, using cache", "id", id, "error", err)

	cached, ok := s.places.LoadDetail(ctx, id)
	if !ok {
		s.tracker.TrackCacheMiss(tracker.ProviderPlaces)
		return nil, false
	}
	s.tracker.TrackCacheHit(tracker.ProviderPlaces)
	s.tracker.TrackFallback(tracker.ProviderPlaces)
	return s.annotate(ctx, cached), true
}

// annotate sets DistanceM from the last known location, or clears it when none is fresh.
func (s *Service) annotate(ctx context.Context, p *model.Place) *model.Place {
	out := *p
	if loc, ok := s.location.Load(ctx); ok {
		out = out.WithDistanceFrom(loc.Point)
	} else {
		out.DistanceM = nil
	}
	return &out
}

// LastLocation returns the cached user fix if it is still fresh.
func (s *Service) LastLocation(ctx context.Context) (cache.CachedLocation, bool) {
	return s.location.Load(ctx)
}

// PrefetchResult summarises one proactive prefetch run.
type PrefetchResult struct {
	Attempts int     `json:"attempts"`
	Failures int     `json:"failures"`
	RadiusM  float64 `json:"radius_m"` // Last radius that fetched successfully
	InRadius int     `json:"in_radius"`
	Cached   bool    `json:"cached"`
}

// InitializeProactiveCache walks the radius ladder, fetching and caching at each step,
// and stops once a step yields at least the threshold of places. A failing step is skipped.
func (s *Service) InitializeProactiveCache(ctx context.Context, user geo.Point) PrefetchResult {
	var res PrefetchResult

	if err := geo.ValidatePoint(user); err != nil {
		s.logger.Warn("Skipping prefetch for invalid location", "user", user, "error", err)
		return res
	}

	for _, r := range s.radii {
		if ctx.Err() != nil {
			break
		}
		res.Attempts++

		ranked, err := s.fetchAndCache(ctx, user)
		if err != nil {
			res.Failures++
			s.logger.Warn("Prefetch step failed", "radius_m", r, "error", err)
			continue
		}

		n := len(withinRadius(ranked, r))
		res.RadiusM = r
		res.InRadius = n
		res.Cached = true
		s.logger.Debug("Prefetch step", "radius_m", r, "in_radius", n, "total", len(ranked))

		if n >= s.threshold {
			break
		}
	}

	s.logger.Info("Proactive prefetch finished",
		"attempts", res.Attempts,
		"failures", res.Failures,
		"radius_m", res.RadiusM,
		"in_radius", res.InRadius)
	return res
}

// StartProactiveCache runs InitializeProactiveCache in the background and returns at once.
// The run is detached from ctx cancellation. It reports false if a run is already active.
func (s *Service) StartProactiveCache(ctx context.Context, user geo.Point) bool {
	if !s.prefetching.CompareAndSwap(false, true) {
		s.logger.Debug("Prefetch already running, ignoring trigger")
		return false
	}

	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.prefetchTimeout)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.prefetching.Store(false)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Prefetch panicked", "panic", r)
			}
		}()
		s.InitializeProactiveCache(bgCtx, user)
	}()
	return true
}

// Wait blocks until background prefetches have finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

// CacheStats reports the offline catalog state.
func (s *Service) CacheStats(ctx context.Context) model.CacheStats {
	return s.places.Stats(ctx)
}

// ClearPlaces drops the catalog and every place detail record.
func (s *Service) ClearPlaces(ctx context.Context) error {
	return s.places.Clear(ctx)
}
