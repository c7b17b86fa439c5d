// Package directions resolves walking routes with a cache, network and
// straight-line fallback chain, and produces offline turn instructions.
package directions

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"musallago/pkg/cache"
	"musallago/pkg/geo"
	"musallago/pkg/remote"
	"musallago/pkg/tracker"
)

// Source says where a route came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceNetwork   Source = "network"
	SourceSynthetic Source = "synthetic"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultSyntheticPoints = 11
)

// Options tunes the resolver.
type Options struct {
	Timeout         time.Duration // Bound on the remote routing call
	SyntheticPoints int           // Points in the straight-line fallback
}

// Result is a resolved route. Points always has at least two entries.
type Result struct {
	Points    []geo.Point `json:"points"`
	Source    Source      `json:"source"`
	DistanceM float64     `json:"distance_m"`
}

// Service is the route resolver.
type Service struct {
	src     remote.RouteSource
	routes  *cache.RouteCache
	tracker *tracker.Tracker
	logger  *slog.Logger
	opts    Options
}

// NewService creates the resolver. Zero options take the defaults.
func NewService(src remote.RouteSource, rc *cache.RouteCache, tr *tracker.Tracker, logger *slog.Logger, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SyntheticPoints < 2 {
		opts.SyntheticPoints = DefaultSyntheticPoints
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tr == nil {
		tr = tracker.New()
	}
	return &Service{src: src, routes: rc, tracker: tr, logger: logger, opts: opts}
}

// GetRoute returns the route polyline from origin to dest.
func (s *Service) GetRoute(ctx context.Context, origin, dest geo.Point) []geo.Point {
	return s.Route(ctx, origin, dest).Points
}

// Route resolves cache first, then the network, then a straight line.
// Invalid coordinates skip both cache and network and yield the clamped endpoints.
func (s *Service) Route(ctx context.Context, origin, dest geo.Point) Result {
	if err := firstInvalid(origin, dest); err != nil {
		s.logger.Warn("Invalid route endpoints, returning straight segment", "origin", origin, "dest", dest, "error", err)
		pts := []geo.Point{geo.Clamp(origin), geo.Clamp(dest)}
		return result(pts, SourceSynthetic)
	}

	if pts, ok := s.routes.Load(ctx, origin, dest); ok {
		s.tracker.TrackCacheHit(tracker.ProviderDirections)
		return result(pts, SourceCache)
	}
	s.tracker.TrackCacheMiss(tracker.ProviderDirections)

	pts, err := s.fetch(ctx, origin, dest)
	if err == nil {
		s.tracker.TrackAPISuccess(tracker.ProviderDirections)
		if err := s.routes.Save(ctx, origin, dest, pts); err != nil {
			s.logger.Warn("Failed to cache route", "error", err)
		}
		return result(pts, SourceNetwork)
	}

	s.tracker.TrackAPIFailure(tracker.ProviderDirections)
	s.tracker.TrackFallback(tracker.ProviderDirections)
	s.logger.Info("Routing unavailable, using straight line", "error", err)

	// Never cached: a later online request must get a real route.
	return result(geo.Interpolate(origin, dest, s.opts.SyntheticPoints), SourceSynthetic)
}

func (s *Service) fetch(ctx context.Context, origin, dest geo.Point) ([]geo.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	encoded, err := s.src.FetchRoute(ctx, origin, dest)
	if err != nil {
		return nil, err
	}
	pts, err := geo.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("%w: %d points", remote.ErrNoRoute, len(pts))
	}
	return pts, nil
}

func firstInvalid(pts ...geo.Point) error {
	for _, p := range pts {
		if err := geo.ValidatePoint(p); err != nil {
			return err
		}
	}
	return nil
}

func result(pts []geo.Point, src Source) Result {
	return Result{Points: pts, Source: src, DistanceM: geo.PathLength(pts)}
}

// ClearRoutes drops every cached route.
func (s *Service) ClearRoutes(ctx context.Context) error {
	return s.routes.Clear(ctx)
}

// FormatDistance renders metres as "850 m" or "1.2 km".
func FormatDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(m)))
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

// SideOf returns which hand the destination falls on for a walker arriving along bearing.
// Eastward headings (0-180) put it on the right.
func SideOf(bearing float64) string {
	b := geo.NormalizeAngle(bearing)
	if b >= 0 && b < 180 {
		return "right"
	}
	return "left"
}

// OfflineInstructions builds the fixed five-line guidance shown when no real route exists.
func OfflineInstructions(origin, dest geo.Point, name string) []string {
	if name == "" {
		name = "your destination"
	}
	bearing := geo.Bearing(origin, dest)
	return []string{
		fmt.Sprintf("Head %s towards %s", geo.CompassDirection(bearing), name),
		fmt.Sprintf("Continue straight for approximately %s", FormatDistance(geo.Distance(origin, dest))),
		fmt.Sprintf("Look for landmarks and signs for %s", name),
		fmt.Sprintf("Your destination will be on your %s", SideOf(bearing)),
		"Note: these are approximate directions. Connect to the internet for turn-by-turn navigation.",
	}
}
