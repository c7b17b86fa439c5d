package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"musallago/pkg/logging"
	"musallago/pkg/store"
)

// CurrentSchemaVersion is bumped whenever a cached payload changes shape.
// A mismatch on Init wipes the whole cache namespace.
const CurrentSchemaVersion uint32 = 1

// Key namespace.
const (
	KeyPrefix          = "cached_"
	KeyPlaces          = "cached_places"
	KeyPlaceDetailPref = "cached_places_detail_"
	KeyUserLocation    = "cached_user_location"
	KeyDirectionsPref  = "cached_directions_"
	KeyLastUpdate      = "cache_last_update"
	KeyVersion         = "cache_version"
)

// Default TTLs.
const (
	PlacesTTL     = 7 * 24 * time.Hour
	LocationTTL   = 1 * time.Hour
	DirectionsTTL = 24 * time.Hour
)

// Entry is a cached payload with its write time and schema version.
type Entry[T any] struct {
	Payload       T         `json:"payload"`
	CachedAt      time.Time `json:"cached_at"`
	SchemaVersion uint32    `json:"schema_version"`
}

// Store is the versioned, timestamped key/value layer all caches share.
// It is created by the application entry point and injected into the caches.
type Store struct {
	backend store.CacheStore
	version uint32
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSchemaVersion overrides CurrentSchemaVersion.
func WithSchemaVersion(v uint32) Option {
	return func(s *Store) { s.version = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over the given backend.
func New(backend store.CacheStore, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		version: CurrentSchemaVersion,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SchemaVersion returns the version entries are written with.
func (s *Store) SchemaVersion() uint32 { return s.version }

// Now returns the store clock.
func (s *Store) Now() time.Time { return s.now() }

// Init compares the persisted schema marker with the configured version.
// On mismatch every key in the cache namespace is deleted before the new marker is written.
func (s *Store) Init(ctx context.Context) error {
	raw, found := s.backend.GetCache(ctx, KeyVersion)
	if found {
		if v, err := strconv.ParseUint(string(raw), 10, 32); err == nil && uint32(v) == s.version {
			return nil
		}
	}

	if found {
		s.logger.Info("Cache schema changed, wiping cache", "stored", string(raw), "current", s.version)
	}
	n, err := s.backend.DeleteCacheByPrefix(ctx, KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to wipe cache namespace: %w", err)
	}
	if err := s.backend.DeleteCache(ctx, KeyLastUpdate); err != nil {
		return fmt.Errorf("failed to clear last update marker: %w", err)
	}
	if n > 0 {
		s.logger.Info("Removed stale cache entries", "count", n)
	}

	if err := s.backend.SetCache(ctx, KeyVersion, []byte(strconv.FormatUint(uint64(s.version), 10))); err != nil {
		return fmt.Errorf("failed to write cache version: %w", err)
	}
	return nil
}

// Close releases the backend if it owns resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Put wraps payload in an Entry stamped with the current time and schema version.
func (s *Store) Put(ctx context.Context, key string, payload any) error {
	e := Entry[any]{
		Payload:       payload,
		CachedAt:      s.now(),
		SchemaVersion: s.version,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if err := s.backend.SetCache(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Load reads key as an Entry[T]. Missing, undecodable, wrong-version and expired
// entries all report false; the latter three are deleted on the way out.
func Load[T any](ctx context.Context, s *Store, key string, ttl time.Duration) (Entry[T], bool) {
	var e Entry[T]

	raw, found := s.backend.GetCache(ctx, key)
	if !found {
		logging.Trace(s.logger, "Cache miss", "key", key)
		return e, false
	}

	if err := json.Unmarshal(raw, &e); err != nil {
		s.logger.Warn("Corrupt cache entry, discarding", "key", key, "error", err)
		s.evict(ctx, key)
		return Entry[T]{}, false
	}

	if e.SchemaVersion != s.version {
		s.logger.Debug("Cache entry schema mismatch", "key", key, "entry", e.SchemaVersion, "current", s.version)
		s.evict(ctx, key)
		return Entry[T]{}, false
	}

	if ttl > 0 && s.now().Sub(e.CachedAt) > ttl {
		s.logger.Debug("Cache entry expired", "key", key, "age", s.now().Sub(e.CachedAt).Round(time.Second))
		s.evict(ctx, key)
		return Entry[T]{}, false
	}

	logging.Trace(s.logger, "Cache hit", "key", key, "age", s.now().Sub(e.CachedAt).Round(time.Second))
	return e, true
}

func (s *Store) evict(ctx context.Context, key string) {
	if err := s.backend.DeleteCache(ctx, key); err != nil {
		s.logger.Warn("Failed to evict cache entry", "key", key, "error", err)
	}
}

// Delete removes a single key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.DeleteCache(ctx, key)
}

// DeleteByPrefix removes all keys starting with prefix.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	return s.backend.DeleteCacheByPrefix(ctx, prefix)
}

// ListKeys lists the data keys of the cache namespace: every cached_ key plus
// cache_last_update when present. The schema marker and foreign keys are left out.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := s.backend.ListCacheKeys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	has, err := s.backend.HasCache(ctx, KeyLastUpdate)
	if err != nil {
		return nil, err
	}
	if has {
		keys = append(keys, KeyLastUpdate)
	}
	slices.Sort(keys)
	return keys, nil
}

// Size is a best-effort byte count of everything stored.
func (s *Store) Size(ctx context.Context) int64 {
	n, err := s.backend.CacheSize(ctx)
	if err != nil {
		s.logger.Debug("Cache size unavailable", "error", err)
		return 0
	}
	return n
}

// SetRaw stores an unversioned value (informational markers).
func (s *Store) SetRaw(ctx context.Context, key string, val []byte) error {
	return s.backend.SetCache(ctx, key, val)
}

// GetRaw reads an unversioned value.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	return s.backend.GetCache(ctx, key)
}

// ClearAll removes every cache key including informational markers.
// The schema marker survives.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.backend.DeleteCacheByPrefix(ctx, KeyPrefix); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := s.backend.DeleteCache(ctx, KeyLastUpdate); err != nil {
		return fmt.Errorf("failed to clear last update: %w", err)
	}
	return nil
}
