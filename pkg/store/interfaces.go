package store

import (
	"context"
)

// CacheStore handles generic key-value caching.
// Implementations guarantee atomic single-key writes; there is no cross-key locking.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	DeleteCache(ctx context.Context, key string) error
	DeleteCacheByPrefix(ctx context.Context, prefix string) (int, error)
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
	// CacheSize returns an approximate size of the stored values in bytes.
	CacheSize(ctx context.Context) (int64, error)
}

// Store is a CacheStore that owns a closable resource.
type Store interface {
	CacheStore

	// Close closes the store connection.
	Close() error
}
