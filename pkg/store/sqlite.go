package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"musallago/pkg/db"
)

// compressMinSize is the payload size below which gzip costs more than it saves.
const compressMinSize = 512

// SQLiteStore is the persistent Store. Large values are gzip-compressed on write
// and inflated on read; callers always see the original bytes.
type SQLiteStore struct {
	db     *db.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a store on an initialised database.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d, logger: slog.Default().With("component", "sqlite_store")}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used as a startup probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetCache treats read and inflate errors as a miss so that callers fall through to the network.
func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var (
		val        []byte
		compressed bool
	)
	err := s.db.QueryRowContext(ctx, "SELECT value, compressed FROM cache WHERE key = ?", key).Scan(&val, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.logger.Debug("Cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !compressed {
		return val, true
	}

	raw, err := decompress(val)
	if err != nil {
		s.logger.Warn("Corrupt compressed cache value, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return raw, true
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetCache replaces the value for key in a single statement.
func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	stored, compressed := val, false
	if len(val) >= compressMinSize {
		c, err := compress(val)
		if err != nil {
			return fmt.Errorf("failed to compress %s: %w", key, err)
		}
		if len(c) < len(val) {
			stored, compressed = c, true
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache (key, value, compressed, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, compressed = excluded.compressed, updated_at = excluded.updated_at`,
		key, stored, compressed, time.Now().Unix())
	return err
}

func (s *SQLiteStore) DeleteCache(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
	return err
}

func (s *SQLiteStore) DeleteCacheByPrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key LIKE ? ESCAPE '\'`, likePrefix(prefix))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CacheSize sums the stored (possibly compressed) value lengths.
func (s *SQLiteStore) CacheSize(ctx context.Context) (int64, error) {
	var size sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT SUM(LENGTH(value)) FROM cache").Scan(&size); err != nil {
		return 0, err
	}
	return size.Int64, nil
}

// likePrefix escapes LIKE wildcards. Cache keys contain '_' which would otherwise match any char.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 4)

	w := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
