package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musallago/pkg/db"
)

// backends runs the same contract checks against every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "store_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	return map[string]Store{
		"sqlite": NewSQLiteStore(d),
		"memory": NewMemoryStore(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			testGetSet(t, ctx, s)
			testDeleteByPrefix(t, ctx, s)
			testSize(t, ctx, s)
		})
	}
}

func testGetSet(t *testing.T, ctx context.Context, s Store) {
	t.Run("GetSet", func(t *testing.T) {
		_, hit := s.GetCache(ctx, "missing")
		assert.False(t, hit)

		require.NoError(t, s.SetCache(ctx, "cached_places", []byte(`{"a":1}`)))
		val, hit := s.GetCache(ctx, "cached_places")
		require.True(t, hit)
		assert.Equal(t, `{"a":1}`, string(val))

		has, err := s.HasCache(ctx, "cached_places")
		require.NoError(t, err)
		assert.True(t, has)

		// Overwrite, not merge.
		require.NoError(t, s.SetCache(ctx, "cached_places", []byte(`{"b":2}`)))
		val, _ = s.GetCache(ctx, "cached_places")
		assert.Equal(t, `{"b":2}`, string(val))

		require.NoError(t, s.DeleteCache(ctx, "cached_places"))
		_, hit = s.GetCache(ctx, "cached_places")
		assert.False(t, hit)
	})
}

func testDeleteByPrefix(t *testing.T, ctx context.Context, s Store) {
	t.Run("DeleteByPrefix", func(t *testing.T) {
		for _, k := range []string{"cached_places_detail_1", "cached_places_detail_2", "cached_user_location", "cachedXplaces"} {
			require.NoError(t, s.SetCache(ctx, k, []byte("x")))
		}

		keys, err := s.ListCacheKeys(ctx, "cached_places_detail_")
		require.NoError(t, err)
		assert.Equal(t, []string{"cached_places_detail_1", "cached_places_detail_2"}, keys)

		// '_' must be literal: "cachedXplaces" does not match "cached_".
		keys, err = s.ListCacheKeys(ctx, "cached_")
		require.NoError(t, err)
		assert.NotContains(t, keys, "cachedXplaces")

		n, err := s.DeleteCacheByPrefix(ctx, "cached_places_detail_")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		has, _ := s.HasCache(ctx, "cached_user_location")
		assert.True(t, has, "unrelated keys survive")

		_, err = s.DeleteCacheByPrefix(ctx, "")
		require.NoError(t, err)
		keys, _ = s.ListCacheKeys(ctx, "")
		assert.Empty(t, keys)
	})
}

func testSize(t *testing.T, ctx context.Context, s Store) {
	t.Run("Size", func(t *testing.T) {
		size, err := s.CacheSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), size)

		require.NoError(t, s.SetCache(ctx, "k", []byte("some payload that takes space")))
		size, err = s.CacheSize(ctx)
		require.NoError(t, err)
		assert.Greater(t, size, int64(0))
	})
}

func TestCompression(t *testing.T) {
	data := []byte(strings.Repeat(`{"title":"Masjid","type":"masjid"},`, 40))
	c, err := compress(data)
	require.NoError(t, err)
	assert.Equal(t, byte(0x1f), c[0])
	assert.Equal(t, byte(0x8b), c[1])
	assert.Less(t, len(c), len(data))

	back, err := decompress(c)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestSQLiteStore_CompressesLargeValues(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "compress.db"))
	require.NoError(t, err)
	defer d.Close()
	s := NewSQLiteStore(d)
	ctx := context.Background()

	small := []byte(`{"latitude":24.86,"longitude":67.0}`)
	large := []byte(strings.Repeat(`{"title":"Masjid","type":"masjid"},`, 40))
	require.NoError(t, s.SetCache(ctx, "cached_user_location", small))
	require.NoError(t, s.SetCache(ctx, "cached_places", large))

	var compressed bool
	require.NoError(t, d.QueryRow("SELECT compressed FROM cache WHERE key = 'cached_user_location'").Scan(&compressed))
	assert.False(t, compressed)
	require.NoError(t, d.QueryRow("SELECT compressed FROM cache WHERE key = 'cached_places'").Scan(&compressed))
	assert.True(t, compressed)

	got, ok := s.GetCache(ctx, "cached_places")
	require.True(t, ok)
	assert.Equal(t, large, got)

	// A damaged blob reads as a miss rather than garbage.
	_, err = d.Exec("UPDATE cache SET value = x'1f8b0000' WHERE key = 'cached_places'")
	require.NoError(t, err)
	_, ok = s.GetCache(ctx, "cached_places")
	assert.False(t, ok)
}
