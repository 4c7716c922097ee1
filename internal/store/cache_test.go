package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache", "tmdb.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTest(t, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "search/tv?query=x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "search/tv?query=x", []byte(`{"results":[]}`)))
	body, ok, err := c.Get(ctx, "search/tv?query=x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"results":[]}`, string(body))

	require.NoError(t, c.Put(ctx, "search/tv?query=x", []byte("v2")))
	body, _, _ = c.Get(ctx, "search/tv?query=x")
	assert.Equal(t, "v2", string(body))
}

func TestCache_Expiry(t *testing.T) {
	c := openTest(t, time.Hour)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	require.NoError(t, c.Put(ctx, "k", []byte("v")))

	c.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCache_NoTTLNeverExpires(t *testing.T) {
	c := openTest(t, 0)
	ctx := context.Background()
	base := time.Unix(0, 0)
	c.now = func() time.Time { return base }
	require.NoError(t, c.Put(ctx, "k", []byte("v")))

	c.now = func() time.Time { return base.Add(1000 * time.Hour) }
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_PurgesExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmdb.db")
	ctx := context.Background()

	c, err := Open(path, time.Hour)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	require.NoError(t, c.Put(ctx, "stale", []byte("old")))
	c.now = time.Now
	require.NoError(t, c.Put(ctx, "fresh", []byte("new")))
	require.NoError(t, c.Close())

	c, err = Open(path, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	var n int
	require.NoError(t, c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_cache`).Scan(&n))
	assert.Equal(t, 1, n)
	_, ok, err := c.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
