package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodex/internal/schema"
)

func TestMemoryCacheBasic(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	err := c.Set(ctx, "key1", []byte("value1"), time.Hour)
	require.NoError(t, err)

	value, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	exists, err := c.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, "key1"))
	value, err = c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCacheMissIsNotAnError(t *testing.T) {
	c := NewMemoryCache()
	value, err := c.Get(context.Background(), "absent")
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	value, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCacheClearPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Set(ctx, "music:search:deezer:aaa", []byte("1"), 0)
	c.Set(ctx, "music:search:deezer:bbb", []byte("2"), 0)
	c.Set(ctx, "music:search:spotify:ccc", []byte("3"), 0)

	removed, err := c.ClearPrefix(ctx, "music:search:deezer:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	exists, _ := c.Exists(ctx, "music:search:spotify:ccc")
	assert.True(t, exists)
}

func TestMemoryCacheStats(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Set(ctx, "a", []byte("1"), 0)
	c.Get(ctx, "a")
	c.Get(ctx, "missing")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Keys)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestSearchKeyDeterministic(t *testing.T) {
	key1 := SearchKey("discogs", "test", map[string]string{"page": "1"})
	key2 := SearchKey("discogs", "test", map[string]string{"page": "1"})
	key3 := SearchKey("discogs", "test", map[string]string{"page": "2"})

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Contains(t, key1, "music:search:discogs:")
}

func TestSearchKeyParamOrderIndependent(t *testing.T) {
	key1 := SearchKey("deezer", "q", map[string]string{"a": "1", "b": "2"})
	key2 := SearchKey("deezer", "q", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, key1, key2)
}

func TestResultCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := NewResultCache(NewMemoryCache())

	results := []schema.NormalizedResult{
		{Title: "Get Lucky", URL: "https://example.com/1", Artist: "Daft Punk", Engine: "deezer", DurationMs: 248000},
		{Title: "Instant Crush", URL: "https://example.com/2", Artist: "Daft Punk", Engine: "deezer"},
	}

	key := SearchKey("deezer", "daft punk", nil)
	rc.SetResults(ctx, key, results, time.Hour)

	cached, hit := rc.GetResults(ctx, key)
	require.True(t, hit)
	require.Len(t, cached, 2)
	assert.Equal(t, "Get Lucky", cached[0].Title)
	assert.Equal(t, 248000, cached[0].DurationMs)
}

func TestResultCacheMiss(t *testing.T) {
	rc := NewResultCache(NewMemoryCache())
	_, hit := rc.GetResults(context.Background(), "music:search:deezer:nope")
	assert.False(t, hit)
}

func TestResultCacheCorruptedEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCache()
	rc := NewResultCache(store)

	key := "music:search:deezer:bad"
	store.Set(ctx, resultKeyPrefix+":"+key, []byte("not json, not zlib"), time.Hour)

	_, hit := rc.GetResults(ctx, key)
	assert.False(t, hit)

	// The bad entry is dropped so the next search repopulates it.
	exists, _ := store.Exists(ctx, resultKeyPrefix+":"+key)
	assert.False(t, exists)
}

func TestResultCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	rc := NewResultCache(NewMemoryCache())

	key := SearchKey("deezer", "ephemeral", nil)
	rc.SetResults(ctx, key, []schema.NormalizedResult{{Title: "T", URL: "https://e.com"}}, 10*time.Millisecond)

	_, hit := rc.GetResults(ctx, key)
	assert.True(t, hit)

	time.Sleep(30 * time.Millisecond)
	_, hit = rc.GetResults(ctx, key)
	assert.False(t, hit)
}

func TestResultCachePurge(t *testing.T) {
	ctx := context.Background()
	rc := NewResultCache(NewMemoryCache())

	rc.SetResults(ctx, SearchKey("deezer", "a", nil), []schema.NormalizedResult{{Title: "A"}}, time.Hour)
	rc.SetResults(ctx, SearchKey("spotify", "b", nil), []schema.NormalizedResult{{Title: "B"}}, time.Hour)

	removed, err := rc.Purge(ctx, "music:search:deezer:")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = rc.Purge(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestZlibCompressionRoundTrip(t *testing.T) {
	rc := NewResultCache(NewMemoryCache())
	original := []byte(`[{"title":"x"}]`)
	assert.Equal(t, original, rc.decompress(compressZlib(original)))
	// Uncompressed data passes through.
	assert.Equal(t, original, rc.decompress(original))
}
