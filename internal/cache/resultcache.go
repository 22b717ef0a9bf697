package cache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/zlib"

	"melodex/internal/schema"
)

const (
	resultKeyPrefix = "searxng_music"
	defaultTTL      = 24 * time.Hour

	// Cache I/O never holds up a search longer than this.
	cacheOpTimeout = 2 * time.Second
)

// ResultCache stores per-engine normalized result lists with zlib
// compression. Every failure mode reads as a miss: a search must never
// fail because the cache is down or holds garbage.
type ResultCache struct {
	store      Cache
	compress   bool
	defaultTTL time.Duration
}

func NewResultCache(store Cache) *ResultCache {
	return &ResultCache{store: store, compress: true, defaultTTL: defaultTTL}
}

// NewResultCacheTTL overrides the fallback TTL used when an engine does
// not declare its own.
func NewResultCacheTTL(store Cache, ttl time.Duration) *ResultCache {
	rc := NewResultCache(store)
	if ttl > 0 {
		rc.defaultTTL = ttl
	}
	return rc
}

// SearchKey derives the per-engine cache key
// "music:search:{engine}:{sha1(query+params)}". Params are folded in
// sorted order so equal searches always map to the same key.
func SearchKey(engine, query string, params map[string]string) string {
	h := sha1.New()
	io.WriteString(h, query)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "|%s=%s", name, params[name])
	}

	return fmt.Sprintf("music:search:%s:%s", engine, hex.EncodeToString(h.Sum(nil)))
}

// GetResults returns the cached result list for key, or (nil, false) on
// miss. Corrupted or undecodable entries are dropped and count as misses.
func (rc *ResultCache) GetResults(ctx context.Context, key string) ([]schema.NormalizedResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	fullKey := resultKeyPrefix + ":" + key
	data, err := rc.store.Get(ctx, fullKey)
	if err != nil {
		slog.Warn("result cache read failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	payload := rc.decompress(data)
	var results []schema.NormalizedResult
	if err := gojson.Unmarshal(payload, &results); err != nil {
		slog.Warn("dropping corrupted cache entry", "key", key, "error", err)
		rc.store.Delete(ctx, fullKey)
		return nil, false
	}
	return results, true
}

// SetResults stores a result list under key. ttl <= 0 uses the default.
// Errors are logged, not returned: writes are best-effort.
func (rc *ResultCache) SetResults(ctx context.Context, key string, results []schema.NormalizedResult, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	payload, err := gojson.Marshal(results)
	if err != nil {
		slog.Warn("result cache encode failed", "key", key, "error", err)
		return
	}
	if rc.compress {
		payload = compressZlib(payload)
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	if err := rc.store.Set(ctx, resultKeyPrefix+":"+key, payload, ttl); err != nil {
		slog.Warn("result cache write failed", "key", key, "error", err)
	}
}

// Purge removes cached entries matching pattern ("" or "music:search:"
// clears all search entries; "music:search:deezer:" clears one engine).
func (rc *ResultCache) Purge(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		pattern = "music:search:"
	}
	return rc.store.ClearPrefix(ctx, resultKeyPrefix+":"+pattern)
}

// Stats exposes the underlying store counters.
func (rc *ResultCache) Stats(ctx context.Context) (Statistics, error) {
	return rc.store.Stats(ctx)
}

// decompress inflates zlib data; plain payloads pass through untouched so
// entries written before compression was enabled still read back.
func (rc *ResultCache) decompress(data []byte) []byte {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer reader.Close()

	inflated, err := io.ReadAll(reader)
	if err != nil {
		return data
	}
	return inflated
}

func compressZlib(data []byte) []byte {
	var buf bytes.Buffer
	writer := zlib.NewWriter(&buf)
	writer.Write(data)
	writer.Close()
	return buf.Bytes()
}
