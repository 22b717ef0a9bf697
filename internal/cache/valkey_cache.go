package cache

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// valkeyCache implements Cache on a Valkey server.
type valkeyCache struct {
	client valkey.Client
}

// NewValkeyCache connects to Valkey and verifies the connection before
// returning.
func NewValkeyCache(valkeyURL string) (Cache, error) {
	addr, password, err := parseValkeyURL(valkeyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Valkey URL: %w", err)
	}

	clientOption := valkey.ClientOption{
		InitAddress: []string{addr},
	}
	if password != "" {
		clientOption.Password = password
	}

	client, err := valkey.NewClient(clientOption)
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	cache := &valkeyCache{client: client}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Health(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return cache, nil
}

// Get retrieves a value from Valkey.
func (c *valkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := c.client.B().Get().Key(key).Build()
	result := c.client.Do(ctx, cmd)

	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return nil, nil // Key doesn't exist
		}
		return nil, &CacheError{Operation: "get", Key: key, Err: result.Error()}
	}

	data, err := result.AsBytes()
	if err != nil {
		return nil, &CacheError{Operation: "get", Key: key, Err: err}
	}
	return data, nil
}

// Set stores a value in Valkey with expiration.
func (c *valkeyCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	var cmd valkey.Completed
	if expiration > 0 {
		cmd = c.client.B().Set().Key(key).Value(string(value)).Ex(expiration).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(string(value)).Build()
	}

	result := c.client.Do(ctx, cmd)
	if result.Error() != nil {
		return &CacheError{Operation: "set", Key: key, Err: result.Error()}
	}
	return nil
}

// Delete removes a key from Valkey.
func (c *valkeyCache) Delete(ctx context.Context, key string) error {
	cmd := c.client.B().Del().Key(key).Build()
	result := c.client.Do(ctx, cmd)

	if result.Error() != nil {
		return &CacheError{Operation: "delete", Key: key, Err: result.Error()}
	}
	return nil
}

// Exists checks if a key exists in Valkey.
func (c *valkeyCache) Exists(ctx context.Context, key string) (bool, error) {
	cmd := c.client.B().Exists().Key(key).Build()
	result := c.client.Do(ctx, cmd)

	if result.Error() != nil {
		return false, &CacheError{Operation: "exists", Key: key, Err: result.Error()}
	}

	count, err := result.AsInt64()
	if err != nil {
		return false, &CacheError{Operation: "exists", Key: key, Err: err}
	}
	return count > 0, nil
}

// ClearPrefix walks the keyspace with SCAN and deletes matching keys in
// batches. SCAN instead of KEYS so a purge never blocks the server.
func (c *valkeyCache) ClearPrefix(ctx context.Context, prefix string) (int64, error) {
	var cursor uint64
	var removed int64
	pattern := prefix + "*"

	for {
		cmd := c.client.B().Scan().Cursor(cursor).Match(pattern).Count(200).Build()
		result := c.client.Do(ctx, cmd)
		if result.Error() != nil {
			return removed, &CacheError{Operation: "clear", Key: pattern, Err: result.Error()}
		}

		entry, err := result.AsScanEntry()
		if err != nil {
			return removed, &CacheError{Operation: "clear", Key: pattern, Err: err}
		}

		if len(entry.Elements) > 0 {
			del := c.client.B().Del().Key(entry.Elements...).Build()
			delResult := c.client.Do(ctx, del)
			if delResult.Error() != nil {
				return removed, &CacheError{Operation: "clear", Key: pattern, Err: delResult.Error()}
			}
			if n, err := delResult.AsInt64(); err == nil {
				removed += n
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Stats reads DBSIZE and the stats/memory sections of INFO.
func (c *valkeyCache) Stats(ctx context.Context) (Statistics, error) {
	stats := Statistics{}

	sizeResult := c.client.Do(ctx, c.client.B().Dbsize().Build())
	if sizeResult.Error() != nil {
		return stats, &CacheError{Operation: "stats", Key: "dbsize", Err: sizeResult.Error()}
	}
	stats.Keys, _ = sizeResult.AsInt64()

	infoResult := c.client.Do(ctx, c.client.B().Info().Section("stats", "memory").Build())
	if infoResult.Error() != nil {
		return stats, &CacheError{Operation: "stats", Key: "info", Err: infoResult.Error()}
	}
	info, err := infoResult.ToString()
	if err != nil {
		return stats, &CacheError{Operation: "stats", Key: "info", Err: err}
	}

	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "keyspace_hits:"):
			stats.Hits, _ = strconv.ParseInt(strings.TrimPrefix(line, "keyspace_hits:"), 10, 64)
		case strings.HasPrefix(line, "keyspace_misses:"):
			stats.Misses, _ = strconv.ParseInt(strings.TrimPrefix(line, "keyspace_misses:"), 10, 64)
		case strings.HasPrefix(line, "used_memory_human:"):
			stats.UsedMemory = strings.TrimPrefix(line, "used_memory_human:")
		}
	}

	stats.ServerReady = true
	return stats, nil
}

// Close closes the Valkey connection.
func (c *valkeyCache) Close() error {
	c.client.Close()
	return nil
}

// Health checks Valkey health.
func (c *valkeyCache) Health(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	result := c.client.Do(ctx, cmd)

	if result.Error() != nil {
		return fmt.Errorf("Valkey health check failed: %w", result.Error())
	}
	return nil
}

// parseValkeyURL extracts connection details from a Valkey URL.
func parseValkeyURL(valkeyURL string) (address, password string, err error) {
	u, err := url.Parse(valkeyURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Host == "" {
		return "", "", fmt.Errorf("missing host in URL")
	}
	address = u.Host

	if u.User != nil {
		password, _ = u.User.Password()
	}

	return address, password, nil
}
