package cache

import (
	"context"
	"time"
)

// Cache is the byte-level store behind the result cache and admin tooling.
type Cache interface {
	// Get retrieves a value. A missing key is (nil, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an expiration; zero means no expiry.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// ClearPrefix deletes every key matching prefix* and returns the count.
	ClearPrefix(ctx context.Context, prefix string) (int64, error)

	// Stats reports store-level counters for the admin surface.
	Stats(ctx context.Context) (Statistics, error)

	// Close closes the underlying connection.
	Close() error

	// Health checks connectivity.
	Health(ctx context.Context) error
}

// Statistics is the store-level counter snapshot served by admin endpoints.
type Statistics struct {
	Keys        int64  `json:"keys"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	UsedMemory  string `json:"used_memory,omitempty"`
	ServerReady bool   `json:"server_ready"`
}

// CacheError represents a cache operation error.
type CacheError struct {
	Operation string
	Key       string
	Err       error
}

func (e *CacheError) Error() string {
	return "cache " + e.Operation + " failed for key '" + e.Key + "': " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
