package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache for tests and valkey-less deployments.
// Expiry is checked lazily on read.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	hits   int64
	misses int64
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(c.items, key)
		c.misses++
		return nil, nil
	}
	c.hits++
	return item.data, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	c.mu.Lock()
	c.items[key] = memoryItem{data: value, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) ClearPrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryCache) Stats(_ context.Context) (Statistics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Statistics{
		Keys:        int64(len(c.items)),
		Hits:        c.hits,
		Misses:      c.misses,
		ServerReady: true,
	}, nil
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Health(context.Context) error {
	return nil
}
