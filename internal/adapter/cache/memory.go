package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process TTL cache. Expired entries are evicted lazily
// on read; there is no background sweeper.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	value    []byte
	inserted time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if c.now().Sub(entry.inserted) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{value: value, inserted: c.now()}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error {
	return nil
}

// Disabled is a cache that never stores anything.
type Disabled struct{}

func (Disabled) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Disabled) Set(context.Context, string, []byte)        {}
func (Disabled) Close() error                               { return nil }
