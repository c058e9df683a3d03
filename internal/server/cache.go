package server

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is used when no TTL is configured
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	value   any
	expires time.Time
}

// QueryCache memoizes query results by key until they expire or the store changes.
// Concurrent misses on the same key run the loader once.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time

	hits   int64
	misses int64
}

// NewQueryCache creates a cache whose entries live for ttl
func NewQueryCache(ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QueryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, calling load on a miss
func (c *QueryCache) Get(key string, load func() (any, error)) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.misses++
		c.entries[key] = cacheEntry{value: v, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Invalidate drops every entry
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// GetStats returns entry and hit counters
func (c *QueryCache) GetStats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]any{
		"entries": len(c.entries),
		"hits":    c.hits,
		"misses":  c.misses,
		"ttl":     c.ttl.String(),
	}
}
