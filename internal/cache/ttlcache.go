// Package cache provides the in-process TTL caches backing geocoding and
// grounding memoization (spec §3 lifecycle, §4.3). Adapted from the
// teacher's LRU+Redis multi-level cache, trimmed to the single in-process
// tier the pipelines use; RedisCache is defined here but not wired into
// any service.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTLCache is a fixed-capacity LRU cache where every entry also expires
// after a TTL. Every operation, reads included, holds a single per-cache
// mutex, since a read of an expired entry also removes it.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries *lru.Cache[K, ttlEntry[V]]
	ttl     time.Duration
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTLCache creates a cache holding at most size entries, each valid for
// ttl after insertion.
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) *TTLCache[K, V] {
	if size <= 0 {
		size = 1000
	}
	c, _ := lru.New[K, ttlEntry[V]](size)
	return &TTLCache[K, V]{entries: c, ttl: ttl}
}

// Get returns the cached value for key, or ok=false if absent or expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.entries.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's configured TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, ttlEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// SetWithTTL stores value under key with an explicit per-entry TTL,
// overriding the cache default. Used when TTL varies by claim type (spec
// §4.3: transport/location 90d, neighborhood 14d, other configurable).
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, ttlEntry[V]{value: value, expiresAt: time.Now().Add(ttl)})
}

// Len reports the number of (possibly expired) entries currently held.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
