// Package cache provides a small in-memory TTL cache and a cached
// workflow definition provider built on it. The trigger pipeline and
// the schedule processor look up definitions on every firing; caching
// keeps those lookups off the storage backend.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      any
	expiresAt  time.Time
	lastAccess time.Time
}

// TTLCache is a thread-safe map with per-entry expiry and a size
// bound. When full, the least recently accessed entry is evicted.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]*entry

	defaultTTL time.Duration
	maxSize    int
	now        func() time.Time
}

type Option func(*TTLCache)

// WithTTL sets the expiry applied when Set is called with a zero ttl.
func WithTTL(ttl time.Duration) Option {
	return func(c *TTLCache) { c.defaultTTL = ttl }
}

// WithMaxSize bounds the number of entries. Zero means unbounded.
func WithMaxSize(n int) Option {
	return func(c *TTLCache) { c.maxSize = n }
}

func New(opts ...Option) *TTLCache {
	c := &TTLCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, or false if the key is absent
// or expired. Expired entries are removed on access.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	e.lastAccess = now
	return e.value, true
}

// Set stores value under key. A zero ttl uses the cache default; a
// negative default leaves the entry without expiry.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := c.now()
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictLRU()
		}
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	c.entries[key] = &entry{value: value, expiresAt: expiresAt, lastAccess: now}
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLRU removes the least recently accessed entry. Caller holds
// the lock.
func (c *TTLCache) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = e.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
