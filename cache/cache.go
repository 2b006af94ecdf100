package cache

import (
	"context"
	"sync"
	"time"
)

// Config configures a Cache.
type Config struct {
	// MaxEntries bounds the number of stored entries.
	// <= 0 means unbounded.
	MaxEntries int

	// DefaultTTL is the TTL applied by Set. <= 0 means entries written
	// without an explicit TTL never expire.
	DefaultTTL time.Duration

	// Clock overrides the time source, for tests.
	// Default: time.Now
	Clock func() time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Expirations int64
	Evictions   int64
	Size        int

	// HitRate is Hits/(Hits+Misses), 0 when no lookups have happened.
	HitRate float64
}

// Factory produces a value to be cached on a GetOrSet miss.
type Factory[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time // zero means no expiry
	seq       uint64
}

// live reports whether the entry has not yet expired at now.
func (e *entry[V]) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// Cache is a capacity-bounded key-value store with TTL expiry.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Expiry: evaluated lazily on access and in PruneExpired; no goroutines.
// - Eviction: oldest-inserted entry first, never recency-based.
type Cache[V any] struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*entry[V]
	nextSeq uint64

	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	expirations int64
	evictions   int64
}

// New creates a new cache.
func New[V any](config Config) *Cache[V] {
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Cache[V]{
		config:  config,
		entries: make(map[string]*entry[V]),
	}
}

// Set stores a value using the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with an explicit TTL, overriding the default.
// ttl <= 0 means the entry never expires.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Clock()

	// Inserting a new key past capacity evicts the oldest-inserted entry.
	if _, exists := c.entries[key]; !exists {
		if c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
			c.evictOldestLocked()
		}
	}

	e := &entry[V]{
		value:     value,
		createdAt: now,
		seq:       c.nextSeq,
	}
	c.nextSeq++
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	c.entries[key] = e
	c.sets++
}

// Get retrieves a value. Returns (zero, false) on miss or expiry; expired
// entries are removed lazily.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}

	if !e.live(c.config.Clock()) {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Has reports whether a live entry exists without touching hit/miss counters.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}

	if !e.live(c.config.Clock()) {
		delete(c.entries, key)
		c.expirations++
		return false
	}

	return true
}

// GetOrSet returns the live cached value for key, or invokes factory, stores
// its result with the default TTL, and returns it.
//
// Concurrent calls for the same key are NOT coalesced: racing callers may
// invoke factory more than once. Compose with dedup.Deduplicator when a single
// execution matters.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, factory Factory[V]) (V, error) {
	return c.GetOrSetWithTTL(ctx, key, factory, c.config.DefaultTTL)
}

// GetOrSetWithTTL is GetOrSet with an explicit TTL for the stored value.
func (c *Cache[V]) GetOrSetWithTTL(ctx context.Context, key string, factory Factory[V], ttl time.Duration) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := factory(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.SetWithTTL(key, value, ttl)
	return value, nil
}

// Delete removes an entry. Returns true if an entry existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}

	delete(c.entries, key)
	c.deletes++
	return true
}

// Clear drops every entry. Counters are untouched.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
}

// PruneExpired eagerly removes every expired entry and returns the count.
func (c *Cache[V]) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Clock()
	removed := 0
	for key, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, key)
			c.expirations++
			removed++
		}
	}

	return removed
}

// Keys returns the keys of all live entries.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Clock()
	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		if e.live(now) {
			keys = append(keys, key)
		}
	}

	return keys
}

// Capacity returns the configured entry bound, or 0 when unbounded.
func (c *Cache[V]) Capacity() int {
	return c.config.MaxEntries
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Sets:        c.sets,
		Deletes:     c.deletes,
		Expirations: c.expirations,
		Evictions:   c.evictions,
		Size:        len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	return stats
}

// ResetStats zeroes all counters. Entries are untouched.
func (c *Cache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.sets = 0
	c.deletes = 0
	c.expirations = 0
	c.evictions = 0
}

// evictOldestLocked removes the oldest-inserted entry. Insertion order is
// tracked with a sequence number so same-timestamp writes still evict
// deterministically.
func (c *Cache[V]) evictOldestLocked() {
	var oldestKey string
	var oldestSeq uint64
	found := false

	for key, e := range c.entries {
		if !found || e.seq < oldestSeq {
			oldestKey = key
			oldestSeq = e.seq
			found = true
		}
	}

	if found {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}
