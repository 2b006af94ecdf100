package health

import (
	"context"
	"fmt"

	"github.com/campaignops/relaykit/cache"
	"github.com/campaignops/relaykit/idempotency"
	"github.com/campaignops/relaykit/queue"
)

var (
	_ Checker = (*QueueChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
	_ Checker = (*IdempotencyChecker)(nil)
)

// Thresholds sets the saturation ratios at which a component is
// considered degraded or unhealthy. Values are fractions of capacity.
type Thresholds struct {
	// Warning triggers degraded status. Default: 0.8
	Warning float64

	// Critical triggers unhealthy status. Default: 0.95
	Critical float64
}

func (t *Thresholds) applyDefaults() {
	if t.Warning <= 0 || t.Warning >= 1 {
		t.Warning = 0.8
	}
	if t.Critical <= 0 || t.Critical > 1 {
		t.Critical = 0.95
	}
	if t.Critical < t.Warning {
		t.Critical = t.Warning
	}
}

func (t Thresholds) classify(name string, ratio float64, details map[string]any) Result {
	switch {
	case ratio >= t.Critical:
		return Unhealthy(
			fmt.Sprintf("%s saturation critical: %.1f%%", name, ratio*100),
			ErrCheckFailed,
		).WithDetails(details)
	case ratio >= t.Warning:
		return Degraded(
			fmt.Sprintf("%s saturation high: %.1f%%", name, ratio*100),
		).WithDetails(details)
	default:
		return Healthy(
			fmt.Sprintf("%s saturation normal: %.1f%%", name, ratio*100),
		).WithDetails(details)
	}
}

// QueueChecker reports how full a request queue's waiting list is.
type QueueChecker struct {
	queue      *queue.Queue
	thresholds Thresholds
}

// NewQueueChecker creates a checker for the given queue.
func NewQueueChecker(q *queue.Queue, thresholds Thresholds) *QueueChecker {
	thresholds.applyDefaults()
	return &QueueChecker{queue: q, thresholds: thresholds}
}

// Name identifies this checker.
func (c *QueueChecker) Name() string {
	return "queue"
}

// Check reports queue backlog saturation.
func (c *QueueChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := c.queue.Stats()
	capacity := c.queue.Capacity()
	ratio := float64(stats.Pending) / float64(capacity)

	details := map[string]any{
		"pending":   stats.Pending,
		"active":    stats.Active,
		"capacity":  capacity,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"rejected":  stats.Rejected,
	}
	return c.thresholds.classify("queue", ratio, details)
}

// cacheState is the subset of cache behavior the checker needs. It is
// satisfied by cache.Cache regardless of the value type parameter.
type cacheState interface {
	Stats() cache.Stats
	Capacity() int
}

// CacheChecker reports how full a response cache is.
type CacheChecker struct {
	cache      cacheState
	thresholds Thresholds
}

// NewCacheChecker creates a checker for the given cache. Any
// cache.Cache value works here regardless of its type parameter.
func NewCacheChecker(c cacheState, thresholds Thresholds) *CacheChecker {
	thresholds.applyDefaults()
	return &CacheChecker{cache: c, thresholds: thresholds}
}

// Name identifies this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reports cache saturation. An unbounded cache is always healthy.
func (c *CacheChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := c.cache.Stats()
	capacity := c.cache.Capacity()

	details := map[string]any{
		"size":        stats.Size,
		"capacity":    capacity,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"hit_rate":    stats.HitRate,
		"evictions":   stats.Evictions,
		"expirations": stats.Expirations,
	}

	if capacity <= 0 {
		return Healthy("cache unbounded").WithDetails(details)
	}
	ratio := float64(stats.Size) / float64(capacity)
	return c.thresholds.classify("cache", ratio, details)
}

// IdempotencyChecker reports how full an idempotency store is.
type IdempotencyChecker struct {
	store      *idempotency.Store
	thresholds Thresholds
}

// NewIdempotencyChecker creates a checker for the given store.
func NewIdempotencyChecker(s *idempotency.Store, thresholds Thresholds) *IdempotencyChecker {
	thresholds.applyDefaults()
	return &IdempotencyChecker{store: s, thresholds: thresholds}
}

// Name identifies this checker.
func (c *IdempotencyChecker) Name() string {
	return "idempotency"
}

// Check reports idempotency store saturation. An unbounded store is
// always healthy.
func (c *IdempotencyChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := c.store.Stats()
	capacity := c.store.Capacity()

	details := map[string]any{
		"total":              stats.Total,
		"pending":            stats.Pending,
		"completed":          stats.Completed,
		"failed":             stats.Failed,
		"capacity":           capacity,
		"duplicates_blocked": stats.DuplicatesBlocked,
	}

	if capacity <= 0 {
		return Healthy("idempotency store unbounded").WithDetails(details)
	}
	ratio := float64(stats.Total) / float64(capacity)
	return c.thresholds.classify("idempotency store", ratio, details)
}
