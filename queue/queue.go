package queue

import (
	"context"
	"sync"
	"time"

	"github.com/campaignops/relaykit/observe"
)

const (
	// DefaultMaxConcurrency is the number of operations allowed to run
	// at once when Config.MaxConcurrency is unset.
	DefaultMaxConcurrency = 10

	// DefaultMaxQueueSize is the waiting-list capacity when
	// Config.MaxQueueSize is unset.
	DefaultMaxQueueSize = 1000

	// DefaultIdleTimeout is the deadline applied by WaitUntilIdle when
	// the caller passes a non-positive timeout.
	DefaultIdleTimeout = 30 * time.Second
)

// Op is a unit of work submitted to the queue.
type Op func(ctx context.Context) error

// Config controls queue behavior.
type Config struct {
	// MaxConcurrency is the number of operations that may run at once.
	MaxConcurrency int

	// MaxQueueSize bounds the number of operations waiting for a slot.
	// Submissions beyond this bound fail fast with ErrQueueFull.
	MaxQueueSize int

	// Logger receives queue lifecycle events. Defaults to a no-op logger.
	Logger observe.Logger

	// Clock overrides time.Now, used by tests.
	Clock func() time.Time
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.Logger == nil {
		c.Logger = observe.NewNopLogger()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Stats is a snapshot of queue activity.
type Stats struct {
	Pending               int
	Active                int
	Completed             int64
	Failed                int64
	Rejected              int64
	MaxConcurrencyReached int64
}

// item is one queued submission awaiting a concurrency slot.
type item struct {
	ready      chan struct{}
	cleared    chan struct{}
	enqueuedAt time.Time
}

// Queue runs submitted operations with bounded concurrency. Waiting
// operations start strictly in enqueue order.
type Queue struct {
	config Config

	mu      sync.Mutex
	waiting []*item
	active  int

	completed             int64
	failed                int64
	rejected              int64
	maxConcurrencyReached int64
}

// New creates a queue with the given configuration.
func New(config Config) *Queue {
	config.applyDefaults()
	return &Queue{config: config}
}

// Execute submits op and blocks until it has run, returning the
// operation's error. If the waiting list is full the submission is
// rejected immediately with ErrQueueFull. A waiter whose context is
// cancelled before its slot frees up gives the slot back and returns
// the context error.
func (q *Queue) Execute(ctx context.Context, op Op) error {
	q.mu.Lock()
	if q.active >= q.config.MaxConcurrency && len(q.waiting) >= q.config.MaxQueueSize {
		q.rejected++
		pending := len(q.waiting)
		q.mu.Unlock()
		q.config.Logger.Warn(ctx, "queue full, rejecting operation",
			observe.Field{Key: "pending", Value: pending},
			observe.Field{Key: "max_queue_size", Value: q.config.MaxQueueSize})
		return ErrQueueFull
	}
	it := &item{
		ready:      make(chan struct{}),
		cleared:    make(chan struct{}),
		enqueuedAt: q.config.Clock(),
	}
	q.waiting = append(q.waiting, it)
	q.dispatchLocked()
	q.mu.Unlock()

	if err := q.awaitStart(ctx, it); err != nil {
		return err
	}

	opErr := op(ctx)

	q.mu.Lock()
	q.active--
	if opErr != nil {
		q.failed++
	} else {
		q.completed++
	}
	q.dispatchLocked()
	q.mu.Unlock()

	return opErr
}

// awaitStart blocks until the item is dispatched, cleared, or the
// caller's context expires.
func (q *Queue) awaitStart(ctx context.Context, it *item) error {
	select {
	case <-it.ready:
		return nil
	case <-it.cleared:
		return ErrQueueCleared
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiting {
			if w == it {
				q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// Already dispatched or cleared between Done and the lock.
		select {
		case <-it.ready:
			return nil
		case <-it.cleared:
			return ErrQueueCleared
		}
	}
}

// dispatchLocked moves waiters into active slots while capacity allows.
// Callers must hold q.mu.
func (q *Queue) dispatchLocked() {
	for q.active < q.config.MaxConcurrency && len(q.waiting) > 0 {
		it := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.active++
		if q.active == q.config.MaxConcurrency {
			q.maxConcurrencyReached++
		}
		close(it.ready)
	}
}

// Clear drops every waiting operation and returns the number dropped.
// Each dropped waiter's Execute call returns ErrQueueCleared. Running
// operations are not affected, and dropped waiters are not counted as
// failed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.waiting
	q.waiting = nil
	q.mu.Unlock()

	for _, it := range dropped {
		close(it.cleared)
	}
	if len(dropped) > 0 {
		q.config.Logger.Info(context.Background(), "queue cleared",
			observe.Field{Key: "dropped", Value: len(dropped)})
	}
	return len(dropped)
}

// WaitUntilIdle blocks until no operations are running or waiting. A
// non-positive timeout uses DefaultIdleTimeout. Returns ErrIdleTimeout
// if the queue is still busy at the deadline, or the context error if
// ctx expires first.
func (q *Queue) WaitUntilIdle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for {
		q.mu.Lock()
		idle := q.active == 0 && len(q.waiting) == 0
		q.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			q.config.Logger.Debug(ctx, "idle wait timed out",
				observe.Field{Key: "timeout", Value: timeout.String()})
			return ErrIdleTimeout
		case <-tick.C:
		}
	}
}

// Capacity returns the configured waiting-list bound.
func (q *Queue) Capacity() int {
	return q.config.MaxQueueSize
}

// Stats returns a snapshot of queue activity.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:               len(q.waiting),
		Active:                q.active,
		Completed:             q.completed,
		Failed:                q.failed,
		Rejected:              q.rejected,
		MaxConcurrencyReached: q.maxConcurrencyReached,
	}
}

// ResetStats zeroes the cumulative counters. Pending and active counts
// reflect live state and are not affected.
func (q *Queue) ResetStats() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = 0
	q.failed = 0
	q.rejected = 0
	q.maxConcurrencyReached = 0
}
