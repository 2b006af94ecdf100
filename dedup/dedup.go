package dedup

import (
	"context"
	"sync"
)

// Stats is a point-in-time snapshot of deduplicator counters.
type Stats struct {
	// Completed counts settled executions that returned nil error.
	Completed int64

	// Deduplicated counts callers that subscribed to an in-flight
	// execution instead of starting their own.
	Deduplicated int64

	// Failed counts settled executions that returned an error.
	Failed int64

	// ActiveRequests is the number of distinct keys currently in flight.
	ActiveRequests int
}

// Fn is the operation to run once per in-flight key.
type Fn func(ctx context.Context) (any, error)

// call is one shared in-flight execution. value and err are written before
// done is closed and never after, so waiters read them without locking.
type call struct {
	done  chan struct{}
	value any
	err   error
}

// Deduplicator shares one pending execution's outcome among all concurrent
// callers for the same key.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: fn's error passes through unchanged to every coalesced waiter.
type Deduplicator struct {
	mu    sync.Mutex
	calls map[string]*call

	completed    int64
	deduplicated int64
	failed       int64
}

// New creates a new deduplicator.
func New() *Deduplicator {
	return &Deduplicator{
		calls: make(map[string]*call),
	}
}

// Execute runs fn, or joins the execution already in flight for key. All
// callers observe the identical result or error. The entry is removed the
// moment the execution settles, so a later call for the same key runs anew.
//
// fn receives the context of the caller that started the execution; callers
// that joined later cannot cancel it.
func (d *Deduplicator) Execute(ctx context.Context, key string, fn Fn) (any, error) {
	d.mu.Lock()
	if existing, ok := d.calls[key]; ok {
		d.deduplicated++
		d.mu.Unlock()

		<-existing.done
		return existing.value, existing.err
	}

	c := &call{done: make(chan struct{})}
	d.calls[key] = c
	d.mu.Unlock()

	c.value, c.err = fn(ctx)

	d.mu.Lock()
	// Clear may have dropped the entry, and a fresh flight may own the key
	// by now; only remove our own.
	if current, ok := d.calls[key]; ok && current == c {
		delete(d.calls, key)
	}
	if c.err != nil {
		d.failed++
	} else {
		d.completed++
	}
	d.mu.Unlock()

	close(c.done)
	return c.value, c.err
}

// IsInFlight reports whether an execution for key is pending.
func (d *Deduplicator) IsInFlight(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.calls[key]
	return ok
}

// ActiveCount returns the number of distinct pending keys.
func (d *Deduplicator) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.calls)
}

// Clear drops bookkeeping for every pending key. Executions already started
// run to completion and still resolve their original waiters; subsequent
// Execute calls for the same keys start fresh executions.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = make(map[string]*call)
}

// Stats returns a snapshot of the deduplicator counters.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Completed:      d.completed,
		Deduplicated:   d.deduplicated,
		Failed:         d.failed,
		ActiveRequests: len(d.calls),
	}
}

// ResetStats zeroes the counters. In-flight bookkeeping is untouched.
func (d *Deduplicator) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.completed = 0
	d.deduplicated = 0
	d.failed = 0
}
