package ratelimit

import (
	"sync"
	"time"
)

// Config configures a Limiter.
type Config struct {
	// Limit is the number of requests allowed per key within the window.
	// Default: 60
	Limit int

	// Window is the sliding window length.
	// Default: 60 seconds
	Window time.Duration

	// Clock overrides the time source, for tests.
	// Default: time.Now
	Clock func() time.Time
}

// Stats is a point-in-time snapshot of limiter state.
type Stats struct {
	// Keys is the number of tracked keys. Keys whose requests have all
	// aged out stay counted until their next Check prunes them.
	Keys int

	// TotalRequests is the sum of retained timestamps as of the last
	// Check per key. Pruning is lazy, not wall-clock exact.
	TotalRequests int
}

// Limiter is a per-key sliding-window request counter.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: the first call to reach Check for a key wins the last slot.
type Limiter struct {
	mu      sync.Mutex
	config  Config
	windows map[string][]time.Time
}

// New creates a new limiter.
func New(config Config) *Limiter {
	// Apply defaults
	if config.Limit <= 0 {
		config.Limit = 60
	}
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Limiter{
		config:  config,
		windows: make(map[string][]time.Time),
	}
}

// Check records a request for key if it is within the limit, or returns a
// *RateLimitError carrying the back-off duration. Rejected requests are not
// recorded.
func (l *Limiter) Check(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.config.Clock()
	cutoff := now.Add(-l.config.Window)

	retained := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			retained = append(retained, ts)
		}
	}

	if len(retained) >= l.config.Limit {
		l.windows[key] = retained
		return &RateLimitError{
			Key:        key,
			RetryAfter: retained[0].Sub(cutoff),
		}
	}

	l.windows[key] = append(retained, now)
	return nil
}

// Reset clears the window for a single key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
}

// ResetAll clears every tracked key.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows = make(map[string][]time.Time)
}

// Stats returns a snapshot of the limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, window := range l.windows {
		total += len(window)
	}

	return Stats{
		Keys:          len(l.windows),
		TotalRequests: total,
	}
}
