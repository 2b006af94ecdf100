package client

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff defines how delays grow between attempts.
type Backoff int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential Backoff = iota
	// BackoffLinear grows the delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay every attempt.
	BackoffConstant
)

// RetryConfig controls how upstream calls are retried.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	// Default: 2.0
	Multiplier float64

	// Backoff selects the delay growth strategy.
	// Default: BackoffExponential
	Backoff Backoff

	// Jitter adds up to 25% random variance to each delay.
	Jitter bool

	// RetryIf decides whether an error triggers another attempt.
	// Default: IsRetryable
	RetryIf func(err error) bool

	// OnRetry is invoked before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns the retry settings used when Config.Retry
// is left zero-valued.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryIf:      IsRetryable,
	}
}

func (c *RetryConfig) applyDefaults() {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.RetryIf == nil {
		c.RetryIf = def.RetryIf
	}
}

// retrier runs operations with backoff per its config.
type retrier struct {
	config RetryConfig
}

func newRetrier(config RetryConfig) *retrier {
	config.applyDefaults()
	return &retrier{config: config}
}

// execute runs op until it succeeds, exhausts attempts, hits a
// non-retryable error, or the context expires.
func (r *retrier) execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (r *retrier) delay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Backoff {
	case BackoffConstant:
		delay = r.config.InitialDelay
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		factor := math.Pow(r.config.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * factor)
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
	}

	return delay
}
