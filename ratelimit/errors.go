package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is matched by errors.Is against any *RateLimitError.
var ErrRateLimited = errors.New("ratelimit: limit exceeded")

// RateLimitError reports a rejected request and how long to back off.
type RateLimitError struct {
	// Key is the limiter key that was rejected.
	Key string

	// RetryAfter is the time until the oldest retained request leaves the
	// window. Always > 0.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("ratelimit: limit exceeded for %q, retry after %s", e.Key, e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
