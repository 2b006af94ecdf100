package client

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBaseURL indicates the client was configured without an
	// upstream base URL.
	ErrMissingBaseURL = errors.New("client: missing base URL")

	// ErrOperationInFlight indicates a mutation with the same
	// idempotency key is still running.
	ErrOperationInFlight = errors.New("client: operation already in flight")

	// ErrTokenUnavailable indicates no bearer token could be obtained.
	ErrTokenUnavailable = errors.New("client: token unavailable")
)

// APIError is returned for non-2xx upstream responses. The body is
// retained so callers can surface the upstream error payload.
type APIError struct {
	StatusCode int
	Status     string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("client: upstream returned %s", e.Status)
}

// Retryable reports whether the response status is worth retrying.
// Server errors and upstream throttling qualify; other client errors
// do not.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsRetryable reports whether err should trigger another attempt.
// Network-level failures are retryable; upstream responses follow
// APIError.Retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
