package queue

import "errors"

// Sentinel errors for queue operations.
var (
	// ErrQueueFull is returned when the waiting list is at capacity.
	ErrQueueFull = errors.New("queue: queue is full")

	// ErrQueueCleared is returned to waiters whose queued item was
	// dropped by Clear before it started.
	ErrQueueCleared = errors.New("queue: queue cleared")

	// ErrIdleTimeout is returned when WaitUntilIdle gives up.
	ErrIdleTimeout = errors.New("queue: timed out waiting for idle")
)
