// Package queue provides a bounded-concurrency FIFO executor with
// backpressure.
//
// Operations run as soon as a concurrency slot frees up, strictly in enqueue
// order. When the waiting list is full, new work is rejected immediately
// rather than queued without bound. Clear fails every not-yet-started waiter;
// operations already running are never cancelled.
package queue
