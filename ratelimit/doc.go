// Package ratelimit provides a per-key sliding-window rate limiter.
//
// Unlike fixed-interval buckets, the limiter counts requests in the trailing
// window ending now, so a burst never resets on an interval boundary. Pruning
// of old timestamps happens lazily inside Check; there is no background timer.
package ratelimit
