// Package cache provides an in-memory expiring cache for upstream API
// responses.
//
// Entries carry an optional TTL and are expired lazily on access plus an
// explicit PruneExpired sweep; there is no background timer. When the cache
// is capacity-bounded, inserting past MaxEntries evicts the oldest-inserted
// entry, deliberately by insertion order rather than recency.
package cache
