package idempotency

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a tracked operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is the tracked state for one idempotency key.
type Entry struct {
	Key      string
	Status   Status
	Attempts int

	// Result holds the operation outcome once completed.
	Result any

	// Error holds the failure message text once failed.
	Error string

	CreatedAt time.Time

	// CompletedAt is set when the entry reaches a terminal status.
	CompletedAt time.Time

	// ExpiresAt is zero when the store has no TTL.
	ExpiresAt time.Time
}

// live reports whether the entry has not yet expired at now.
func (e *Entry) live(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// Config configures a Store.
type Config struct {
	// MaxEntries bounds the number of tracked keys.
	// <= 0 means unbounded.
	MaxEntries int

	// TTL is how long an entry stays live after creation.
	// <= 0 means entries never expire.
	TTL time.Duration

	// Clock overrides the time source, for tests.
	// Default: time.Now
	Clock func() time.Time
}

// Stats is a point-in-time snapshot of store state. Status tallies include
// expired entries that have not been lazily purged yet.
type Stats struct {
	Total             int
	Pending           int
	Completed         int
	Failed            int
	DuplicatesBlocked int64
}

type record struct {
	entry Entry
	seq   uint64
}

// Store tracks operation outcomes by idempotency key.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: no method fails for a missing key; mutations are no-ops.
type Store struct {
	mu      sync.Mutex
	config  Config
	records map[string]*record
	nextSeq uint64

	duplicatesBlocked int64
}

// NewStore creates a new store.
func NewStore(config Config) *Store {
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Store{
		config:  config,
		records: make(map[string]*record),
	}
}

// Start creates a pending entry for key and returns true, or returns false
// when any live entry already exists, including completed and failed ones
// still within TTL.
func (s *Store) Start(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Clock()

	if rec, ok := s.records[key]; ok {
		if rec.entry.live(now) {
			s.duplicatesBlocked++
			return false
		}
		delete(s.records, key)
	}

	if s.config.MaxEntries > 0 && len(s.records) >= s.config.MaxEntries {
		s.evictOldestLocked()
	}

	entry := Entry{
		Key:       key,
		Status:    StatusPending,
		Attempts:  1,
		CreatedAt: now,
	}
	if s.config.TTL > 0 {
		entry.ExpiresAt = now.Add(s.config.TTL)
	}

	s.records[key] = &record{entry: entry, seq: s.nextSeq}
	s.nextSeq++
	return true
}

// Check returns a copy of the current entry for key, or false when the key is
// missing or expired. Expired entries are purged here.
func (s *Store) Check(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Entry{}, false
	}

	if !rec.entry.live(s.config.Clock()) {
		delete(s.records, key)
		return Entry{}, false
	}

	return rec.entry, true
}

// RecordRetry increments the attempt counter for an existing entry.
// No-op when the key is absent.
func (s *Store) RecordRetry(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		rec.entry.Attempts++
	}
}

// Complete transitions a pending entry to completed, storing the result and
// completion time. No-op when the key is absent or already terminal.
func (s *Store) Complete(key string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.entry.Status != StatusPending {
		return
	}

	rec.entry.Status = StatusCompleted
	rec.entry.Result = result
	rec.entry.CompletedAt = s.config.Clock()
}

// Fail transitions a pending entry to failed, storing the error's message
// text. No-op when the key is absent or already terminal.
func (s *Store) Fail(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.entry.Status != StatusPending {
		return
	}

	rec.entry.Status = StatusFailed
	if err != nil {
		rec.entry.Error = err.Error()
	}
	rec.entry.CompletedAt = s.config.Clock()
}

// Remove deletes the entry for key. Returns true when a live entry existed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false
	}

	delete(s.records, key)
	return rec.entry.live(s.config.Clock())
}

// PruneExpired eagerly removes every expired entry and returns the count.
func (s *Store) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Clock()
	removed := 0
	for key, rec := range s.records {
		if !rec.entry.live(now) {
			delete(s.records, key)
			removed++
		}
	}

	return removed
}

// Clear drops every entry. The duplicate counter is untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*record)
}

// Capacity returns the configured key bound, or 0 when unbounded.
func (s *Store) Capacity() int {
	return s.config.MaxEntries
}

// Stats returns a snapshot of the store state.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Total:             len(s.records),
		DuplicatesBlocked: s.duplicatesBlocked,
	}
	for _, rec := range s.records {
		switch rec.entry.Status {
		case StatusPending:
			stats.Pending++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}

	return stats
}

// ResetStats zeroes the duplicate counter only.
func (s *Store) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.duplicatesBlocked = 0
}

// evictOldestLocked removes the oldest-created entry, mirroring the cache's
// insertion-order eviction.
func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldestSeq uint64
	found := false

	for key, rec := range s.records {
		if !found || rec.seq < oldestSeq {
			oldestKey = key
			oldestSeq = rec.seq
			found = true
		}
	}

	if found {
		delete(s.records, oldestKey)
	}
}
