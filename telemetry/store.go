package telemetry

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Snapshot is a committed record together with its commit metadata.
type Snapshot struct {
	Record    Record    `json:"record"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store holds the latest telemetry record. Every operation takes the single
// lock around the whole record so readers only ever see committed values.
type Store struct {
	mu        sync.RWMutex
	record    Record
	version   uint64
	updatedAt time.Time
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock stamps commits with clock instead of the wall clock.
func WithClock(clock clockwork.Clock) StoreOption {
	return func(s *Store) {
		s.now = clock.Now
	}
}

func NewStore(options ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, option := range options {
		option(s)
	}
	return s
}

// Update replaces the stored record.
func (s *Store) Update(r Record) {
	s.Apply(NewUpdate(r))
}

// Apply merges u into the stored record and returns the committed result.
func (s *Store) Apply(u Update) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := u.Apply(s.record)
	s.commit(next)
	return next
}

func (s *Store) commit(r Record) {
	s.record = r
	s.version++
	s.updatedAt = s.now()
}

// Read returns a copy of the current record.
func (s *Store) Read() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Record:    s.record,
		Version:   s.version,
		UpdatedAt: s.updatedAt,
	}
}
