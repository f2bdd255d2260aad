package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// Storage stores swipe data in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	events  map[string]swipes.Event
	buckets []swipes.Bucket
	cursor  time.Time
	mu      sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		events: make(map[string]swipes.Event, 10000),
	}
}

// AppendEvents stores events keyed by identity
func (s *Storage) AppendEvents(ctx context.Context, events []swipes.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.events[e.ID()] = e
	}
	return nil
}

// Events returns all events ordered by observation time
func (s *Storage) Events(ctx context.Context) ([]swipes.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]swipes.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	s.mu.RUnlock()

	storage.SortEvents(out)
	return out, nil
}

// ReplaceBuckets swaps the aggregate set under the write lock
func (s *Storage) ReplaceBuckets(ctx context.Context, buckets []swipes.Bucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := make([]swipes.Bucket, len(buckets))
	copy(next, buckets)

	s.mu.Lock()
	s.buckets = next
	s.mu.Unlock()
	return nil
}

// Buckets returns a copy of the live aggregate set
func (s *Storage) Buckets(ctx context.Context) ([]swipes.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]swipes.Bucket, len(s.buckets))
	copy(out, s.buckets)
	return out, nil
}

// Cursor returns the committed cursor
func (s *Storage) Cursor(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cursor.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return s.cursor, nil
}

// SetCursor records the cursor
func (s *Storage) SetCursor(ctx context.Context, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cursor = ts
	s.mu.Unlock()
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalBuckets: uint64(len(s.buckets)),
		Cursor:       s.cursor,
	}

	seen := make(map[string]struct{})
	for _, e := range s.events {
		stats.Observe(e, seen)
	}

	// Rough size estimate (each event ~150 bytes)
	stats.SizeBytes = uint64(len(s.events)) * 150

	return stats, nil
}

var _ storage.Storage = (*Storage)(nil)
