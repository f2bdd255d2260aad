package storage

import (
	"context"
	"errors"
	"time"

	"github.com/nicktill/crowdwait/pkg/swipes"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the interface for swipe storage backends.
// Implementations: memory (testing), badger (production), sqlite (portable file)
type Storage interface {
	// AppendEvents stores normalized events. Events with an ID already
	// present are overwritten, never duplicated.
	AppendEvents(ctx context.Context, events []swipes.Event) error

	// Events returns every stored event.
	Events(ctx context.Context) ([]swipes.Event, error)

	// ReplaceBuckets swaps the whole aggregate store. Readers observe either
	// the previous set or the new one, never a mix.
	ReplaceBuckets(ctx context.Context, buckets []swipes.Bucket) error

	// Buckets returns the current aggregate store.
	Buckets(ctx context.Context) ([]swipes.Bucket, error)

	// Cursor returns the last committed log timestamp, or ErrNotFound.
	Cursor(ctx context.Context) (time.Time, error)

	// SetCursor persists the log high-water mark.
	SetCursor(ctx context.Context, ts time.Time) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Stats provides storage health and usage info
type Stats struct {
	// Normalized events stored
	TotalEvents uint64 `json:"total_events"`

	// Aggregate buckets in the live set
	TotalBuckets uint64 `json:"total_buckets"`

	// Distinct locations with events
	Locations uint64 `json:"locations"`

	// Oldest and newest observation timestamps
	OldestEvent time.Time `json:"oldest_event"`
	NewestEvent time.Time `json:"newest_event"`

	// Committed log cursor (zero if never committed)
	Cursor time.Time `json:"cursor"`

	// Storage size in bytes (estimate for memory)
	SizeBytes uint64 `json:"size_bytes"`
}

// Observe folds one event into running stats. Backends share it so the
// numbers mean the same thing everywhere.
func (s *Stats) Observe(e swipes.Event, seen map[string]struct{}) {
	s.TotalEvents++
	if _, ok := seen[e.Location]; !ok {
		seen[e.Location] = struct{}{}
		s.Locations++
	}
	if s.OldestEvent.IsZero() || e.ObservedAt.Before(s.OldestEvent) {
		s.OldestEvent = e.ObservedAt
	}
	if e.ObservedAt.After(s.NewestEvent) {
		s.NewestEvent = e.ObservedAt
	}
}
