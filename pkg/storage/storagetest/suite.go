// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// Event builds a test event observed at ts.
func Event(ts time.Time, location string, seq, n int) swipes.Event {
	return swipes.Event{
		Date:        ts.Format(swipes.DateLayout),
		Weekday:     swipes.WeekdayName(ts.Weekday()),
		SessionType: "regular",
		Location:    location,
		StartTime:   "12:00 PM",
		EndTime:     "12:30 PM",
		Swipes:      n,
		ObservedAt:  ts,
		Seq:         seq,
	}
}

// Run exercises the storage.Storage contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("AppendAndRead", func(t *testing.T) { testAppendAndRead(t, newStore(t)) })
	t.Run("AppendIsIdempotent", func(t *testing.T) { testAppendIdempotent(t, newStore(t)) })
	t.Run("ReplaceBuckets", func(t *testing.T) { testReplaceBuckets(t, newStore(t)) })
	t.Run("Cursor", func(t *testing.T) { testCursor(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelled(t, newStore(t)) })
}

var base = time.Date(2024, time.March, 4, 12, 15, 0, 0, time.UTC)

func testAppendAndRead(t *testing.T, s storage.Storage) {
	defer s.Close()
	ctx := context.Background()

	events := []swipes.Event{
		Event(base.Add(time.Hour), "RPME", 0, 12),
		Event(base, "Okenshaws", 1, 7),
		Event(base, "Becker", 0, 30),
	}
	require.NoError(t, s.AppendEvents(ctx, events))

	got, err := s.Events(ctx)
	require.NoError(t, err)

	want := []swipes.Event{events[2], events[1], events[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Events() mismatch (-want +got):\n%s", diff)
	}
}

func testAppendIdempotent(t *testing.T, s storage.Storage) {
	defer s.Close()
	ctx := context.Background()

	first := []swipes.Event{Event(base, "RPME", 0, 40), Event(base, "RPME", 1, 5)}
	require.NoError(t, s.AppendEvents(ctx, first))

	// Same identities, one with a corrected count.
	again := []swipes.Event{Event(base, "RPME", 0, 41)}
	require.NoError(t, s.AppendEvents(ctx, again))

	got, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 41, got[0].Swipes)
	assert.Equal(t, 1, got[1].Seq)
}

func testReplaceBuckets(t *testing.T, s storage.Storage) {
	defer s.Close()
	ctx := context.Background()

	got, err := s.Buckets(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	first := []swipes.Bucket{
		{Weekday: "monday", Location: "RPME", StartTime: "12:00 PM", EndTime: "12:30 PM", SessionType: "regular", TotalSwipes: 40, SampleCount: 1, Average: 40, WaitTimeLow: 2, WaitTimeHigh: 4},
		{Weekday: "monday", Location: "RPME", StartTime: "12:30 PM", EndTime: "01:00 PM", SessionType: "regular", TotalSwipes: 20, SampleCount: 2, Average: 10, WaitTimeLow: 0, WaitTimeHigh: 3},
		{Weekday: "tuesday", Location: "Becker", StartTime: "06:00 PM", EndTime: "06:30 PM", SessionType: "regular", TotalSwipes: 9, SampleCount: 1, Average: 9, WaitTimeLow: 0, WaitTimeHigh: 3},
	}
	require.NoError(t, s.ReplaceBuckets(ctx, first))

	got, err = s.Buckets(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("Buckets() after first replace (-want +got):\n%s", diff)
	}

	// A smaller set fully replaces the larger one.
	second := []swipes.Bucket{first[2]}
	require.NoError(t, s.ReplaceBuckets(ctx, second))

	got, err = s.Buckets(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("Buckets() after second replace (-want +got):\n%s", diff)
	}

	require.NoError(t, s.ReplaceBuckets(ctx, nil))
	got, err = s.Buckets(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCursor(t *testing.T, s storage.Storage) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Cursor(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound), "want ErrNotFound, got %v", err)

	require.NoError(t, s.SetCursor(ctx, base))
	got, err := s.Cursor(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(base), "cursor = %v, want %v", got, base)

	later := base.Add(30 * time.Minute)
	require.NoError(t, s.SetCursor(ctx, later))
	got, err = s.Cursor(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(later), "cursor = %v, want %v", got, later)
}

func testStats(t *testing.T, s storage.Storage) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.AppendEvents(ctx, []swipes.Event{
		Event(base, "RPME", 0, 1),
		Event(base.Add(time.Hour), "RPME", 0, 2),
		Event(base.Add(2*time.Hour), "Becker", 0, 3),
	}))
	require.NoError(t, s.ReplaceBuckets(ctx, []swipes.Bucket{{Location: "RPME", SampleCount: 1}}))
	require.NoError(t, s.SetCursor(ctx, base.Add(2*time.Hour)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalEvents)
	assert.Equal(t, uint64(1), stats.TotalBuckets)
	assert.Equal(t, uint64(2), stats.Locations)
	assert.True(t, stats.OldestEvent.Equal(base))
	assert.True(t, stats.NewestEvent.Equal(base.Add(2*time.Hour)))
	assert.True(t, stats.Cursor.Equal(base.Add(2*time.Hour)))
}

func testCancelled(t *testing.T, s storage.Storage) {
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.AppendEvents(ctx, []swipes.Event{Event(base, "RPME", 0, 1)})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Events(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
