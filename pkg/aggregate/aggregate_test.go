package aggregate

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/storage/memory"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

func testTable(t *testing.T) *locations.Table {
	t.Helper()
	table, err := locations.NewTable([]locations.Location{
		{Key: "RPME", Category: locations.DiningHall},
		{Key: "Marthas", Category: locations.CafeOnly},
		{Key: "Trillium", Category: locations.Specialty},
	}, map[locations.Category]float64{
		locations.CafeOnly:   0.25,
		locations.DiningHall: 0.05,
		locations.Specialty:  0.15,
	})
	require.NoError(t, err)
	return table
}

var seq int

func event(date, weekday, location, start, end string, n int) swipes.Event {
	seq++
	return swipes.Event{
		Date:        date,
		Weekday:     weekday,
		SessionType: "regular",
		Location:    location,
		StartTime:   start,
		EndTime:     end,
		Swipes:      n,
		ObservedAt:  time.Unix(int64(seq), 0),
	}
}

func TestAggregate_SingleSample(t *testing.T) {
	events := []swipes.Event{event("2019-10-15", "tuesday", "RPME", "12:00 PM", "12:30 PM", 40)}

	got, err := Aggregate(events, testTable(t))
	require.NoError(t, err)

	want := []swipes.Bucket{{
		Weekday:      "tuesday",
		Location:     "RPME",
		StartTime:    "12:00 PM",
		EndTime:      "12:30 PM",
		SessionType:  "regular",
		TotalSwipes:  40,
		SampleCount:  1,
		Average:      40,
		WaitTimeLow:  2,
		WaitTimeHigh: 4,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_CountsDistinctDates(t *testing.T) {
	events := []swipes.Event{
		event("2024-03-04", "monday", "RPME", "12:00 PM", "12:30 PM", 10),
		event("2024-03-11", "monday", "RPME", "12:00 PM", "12:30 PM", 20),
	}

	got, err := Aggregate(events, testTable(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].SampleCount)
	assert.Equal(t, 30, got[0].TotalSwipes)
	assert.Equal(t, 15.0, got[0].Average)
}

func TestAggregate_CollapsesSameDay(t *testing.T) {
	// Two polls inside one block on one date are one sample.
	events := []swipes.Event{
		event("2024-03-04", "monday", "Marthas", "12:00 PM", "12:30 PM", 6),
		event("2024-03-04", "monday", "Marthas", "12:00 PM", "12:30 PM", 4),
		event("2024-03-11", "monday", "Marthas", "12:00 PM", "12:30 PM", 5),
	}

	got, err := Aggregate(events, testTable(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].SampleCount)
	assert.Equal(t, 15, got[0].TotalSwipes)
	assert.Equal(t, 7.5, got[0].Average)
	// 7.5 * 0.25 = 1.875
	assert.Equal(t, 1, got[0].WaitTimeLow)
	assert.Equal(t, 4, got[0].WaitTimeHigh)
}

func TestAggregate_RoundsAverage(t *testing.T) {
	events := []swipes.Event{
		event("2024-03-04", "monday", "RPME", "01:00 PM", "01:30 PM", 10),
		event("2024-03-11", "monday", "RPME", "01:00 PM", "01:30 PM", 10),
		event("2024-03-18", "monday", "RPME", "01:00 PM", "01:30 PM", 0),
	}

	got, err := Aggregate(events, testTable(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 6.67, got[0].Average)
}

func TestAggregate_SeparatesSessions(t *testing.T) {
	a := event("2024-03-04", "monday", "RPME", "12:00 PM", "12:30 PM", 10)
	b := event("2023-12-25", "monday", "RPME", "12:00 PM", "12:30 PM", 2)
	b.SessionType = "winter"

	got, err := Aggregate([]swipes.Event{a, b}, testTable(t))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "regular", got[0].SessionType)
	assert.Equal(t, "winter", got[1].SessionType)
}

func TestAggregate_SkipsUnknownLocations(t *testing.T) {
	events := []swipes.Event{
		event("2024-03-04", "monday", "Retired Cafe", "12:00 PM", "12:30 PM", 10),
		event("2024-03-04", "monday", "RPME", "12:00 PM", "12:30 PM", 10),
	}

	got, err := Aggregate(events, testTable(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "RPME", got[0].Location)
}

func TestAggregate_Ordering(t *testing.T) {
	events := []swipes.Event{
		event("2024-03-05", "tuesday", "RPME", "09:00 AM", "09:30 AM", 1),
		event("2024-03-04", "monday", "RPME", "01:00 PM", "01:30 PM", 1),
		event("2024-03-04", "monday", "RPME", "12:00 PM", "12:30 PM", 1),
		event("2024-03-04", "monday", "RPME", "09:30 AM", "10:00 AM", 1),
		event("2024-03-04", "monday", "Marthas", "12:00 PM", "12:30 PM", 1),
	}

	got, err := Aggregate(events, testTable(t))
	require.NoError(t, err)

	var order []string
	for _, b := range got {
		order = append(order, b.Location+" "+b.Weekday+" "+b.StartTime)
	}
	assert.Equal(t, []string{
		"Marthas monday 12:00 PM",
		"RPME monday 09:30 AM",
		"RPME monday 12:00 PM",
		"RPME monday 01:00 PM",
		"RPME tuesday 09:00 AM",
	}, order)
}

func TestAggregate_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	locs := []string{"RPME", "Marthas", "Trillium"}
	blocks := [][2]string{{"11:00 AM", "11:30 AM"}, {"11:30 AM", "12:00 PM"}, {"12:00 PM", "12:30 PM"}}
	dates := [][2]string{{"2024-03-04", "monday"}, {"2024-03-11", "monday"}, {"2024-03-05", "tuesday"}}

	var events []swipes.Event
	for i := 0; i < 200; i++ {
		d := dates[rng.Intn(len(dates))]
		b := blocks[rng.Intn(len(blocks))]
		events = append(events, event(d[0], d[1], locs[rng.Intn(len(locs))], b[0], b[1], rng.Intn(80)))
	}

	table := testTable(t)
	first, err := Aggregate(events, table)
	require.NoError(t, err)

	shuffled := append([]swipes.Event(nil), events...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second, err := Aggregate(shuffled, table)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("aggregation depends on input order (-first +second):\n%s", diff)
	}

	for _, b := range first {
		assert.LessOrEqual(t, b.WaitTimeLow, b.WaitTimeHigh)
		assert.Greater(t, b.SampleCount, 0)
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		avg, mult float64
		low, high int
	}{
		{40, 0.05, 2, 4},
		{0, 0.05, 0, 2},
		{15, 0.25, 3, 6},
		{20, 0.15, 3, 5},
		{7.5, 0.25, 1, 4},
	}
	for _, tt := range tests {
		low, high := Bounds(tt.avg, tt.mult)
		assert.Equal(t, tt.low, low, "low(%v, %v)", tt.avg, tt.mult)
		assert.Equal(t, tt.high, high, "high(%v, %v)", tt.avg, tt.mult)
	}

	for avg := 0.0; avg < 200; avg += 0.37 {
		for _, mult := range []float64{0, 0.05, 0.15, 0.25, 1} {
			low, high := Bounds(avg, mult)
			if low > high {
				t.Fatalf("Bounds(%v, %v) = %d > %d", avg, mult, low, high)
			}
		}
	}
}

func TestNewBucket_EmptyIsError(t *testing.T) {
	_, err := newBucket(slotKey{location: "RPME"}, 0, 0, 0.05)
	assert.ErrorIs(t, err, ErrEmptyBucket)
}

func TestAggregator_Run(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, []swipes.Event{
		event("2024-03-04", "monday", "RPME", "12:00 PM", "12:30 PM", 10),
		event("2024-03-11", "monday", "RPME", "12:00 PM", "12:30 PM", 20),
	}))
	require.NoError(t, store.ReplaceBuckets(ctx, []swipes.Bucket{{Location: "stale", SampleCount: 1}}))

	agg := New(store, testTable(t))
	res, buckets, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{Events: 2, Buckets: 1}, res)

	stored, err := store.Buckets(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(buckets, stored); diff != "" {
		t.Errorf("stored buckets differ from returned (-returned +stored):\n%s", diff)
	}

	// Running again over the same events gives the same store.
	_, again, err := agg.Run(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(buckets, again); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestDailyAverages(t *testing.T) {
	events := []swipes.Event{
		event("2024-03-04", "monday", "RPME", "12:00 PM", "12:30 PM", 10),
		event("2024-03-04", "monday", "RPME", "06:00 PM", "06:30 PM", 30),
		event("2024-03-11", "monday", "RPME", "12:00 PM", "12:30 PM", 20),
		event("2024-03-05", "tuesday", "RPME", "12:00 PM", "12:30 PM", 7),
	}

	got := DailyAverages(events)
	want := []swipes.DailyAverage{
		{Weekday: "monday", Location: "RPME", SessionType: "regular", TotalSwipes: 60, DayCount: 2, Average: 30},
		{Weekday: "tuesday", Location: "RPME", SessionType: "regular", TotalSwipes: 7, DayCount: 1, Average: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DailyAverages() mismatch (-want +got):\n%s", diff)
	}
}
