package aggregate

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// AveragePrecision is the number of decimals kept on averages
const AveragePrecision = 2

// HighPadding is added to the rounded-up wait estimate
const HighPadding = 2

// ErrEmptyBucket is returned for a slot with no samples. Stage 2 only
// creates slots from existing rows, so this indicates a bug.
var ErrEmptyBucket = errors.New("bucket has no samples")

// dayCell identifies one block at one location on one date (stage 1)
type dayCell struct {
	date string
	slotKey
}

// slotKey identifies a bucket: weekday, session, location and block
type slotKey struct {
	weekday  string
	session  string
	location string
	start    string
	end      string
}

// slot accumulates stage 2 counts
type slot struct {
	total int
	count int
}

// Aggregate computes buckets for every slot present in events. Locations
// missing from table are skipped.
func Aggregate(events []swipes.Event, table *locations.Table) ([]swipes.Bucket, error) {
	// 1. same cell on the same date: sum swipes
	days := make(map[dayCell]int)
	for _, e := range events {
		days[dayCell{date: e.Date, slotKey: keyOf(e)}] += e.Swipes
	}

	// 2. drop the date: count days, sum swipes
	slots := make(map[slotKey]*slot)
	for cell, n := range days {
		s, ok := slots[cell.slotKey]
		if !ok {
			s = &slot{}
			slots[cell.slotKey] = s
		}
		s.total += n
		s.count++
	}

	// 3. rollup and convert
	buckets := make([]swipes.Bucket, 0, len(slots))
	skipped := make(map[string]bool)
	for key, s := range slots {
		mult, ok := table.Multiplier(key.location)
		if !ok {
			if !skipped[key.location] {
				log.Printf("Skipping buckets for unknown location %q", key.location)
				skipped[key.location] = true
			}
			continue
		}

		b, err := newBucket(key, s.total, s.count, mult)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}

	storage.SortBuckets(buckets)
	return buckets, nil
}

// newBucket converts slot totals into a bucket with wait-time bounds
func newBucket(key slotKey, total, count int, mult float64) (swipes.Bucket, error) {
	if count == 0 {
		return swipes.Bucket{}, fmt.Errorf("%w: %s %s %s %s", ErrEmptyBucket, key.location, key.weekday, key.session, key.start)
	}

	avg := scalar.Round(float64(total)/float64(count), AveragePrecision)
	low, high := Bounds(avg, mult)
	return swipes.Bucket{
		Weekday:      key.weekday,
		Location:     key.location,
		StartTime:    key.start,
		EndTime:      key.end,
		SessionType:  key.session,
		TotalSwipes:  total,
		SampleCount:  count,
		Average:      avg,
		WaitTimeLow:  low,
		WaitTimeHigh: high,
	}, nil
}

// Bounds converts an average into a wait-time range in minutes.
func Bounds(average, multiplier float64) (low, high int) {
	// Absorb representation error so 2.0000000000000004 does not ceil to 3.
	scaled := scalar.Round(average*multiplier, 9)
	return int(math.Floor(scaled)), int(math.Ceil(scaled)) + HighPadding
}

func keyOf(e swipes.Event) slotKey {
	return slotKey{
		weekday:  e.Weekday,
		session:  e.SessionType,
		location: e.Location,
		start:    e.StartTime,
		end:      e.EndTime,
	}
}
