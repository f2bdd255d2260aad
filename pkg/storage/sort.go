package storage

import (
	"sort"

	"github.com/nicktill/crowdwait/pkg/swipes"
	"github.com/nicktill/crowdwait/pkg/timeblock"
)

// SortEvents orders events by observation time, then location, then seq.
func SortEvents(events []swipes.Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.Before(b.ObservedAt)
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Seq < b.Seq
	})
}

// SortBuckets orders buckets by location, weekday, session and start of day.
func SortBuckets(buckets []swipes.Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		if a.Weekday != b.Weekday {
			return swipes.WeekdayIndex(a.Weekday) < swipes.WeekdayIndex(b.Weekday)
		}
		if a.SessionType != b.SessionType {
			return a.SessionType < b.SessionType
		}
		return timeblock.MinuteOfDay(a.StartTime) < timeblock.MinuteOfDay(b.StartTime)
	})
}
