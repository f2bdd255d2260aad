// Package swipes holds the typed records that flow between ingestion,
// aggregation and export.
package swipes

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is how event dates are stored.
const DateLayout = "2006-01-02"

// Event is one normalized observation: a resolved location at a timeblock on
// a given date. Events are append-only.
type Event struct {
	Date        string `json:"date"`
	Weekday     string `json:"weekday"`
	SessionType string `json:"session_type"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Swipes      int    `json:"swipes"`

	// ObservedAt and Seq identify the source sample. Seq numbers every unit
	// of every line read at ObservedAt in one pass, so separate lines with
	// the same timestamp are kept apart while replaying the same lines
	// after a failed commit overwrites instead of duplicating.
	ObservedAt time.Time `json:"observed_at"`
	Seq        int       `json:"seq"`
}

// ID returns the identity used by stores to deduplicate events.
func (e Event) ID() string {
	return fmt.Sprintf("%d|%s|%d", e.ObservedAt.UnixNano(), e.Location, e.Seq)
}

// Bucket is an aggregate over every event sharing weekday, location,
// timeblock and session.
type Bucket struct {
	Weekday      string  `json:"weekday"`
	Location     string  `json:"location"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	SessionType  string  `json:"session_type"`
	TotalSwipes  int     `json:"total_swipes"`
	SampleCount  int     `json:"sample_count"`
	Average      float64 `json:"average"`
	WaitTimeLow  int     `json:"wait_time_low"`
	WaitTimeHigh int     `json:"wait_time_high"`
}

// Estimate is the exported view of one bucket for today.
type Estimate struct {
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	SessionType  string  `json:"session_type"`
	SwipeDensity float64 `json:"swipe_density"`
	WaitTimeLow  int     `json:"wait_time_low"`
	WaitTimeHigh int     `json:"wait_time_high"`
}

// DailyAverage rolls whole days of swipes per location, weekday and session.
type DailyAverage struct {
	Weekday     string  `json:"weekday"`
	Location    string  `json:"location"`
	SessionType string  `json:"session_type"`
	TotalSwipes int     `json:"total_swipes"`
	DayCount    int     `json:"day_count"`
	Average     float64 `json:"average"`
}

// WeekdayName renders a weekday the way events store it ("monday").
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// WeekdayIndex orders stored weekday names Monday first. Unknown names sort
// last.
func WeekdayIndex(name string) int {
	for d := time.Monday; d <= time.Saturday; d++ {
		if WeekdayName(d) == name {
			return int(d) - 1
		}
	}
	if name == WeekdayName(time.Sunday) {
		return 6
	}
	return 7
}
