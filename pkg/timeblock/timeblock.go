// Package timeblock quantizes sample timestamps into fixed 30-minute windows.
//
// Samples are polled periodically, so each one is attributed to the window
// that just elapsed:
//
//	12:31..12:59 -> [12:30, 13:00)
//	13:00        -> [12:30, 13:00)
//	13:01..13:30 -> [13:00, 13:30)
package timeblock

import (
	"fmt"
	"time"
)

const (
	// Width is the size of every block.
	Width = 30 * time.Minute

	// PerDay is the number of blocks in a day.
	PerDay = 48

	// LabelLayout renders block edges, e.g. "12:00 PM".
	LabelLayout = "03:04 PM"
)

// Block is a single half-hour window with absolute edges.
type Block struct {
	Start time.Time
	End   time.Time
}

// Bucket returns the block a sample taken at ts is attributed to.
func Bucket(ts time.Time) Block {
	hour := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, ts.Location())

	var start time.Time
	switch m := ts.Minute(); {
	case m > 30:
		start = hour.Add(Width)
	case m == 0:
		start = hour.Add(-Width)
	default:
		start = hour
	}
	return Block{Start: start, End: start.Add(Width)}
}

// StartLabel renders the left edge.
func (b Block) StartLabel() string { return b.Start.Format(LabelLayout) }

// EndLabel renders the right edge.
func (b Block) EndLabel() string { return b.End.Format(LabelLayout) }

// Index is the block's position within its start day, 0..47.
func (b Block) Index() int {
	return (b.Start.Hour()*60 + b.Start.Minute()) / 30
}

// CrossesMidnight reports whether the block ends on the day after it starts.
func (b Block) CrossesMidnight() bool {
	sy, sm, sd := b.Start.Date()
	ey, em, ed := b.End.Date()
	return sy != ey || sm != em || sd != ed
}

// Day returns the calendar day a sample is filed under: the sample's own
// date. A 00:00 sample keeps its date even though its block started the
// evening before.
func Day(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// ParseLabel converts a rendered edge back into minutes since midnight.
func ParseLabel(label string) (int, error) {
	t, err := time.Parse(LabelLayout, label)
	if err != nil {
		return 0, fmt.Errorf("invalid timeblock label %q: %w", label, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinuteOfDay is ParseLabel for callers that only need ordering; malformed
// labels sort last.
func MinuteOfDay(label string) int {
	m, err := ParseLabel(label)
	if err != nil {
		return 24 * 60
	}
	return m
}
