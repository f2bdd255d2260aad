package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Regular is the label for any date not covered by a configured range.
const Regular = "regular"

// dateLayout is the compact mm/dd/yy notation used for break tables.
const dateLayout = "01/02/06"

var (
	// ErrOverlap is returned when two configured ranges share at least one day.
	ErrOverlap = errors.New("session ranges overlap")

	// ErrInvertedRange is returned when a range ends before it starts.
	ErrInvertedRange = errors.New("session range ends before it starts")
)

// Range is a named, inclusive span of calendar days.
type Range struct {
	Label string
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the range, ignoring time of day.
func (r Range) Contains(day time.Time) bool {
	d := civil(day)
	return !d.Before(civil(r.Start)) && !d.After(civil(r.End))
}

// Calendar classifies dates into academic session labels.
// A Calendar is immutable once built and safe for concurrent use.
type Calendar struct {
	ranges []Range
}

// NewCalendar validates ranges and builds a calendar. Ranges keep their
// configured order; overlapping ranges are rejected.
func NewCalendar(ranges []Range) (*Calendar, error) {
	copied := make([]Range, len(ranges))
	copy(copied, ranges)

	for _, r := range copied {
		if strings.TrimSpace(r.Label) == "" {
			return nil, fmt.Errorf("session range starting %s has no label", r.Start.Format(dateLayout))
		}
		if civil(r.End).Before(civil(r.Start)) {
			return nil, fmt.Errorf("%w: %s", ErrInvertedRange, r.Label)
		}
	}

	// Sort a view by start so overlaps only need a neighbour check.
	byStart := make([]Range, len(copied))
	copy(byStart, copied)
	sort.Slice(byStart, func(i, j int) bool {
		return civil(byStart[i].Start).Before(civil(byStart[j].Start))
	})
	for i := 1; i < len(byStart); i++ {
		prev, cur := byStart[i-1], byStart[i]
		if !civil(cur.Start).After(civil(prev.End)) {
			return nil, fmt.Errorf("%w: %q and %q", ErrOverlap, prev.Label, cur.Label)
		}
	}

	return &Calendar{ranges: copied}, nil
}

// Classify returns the label of the first range containing day, or Regular.
func (c *Calendar) Classify(day time.Time) string {
	if c == nil {
		return Regular
	}
	for _, r := range c.ranges {
		if r.Contains(day) {
			return r.Label
		}
	}
	return Regular
}

// Ranges returns a copy of the configured ranges.
func (c *Calendar) Ranges() []Range {
	if c == nil {
		return nil
	}
	out := make([]Range, len(c.ranges))
	copy(out, c.ranges)
	return out
}

// ParseRange parses "mm/dd/yy-mm/dd/yy" into a labelled range in loc.
func ParseRange(label, dates string, loc *time.Location) (Range, error) {
	startStr, endStr, ok := strings.Cut(dates, "-")
	if !ok {
		return Range{}, fmt.Errorf("session %q: expected mm/dd/yy-mm/dd/yy, got %q", label, dates)
	}
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(startStr), loc)
	if err != nil {
		return Range{}, fmt.Errorf("session %q start: %w", label, err)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(endStr), loc)
	if err != nil {
		return Range{}, fmt.Errorf("session %q end: %w", label, err)
	}
	return Range{Label: label, Start: start, End: end}, nil
}

// civil strips the clock from t while keeping its own calendar day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
