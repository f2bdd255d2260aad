package export

import (
	"log"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/session"
	"github.com/nicktill/crowdwait/pkg/swipes"
	"github.com/nicktill/crowdwait/pkg/timeblock"
)

// DefaultDensityPrecision is the number of decimals kept on swipe density
const DefaultDensityPrecision = 2

// Estimates maps an eatery display name to today's blocks in start order.
type Estimates map[string][]swipes.Estimate

// Options controls estimate selection
type Options struct {
	Calendar  *session.Calendar
	Table     *locations.Table
	Precision *int // decimals on swipe density; nil means DefaultDensityPrecision
}

// Decimals returns a Precision setting of n decimals. Zero rounds density
// to whole numbers.
func Decimals(n int) *int { return &n }

// Export selects today's buckets per location and converts them into
// estimates. When a location has no buckets for today's session it falls
// back to the regular session. Every estimate is labelled with today's
// session, fallback or not. Locations with no data for today's weekday
// are omitted.
func Export(buckets []swipes.Bucket, today time.Time, opts Options) Estimates {
	precision := DefaultDensityPrecision
	if opts.Precision != nil {
		precision = *opts.Precision
	}
	weekday := swipes.WeekdayName(today.Weekday())
	current := opts.Calendar.Classify(today)

	// location -> session -> buckets for today's weekday
	byLocation := make(map[string]map[string][]swipes.Bucket)
	for _, b := range buckets {
		if b.Weekday != weekday {
			continue
		}
		sessions, ok := byLocation[b.Location]
		if !ok {
			sessions = make(map[string][]swipes.Bucket)
			byLocation[b.Location] = sessions
		}
		sessions[b.SessionType] = append(sessions[b.SessionType], b)
	}

	// Locations with no rows at all for today are reported, not errors.
	if opts.Table != nil {
		for _, unit := range opts.Table.Units() {
			if _, ok := byLocation[unit]; !ok {
				log.Printf("%s has no swipe data for %s", opts.Table.DisplayName(unit), weekday)
			}
		}
	}

	out := make(Estimates, len(byLocation))
	for _, unit := range sortedKeys(byLocation) {
		sessions := byLocation[unit]
		selected, ok := sessions[current]
		if !ok {
			selected = sessions[session.Regular]
		}
		if len(selected) == 0 {
			log.Printf("%s has no %s or %s data for %s", unit, current, session.Regular, weekday)
			continue
		}

		name := unit
		if opts.Table != nil {
			name = opts.Table.DisplayName(unit)
		}
		out[name] = append(out[name], estimatesFor(selected, current, precision)...)
	}

	for name := range out {
		sortEstimates(out[name])
	}
	return out
}

// estimatesFor converts one location's selection, normalizing density to
// the selection's busiest block.
func estimatesFor(selected []swipes.Bucket, sessionType string, precision int) []swipes.Estimate {
	averages := make([]float64, len(selected))
	for i, b := range selected {
		averages[i] = b.Average
	}
	peak := floats.Max(averages)

	out := make([]swipes.Estimate, 0, len(selected))
	for _, b := range selected {
		var density float64
		if peak > 0 {
			density = scalar.Round(b.Average/peak, precision)
		}
		out = append(out, swipes.Estimate{
			StartTime:    b.StartTime,
			EndTime:      b.EndTime,
			SessionType:  sessionType,
			SwipeDensity: density,
			WaitTimeLow:  b.WaitTimeLow,
			WaitTimeHigh: b.WaitTimeHigh,
		})
	}
	return out
}

func sortEstimates(es []swipes.Estimate) {
	sort.SliceStable(es, func(i, j int) bool {
		return timeblock.MinuteOfDay(es[i].StartTime) < timeblock.MinuteOfDay(es[j].StartTime)
	})
}

func sortedKeys(m map[string]map[string][]swipes.Bucket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
