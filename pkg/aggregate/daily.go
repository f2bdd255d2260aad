package aggregate

import (
	"sort"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/nicktill/crowdwait/pkg/swipes"
)

type dailyKey struct {
	location string
	weekday  string
	session  string
}

// DailyAverages rolls whole days of swipes per location, weekday and
// session: the average is total swipes over the number of distinct dates.
func DailyAverages(events []swipes.Event) []swipes.DailyAverage {
	type acc struct {
		total int
		dates map[string]struct{}
	}

	accs := make(map[dailyKey]*acc)
	for _, e := range events {
		k := dailyKey{location: e.Location, weekday: e.Weekday, session: e.SessionType}
		a, ok := accs[k]
		if !ok {
			a = &acc{dates: make(map[string]struct{})}
			accs[k] = a
		}
		a.total += e.Swipes
		a.dates[e.Date] = struct{}{}
	}

	out := make([]swipes.DailyAverage, 0, len(accs))
	for k, a := range accs {
		days := len(a.dates)
		out = append(out, swipes.DailyAverage{
			Weekday:     k.weekday,
			Location:    k.location,
			SessionType: k.session,
			TotalSwipes: a.total,
			DayCount:    days,
			Average:     scalar.Round(float64(a.total)/float64(days), AveragePrecision),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		if a.Weekday != b.Weekday {
			return swipes.WeekdayIndex(a.Weekday) < swipes.WeekdayIndex(b.Weekday)
		}
		return a.SessionType < b.SessionType
	})
	return out
}
