package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/session"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
	"github.com/nicktill/crowdwait/pkg/timeblock"
)

// EventStore receives normalized events
type EventStore interface {
	AppendEvents(ctx context.Context, events []swipes.Event) error
}

// Result summarizes one ingestion pass
type Result struct {
	NewEvents    int            `json:"new_events"`
	LinesRead    int            `json:"lines_read"`
	LinesSkipped int            `json:"lines_skipped"`
	UnknownUnits int            `json:"unknown_units"`
	SkipReasons  map[string]int `json:"skip_reasons,omitempty"`
	Cursor       time.Time      `json:"cursor"`
	ReachedMark  bool           `json:"reached_mark"`
}

// Pipeline turns new log lines into normalized events.
type Pipeline struct {
	events   EventStore
	cursor   *Cursor
	calendar *session.Calendar
	table    *locations.Table
	loc      *time.Location
}

// NewPipeline creates a pipeline that persists into store. Timestamps are
// read in loc.
func NewPipeline(store storage.Storage, calendar *session.Calendar, table *locations.Table, loc *time.Location) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	return &Pipeline{
		events:   store,
		cursor:   NewCursor(store),
		calendar: calendar,
		table:    table,
		loc:      loc,
	}
}

// Cursor exposes the pipeline's cursor
func (p *Pipeline) Cursor() *Cursor { return p.cursor }

// Ingest reads src newest-first down to the cursor, stores the new events
// and then advances the cursor. On error nothing is committed.
func (p *Pipeline) Ingest(ctx context.Context, src LogSource) (Result, error) {
	var res Result

	mark, hasMark, err := p.cursor.Read(ctx)
	if err != nil {
		return res, err
	}
	res.Cursor = mark

	r, err := src.Open(ctx)
	if err != nil {
		return res, err
	}
	defer r.Close()

	var (
		events  []swipes.Event
		newest  time.Time
		skipped = make(map[string]int)
		unknown = make(map[string]int)
		// next free Seq per timestamp, so lines sharing one stay distinct
		seqs    = make(map[int64]int)
	)

	for {
		if res.LinesRead%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, ErrSourceUnavailable) {
				err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
			}
			return res, err
		}
		res.LinesRead++

		rec, ts, err := parseLine(line, p.loc)
		if err != nil {
			var se *skipError
			if !errors.As(err, &se) {
				return res, err
			}
			if skipped[se.reason] == 0 && se.reason != skipBlank {
				log.Printf("Skipping log line %d (%v)", res.LinesRead, se)
			}
			skipped[se.reason]++
			res.LinesSkipped++
			continue
		}

		// Equal means the line was folded in by an earlier pass.
		if hasMark && !ts.After(mark) {
			res.ReachedMark = true
			break
		}
		if ts.After(newest) {
			newest = ts
		}

		first := seqs[ts.UnixNano()]
		seqs[ts.UnixNano()] = first + len(rec.Units)
		events = append(events, p.normalize(rec, ts, first, unknown)...)
	}

	for _, n := range unknown {
		res.UnknownUnits += n
	}
	if len(unknown) > 0 {
		log.Printf("Dropped %d samples from unknown units: %s", res.UnknownUnits, summarize(unknown))
	}
	if len(skipped) > 0 {
		res.SkipReasons = skipped
		log.Printf("Skipped %d of %d log lines: %s", res.LinesSkipped, res.LinesRead, summarize(skipped))
	}

	if len(events) > 0 {
		if err := p.events.AppendEvents(ctx, events); err != nil {
			return res, fmt.Errorf("failed to store events: %w", err)
		}
	}
	res.NewEvents = len(events)

	if !newest.IsZero() {
		committed, err := p.cursor.Commit(ctx, newest)
		if err != nil {
			return res, err
		}
		res.Cursor = committed
	}
	return res, nil
}

// normalize expands one line into an event per known unit. Units are
// numbered from first.
func (p *Pipeline) normalize(rec logRecord, ts time.Time, first int, unknown map[string]int) []swipes.Event {
	block := timeblock.Bucket(ts)
	day := timeblock.Day(ts)
	date := day.Format(swipes.DateLayout)
	weekday := swipes.WeekdayName(day.Weekday())
	sessionType := p.calendar.Classify(day)

	out := make([]swipes.Event, 0, len(rec.Units))
	for i, u := range rec.Units {
		if _, ok := p.table.Resolve(u.Name); !ok {
			unknown[u.Name]++
			continue
		}
		out = append(out, swipes.Event{
			Date:        date,
			Weekday:     weekday,
			SessionType: sessionType,
			Location:    u.Name,
			StartTime:   block.StartLabel(),
			EndTime:     block.EndLabel(),
			Swipes:      u.Count,
			ObservedAt:  ts,
			Seq:         first + i,
		})
	}
	return out
}

// summarize renders counts as "a=1 b=2" in key order
func summarize(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
