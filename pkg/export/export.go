package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/crowdwait/pkg/aggregate"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// BackupVersion is written into every JSON backup
const BackupVersion = "1.0"

// CSV tables
const (
	TableBuckets = "buckets"
	TableEvents  = "events"
	TableDaily   = "daily"
)

// Exporter dumps the stores for backup
type Exporter struct {
	storage storage.Storage
}

// NewExporter creates a new exporter
func NewExporter(store storage.Storage) *Exporter {
	return &Exporter{storage: store}
}

// ExportResult contains stats about the export
type ExportResult struct {
	EventsExported  int       `json:"events_exported"`
	BucketsExported int       `json:"buckets_exported"`
	Format          string    `json:"format"`
	ExportedAt      time.Time `json:"exported_at"`
}

// Backup is the JSON backup document
type Backup struct {
	Metadata struct {
		ExportedAt  time.Time `json:"exported_at"`
		Cursor      time.Time `json:"cursor"`
		EventCount  int       `json:"event_count"`
		BucketCount int       `json:"bucket_count"`
		Format      string    `json:"format"`
		Version     string    `json:"version"`
	} `json:"metadata"`
	Events  []swipes.Event  `json:"events"`
	Buckets []swipes.Bucket `json:"buckets"`
}

// ExportToJSON writes events, buckets and the cursor as one JSON document
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer) (*ExportResult, error) {
	events, err := e.storage.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	buckets, err := e.storage.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load buckets: %w", err)
	}

	backup := Backup{Events: events, Buckets: buckets}
	if cursor, err := e.storage.Cursor(ctx); err == nil {
		backup.Metadata.Cursor = cursor
	}
	backup.Metadata.ExportedAt = time.Now()
	backup.Metadata.EventCount = len(events)
	backup.Metadata.BucketCount = len(buckets)
	backup.Metadata.Format = "json"
	backup.Metadata.Version = BackupVersion

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		EventsExported:  len(events),
		BucketsExported: len(buckets),
		Format:          "json",
		ExportedAt:      backup.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV writes one table as CSV
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, table string) (*ExportResult, error) {
	result := &ExportResult{Format: "csv", ExportedAt: time.Now()}

	switch table {
	case TableBuckets, "":
		buckets, err := e.storage.Buckets(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load buckets: %w", err)
		}
		result.BucketsExported = len(buckets)
		return result, WriteBucketsCSV(w, buckets)

	case TableEvents, TableDaily:
		events, err := e.storage.Events(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load events: %w", err)
		}
		result.EventsExported = len(events)
		if table == TableDaily {
			return result, WriteDailyCSV(w, aggregate.DailyAverages(events))
		}
		return result, WriteEventsCSV(w, events)

	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

// WriteBucketsCSV writes buckets in the timeblock-averages column layout
func WriteBucketsCSV(w io.Writer, buckets []swipes.Bucket) error {
	rows := [][]string{{
		"weekday", "location", "start_time", "end_time", "session_type",
		"total_swipes", "sample_count", "average", "wait_time_low", "wait_time_high",
	}}
	for _, b := range buckets {
		rows = append(rows, []string{
			b.Weekday, b.Location, b.StartTime, b.EndTime, b.SessionType,
			strconv.Itoa(b.TotalSwipes),
			strconv.Itoa(b.SampleCount),
			strconv.FormatFloat(b.Average, 'f', -1, 64),
			strconv.Itoa(b.WaitTimeLow),
			strconv.Itoa(b.WaitTimeHigh),
		})
	}
	return writeCSV(w, rows)
}

// WriteEventsCSV writes normalized events
func WriteEventsCSV(w io.Writer, events []swipes.Event) error {
	rows := [][]string{{
		"date", "weekday", "session_type", "location", "start_time", "end_time", "swipes", "observed_at", "seq",
	}}
	for _, e := range events {
		rows = append(rows, []string{
			e.Date, e.Weekday, e.SessionType, e.Location, e.StartTime, e.EndTime,
			strconv.Itoa(e.Swipes),
			e.ObservedAt.Format(time.RFC3339),
			strconv.Itoa(e.Seq),
		})
	}
	return writeCSV(w, rows)
}

// WriteDailyCSV writes daily averages
func WriteDailyCSV(w io.Writer, daily []swipes.DailyAverage) error {
	rows := [][]string{{"weekday", "location", "session_type", "total_swipes", "day_count", "average"}}
	for _, d := range daily {
		rows = append(rows, []string{
			d.Weekday, d.Location, d.SessionType,
			strconv.Itoa(d.TotalSwipes),
			strconv.Itoa(d.DayCount),
			strconv.FormatFloat(d.Average, 'f', -1, 64),
		})
	}
	return writeCSV(w, rows)
}

func writeCSV(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
