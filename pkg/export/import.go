package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nicktill/crowdwait/pkg/ingest"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
	"github.com/nicktill/crowdwait/pkg/timeblock"
)

const (
	// MaxImportBatchSize is the maximum number of events to write at once
	MaxImportBatchSize = 5000
)

// Importer restores a JSON backup
type Importer struct {
	storage storage.Storage
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	EventsImported  int       `json:"events_imported"`
	BucketsImported int       `json:"buckets_imported"`
	BatchesWritten  int       `json:"batches_written"`
	Cursor          time.Time `json:"cursor"`
	ImportedAt      time.Time `json:"imported_at"`
	Errors          []string  `json:"errors,omitempty"`
}

// ImportFromJSON restores events, buckets and the cursor from a backup.
// Events are merged by identity; buckets replace the live set when the
// backup carries any; the cursor only moves forward.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var backup Backup
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	result := &ImportResult{ImportedAt: time.Now()}

	validEvents := make([]swipes.Event, 0, len(backup.Events))
	for i, e := range backup.Events {
		if err := validateEvent(e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}
		validEvents = append(validEvents, e)
	}

	validBuckets := make([]swipes.Bucket, 0, len(backup.Buckets))
	for i, b := range backup.Buckets {
		if err := validateBucket(b); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("bucket %d: %v", i, err))
			continue
		}
		validBuckets = append(validBuckets, b)
	}

	// Write events in batches to avoid overwhelming storage
	for i := 0; i < len(validEvents); i += MaxImportBatchSize {
		end := i + MaxImportBatchSize
		if end > len(validEvents) {
			end = len(validEvents)
		}
		if err := im.storage.AppendEvents(ctx, validEvents[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", result.BatchesWritten, err)
		}
		result.BatchesWritten++
	}
	result.EventsImported = len(validEvents)

	if len(validBuckets) > 0 {
		if err := im.storage.ReplaceBuckets(ctx, validBuckets); err != nil {
			return nil, fmt.Errorf("failed to restore buckets: %w", err)
		}
		result.BucketsImported = len(validBuckets)
	}

	if !backup.Metadata.Cursor.IsZero() {
		cursor, err := ingest.NewCursor(im.storage).Commit(ctx, backup.Metadata.Cursor)
		if err != nil {
			return nil, err
		}
		result.Cursor = cursor
	}

	return result, nil
}

func validateEvent(e swipes.Event) error {
	if e.Location == "" {
		return fmt.Errorf("location cannot be empty")
	}
	if e.ObservedAt.IsZero() {
		return fmt.Errorf("observed_at cannot be zero")
	}
	if _, err := time.Parse(swipes.DateLayout, e.Date); err != nil {
		return fmt.Errorf("invalid date %q", e.Date)
	}
	if swipes.WeekdayIndex(e.Weekday) > 6 {
		return fmt.Errorf("invalid weekday %q", e.Weekday)
	}
	if _, err := timeblock.ParseLabel(e.StartTime); err != nil {
		return fmt.Errorf("invalid start_time %q", e.StartTime)
	}
	if e.Swipes < 0 {
		return fmt.Errorf("negative swipes: %d", e.Swipes)
	}
	return nil
}

func validateBucket(b swipes.Bucket) error {
	if b.Location == "" {
		return fmt.Errorf("location cannot be empty")
	}
	if b.SampleCount <= 0 {
		return fmt.Errorf("sample_count must be positive, got %d", b.SampleCount)
	}
	if b.WaitTimeLow > b.WaitTimeHigh {
		return fmt.Errorf("wait_time_low %d exceeds wait_time_high %d", b.WaitTimeLow, b.WaitTimeHigh)
	}
	return nil
}
