package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the upstream timestamp format. The hour may be one or
// two digits.
const TimestampLayout = "2006-01-02 3:04:05 PM"

// invalidDate is what the upstream writes when it has no clock reading
const invalidDate = "Invalid date"

// skip reasons, reported in run summaries
const (
	skipBlank       = "blank"
	skipJSON        = "json"
	skipNoTimestamp = "no_timestamp"
	skipInvalidDate = "invalid_date"
	skipNoUnits     = "no_units"
	skipTimestamp   = "bad_timestamp"
	skipLimits      = "limits"
)

// logRecord is one NDJSON line of the occupancy log
type logRecord struct {
	Timestamp string    `json:"TIMESTAMP"`
	Units     []logUnit `json:"UNITS"`
}

type logUnit struct {
	Name  string `json:"UNIT_NAME"`
	Count int    `json:"CROWD_COUNT"`
}

// skipError marks a line that is dropped without failing the run
type skipError struct {
	reason string
	err    error
}

func (e *skipError) Error() string {
	if e.err == nil {
		return e.reason
	}
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *skipError) Unwrap() error { return e.err }

func skip(reason string, err error) error { return &skipError{reason: reason, err: err} }

// parseLine decodes a line and its timestamp. Lines that carry no usable
// observation return a *skipError.
func parseLine(line string, loc *time.Location) (logRecord, time.Time, error) {
	var rec logRecord

	line = strings.TrimSpace(line)
	if line == "" {
		return rec, time.Time{}, skip(skipBlank, nil)
	}
	if len(line) > MaxLineBytes {
		return rec, time.Time{}, skip(skipLimits, ErrLineTooLong)
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return rec, time.Time{}, skip(skipJSON, err)
	}

	// The upstream has emitted {"msg":"Unauthorized"} in place of data.
	if rec.Timestamp == "" {
		return rec, time.Time{}, skip(skipNoTimestamp, nil)
	}
	if rec.Timestamp == invalidDate {
		return rec, time.Time{}, skip(skipInvalidDate, nil)
	}
	if len(rec.Units) == 0 {
		return rec, time.Time{}, skip(skipNoUnits, nil)
	}
	if err := validateRecord(rec); err != nil {
		return rec, time.Time{}, skip(skipLimits, err)
	}

	ts, err := ParseTimestamp(rec.Timestamp, loc)
	if err != nil {
		return rec, time.Time{}, skip(skipTimestamp, err)
	}
	return rec, ts, nil
}

// ParseTimestamp parses an upstream timestamp in loc. Seconds must be 00 or
// 01 (the upstream rounds) and are truncated.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(TimestampLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	sec := ts.Second()
	if sec > 1 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadSeconds, s)
	}
	return ts.Add(-time.Duration(sec) * time.Second), nil
}
