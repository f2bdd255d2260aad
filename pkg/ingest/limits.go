package ingest

import (
	"errors"
	"fmt"
)

// Log line validation limits
const (
	MaxLineBytes      = 1 << 20 // Maximum raw line length
	MaxUnitsPerLine   = 512     // Maximum UNITS entries in one line
	MaxUnitNameLength = 256     // Maximum UNIT_NAME length
)

var (
	// ErrSourceUnavailable is returned when the log cannot be opened or read
	ErrSourceUnavailable = errors.New("log source unavailable")

	// ErrLineTooLong is returned when a line exceeds MaxLineBytes
	ErrLineTooLong = fmt.Errorf("log line too long (max %d bytes)", MaxLineBytes)

	// ErrTooManyUnits is returned when a line lists more than MaxUnitsPerLine units
	ErrTooManyUnits = fmt.Errorf("too many units in line (max %d)", MaxUnitsPerLine)

	// ErrUnitNameTooLong is returned when a unit name exceeds MaxUnitNameLength
	ErrUnitNameTooLong = fmt.Errorf("unit name too long (max %d chars)", MaxUnitNameLength)

	// ErrNegativeCount is returned when a unit reports a negative crowd count
	ErrNegativeCount = errors.New("negative crowd count")

	// ErrBadSeconds is returned when a timestamp's seconds are neither 00 nor 01
	ErrBadSeconds = errors.New("timestamp seconds must be 00 or 01")
)

// validateRecord checks a decoded line against the limits
func validateRecord(rec logRecord) error {
	if len(rec.Units) > MaxUnitsPerLine {
		return fmt.Errorf("%w: line has %d units", ErrTooManyUnits, len(rec.Units))
	}
	for _, u := range rec.Units {
		if len(u.Name) > MaxUnitNameLength {
			return fmt.Errorf("%w: %d chars", ErrUnitNameTooLong, len(u.Name))
		}
		if u.Count < 0 {
			return fmt.Errorf("%w: %q reported %d", ErrNegativeCount, u.Name, u.Count)
		}
	}
	return nil
}
