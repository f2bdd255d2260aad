// Package sqlite stores swipe data in a single SQLite file. Schema changes
// are embedded migrations applied on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// Storage implements storage.Storage on top of SQLite
type Storage struct {
	db   *sql.DB
	path string
}

// Config holds SQLite configuration
type Config struct {
	// Path to the database file; ":memory:" for a throwaway database
	Path string
}

// New opens the database and migrates it to the latest schema
func New(cfg Config) (*Storage, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite allows one writer; an in-memory database also exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	s := &Storage{db: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// AppendEvents inserts events, replacing rows with the same identity
func (s *Storage) AppendEvents(ctx context.Context, events []swipes.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO events
			(observed_at, location, seq, date, weekday, session_type, start_time, end_time, swipes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare append: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ObservedAt.UnixNano(), e.Location, e.Seq,
			e.Date, e.Weekday, e.SessionType, e.StartTime, e.EndTime, e.Swipes,
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	return tx.Commit()
}

// Events returns all events ordered by observation time
func (s *Storage) Events(ctx context.Context) ([]swipes.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observed_at, location, seq, date, weekday, session_type, start_time, end_time, swipes
		FROM events
		ORDER BY observed_at, location, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var results []swipes.Event
	for rows.Next() {
		var (
			e  swipes.Event
			ns int64
		)
		if err := rows.Scan(&ns, &e.Location, &e.Seq, &e.Date, &e.Weekday,
			&e.SessionType, &e.StartTime, &e.EndTime, &e.Swipes); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.ObservedAt = time.Unix(0, ns)
		results = append(results, e)
	}
	return results, rows.Err()
}

// ReplaceBuckets swaps the aggregate table inside one transaction
func (s *Storage) ReplaceBuckets(ctx context.Context, buckets []swipes.Bucket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM buckets`); err != nil {
		return fmt.Errorf("failed to clear buckets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO buckets
			(idx, weekday, location, start_time, end_time, session_type,
			 total_swipes, sample_count, average, wait_time_low, wait_time_high)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare replace: %w", err)
	}
	defer stmt.Close()

	for i, b := range buckets {
		if _, err := stmt.ExecContext(ctx,
			i, b.Weekday, b.Location, b.StartTime, b.EndTime, b.SessionType,
			b.TotalSwipes, b.SampleCount, b.Average, b.WaitTimeLow, b.WaitTimeHigh,
		); err != nil {
			return fmt.Errorf("failed to insert bucket: %w", err)
		}
	}
	return tx.Commit()
}

// Buckets returns the live aggregate set in insertion order
func (s *Storage) Buckets(ctx context.Context) ([]swipes.Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT weekday, location, start_time, end_time, session_type,
		       total_swipes, sample_count, average, wait_time_low, wait_time_high
		FROM buckets
		ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var results []swipes.Bucket
	for rows.Next() {
		var b swipes.Bucket
		if err := rows.Scan(&b.Weekday, &b.Location, &b.StartTime, &b.EndTime, &b.SessionType,
			&b.TotalSwipes, &b.SampleCount, &b.Average, &b.WaitTimeLow, &b.WaitTimeHigh); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// Cursor returns the committed cursor
func (s *Storage) Cursor(ctx context.Context) (time.Time, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx, `SELECT last_seen FROM log_cursor WHERE id = 1`).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, storage.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read cursor: %w", err)
	}
	return time.Unix(0, ns), nil
}

// SetCursor records the cursor
func (s *Storage) SetCursor(ctx context.Context, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_cursor (id, last_seen) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`, ts.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cursor: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return nil, err
	}

	stats := &storage.Stats{}
	seen := make(map[string]struct{})
	for _, e := range events {
		stats.Observe(e, seen)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buckets`).Scan(&stats.TotalBuckets); err != nil {
		return nil, fmt.Errorf("failed to count buckets: %w", err)
	}

	cursor, err := s.Cursor(ctx)
	switch {
	case err == nil:
		stats.Cursor = cursor
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	if s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			stats.SizeBytes = uint64(info.Size())
		}
	}
	return stats, nil
}

var _ storage.Storage = (*Storage)(nil)
