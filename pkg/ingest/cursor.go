package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nicktill/crowdwait/pkg/storage"
)

// CursorStore persists the log high-water mark
type CursorStore interface {
	Cursor(ctx context.Context) (time.Time, error)
	SetCursor(ctx context.Context, ts time.Time) error
}

// Cursor is the timestamp of the newest log line already folded into the
// event store. It only moves forward.
type Cursor struct {
	store CursorStore
	mu    sync.Mutex
}

// NewCursor wraps a cursor store
func NewCursor(store CursorStore) *Cursor {
	return &Cursor{store: store}
}

// Read returns the committed timestamp. ok is false before the first commit.
func (c *Cursor) Read(ctx context.Context) (ts time.Time, ok bool, err error) {
	ts, err = c.store.Cursor(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cursor: %w", err)
	}
	return ts, true, nil
}

// Commit advances the cursor to ts. Committing a timestamp at or before the
// current one is a no-op. Returns the cursor value after the call.
func (c *Cursor) Commit(ctx context.Context, ts time.Time) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok, err := c.Read(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if ok && !ts.After(current) {
		return current, nil
	}
	if err := c.store.SetCursor(ctx, ts); err != nil {
		return current, fmt.Errorf("failed to commit cursor: %w", err)
	}
	return ts, nil
}
