package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// Key layout:
//
//	ev/<observed_at ns (8)><xxhash(location) (8)><seq (4)> -> event JSON
//	bk/<version (8)><index (4)>                            -> bucket JSON
//	meta/cursor                                            -> unix ns (8)
//	meta/buckets                                           -> live bucket version (8)
var (
	eventPrefix  = []byte("ev/")
	bucketPrefix = []byte("bk/")
	cursorKey    = []byte("meta/cursor")
	bucketVerKey = []byte("meta/buckets")
)

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = use defaults)
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Swipe logs are small: a few dozen units polled every few minutes.
	// Keep badger's footprint laptop-sized.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20). // 64 MB value log files instead of default 2GB
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// run executes fn in a goroutine and gives up waiting when ctx ends.
// Badger transactions cannot be interrupted, so fn must check ctx itself.
func run(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s operation cancelled: %w", op, ctx.Err())
	}
}

// AppendEvents stores events keyed by identity
func (s *Storage) AppendEvents(ctx context.Context, events []swipes.Event) error {
	return run(ctx, "append", func() error {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()

		for i, e := range events {
			if i%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			value, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			if err := wb.Set(eventKey(e), value); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
		return wb.Flush()
	})
}

// Events returns all events ordered by observation time
func (s *Storage) Events(ctx context.Context) ([]swipes.Event, error) {
	var results []swipes.Event
	err := run(ctx, "events", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = eventPrefix
			opts.PrefetchSize = 100

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}

				var e swipes.Event
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &e)
				}); err != nil {
					return fmt.Errorf("failed to decode event: %w", err)
				}
				results = append(results, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Keys sort by time then location hash; callers expect location order.
	storage.SortEvents(results)
	return results, nil
}

// ReplaceBuckets writes the new set under a fresh version and flips the
// live pointer, so readers never see a partial set.
func (s *Storage) ReplaceBuckets(ctx context.Context, buckets []swipes.Bucket) error {
	return run(ctx, "replace buckets", func() error {
		var current uint64
		err := s.db.View(func(txn *badger.Txn) error {
			v, err := readVersion(txn)
			current = v
			return err
		})
		if err != nil {
			return err
		}
		next := current + 1
		nextPrefix := versionPrefix(next)

		// A crash between writing and flipping can leave an orphaned set.
		if err := s.db.DropPrefix(nextPrefix); err != nil {
			return fmt.Errorf("failed to clear bucket version %d: %w", next, err)
		}

		wb := s.db.NewWriteBatch()
		defer wb.Cancel()
		for i, b := range buckets {
			value, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("failed to encode bucket: %w", err)
			}
			key := make([]byte, len(nextPrefix)+4)
			copy(key, nextPrefix)
			binary.BigEndian.PutUint32(key[len(nextPrefix):], uint32(i))
			if err := wb.Set(key, value); err != nil {
				return fmt.Errorf("failed to write bucket: %w", err)
			}
		}
		if err := wb.Flush(); err != nil {
			return fmt.Errorf("failed to flush buckets: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.db.Update(func(txn *badger.Txn) error {
			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, next)
			return txn.Set(bucketVerKey, val)
		}); err != nil {
			return fmt.Errorf("failed to publish bucket version: %w", err)
		}

		if current > 0 {
			if err := s.db.DropPrefix(versionPrefix(current)); err != nil {
				// Stale data is invisible once the pointer moved.
				log.Printf("Failed to drop bucket version %d: %v", current, err)
			}
		}
		return nil
	})
}

// Buckets returns the live aggregate set
func (s *Storage) Buckets(ctx context.Context) ([]swipes.Bucket, error) {
	var results []swipes.Bucket
	err := run(ctx, "buckets", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			version, err := readVersion(txn)
			if err != nil {
				return err
			}
			if version == 0 {
				return nil
			}

			opts := badger.DefaultIteratorOptions
			opts.Prefix = versionPrefix(version)
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				var b swipes.Bucket
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &b)
				}); err != nil {
					return fmt.Errorf("failed to decode bucket: %w", err)
				}
				results = append(results, b)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Cursor returns the committed cursor
func (s *Storage) Cursor(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := run(ctx, "cursor", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(cursorKey)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt cursor value (%d bytes)", len(val))
				}
				ts = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
				return nil
			})
		})
	})
	return ts, err
}

// SetCursor records the cursor
func (s *Storage) SetCursor(ctx context.Context, ts time.Time) error {
	return run(ctx, "set cursor", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, uint64(ts.UnixNano()))
			return txn.Set(cursorKey, val)
		})
	})
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection
// This reclaims disk space from dropped bucket versions
// discardRatio: run GC if this fraction of file can be discarded (0.5 = 50%)
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return nil, err
	}
	buckets, err := s.Buckets(ctx)
	if err != nil {
		return nil, err
	}

	stats := &storage.Stats{TotalBuckets: uint64(len(buckets))}
	seen := make(map[string]struct{})
	for _, e := range events {
		stats.Observe(e, seen)
	}

	cursor, err := s.Cursor(ctx)
	switch {
	case err == nil:
		stats.Cursor = cursor
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// eventKey creates a sortable key: prefix + observed_at + location hash + seq
func eventKey(e swipes.Event) []byte {
	key := make([]byte, len(eventPrefix)+20)
	n := copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[n:n+8], uint64(e.ObservedAt.UnixNano()))
	binary.BigEndian.PutUint64(key[n+8:n+16], xxhash.Sum64String(e.Location))
	binary.BigEndian.PutUint32(key[n+16:n+20], uint32(e.Seq))
	return key
}

// versionPrefix returns the key prefix for one bucket set version
func versionPrefix(version uint64) []byte {
	p := make([]byte, len(bucketPrefix)+8)
	n := copy(p, bucketPrefix)
	binary.BigEndian.PutUint64(p[n:], version)
	return p
}

// readVersion returns the live bucket version, 0 if none was published
func readVersion(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(bucketVerKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt bucket version (%d bytes)", len(val))
		}
		version = binary.BigEndian.Uint64(val)
		return nil
	})
	return version, err
}

var _ storage.Storage = (*Storage)(nil)
