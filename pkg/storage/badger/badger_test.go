package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/storage/storagetest"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

func TestBadgerStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		store, err := New(Config{InMemory: true})
		if err != nil {
			t.Fatalf("Failed to create storage: %v", err)
		}
		return store
	})
}

func TestBadgerStorage_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()
	now := time.Date(2024, time.March, 4, 12, 15, 0, 0, time.UTC)

	// Write to first instance
	{
		store, err := New(Config{Path: tmpDir})
		if err != nil {
			t.Fatalf("Failed to create storage: %v", err)
		}

		if err := store.AppendEvents(ctx, []swipes.Event{storagetest.Event(now, "RPME", 0, 40)}); err != nil {
			t.Fatalf("AppendEvents failed: %v", err)
		}
		if err := store.ReplaceBuckets(ctx, []swipes.Bucket{{Location: "RPME", TotalSwipes: 40, SampleCount: 1, Average: 40}}); err != nil {
			t.Fatalf("ReplaceBuckets failed: %v", err)
		}
		if err := store.SetCursor(ctx, now); err != nil {
			t.Fatalf("SetCursor failed: %v", err)
		}
		store.Close()
	}

	// Read from second instance
	{
		store, err := New(Config{Path: tmpDir})
		if err != nil {
			t.Fatalf("Failed to reopen storage: %v", err)
		}
		defer store.Close()

		events, err := store.Events(ctx)
		if err != nil {
			t.Fatalf("Events failed: %v", err)
		}
		if len(events) != 1 || events[0].Swipes != 40 {
			t.Errorf("Expected 1 persisted event with 40 swipes, got %+v", events)
		}

		buckets, err := store.Buckets(ctx)
		if err != nil {
			t.Fatalf("Buckets failed: %v", err)
		}
		if len(buckets) != 1 || buckets[0].Average != 40 {
			t.Errorf("Expected 1 persisted bucket, got %+v", buckets)
		}

		cursor, err := store.Cursor(ctx)
		if err != nil {
			t.Fatalf("Cursor failed: %v", err)
		}
		if !cursor.Equal(now) {
			t.Errorf("Expected cursor %v, got %v", now, cursor)
		}
	}
}

func TestBadgerStorage_ReplaceDropsOldVersion(t *testing.T) {
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		set := make([]swipes.Bucket, i)
		for j := range set {
			set[j] = swipes.Bucket{Location: "RPME", TotalSwipes: i, SampleCount: 1}
		}
		if err := store.ReplaceBuckets(ctx, set); err != nil {
			t.Fatalf("ReplaceBuckets #%d failed: %v", i, err)
		}
	}

	// Only the live version may remain under the bucket prefix.
	var keys int
	err = store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = bucketPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if keys != 3 {
		t.Errorf("Expected 3 bucket keys after dropping stale versions, got %d", keys)
	}
}

func TestBadgerStorage_EventKeyOrdering(t *testing.T) {
	now := time.Date(2024, time.March, 4, 12, 15, 0, 0, time.UTC)
	a := eventKey(storagetest.Event(now, "RPME", 0, 1))
	b := eventKey(storagetest.Event(now.Add(time.Minute), "RPME", 0, 1))
	if string(a) >= string(b) {
		t.Error("Expected earlier observations to sort first")
	}

	same := eventKey(storagetest.Event(now, "RPME", 0, 99))
	if string(a) != string(same) {
		t.Error("Expected swipe count to be excluded from the key")
	}

	other := eventKey(storagetest.Event(now, "RPME", 1, 1))
	if string(a) == string(other) {
		t.Error("Expected seq to distinguish keys")
	}
}

func TestBadgerStorage_LargeWrite(t *testing.T) {
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	// A term of samples for one unit every 30 minutes
	events := make([]swipes.Event, 0, 5000)
	for i := 0; i < 5000; i++ {
		events = append(events, storagetest.Event(start.Add(time.Duration(i)*30*time.Minute), "RPME", 0, i%50))
	}

	if err := store.AppendEvents(ctx, events); err != nil {
		t.Fatalf("AppendEvents failed: %v", err)
	}

	got, err := store.Events(ctx)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 5000 {
		t.Errorf("Expected 5000 events, got %d", len(got))
	}
}
