package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/storage/storagetest"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

func TestMemoryStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return New() })
}

func TestMemoryStorage_BucketsAreCopied(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	in := []swipes.Bucket{{Location: "RPME", TotalSwipes: 10, SampleCount: 1}}
	if err := store.ReplaceBuckets(ctx, in); err != nil {
		t.Fatalf("ReplaceBuckets failed: %v", err)
	}
	in[0].TotalSwipes = 99

	out, err := store.Buckets(ctx)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if out[0].TotalSwipes != 10 {
		t.Errorf("Expected stored bucket to be unaffected by caller, got %d", out[0].TotalSwipes)
	}

	out[0].TotalSwipes = 77
	again, _ := store.Buckets(ctx)
	if again[0].TotalSwipes != 10 {
		t.Errorf("Expected returned slice to be a copy, got %d", again[0].TotalSwipes)
	}
}

func TestMemoryStorage_ConcurrentReplace(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	small := []swipes.Bucket{{Location: "A", SampleCount: 1}}
	large := []swipes.Bucket{{Location: "B", SampleCount: 1}, {Location: "B", SampleCount: 1}, {Location: "B", SampleCount: 1}}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			next := small
			if i%2 == 0 {
				next = large
			}
			_ = store.ReplaceBuckets(ctx, next)
		}
	}()

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		got, err := store.Buckets(ctx)
		if err != nil {
			t.Fatalf("Buckets failed: %v", err)
		}
		// Readers see one whole set or the other.
		switch len(got) {
		case 0, 1, 3:
		default:
			t.Fatalf("Observed a partial bucket set of %d", len(got))
		}
		for _, b := range got {
			if b.Location != got[0].Location {
				t.Fatalf("Observed a mixed bucket set: %+v", got)
			}
		}
	}
	close(stop)
	wg.Wait()
}
