package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/storage/badger"
)

// Schedule controls RunScheduler
type Schedule struct {
	Interval   time.Duration
	Timeout    time.Duration // per attempt; zero means config.RefreshTimeout
	MaxRetries int
	RetryDelay time.Duration // doubled after each failed attempt
}

// DefaultSchedule returns the production schedule for interval
func DefaultSchedule(interval time.Duration) Schedule {
	return Schedule{
		Interval:   interval,
		Timeout:    config.RefreshTimeout,
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
	}
}

// RunScheduler runs a refresh immediately and then once per interval. The
// timer for the next run is armed only after the current run returns, so
// runs never overlap and a slow run pushes the next one back.
func RunScheduler(ctx context.Context, r *Refresher, s Schedule, wg *sync.WaitGroup) {
	defer wg.Done()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = config.RefreshTimeout
	}

	runWithRetry := func() {
		for attempt := 0; attempt <= s.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := s.RetryDelay * time.Duration(1<<(attempt-1)) // 30s, 60s, 120s
				log.Printf("Retrying refresh in %v (attempt %d/%d)...", delay, attempt+1, s.MaxRetries+1)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}

			runCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := r.RunOnce(runCtx)
			cancel()

			switch {
			case err == nil:
				return
			case errors.Is(err, ErrRefreshInProgress):
				log.Println("Refresh already running (manual trigger), skipping scheduled run")
				return
			case ctx.Err() != nil:
				return
			}

			if status := r.Monitor().Status(); status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: Refresh has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}
		log.Printf("Refresh failed after %d attempts, keeping previous estimates until next schedule", s.MaxRetries+1)
	}

	log.Printf("Refresh scheduler started (runs every %v)", s.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			runWithRetry()
			if ctx.Err() != nil {
				log.Println("Stopping refresh scheduler")
				return
			}
			timer.Reset(s.Interval)
			log.Printf("Next refresh at %s", time.Now().Add(s.Interval).Format(time.RFC3339))
		case <-ctx.Done():
			log.Println("Stopping refresh scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim disk space.
// Every bucket swap deletes the previous version, so the value log keeps
// collecting garbage between refreshes.
func RunBadgerGC(store storage.Storage, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// Rewrites at most one value log file when half of it is garbage
			if err := badgerStore.RunGC(0.5); err != nil {
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
