package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nicktill/crowdwait/pkg/aggregate"
	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/export"
	"github.com/nicktill/crowdwait/pkg/ingest"
	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/server/monitor"
	"github.com/nicktill/crowdwait/pkg/session"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// ErrRefreshInProgress is returned when a refresh is requested while another
// one is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Broadcaster pushes a message to live subscribers
type Broadcaster interface {
	Broadcast(data interface{}) error
}

// Publisher forwards a finished collection to an external sink
type Publisher interface {
	Publish(ctx context.Context, c *export.Collection) error
}

// RefresherConfig wires a Refresher. Hub and Publisher are optional.
type RefresherConfig struct {
	Store     storage.Storage
	Source    ingest.LogSource
	Calendar  *session.Calendar
	Table     *locations.Table
	Location  *time.Location
	Precision *int
	Snapshot  *export.Snapshot
	Monitor   *monitor.RefreshMonitor
	Hub       Broadcaster
	Publisher Publisher
}

// Refresher runs the ingest -> aggregate -> export -> swap cycle.
type Refresher struct {
	mu sync.Mutex

	source     ingest.LogSource
	pipeline   *ingest.Pipeline
	aggregator *aggregate.Aggregator
	calendar   *session.Calendar
	table      *locations.Table
	loc        *time.Location
	precision  *int
	snapshot   *export.Snapshot
	monitor    *monitor.RefreshMonitor
	hub        Broadcaster
	publisher  Publisher

	now func() time.Time
}

// NewRefresher creates a refresher
func NewRefresher(cfg RefresherConfig) *Refresher {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	snapshot := cfg.Snapshot
	if snapshot == nil {
		snapshot = &export.Snapshot{}
	}
	mon := cfg.Monitor
	if mon == nil {
		mon = monitor.NewRefreshMonitor(0)
	}
	return &Refresher{
		source:     cfg.Source,
		pipeline:   ingest.NewPipeline(cfg.Store, cfg.Calendar, cfg.Table, loc),
		aggregator: aggregate.New(cfg.Store, cfg.Table),
		calendar:   cfg.Calendar,
		table:      cfg.Table,
		loc:        loc,
		precision:  cfg.Precision,
		snapshot:   snapshot,
		monitor:    mon,
		hub:        cfg.Hub,
		publisher:  cfg.Publisher,
		now:        time.Now,
	}
}

// Snapshot returns the live estimate snapshot
func (r *Refresher) Snapshot() *export.Snapshot { return r.snapshot }

// Monitor returns the refresh monitor
func (r *Refresher) Monitor() *monitor.RefreshMonitor { return r.monitor }

// RunSummary describes one refresh run
type RunSummary struct {
	RunID     string              `json:"run_id"`
	Started   time.Time           `json:"started"`
	Duration  time.Duration       `json:"duration"`
	Ingest    ingest.Result       `json:"ingest"`
	Aggregate aggregate.RunResult `json:"aggregate"`
	Locations int                 `json:"locations"`
}

// RunOnce ingests new log lines, rebuilds the aggregate store and publishes
// today's estimates. It returns ErrRefreshInProgress instead of waiting when
// another run holds the lock. On failure the previous snapshot stays live.
func (r *Refresher) RunOnce(ctx context.Context) (RunSummary, error) {
	if !r.mu.TryLock() {
		return RunSummary{}, ErrRefreshInProgress
	}
	defer r.mu.Unlock()

	summary := RunSummary{RunID: uuid.NewString(), Started: r.now()}
	log.Printf("Refresh %s started", summary.RunID)

	err := r.run(ctx, &summary)
	summary.Duration = time.Since(summary.Started)
	if err != nil {
		r.monitor.RecordFailure(summary.RunID, err)
		log.Printf("❌ Refresh %s failed after %v: %v", summary.RunID, summary.Duration.Round(time.Millisecond), err)
		return summary, err
	}

	r.monitor.RecordSuccess(summary.RunID, summary.Duration, summary.Ingest.NewEvents)
	log.Printf("✅ Refresh %s completed in %v: %d new events, %d buckets, %d locations",
		summary.RunID, summary.Duration.Round(time.Millisecond),
		summary.Ingest.NewEvents, summary.Aggregate.Buckets, summary.Locations)
	return summary, nil
}

func (r *Refresher) run(ctx context.Context, summary *RunSummary) error {
	start := time.Now()
	res, err := r.pipeline.Ingest(ctx, r.source)
	summary.Ingest = res
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	log.Printf("Ingested %d new events from %d lines in %v", res.NewEvents, res.LinesRead, time.Since(start).Round(time.Millisecond))

	start = time.Now()
	agg, buckets, err := r.aggregator.Run(ctx)
	summary.Aggregate = agg
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	log.Printf("Aggregated %d events into %d buckets in %v", agg.Events, agg.Buckets, time.Since(start).Round(time.Millisecond))

	c := r.collect(buckets, summary.RunID)
	summary.Locations = len(c.Estimates)
	r.snapshot.Swap(c)
	r.notify(ctx, c)
	return nil
}

// Rebuild publishes estimates from the stored buckets without ingesting.
// Used at startup so a restarted server serves the last result at once.
func (r *Refresher) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	buckets, err := r.aggregator.Buckets(ctx)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return nil
	}
	c := r.collect(buckets, "")
	r.snapshot.Swap(c)
	log.Printf("Restored estimates for %d locations from %d stored buckets", len(c.Estimates), len(buckets))
	return nil
}

func (r *Refresher) collect(buckets []swipes.Bucket, runID string) *export.Collection {
	now := r.now()
	today := now.In(r.loc)
	return &export.Collection{
		RunID:       runID,
		Day:         today.Format(swipes.DateLayout),
		SessionType: r.calendar.Classify(today),
		GeneratedAt: now,
		Estimates: export.Export(buckets, today, export.Options{
			Calendar:  r.calendar,
			Table:     r.table,
			Precision: r.precision,
		}),
	}
}

// notify pushes c to subscribers and the publisher. Failures here are
// logged; the snapshot is already live.
func (r *Refresher) notify(ctx context.Context, c *export.Collection) {
	if r.hub != nil {
		if err := r.hub.Broadcast(EstimatesMessage{Type: "estimates", Collection: c}); err != nil {
			log.Printf("⚠️  Failed to broadcast estimates: %v", err)
		}
	}
	if r.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, config.KafkaPublishTimeout)
		defer cancel()
		if err := r.publisher.Publish(pubCtx, c); err != nil {
			log.Printf("⚠️  %v", err)
		}
	}
}
