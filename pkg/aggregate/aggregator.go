package aggregate

import (
	"context"
	"fmt"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// Aggregator recomputes the aggregate store from the event store
type Aggregator struct {
	storage storage.Storage
	table   *locations.Table
}

// New creates a new aggregator
func New(store storage.Storage, table *locations.Table) *Aggregator {
	return &Aggregator{
		storage: store,
		table:   table,
	}
}

// RunResult summarizes one aggregation pass
type RunResult struct {
	Events  int `json:"events"`
	Buckets int `json:"buckets"`
}

// Run reads every stored event, aggregates and swaps the result into the
// store. On error the previous buckets stay live.
func (a *Aggregator) Run(ctx context.Context) (RunResult, []swipes.Bucket, error) {
	events, err := a.storage.Events(ctx)
	if err != nil {
		return RunResult{}, nil, fmt.Errorf("failed to load events: %w", err)
	}

	buckets, err := Aggregate(events, a.table)
	if err != nil {
		return RunResult{}, nil, fmt.Errorf("failed to aggregate %d events: %w", len(events), err)
	}

	if err := a.storage.ReplaceBuckets(ctx, buckets); err != nil {
		return RunResult{}, nil, fmt.Errorf("failed to replace buckets: %w", err)
	}

	return RunResult{Events: len(events), Buckets: len(buckets)}, buckets, nil
}

// Daily computes daily averages over the stored events
func (a *Aggregator) Daily(ctx context.Context) ([]swipes.DailyAverage, error) {
	events, err := a.storage.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return DailyAverages(events), nil
}

// Buckets returns the live aggregate set
func (a *Aggregator) Buckets(ctx context.Context) ([]swipes.Bucket, error) {
	buckets, err := a.storage.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load buckets: %w", err)
	}
	return buckets, nil
}
