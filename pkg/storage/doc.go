/*
Package storage provides the pluggable storage abstraction for crowdwait.

# Storage Interface

Three record sets live behind one interface:
  - events: normalized swipe observations, append-only
  - buckets: the aggregate store, rebuilt in full on every refresh
  - cursor: the newest log timestamp already folded into events

Backends:
  - memory: in-memory maps for tests and ephemeral runs
  - badger: BadgerDB (LSM tree + Snappy compression), the default
  - sqlite: a single portable file with embedded migrations

# Event Identity

An event is identified by (observed_at, location, seq). Writing the same
observation twice overwrites it, so a refresh that dies between persisting
events and committing the cursor can simply be retried.

# Bucket Swaps

ReplaceBuckets never exposes a half-written aggregate store:
  - memory swaps a slice under a write lock
  - badger writes the new set under a fresh version prefix, then flips a
    pointer key, then drops the old prefix
  - sqlite deletes and inserts inside one transaction

# Usage Example

	store, err := badger.New(badger.Config{Path: "./data"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	if err := store.AppendEvents(ctx, events); err != nil {
	    return err
	}
	if err := store.SetCursor(ctx, newest); err != nil {
	    return err
	}

# See Also

  - memory.New() for in-memory storage
  - badger.New() for persistent BadgerDB storage
  - sqlite.New() for SQLite storage
  - pkg/aggregate for the bucket computation
*/
package storage
