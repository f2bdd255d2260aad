/*
Package aggregate folds normalized swipe events into per-timeblock averages
and wait-time bounds.

# Stages

Aggregation is a pure function of the event store and runs in three passes:

	events (one row per unit per log line)
	    ↓ 1. collapse duplicates: same date, weekday, session, location, block
	per-day cells   (swipes summed)
	    ↓ 2. drop the date: count distinct days, sum swipes
	per-slot cells  (total swipes, sample count)
	    ↓ 3. rollup and convert: average, multiplier, bounds
	buckets

A sample count is the number of distinct dates contributing to a slot, so
a slot seen on Monday the 4th (10 swipes) and Monday the 11th (20 swipes)
yields total 30, count 2, average 15.

# Wait-time bounds

Each location's category carries a multiplier turning average occupancy
into minutes of queueing:

	low  = floor(average × multiplier)
	high = ceil(average × multiplier) + 2

so low <= high always holds and the range is never narrower than two
minutes.

# Refresh model

Buckets are never updated in place. Aggregator.Run recomputes the whole
set from every stored event and swaps it into the store in one step.
*/
package aggregate
