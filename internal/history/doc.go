// Package history persists cumulative counter state between runs.
//
// The gateway reports rain totals and lightning strike counts as
// ever-growing counters. The publisher converts them to per-interval
// deltas, which needs the previous value - this package keeps that
// value in SQLite so a restart doesn't turn the first poll's total
// into a giant spurious delta.
//
// One row per counter holds the latest value; a snapshot table keeps a
// configurable number of days of per-poll history for debugging
// counter resets.
package history
