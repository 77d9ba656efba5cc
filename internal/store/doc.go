// Package store provides SQLite-backed storage for recorded series and
// replay checkpoints.
//
// It is the data-source adapter behind the CLI: series are imported or
// generated into the store, read back as ir.Series, and fed to the aligner or
// replayer. The core packages never import store.
//
// Tables:
//   - series: one row per stream id with width, sample count and content hash
//   - samples: (series_id, idx) keyed timestamps and canonical JSON values
//   - replay_runs: the latest checkpoint of each replay run
//
// # Ordering
//
// Samples are always read ORDER BY idx, so a series reads back exactly as it
// was written. Listings use ORDER BY id COLLATE BINARY (series) or
// ORDER BY seq, id COLLATE BINARY (runs) so output is stable across runs.
//
// # Idempotency
//
// WriteSeries compares the incoming content hash (ir.SeriesHash) with the
// stored one and skips the write when they match. A changed series is
// replaced atomically in one transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
