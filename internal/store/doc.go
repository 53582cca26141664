// Package store provides SQLite-backed durable storage for delivered
// batches and the delivered-clock checkpoint.
//
// The store is an append-only delivery log:
//   - batches: one row per delivered batch, keyed by (run_id, seq)
//   - batch_messages: the batch's operations in dot order
//   - checkpoint: named msgpack snapshots of the delivered clock
//
// # Critical Patterns
//
// Idempotent delivery:
//   - Writing the same batch twice is a no-op
//   - Writing a different batch under an existing (run_id, seq) is an error
//   - UNIQUE(run_id, replica, dot_seq) rejects a dot delivered twice
//
// Logical ordering:
//   - All reads ORDER BY seq ASC (then position ASC), never by time
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
