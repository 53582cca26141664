// Package checkpoint persists the delivered clock so a restarted node can
// resume delivery from the last committed snapshot.
//
// A checkpoint is a single exception clock. It is written by the
// deliverer after every N batches and on shutdown, and read back as the
// init snapshot of the next run. Backends: Badger (this package), SQLite
// (internal/store) and Memory for tests.
package checkpoint
