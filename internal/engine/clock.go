package engine

import "sync/atomic"

// Clock issues batch sequence numbers: a monotonic logical clock stamped on
// every delivered batch of a run.
//
// Batch sequence numbers are the order downstream consumers apply batches
// in, independent of wall-clock time, so replaying a commit stream yields
// identically numbered batches.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though only the Deliverer goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, e.g. after the last
// batch found in the delivery log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
