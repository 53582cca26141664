package testutil

import "sync"

// SeqCounter is a resettable batch sequence source for tests.
//
// Unlike engine.Clock it can be reset, so one scenario can be replayed with
// identical batch sequence numbers.
//
// Thread-safety: All methods are safe for concurrent use.
type SeqCounter struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqCounter creates a counter whose first Next() returns 1.
func NewSeqCounter() *SeqCounter {
	return &SeqCounter{}
}

// Next increments and returns the next sequence number.
func (c *SeqCounter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued sequence number, 0 if none.
func (c *SeqCounter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the counter to 0.
func (c *SeqCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
