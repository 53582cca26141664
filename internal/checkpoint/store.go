package checkpoint

import (
	"context"
	"sync"

	"github.com/roach88/causeway/internal/ir"
)

// Store loads and saves the delivered-clock checkpoint.
//
// Implemented by Badger, Memory and store.Store.
type Store interface {
	// Load returns the last saved clock. ok is false if nothing was saved.
	Load(ctx context.Context) (c *ir.ExceptionClock, ok bool, err error)

	// Save replaces the checkpoint with c.
	Save(ctx context.Context, c *ir.ExceptionClock) error
}

// Memory keeps the checkpoint in memory.
//
// Thread-safety: safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemory creates an empty in-memory checkpoint store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context) (*ir.ExceptionClock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, false, nil
	}
	c, err := Decode(m.data)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Save implements Store. The clock is encoded, so later changes to c are
// not visible through Load.
func (m *Memory) Save(ctx context.Context, c *ir.ExceptionClock) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
