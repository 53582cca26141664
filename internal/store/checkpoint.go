package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/causeway/internal/checkpoint"
	"github.com/roach88/causeway/internal/ir"
)

// DefaultCheckpoint is the checkpoint row used by Load and Save.
const DefaultCheckpoint = "delivered"

// Load returns the default checkpoint. Implements checkpoint.Store.
func (s *Store) Load(ctx context.Context) (*ir.ExceptionClock, bool, error) {
	return s.LoadNamed(ctx, DefaultCheckpoint)
}

// Save replaces the default checkpoint. Implements checkpoint.Store.
func (s *Store) Save(ctx context.Context, c *ir.ExceptionClock) error {
	return s.SaveNamed(ctx, DefaultCheckpoint, c)
}

// LoadNamed returns the checkpoint stored under name.
func (s *Store) LoadNamed(ctx context.Context, name string) (*ir.ExceptionClock, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM checkpoint WHERE name = ?
	`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint %q: %w", name, err)
	}

	c, err := checkpoint.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint %q: %w", name, err)
	}
	return c, true, nil
}

// SaveNamed stores c under name, replacing any previous checkpoint.
func (s *Store) SaveNamed(ctx context.Context, name string, c *ir.ExceptionClock) error {
	data, err := checkpoint.Encode(c)
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data
	`, name, data)
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", name, err)
	}
	return nil
}
