package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/causeway/internal/ir"
)

// DefaultKey is the Badger key the checkpoint is stored under.
const DefaultKey = "causeway/checkpoint/delivered"

// Badger stores the checkpoint in a Badger database.
type Badger struct {
	db  *badger.DB
	key []byte
}

type badgerConfig struct {
	inMemory bool
	key      string
}

// BadgerOption customizes how the Badger backend is opened.
type BadgerOption func(*badgerConfig)

// WithInMemory opens Badger without touching disk. The path is ignored.
func WithInMemory() BadgerOption {
	return func(cfg *badgerConfig) {
		cfg.inMemory = true
	}
}

// WithKey overrides the key the checkpoint is stored under, so several
// runners can share one database.
func WithKey(key string) BadgerOption {
	return func(cfg *badgerConfig) {
		cfg.key = key
	}
}

// OpenBadger opens (creating if needed) a Badger checkpoint store at path.
func OpenBadger(path string, options ...BadgerOption) (*Badger, error) {
	cfg := badgerConfig{key: DefaultKey}
	for _, option := range options {
		if option != nil {
			option(&cfg)
		}
	}
	if cfg.key == "" {
		return nil, fmt.Errorf("open badger checkpoint: empty key")
	}

	opts := badger.DefaultOptions(path)
	if cfg.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger checkpoint: %w", err)
	}
	return &Badger{db: db, key: []byte(cfg.key)}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Load implements Store.
func (b *Badger) Load(ctx context.Context) (*ir.ExceptionClock, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}

	c, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Save implements Store.
func (b *Badger) Save(ctx context.Context, c *ir.ExceptionClock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, data)
	}); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
