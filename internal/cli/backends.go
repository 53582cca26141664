package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/causeway/internal/checkpoint"
	"github.com/roach88/causeway/internal/config"
	"github.com/roach88/causeway/internal/engine"
	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/store"
)

// backends holds the stores a command opened. close releases them in
// reverse order of opening.
type backends struct {
	log        *store.Store     // delivery log, nil without --db
	checkpoint checkpoint.Store // nil when checkpoints are off
	closers    []func() error
}

// openBackends opens the delivery log at dbPath (if set) and the configured
// checkpoint backend. A sqlite checkpoint at the same path as the delivery
// log shares its connection.
func openBackends(dbPath string, cfg config.Checkpoint) (*backends, error) {
	b := &backends{}

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		b.log = st
		b.closers = append(b.closers, st.Close)
	}

	switch cfg.Backend {
	case config.BackendNone:
	case config.BackendSQLite:
		if b.log != nil && cfg.Path == dbPath {
			b.checkpoint = b.log
			break
		}
		st, err := store.Open(cfg.Path)
		if err != nil {
			b.close()
			return nil, WrapExitError(ExitCommandError, "failed to open checkpoint database", err)
		}
		b.checkpoint = st
		b.closers = append(b.closers, st.Close)
	case config.BackendBadger:
		db, err := checkpoint.OpenBadger(cfg.Path)
		if err != nil {
			b.close()
			return nil, WrapExitError(ExitCommandError, "failed to open checkpoint store", err)
		}
		b.checkpoint = db
		b.closers = append(b.closers, db.Close)
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown checkpoint backend %q", cfg.Backend))
	}

	return b, nil
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Error("error closing store", "error", err)
		}
	}
	b.closers = nil
}

// sink returns the delivery log, or mem when there is none.
func (b *backends) sink(mem *engine.MemorySink) engine.Sink {
	if b.log != nil {
		return b.log
	}
	return mem
}

// resumeSnapshot loads the last checkpoint. ok is false when checkpoints
// are off or none was saved yet.
func (b *backends) resumeSnapshot(ctx context.Context) (*ir.ExceptionClock, bool, error) {
	if b.checkpoint == nil {
		return nil, false, nil
	}
	snapshot, ok, err := b.checkpoint.Load(ctx)
	if err != nil {
		return nil, false, WrapExitError(ExitCommandError, "failed to load checkpoint", err)
	}
	return snapshot, ok, nil
}

// delivererOptions wires checkpoints and, when resuming a run recorded in
// the delivery log, a batch clock continuing after its last batch.
func (b *backends) delivererOptions(ctx context.Context, runID string, interval int) ([]engine.DelivererOption, error) {
	var opts []engine.DelivererOption
	if b.checkpoint != nil {
		opts = append(opts, engine.WithCheckpoint(b.checkpoint, interval))
	}
	if b.log != nil {
		last, err := b.log.LastSeq(ctx, runID)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read delivery log", err)
		}
		if last > 0 {
			slog.Info("resuming run", "run_id", runID, "last_seq", last)
			opts = append(opts, engine.WithClock(engine.NewClockAt(last)))
		}
	}
	return opts, nil
}

// runnerOptions maps the configuration onto runner options.
func runnerOptions(cfg config.Config) []engine.Option {
	return []engine.Option{
		engine.WithInboxCapacity(cfg.InboxCapacity),
		engine.WithOutboxCapacity(cfg.OutboxCapacity),
		engine.WithClassifier(cfg.Classifier()),
	}
}

// runIDs returns a generator fixed to runID, or UUIDv7 run IDs when empty.
func runIDs(runID string) engine.RunIDGenerator {
	if runID != "" {
		return engine.NewFixedGenerator(runID)
	}
	return engine.UUIDv7Generator{}
}
