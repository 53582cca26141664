package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/causeway/internal/checkpoint"
	"github.com/roach88/causeway/internal/ir"
)

// Sink receives delivered batches in order. Implemented by store.Store,
// MemorySink and SinkFunc.
type Sink interface {
	Deliver(ctx context.Context, b ir.Batch) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, b ir.Batch) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, b ir.Batch) error {
	return f(ctx, b)
}

// MemorySink collects batches in memory.
//
// Thread-safety: safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	batches []ir.Batch
}

// Deliver implements Sink.
func (s *MemorySink) Deliver(_ context.Context, b ir.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return nil
}

// Batches returns a copy of the batches received so far.
func (s *MemorySink) Batches() []ir.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// DefaultCheckpointInterval is the number of batches between checkpoints.
const DefaultCheckpointInterval = 100

// Deliverer drains a runner's outbox: it numbers and flattens each unit
// into a batch, passes it to the sink and periodically checkpoints the
// delivered clock.
//
// A sink error is fatal: the batch stream has a gap from that point on.
type Deliverer struct {
	runID      string
	sink       Sink
	clock      *Clock
	checkpoint checkpoint.Store
	interval   int

	// Owned by the Run goroutine
	delivered *ir.ExceptionClock
	sinceSave int

	count atomic.Int64
}

// DelivererOption configures a Deliverer.
type DelivererOption func(*Deliverer)

// WithCheckpoint saves the delivered clock to store every interval
// batches and when the outbox closes. interval < 1 saves only on close.
func WithCheckpoint(store checkpoint.Store, interval int) DelivererOption {
	return func(d *Deliverer) {
		d.checkpoint = store
		d.interval = interval
	}
}

// WithClock sets the batch sequence source, e.g. to resume numbering.
func WithClock(c *Clock) DelivererOption {
	return func(d *Deliverer) {
		d.clock = c
	}
}

// NewDeliverer creates a deliverer stamping batches with runID.
func NewDeliverer(runID string, sink Sink, opts ...DelivererOption) *Deliverer {
	d := &Deliverer{
		runID: runID,
		sink:  sink,
		clock: NewClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Count returns the number of batches delivered so far.
// Thread-safe.
func (d *Deliverer) Count() int64 {
	return d.count.Load()
}

// Run consumes deliveries until in is closed or ctx ends.
// A final checkpoint is written in both cases.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (d *Deliverer) Run(ctx context.Context, in <-chan Delivery) error {
	for {
		select {
		case <-ctx.Done():
			if err := d.flush(context.WithoutCancel(ctx)); err != nil {
				slog.Error("final checkpoint failed", "run_id", d.runID, "error", err)
			}
			return ctx.Err()

		case item, ok := <-in:
			if !ok {
				return d.flush(ctx)
			}
			if err := d.handle(ctx, item); err != nil {
				slog.Error("delivery failed", "run_id", d.runID, "error", err)
				return err
			}
		}
	}
}

func (d *Deliverer) handle(ctx context.Context, item Delivery) error {
	if item.Baseline != nil {
		d.delivered = item.Baseline
		return nil
	}
	if item.Unit == nil {
		return nil
	}

	batch, err := item.Unit.Flatten(d.runID, d.clock.Next(), item.Color)
	if err != nil {
		return fmt.Errorf("flatten unit %s: %w", item.Unit, err)
	}
	if err := d.sink.Deliver(ctx, batch); err != nil {
		return fmt.Errorf("deliver batch %d: %w", batch.Seq, err)
	}
	d.count.Add(1)
	slog.Debug("batch delivered",
		"run_id", d.runID,
		"seq", batch.Seq,
		"size", batch.Size(),
		"color", batch.Color.String(),
	)

	if d.delivered == nil {
		d.delivered = ir.NewExceptionClock()
	}
	d.delivered.AddDots(item.Unit.DotSet())
	d.sinceSave++
	if d.interval > 0 && d.sinceSave >= d.interval {
		return d.save(ctx)
	}
	return nil
}

// flush writes the last checkpoint if anything changed since the previous one.
func (d *Deliverer) flush(ctx context.Context) error {
	if d.sinceSave == 0 {
		return nil
	}
	return d.save(ctx)
}

func (d *Deliverer) save(ctx context.Context) error {
	if d.checkpoint == nil || d.delivered == nil {
		return nil
	}
	if err := d.checkpoint.Save(ctx, d.delivered); err != nil {
		return fmt.Errorf("checkpoint after batch %d: %w", d.clock.Current(), err)
	}
	d.sinceSave = 0
	slog.Debug("checkpoint saved", "run_id", d.runID, "seq", d.clock.Current())
	return nil
}
