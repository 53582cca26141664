package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/queue"
)

const (
	// DefaultInboxCapacity bounds the events waiting for the Run loop.
	DefaultInboxCapacity = 1024

	// DefaultOutboxCapacity bounds the deliveries waiting for the Deliverer.
	DefaultOutboxCapacity = 256
)

// Delivery is one item handed from the Runner to the Deliverer.
//
// Exactly one of Baseline and Unit is set. The first item of every run is
// the Baseline: the committed snapshot delivery started from. Every later
// item is a deliverable unit, in delivery order.
type Delivery struct {
	Baseline *ir.ExceptionClock
	Unit     *queue.DeliveryUnit
	Color    ir.Color
}

// Status is a point-in-time view of a runner, refreshed after every event.
type Status struct {
	RunID          string      `json:"run_id"`
	Initialized    bool        `json:"initialized"`
	Buffered       int         `json:"buffered"`
	Inbox          int         `json:"inbox"`
	PendingUnits   int         `json:"pending_units"`
	PendingDots    int         `json:"pending_dots"`
	DeliveredUnits int         `json:"delivered_units"`
	Conflicting    queue.Stats `json:"conflicting"`
	NonConflicting queue.Stats `json:"non_conflicting"`
	Error          string      `json:"error,omitempty"`
}

// Runner is the single-writer delivery loop around a ColorQueue.
//
// Commits arrive through a bounded inbox in any order. The Run loop
// classifies each one, adds it to the queue and hands every unit that
// becomes deliverable to the outbox, drained by a Deliverer.
//
// CRITICAL: The queue and the delivered clock are touched only by the Run
// goroutine. External callers use Init and Submit.
//
// Thread-safety model:
//   - Init(), Submit(), Stop(), Pending(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Commits submitted before the init snapshot are buffered and added, in
// arrival order, once it arrives.
type Runner struct {
	runID     string
	classify  ir.Classifier
	inbox     *eventQueue
	outbox    chan Delivery
	observers []queue.Observer
	initSent  atomic.Bool

	// Owned by the Run goroutine
	queue     *queue.ColorQueue
	buffered  []ir.Commit
	delivered int

	mu     sync.Mutex
	status Status
}

// Option configures a Runner.
type Option func(*runnerConfig)

type runnerConfig struct {
	inboxCapacity  int
	outboxCapacity int
	classify       ir.Classifier
	observers      []queue.Observer
}

// WithInboxCapacity bounds the inbox. Submit blocks while it is full.
func WithInboxCapacity(n int) Option {
	return func(c *runnerConfig) {
		c.inboxCapacity = n
	}
}

// WithOutboxCapacity bounds the outbox. The Run loop blocks while it is
// full, which in turn fills the inbox.
func WithOutboxCapacity(n int) Option {
	return func(c *runnerConfig) {
		c.outboxCapacity = n
	}
}

// WithClassifier sets how commits are routed between the conflicting and
// non-conflicting queues. Default: ir.AllConflicting.
func WithClassifier(classify ir.Classifier) Option {
	return func(c *runnerConfig) {
		c.classify = classify
	}
}

// WithObserver adds a queue observer next to the built-in debug logger.
func WithObserver(o queue.Observer) Option {
	return func(c *runnerConfig) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// NewRunner creates a runner whose run ID comes from runIDs.
func NewRunner(runIDs RunIDGenerator, opts ...Option) *Runner {
	cfg := runnerConfig{
		inboxCapacity:  DefaultInboxCapacity,
		outboxCapacity: DefaultOutboxCapacity,
		classify:       ir.AllConflicting,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.classify == nil {
		cfg.classify = ir.AllConflicting
	}
	if cfg.outboxCapacity < 0 {
		cfg.outboxCapacity = 0
	}

	runID := runIDs.Generate()
	observers := append([]queue.Observer{newLogObserver(runID)}, cfg.observers...)
	r := &Runner{
		runID:     runID,
		classify:  cfg.classify,
		inbox:     newEventQueue(cfg.inboxCapacity),
		outbox:    make(chan Delivery, cfg.outboxCapacity),
		observers: observers,
	}
	r.status.RunID = runID
	return r
}

// RunID returns the ID stamped on this runner's batches.
func (r *Runner) RunID() string {
	return r.runID
}

// Deliveries returns the outbox. It is closed when Run returns.
func (r *Runner) Deliveries() <-chan Delivery {
	return r.outbox
}

// Init submits the committed snapshot delivery starts from. The snapshot
// is copied. Only the first call is accepted; later calls return
// ErrAlreadyInitialized.
func (r *Runner) Init(ctx context.Context, snapshot *ir.ExceptionClock) error {
	if snapshot == nil {
		return ErrNilSnapshot
	}
	if !r.initSent.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	err := r.inbox.Enqueue(ctx, Event{Type: EventTypeInit, Snapshot: snapshot.Clone()})
	if err != nil {
		r.initSent.Store(false)
	}
	return err
}

// Submit hands one commit to the Run loop, blocking while the inbox is
// full. Returns ErrClosed after Stop, or ctx.Err() if ctx ends first.
func (r *Runner) Submit(ctx context.Context, c ir.Commit) error {
	return r.inbox.Enqueue(ctx, Event{Type: EventTypeCommit, Commit: &c})
}

// Stop closes the inbox. Run processes the events already queued and
// returns nil.
func (r *Runner) Stop() {
	r.inbox.Close()
}

// Pending returns the latest status snapshot. A stalled run shows up as
// PendingUnits that never drop.
func (r *Runner) Pending() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	s.Inbox = r.inbox.Len()
	return s
}

// Run starts the single-writer loop.
// Blocks until ctx is cancelled, Stop() is called and the inbox drains, or
// an invariant violation ends the run.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A malformed event is logged and skipped. An invariant
// violation (*queue.InvariantError) is logged at error level and stops the
// run: the inbox is closed and the wrapped error is returned. The unit that
// triggered it never reaches the outbox.
//
// The outbox is closed on return.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("runner starting", "run_id", r.runID)
	defer close(r.outbox)

	for {
		event, ok := r.inbox.TryDequeue()
		if ok {
			err := r.processEvent(ctx, event)
			r.publish(err)
			switch {
			case err == nil:
			case IsFatal(err):
				slog.Error("delivery stopped: invariant violated",
					"run_id", r.runID,
					"error", err,
				)
				r.inbox.Close()
				return fmt.Errorf("run %s: %w", r.runID, err)
			case ctx.Err() != nil:
				slog.Info("runner stopping: context cancelled", "run_id", r.runID)
				r.inbox.Close()
				return ctx.Err()
			default:
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("runner stopping: context cancelled", "run_id", r.runID)
			r.inbox.Close()
			return ctx.Err()

		case <-r.inbox.Wait():
			if r.inbox.Drained() {
				slog.Info("runner stopping: inbox closed",
					"run_id", r.runID,
					"delivered", r.delivered,
					"pending", r.pendingUnits(),
				)
				return nil
			}
		}
	}
}

// processEvent routes an event to its handler.
// CRITICAL: Called only from the Run goroutine.
func (r *Runner) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeInit:
		if event.Snapshot == nil {
			return fmt.Errorf("init event missing snapshot")
		}
		return r.processInit(ctx, event.Snapshot)

	case EventTypeCommit:
		if event.Commit == nil {
			return fmt.Errorf("commit event missing commit data")
		}
		if r.queue == nil {
			r.buffered = append(r.buffered, *event.Commit)
			slog.Debug("commit buffered until init",
				"run_id", r.runID,
				"dot", event.Commit.Dot.String(),
				"buffered", len(r.buffered),
			)
			return nil
		}
		return r.processCommit(ctx, *event.Commit)

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// processInit creates the queue from the snapshot and replays buffered
// commits.
func (r *Runner) processInit(ctx context.Context, snapshot *ir.ExceptionClock) error {
	if r.queue != nil {
		return ErrAlreadyInitialized
	}

	r.queue = queue.NewColorQueue(snapshot.Clone(), queue.WithObserver(fanout(r.observers)))
	slog.Info("runner initialized",
		"run_id", r.runID,
		"snapshot", snapshot.String(),
		"buffered", len(r.buffered),
	)
	if err := r.send(ctx, Delivery{Baseline: snapshot}); err != nil {
		return err
	}

	buffered := r.buffered
	r.buffered = nil
	for i, c := range buffered {
		if err := r.processCommit(ctx, c); err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return err
			}
			logEventError(Event{Type: EventTypeCommit, Commit: &buffered[i]}, err)
		}
	}
	return nil
}

// processCommit adds one commit and forwards everything it released.
func (r *Runner) processCommit(ctx context.Context, c ir.Commit) error {
	color := r.classify(c.Message)
	slog.Debug("processing commit",
		"run_id", r.runID,
		"dot", c.Dot.String(),
		"color", color.String(),
	)

	units, err := r.queue.Add(queue.NewUnitFromCommit(c), color)
	if err != nil {
		return fmt.Errorf("add commit %s: %w", c.Dot, err)
	}
	for _, u := range units {
		if err := r.send(ctx, Delivery{Unit: u, Color: r.colorOf(u)}); err != nil {
			return err
		}
		r.delivered++
	}
	return nil
}

// colorOf recovers a delivered unit's color. Units never mix colors, so the
// first message decides.
func (r *Runner) colorOf(u *queue.DeliveryUnit) ir.Color {
	msgs := u.SortMessages()
	if len(msgs) == 0 {
		return ir.ColorConflicting
	}
	return r.classify(msgs[0])
}

func (r *Runner) send(ctx context.Context, d Delivery) error {
	select {
	case r.outbox <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) pendingUnits() int {
	if r.queue == nil {
		return 0
	}
	return r.queue.Len()
}

// publish refreshes the status snapshot read by Pending.
func (r *Runner) publish(err error) {
	s := Status{
		RunID:          r.runID,
		Initialized:    r.queue != nil,
		Buffered:       len(r.buffered),
		DeliveredUnits: r.delivered,
	}
	if r.queue != nil {
		s.PendingUnits = r.queue.Len()
		s.PendingDots = r.queue.PendingDots()
		s.Conflicting = r.queue.Stats(ir.ColorConflicting)
		s.NonConflicting = r.queue.Stats(ir.ColorNonConflicting)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil && IsFatal(err) {
		s.Error = err.Error()
	} else {
		s.Error = r.status.Error
	}
	r.status = s
}

// logEventError logs a skipped event with enough context to replay it.
func logEventError(event Event, err error) {
	attrs := []any{
		"event_type", event.Type.String(),
		"error", err,
	}
	if event.Commit != nil {
		attrs = append(attrs,
			"dot", event.Commit.Dot.String(),
			"tag", event.Commit.Message.Tag,
		)
	}
	slog.Error("event processing failed", attrs...)
}
