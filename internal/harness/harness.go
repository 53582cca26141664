package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/queue"
	"github.com/roach88/causeway/internal/store"
	"github.com/roach88/causeway/internal/testutil"
)

// Harness is the test execution engine.
// It drives a ColorQueue synchronously with a deterministic run ID and
// batch clock, and records every batch in a delivery log.
type Harness struct {
	store    *store.Store
	queue    *queue.ColorQueue
	classify ir.Classifier
	seq      *testutil.SeqCounter
	runID    string
	logger   *slog.Logger
}

// Run executes a test scenario in arrival order and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build the committed snapshot and the queue
// 3. Add each commit, checking its expect clause
// 4. Read the delivered batches back from the database
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return run(scenario, scenario.Commits, true)
}

// RunShuffled executes the scenario with its commits permuted by seed.
//
// Expect clauses and delivered_order assertions depend on arrival order
// and are skipped. Every other assertion must hold for every permutation.
func RunShuffled(scenario *Scenario, seed int64) (*Result, error) {
	commits := slices.Clone(scenario.Commits)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(commits), func(i, j int) {
		commits[i], commits[j] = commits[j], commits[i]
	})
	return run(scenario, commits, false)
}

func run(scenario *Scenario, commits []CommitStep, ordered bool) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := testutil.NewFixedRunID(scenario.RunID).Generate()
	h := &Harness{
		store:    st,
		queue:    queue.NewColorQueue(Snapshot(scenario.Committed)),
		classify: scenario.classifier(),
		seq:      testutil.NewSeqCounter(),
		runID:    runID,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.addCommits(ctx, commits, ordered, result); err != nil {
		return nil, err
	}

	result.Batches, err = st.ReadBatches(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read delivery log: %w", err)
	}
	result.PendingUnits = h.queue.Len()
	result.PendingDots = h.pendingDots()
	result.Conflicting = h.queue.Stats(ir.ColorConflicting)
	result.NonConflicting = h.queue.Stats(ir.ColorNonConflicting)

	assertions := scenario.Assertions
	if !ordered {
		assertions = withoutOrderAssertions(assertions)
	}
	for _, errMsg := range EvaluateAssertions(result, assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// addCommits adds each commit in turn. An invariant error stops the run;
// the remaining commits are not added.
func (h *Harness) addCommits(ctx context.Context, commits []CommitStep, ordered bool, result *Result) error {
	for i, step := range commits {
		c := step.Commit()
		color := h.classify(c.Message)
		event := TraceEvent{
			Step:     i + 1,
			Dot:      c.Dot,
			Color:    color,
			Released: []int64{},
		}

		units, err := h.queue.Add(queue.NewUnitFromCommit(c), color)
		if err != nil {
			var ie *queue.InvariantError
			if !errors.As(err, &ie) {
				return fmt.Errorf("commit %d: %w", i+1, err)
			}
			event.Error = err.Error()
			event.Pending = h.queue.Len()
			result.Trace = append(result.Trace, event)
			result.Fatal = ie
			h.logger.Error("delivery stopped", "step", i+1, "dot", c.Dot.String(), "error", err)
			return nil
		}

		released := make([][]ir.Dot, len(units))
		for j, u := range units {
			batch, err := u.Flatten(h.runID, h.seq.Next(), h.colorOf(u))
			if err != nil {
				return fmt.Errorf("commit %d: flatten %s: %w", i+1, u, err)
			}
			if err := h.store.Deliver(ctx, batch); err != nil {
				return fmt.Errorf("commit %d: deliver batch %d: %w", i+1, batch.Seq, err)
			}
			event.Released = append(event.Released, batch.Seq)
			released[j] = batch.Dots
		}
		event.Pending = h.queue.Len()
		result.Trace = append(result.Trace, event)

		if ordered && step.Expect != nil && !equalBatches(*step.Expect, released) {
			result.AddError(fmt.Sprintf("commit %d %s: expected release %s, got %s",
				i+1, c.Dot, formatBatches(*step.Expect), formatBatches(released)))
		}

		h.logger.Debug("commit added",
			"step", i+1,
			"dot", c.Dot.String(),
			"released", len(units),
			"pending", event.Pending,
		)
	}
	return nil
}

// colorOf recovers a unit's color from its first message; units never mix
// colors.
func (h *Harness) colorOf(u *queue.DeliveryUnit) ir.Color {
	msgs := u.SortMessages()
	if len(msgs) == 0 {
		return ir.ColorConflicting
	}
	return h.classify(msgs[0])
}

func (h *Harness) pendingDots() []ir.Dot {
	dots := ir.NewDots()
	for _, color := range []ir.Color{ir.ColorConflicting, ir.ColorNonConflicting} {
		for _, u := range h.queue.Queue(color).Units() {
			dots.Union(u.DotSet())
		}
	}
	return dots.Sorted()
}

func withoutOrderAssertions(assertions []Assertion) []Assertion {
	out := make([]Assertion, 0, len(assertions))
	for _, a := range assertions {
		if a.Type != AssertDeliveredOrder {
			out = append(out, a)
		}
	}
	return out
}
