package harness

import (
	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/queue"
)

// TraceEvent records one commit added to the queue and what it released.
type TraceEvent struct {
	// Step is the commit's position in arrival order, from 1.
	Step int    `json:"step"`
	Dot  ir.Dot `json:"dot"`

	Color ir.Color `json:"color"`

	// Released lists the batch seqs this add delivered.
	Released []int64 `json:"released"`

	// Pending is the number of queued units after the add.
	Pending int `json:"pending"`

	// Error is set when the add failed.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains one event per commit, in arrival order.
	Trace []TraceEvent `json:"trace"`

	// Batches are the delivered batches, read back from the delivery log.
	Batches []ir.Batch `json:"batches"`

	// PendingDots lists the dots still queued, in (replica, seq) order.
	PendingDots []ir.Dot `json:"pending_dots"`

	// PendingUnits is the number of units still queued.
	PendingUnits int `json:"pending_units"`

	// Stats holds the per-color queue counters.
	Conflicting    queue.Stats `json:"conflicting"`
	NonConflicting queue.Stats `json:"non_conflicting"`

	// Fatal is the invariant error that stopped the run, if any.
	Fatal *queue.InvariantError `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Batches:     []ir.Batch{},
		PendingDots: []ir.Dot{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Merges is the total number of merges across both queues.
func (r *Result) Merges() int {
	return r.Conflicting.Merges + r.NonConflicting.Merges
}

// BatchDots returns the dots of each delivered batch, in delivery order.
func (r *Result) BatchDots() [][]ir.Dot {
	out := make([][]ir.Dot, len(r.Batches))
	for i, b := range r.Batches {
		out[i] = b.Dots
	}
	return out
}
