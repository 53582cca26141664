package queue

import (
	"fmt"

	"github.com/roach88/causeway/internal/ir"
)

// ColorQueue partitions units into a conflicting and a non-conflicting
// dependency queue that share one delivered clock.
//
// Non-conflicting units carry dependencies only on their own replica's
// earlier operations, so their queue never merges and delivers in commit
// order. Conflicting units may wait on dots delivered by the
// non-conflicting side; after every non-conflicting delivery the
// conflicting queue is retried. Conflicting deliveries never retry the
// non-conflicting queue.
type ColorQueue struct {
	delivered      *ir.ExceptionClock
	conflicting    *DependencyQueue
	nonConflicting *DependencyQueue
}

// NewColorQueue creates a partitioned queue starting from delivered.
// The options apply to both sub-queues.
func NewColorQueue(delivered *ir.ExceptionClock, opts ...Option) *ColorQueue {
	if delivered == nil {
		delivered = ir.NewExceptionClock()
	}
	return &ColorQueue{
		delivered:      delivered,
		conflicting:    NewDependencyQueue(delivered, opts...),
		nonConflicting: NewDependencyQueue(delivered, opts...),
	}
}

// Add routes u by color and returns every unit that became deliverable,
// in delivery order.
func (c *ColorQueue) Add(u *DeliveryUnit, color ir.Color) ([]*DeliveryUnit, error) {
	// Each sub-queue checks its own pending dots; check the sibling's here
	for _, q := range []*DependencyQueue{c.conflicting, c.nonConflicting} {
		if dup := q.pending.Intersection(u.dots); len(dup) > 0 {
			return nil, newDuplicateDotError("commit repeats a pending dot", dup)
		}
	}

	switch color {
	case ir.ColorConflicting:
		return c.conflicting.Add(u)
	case ir.ColorNonConflicting:
		if err := c.nonConflicting.place(u); err != nil {
			return nil, err
		}
		var out []*DeliveryUnit
		for {
			head := c.nonConflicting.deliverHead()
			if head == nil {
				return out, nil
			}
			out = append(out, head)
			out = append(out, c.conflicting.TryDeliver()...)
		}
	default:
		return nil, fmt.Errorf("unknown color %d", color)
	}
}

// Queue returns the sub-queue for color.
func (c *ColorQueue) Queue(color ir.Color) *DependencyQueue {
	if color == ir.ColorNonConflicting {
		return c.nonConflicting
	}
	return c.conflicting
}

// Stats returns the counters of the sub-queue for color.
func (c *ColorQueue) Stats(color ir.Color) Stats {
	return c.Queue(color).Stats()
}

// Len returns the number of pending units across both sub-queues.
func (c *ColorQueue) Len() int {
	return c.conflicting.Len() + c.nonConflicting.Len()
}

// PendingDots returns the number of pending operations across both sub-queues.
func (c *ColorQueue) PendingDots() int {
	return c.conflicting.PendingDots() + c.nonConflicting.PendingDots()
}

// Delivered returns a copy of the shared delivered clock.
func (c *ColorQueue) Delivered() *ir.ExceptionClock {
	return c.delivered.Clone()
}
