package queue

import (
	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/scc"
)

// nilHandle marks the absence of a node.
const nilHandle = -1

// node is one arena slot of the doubly linked unit list.
type node struct {
	unit *DeliveryUnit
	prev int
	next int
}

// DependencyQueue orders pending delivery units.
//
// Units live in an arena of nodes linked by integer handles; freed slots are
// reused. The list keeps every unit after the units it depends on, so only
// the head can ever be the next deliverable unit.
//
// Thread-safety: none. Exactly one goroutine may call into a queue.
type DependencyQueue struct {
	nodes []node
	free  []int
	head  int
	tail  int
	len   int

	// pending holds the dots of every queued unit, for duplicate detection.
	pending ir.Dots

	// delivered grows monotonically. It may be shared with a sibling queue
	// owned by the same goroutine (see ColorQueue).
	delivered *ir.ExceptionClock

	observer Observer
	stats    Stats
}

// NewDependencyQueue creates a queue starting from the given delivered
// clock, typically the committed snapshot a node recovers from.
//
// The queue keeps and mutates delivered in place. A nil clock starts empty.
func NewDependencyQueue(delivered *ir.ExceptionClock, opts ...Option) *DependencyQueue {
	if delivered == nil {
		delivered = ir.NewExceptionClock()
	}
	q := &DependencyQueue{
		head:      nilHandle,
		tail:      nilHandle,
		pending:   ir.NewDots(),
		delivered: delivered,
		observer:  NopObserver{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add inserts a unit and returns the units that became deliverable, in
// delivery order. The result is empty when nothing can be delivered yet.
//
// The queue takes ownership of u. On error the queue is unchanged and the
// error is an *InvariantError.
func (q *DependencyQueue) Add(u *DeliveryUnit) ([]*DeliveryUnit, error) {
	if err := q.place(u); err != nil {
		return nil, err
	}
	return q.TryDeliver(), nil
}

// place inserts u, merging it with the units it forms a cycle with, without
// attempting delivery.
func (q *DependencyQueue) place(u *DeliveryUnit) error {
	q.stats.Added++

	if err := q.checkDuplicates(u); err != nil {
		q.stats.Rejected++
		return err
	}

	// X: earliest unit that depends on u
	x := q.head
	for x != nilHandle && !u.Before(q.nodes[x].unit) {
		x = q.nodes[x].next
	}

	// Y: latest unit that u depends on
	y := q.tail
	for y != nilHandle && !q.nodes[y].unit.Before(u) {
		y = q.nodes[y].prev
	}

	switch {
	case x == nilHandle && y == nilHandle:
		// Nothing related is pending: u is a ready candidate
		q.insertAfter(nilHandle, u)
	case x == nilHandle:
		q.insertAfter(y, u)
	case y == nilHandle:
		q.insertBefore(x, u)
	case q.nodes[y].next == x:
		q.insertAfter(y, u)
	case q.reaches(x, y):
		// X at or before Y: u belongs inside X..Y, possibly in a cycle
		return q.placeInRange(x, y, u)
	default:
		// Y strictly before X with units in between: any slot works
		q.insertAfter(y, u)
	}

	q.pending.Union(u.dots)
	q.stats.Inserted++
	q.observer.UnitInserted(u)
	return nil
}

// checkDuplicates rejects a unit that repeats a pending or delivered dot.
func (q *DependencyQueue) checkDuplicates(u *DeliveryUnit) error {
	if dup := q.pending.Intersection(u.dots); len(dup) > 0 {
		return newDuplicateDotError("commit repeats a pending dot", dup)
	}
	var delivered []ir.Dot
	for d := range u.dots {
		if q.delivered.Contains(d) {
			delivered = append(delivered, d)
		}
	}
	if len(delivered) > 0 {
		ir.SortDots(delivered)
		return newDuplicateDotError("commit repeats a delivered dot", delivered)
	}
	return nil
}

// placeInRange handles a unit that must follow y and precede x while x is
// at or before y. Only the units on a dependency cycle through u are merged
// with it; u and the rest of x..y are then relinked in dependency order.
// Every unit on such a cycle lies within x..y, since the list is ordered.
// Nothing is modified in the list if a merge fails.
func (q *DependencyQueue) placeInRange(x, y int, u *DeliveryUnit) error {
	var handles []int
	var units []*DeliveryUnit
	for h := x; ; h = q.nodes[h].next {
		handles = append(handles, h)
		units = append(units, q.nodes[h].unit)
		if h == y {
			break
		}
	}
	self := len(units)
	units = append(units, u)

	adj := dependencyGraph(units)
	comp, count := scc.Components(adj)
	groups := scc.Groups(comp, count)

	members := groups[comp[self]]
	placed := u
	if len(members) > 1 {
		placed = u.Clone()
		for _, m := range members {
			if m == self {
				continue
			}
			if err := placed.Merge(units[m].Clone()); err != nil {
				q.stats.Rejected++
				return err
			}
		}
	}

	// Range units keep their relative order where dependencies allow
	order := condensationOrder(adj, comp, count, func(a, b int) bool {
		return groups[a][0] < groups[b][0]
	})

	prev, next := q.nodes[x].prev, q.nodes[y].next
	for _, h := range handles {
		q.unlink(h)
	}
	for _, id := range order {
		v := placed
		if id != comp[self] {
			v = units[groups[id][0]]
		}
		h := q.alloc(v)
		q.link(h, prev, next)
		prev = h
	}

	q.pending.Union(u.dots)
	if absorbed := len(members) - 1; absorbed > 0 {
		q.stats.Merges++
		q.stats.Absorbed += absorbed
		q.observer.UnitsMerged(placed, absorbed)
	} else {
		q.stats.Inserted++
		q.observer.UnitInserted(u)
	}
	return nil
}

// TryDeliver pops head units for as long as they are deliverable and
// returns them in order. Each delivery commits the grown delivered clock
// before the next head is tested.
func (q *DependencyQueue) TryDeliver() []*DeliveryUnit {
	var out []*DeliveryUnit
	for {
		u := q.deliverHead()
		if u == nil {
			return out
		}
		out = append(out, u)
	}
}

// deliverHead delivers the head unit if possible and returns it, or nil.
func (q *DependencyQueue) deliverHead() *DeliveryUnit {
	if q.head == nilHandle {
		return nil
	}
	h := q.head
	u := q.nodes[h].unit
	next, ok := u.CanDeliver(q.delivered)
	if !ok {
		return nil
	}

	q.delivered.Replace(next)
	q.unlink(h)
	for d := range u.dots {
		delete(q.pending, d)
	}

	q.stats.Delivered++
	q.stats.DeliveredDots += u.Size()
	q.observer.UnitDelivered(u)
	return u
}

// reaches reports whether y is reachable from x by following next links.
func (q *DependencyQueue) reaches(x, y int) bool {
	for h := x; h != nilHandle; h = q.nodes[h].next {
		if h == y {
			return true
		}
	}
	return false
}

// alloc stores u in a free slot and returns its handle.
func (q *DependencyQueue) alloc(u *DeliveryUnit) int {
	n := node{unit: u, prev: nilHandle, next: nilHandle}
	if last := len(q.free) - 1; last >= 0 {
		h := q.free[last]
		q.free = q.free[:last]
		q.nodes[h] = n
		return h
	}
	q.nodes = append(q.nodes, n)
	return len(q.nodes) - 1
}

// link splices handle h between prev and next (either may be nilHandle).
func (q *DependencyQueue) link(h, prev, next int) {
	q.nodes[h].prev = prev
	q.nodes[h].next = next
	if prev == nilHandle {
		q.head = h
	} else {
		q.nodes[prev].next = h
	}
	if next == nilHandle {
		q.tail = h
	} else {
		q.nodes[next].prev = h
	}
	q.len++
}

// insertAfter places u right after prev; nilHandle means at the head.
func (q *DependencyQueue) insertAfter(prev int, u *DeliveryUnit) {
	next := q.head
	if prev != nilHandle {
		next = q.nodes[prev].next
	}
	q.link(q.alloc(u), prev, next)
}

// insertBefore places u right before next.
func (q *DependencyQueue) insertBefore(next int, u *DeliveryUnit) {
	q.link(q.alloc(u), q.nodes[next].prev, next)
}

// unlink removes h from the list and frees its slot.
func (q *DependencyQueue) unlink(h int) {
	prev, next := q.nodes[h].prev, q.nodes[h].next
	if prev == nilHandle {
		q.head = next
	} else {
		q.nodes[prev].next = next
	}
	if next == nilHandle {
		q.tail = prev
	} else {
		q.nodes[next].prev = prev
	}
	q.nodes[h] = node{prev: nilHandle, next: nilHandle}
	q.free = append(q.free, h)
	q.len--
}

// Len returns the number of pending units.
func (q *DependencyQueue) Len() int {
	return q.len
}

// PendingDots returns the number of pending operations.
func (q *DependencyQueue) PendingDots() int {
	return q.pending.Len()
}

// Units returns the pending units in list order. The units stay owned by
// the queue and must not be modified.
func (q *DependencyQueue) Units() []*DeliveryUnit {
	out := make([]*DeliveryUnit, 0, q.len)
	for h := q.head; h != nilHandle; h = q.nodes[h].next {
		out = append(out, q.nodes[h].unit)
	}
	return out
}

// Delivered returns a copy of the delivered clock.
func (q *DependencyQueue) Delivered() *ir.ExceptionClock {
	return q.delivered.Clone()
}

// Stats returns a snapshot of the queue's counters.
func (q *DependencyQueue) Stats() Stats {
	return q.stats
}
