package queue

import (
	"github.com/tidwall/btree"

	"github.com/roach88/causeway/internal/ir"
)

// entry is one operation held by a unit.
type entry struct {
	dot ir.Dot
	msg ir.Message
}

func entryLess(a, b entry) bool {
	return a.dot.Less(b.dot)
}

// newMessageTree creates the dot-ordered message map. Units have a single
// owner, so the tree's internal locking is disabled.
func newMessageTree() *btree.BTreeG[entry] {
	return btree.NewBTreeGOptions(entryLess, btree.Options{NoLocks: true})
}

// DeliveryUnit is an atomically delivered group of operations.
//
// INVARIANTS:
//   - dots always equals the key set of messages
//   - deps is the union of the conflict clocks of every operation merged in
//
// Units are mutated only by the goroutine that owns the queue holding them.
// Once returned as deliverable, ownership passes to the caller.
type DeliveryUnit struct {
	dots     ir.Dots
	messages *btree.BTreeG[entry]
	deps     *ir.MaxClock
}

// NewUnit creates a single-operation unit. conf is copied.
// A nil conf is treated as an empty clock.
func NewUnit(dot ir.Dot, msg ir.Message, conf *ir.MaxClock) *DeliveryUnit {
	deps := ir.NewMaxClock()
	if conf != nil {
		deps = conf.Clone()
	}
	u := &DeliveryUnit{
		dots:     ir.NewDots(dot),
		messages: newMessageTree(),
		deps:     deps,
	}
	u.messages.Set(entry{dot: dot, msg: msg})
	return u
}

// NewUnitFromCommit creates the unit for one commit record.
func NewUnitFromCommit(c ir.Commit) *DeliveryUnit {
	return NewUnit(c.Dot, c.Message, c.Conf)
}

// Before reports whether u must be delivered no later than other, i.e.
// whether other's dependency clock covers any of u's dots.
func (u *DeliveryUnit) Before(other *DeliveryUnit) bool {
	return other.deps.Intersects(u.dots)
}

// Merge absorbs other into u: dots, messages and dependency clocks are
// unioned. other must not be used afterwards.
//
// Returns an *InvariantError, leaving u untouched, if the two units share
// a dot. A duplicate means the same commit was delivered twice upstream and
// is never resolved by dropping or overwriting one copy.
func (u *DeliveryUnit) Merge(other *DeliveryUnit) error {
	if dup := u.dots.Intersection(other.dots); len(dup) > 0 {
		return newDuplicateDotError("merged units share dots", dup)
	}

	u.dots.Union(other.dots)
	u.deps.Merge(other.deps)
	other.messages.Scan(func(e entry) bool {
		u.messages.Set(e)
		return true
	})
	return nil
}

// CanDeliver tests whether u is deliverable on top of delivered.
//
// It folds u's dots into a copy of delivered and requires the result to
// match u's dependency clock exactly; a superset is not enough. On success
// the copy is returned so the caller can commit it as the new delivered
// clock. delivered itself is never modified.
func (u *DeliveryUnit) CanDeliver(delivered *ir.ExceptionClock) (*ir.ExceptionClock, bool) {
	next := delivered.Clone()
	next.AddDots(u.dots)
	if !ir.MatchesExactly(next, u.deps) {
		return nil, false
	}
	return next, true
}

// SortMessages returns the messages ordered by dot.
func (u *DeliveryUnit) SortMessages() []ir.Message {
	out := make([]ir.Message, 0, u.messages.Len())
	u.messages.Scan(func(e entry) bool {
		out = append(out, e.msg)
		return true
	})
	return out
}

// Dots returns the unit's dots in (replica, seq) order.
func (u *DeliveryUnit) Dots() []ir.Dot {
	out := make([]ir.Dot, 0, u.messages.Len())
	u.messages.Scan(func(e entry) bool {
		out = append(out, e.dot)
		return true
	})
	return out
}

// DotSet returns the unit's dot set. Callers must not modify it.
func (u *DeliveryUnit) DotSet() ir.Dots {
	return u.dots
}

// Deps returns the aggregate dependency clock. Callers must not modify it.
func (u *DeliveryUnit) Deps() *ir.MaxClock {
	return u.deps
}

// Size returns the number of operations in the unit.
func (u *DeliveryUnit) Size() int {
	return u.dots.Len()
}

// Min returns the unit's smallest dot.
func (u *DeliveryUnit) Min() ir.Dot {
	min, _ := u.messages.Min()
	return min.dot
}

// Clone returns a deep copy of the unit.
func (u *DeliveryUnit) Clone() *DeliveryUnit {
	return &DeliveryUnit{
		dots:     u.dots.Clone(),
		messages: u.messages.Copy(),
		deps:     u.deps.Clone(),
	}
}

// Flatten converts the unit into its externally visible batch form.
func (u *DeliveryUnit) Flatten(runID string, seq int64, color ir.Color) (ir.Batch, error) {
	dots := u.Dots()
	messages := u.SortMessages()
	digest, err := ir.BatchDigest(dots, messages)
	if err != nil {
		return ir.Batch{}, err
	}
	return ir.Batch{
		RunID:    runID,
		Seq:      seq,
		Color:    color,
		Dots:     dots,
		Messages: messages,
		Digest:   digest,
	}, nil
}

func (u *DeliveryUnit) String() string {
	return u.dots.String()
}
