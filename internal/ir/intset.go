package ir

import (
	"fmt"
	"slices"
)

// IntSet is a compact set of committed sequence numbers for one replica.
//
// T is the concrete implementation type, so Merge and Clone stay statically
// typed. Merge must be commutative, associative and idempotent: units merge
// pairwise in arbitrary order during batch formation and every order has to
// converge on the same set.
type IntSet[T any] interface {
	Contains(seq uint64) bool
	Add(seq uint64)
	Merge(other T)
	Clone() T

	// Watermark is the highest sequence number the set may contain.
	Watermark() uint64
	// Holes lists the sequence numbers at or below the watermark that are
	// missing, in ascending order.
	Holes() []uint64
}

// SeqView is the read-only part of IntSet shared by every implementation.
// It allows sets of different concrete types to be compared.
type SeqView interface {
	Watermark() uint64
	Holes() []uint64
}

// SameSeqs reports whether two sets contain exactly the same sequence numbers.
func SameSeqs(a, b SeqView) bool {
	if a.Watermark() != b.Watermark() {
		return false
	}
	ha, hb := a.Holes(), b.Holes()
	if len(ha) != len(hb) {
		return false
	}
	for i := range ha {
		if ha[i] != hb[i] {
			return false
		}
	}
	return true
}

// MaxInt is a high-watermark set: it contains every seq in [1, w].
//
// Used for dependency clocks, where the protocol only records the highest
// conflicting sequence number per replica.
type MaxInt struct {
	w uint64
}

// NewMaxInt creates a watermark set.
func NewMaxInt(watermark uint64) *MaxInt {
	return &MaxInt{w: watermark}
}

// Contains reports whether 1 <= seq <= w.
func (m *MaxInt) Contains(seq uint64) bool {
	return seq >= 1 && seq <= m.w
}

// Add raises the watermark to seq if seq is higher.
func (m *MaxInt) Add(seq uint64) {
	if seq > m.w {
		m.w = seq
	}
}

// Merge keeps the higher watermark.
func (m *MaxInt) Merge(other *MaxInt) {
	if other.w > m.w {
		m.w = other.w
	}
}

// Clone returns an independent copy.
func (m *MaxInt) Clone() *MaxInt {
	return &MaxInt{w: m.w}
}

// Watermark returns w.
func (m *MaxInt) Watermark() uint64 {
	return m.w
}

// Holes always returns nil: a watermark set has no holes.
func (m *MaxInt) Holes() []uint64 {
	return nil
}

func (m *MaxInt) String() string {
	return fmt.Sprintf("max(%d)", m.w)
}

// ExceptionSet contains every seq in [1, w] except the holes in E.
//
// INVARIANT: every hole h satisfies 1 <= h < w. Add maintains this and
// Merge preserves it, since a hole survives only while it is at or below
// the merged watermark.
type ExceptionSet struct {
	w     uint64
	holes map[uint64]struct{}
}

// NewExceptionSet creates a set with watermark w and the given holes.
// Holes outside [1, w) are ignored.
func NewExceptionSet(watermark uint64, holes ...uint64) *ExceptionSet {
	e := &ExceptionSet{w: watermark}
	for _, h := range holes {
		if h >= 1 && h < watermark {
			e.addHole(h)
		}
	}
	return e
}

func (e *ExceptionSet) addHole(h uint64) {
	if e.holes == nil {
		e.holes = make(map[uint64]struct{})
	}
	e.holes[h] = struct{}{}
}

func (e *ExceptionSet) hasHole(h uint64) bool {
	_, ok := e.holes[h]
	return ok
}

// Contains reports whether 1 <= seq <= w and seq is not a hole.
func (e *ExceptionSet) Contains(seq uint64) bool {
	return seq >= 1 && seq <= e.w && !e.hasHole(seq)
}

// Add inserts seq. Jumping past the watermark turns every skipped
// sequence number into a hole; adding below it fills a hole.
func (e *ExceptionSet) Add(seq uint64) {
	if seq == 0 {
		return
	}
	if seq <= e.w {
		delete(e.holes, seq)
		return
	}
	for h := e.w + 1; h < seq; h++ {
		e.addHole(h)
	}
	e.w = seq
}

// Merge computes the union:
//
//	w' = max(wa, wb)
//	E' = {s in Ea : s > wb or s in Eb} U {s in Eb : s > wa or s in Ea}
//
// A hole survives only if the other side does not contain it.
func (e *ExceptionSet) Merge(other *ExceptionSet) {
	merged := make(map[uint64]struct{})
	for s := range e.holes {
		if s > other.w || other.hasHole(s) {
			merged[s] = struct{}{}
		}
	}
	for s := range other.holes {
		if s > e.w || e.hasHole(s) {
			merged[s] = struct{}{}
		}
	}
	if other.w > e.w {
		e.w = other.w
	}
	if len(merged) == 0 {
		e.holes = nil
		return
	}
	e.holes = merged
}

// Clone returns an independent copy.
func (e *ExceptionSet) Clone() *ExceptionSet {
	c := &ExceptionSet{w: e.w}
	for h := range e.holes {
		c.addHole(h)
	}
	return c
}

// Watermark returns w.
func (e *ExceptionSet) Watermark() uint64 {
	return e.w
}

// Holes returns the exceptions in ascending order.
func (e *ExceptionSet) Holes() []uint64 {
	if len(e.holes) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(e.holes))
	for h := range e.holes {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func (e *ExceptionSet) String() string {
	if len(e.holes) == 0 {
		return fmt.Sprintf("exc(%d)", e.w)
	}
	return fmt.Sprintf("exc(%d -%v)", e.w, e.Holes())
}
