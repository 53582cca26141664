package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Clock maps each replica to the set of its sequence numbers known so far.
//
// Two instantiations are used:
//   - ExceptionClock tracks precisely what has been delivered or committed,
//     holes included.
//   - MaxClock is the per-commit dependency snapshot: the highest conflicting
//     sequence number per replica.
//
// Replicas without an entry hold the empty set. Clocks are not safe for
// concurrent use; each one is owned by a single goroutine.
type Clock[T IntSet[T]] struct {
	entries map[ReplicaID]T
	fresh   func() T
}

// ExceptionClock is a clock of ExceptionSets.
type ExceptionClock = Clock[*ExceptionSet]

// MaxClock is a clock of watermarks.
type MaxClock = Clock[*MaxInt]

// NewExceptionClock creates an empty exception clock.
func NewExceptionClock() *ExceptionClock {
	return &Clock[*ExceptionSet]{
		entries: make(map[ReplicaID]*ExceptionSet),
		fresh:   func() *ExceptionSet { return NewExceptionSet(0) },
	}
}

// NewMaxClock creates an empty watermark clock.
func NewMaxClock() *MaxClock {
	return &Clock[*MaxInt]{
		entries: make(map[ReplicaID]*MaxInt),
		fresh:   func() *MaxInt { return NewMaxInt(0) },
	}
}

// MaxClockOf builds a watermark clock from a dense vector indexed by
// replica ID. Zero watermarks are left out.
//
//	MaxClockOf(1, 0) // replica 0 up to 1, nothing from replica 1
func MaxClockOf(watermarks ...uint64) *MaxClock {
	c := NewMaxClock()
	for r, w := range watermarks {
		if w > 0 {
			c.Set(ReplicaID(r), NewMaxInt(w))
		}
	}
	return c
}

// Get returns the set for a replica. ok is false when the replica has no entry.
func (c *Clock[T]) Get(replica ReplicaID) (set T, ok bool) {
	set, ok = c.entries[replica]
	return set, ok
}

// Set replaces the set for a replica. The clock takes ownership of set.
func (c *Clock[T]) Set(replica ReplicaID, set T) {
	c.entries[replica] = set
}

// entry returns the set for replica, creating an empty one if needed.
func (c *Clock[T]) entry(replica ReplicaID) T {
	set, ok := c.entries[replica]
	if !ok {
		set = c.fresh()
		c.entries[replica] = set
	}
	return set
}

// Contains reports whether the dot's sequence number is in its replica's set.
func (c *Clock[T]) Contains(d Dot) bool {
	set, ok := c.entries[d.Replica]
	return ok && set.Contains(d.Seq)
}

// Intersects reports whether the clock contains any of the dots.
func (c *Clock[T]) Intersects(dots Dots) bool {
	for d := range dots {
		if c.Contains(d) {
			return true
		}
	}
	return false
}

// AddDot folds one dot into its replica's set.
func (c *Clock[T]) AddDot(d Dot) {
	c.entry(d.Replica).Add(d.Seq)
}

// AddDots folds every dot into the clock.
func (c *Clock[T]) AddDots(dots Dots) {
	for d := range dots {
		c.AddDot(d)
	}
}

// Merge unions other into c, replica by replica.
func (c *Clock[T]) Merge(other *Clock[T]) {
	for r, set := range other.entries {
		if mine, ok := c.entries[r]; ok {
			mine.Merge(set)
			continue
		}
		c.entries[r] = set.Clone()
	}
}

// Clone returns a deep copy.
func (c *Clock[T]) Clone() *Clock[T] {
	out := &Clock[T]{
		entries: make(map[ReplicaID]T, len(c.entries)),
		fresh:   c.fresh,
	}
	for r, set := range c.entries {
		out.entries[r] = set.Clone()
	}
	return out
}

// Replace overwrites c's contents with other's, keeping c's identity.
// Holders of a shared *Clock observe the new state. c takes ownership of
// other's sets; other must not be used afterwards.
func (c *Clock[T]) Replace(other *Clock[T]) {
	c.entries = other.entries
}

// Replicas returns the replicas with an entry, ascending.
func (c *Clock[T]) Replicas() []ReplicaID {
	out := make([]ReplicaID, 0, len(c.entries))
	for r := range c.entries {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of replicas with an entry.
func (c *Clock[T]) Len() int {
	return len(c.entries)
}

// Equal reports whether both clocks contain the same sequence numbers for
// every replica. Missing entries count as empty sets.
func (c *Clock[T]) Equal(other *Clock[T]) bool {
	return MatchesExactly(c, other) && MatchesExactly(other, c)
}

func (c *Clock[T]) String() string {
	replicas := c.Replicas()
	parts := make([]string, len(replicas))
	for i, r := range replicas {
		parts[i] = fmt.Sprintf("%d:%v", r, c.entries[r])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// MatchesExactly reports whether have holds exactly the sequence numbers of
// want for every replica on which want is non-empty.
//
// A superset is NOT a match: if have contains even one sequence number
// beyond want on a constrained replica the result is false. Replicas where
// want is empty carry no conflict and are not compared.
func MatchesExactly[A IntSet[A], B IntSet[B]](have *Clock[A], want *Clock[B]) bool {
	for r, w := range want.entries {
		if w.Watermark() == 0 {
			continue
		}
		h, ok := have.entries[r]
		if !ok || !SameSeqs(h, w) {
			return false
		}
	}
	return true
}
