package ir

import (
	"fmt"
	"slices"
	"strings"
)

// ReplicaID identifies the replica that committed an operation.
type ReplicaID = uint32

// Dot uniquely identifies one committed operation: the committing replica
// and that replica's sequence number for the commit.
//
// Sequence numbers start at 1. Seq 0 is never a valid dot.
type Dot struct {
	Replica ReplicaID `json:"replica" yaml:"replica" msgpack:"r"`
	Seq     uint64    `json:"seq" yaml:"seq" msgpack:"s"`
}

// NewDot creates a dot.
func NewDot(replica ReplicaID, seq uint64) Dot {
	return Dot{Replica: replica, Seq: seq}
}

// Compare orders dots lexicographically by (replica, seq).
// Returns -1, 0 or 1.
func (d Dot) Compare(other Dot) int {
	switch {
	case d.Replica < other.Replica:
		return -1
	case d.Replica > other.Replica:
		return 1
	case d.Seq < other.Seq:
		return -1
	case d.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// Less reports whether d sorts before other.
func (d Dot) Less(other Dot) bool {
	return d.Compare(other) < 0
}

// String renders the dot as "(replica,seq)".
func (d Dot) String() string {
	return fmt.Sprintf("(%d,%d)", d.Replica, d.Seq)
}

// Dots is a set of dots.
//
// The zero value is not usable; create sets with NewDots.
type Dots map[Dot]struct{}

// NewDots creates a set holding the given dots.
func NewDots(dots ...Dot) Dots {
	s := make(Dots, len(dots))
	for _, d := range dots {
		s[d] = struct{}{}
	}
	return s
}

// Add inserts a dot. Returns false if it was already present.
func (s Dots) Add(d Dot) bool {
	if _, ok := s[d]; ok {
		return false
	}
	s[d] = struct{}{}
	return true
}

// Contains reports membership.
func (s Dots) Contains(d Dot) bool {
	_, ok := s[d]
	return ok
}

// Len returns the number of dots in the set.
func (s Dots) Len() int {
	return len(s)
}

// Intersection returns the dots present in both sets, sorted.
func (s Dots) Intersection(other Dots) []Dot {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	var out []Dot
	for d := range small {
		if large.Contains(d) {
			out = append(out, d)
		}
	}
	SortDots(out)
	return out
}

// Union adds every dot of other to s.
func (s Dots) Union(other Dots) {
	for d := range other {
		s[d] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s Dots) Clone() Dots {
	c := make(Dots, len(s))
	for d := range s {
		c[d] = struct{}{}
	}
	return c
}

// Sorted returns the dots in (replica, seq) order.
func (s Dots) Sorted() []Dot {
	out := make([]Dot, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	SortDots(out)
	return out
}

// Min returns the smallest dot. ok is false for an empty set.
func (s Dots) Min() (min Dot, ok bool) {
	for d := range s {
		if !ok || d.Less(min) {
			min = d
			ok = true
		}
	}
	return min, ok
}

// String renders the sorted set, e.g. "{(0,1) (1,1)}".
func (s Dots) String() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = d.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// SortDots sorts a slice of dots in place.
func SortDots(dots []Dot) {
	slices.SortFunc(dots, Dot.Compare)
}
