package testutil

import (
	"math/rand"

	"github.com/roach88/causeway/internal/ir"
)

// History is a generated commit set together with the batches any correct
// ordering must deliver, whatever the arrival order.
type History struct {
	Commits []ir.Commit
	// Batches lists the expected delivery units in order, each with its
	// dots sorted.
	Batches [][]ir.Dot
}

// Dots returns the number of operations in the history.
func (h History) Dots() int {
	return len(h.Commits)
}

// GroupedHistory generates a conflicting history made of cycle groups.
//
// Operations are dealt into groups of 1..maxGroup operations from random
// replicas. Every operation's conflict clock covers exactly the operations
// of its own and all earlier groups, so each group is one atomic batch and
// groups are delivered in generation order.
func GroupedHistory(rng *rand.Rand, replicas, groups, maxGroup int) History {
	var h History
	next := make([]uint64, replicas) // last seq issued per replica

	for g := 0; g < groups; g++ {
		size := 1 + rng.Intn(maxGroup)
		var dots []ir.Dot
		for i := 0; i < size; i++ {
			r := rng.Intn(replicas)
			next[r]++
			dots = append(dots, ir.NewDot(ir.ReplicaID(r), next[r]))
		}

		conf := ir.NewMaxClock()
		for r, seq := range next {
			if seq > 0 {
				conf.Set(ir.ReplicaID(r), ir.NewMaxInt(seq))
			}
		}
		for _, d := range dots {
			h.Commits = append(h.Commits, Commit(d.Replica, d.Seq, "", conf.Clone()))
		}

		ir.SortDots(dots)
		h.Batches = append(h.Batches, dots)
	}
	return h
}

// PartialHistory generates a conflicting history whose operations are only
// partially ordered.
//
// Operations are dealt into groups as in GroupedHistory, but each one covers
// only its own replica and a random subset of the others, at the prefixes
// issued by the end of its group. Operations of one group may or may not
// form a cycle, and operations of different groups are often unrelated.
// Whenever an operation covers replica r, the next operation issued on r
// after its group covers the operation's replica too, so every conflict
// clock stays exactly satisfiable.
//
// Batches is left nil: the expected grouping is whatever an offline
// dependency analysis of Commits yields.
func PartialHistory(rng *rand.Rand, replicas, groups, maxGroup int) History {
	var h History
	next := make([]uint64, replicas)
	owed := make([][]bool, replicas) // replicas the next op on r must cover

	for g := 0; g < groups; g++ {
		size := 1 + rng.Intn(maxGroup)
		dots := make([]ir.Dot, size)
		covers := make([][]bool, size)
		for i := range dots {
			r := rng.Intn(replicas)
			next[r]++
			dots[i] = ir.NewDot(ir.ReplicaID(r), next[r])

			cover := make([]bool, replicas)
			cover[r] = true
			for q, ok := range owed[r] {
				cover[q] = cover[q] || ok
			}
			owed[r] = nil
			for q := range cover {
				if rng.Intn(3) == 0 {
					cover[q] = true
				}
			}
			covers[i] = cover
		}

		for i, d := range dots {
			conf := ir.NewMaxClock()
			for r, ok := range covers[i] {
				if !ok || next[r] == 0 {
					continue
				}
				conf.Set(ir.ReplicaID(r), ir.NewMaxInt(next[r]))
				if owed[r] == nil {
					owed[r] = make([]bool, replicas)
				}
				owed[r][d.Replica] = true
			}
			h.Commits = append(h.Commits, Commit(d.Replica, d.Seq, "", conf))
		}
	}
	return h
}

// NonConflictingHistory generates perReplica operations per replica whose
// conflict clocks cover only their own replica's prefix. Every operation is
// its own batch. Batches lists them replica by replica, which is one valid
// order; only per-replica order is fixed.
func NonConflictingHistory(replicas, perReplica int, tag string) History {
	var h History
	for r := 0; r < replicas; r++ {
		for s := 1; s <= perReplica; s++ {
			d := ir.NewDot(ir.ReplicaID(r), uint64(s))
			h.Commits = append(h.Commits, Commit(d.Replica, d.Seq, tag, Conf(uint64(r), uint64(s))))
			h.Batches = append(h.Batches, []ir.Dot{d})
		}
	}
	return h
}

// Shuffled returns a permutation of commits; the input is not modified.
func Shuffled(rng *rand.Rand, commits []ir.Commit) []ir.Commit {
	out := make([]ir.Commit, len(commits))
	copy(out, commits)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
