package queue

import (
	"github.com/tidwall/btree"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/scc"
)

// FormBatches groups units offline: every set of units that (transitively)
// depend on each other is merged into one unit, and the result is returned
// in dependency order. Among units free to go next, the one with the
// smallest dot comes first, so the output does not depend on input order.
//
// The input units are not modified. Returns an *InvariantError if two input
// units share a dot.
func FormBatches(units []*DeliveryUnit) ([]*DeliveryUnit, error) {
	n := len(units)
	if n == 0 {
		return nil, nil
	}

	adj := dependencyGraph(units)
	comp, count := scc.Components(adj)
	groups := scc.Groups(comp, count)

	merged := make([]*DeliveryUnit, count)
	for id, members := range groups {
		u := units[members[0]].Clone()
		for _, m := range members[1:] {
			if err := u.Merge(units[m].Clone()); err != nil {
				return nil, err
			}
		}
		merged[id] = u
	}

	order := condensationOrder(adj, comp, count, func(a, b int) bool {
		return merged[a].Min().Less(merged[b].Min())
	})
	out := make([]*DeliveryUnit, len(order))
	for i, id := range order {
		out[i] = merged[id]
	}
	return out, nil
}

// Cycles returns the dots of every set of units that depend on each other
// in a cycle, each set sorted. FormBatches delivers each such set as one
// batch.
func Cycles(units []*DeliveryUnit) [][]ir.Dot {
	var out [][]ir.Dot
	for _, members := range scc.Cycles(dependencyGraph(units)) {
		dots := ir.NewDots()
		for _, m := range members {
			dots.Union(units[m].DotSet())
		}
		out = append(out, dots.Sorted())
	}
	return out
}

// dependencyGraph has an edge a -> b when units[b] depends on units[a].
// A unit's dependency on its own dots is not an edge.
func dependencyGraph(units []*DeliveryUnit) [][]int {
	adj := make([][]int, len(units))
	for a := range units {
		for b := range units {
			if a != b && units[a].Before(units[b]) {
				adj[a] = append(adj[a], b)
			}
		}
	}
	return adj
}

// condensationOrder returns the component ids of adj in dependency order
// (Kahn's algorithm). Among components free to go next, less picks first.
func condensationOrder(adj [][]int, comp []int, count int, less func(a, b int) bool) []int {
	// Condensation edges, deduplicated
	succ := make([]map[int]struct{}, count)
	indegree := make([]int, count)
	for a, targets := range adj {
		for _, b := range targets {
			ca, cb := comp[a], comp[b]
			if ca == cb {
				continue
			}
			if succ[ca] == nil {
				succ[ca] = make(map[int]struct{})
			}
			if _, ok := succ[ca][cb]; !ok {
				succ[ca][cb] = struct{}{}
				indegree[cb]++
			}
		}
	}

	ready := btree.NewBTreeGOptions(less, btree.Options{NoLocks: true})
	for id := 0; id < count; id++ {
		if indegree[id] == 0 {
			ready.Set(id)
		}
	}

	out := make([]int, 0, count)
	for ready.Len() > 0 {
		id, _ := ready.PopMin()
		out = append(out, id)
		for next := range succ[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready.Set(next)
			}
		}
	}
	return out
}
