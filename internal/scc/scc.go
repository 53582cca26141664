// Package scc finds strongly connected components of directed graphs.
//
// Graphs are adjacency lists over dense node ids: adj[v] lists the
// successors of node v, and every id in adj must lie in [0, len(adj)).
// The traversal keeps its own call stack, so graph depth is bounded by
// memory rather than goroutine stack size.
package scc

// Components labels every node with the id of its strongly connected
// component using Tarjan's algorithm, O(V+E).
//
// Ids are assigned in the order components complete, which is a reverse
// topological order of the condensation: for every edge u → v with
// comp[u] != comp[v], comp[u] > comp[v]. Nodes are visited in ascending id
// order and successors in adjacency order, so labels are deterministic.
func Components(adj [][]int) (comp []int, count int) {
	n := len(adj)
	var (
		next    = 1               // 0 marks "not yet visited"
		index   = make([]int, n)  // discovery order, 1-based
		lowlink = make([]int, n)  // smallest index reachable on stack
		onStack = make([]bool, n) // membership in stack
		stack   []int             // nodes of the components being built
		calls   []frame           // explicit DFS call stack
	)
	comp = make([]int, n)

	visit := func(v int) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		calls = append(calls, frame{node: v})
	}

	for root := 0; root < n; root++ {
		if index[root] != 0 {
			continue
		}
		visit(root)

		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			v := top.node

			// Consider the next successor of v
			if top.edge < len(adj[v]) {
				w := adj[v][top.edge]
				top.edge++
				if index[w] == 0 {
					visit(w)
				} else if onStack[w] {
					lowlink[v] = min(lowlink[v], index[w])
				}
				continue
			}

			// All successors done. If v is a root node, pop its component.
			if lowlink[v] == index[v] {
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp[w] = count
					if w == v {
						break
					}
				}
				count++
			}

			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].node
				lowlink[parent] = min(lowlink[parent], lowlink[v])
			}
		}
	}

	return comp, count
}

// frame is one suspended visit: the node and the next edge to follow.
type frame struct {
	node int
	edge int
}

// Groups inverts a component labelling: groups[c] lists the nodes of
// component c in ascending order.
func Groups(comp []int, count int) [][]int {
	groups := make([][]int, count)
	for v, c := range comp {
		groups[c] = append(groups[c], v)
	}
	return groups
}

// Cycles returns the components that contain a cycle: more than one node,
// or a single node with an edge to itself. Components appear in the order
// Components assigned them.
func Cycles(adj [][]int) [][]int {
	comp, count := Components(adj)
	var cycles [][]int
	for _, group := range Groups(comp, count) {
		if len(group) > 1 || hasSelfLoop(adj, group[0]) {
			cycles = append(cycles, group)
		}
	}
	return cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(adj [][]int, v int) bool {
	for _, w := range adj[v] {
		if w == v {
			return true
		}
	}
	return false
}
