package scc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComponents_Empty tests that an empty graph has no components.
func TestComponents_Empty(t *testing.T) {
	comp, count := Components(nil)
	assert.Empty(t, comp)
	assert.Equal(t, 0, count)
	assert.Empty(t, Cycles(nil))
}

// TestComponents_DAG tests that every node of a DAG is its own component.
func TestComponents_DAG(t *testing.T) {
	// 0 → 1 → 2, 0 → 2
	adj := [][]int{{1, 2}, {2}, {}}

	comp, count := Components(adj)
	require.Equal(t, 3, count)
	assert.Equal(t, []int{2, 1, 0}, comp, "sinks complete first")
	assert.Empty(t, Cycles(adj), "DAG should produce no cycles")
}

// TestComponents_TwoNodeCycle tests detection of A → B → A.
func TestComponents_TwoNodeCycle(t *testing.T) {
	adj := [][]int{{1}, {0}}

	comp, count := Components(adj)
	assert.Equal(t, 1, count)
	assert.Equal(t, comp[0], comp[1])
	assert.Equal(t, [][]int{{0, 1}}, Cycles(adj))
}

// TestCycles_SelfLoop tests that a self-loop counts as a cycle.
func TestCycles_SelfLoop(t *testing.T) {
	adj := [][]int{{0}, {}}

	_, count := Components(adj)
	assert.Equal(t, 2, count)
	assert.Equal(t, [][]int{{0}}, Cycles(adj))
}

// TestComponents_Mixed tests a graph with two cycles joined by a bridge.
func TestComponents_Mixed(t *testing.T) {
	// {0,1,2} cycle → 3 → {4,5} cycle, plus isolated 6
	adj := [][]int{
		{1},
		{2},
		{0, 3},
		{4},
		{5},
		{4},
		{},
	}

	comp, count := Components(adj)
	require.Equal(t, 4, count)

	groups := Groups(comp, count)
	assert.Equal(t, [][]int{{4, 5}, {3}, {0, 1, 2}, {6}}, groups)
	assert.Equal(t, [][]int{{4, 5}, {0, 1, 2}}, Cycles(adj))
}

// TestComponents_ReverseTopological checks comp[u] > comp[v] across edges.
func TestComponents_ReverseTopological(t *testing.T) {
	adj := [][]int{
		{3},
		{0, 4},
		{1},
		{5},
		{2, 5},
		{},
	}

	comp, _ := Components(adj)
	for u, succ := range adj {
		for _, v := range succ {
			if comp[u] != comp[v] {
				assert.Greater(t, comp[u], comp[v], "edge %d → %d", u, v)
			}
		}
	}
	// 1 → 4 → 2 → 1 is a cycle
	assert.Equal(t, comp[1], comp[4])
	assert.Equal(t, comp[1], comp[2])
}

// TestComponents_DeepChain ensures long paths do not rely on recursion.
func TestComponents_DeepChain(t *testing.T) {
	const n = 200000
	adj := make([][]int, n)
	for i := 0; i < n-1; i++ {
		adj[i] = []int{i + 1}
	}
	// Close the loop so the whole chain is one component
	adj[n-1] = []int{0}

	_, count := Components(adj)
	assert.Equal(t, 1, count)
}
