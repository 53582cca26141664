package queue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/testutil"
)

func TestFormBatches_Empty(t *testing.T) {
	out, err := FormBatches(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFormBatches_MatchesQueueOnGroupedHistories(t *testing.T) {
	for seed := int64(1); seed <= 100; seed++ {
		rng := rand.New(rand.NewSource(seed))
		h := testutil.GroupedHistory(rng, 3, 6, 3)

		var units []*DeliveryUnit
		for _, c := range testutil.Shuffled(rng, h.Commits) {
			units = append(units, NewUnitFromCommit(c))
		}

		out, err := FormBatches(units)
		require.NoError(t, err)
		assert.Equal(t, h.Batches, dotsOf(out), "seed %d", seed)

		for _, u := range units {
			assert.Equal(t, 1, u.Size(), "inputs are not modified")
		}
	}
}

// Replaying FormBatches output into an empty queue delivers every unit on
// arrival, so the order is a valid delivery order.
func TestFormBatches_OrderIsDeliverableOnPartialHistories(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		h := testutil.PartialHistory(rng, 4, 8, 3)

		var units []*DeliveryUnit
		for _, c := range testutil.Shuffled(rng, h.Commits) {
			units = append(units, NewUnitFromCommit(c))
		}
		batches, err := FormBatches(units)
		require.NoError(t, err, "seed %d", seed)

		q := NewDependencyQueue(nil)
		for _, b := range batches {
			out, err := q.Add(b.Clone())
			require.NoError(t, err, "seed %d", seed)
			require.Equal(t, [][]ir.Dot{b.Dots()}, dotsOf(out), "seed %d", seed)
		}
		assert.Equal(t, h.Dots(), q.Stats().DeliveredDots, "seed %d", seed)
	}
}

func TestFormBatches_TieBreaksBySmallestDot(t *testing.T) {
	h := testutil.NonConflictingHistory(2, 3, "")
	rng := rand.New(rand.NewSource(3))

	var units []*DeliveryUnit
	for _, c := range testutil.Shuffled(rng, h.Commits) {
		units = append(units, NewUnitFromCommit(c))
	}

	out, err := FormBatches(units)
	require.NoError(t, err)
	assert.Equal(t, h.Batches, dotsOf(out))
}

func TestFormBatches_DuplicateDot(t *testing.T) {
	units := []*DeliveryUnit{
		unit(0, 1, testutil.Conf(0, 1, 1, 1)),
		unit(1, 1, testutil.Conf(0, 1, 1, 1)),
		unit(0, 1, testutil.Conf(0, 1, 1, 1)),
	}
	_, err := FormBatches(units)
	assert.True(t, IsInvariantError(err))
}

func TestFormBatches_CycleAmongIndependents(t *testing.T) {
	units := []*DeliveryUnit{
		unit(5, 1, testutil.Conf(5, 1)),
		unit(1, 1, testutil.Conf(0, 1, 1, 1)),
		unit(0, 1, testutil.Conf(0, 1, 1, 1)),
	}
	out, err := FormBatches(units)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Dot{
		{ir.NewDot(0, 1), ir.NewDot(1, 1)},
		{ir.NewDot(5, 1)},
	}, dotsOf(out))
}

func TestCycles(t *testing.T) {
	units := []*DeliveryUnit{
		unit(5, 1, testutil.Conf(5, 1)),
		unit(1, 1, testutil.Conf(0, 1, 1, 1)),
		unit(2, 1, testutil.Conf(0, 1, 2, 1)),
		unit(0, 1, testutil.Conf(0, 1, 1, 1)),
	}
	assert.Equal(t, [][]ir.Dot{{ir.NewDot(0, 1), ir.NewDot(1, 1)}}, Cycles(units))
	assert.Empty(t, Cycles(units[:1]))
	assert.Empty(t, Cycles(nil))
}
