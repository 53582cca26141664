package queue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/testutil"
)

func TestColorQueue_NonConflictingStreamInCommitOrder(t *testing.T) {
	q := NewColorQueue(nil)
	h := testutil.NonConflictingHistory(2, 5, "read")

	var delivered []*DeliveryUnit
	for _, c := range h.Commits {
		out, err := q.Add(NewUnitFromCommit(c), ir.ColorNonConflicting)
		require.NoError(t, err)
		require.Len(t, out, 1, "every op is delivered on arrival")
		delivered = append(delivered, out...)
	}

	assert.Equal(t, h.Batches, dotsOf(delivered))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Stats(ir.ColorConflicting).Merges)
	assert.Equal(t, 0, q.Stats(ir.ColorConflicting).Added)
	assert.Equal(t, 10, q.Stats(ir.ColorNonConflicting).Delivered)
}

func TestColorQueue_NonConflictingDeliveryReleasesConflicting(t *testing.T) {
	q := NewColorQueue(nil)

	// Conflicting (1,1) waits on the non-conflicting (0,1)
	out, err := q.Add(unit(1, 1, testutil.Conf(0, 1, 1, 1)), ir.ColorConflicting)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, q.Len())

	out, err = q.Add(unit(0, 1, testutil.Conf(0, 1)), ir.ColorNonConflicting)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Dot{{ir.NewDot(0, 1)}, {ir.NewDot(1, 1)}}, dotsOf(out))
	assert.Equal(t, 0, q.Len())

	delivered := q.Delivered()
	assert.True(t, delivered.Contains(ir.NewDot(0, 1)))
	assert.True(t, delivered.Contains(ir.NewDot(1, 1)))
}

func TestColorQueue_ConflictingDeliveryDoesNotRetryNonConflicting(t *testing.T) {
	q := NewColorQueue(nil)

	out, err := q.Add(unit(1, 1, testutil.Conf(0, 1, 1, 1)), ir.ColorNonConflicting)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = q.Add(unit(0, 1, testutil.Conf(0, 1)), ir.ColorConflicting)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Dot{{ir.NewDot(0, 1)}}, dotsOf(out))
	assert.Equal(t, 1, q.Queue(ir.ColorNonConflicting).Len(), "stays pending until the next non-conflicting add")

	out, err = q.Add(unit(2, 1, testutil.Conf(2, 1)), ir.ColorNonConflicting)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]ir.Dot{{ir.NewDot(1, 1)}, {ir.NewDot(2, 1)}}, dotsOf(out))
	assert.Equal(t, 0, q.Len())
}

func TestColorQueue_DuplicateAcrossSubQueues(t *testing.T) {
	q := NewColorQueue(nil)
	_, err := q.Add(unit(0, 1, testutil.Conf(0, 1, 1, 1)), ir.ColorConflicting)
	require.NoError(t, err)

	_, err = q.Add(unit(0, 1, testutil.Conf(0, 1)), ir.ColorNonConflicting)
	assert.True(t, IsInvariantError(err))
	assert.Equal(t, 1, q.PendingDots())
}

func TestColorQueue_UnknownColor(t *testing.T) {
	q := NewColorQueue(nil)
	_, err := q.Add(unit(0, 1, testutil.Conf(0, 1)), ir.Color(7))
	require.Error(t, err)
	assert.False(t, IsInvariantError(err))
}

func TestColorQueue_MixedPermutations(t *testing.T) {
	// Replica 0 writes conflicting groups; replica 9 streams reads.
	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		grouped := testutil.GroupedHistory(rng, 3, 5, 2)
		reads := testutil.NonConflictingHistory(1, 5, "read")
		for i := range reads.Commits {
			reads.Commits[i].Dot.Replica = 9
			reads.Commits[i].Conf = testutil.Conf(9, reads.Commits[i].Dot.Seq)
		}

		classify := ir.TagClassifier("read")
		all := append(append([]ir.Commit(nil), grouped.Commits...), reads.Commits...)

		q := NewColorQueue(nil)
		var conflicting [][]ir.Dot
		delivered := 0
		for _, c := range testutil.Shuffled(rng, all) {
			out, err := q.Add(NewUnitFromCommit(c), classify(c.Message))
			require.NoError(t, err)
			for _, u := range out {
				delivered += u.Size()
				if u.Min().Replica != 9 {
					conflicting = append(conflicting, u.Dots())
				}
			}
		}

		assert.Equal(t, grouped.Batches, conflicting, "seed %d", seed)
		assert.Equal(t, len(all), delivered, "seed %d", seed)
		assert.Equal(t, 0, q.Len(), "seed %d", seed)
	}
}
