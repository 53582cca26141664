package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causeway/internal/ir"
	"github.com/roach88/causeway/internal/testutil"
)

func unit(replica ir.ReplicaID, seq uint64, conf *ir.MaxClock) *DeliveryUnit {
	return NewUnitFromCommit(testutil.Commit(replica, seq, "", conf))
}

func TestUnit_Before(t *testing.T) {
	a := unit(0, 1, testutil.Conf(0, 1))
	b := unit(1, 1, testutil.Conf(0, 1, 1, 1))

	assert.True(t, a.Before(b), "b's deps cover a")
	assert.False(t, b.Before(a), "a's deps do not cover b")
}

func TestUnit_MergeUnionsEverything(t *testing.T) {
	a := unit(1, 1, testutil.Conf(0, 1, 1, 1))
	b := unit(0, 1, testutil.Conf(0, 1, 1, 1, 2, 4))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 2, a.Size())
	assert.Equal(t, []ir.Dot{ir.NewDot(0, 1), ir.NewDot(1, 1)}, a.Dots())
	assert.Equal(t, ir.NewDot(0, 1), a.Min())

	msgs := a.SortMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "op-0-1", string(msgs[0].Payload))
	assert.Equal(t, "op-1-1", string(msgs[1].Payload))

	set, ok := a.Deps().Get(2)
	require.True(t, ok)
	assert.Equal(t, uint64(4), set.Watermark())
}

func TestUnit_MergeDuplicateLeavesUnitUntouched(t *testing.T) {
	a := unit(0, 1, testutil.Conf(0, 1))
	b := unit(0, 1, testutil.Conf(0, 1, 3, 3))

	err := a.Merge(b)
	require.Error(t, err)
	assert.True(t, IsInvariantError(err))

	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrCodeDuplicateDot, ie.Code)
	assert.Equal(t, []ir.Dot{ir.NewDot(0, 1)}, ie.Dots)
	assert.Contains(t, err.Error(), "DUPLICATE_DOT")
	assert.Contains(t, err.Error(), "(0,1)")

	assert.Equal(t, 1, a.Size())
	_, ok := a.Deps().Get(3)
	assert.False(t, ok)
}

func TestUnit_NewUnitCopiesConf(t *testing.T) {
	conf := testutil.Conf(0, 1)
	u := NewUnit(ir.NewDot(0, 1), ir.Message{}, conf)
	conf.Set(5, ir.NewMaxInt(9))

	_, ok := u.Deps().Get(5)
	assert.False(t, ok)

	nilConf := NewUnit(ir.NewDot(0, 1), ir.Message{}, nil)
	assert.Equal(t, 0, nilConf.Deps().Len())
}

func TestUnit_CanDeliverRequiresExactMatch(t *testing.T) {
	tests := []struct {
		name      string
		delivered *ir.ExceptionClock
		unit      *DeliveryUnit
		want      bool
	}{
		{
			name:      "exact",
			delivered: testutil.Committed(0, 1),
			unit:      unit(1, 1, testutil.Conf(0, 1, 1, 1)),
			want:      true,
		},
		{
			name:      "missing dependency",
			delivered: ir.NewExceptionClock(),
			unit:      unit(1, 1, testutil.Conf(0, 1, 1, 1)),
			want:      false,
		},
		{
			name:      "superset is not enough",
			delivered: testutil.Committed(0, 2),
			unit:      unit(1, 1, testutil.Conf(0, 1, 1, 1)),
			want:      false,
		},
		{
			name:      "zero entries constrain nothing",
			delivered: testutil.Committed(0, 7),
			unit:      unit(1, 1, testutil.Conf(1, 1)),
			want:      true,
		},
		{
			name:      "hole in delivered",
			delivered: func() *ir.ExceptionClock { c := ir.NewExceptionClock(); c.AddDot(ir.NewDot(0, 2)); return c }(),
			unit:      unit(1, 1, testutil.Conf(0, 2, 1, 1)),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.delivered.Clone()
			next, ok := tt.unit.CanDeliver(tt.delivered)
			assert.Equal(t, tt.want, ok)
			assert.True(t, before.Equal(tt.delivered), "CanDeliver must not modify its input")
			if ok {
				for _, d := range tt.unit.Dots() {
					assert.True(t, next.Contains(d))
				}
			} else {
				assert.Nil(t, next)
			}
		})
	}
}

func TestUnit_Flatten(t *testing.T) {
	a := unit(1, 1, testutil.Conf(0, 1, 1, 1))
	require.NoError(t, a.Merge(unit(0, 1, testutil.Conf(0, 1, 1, 1))))

	batch, err := a.Flatten("run-1", 3, ir.ColorConflicting)
	require.NoError(t, err)
	assert.Equal(t, "run-1", batch.RunID)
	assert.Equal(t, int64(3), batch.Seq)
	assert.Equal(t, []ir.Dot{ir.NewDot(0, 1), ir.NewDot(1, 1)}, batch.Dots)
	assert.Equal(t, 2, batch.Size())
	assert.Equal(t, ir.MustBatchDigest(batch.Dots, batch.Messages), batch.Digest)
}

func TestUnit_CloneIsIndependent(t *testing.T) {
	a := unit(0, 1, testutil.Conf(0, 1, 1, 1))
	c := a.Clone()
	require.NoError(t, c.Merge(unit(1, 1, testutil.Conf(1, 1))))

	assert.Equal(t, 1, a.Size())
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, "{(0,1)}", a.String())
}
