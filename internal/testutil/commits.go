package testutil

import (
	"fmt"

	"github.com/roach88/causeway/internal/ir"
)

// Conf builds a max clock from replica/watermark pairs:
//
//	Conf(0, 1, 1, 2) // [0:max(1) 1:max(2)]
//
// Panics on an odd number of arguments.
func Conf(pairs ...uint64) *ir.MaxClock {
	if len(pairs)%2 != 0 {
		panic("testutil.Conf: odd number of arguments")
	}
	c := ir.NewMaxClock()
	for i := 0; i < len(pairs); i += 2 {
		if pairs[i+1] == 0 {
			continue
		}
		c.Set(ir.ReplicaID(pairs[i]), ir.NewMaxInt(pairs[i+1]))
	}
	return c
}

// Commit builds a commit with a payload derived from the dot, so every
// generated message is distinct.
func Commit(replica ir.ReplicaID, seq uint64, tag string, conf *ir.MaxClock) ir.Commit {
	d := ir.NewDot(replica, seq)
	return ir.Commit{
		Dot: d,
		Message: ir.Message{
			Payload: []byte(fmt.Sprintf("op-%d-%d", replica, seq)),
			Tag:     tag,
		},
		Conf: conf,
	}
}

// Committed builds an exception clock snapshot from replica/watermark pairs.
func Committed(pairs ...uint64) *ir.ExceptionClock {
	if len(pairs)%2 != 0 {
		panic("testutil.Committed: odd number of arguments")
	}
	c := ir.NewExceptionClock()
	for i := 0; i < len(pairs); i += 2 {
		c.Set(ir.ReplicaID(pairs[i]), ir.NewExceptionSet(pairs[i+1]))
	}
	return c
}
