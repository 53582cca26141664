package checkpoint

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/causeway/internal/ir"
)

// FormatVersion is stored in every encoded checkpoint. Decode rejects
// other versions.
const FormatVersion = 1

type snapshot struct {
	Version  int           `msgpack:"v"`
	Replicas []replicaSeqs `msgpack:"r"`
}

type replicaSeqs struct {
	Replica   ir.ReplicaID `msgpack:"id"`
	Watermark uint64       `msgpack:"w"`
	Holes     []uint64     `msgpack:"h,omitempty"`
}

// Encode serializes an exception clock. Replicas are written in ascending
// order, so equal clocks encode to equal bytes.
func Encode(c *ir.ExceptionClock) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("encode checkpoint: nil clock")
	}
	s := snapshot{Version: FormatVersion}
	for _, r := range c.Replicas() {
		set, _ := c.Get(r)
		s.Replicas = append(s.Replicas, replicaSeqs{
			Replica:   r,
			Watermark: set.Watermark(),
			Holes:     set.Holes(),
		})
	}
	data, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*ir.ExceptionClock, error) {
	var s snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("decode checkpoint: unsupported version %d", s.Version)
	}
	c := ir.NewExceptionClock()
	for _, r := range s.Replicas {
		for _, h := range r.Holes {
			if h == 0 || h >= r.Watermark {
				return nil, fmt.Errorf("decode checkpoint: replica %d: hole %d outside [1, %d)", r.Replica, h, r.Watermark)
			}
		}
		c.Set(r.Replica, ir.NewExceptionSet(r.Watermark, r.Holes...))
	}
	return c, nil
}
