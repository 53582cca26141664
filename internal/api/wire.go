package api

import (
	"fmt"

	"github.com/roach88/causeway/internal/ir"
)

// InitRequest carries the committed snapshot, keyed by replica.
type InitRequest struct {
	Committed map[ir.ReplicaID]ReplicaSeqs `json:"committed"`
}

// ReplicaSeqs is one replica's committed sequence numbers: every seq in
// [1, watermark] except the holes.
type ReplicaSeqs struct {
	Watermark uint64   `json:"watermark"`
	Holes     []uint64 `json:"holes,omitempty"`
}

// CommitRequest is one commit notification. Payload is base64 in JSON.
type CommitRequest struct {
	Replica ir.ReplicaID            `json:"replica"`
	Seq     uint64                  `json:"seq"`
	Tag     string                  `json:"tag,omitempty"`
	Payload []byte                  `json:"payload,omitempty"`
	Conf    map[ir.ReplicaID]uint64 `json:"conf"`
}

// CommitsRequest is the body of POST /commits.
type CommitsRequest struct {
	Commits []CommitRequest `json:"commits"`
}

// CommitsResponse reports how many commits reached the inbox.
type CommitsResponse struct {
	Accepted int `json:"accepted"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Snapshot validates the request and builds the exception clock.
func (req InitRequest) Snapshot() (*ir.ExceptionClock, error) {
	c := ir.NewExceptionClock()
	for replica, s := range req.Committed {
		for _, h := range s.Holes {
			if h < 1 || h >= s.Watermark {
				return nil, fmt.Errorf("replica %d: hole %d outside [1, %d)", replica, h, s.Watermark)
			}
		}
		c.Set(replica, ir.NewExceptionSet(s.Watermark, s.Holes...))
	}
	return c, nil
}

// Commit validates the request and builds the commit record.
func (req CommitRequest) Commit() (ir.Commit, error) {
	d := ir.NewDot(req.Replica, req.Seq)
	if req.Seq == 0 {
		return ir.Commit{}, fmt.Errorf("commit %s: seq must be at least 1", d)
	}
	if req.Conf[req.Replica] < req.Seq {
		return ir.Commit{}, fmt.Errorf("commit %s: conf must cover the commit's own dot", d)
	}

	conf := ir.NewMaxClock()
	for replica, w := range req.Conf {
		if w > 0 {
			conf.Set(replica, ir.NewMaxInt(w))
		}
	}
	return ir.Commit{
		Dot:     d,
		Message: ir.Message{Payload: req.Payload, Tag: req.Tag},
		Conf:    conf,
	}, nil
}
