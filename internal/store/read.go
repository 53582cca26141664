package store

import (
	"context"
	"fmt"

	"github.com/roach88/causeway/internal/ir"
)

// ReadBatches returns every batch of a run, ordered by seq ASC, each with
// its messages in dot order.
//
// Returns an empty slice (not nil) if the run has no batches.
func (s *Store) ReadBatches(ctx context.Context, runID string) ([]ir.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, color, digest
		FROM batches
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []ir.Batch{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			b     = ir.Batch{RunID: runID}
			color string
		)
		if err := rows.Scan(&b.Seq, &color, &b.Digest); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if b.Color, err = ir.ParseColor(color); err != nil {
			return nil, fmt.Errorf("batch %d: %w", b.Seq, err)
		}
		index[b.Seq] = len(batches)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	if err := s.readMessages(ctx, runID, batches, index); err != nil {
		return nil, err
	}
	return batches, nil
}

// readMessages fills in the dots and messages of batches.
func (s *Store) readMessages(ctx context.Context, runID string, batches []ir.Batch, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, replica, dot_seq, tag, payload
		FROM batch_messages
		WHERE run_id = ?
		ORDER BY seq ASC, position ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query batch messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq, replica, dotSeq int64
			m                    ir.Message
		)
		if err := rows.Scan(&seq, &replica, &dotSeq, &m.Tag, &m.Payload); err != nil {
			return fmt.Errorf("scan batch message: %w", err)
		}
		i, ok := index[seq]
		if !ok {
			return fmt.Errorf("batch message for unknown batch %d", seq)
		}
		batches[i].Dots = append(batches[i].Dots, ir.NewDot(ir.ReplicaID(replica), uint64(dotSeq)))
		batches[i].Messages = append(batches[i].Messages, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate batch messages: %w", err)
	}
	return nil
}

// RunSummary describes one run in the log.
type RunSummary struct {
	RunID   string `json:"run_id"`
	Batches int    `json:"batches"`
	Dots    int    `json:"dots"`
	LastSeq int64  `json:"last_seq"`
}

// ListRuns returns a summary of every run, ordered by run ID.
// UUIDv7 run IDs sort by start time.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), COALESCE(SUM(size), 0), MAX(seq)
		FROM batches
		GROUP BY run_id
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Batches, &r.Dots, &r.LastSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest batch seq of a run, 0 if it has none.
// Used to resume batch numbering.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM batches WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq for run %s: %w", runID, err)
	}
	return seq, nil
}
