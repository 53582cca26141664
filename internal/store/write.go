package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/causeway/internal/ir"
)

// ErrBatchConflict is returned when a different batch already occupies the
// (run_id, seq) being written.
var ErrBatchConflict = errors.New("batch conflicts with stored batch")

// Deliver appends a batch to the log. Implements engine.Sink.
//
// Idempotent: writing a batch whose (run_id, seq) and digest are already
// stored is a no-op. A different digest under the same key returns
// ErrBatchConflict. The batch and its messages are written in one
// transaction.
func (s *Store) Deliver(ctx context.Context, b ir.Batch) error {
	if len(b.Dots) != len(b.Messages) {
		return fmt.Errorf("deliver batch %d: %d dots but %d messages", b.Seq, len(b.Dots), len(b.Messages))
	}
	color, err := b.Color.MarshalText()
	if err != nil {
		return fmt.Errorf("deliver batch %d: %w", b.Seq, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deliver batch %d: begin: %w", b.Seq, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO batches
		(run_id, seq, color, size, digest, engine_version, record_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		b.RunID,
		b.Seq,
		string(color),
		b.Size(),
		b.Digest,
		ir.EngineVersion,
		ir.RecordVersion,
	)
	if err != nil {
		return fmt.Errorf("deliver batch %d: %w", b.Seq, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deliver batch %d: rows affected: %w", b.Seq, err)
	}
	if inserted == 0 {
		return s.checkExisting(ctx, tx, b)
	}

	for i, d := range b.Dots {
		m := b.Messages[i]
		payload := m.Payload
		if payload == nil {
			payload = []byte{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_messages
			(run_id, seq, position, replica, dot_seq, tag, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			b.RunID,
			b.Seq,
			i,
			int64(d.Replica),
			int64(d.Seq),
			m.Tag,
			payload,
		)
		if err != nil {
			return fmt.Errorf("deliver batch %d: message %s: %w", b.Seq, d, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deliver batch %d: commit: %w", b.Seq, err)
	}
	return nil
}

// checkExisting compares a re-delivered batch with the stored one.
func (s *Store) checkExisting(ctx context.Context, tx *sql.Tx, b ir.Batch) error {
	var digest string
	err := tx.QueryRowContext(ctx, `
		SELECT digest FROM batches WHERE run_id = ? AND seq = ?
	`, b.RunID, b.Seq).Scan(&digest)
	if err != nil {
		return fmt.Errorf("deliver batch %d: read existing: %w", b.Seq, err)
	}
	if digest != b.Digest {
		return fmt.Errorf("deliver batch %d of run %s: %w", b.Seq, b.RunID, ErrBatchConflict)
	}
	return nil
}
