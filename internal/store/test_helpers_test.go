package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/causeway/internal/ir"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBatch builds a batch over dots with derived payloads and a
// correct digest.
func createTestBatch(runID string, seq int64, color ir.Color, dots ...ir.Dot) ir.Batch {
	msgs := make([]ir.Message, len(dots))
	for i, d := range dots {
		msgs[i] = ir.Message{Payload: []byte(fmt.Sprintf("op-%d-%d", d.Replica, d.Seq)), Tag: "kv"}
	}
	return ir.Batch{
		RunID:    runID,
		Seq:      seq,
		Color:    color,
		Dots:     dots,
		Messages: msgs,
		Digest:   ir.MustBatchDigest(dots, msgs),
	}
}
