package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/causeway/internal/harness"
	"github.com/roach88/causeway/internal/ir"
)

// Stream is a commit stream file: an optional committed snapshot and the
// commits in arrival order. It uses the scenario file's commit format
// without the assertions.
type Stream struct {
	Committed []harness.CommittedEntry `yaml:"committed,omitempty"`
	Commits   []harness.CommitStep     `yaml:"commits"`
}

// LoadStream reads and validates a commit stream file.
func LoadStream(path string) (*Stream, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream file: %w", err)
	}

	var s Stream
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := harness.ValidateStream(s.Committed, s.Commits); err != nil {
		return nil, fmt.Errorf("invalid stream: %w", err)
	}
	return &s, nil
}

// Snapshot returns the stream's committed snapshot, or nil if it has none.
func (s *Stream) Snapshot() *ir.ExceptionClock {
	if len(s.Committed) == 0 {
		return nil
	}
	return harness.Snapshot(s.Committed)
}

// Records converts the commits to commit records, in file order.
func (s *Stream) Records() []ir.Commit {
	out := make([]ir.Commit, len(s.Commits))
	for i, c := range s.Commits {
		out[i] = c.Commit()
	}
	return out
}
