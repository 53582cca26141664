package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causeway/internal/ir"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/snapshot_start.yaml")
	require.NoError(t, err)

	assert.Equal(t, "snapshot_start", s.Name)
	assert.Equal(t, "run-snapshot", s.RunID)
	require.Len(t, s.Committed, 2)
	assert.Equal(t, CommittedEntry{Replica: 2, Watermark: 3, Holes: []uint64{2}}, s.Committed[1])

	require.Len(t, s.Commits, 3)
	assert.Equal(t, ir.NewDot(1, 1), s.Commits[2].Dot)
	assert.Equal(t, map[ir.ReplicaID]uint64{0: 3, 1: 1}, s.Commits[2].Conf)
	require.NotNil(t, s.Commits[2].Expect)
	assert.Equal(t, [][]ir.Dot{{ir.NewDot(1, 1)}}, *s.Commits[2].Expect)
}

func TestLoadScenario_EmptyExpectIsNotNil(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cycle_merge.yaml")
	require.NoError(t, err)

	require.NotNil(t, s.Commits[0].Expect)
	assert.Empty(t, *s.Commits[0].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\ncommits: [{dot: {replica: 0, seq: 1}, conf: {0: 1}}]\nassertions: [{type: pending}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\ncommits: [{dot: {replica: 0, seq: 1}, conf: {0: 1}}]\nassertions: [{type: pending}]",
			wantErr: "description is required",
		},
		{
			name:    "no commits",
			yaml:    "name: n\ndescription: d\ncommits: []\nassertions: [{type: pending}]",
			wantErr: "commits list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\ncommits: [{dot: {replica: 0, seq: 1}, conf: {0: 1}}]",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\ncommit: []\nassertions: [{type: pending}]",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "zero seq",
			yaml:    "name: n\ndescription: d\ncommits: [{dot: {replica: 0, seq: 0}, conf: {0: 1}}]\nassertions: [{type: pending}]",
			wantErr: "seq must be at least 1",
		},
		{
			name:    "conf misses own dot",
			yaml:    "name: n\ndescription: d\ncommits: [{dot: {replica: 0, seq: 2}, conf: {0: 1}}]\nassertions: [{type: pending}]",
			wantErr: "conf must cover own dot",
		},
		{
			name:    "hole above watermark",
			yaml:    "name: n\ndescription: d\ncommitted: [{replica: 0, watermark: 2, holes: [2]}]\ncommits: [{dot: {replica: 0, seq: 3}, conf: {0: 3}}]\nassertions: [{type: pending}]",
			wantErr: "hole 2 outside",
		},
		{
			name:    "replica committed twice",
			yaml:    "name: n\ndescription: d\ncommitted: [{replica: 0, watermark: 1}, {replica: 0, watermark: 2}]\ncommits: [{dot: {replica: 0, seq: 3}, conf: {0: 3}}]\nassertions: [{type: pending}]",
			wantErr: "listed twice",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\ncommits: [{dot: {replica: 0, seq: 1}, conf: {0: 1}}]\nassertions: [{type: trace_order}]",
			wantErr: "unknown assertion type",
		},
		{
			name:    "batches without batches",
			yaml:    "name: n\ndescription: d\ncommits: [{dot: {replica: 0, seq: 1}, conf: {0: 1}}]\nassertions: [{type: batches}]",
			wantErr: "requires batches",
		},
		{
			name:    "error without code",
			yaml:    "name: n\ndescription: d\ncommits: [{dot: {replica: 0, seq: 1}, conf: {0: 1}}]\nassertions: [{type: error}]",
			wantErr: "requires code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCommitStep_Commit(t *testing.T) {
	c := CommitStep{
		Dot:  ir.NewDot(2, 3),
		Conf: map[ir.ReplicaID]uint64{2: 3, 0: 0, 1: 4},
		Tag:  "read",
	}.Commit()

	assert.Equal(t, ir.NewDot(2, 3), c.Dot)
	assert.Equal(t, []byte("op-2-3"), c.Message.Payload, "payload defaults to one derived from the dot")
	assert.Equal(t, []ir.ReplicaID{1, 2}, c.Conf.Replicas())

	c = CommitStep{Dot: ir.NewDot(0, 1), Conf: map[ir.ReplicaID]uint64{0: 1}, Payload: "set x=1"}.Commit()
	assert.Equal(t, []byte("set x=1"), c.Message.Payload)
}

func TestScenario_Classifier(t *testing.T) {
	read := ir.Message{Tag: "read"}

	s := &Scenario{}
	assert.Equal(t, ir.ColorConflicting, s.classifier()(read))

	s.Partitioned = true
	assert.Equal(t, ir.ColorNonConflicting, s.classifier()(read))

	s.NonConflictingTags = []string{"get"}
	assert.Equal(t, ir.ColorConflicting, s.classifier()(read))
	assert.Equal(t, ir.ColorNonConflicting, s.classifier()(ir.Message{Tag: "get"}))
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "sub/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}, files)

	files, err = FindScenarios(dir, "[ab]")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarios(dir, "[")
	assert.Error(t, err)
}
