package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cycleStream = `
commits:
  - dot: {replica: 0, seq: 1}
    conf: {0: 1, 1: 1}
  - dot: {replica: 1, seq: 1}
    conf: {0: 1, 1: 1}
`

const chainStream = `
commits:
  - dot: {replica: 0, seq: 1}
    conf: {0: 1}
  - dot: {replica: 1, seq: 1}
    conf: {0: 1, 1: 1}
`

const stalledStream = `
commits:
  - dot: {replica: 0, seq: 2}
    conf: {0: 2}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}

func TestRunMissingFile(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, err := execute(cmd, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidStream(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", `
commits:
  - dot: {replica: 0, seq: 2}
    conf: {0: 1}
`)
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, err := execute(cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "conf must cover own dot")
}

func TestRunCycleText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stream.yaml", cycleStream)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path, "--run-id", "run-text")
	require.NoError(t, err)

	assert.Contains(t, out, "Run run-text")
	assert.Contains(t, out, "#1 conflicting")
	assert.Contains(t, out, "{(0,1) (1,1)}")
	assert.Contains(t, out, "2 commits, 1 batches, 0 units pending")
}

func TestRunStalled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stream.yaml", stalledStream)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "1 units pending")
	assert.Contains(t, err.Error(), "still pending")
}

func TestRunStalledJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stream.yaml", stalledStream)

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_STALLED", resp.Error.Code)
	assert.Equal(t, 1, result.PendingUnits)
	assert.Empty(t, result.Batches)
}

func TestRunWithDatabaseJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stream.yaml", chainStream)
	dbPath := filepath.Join(dir, "causeway.db")

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, path, "--db", dbPath, "--run-id", "run-db")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-db", result.RunID)
	require.Len(t, result.Batches, 2)
	assert.Equal(t, int64(1), result.Batches[0].Seq)
	assert.Equal(t, "(0,1)", result.Batches[0].Dots[0].String())
	assert.Equal(t, int64(2), result.Batches[1].Seq)
	assert.Equal(t, "(1,1)", result.Batches[1].Dots[0].String())
}

func TestRunContinuesBatchNumbering(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "causeway.db")
	first := writeFile(t, dir, "first.yaml", chainStream)
	second := writeFile(t, dir, "second.yaml", `
committed:
  - {replica: 0, watermark: 1}
  - {replica: 1, watermark: 1}
commits:
  - dot: {replica: 0, seq: 2}
    conf: {0: 2}
`)

	_, err := execute(NewRunCommand(&RootOptions{Format: "json"}), first, "--db", dbPath, "--run-id", "run-1")
	require.NoError(t, err)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), second, "--db", dbPath, "--run-id", "run-1")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Batches, 3)
	assert.Equal(t, int64(3), result.Batches[2].Seq)
	assert.Equal(t, "(0,2)", result.Batches[2].Dots[0].String())
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "causeway.db")
	configPath := writeFile(t, dir, "causeway.cue", `
checkpoint: {
	backend:  "sqlite"
	path:     "`+dbPath+`"
	interval: 1
}
`)
	first := writeFile(t, dir, "first.yaml", cycleStream)
	extended := writeFile(t, dir, "extended.yaml", cycleStream+`  - dot: {replica: 0, seq: 2}
    conf: {0: 2}
`)

	_, err := execute(NewRunCommand(&RootOptions{Format: "json", ConfigPath: configPath}),
		first, "--db", dbPath, "--run-id", "run-cp")
	require.NoError(t, err)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json", ConfigPath: configPath}),
		extended, "--db", dbPath, "--run-id", "run-cp")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.True(t, result.Resumed)
	assert.Equal(t, 3, result.Commits)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Batches, 2)
	assert.Equal(t, int64(2), result.Batches[1].Seq)
	assert.Equal(t, "(0,2)", result.Batches[1].Dots[0].String())
}

func TestRunPartitionedFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stream.yaml", `
commits:
  - dot: {replica: 0, seq: 1}
    conf: {0: 1}
    tag: read
  - dot: {replica: 1, seq: 1}
    conf: {1: 1}
    tag: write
`)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), path, "--partitioned")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Batches, 2)
	colors := []string{result.Batches[0].Color.String(), result.Batches[1].Color.String()}
	assert.ElementsMatch(t, []string{"conflicting", "non_conflicting"}, colors)
}

func TestRunBadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "causeway.cue", `inbox_capacity: 0`)
	path := writeFile(t, dir, "stream.yaml", cycleStream)

	_, err := execute(NewRunCommand(&RootOptions{Format: "text", ConfigPath: configPath}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
