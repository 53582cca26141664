package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/causeway/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Result       *Result
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, []any and map[string]any.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Result.Trace))
	for i, event := range s.Result.Trace {
		released := make([]any, len(event.Released))
		for j, seq := range event.Released {
			released[j] = seq
		}
		eventMap := map[string]any{
			"step":     event.Step,
			"dot":      dotValue(event.Dot),
			"color":    event.Color.String(),
			"released": released,
			"pending":  event.Pending,
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		trace[i] = eventMap
	}

	batches := make([]any, len(s.Result.Batches))
	for i, b := range s.Result.Batches {
		batches[i] = map[string]any{
			"seq":   b.Seq,
			"color": b.Color.String(),
			"dots":  dotsValue(b.Dots),
		}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"batches":       batches,
		"pending_dots":  dotsValue(s.Result.PendingDots),
	}
	if s.RunID != "" {
		result["run_id"] = s.RunID
	}
	return result
}

// CanonicalTrace renders a result as the canonical JSON stored in golden
// files.
func CanonicalTrace(scenarioName, runID string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        runID,
		Result:       result,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

func dotValue(d ir.Dot) map[string]any {
	return map[string]any{"replica": d.Replica, "seq": d.Seq}
}

func dotsValue(dots []ir.Dot) []any {
	out := make([]any, len(dots))
	for i, d := range dots {
		out[i] = dotValue(d)
	}
	return out
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass, or an error if the
// scenario could not be executed. Test failure (via goldie) occurs if the
// trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.RunID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName, runID string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(scenarioName, runID, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
