package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScenarioOutcome is the result of running one scenario file, in arrival
// order and under every requested shuffle.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// Result is the arrival-order run, nil if the scenario failed to load
	// or execute.
	Result *Result `json:"-"`
}

// FindScenarios returns the .yaml and .yml files under dir, in lexical
// order. A non-empty filter is a glob matched against the file name
// without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// RunScenarioFile loads and runs a scenario, then reruns it with commits
// shuffled by seeds seed+1 .. seed+shuffles. Errors from every run are
// collected, prefixed with the seed for shuffled runs.
func RunScenarioFile(path string, shuffles int, seed int64) ScenarioOutcome {
	outcome := ScenarioOutcome{Name: filepath.Base(path), Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return outcome
	}
	outcome.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return outcome
	}
	outcome.Result = result
	outcome.Errors = append(outcome.Errors, result.Errors...)

	for i := int64(1); i <= int64(shuffles); i++ {
		shuffled, err := RunShuffled(scenario, seed+i)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("seed %d: execution failed: %v", seed+i, err))
			continue
		}
		for _, e := range shuffled.Errors {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("seed %d: %s", seed+i, e))
		}
	}

	outcome.Pass = len(outcome.Errors) == 0
	return outcome
}
