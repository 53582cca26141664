package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/causeway/internal/ir"
)

// Scenario defines a delivery-ordering test scenario: a committed snapshot,
// a commit stream in arrival order, and assertions on what was delivered.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is stamped on every batch. If empty, defaults to
	// "test-run-default" for deterministic golden file comparison.
	RunID string `yaml:"run_id,omitempty"`

	// Partitioned routes commits tagged with NonConflictingTags to the
	// non-conflicting queue. Otherwise every commit is conflicting.
	Partitioned bool `yaml:"partitioned,omitempty"`

	// NonConflictingTags defaults to ["read"].
	NonConflictingTags []string `yaml:"non_conflicting_tags,omitempty"`

	// Committed is the snapshot delivery starts from. Empty means nothing
	// was committed before the stream.
	Committed []CommittedEntry `yaml:"committed,omitempty"`

	// Commits are added in order, one queue Add per entry.
	Commits []CommitStep `yaml:"commits"`

	// Assertions validate the final trace and queue state.
	// Supported types: batches, delivered_order, pending, merges, error
	Assertions []Assertion `yaml:"assertions"`
}

// CommittedEntry is one replica's part of the committed snapshot.
type CommittedEntry struct {
	Replica   ir.ReplicaID `yaml:"replica"`
	Watermark uint64       `yaml:"watermark"`
	Holes     []uint64     `yaml:"holes,omitempty"`
}

// CommitStep is one commit notification.
type CommitStep struct {
	Dot ir.Dot `yaml:"dot"`

	// Conf maps replica to the highest conflicting seq. It must cover Dot.
	Conf map[ir.ReplicaID]uint64 `yaml:"conf"`

	Tag     string `yaml:"tag,omitempty"`
	Payload string `yaml:"payload,omitempty"`

	// Expect lists the batches this add must release, in order.
	// nil skips the check; an empty list asserts nothing is released.
	Expect *[][]ir.Dot `yaml:"expect,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "batches": the delivered grouping, ignoring batch order
	// - "delivered_order": the delivered batches, in order
	// - "pending": units (Count) and optionally exact dots still queued
	// - "merges": total merges across both queues
	// - "error": the run stopped with an invariant error of Code
	Type string `yaml:"type"`

	// Batches lists expected batches (batches, delivered_order).
	Batches [][]ir.Dot `yaml:"batches,omitempty"`

	// Count is the expected number (pending, merges).
	Count int `yaml:"count,omitempty"`

	// Dots lists the exact pending dots (pending). nil skips the check.
	Dots []ir.Dot `yaml:"dots,omitempty"`

	// Code is the expected invariant error code (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertBatches        = "batches"
	AssertDeliveredOrder = "delivered_order"
	AssertPending        = "pending"
	AssertMerges         = "merges"
	AssertError          = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Commits) == 0 {
		return fmt.Errorf("commits list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := ValidateStream(s.Committed, s.Commits); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBatches, AssertDeliveredOrder:
		if a.Batches == nil {
			return fmt.Errorf("assertions[%d]: %s requires batches (use [] for none)", index, a.Type)
		}
	case AssertPending, AssertMerges:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: error requires code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// ValidateStream checks a committed snapshot and commit list: each replica
// listed once, holes below their watermark, seqs from 1 and conflict
// clocks that cover their own dot.
func ValidateStream(committed []CommittedEntry, commits []CommitStep) error {
	seen := make(map[ir.ReplicaID]bool)
	for i, c := range committed {
		if seen[c.Replica] {
			return fmt.Errorf("committed[%d]: replica %d listed twice", i, c.Replica)
		}
		seen[c.Replica] = true
		for _, h := range c.Holes {
			if h < 1 || h >= c.Watermark {
				return fmt.Errorf("committed[%d]: hole %d outside [1, %d)", i, h, c.Watermark)
			}
		}
	}

	for i, c := range commits {
		if c.Dot.Seq == 0 {
			return fmt.Errorf("commits[%d]: seq must be at least 1", i)
		}
		if c.Conf[c.Dot.Replica] < c.Dot.Seq {
			return fmt.Errorf("commits[%d]: conf must cover own dot %s", i, c.Dot)
		}
	}
	return nil
}

// Snapshot builds the committed exception clock.
func Snapshot(committed []CommittedEntry) *ir.ExceptionClock {
	c := ir.NewExceptionClock()
	for _, e := range committed {
		c.Set(e.Replica, ir.NewExceptionSet(e.Watermark, e.Holes...))
	}
	return c
}

// classifier returns the classifier the scenario selects.
func (s *Scenario) classifier() ir.Classifier {
	if !s.Partitioned {
		return ir.AllConflicting
	}
	tags := s.NonConflictingTags
	if len(tags) == 0 {
		tags = []string{"read"}
	}
	return ir.TagClassifier(tags...)
}

// Commit converts the step into a commit record.
func (c CommitStep) Commit() ir.Commit {
	conf := ir.NewMaxClock()
	for r, w := range c.Conf {
		if w > 0 {
			conf.Set(r, ir.NewMaxInt(w))
		}
	}
	payload := c.Payload
	if payload == "" {
		payload = fmt.Sprintf("op-%d-%d", c.Dot.Replica, c.Dot.Seq)
	}
	return ir.Commit{
		Dot:     c.Dot,
		Message: ir.Message{Payload: []byte(payload), Tag: c.Tag},
		Conf:    conf,
	}
}
