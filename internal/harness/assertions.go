package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/causeway/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s released=%v pending=%d",
			event.Step, event.Dot, event.Color, event.Released, event.Pending)
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%s", event.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// assertBatches checks the delivered grouping. Batch order is ignored; the
// dot order inside each batch is not.
func assertBatches(result *Result, assertion Assertion) error {
	want := sortedBatches(assertion.Batches)
	got := sortedBatches(result.BatchDots())
	if equalBatches(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBatches,
		Expected: formatBatches(want),
		Actual:   formatBatches(got),
		Trace:    result.Trace,
	}
}

// assertDeliveredOrder checks the delivered batches in delivery order.
func assertDeliveredOrder(result *Result, assertion Assertion) error {
	got := result.BatchDots()
	if equalBatches(assertion.Batches, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDeliveredOrder,
		Expected: formatBatches(assertion.Batches),
		Actual:   formatBatches(got),
		Trace:    result.Trace,
	}
}

// assertPending checks the number of queued units and, if given, the exact
// queued dots.
func assertPending(result *Result, assertion Assertion) error {
	if result.PendingUnits != assertion.Count {
		return &AssertionError{
			Type:     AssertPending,
			Expected: fmt.Sprintf("%d pending units", assertion.Count),
			Actual:   fmt.Sprintf("%d pending units %v", result.PendingUnits, result.PendingDots),
			Trace:    result.Trace,
		}
	}
	if assertion.Dots == nil {
		return nil
	}
	want := slices.Clone(assertion.Dots)
	ir.SortDots(want)
	if !slices.Equal(want, result.PendingDots) {
		return &AssertionError{
			Type:     AssertPending,
			Expected: fmt.Sprintf("pending dots %v", want),
			Actual:   fmt.Sprintf("pending dots %v", result.PendingDots),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertMerges checks the total merge count across both queues.
func assertMerges(result *Result, assertion Assertion) error {
	if got := result.Merges(); got != assertion.Count {
		return &AssertionError{
			Type:     AssertMerges,
			Expected: fmt.Sprintf("%d merges", assertion.Count),
			Actual:   fmt.Sprintf("%d merges", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertError checks that the run stopped on an invariant error with the
// given code.
func assertError(result *Result, assertion Assertion) error {
	actual := "no invariant error"
	if result.Fatal != nil {
		if string(result.Fatal.Code) == assertion.Code {
			return nil
		}
		actual = result.Fatal.Error()
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("invariant error %s", assertion.Code),
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
//
// A run stopped by an invariant error fails unless an error assertion
// expects it.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	expectsError := false

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertBatches:
			err = assertBatches(result, assertion)
		case AssertDeliveredOrder:
			err = assertDeliveredOrder(result, assertion)
		case AssertPending:
			err = assertPending(result, assertion)
		case AssertMerges:
			err = assertMerges(result, assertion)
		case AssertError:
			expectsError = true
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if result.Fatal != nil && !expectsError {
		errs = append(errs, fmt.Sprintf("unexpected invariant error: %v", result.Fatal))
	}

	return errs
}

func equalBatches(a, b [][]ir.Dot) bool {
	return slices.EqualFunc(a, b, func(x, y []ir.Dot) bool {
		return slices.Equal(x, y)
	})
}

// sortedBatches orders batches by their first dot. Delivered batches are
// disjoint, so the first dots are distinct.
func sortedBatches(batches [][]ir.Dot) [][]ir.Dot {
	out := slices.Clone(batches)
	slices.SortFunc(out, func(a, b []ir.Dot) int {
		switch {
		case len(a) == 0 && len(b) == 0:
			return 0
		case len(a) == 0:
			return -1
		case len(b) == 0:
			return 1
		}
		return a[0].Compare(b[0])
	})
	return out
}

func formatBatches(batches [][]ir.Dot) string {
	parts := make([]string, len(batches))
	for i, b := range batches {
		dots := make([]string, len(b))
		for j, d := range b {
			dots[j] = d.String()
		}
		parts[i] = "{" + strings.Join(dots, " ") + "}"
	}
	return "[" + strings.Join(parts, " ") + "]"
}
