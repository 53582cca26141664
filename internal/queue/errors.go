package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/causeway/internal/ir"
)

// InvariantError reports corrupted input that the queue refuses to order.
//
// Invariant errors are fatal for the delivery stream that hit them: the
// queue state is left as it was before the failing call, but the caller
// must not keep feeding it, since the upstream commit stream is no longer
// trustworthy.
type InvariantError struct {
	// Code identifies the error category.
	Code InvariantCode

	// Message is a human-readable description.
	Message string

	// Dots lists the offending dots in (replica, seq) order.
	Dots []ir.Dot
}

// InvariantCode categorizes invariant violations.
type InvariantCode string

const (
	// ErrCodeDuplicateDot indicates the same dot was seen twice: two units
	// being merged share a dot, or a commit repeats a pending or delivered dot.
	ErrCodeDuplicateDot InvariantCode = "DUPLICATE_DOT"
)

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if len(e.Dots) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	parts := make([]string, len(e.Dots))
	for i, d := range e.Dots {
		parts[i] = d.String()
	}
	return fmt.Sprintf("%s: %s (dots=%s)", e.Code, e.Message, strings.Join(parts, ","))
}

// IsInvariantError returns true if err is, or wraps, an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

func newDuplicateDotError(message string, dots []ir.Dot) *InvariantError {
	return &InvariantError{
		Code:    ErrCodeDuplicateDot,
		Message: message,
		Dots:    dots,
	}
}
