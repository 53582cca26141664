package engine

import (
	"errors"

	"github.com/roach88/causeway/internal/queue"
)

var (
	// ErrClosed is returned when submitting to a stopped runner.
	ErrClosed = errors.New("runner closed")

	// ErrAlreadyInitialized is returned by a second Init on one runner.
	// The committed snapshot is fixed for the lifetime of a run.
	ErrAlreadyInitialized = errors.New("runner already initialized")

	// ErrNilSnapshot is returned by Init without a snapshot.
	ErrNilSnapshot = errors.New("nil snapshot")
)

// IsFatal returns true if err stops a run: the commit stream violated an
// ordering invariant and no further batch can be trusted.
// Uses errors.As to handle wrapped errors.
func IsFatal(err error) bool {
	return queue.IsInvariantError(err)
}
