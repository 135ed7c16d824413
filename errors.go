package lattice

import (
	"context"
	"errors"

	"crosswarped.com/lattice/internal"
	"crosswarped.com/lattice/pkg/primitives"
)

var (
	// ErrUnsatisfiable means every candidate at the root was exhausted without completing the lattice.
	ErrUnsatisfiable = errors.New("lattice: unsatisfiable")

	// ErrAborted means the step budget ran out before the search reached a decision.
	ErrAborted = errors.New("lattice: step budget exhausted")

	// ErrInvalidParams is returned for a negative radius or step budget.
	ErrInvalidParams = errors.New("lattice: invalid generator parameters")

	// ErrInvalidLattice is returned by Validate when two adjacent cells break a rule.
	ErrInvalidLattice = errors.New("lattice: adjacency rule violated")

	// ErrInvalidRule is returned when the example cannot be turned into rules.
	ErrInvalidRule = internal.ErrInvalidRule

	// ErrNothingToUndo signals a rollback with no pending mark. Seeing it from
	// Build is a bug in the solver, not a property of the input.
	ErrNothingToUndo = primitives.ErrNothingToUndo
)

// Status is the terminal state of a Build call.
type Status int

const (
	StatusSolved Status = iota
	StatusUnsatisfiable
	StatusAborted
	StatusCanceled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusUnsatisfiable:
		return "unsatisfiable"
	case StatusAborted:
		return "aborted"
	case StatusCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// StatusOf classifies the error returned by Build.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSolved
	case errors.Is(err, ErrUnsatisfiable):
		return StatusUnsatisfiable
	case errors.Is(err, ErrAborted):
		return StatusAborted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusFailed
	}
}
