/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All engine error kinds in one place. The taxonomy mirrors what callers
  need to decide: validation (fix the input), conflict (the state already
  disagrees, do not retry the same input), not-found, and store/dispatch
  dependency failures.

USAGE:
  Callers branch with errors.Is, or classify with the helpers:

    if engine.IsConflict(err) { ... 409 ... }

  Stores map their low-level failures (unique index violation, CAS miss)
  onto these sentinels so the engine and its callers never parse SQL errors.

SEE ALSO:
  - ledger.go, leave.go: produce these errors
  - store/sqlite: maps constraint violations onto them
  - api/handlers.go: maps them to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a leave range is malformed: start
	// after end, or either date before the submission day.
	ErrInvalidRange = errors.New("invalid leave range")

	// ErrInvalidReason is returned for a reason outside the accepted set.
	ErrInvalidReason = errors.New("invalid leave reason")

	// ErrInvalidQuery is returned for malformed query filters.
	ErrInvalidQuery = errors.New("invalid query filter")

	// ErrAlreadyMarked is returned when an attendance record already exists
	// for the (person, day) key. Losing a store-level race surfaces as this
	// same error; callers treat it as a benign conflict.
	ErrAlreadyMarked = errors.New("attendance already marked")

	// ErrWindowClosed is returned when marking is attempted at or after the
	// daily cutoff.
	ErrWindowClosed = errors.New("marking window closed")

	// ErrOnLeave is returned when a pending or approved leave covers the day
	// being marked.
	ErrOnLeave = errors.New("person is on leave")

	// ErrOverlap is returned when a new leave intersects an existing
	// non-rejected leave for the same person.
	ErrOverlap = errors.New("overlapping leave request")

	// ErrAlreadyReviewed is returned when a transition loses the
	// compare-and-swap: the request was no longer pending at write time.
	ErrAlreadyReviewed = errors.New("leave already reviewed")

	// ErrLeaveStarted is returned when amending a leave whose window has
	// already begun.
	ErrLeaveStarted = errors.New("leave window has started")

	// ErrTerminal is returned when amending a leave in a terminal state.
	ErrTerminal = errors.New("leave in terminal state")

	// ErrNotFound is returned for unknown ids.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AlreadyMarkedError identifies which ledger key collided.
type AlreadyMarkedError struct {
	PersonID string
	Date     Day
}

func (e *AlreadyMarkedError) Error() string {
	return fmt.Sprintf("attendance already marked for %s on %s", e.PersonID, e.Date)
}

func (e *AlreadyMarkedError) Unwrap() error { return ErrAlreadyMarked }

// OverlapError identifies the existing request that blocks a submission.
type OverlapError struct {
	PersonID   string
	Start, End Day
	ExistingID string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("leave %s..%s for %s overlaps existing request %s",
		e.Start, e.End, e.PersonID, e.ExistingID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// WindowClosedError reports the attempted instant against the cutoff.
type WindowClosedError struct {
	At     time.Time
	Cutoff time.Time
}

func (e *WindowClosedError) Error() string {
	return fmt.Sprintf("marking window closed: %s is at or after cutoff %s",
		e.At.Format(time.RFC3339), e.Cutoff.Format(time.RFC3339))
}

func (e *WindowClosedError) Unwrap() error { return ErrWindowClosed }

// =============================================================================
// TAXONOMY HELPERS
// =============================================================================

// IsValidation reports malformed or out-of-policy input. No mutation occurred.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrInvalidQuery)
}

// IsConflict reports a well-formed request rejected by current state. The
// caller may retry with different input, never the same one.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyMarked) ||
		errors.Is(err, ErrWindowClosed) ||
		errors.Is(err, ErrOnLeave) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrAlreadyReviewed) ||
		errors.Is(err, ErrLeaveStarted) ||
		errors.Is(err, ErrTerminal)
}

// IsNotFound reports an unknown id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
