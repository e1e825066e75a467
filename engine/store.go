/*
store.go - Persistence interfaces for the attendance engine

PURPOSE:
  Defines what the engine needs from the record store. Implementations:
  - store/sqlite: production store, raw SQL
  - engine/store:  in-memory store for tests and dev

INVARIANTS THE STORE MUST ENFORCE:
  1. InsertAttendance fails with ErrAlreadyMarked when a record already
     exists for (PersonID, Date) - backed by a unique index, not just
     application logic, because three writers race for the same key.
  2. TransitionLeave is a compare-and-swap: it commits only if the row is
     still pending at write time, and reports whether it won.

SEE ALSO:
  - store/sqlite/sqlite.go: SQL implementation
  - engine/store/memory.go: in-memory implementation
*/
package engine

import (
	"context"
	"time"
)

// AttendanceStore persists the attendance ledger.
type AttendanceStore interface {
	// InsertAttendance creates one ledger record. Returns ErrAlreadyMarked
	// (via AlreadyMarkedError) if a record exists for (PersonID, Date).
	InsertAttendance(ctx context.Context, rec AttendanceRecord) error

	// ListAttendance returns records for a person, oldest first. Any of the
	// filters may be zero-valued to mean "no constraint". An empty result
	// is a valid outcome, not an error.
	ListAttendance(ctx context.Context, personID string, from, to *Day, status AttendanceStatus) ([]AttendanceRecord, error)

	// ListAttendanceByDate returns every record for one calendar day.
	ListAttendanceByDate(ctx context.Context, d Day) ([]AttendanceRecord, error)

	// CountAttendance returns per-status counts for one person.
	CountAttendance(ctx context.Context, personID string) (AttendanceCounts, error)
}

// LeaveStore persists leave requests.
type LeaveStore interface {
	CreateLeave(ctx context.Context, l LeaveRequest) error

	// GetLeave returns nil, nil when the id is unknown.
	GetLeave(ctx context.Context, id string) (*LeaveRequest, error)

	// ListLeaves returns a person's requests filtered by status and reason
	// (either may be empty), newest first.
	ListLeaves(ctx context.Context, personID string, status LeaveStatus, reason LeaveReason) ([]LeaveRequest, error)

	// ListLeavesByStatus returns all requests in one status, any person.
	ListLeavesByStatus(ctx context.Context, status LeaveStatus) ([]LeaveRequest, error)

	// FindOverlapping returns non-rejected requests for the person whose
	// inclusive ranges intersect [start, end].
	FindOverlapping(ctx context.Context, personID string, start, end Day) ([]LeaveRequest, error)

	// LeaveCovering returns a non-rejected request covering day d, or nil.
	LeaveCovering(ctx context.Context, personID string, d Day) (*LeaveRequest, error)

	// TransitionLeave moves a request out of pending with compare-and-swap
	// semantics: the update applies only if the row is still pending, and
	// the first return value reports whether this caller won.
	TransitionLeave(ctx context.Context, id string, to LeaveStatus, reviewedBy string, at time.Time) (bool, error)

	// UpdateLeaveReason rewrites the reason of a pending request.
	UpdateLeaveReason(ctx context.Context, id string, reason LeaveReason, at time.Time) error
}

// UserStore supplies the participant roster.
type UserStore interface {
	SaveUser(ctx context.Context, u User) error

	// GetUser returns nil, nil when the id is unknown.
	GetUser(ctx context.Context, id string) (*User, error)

	// ListMembers returns active, approved users with role member - the
	// eligible set for the absence sweep.
	ListMembers(ctx context.Context) ([]User, error)

	// ListAdmins returns active administrators (notification recipients).
	ListAdmins(ctx context.Context) ([]User, error)
}

// GradeStore persists the derived grade cache.
type GradeStore interface {
	UpsertGrade(ctx context.Context, g GradeSummary) error

	// GetGrade returns nil, nil when no summary has been computed yet.
	GetGrade(ctx context.Context, personID string) (*GradeSummary, error)
}

// Store is the full record store.
type Store interface {
	AttendanceStore
	LeaveStore
	UserStore
	GradeStore
}

// Notifier dispatches notifications to the out-of-scope mail collaborator.
// Failures are reported to the caller as a plain error; they never roll
// back a ledger commit already made.
type Notifier interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}
