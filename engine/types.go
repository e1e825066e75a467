/*
Package engine provides the attendance/leave reconciliation core.

PURPOSE:
  This package contains the domain types and rules that keep an attendance
  ledger consistent with leave approvals: the leave request state machine,
  the one-record-per-person-per-day attendance ledger, and the derived
  grade aggregator. Everything else (HTTP surface, mail transport, the
  scheduled batch runner) depends on this package, never the reverse.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: participant identity with role and eligibility flags
  - AttendanceRecord: one immutable ledger entry per (person, day)
  - LeaveRequest: pending → approved/rejected lifecycle
  - GradeSummary: derived, cached attendance grade

DESIGN PRINCIPLES:
  1. Immutability: attendance records are created, never edited in place
  2. Store-level invariants: uniqueness and status transitions are enforced
     by the store (unique index, compare-and-swap), not only in app logic
  3. Precision: grade percentages use decimal.Decimal, not float64
  4. Single calendar: all day boundaries come from one configured timezone

SEE ALSO:
  - ledger.go: MarkPresent and attendance queries
  - leave.go: leave request state machine
  - grade.go: grade aggregation
  - store.go: persistence interfaces
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// USERS
// =============================================================================

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is a participant supplied by the external identity provider.
// The engine trusts these fields and performs no credential checks.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      Role
	Active    bool // email verified / account enabled
	Approved  bool // cleared by an administrator
	CreatedAt time.Time
}

// Participates reports whether the user takes part in attendance and leave.
// Both flags must be set.
func (u User) Participates() bool {
	return u.Active && u.Approved
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLeave   AttendanceStatus = "leave"
)

type Remark string

const (
	RemarkNone   Remark = ""
	RemarkOnTime Remark = "on-time"
	RemarkLate   Remark = "late"
)

// AttendanceRecord is one ledger entry. At most one record may exist per
// (PersonID, Date); the store enforces this with a unique index so that
// racing writers (self-service mark, absence sweep, leave approval) cannot
// corrupt state. Records are immutable once created.
type AttendanceRecord struct {
	PersonID string
	Date     Day
	Status   AttendanceStatus
	Remark   Remark
	MarkedAt time.Time
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

type LeaveReason string

const (
	ReasonMedical  LeaveReason = "medical"
	ReasonPersonal LeaveReason = "personal"
	ReasonAcademic LeaveReason = "academic"
	ReasonOther    LeaveReason = "other"
)

// ValidReason reports whether r is one of the accepted leave reasons.
func ValidReason(r LeaveReason) bool {
	switch r {
	case ReasonMedical, ReasonPersonal, ReasonAcademic, ReasonOther:
		return true
	}
	return false
}

// LeaveRequest covers the inclusive [StartDate, EndDate] range.
// Lifecycle: created pending; transitions to approved or rejected exactly
// once. Terminal states accept no further transitions.
type LeaveRequest struct {
	ID        string
	PersonID  string
	StartDate Day
	EndDate   Day
	Reason    LeaveReason
	Status    LeaveStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	// Review audit trail. ReviewedBy is "system" for scheduler rejections.
	ReviewedBy string
	ReviewedAt *time.Time
}

// Terminal reports whether the request can no longer transition.
func (l LeaveRequest) Terminal() bool {
	return l.Status != LeavePending
}

// Covers reports whether day d falls inside the inclusive leave range.
func (l LeaveRequest) Covers(d Day) bool {
	return !d.Before(l.StartDate) && !d.After(l.EndDate)
}

// Overlaps is the boundary-inclusive intersection test:
// existing.start <= new.end AND existing.end >= new.start.
func (l LeaveRequest) Overlaps(start, end Day) bool {
	return !l.StartDate.After(end) && !l.EndDate.Before(start)
}

// Days returns every calendar day in the inclusive range, in order.
func (l LeaveRequest) Days() []Day {
	var days []Day
	for d := l.StartDate; !d.After(l.EndDate); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// ReviewDecision is an administrator's verdict on a pending request.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// =============================================================================
// GRADES
// =============================================================================

// GradeSummary is the derived attendance grade. It is a cache, recomputed
// from AttendanceRecord counts on every read, never a source of truth.
type GradeSummary struct {
	PersonID     string
	TotalDays    int
	TotalPresent int
	TotalAbsent  int
	TotalLeave   int
	Percentage   decimal.Decimal
	Letter       string
	UpdatedAt    time.Time
}

// AttendanceCounts are per-status record counts for one person.
type AttendanceCounts struct {
	Total   int
	Present int
	Absent  int
	Leave   int
}
