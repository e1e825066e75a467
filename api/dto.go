/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface. These types decouple the engine's
  domain model from the external contract: days travel as "YYYY-MM-DD"
  strings, percentages as decimal strings.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"github.com/warp/attendance-engine/engine"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitLeaveRequest is the body for submitting a leave request.
type SubmitLeaveRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// AmendLeaveRequest is the body for amending a pending request's reason.
type AmendLeaveRequest struct {
	Reason string `json:"reason"`
}

// SaveUserRequest mirrors what the external identity provider supplies.
type SaveUserRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
	Approved bool   `json:"approved"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AttendanceDTO represents one ledger record.
type AttendanceDTO struct {
	PersonID string `json:"person_id"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Remark   string `json:"remark,omitempty"`
	MarkedAt string `json:"marked_at"`
}

// LeaveDTO represents one leave request.
type LeaveDTO struct {
	ID         string `json:"id"`
	PersonID   string `json:"person_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// GradeDTO represents a grade summary.
type GradeDTO struct {
	PersonID     string `json:"person_id"`
	TotalDays    int    `json:"total_days"`
	TotalPresent int    `json:"total_present"`
	TotalAbsent  int    `json:"total_absent"`
	TotalLeave   int    `json:"total_leave"`
	Percentage   string `json:"percentage"`
	Letter       string `json:"letter"`
}

// JobResultDTO reports the outcome of a manually triggered job.
type JobResultDTO struct {
	Job      string `json:"job"`
	Affected int    `json:"affected"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toAttendanceDTO(r engine.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		PersonID: r.PersonID,
		Date:     r.Date.String(),
		Status:   string(r.Status),
		Remark:   string(r.Remark),
		MarkedAt: r.MarkedAt.UTC().Format(timeLayout),
	}
}

func toLeaveDTO(l engine.LeaveRequest) LeaveDTO {
	return LeaveDTO{
		ID:         l.ID,
		PersonID:   l.PersonID,
		StartDate:  l.StartDate.String(),
		EndDate:    l.EndDate.String(),
		Reason:     string(l.Reason),
		Status:     string(l.Status),
		ReviewedBy: l.ReviewedBy,
		CreatedAt:  l.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:  l.UpdatedAt.UTC().Format(timeLayout),
	}
}

func toGradeDTO(g engine.GradeSummary) GradeDTO {
	return GradeDTO{
		PersonID:     g.PersonID,
		TotalDays:    g.TotalDays,
		TotalPresent: g.TotalPresent,
		TotalAbsent:  g.TotalAbsent,
		TotalLeave:   g.TotalLeave,
		Percentage:   g.Percentage.StringFixed(2),
		Letter:       g.Letter,
	}
}
