/*
leave.go - Leave request state machine

PURPOSE:
  Owns the pending → approved/rejected lifecycle and the overlap rule.
  States are terminal once left: Review and the scheduler's auto-rejection
  both race on the same row, and whichever transition commits first wins.
  The store's compare-and-swap (TransitionLeave) decides the winner; the
  loser gets ErrAlreadyReviewed and applies no side effects.

LEDGER EFFECT OF APPROVAL:
  Approving a request writes one AttendanceRecord(status=leave) per day in
  the inclusive range. A day that already has a record (present or absent)
  is skipped, never overwritten - the per-day uniqueness index makes the
  skip race-safe.

NOTIFICATIONS:
  Submit notifies active administrators; Review notifies the requester.
  Dispatch runs after the commit and a failure is logged, never propagated:
  a mail outage must not roll back or fail a transition already made.

SEE ALSO:
  - reconcile/jobs.go: scheduled auto-rejection, the other transition path
  - errors.go: ErrInvalidRange, ErrOverlap, ErrAlreadyReviewed
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeaveService coordinates the leave lifecycle.
type LeaveService struct {
	leaves     LeaveStore
	attendance AttendanceStore
	users      UserStore
	notifier   Notifier
	cfg        Config
	clock      Clock
}

func NewLeaveService(leaves LeaveStore, attendance AttendanceStore, users UserStore, notifier Notifier, cfg Config, clock Clock) *LeaveService {
	return &LeaveService{
		leaves:     leaves,
		attendance: attendance,
		users:      users,
		notifier:   notifier,
		cfg:        cfg,
		clock:      clock,
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit creates a pending request for the inclusive [start, end] range.
// Both dates must be today or later and must not intersect any existing
// non-rejected request for the person (boundary-inclusive).
func (s *LeaveService) Submit(ctx context.Context, personID string, start, end Day, reason LeaveReason) (*LeaveRequest, error) {
	if !ValidReason(reason) {
		return nil, fmt.Errorf("reason %q: %w", reason, ErrInvalidReason)
	}

	today := s.cfg.Today(s.clock)
	if start.After(end) {
		return nil, fmt.Errorf("start %s after end %s: %w", start, end, ErrInvalidRange)
	}
	if start.Before(today) || end.Before(today) {
		return nil, fmt.Errorf("range %s..%s is before today %s: %w", start, end, today, ErrInvalidRange)
	}

	existing, err := s.leaves.FindOverlapping(ctx, personID, start, end)
	if err != nil {
		return nil, fmt.Errorf("overlap check: %w", err)
	}
	if len(existing) > 0 {
		return nil, &OverlapError{
			PersonID:   personID,
			Start:      start,
			End:        end,
			ExistingID: existing[0].ID,
		}
	}

	now := s.clock.Now()
	leave := LeaveRequest{
		ID:        uuid.NewString(),
		PersonID:  personID,
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
		Status:    LeavePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.leaves.CreateLeave(ctx, leave); err != nil {
		return nil, fmt.Errorf("create leave: %w", err)
	}

	s.notifyAdmins(ctx, leave)
	return &leave, nil
}

func (s *LeaveService) notifyAdmins(ctx context.Context, leave LeaveRequest) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		log.Printf("[Leave] list admins for notification: %v", err)
		return
	}
	if len(admins) == 0 {
		return
	}

	username := leave.PersonID
	if u, err := s.users.GetUser(ctx, leave.PersonID); err == nil && u != nil {
		username = u.Username
	}

	var recipients []string
	for _, a := range admins {
		recipients = append(recipients, a.Email)
	}

	body := fmt.Sprintf(
		"<div><h1>Dear Admin!</h1><h2>A leave request is pending to approve</h2>"+
			"<h3>Username: %s</h3><p>Start Date: %s</p><p>End Date: %s</p><p>Reason: %s</p>"+
			"<p>Visit your admin panel to approve or reject this leave</p></div>",
		username, leave.StartDate, leave.EndDate, leave.Reason)

	if err := s.notifier.Send(ctx, recipients, "Leave Request Notification", body); err != nil {
		log.Printf("[Leave] admin notification failed for %s: %v", leave.ID, err)
	}
}

// =============================================================================
// REVIEW
// =============================================================================

// Review transitions a pending request per the decision. The transition is
// conditioned on the row still being pending at write time; losing that
// race returns ErrAlreadyReviewed with no side effects applied.
func (s *LeaveService) Review(ctx context.Context, leaveID string, decision ReviewDecision, reviewerID string) (*LeaveRequest, error) {
	leave, err := s.leaves.GetLeave(ctx, leaveID)
	if err != nil {
		return nil, fmt.Errorf("load leave: %w", err)
	}
	if leave == nil {
		return nil, fmt.Errorf("leave %s: %w", leaveID, ErrNotFound)
	}

	var to LeaveStatus
	switch decision {
	case DecisionApprove:
		to = LeaveApproved
	case DecisionReject:
		to = LeaveRejected
	default:
		return nil, fmt.Errorf("decision %q: %w", decision, ErrInvalidQuery)
	}

	now := s.clock.Now()
	won, err := s.leaves.TransitionLeave(ctx, leaveID, to, reviewerID, now)
	if err != nil {
		return nil, fmt.Errorf("transition leave: %w", err)
	}
	if !won {
		return nil, fmt.Errorf("leave %s: %w", leaveID, ErrAlreadyReviewed)
	}

	leave.Status = to
	leave.ReviewedBy = reviewerID
	leave.ReviewedAt = &now
	leave.UpdatedAt = now

	if to == LeaveApproved {
		s.writeLeaveDays(ctx, *leave, now)
	}
	s.notifyRequester(ctx, *leave)
	return leave, nil
}

// writeLeaveDays upserts one leave record per day of the approved range.
// Days already holding a record are skipped: approval never overwrites a
// present or absent entry.
func (s *LeaveService) writeLeaveDays(ctx context.Context, leave LeaveRequest, at time.Time) {
	for _, d := range leave.Days() {
		rec := AttendanceRecord{
			PersonID: leave.PersonID,
			Date:     d,
			Status:   StatusLeave,
			MarkedAt: at,
		}
		err := s.attendance.InsertAttendance(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyMarked):
			// Benign: the day already has an entry.
		default:
			log.Printf("[Leave] ledger write for %s on %s: %v", leave.PersonID, d, err)
		}
	}
}

func (s *LeaveService) notifyRequester(ctx context.Context, leave LeaveRequest) {
	u, err := s.users.GetUser(ctx, leave.PersonID)
	if err != nil || u == nil {
		log.Printf("[Leave] lookup requester %s for notification: %v", leave.PersonID, err)
		return
	}

	verdict := strings.ToUpper(string(leave.Status)[:1]) + string(leave.Status)[1:]
	body := fmt.Sprintf(
		"<div><h2>Dear %s!</h2><h3>Your leave request %s..%s has been %s</h3></div>",
		u.Username, leave.StartDate, leave.EndDate, leave.Status)

	if err := s.notifier.Send(ctx, []string{u.Email}, "Leave "+verdict, body); err != nil {
		log.Printf("[Leave] requester notification failed for %s: %v", leave.ID, err)
	}
}

// =============================================================================
// AMEND
// =============================================================================

// Amend rewrites the reason of the caller's own request. Allowed only while
// the request is pending and its window has not yet begun.
func (s *LeaveService) Amend(ctx context.Context, leaveID, personID string, reason LeaveReason) (*LeaveRequest, error) {
	if !ValidReason(reason) {
		return nil, fmt.Errorf("reason %q: %w", reason, ErrInvalidReason)
	}

	leave, err := s.leaves.GetLeave(ctx, leaveID)
	if err != nil {
		return nil, fmt.Errorf("load leave: %w", err)
	}
	if leave == nil || leave.PersonID != personID {
		return nil, fmt.Errorf("leave %s: %w", leaveID, ErrNotFound)
	}
	if leave.Terminal() {
		return nil, fmt.Errorf("leave %s is %s: %w", leaveID, leave.Status, ErrTerminal)
	}
	if !s.cfg.Today(s.clock).Before(leave.StartDate) {
		return nil, fmt.Errorf("leave %s started %s: %w", leaveID, leave.StartDate, ErrLeaveStarted)
	}

	now := s.clock.Now()
	if err := s.leaves.UpdateLeaveReason(ctx, leaveID, reason, now); err != nil {
		return nil, fmt.Errorf("update reason: %w", err)
	}
	leave.Reason = reason
	leave.UpdatedAt = now
	return leave, nil
}

// =============================================================================
// QUERY
// =============================================================================

// Query returns the person's requests matching q, newest first. An empty
// result is a valid outcome.
func (s *LeaveService) Query(ctx context.Context, personID string, q LeaveQuery) ([]LeaveRequest, error) {
	if q.ID != "" {
		leave, err := s.leaves.GetLeave(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if leave == nil || leave.PersonID != personID {
			return nil, fmt.Errorf("leave %s: %w", q.ID, ErrNotFound)
		}
		return []LeaveRequest{*leave}, nil
	}

	if !q.Filter.Valid() {
		return nil, fmt.Errorf("filter %q: %w", q.Filter, ErrInvalidQuery)
	}
	if q.Reason != "" && !ValidReason(q.Reason) {
		return nil, fmt.Errorf("reason %q: %w", q.Reason, ErrInvalidReason)
	}

	leaves, err := s.leaves.ListLeaves(ctx, personID, q.Status, q.Reason)
	if err != nil {
		return nil, err
	}
	if q.Filter == LeaveFilterNone {
		return leaves, nil
	}

	today := s.cfg.Today(s.clock)
	var out []LeaveRequest
	for _, l := range leaves {
		if q.Filter.Matches(l, today) {
			out = append(out, l)
		}
	}
	return out, nil
}
