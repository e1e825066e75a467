/*
jobs.go - The three reconciliation batch jobs

PURPOSE:
  Time-triggered batch processes that keep the attendance ledger
  consistent without user action:
  - Absence sweep: marks absent everyone eligible who neither attended
    nor is on leave today.
  - Leave auto-rejection: rejects every still-pending request past the
    grace cutoff, with one batched notification.
  - Pending-approval reminder: digests pending requests to admins.

IDEMPOTENCE:
  Each job is safe to run twice for the same day. The sweep relies on the
  per-day uniqueness index (a duplicate insert is a benign skip); the
  auto-rejection relies on the compare-and-swap transition (a row already
  rejected is simply not affected); the reminder has no ledger effect.

FAILURE ISOLATION:
  A failure for one person never aborts the batch for others, and a
  notification failure never rolls back ledger mutations already
  committed: at-most-once notification, at-least-once ledger effect.

SEE ALSO:
  - scheduler.go: wall-clock triggering
  - engine/store.go: the store-level invariants these jobs lean on
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/attendance-engine/engine"
)

// Jobs bundles the reconciliation batch processes with their dependencies.
type Jobs struct {
	store    engine.Store
	notifier engine.Notifier
	cfg      engine.Config
	clock    engine.Clock
}

func NewJobs(store engine.Store, notifier engine.Notifier, cfg engine.Config, clock engine.Clock) *Jobs {
	return &Jobs{store: store, notifier: notifier, cfg: cfg, clock: clock}
}

// =============================================================================
// ABSENCE SWEEP
// =============================================================================

// SweepAbsences marks absent every active, approved member who has no
// attendance record today and no pending-or-approved leave covering today.
// Returns how many absent records were created. Re-running for the same
// day is a no-op: duplicate creations are benign skips.
func (j *Jobs) SweepAbsences(ctx context.Context) (int, error) {
	today := j.cfg.Today(j.clock)
	now := j.clock.Now()

	members, err := j.store.ListMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}

	records, err := j.store.ListAttendanceByDate(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list attendance for %s: %w", today, err)
	}
	attended := make(map[string]bool, len(records))
	for _, r := range records {
		attended[r.PersonID] = true
	}

	created := 0
	for _, m := range members {
		if attended[m.ID] {
			continue
		}

		covering, err := j.store.LeaveCovering(ctx, m.ID, today)
		if err != nil {
			log.Printf("[Sweep] leave check for %s: %v", m.ID, err)
			continue
		}
		if covering != nil {
			continue
		}

		err = j.store.InsertAttendance(ctx, engine.AttendanceRecord{
			PersonID: m.ID,
			Date:     today,
			Status:   engine.StatusAbsent,
			MarkedAt: now,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, engine.ErrAlreadyMarked):
			// Lost a race or second run for the day; either way a skip.
		default:
			log.Printf("[Sweep] insert absent for %s on %s: %v", m.ID, today, err)
		}
	}

	log.Printf("[Sweep] %s: %d marked absent of %d members", today, created, len(members))
	return created, nil
}

// =============================================================================
// LEAVE AUTO-REJECTION
// =============================================================================

// RejectStalePending rejects every leave request still pending at the
// grace cutoff and sends one batched notification to the affected people.
// A request that a concurrent Review transitions first is skipped: the
// compare-and-swap decides, and the skip gets no notification either.
func (j *Jobs) RejectStalePending(ctx context.Context) (int, error) {
	pending, err := j.store.ListLeavesByStatus(ctx, engine.LeavePending)
	if err != nil {
		return 0, fmt.Errorf("list pending leaves: %w", err)
	}
	if len(pending) == 0 {
		log.Printf("[AutoReject] no pending leaves")
		return 0, nil
	}

	now := j.clock.Now()
	rejected := 0
	affected := make(map[string]bool)
	for _, l := range pending {
		won, err := j.store.TransitionLeave(ctx, l.ID, engine.LeaveRejected, "system", now)
		if err != nil {
			log.Printf("[AutoReject] transition %s: %v", l.ID, err)
			continue
		}
		if !won {
			continue
		}
		rejected++
		affected[l.PersonID] = true
	}

	log.Printf("[AutoReject] rejected %d of %d pending", rejected, len(pending))
	if rejected > 0 {
		j.notifyRejected(ctx, affected)
	}
	return rejected, nil
}

func (j *Jobs) notifyRejected(ctx context.Context, personIDs map[string]bool) {
	var recipients []string
	for id := range personIDs {
		u, err := j.store.GetUser(ctx, id)
		if err != nil || u == nil {
			log.Printf("[AutoReject] lookup %s for notification: %v", id, err)
			continue
		}
		recipients = append(recipients, u.Email)
	}
	if len(recipients) == 0 {
		return
	}

	body := "<h1>Leave Rejection</h1><div><h2>Dear User!</h2>" +
		"<h3>Your leave request has been rejected automatically due to admins unavailability</h3></div>"
	if err := j.notifier.Send(ctx, recipients, "Automatic Leave Rejection", body); err != nil {
		// Ledger effect is already committed; the notification is not retried.
		log.Printf("[AutoReject] notification failed: %v", err)
	}
}

// =============================================================================
// PENDING-APPROVAL REMINDER
// =============================================================================

// RemindPendingApprovals sends one digest to all active administrators if
// any leave requests are pending. Side-effect only, no ledger mutation.
// Returns the number of pending requests found.
func (j *Jobs) RemindPendingApprovals(ctx context.Context) (int, error) {
	pending, err := j.store.ListLeavesByStatus(ctx, engine.LeavePending)
	if err != nil {
		return 0, fmt.Errorf("list pending leaves: %w", err)
	}
	if len(pending) == 0 {
		log.Printf("[Reminder] no pending leaves")
		return 0, nil
	}

	admins, err := j.store.ListAdmins(ctx)
	if err != nil {
		return len(pending), fmt.Errorf("list admins: %w", err)
	}
	var recipients []string
	for _, a := range admins {
		recipients = append(recipients, a.Email)
	}
	if len(recipients) == 0 {
		return len(pending), nil
	}

	body := fmt.Sprintf(
		"<p>Dear Admin,</p><p>This is a reminder that there are %d pending leaves for approval. "+
			"Please take necessary actions to approve or reject the leaves.</p><p>Thank you.</p>",
		len(pending))
	if err := j.notifier.Send(ctx, recipients, "Pending Leaves Approval Reminder", body); err != nil {
		log.Printf("[Reminder] notification failed: %v", err)
	}
	return len(pending), nil
}
