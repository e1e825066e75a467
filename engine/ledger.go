/*
ledger.go - Attendance ledger with per-day uniqueness

PURPOSE:
  The only self-service write path into the attendance ledger. Enforces:
  1. At most one record per (person, day) - delegated to the store's
     unique index so concurrent writers cannot double-mark.
  2. The daily cutoff: marking at or after Config.Cutoff is rejected.
  3. Leave blocking: a pending or approved leave covering today rejects
     the mark (the leave-approval path owns that day).

REMARKS:
  When Config.OnTimeThreshold is set, a successful mark before the
  threshold is recorded "on-time", otherwise "late". Without a threshold
  the record carries no remark.

SEE ALSO:
  - query.go: filter normalization for Query
  - reconcile/jobs.go: the absence sweep, the other ledger writer
*/
package engine

import (
	"context"
	"fmt"
	"time"
)

// Ledger coordinates attendance writes and reads.
type Ledger struct {
	store  AttendanceStore
	leaves LeaveStore
	cfg    Config
	clock  Clock
}

func NewLedger(store AttendanceStore, leaves LeaveStore, cfg Config, clock Clock) *Ledger {
	return &Ledger{store: store, leaves: leaves, cfg: cfg, clock: clock}
}

// MarkPresent records the caller as present for the current calendar day.
func (l *Ledger) MarkPresent(ctx context.Context, personID string) (*AttendanceRecord, error) {
	return l.MarkPresentAt(ctx, personID, l.clock.Now())
}

// MarkPresentAt is MarkPresent with an explicit instant. The calendar day,
// the cutoff comparison, and the remark are all derived from asOf in the
// configured timezone.
func (l *Ledger) MarkPresentAt(ctx context.Context, personID string, asOf time.Time) (*AttendanceRecord, error) {
	date := DayOf(asOf, l.cfg.Location)

	cutoff := l.cfg.Cutoff.On(date, l.cfg.Location)
	if !asOf.Before(cutoff) {
		return nil, &WindowClosedError{At: asOf, Cutoff: cutoff}
	}

	covering, err := l.leaves.LeaveCovering(ctx, personID, date)
	if err != nil {
		return nil, fmt.Errorf("check leave coverage: %w", err)
	}
	if covering != nil {
		return nil, fmt.Errorf("leave %s covers %s: %w", covering.ID, date, ErrOnLeave)
	}

	rec := AttendanceRecord{
		PersonID: personID,
		Date:     date,
		Status:   StatusPresent,
		Remark:   l.remarkFor(date, asOf),
		MarkedAt: asOf,
	}
	if err := l.store.InsertAttendance(ctx, rec); err != nil {
		// The unique index is the authority; losing the race is the same
		// outcome as marking twice.
		return nil, err
	}
	return &rec, nil
}

func (l *Ledger) remarkFor(date Day, asOf time.Time) Remark {
	if l.cfg.OnTimeThreshold == nil {
		return RemarkNone
	}
	if asOf.Before(l.cfg.OnTimeThreshold.On(date, l.cfg.Location)) {
		return RemarkOnTime
	}
	return RemarkLate
}

// Query returns a person's attendance records matching q. An empty result
// is a valid "no records" outcome.
func (l *Ledger) Query(ctx context.Context, personID string, q AttendanceQuery) ([]AttendanceRecord, error) {
	from, to, err := q.Window(l.cfg.Today(l.clock))
	if err != nil {
		return nil, err
	}
	return l.store.ListAttendance(ctx, personID, from, to, q.Status)
}
