package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/engine/store"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/reconcile"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

// June 10 2024, 08:00 UTC - the sweep's scheduled hour.
func newTestJobs(t *testing.T) (*reconcile.Jobs, *store.Memory, *notify.Recorder, *fixedClock) {
	t.Helper()
	mem := store.NewMemory()
	rec := &notify.Recorder{}
	clk := &fixedClock{now: time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)}

	cfg := engine.Config{
		Cutoff:            engine.TimeOfDay{Hour: 7},
		SweepSchedule:     engine.TimeOfDay{Hour: 8},
		RejectionSchedule: engine.TimeOfDay{Hour: 23, Minute: 55},
		ReminderSchedule:  engine.TimeOfDay{Hour: 12},
		Location:          time.UTC,
	}
	return reconcile.NewJobs(mem, rec, cfg, clk), mem, rec, clk
}

func saveMember(t *testing.T, mem *store.Memory, id, email string) {
	t.Helper()
	require.NoError(t, mem.SaveUser(context.Background(), engine.User{
		ID: id, Username: id, Email: email,
		Role: engine.RoleMember, Active: true, Approved: true,
	}))
}

func saveAdmin(t *testing.T, mem *store.Memory, id, email string) {
	t.Helper()
	require.NoError(t, mem.SaveUser(context.Background(), engine.User{
		ID: id, Username: id, Email: email,
		Role: engine.RoleAdmin, Active: true, Approved: true,
	}))
}

func pendingLeave(t *testing.T, mem *store.Memory, id, personID, start, end string) {
	t.Helper()
	now := time.Date(2024, time.June, 9, 10, 0, 0, 0, time.UTC)
	require.NoError(t, mem.CreateLeave(context.Background(), engine.LeaveRequest{
		ID:        id,
		PersonID:  personID,
		StartDate: engine.MustParseDay(start),
		EndDate:   engine.MustParseDay(end),
		Reason:    engine.ReasonPersonal,
		Status:    engine.LeavePending,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

// =============================================================================
// ABSENCE SWEEP
// =============================================================================

func TestSweep_MarksUnaccountedMembersAbsent(t *testing.T) {
	// GIVEN: Three members; one attended, one is on leave, one did nothing
	// WHEN: The sweep runs
	// THEN: Only the unaccounted member is marked absent

	jobs, mem, _, _ := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")
	saveMember(t, mem, "u2", "u2@example.com")
	saveMember(t, mem, "u3", "u3@example.com")

	require.NoError(t, mem.InsertAttendance(ctx, engine.AttendanceRecord{
		PersonID: "u1",
		Date:     engine.MustParseDay("2024-06-10"),
		Status:   engine.StatusPresent,
		MarkedAt: time.Date(2024, time.June, 10, 6, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, mem.CreateLeave(ctx, engine.LeaveRequest{
		ID: "l1", PersonID: "u2",
		StartDate: engine.MustParseDay("2024-06-09"),
		EndDate:   engine.MustParseDay("2024-06-11"),
		Reason:    engine.ReasonMedical,
		Status:    engine.LeaveApproved,
	}))

	created, err := jobs.SweepAbsences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	records, err := mem.ListAttendance(ctx, "u3", nil, nil, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, engine.StatusAbsent, records[0].Status)

	// The attended and on-leave members gained nothing.
	records, err = mem.ListAttendance(ctx, "u2", nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSweep_PendingLeaveAlsoShields(t *testing.T) {
	// GIVEN: A member whose only coverage today is a still-pending leave
	// WHEN: The sweep runs
	// THEN: The member is not marked absent

	jobs, mem, _, _ := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")
	pendingLeave(t, mem, "l1", "u1", "2024-06-10", "2024-06-12")

	created, err := jobs.SweepAbsences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestSweep_SecondRunSameDay_NoOp(t *testing.T) {
	// GIVEN: A sweep already ran today
	// WHEN: It runs again
	// THEN: No extra records and no error

	jobs, mem, _, _ := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")

	created, err := jobs.SweepAbsences(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	created, err = jobs.SweepAbsences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	records, err := mem.ListAttendance(ctx, "u1", nil, nil, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSweep_IgnoresInactiveAndAdmins(t *testing.T) {
	// GIVEN: An unapproved member and an admin, neither attended
	// WHEN: The sweep runs
	// THEN: Neither is marked absent

	jobs, mem, _, _ := newTestJobs(t)
	ctx := context.Background()
	saveAdmin(t, mem, "admin-1", "admin@example.com")
	require.NoError(t, mem.SaveUser(ctx, engine.User{
		ID: "u1", Username: "u1", Email: "u1@example.com",
		Role: engine.RoleMember, Active: true, Approved: false,
	}))

	created, err := jobs.SweepAbsences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

// =============================================================================
// LEAVE AUTO-REJECTION
// =============================================================================

func TestAutoReject_RejectsAllPendingWithOneDigest(t *testing.T) {
	// GIVEN: Two pending requests from different people and one approved one
	// WHEN: The auto-rejection runs
	// THEN: Both pending requests flip to rejected by "system" and exactly
	//       one batched notification goes out

	jobs, mem, rec, clk := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")
	saveMember(t, mem, "u2", "u2@example.com")
	pendingLeave(t, mem, "l1", "u1", "2024-06-11", "2024-06-12")
	pendingLeave(t, mem, "l2", "u2", "2024-06-15", "2024-06-16")

	pendingLeave(t, mem, "l3", "u1", "2024-06-20", "2024-06-21")
	won, err := mem.TransitionLeave(ctx, "l3", engine.LeaveApproved, "admin-1", clk.Now())
	require.NoError(t, err)
	require.True(t, won)

	rejected, err := jobs.RejectStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rejected)

	for _, id := range []string{"l1", "l2"} {
		l, err := mem.GetLeave(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, engine.LeaveRejected, l.Status)
		assert.Equal(t, "system", l.ReviewedBy)
	}
	l3, err := mem.GetLeave(ctx, "l3")
	require.NoError(t, err)
	assert.Equal(t, engine.LeaveApproved, l3.Status)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.ElementsMatch(t, []string{"u1@example.com", "u2@example.com"}, msgs[0].Recipients)
}

func TestAutoReject_NothingPending_NoNotification(t *testing.T) {
	// GIVEN: No pending requests
	// WHEN: The auto-rejection runs
	// THEN: Zero rejections and zero notifications

	jobs, _, rec, _ := newTestJobs(t)

	rejected, err := jobs.RejectStalePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rejected)
	assert.Empty(t, rec.Messages())
}

func TestAutoReject_ThenReview_LosesRace(t *testing.T) {
	// GIVEN: A request the scheduler already auto-rejected
	// WHEN: An admin later approves it through the review path
	// THEN: The review fails with ErrAlreadyReviewed and no ledger
	//       records appear

	jobs, mem, rec, clk := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")
	saveAdmin(t, mem, "admin-1", "admin@example.com")
	pendingLeave(t, mem, "l1", "u1", "2024-06-11", "2024-06-12")

	_, err := jobs.RejectStalePending(ctx)
	require.NoError(t, err)

	cfg := engine.Config{Cutoff: engine.TimeOfDay{Hour: 7}, Location: time.UTC}
	svc := engine.NewLeaveService(mem, mem, mem, rec, cfg, clk)
	_, err = svc.Review(ctx, "l1", engine.DecisionApprove, "admin-1")
	assert.ErrorIs(t, err, engine.ErrAlreadyReviewed)

	records, err := mem.ListAttendance(ctx, "u1", nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAutoReject_NotifierOutage_RejectionsStand(t *testing.T) {
	// GIVEN: The notifier fails every dispatch
	// WHEN: The auto-rejection runs over one pending request
	// THEN: The rejection is committed and the job reports success

	jobs, mem, rec, _ := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")
	pendingLeave(t, mem, "l1", "u1", "2024-06-11", "2024-06-12")
	rec.Err = errors.New("smtp down")

	rejected, err := jobs.RejectStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rejected)

	l, err := mem.GetLeave(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, engine.LeaveRejected, l.Status)
}

// =============================================================================
// PENDING-APPROVAL REMINDER
// =============================================================================

func TestReminder_DigestsToAllAdmins(t *testing.T) {
	// GIVEN: Two pending requests and two active admins
	// WHEN: The reminder runs
	// THEN: One digest reaches both admins and the ledger is untouched

	jobs, mem, rec, _ := newTestJobs(t)
	ctx := context.Background()
	saveMember(t, mem, "u1", "u1@example.com")
	saveAdmin(t, mem, "admin-1", "a1@example.com")
	saveAdmin(t, mem, "admin-2", "a2@example.com")
	pendingLeave(t, mem, "l1", "u1", "2024-06-11", "2024-06-12")
	pendingLeave(t, mem, "l2", "u1", "2024-06-15", "2024-06-16")

	count, err := jobs.RemindPendingApprovals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.ElementsMatch(t, []string{"a1@example.com", "a2@example.com"}, msgs[0].Recipients)

	records, err := mem.ListAttendance(ctx, "u1", nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, records)

	l, err := mem.GetLeave(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, engine.LeavePending, l.Status)
}

func TestReminder_NothingPending_Silent(t *testing.T) {
	// GIVEN: Admins but no pending requests
	// WHEN: The reminder runs
	// THEN: No notification

	jobs, mem, rec, _ := newTestJobs(t)
	saveAdmin(t, mem, "admin-1", "a1@example.com")

	count, err := jobs.RemindPendingApprovals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, rec.Messages())
}
