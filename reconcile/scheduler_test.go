package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/reconcile"
)

func TestScheduler_BuildsFromConfig(t *testing.T) {
	// GIVEN: Jobs and schedule times from configuration
	// WHEN: Building and cycling the scheduler
	// THEN: All three cron specs register and Start/Stop completes cleanly

	jobs, _, _, _ := newTestJobs(t)
	cfg := engine.Config{
		Cutoff:            engine.TimeOfDay{Hour: 7},
		SweepSchedule:     engine.TimeOfDay{Hour: 8},
		RejectionSchedule: engine.TimeOfDay{Hour: 23, Minute: 55},
		ReminderSchedule:  engine.TimeOfDay{Hour: 12},
		Location:          time.UTC,
	}

	sched, err := reconcile.NewScheduler(jobs, cfg)
	require.NoError(t, err)
	assert.Same(t, jobs, sched.Jobs())

	sched.Start()
	sched.Stop()
}
