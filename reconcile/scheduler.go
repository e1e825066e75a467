/*
scheduler.go - Wall-clock triggering for the reconciliation jobs

PURPOSE:
  Owns the daily cron registrations for the three batch jobs. The
  scheduler is an explicit long-lived task held by the server lifecycle:
  constructed with its configuration, started and stopped from main, no
  process-global registrations.

DESIGN:
  - robfig/cron with the configured timezone, so triggers and the jobs'
    notion of "today" agree on calendar-day boundaries.
  - SkipIfStillRunning guards against an in-process overlap if a run
    outlasts its daily cadence. Cross-instance exclusion is out of scope:
    single-instance scheduling is assumed.
  - Job errors are logged; the next trigger runs regardless.

USAGE:
  sched, err := reconcile.NewScheduler(jobs, cfg)
  sched.Start()
  defer sched.Stop()

SEE ALSO:
  - jobs.go: the batch processes
  - engine/config.go: the three schedule times
*/
package reconcile

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/warp/attendance-engine/engine"
)

// Scheduler runs the reconciliation jobs on their daily schedules.
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
}

// NewScheduler registers the three jobs at their configured times.
func NewScheduler(jobs *Jobs, cfg engine.Config) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	entries := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"absence sweep", cfg.SweepSchedule.CronSpec(), jobs.SweepAbsences},
		{"leave auto-rejection", cfg.RejectionSchedule.CronSpec(), jobs.RejectStalePending},
		{"pending-approval reminder", cfg.ReminderSchedule.CronSpec(), jobs.RemindPendingApprovals},
	}
	for _, e := range entries {
		e := e
		if _, err := c.AddFunc(e.spec, func() {
			if _, err := e.run(context.Background()); err != nil {
				log.Printf("[Scheduler] %s: %v", e.name, err)
			}
		}); err != nil {
			return nil, err
		}
	}

	return &Scheduler{cron: c, jobs: jobs}, nil
}

// Start begins the schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[Scheduler] started in %s", s.cron.Location())
}

// Stop halts the schedules and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Printf("[Scheduler] stopped")
}

// Jobs exposes the underlying jobs for manual triggering (admin/tests).
func (s *Scheduler) Jobs() *Jobs {
	return s.jobs
}
