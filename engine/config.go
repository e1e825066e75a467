package engine

import (
	"fmt"
	"os"
	"time"
)

// =============================================================================
// CONFIG - Read-only runtime configuration
// =============================================================================

// Config is the only state shared between request handlers and scheduled
// jobs. It is read-only after startup.
type Config struct {
	// Cutoff is the daily deadline for self-service present-marking.
	// Marking at or after this instant fails with ErrWindowClosed.
	Cutoff TimeOfDay

	// OnTimeThreshold optionally distinguishes on-time from late marking.
	// When nil, records carry no remark.
	OnTimeThreshold *TimeOfDay

	// Daily trigger times for the reconciliation jobs.
	SweepSchedule     TimeOfDay
	RejectionSchedule TimeOfDay
	ReminderSchedule  TimeOfDay

	// Location is the single timezone in which all calendar-day boundaries
	// are computed.
	Location *time.Location
}

// DefaultConfig matches the historical deployment: marking closes at 07:00,
// the sweep runs an hour later, stale leaves are rejected at end of day.
func DefaultConfig() Config {
	return Config{
		Cutoff:            TimeOfDay{Hour: 7},
		SweepSchedule:     TimeOfDay{Hour: 8},
		RejectionSchedule: TimeOfDay{Hour: 23, Minute: 55},
		ReminderSchedule:  TimeOfDay{Hour: 12},
		Location:          time.UTC,
	}
}

// FromEnv builds a Config from environment variables, falling back to
// DefaultConfig values for anything unset.
//
//	ATTENDANCE_CUTOFF    HH:MM  present-marking deadline
//	ON_TIME_THRESHOLD    HH:MM  optional on-time/late boundary
//	SWEEP_SCHEDULE       HH:MM  absence sweep trigger
//	REJECTION_SCHEDULE   HH:MM  leave auto-rejection trigger
//	REMINDER_SCHEDULE    HH:MM  pending-approval reminder trigger
//	TIMEZONE             IANA zone, e.g. Asia/Karachi
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	set := func(key string, dst *TimeOfDay) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		td, err := ParseTimeOfDay(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = td
		return nil
	}

	if err := set("ATTENDANCE_CUTOFF", &cfg.Cutoff); err != nil {
		return cfg, err
	}
	if v := os.Getenv("ON_TIME_THRESHOLD"); v != "" {
		td, err := ParseTimeOfDay(v)
		if err != nil {
			return cfg, fmt.Errorf("ON_TIME_THRESHOLD: %w", err)
		}
		cfg.OnTimeThreshold = &td
	}
	if err := set("SWEEP_SCHEDULE", &cfg.SweepSchedule); err != nil {
		return cfg, err
	}
	if err := set("REJECTION_SCHEDULE", &cfg.RejectionSchedule); err != nil {
		return cfg, err
	}
	if err := set("REMINDER_SCHEDULE", &cfg.ReminderSchedule); err != nil {
		return cfg, err
	}
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// Today returns the current calendar day per the configured timezone.
func (c Config) Today(clk Clock) Day {
	return DayOf(clk.Now(), c.Location)
}
