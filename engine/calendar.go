package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - A calendar day (the ledger key granularity)
// =============================================================================

// Day is a calendar day with no time-of-day component. Day boundaries are
// computed in the single configured timezone (see Config.Location), so the
// cutoff check, the absence sweep, and leave-date comparisons always agree
// on what "today" means.
type Day struct {
	t time.Time // UTC midnight, day granularity
}

const dayLayout = "2006-01-02"

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar day containing instant t in location loc.
func DayOf(t time.Time, loc *time.Location) Day {
	local := t.In(loc)
	return NewDay(local.Year(), local.Month(), local.Day())
}

// ParseDay parses a "YYYY-MM-DD" string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// MustParseDay is for constants in tests and seeds.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }
func (d Day) After(other Day) bool  { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool  { return d.t.Equal(other.t) }
func (d Day) IsZero() bool          { return d.t.IsZero() }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddMonths(n int) Day { return Day{t: d.t.AddDate(0, n, 0)} }
func (d Day) AddYears(n int) Day  { return Day{t: d.t.AddDate(n, 0, 0)} }

func (d Day) String() string { return d.t.Format(dayLayout) }

// =============================================================================
// TIME OF DAY - Wall-clock instants within a day (cutoffs, schedules)
// =============================================================================

// TimeOfDay is a local wall-clock time such as the 07:00 marking cutoff.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// On returns the instant at this wall-clock time on day d in location loc.
func (td TimeOfDay) On(d Day, loc *time.Location) time.Time {
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), td.Hour, td.Minute, 0, 0, loc)
}

// CronSpec renders a daily cron expression for this time of day.
func (td TimeOfDay) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", td.Minute, td.Hour)
}

func (td TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", td.Hour, td.Minute)
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies "now" to all components so that the cutoff check, the
// sweep, and leave-date validation share one time source.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock backed Clock used in production.
func SystemClock() Clock { return systemClock{} }
