package engine

import "fmt"

// =============================================================================
// ATTENDANCE QUERY - exact date, range, or relative window
// =============================================================================

// Relative windows supported by AttendanceQuery.
const (
	WindowWeek  = 7
	WindowMonth = 30
	WindowYear  = 365
)

// AttendanceQuery filters a person's ledger. At most one of Date, From/To,
// or LastDays may be set; Status may combine with any of them.
type AttendanceQuery struct {
	Date     *Day
	From, To *Day
	LastDays int // 0 = unset; otherwise one of the Window* constants
	Status   AttendanceStatus
}

// Window resolves the query into an inclusive [from, to] day range,
// normalized to day granularity. Relative windows count back from today.
func (q AttendanceQuery) Window(today Day) (from, to *Day, err error) {
	modes := 0
	if q.Date != nil {
		modes++
	}
	if q.From != nil || q.To != nil {
		modes++
	}
	if q.LastDays != 0 {
		modes++
	}
	if modes > 1 {
		return nil, nil, fmt.Errorf("combine at most one of date, range, window: %w", ErrInvalidQuery)
	}

	switch {
	case q.Date != nil:
		return q.Date, q.Date, nil
	case q.LastDays != 0:
		switch q.LastDays {
		case WindowWeek, WindowMonth, WindowYear:
		default:
			return nil, nil, fmt.Errorf("window must be %d, %d or %d days: %w",
				WindowWeek, WindowMonth, WindowYear, ErrInvalidQuery)
		}
		start := today.AddDays(-q.LastDays)
		return &start, &today, nil
	default:
		if q.From != nil && q.To != nil && q.From.After(*q.To) {
			return nil, nil, fmt.Errorf("range start after end: %w", ErrInvalidQuery)
		}
		return q.From, q.To, nil
	}
}

// =============================================================================
// LEAVE QUERY - status/reason filters plus relative range filters
// =============================================================================

// LeaveFilter names a relative window over leave ranges, measured against
// today's calendar day.
type LeaveFilter string

const (
	LeaveFilterNone     LeaveFilter = ""
	LeaveFilterToday    LeaveFilter = "today"    // covering today
	LeaveFilterUpcoming LeaveFilter = "upcoming" // starting after today
	LeaveFilterPast     LeaveFilter = "past"     // ended before today
	LeaveFilterWeek     LeaveFilter = "week"     // ended within the last 7 days
	LeaveFilterMonth    LeaveFilter = "month"    // ended within the last month
	LeaveFilterYear     LeaveFilter = "year"     // ended within the last year
)

// LeaveQuery filters a person's leave requests.
type LeaveQuery struct {
	ID     string
	Status LeaveStatus
	Reason LeaveReason
	Filter LeaveFilter
}

// Matches applies the relative filter to one request.
func (f LeaveFilter) Matches(l LeaveRequest, today Day) bool {
	switch f {
	case LeaveFilterNone:
		return true
	case LeaveFilterToday:
		return l.Covers(today)
	case LeaveFilterUpcoming:
		return l.StartDate.After(today)
	case LeaveFilterPast:
		return l.EndDate.Before(today)
	case LeaveFilterWeek:
		return !l.StartDate.Before(today.AddDays(-7)) && l.EndDate.Before(today)
	case LeaveFilterMonth:
		return !l.StartDate.Before(today.AddMonths(-1)) && l.EndDate.Before(today)
	case LeaveFilterYear:
		return !l.StartDate.Before(today.AddYears(-1)) && l.EndDate.Before(today)
	}
	return false
}

// Valid reports whether f is a recognized filter name.
func (f LeaveFilter) Valid() bool {
	switch f {
	case LeaveFilterNone, LeaveFilterToday, LeaveFilterUpcoming, LeaveFilterPast,
		LeaveFilterWeek, LeaveFilterMonth, LeaveFilterYear:
		return true
	}
	return false
}
