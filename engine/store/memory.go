// Package store provides an in-memory engine.Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	users      map[string]engine.User
	attendance map[attKey]engine.AttendanceRecord
	leaves     map[string]engine.LeaveRequest
	grades     map[string]engine.GradeSummary
}

type attKey struct {
	PersonID string
	Date     string
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]engine.User),
		attendance: make(map[attKey]engine.AttendanceRecord),
		leaves:     make(map[string]engine.LeaveRequest),
		grades:     make(map[string]engine.GradeSummary),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (m *Memory) InsertAttendance(_ context.Context, rec engine.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := attKey{PersonID: rec.PersonID, Date: rec.Date.String()}
	if _, exists := m.attendance[k]; exists {
		return &engine.AlreadyMarkedError{PersonID: rec.PersonID, Date: rec.Date}
	}
	m.attendance[k] = rec
	return nil
}

func (m *Memory) ListAttendance(_ context.Context, personID string, from, to *engine.Day, status engine.AttendanceStatus) ([]engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.PersonID != personID {
			continue
		}
		if from != nil && rec.Date.Before(*from) {
			continue
		}
		if to != nil && rec.Date.After(*to) {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) ListAttendanceByDate(_ context.Context, d engine.Day) ([]engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.Date.Equal(d) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

func (m *Memory) CountAttendance(_ context.Context, personID string) (engine.AttendanceCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c engine.AttendanceCounts
	for _, rec := range m.attendance {
		if rec.PersonID != personID {
			continue
		}
		c.Total++
		switch rec.Status {
		case engine.StatusPresent:
			c.Present++
		case engine.StatusAbsent:
			c.Absent++
		case engine.StatusLeave:
			c.Leave++
		}
	}
	return c, nil
}

// =============================================================================
// LEAVES
// =============================================================================

func (m *Memory) CreateLeave(_ context.Context, l engine.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[l.ID] = l
	return nil
}

func (m *Memory) GetLeave(_ context.Context, id string) (*engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.leaves[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *Memory) ListLeaves(_ context.Context, personID string, status engine.LeaveStatus, reason engine.LeaveReason) ([]engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.LeaveRequest
	for _, l := range m.leaves {
		if l.PersonID != personID {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		if reason != "" && l.Reason != reason {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListLeavesByStatus(_ context.Context, status engine.LeaveStatus) ([]engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.LeaveRequest
	for _, l := range m.leaves {
		if l.Status == status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) FindOverlapping(_ context.Context, personID string, start, end engine.Day) ([]engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.LeaveRequest
	for _, l := range m.leaves {
		if l.PersonID != personID || l.Status == engine.LeaveRejected {
			continue
		}
		if l.Overlaps(start, end) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) LeaveCovering(_ context.Context, personID string, d engine.Day) (*engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.leaves {
		if l.PersonID == personID && l.Status != engine.LeaveRejected && l.Covers(d) {
			leave := l
			return &leave, nil
		}
	}
	return nil, nil
}

// TransitionLeave applies the compare-and-swap under the store lock: the
// update commits only if the row is still pending.
func (m *Memory) TransitionLeave(_ context.Context, id string, to engine.LeaveStatus, reviewedBy string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leaves[id]
	if !ok || l.Status != engine.LeavePending {
		return false, nil
	}
	l.Status = to
	l.ReviewedBy = reviewedBy
	l.ReviewedAt = &at
	l.UpdatedAt = at
	m.leaves[id] = l
	return true, nil
}

func (m *Memory) UpdateLeaveReason(_ context.Context, id string, reason engine.LeaveReason, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leaves[id]
	if !ok {
		return engine.ErrNotFound
	}
	l.Reason = reason
	l.UpdatedAt = at
	m.leaves[id] = l
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u engine.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*engine.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]engine.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.User
	for _, u := range m.users {
		if u.Role == engine.RoleMember && u.Participates() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListAdmins(_ context.Context) ([]engine.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.User
	for _, u := range m.users {
		if u.Role == engine.RoleAdmin && u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// GRADES
// =============================================================================

func (m *Memory) UpsertGrade(_ context.Context, g engine.GradeSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grades[g.PersonID] = g
	return nil
}

func (m *Memory) GetGrade(_ context.Context, personID string) (*engine.GradeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.grades[personID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}
