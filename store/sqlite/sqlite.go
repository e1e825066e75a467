/*
Package sqlite provides the SQLite-backed implementation of engine.Store.

PURPOSE:
  Implements the full record store (users, attendance, leaves, grades)
  using SQLite. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

INVARIANTS ENFORCED HERE:
  - idx_attendance_person_day: UNIQUE(person_id, date). MarkPresent, the
    absence sweep, and leave-approval writes race for the same key; the
    losing writer's INSERT fails and is surfaced as ErrAlreadyMarked.
  - TransitionLeave: UPDATE ... WHERE id = ? AND status = 'pending'.
    RowsAffected == 0 means the compare-and-swap lost; the caller gets
    won=false and must not apply side effects.

INDEXES:
  - idx_attendance_person_day:  uniqueness (hot path for all writers)
  - idx_attendance_date:        absence sweep (all records for a day)
  - idx_leaves_person_status:   overlap checks and reconciliation queries

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/attendance.db")  // ":memory:" for tests
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - engine/store.go: interface definitions
  - engine/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Participants (supplied by the external identity provider)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		approved INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	-- Attendance ledger (immutable rows)
	CREATE TABLE IF NOT EXISTS attendance (
		person_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		remark TEXT NOT NULL DEFAULT '',
		marked_at TEXT NOT NULL
	);

	-- CRITICAL: at most one record per (person, day). All three writers
	-- (self-service mark, absence sweep, leave approval) rely on this.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_person_day
		ON attendance(person_id, date);

	CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_person_status
		ON leaves(person_id, status);
	CREATE INDEX IF NOT EXISTS idx_leaves_status ON leaves(status);

	-- Grade cache (derived, never authoritative)
	CREATE TABLE IF NOT EXISTS grades (
		person_id TEXT PRIMARY KEY,
		total_days INTEGER NOT NULL,
		total_present INTEGER NOT NULL,
		total_absent INTEGER NOT NULL,
		total_leave INTEGER NOT NULL,
		percentage TEXT NOT NULL,
		letter TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ATTENDANCE (engine.AttendanceStore)
// =============================================================================

// InsertAttendance creates one ledger record. A violation of the
// (person_id, date) unique index maps to ErrAlreadyMarked.
func (s *Store) InsertAttendance(ctx context.Context, rec engine.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (person_id, date, status, remark, marked_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.PersonID,
		rec.Date.String(),
		rec.Status,
		rec.Remark,
		rec.MarkedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &engine.AlreadyMarkedError{PersonID: rec.PersonID, Date: rec.Date}
		}
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

func (s *Store) ListAttendance(ctx context.Context, personID string, from, to *engine.Day, status engine.AttendanceStatus) ([]engine.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT person_id, date, status, remark, marked_at FROM attendance WHERE person_id = ?`
	args := []any{personID}

	if from != nil {
		query += ` AND date >= ?`
		args = append(args, from.String())
	}
	if to != nil {
		query += ` AND date <= ?`
		args = append(args, to.String())
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY date ASC`

	return s.queryAttendance(ctx, query, args...)
}

func (s *Store) ListAttendanceByDate(ctx context.Context, d engine.Day) ([]engine.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttendance(ctx,
		`SELECT person_id, date, status, remark, marked_at FROM attendance
		 WHERE date = ? ORDER BY person_id ASC`,
		d.String())
}

func (s *Store) CountAttendance(ctx context.Context, personID string) (engine.AttendanceCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM attendance WHERE person_id = ? GROUP BY status`,
		personID)
	if err != nil {
		return engine.AttendanceCounts{}, fmt.Errorf("failed to count attendance: %w", err)
	}
	defer rows.Close()

	var c engine.AttendanceCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return engine.AttendanceCounts{}, err
		}
		c.Total += n
		switch engine.AttendanceStatus(status) {
		case engine.StatusPresent:
			c.Present = n
		case engine.StatusAbsent:
			c.Absent = n
		case engine.StatusLeave:
			c.Leave = n
		}
	}
	return c, rows.Err()
}

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]engine.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []engine.AttendanceRecord
	for rows.Next() {
		var (
			rec      engine.AttendanceRecord
			date     string
			markedAt string
		)
		if err := rows.Scan(&rec.PersonID, &date, &rec.Status, &rec.Remark, &markedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.Date, _ = engine.ParseDay(date)
		rec.MarkedAt, _ = time.Parse(time.RFC3339, markedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// LEAVES (engine.LeaveStore)
// =============================================================================

func (s *Store) CreateLeave(ctx context.Context, l engine.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leaves (id, person_id, start_date, end_date, reason, status,
		                     reviewed_by, reviewed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.PersonID,
		l.StartDate.String(), l.EndDate.String(),
		l.Reason, l.Status,
		l.ReviewedBy, nullTime(l.ReviewedAt),
		l.CreatedAt.UTC().Format(time.RFC3339),
		l.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create leave: %w", err)
	}
	return nil
}

func (s *Store) GetLeave(ctx context.Context, id string) (*engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leaves, err := s.queryLeaves(ctx, leaveSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, nil
	}
	return &leaves[0], nil
}

func (s *Store) ListLeaves(ctx context.Context, personID string, status engine.LeaveStatus, reason engine.LeaveReason) ([]engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := leaveSelect + ` WHERE person_id = ?`
	args := []any{personID}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	if reason != "" {
		query += ` AND reason = ?`
		args = append(args, string(reason))
	}
	query += ` ORDER BY created_at DESC`

	return s.queryLeaves(ctx, query, args...)
}

func (s *Store) ListLeavesByStatus(ctx context.Context, status engine.LeaveStatus) ([]engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeaves(ctx,
		leaveSelect+` WHERE status = ? ORDER BY created_at ASC`,
		string(status))
}

// FindOverlapping uses the boundary-inclusive intersection test:
// start_date <= end AND end_date >= start, over non-rejected rows.
func (s *Store) FindOverlapping(ctx context.Context, personID string, start, end engine.Day) ([]engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeaves(ctx,
		leaveSelect+` WHERE person_id = ? AND status != 'rejected'
		 AND start_date <= ? AND end_date >= ?
		 ORDER BY created_at ASC`,
		personID, end.String(), start.String())
}

func (s *Store) LeaveCovering(ctx context.Context, personID string, d engine.Day) (*engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leaves, err := s.queryLeaves(ctx,
		leaveSelect+` WHERE person_id = ? AND status != 'rejected'
		 AND start_date <= ? AND end_date >= ?
		 ORDER BY created_at ASC LIMIT 1`,
		personID, d.String(), d.String())
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, nil
	}
	return &leaves[0], nil
}

// TransitionLeave is the compare-and-swap: the UPDATE applies only if the
// row is still pending at write time. won=false means another transition
// (a concurrent Review or the auto-rejection job) committed first.
func (s *Store) TransitionLeave(ctx context.Context, id string, to engine.LeaveStatus, reviewedBy string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE leaves SET status = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(to), reviewedBy,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition leave: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateLeaveReason(ctx context.Context, id string, reason engine.LeaveReason, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE leaves SET reason = ?, updated_at = ? WHERE id = ?`,
		string(reason), at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update leave reason: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

const leaveSelect = `SELECT id, person_id, start_date, end_date, reason, status,
	reviewed_by, reviewed_at, created_at, updated_at FROM leaves`

func (s *Store) queryLeaves(ctx context.Context, query string, args ...any) ([]engine.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var leaves []engine.LeaveRequest
	for rows.Next() {
		var (
			l          engine.LeaveRequest
			start, end string
			reviewedAt sql.NullString
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(&l.ID, &l.PersonID, &start, &end, &l.Reason, &l.Status,
			&l.ReviewedBy, &reviewedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leave: %w", err)
		}
		l.StartDate, _ = engine.ParseDay(start)
		l.EndDate, _ = engine.ParseDay(end)
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if reviewedAt.Valid {
			t, _ := time.Parse(time.RFC3339, reviewedAt.String)
			l.ReviewedAt = &t
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// =============================================================================
// USERS (engine.UserStore)
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u engine.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role, active, approved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			role = excluded.role,
			active = excluded.active,
			approved = excluded.approved`,
		u.ID, u.Username, u.Email, string(u.Role),
		boolInt(u.Active), boolInt(u.Approved),
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*engine.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.queryUsers(ctx, userSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (s *Store) ListMembers(ctx context.Context) ([]engine.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUsers(ctx,
		userSelect+` WHERE role = 'member' AND active = 1 AND approved = 1 ORDER BY id`)
}

func (s *Store) ListAdmins(ctx context.Context) ([]engine.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUsers(ctx,
		userSelect+` WHERE role = 'admin' AND active = 1 ORDER BY id`)
}

const userSelect = `SELECT id, username, email, role, active, approved, created_at FROM users`

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]engine.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []engine.User
	for rows.Next() {
		var (
			u                engine.User
			active, approved int
			createdAt        string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &active, &approved, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Active = active == 1
		u.Approved = approved == 1
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// GRADES (engine.GradeStore)
// =============================================================================

func (s *Store) UpsertGrade(ctx context.Context, g engine.GradeSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grades (person_id, total_days, total_present, total_absent,
		                     total_leave, percentage, letter, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(person_id) DO UPDATE SET
			total_days = excluded.total_days,
			total_present = excluded.total_present,
			total_absent = excluded.total_absent,
			total_leave = excluded.total_leave,
			percentage = excluded.percentage,
			letter = excluded.letter,
			updated_at = excluded.updated_at`,
		g.PersonID, g.TotalDays, g.TotalPresent, g.TotalAbsent, g.TotalLeave,
		g.Percentage.String(), g.Letter,
		g.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grade: %w", err)
	}
	return nil
}

func (s *Store) GetGrade(ctx context.Context, personID string) (*engine.GradeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		g          engine.GradeSummary
		percentage string
		updatedAt  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT person_id, total_days, total_present, total_absent, total_leave,
		        percentage, letter, updated_at
		 FROM grades WHERE person_id = ?`,
		personID,
	).Scan(&g.PersonID, &g.TotalDays, &g.TotalPresent, &g.TotalAbsent, &g.TotalLeave,
		&percentage, &g.Letter, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grade: %w", err)
	}

	g.Percentage = mustParseDecimal(percentage)
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &g, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
