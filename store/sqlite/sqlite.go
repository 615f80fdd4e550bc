/*
Package sqlite provides SQLite-backed implementations of the storage
interfaces.

INTERFACES IMPLEMENTED:
  attendance.Store:            attendance records
  attendance.StudentStore:     enrolled students
  scope.Store:                 scoped users (RBAC)
  calendar.CustomHolidayStore: administrator-declared holidays

RACE GUARD:
  attendance_records carries UNIQUE(student_id, date). InsertIfAbsent
  is INSERT OR IGNORE with RowsAffected deciding the outcome - never a
  select-then-insert - so two concurrent day-end runs racing on the
  same unmarked student produce exactly one row.

WAL MODE:
  Opened with WAL for read concurrency; the day-end run reads heavily
  while auto-complete writes.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool instead.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/campus/attendance-engine/attendance"
	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/scope"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
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
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		admission_no TEXT NOT NULL,
		college TEXT,            -- NULL means unspecified, not a sentinel string
		course TEXT NOT NULL,
		branch TEXT NOT NULL,
		batch TEXT NOT NULL,
		year INTEGER NOT NULL,
		semester INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_status ON students(status);
	CREATE INDEX IF NOT EXISTS idx_students_cohort
		ON students(college, course, branch, batch);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		date TEXT NOT NULL,      -- YYYY-MM-DD
		status TEXT NOT NULL,
		marked_by TEXT,          -- NULL means system auto-mark
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one record per student per date. The day-end
	-- auto-complete relies on this constraint as its race guard.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_student_date
		ON attendance_records(student_id, date);
	CREATE INDEX IF NOT EXISTS idx_records_date ON attendance_records(date);

	CREATE TABLE IF NOT EXISTS user_scopes (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		colleges_json TEXT NOT NULL,
		all_courses BOOLEAN NOT NULL DEFAULT FALSE,
		courses_json TEXT NOT NULL,
		all_branches BOOLEAN NOT NULL DEFAULT FALSE,
		branches_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scopes_role ON user_scopes(role);

	CREATE TABLE IF NOT EXISTS custom_holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,      -- YYYY-MM-DD
		title TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_custom_holidays_date ON custom_holidays(date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ATTENDANCE RECORDS (attendance.Store interface)
// =============================================================================

func (s *Store) RecordsForDate(ctx context.Context, date calendar.Date) ([]attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, date, status, marked_by
		FROM attendance_records WHERE date = ? ORDER BY student_id`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", date, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) RecordsForStudent(ctx context.Context, studentID string, from, to calendar.Date) ([]attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, date, status, marked_by
		FROM attendance_records
		WHERE student_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		studentID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query records for student %s: %w", studentID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]attendance.Record, error) {
	var out []attendance.Record
	for rows.Next() {
		var (
			rec      attendance.Record
			dateStr  string
			markedBy sql.NullString
		)
		if err := rows.Scan(&rec.StudentID, &dateStr, &rec.Status, &markedBy); err != nil {
			return nil, err
		}
		d, err := calendar.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt date %q in attendance_records", dateStr)
		}
		rec.Date = d
		if !rec.Status.Valid() {
			return nil, fmt.Errorf("corrupt status %q in attendance_records", rec.Status)
		}
		if markedBy.Valid {
			v := markedBy.String
			rec.MarkedBy = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertIfAbsent inserts unless (student_id, date) exists. The unique
// index decides the race; RowsAffected reports the outcome.
func (s *Store) InsertIfAbsent(ctx context.Context, rec attendance.Record) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO attendance_records
		(id, student_id, date, status, marked_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		rec.StudentID,
		rec.Date.String(),
		rec.Status,
		nullString(rec.MarkedBy),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert record %s/%s: %w", rec.StudentID, rec.Date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// STUDENTS (attendance.StudentStore interface)
// =============================================================================

// SaveStudent upserts a student row. Seeding/admin helper.
func (s *Store) SaveStudent(ctx context.Context, st attendance.Student) error {
	var college sql.NullString
	if name, known := st.College.Name(); known {
		college = sql.NullString{String: name, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students
		(id, admission_no, college, course, branch, batch, year, semester, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			admission_no=excluded.admission_no, college=excluded.college,
			course=excluded.course, branch=excluded.branch, batch=excluded.batch,
			year=excluded.year, semester=excluded.semester, status=excluded.status`,
		st.ID, st.AdmissionNo, college, st.Course, st.Branch, st.Batch,
		st.Year, st.Semester, st.Status,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListRegularStudents(ctx context.Context, f attendance.StudentFilters) ([]attendance.Student, error) {
	query := `
		SELECT id, admission_no, college, course, branch, batch, year, semester, status
		FROM students WHERE status = ?`
	args := []any{string(attendance.StudentRegular)}

	if f.College != "" {
		query += " AND college = ?"
		args = append(args, f.College)
	}
	if f.Course != "" {
		query += " AND course = ?"
		args = append(args, f.Course)
	}
	if f.Branch != "" {
		query += " AND branch = ?"
		args = append(args, f.Branch)
	}
	if f.Batch != "" {
		query += " AND batch = ?"
		args = append(args, f.Batch)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var out []attendance.Student
	for rows.Next() {
		var (
			st      attendance.Student
			college sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.AdmissionNo, &college, &st.Course,
			&st.Branch, &st.Batch, &st.Year, &st.Semester, &st.Status); err != nil {
			return nil, err
		}
		if college.Valid {
			st.College = attendance.KnownCollege(college.String)
		} else {
			st.College = attendance.UnspecifiedCollege()
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// USER SCOPES (scope.Store interface)
// =============================================================================

// SaveScope upserts a scope row. Seeding/admin helper.
func (s *Store) SaveScope(ctx context.Context, sc scope.UserScope) error {
	colleges, _ := json.Marshal(sc.Colleges)
	courses, _ := json.Marshal(sc.Courses)
	branches, _ := json.Marshal(sc.Branches)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_scopes
		(id, email, role, colleges_json, all_courses, courses_json,
		 all_branches, branches_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email=excluded.email, role=excluded.role,
			colleges_json=excluded.colleges_json, all_courses=excluded.all_courses,
			courses_json=excluded.courses_json, all_branches=excluded.all_branches,
			branches_json=excluded.branches_json`,
		sc.ID, sc.Email, sc.Role, string(colleges), sc.AllCourses,
		string(courses), sc.AllBranches, string(branches),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListScopedUsers(ctx context.Context, roles ...scope.Role) ([]scope.UserScope, error) {
	query := `
		SELECT id, email, role, colleges_json, all_courses, courses_json,
		       all_branches, branches_json
		FROM user_scopes`
	var args []any
	if len(roles) > 0 {
		query += " WHERE role IN (?" + repeatPlaceholder(len(roles)-1) + ")"
		for _, r := range roles {
			args = append(args, string(r))
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	var out []scope.UserScope
	for rows.Next() {
		var (
			sc                          scope.UserScope
			colleges, courses, branches string
		)
		if err := rows.Scan(&sc.ID, &sc.Email, &sc.Role, &colleges,
			&sc.AllCourses, &courses, &sc.AllBranches, &branches); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(colleges), &sc.Colleges); err != nil {
			return nil, fmt.Errorf("corrupt colleges_json for scope %s", sc.ID)
		}
		if err := json.Unmarshal([]byte(courses), &sc.Courses); err != nil {
			return nil, fmt.Errorf("corrupt courses_json for scope %s", sc.ID)
		}
		if err := json.Unmarshal([]byte(branches), &sc.Branches); err != nil {
			return nil, fmt.Errorf("corrupt branches_json for scope %s", sc.ID)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// =============================================================================
// CUSTOM HOLIDAYS (calendar.CustomHolidayStore interface)
// =============================================================================

// SaveCustomHoliday inserts a declared holiday.
func (s *Store) SaveCustomHoliday(ctx context.Context, h calendar.CustomHoliday) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_holidays (id, date, title, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), h.Date.String(), h.Title, h.Description,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListInRange(ctx context.Context, start, end calendar.Date) ([]calendar.CustomHoliday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, title, COALESCE(description, '')
		FROM custom_holidays WHERE date >= ? AND date <= ? ORDER BY date`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query custom holidays: %w", err)
	}
	defer rows.Close()

	var out []calendar.CustomHoliday
	for rows.Next() {
		var (
			h       calendar.CustomHoliday
			dateStr string
		)
		if err := rows.Scan(&dateStr, &h.Title, &h.Description); err != nil {
			return nil, err
		}
		d, err := calendar.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt date %q in custom_holidays", dateStr)
		}
		h.Date = d
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
