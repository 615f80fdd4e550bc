// Package memory provides in-memory store implementations for tests and
// the dev server.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/campus/attendance-engine/attendance"
	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/dayend"
	"github.com/campus/attendance-engine/scope"
)

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

type recordKey struct {
	StudentID string
	Date      string
}

// AttendanceStore is a mutex-guarded in-memory attendance.Store.
type AttendanceStore struct {
	mu      sync.RWMutex
	records map[recordKey]attendance.Record
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[recordKey]attendance.Record)}
}

func (s *AttendanceStore) RecordsForDate(_ context.Context, date calendar.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := date.String()
	var out []attendance.Record
	for k, rec := range s.records {
		if k.Date == ds {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (s *AttendanceStore) RecordsForStudent(_ context.Context, studentID string, from, to calendar.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Record
	for k, rec := range s.records {
		if k.StudentID != studentID {
			continue
		}
		if !rec.Date.Before(from) && !rec.Date.After(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// InsertIfAbsent is atomic under the store mutex, mirroring a unique
// constraint: concurrent callers racing on one (student, date) see
// exactly one insert succeed.
func (s *AttendanceStore) InsertIfAbsent(_ context.Context, rec attendance.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{StudentID: rec.StudentID, Date: rec.Date.String()}
	if _, exists := s.records[k]; exists {
		return false, nil
	}
	s.records[k] = rec
	return true, nil
}

// Upsert replaces a record unconditionally. Test/dev seeding helper.
func (s *AttendanceStore) Upsert(rec attendance.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{StudentID: rec.StudentID, Date: rec.Date.String()}] = rec
}

// Count reports the number of stored records.
func (s *AttendanceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// =============================================================================
// STUDENT STORE
// =============================================================================

// StudentStore is an in-memory attendance.StudentStore.
type StudentStore struct {
	mu       sync.RWMutex
	students []attendance.Student
}

func NewStudentStore(students ...attendance.Student) *StudentStore {
	return &StudentStore{students: students}
}

func (s *StudentStore) Add(students ...attendance.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = append(s.students, students...)
}

func (s *StudentStore) ListRegularStudents(_ context.Context, f attendance.StudentFilters) ([]attendance.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Student
	for _, st := range s.students {
		if st.Status != attendance.StudentRegular {
			continue
		}
		if f.College != "" {
			name, known := st.College.Name()
			if !known || name != f.College {
				continue
			}
		}
		if f.Course != "" && st.Course != f.Course {
			continue
		}
		if f.Branch != "" && st.Branch != f.Branch {
			continue
		}
		if f.Batch != "" && st.Batch != f.Batch {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// =============================================================================
// RBAC STORE
// =============================================================================

// ScopeStore is an in-memory scope.Store.
type ScopeStore struct {
	mu     sync.RWMutex
	scopes []scope.UserScope
}

func NewScopeStore(scopes ...scope.UserScope) *ScopeStore {
	return &ScopeStore{scopes: scopes}
}

func (s *ScopeStore) Add(scopes ...scope.UserScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append(s.scopes, scopes...)
}

func (s *ScopeStore) ListScopedUsers(_ context.Context, roles ...scope.Role) ([]scope.UserScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[scope.Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []scope.UserScope
	for _, sc := range s.scopes {
		if len(want) == 0 || want[sc.Role] {
			out = append(out, sc)
		}
	}
	return out, nil
}

// =============================================================================
// CUSTOM HOLIDAY STORE
// =============================================================================

// CustomHolidayStore is an in-memory calendar.CustomHolidayStore.
type CustomHolidayStore struct {
	mu       sync.RWMutex
	holidays []calendar.CustomHoliday
}

func NewCustomHolidayStore(holidays ...calendar.CustomHoliday) *CustomHolidayStore {
	return &CustomHolidayStore{holidays: holidays}
}

func (s *CustomHolidayStore) Add(holidays ...calendar.CustomHoliday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays = append(s.holidays, holidays...)
}

func (s *CustomHolidayStore) ListInRange(_ context.Context, start, end calendar.Date) ([]calendar.CustomHoliday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []calendar.CustomHoliday
	for _, h := range s.holidays {
		if !h.Date.Before(start) && !h.Date.After(end) {
			out = append(out, h)
		}
	}
	return out, nil
}

// =============================================================================
// REPORT DISPATCHER
// =============================================================================

// Dispatcher records payloads instead of sending them; the dev server
// and tests use it in place of a real transport.
type Dispatcher struct {
	mu       sync.Mutex
	payloads []dayend.ReportPayload

	// FailFor makes Send fail for the listed recipient emails.
	FailFor map[string]error
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{FailFor: make(map[string]error)}
}

func (d *Dispatcher) Send(_ context.Context, payload dayend.ReportPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.FailFor[payload.Recipient]; ok {
		return err
	}
	d.payloads = append(d.payloads, payload)
	return nil
}

// Sent returns a copy of the recorded payloads.
func (d *Dispatcher) Sent() []dayend.ReportPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dayend.ReportPayload, len(d.payloads))
	copy(out, d.payloads)
	return out
}
