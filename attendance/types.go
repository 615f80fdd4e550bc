/*
Package attendance turns raw attendance records and calendar data into
per-student and per-cohort statistics.

PURPOSE:
  The aggregator is a pure function of its inputs: records, a date set
  and the non-working dates. It performs no store access and no student
  status filtering - callers pass only Regular students.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: present / absent / holiday
  - Record: one student's status on one date, unique per (student, date)
  - College: a tagged value, Known(name) or Unspecified - there is no
    reserved sentinel string
  - GroupKey/Group: the (college, course, branch, batch, year, semester)
    cohort and its per-date attendance

SEE ALSO:
  - stats.go: per-student and cohort statistics
  - service.go: the exposed statistics queries
*/
package attendance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campus/attendance-engine/calendar"
)

// =============================================================================
// STATUS AND RECORDS
// =============================================================================

// Status is a recorded attendance state.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusHoliday Status = "holiday"
)

// Valid reports whether s is one of the recordable statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusHoliday
}

// Record is one student's attendance on one date. Unique per
// (StudentID, Date); the store enforces that. A nil MarkedBy means the
// system auto-marked the record at day end.
type Record struct {
	StudentID string
	Date      calendar.Date
	Status    Status
	MarkedBy  *string
}

// IsAutoMarked reports whether the record was inserted by the day-end
// auto-complete rather than a person.
func (r Record) IsAutoMarked() bool { return r.MarkedBy == nil }

// =============================================================================
// STUDENTS
// =============================================================================

// StudentStatus is an enrollment status. Only Regular students enter
// aggregation.
type StudentStatus string

const (
	StudentRegular StudentStatus = "Regular"
	StudentOther   StudentStatus = "Other"
)

// Student carries the scope attributes aggregation groups by.
type Student struct {
	ID          string
	AdmissionNo string
	College     College
	Course      string
	Branch      string
	Batch       string
	Year        int
	Semester    int
	Status      StudentStatus
}

// GroupKey returns the cohort key this student belongs to.
func (s Student) GroupKey() GroupKey {
	return GroupKey{
		College:  s.College,
		Course:   s.Course,
		Branch:   s.Branch,
		Batch:    s.Batch,
		Year:     s.Year,
		Semester: s.Semester,
	}
}

// =============================================================================
// COLLEGE - tagged value, not a sentinel string
// =============================================================================

// College is either a known college name or explicitly unspecified.
// The zero value is Unspecified.
type College struct {
	name  string
	known bool
}

// KnownCollege tags a concrete college name.
func KnownCollege(name string) College { return College{name: name, known: true} }

// UnspecifiedCollege tags the absence of a college attribution.
func UnspecifiedCollege() College { return College{} }

// Name returns the college name and whether one is known.
func (c College) Name() (string, bool) { return c.name, c.known }

// IsSpecified reports whether a concrete name is attached.
func (c College) IsSpecified() bool { return c.known }

func (c College) String() string {
	if !c.known {
		return "(unspecified)"
	}
	return c.name
}

// MarshalJSON emits the name, or null when unspecified.
func (c College) MarshalJSON() ([]byte, error) {
	if !c.known {
		return []byte("null"), nil
	}
	return json.Marshal(c.name)
}

// UnmarshalJSON accepts a name string or null.
func (c *College) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = UnspecifiedCollege()
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*c = KnownCollege(name)
	return nil
}

// =============================================================================
// GROUPS
// =============================================================================

// GroupKey identifies one cohort.
type GroupKey struct {
	College  College
	Course   string
	Branch   string
	Batch    string
	Year     int
	Semester int
}

// CourseKey is the course-level slice of the key, used in dispatch
// deduplication.
func (k GroupKey) CourseKey() string {
	return fmt.Sprintf("%s/%s/%s/%d-%d", k.Course, k.Branch, k.Batch, k.Year, k.Semester)
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.College, k.CourseKey())
}

// Group is one cohort's attendance for a single date. Built per query
// or per orchestration run, never persisted.
type Group struct {
	Key        GroupKey
	StudentIDs []string
	// Attendance maps studentID -> status for the date. A student
	// missing from the map is unmarked.
	Attendance map[string]Status
}

// Counts is the derived view of a Group.
type Counts struct {
	Total       int             `json:"total"`
	Present     int             `json:"present"`
	Absent      int             `json:"absent"`
	Holiday     int             `json:"holiday"`
	Marked      int             `json:"marked"`
	Unmarked    int             `json:"unmarked"`
	Percentage  decimal.Decimal `json:"percentage"`
	FullyMarked bool            `json:"isFullyMarked"`
}

// =============================================================================
// STORE INTERFACES (consumed, implemented in store/)
// =============================================================================

// StudentFilters narrows a student listing. Zero value means no filter.
type StudentFilters struct {
	College string
	Course  string
	Branch  string
	Batch   string
}

// Store is the attendance record store.
type Store interface {
	// RecordsForDate returns every record for the date.
	RecordsForDate(ctx context.Context, date calendar.Date) ([]Record, error)

	// RecordsForStudent returns one student's records in [from, to].
	RecordsForStudent(ctx context.Context, studentID string, from, to calendar.Date) ([]Record, error)

	// InsertIfAbsent inserts a record unless one already exists for
	// (studentID, date). Reports whether the insert happened. The
	// implementation must rely on the store's unique constraint, not a
	// select-then-insert, so concurrent callers cannot double-insert.
	InsertIfAbsent(ctx context.Context, rec Record) (inserted bool, err error)
}

// StudentStore lists enrolled students.
type StudentStore interface {
	// ListRegularStudents returns students with Regular status matching
	// the filters.
	ListRegularStudents(ctx context.Context, filters StudentFilters) ([]Student, error)
}
