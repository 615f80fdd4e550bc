/*
stats.go - Attendance statistics

PERCENTAGE SEMANTICS:
  - Per-student over a range: presentDays / workingDays * 100, where a
    working day is any date in the set that is not non-working.
  - Cohort over a range: totalPresentDays / (totalWorkingDays *
    totalStudents) * 100, where totalWorkingDays counts the distinct
    dates on which attendance was actually marked, excluding non-working
    dates. The full calendar span is deliberately NOT the denominator:
    days nobody has marked yet must not dilute percentages.
  - Per-group on one date: present / totalStudents * 100.
  All percentages are rounded to two places and are 0.00, never NaN,
  when the denominator is zero.
*/
package attendance

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/campus/attendance-engine/calendar"
)

// GoodAttendanceThreshold is the percentage at or above which a student
// counts toward goodAttendanceCount.
var GoodAttendanceThreshold = decimal.NewFromInt(75)

var hundred = decimal.NewFromInt(100)

// StudentStats is one student's rollup over a date set.
type StudentStats struct {
	StudentID    string          `json:"studentId,omitempty"`
	WorkingDays  int             `json:"workingDays"`
	PresentDays  int             `json:"presentDays"`
	AbsentDays   int             `json:"absentDays"`
	Holidays     int             `json:"holidays"`
	UnmarkedDays int             `json:"unmarkedDays"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// CohortStats is a group of students' rollup over a date set.
type CohortStats struct {
	TotalStudents       int             `json:"totalStudents"`
	TotalWorkingDays    int             `json:"totalWorkingDays"`
	TotalPresentDays    int             `json:"totalPresentDays"`
	GoodAttendanceCount int             `json:"goodAttendanceCount"`
	OverallPercentage   decimal.Decimal `json:"overallPercentage"`
	PerStudent          []StudentStats  `json:"perStudent,omitempty"`
}

// BuildDateSet returns every date in [from, to], ordered and inclusive.
// Empty when from is after to.
func BuildDateSet(from, to calendar.Date) []calendar.Date {
	return calendar.DatesBetween(from, to)
}

// PerStudentStats rolls one student's attendance map up over a date set.
// For each date: non-working counts as a holiday; otherwise the date is
// a working day classified by recorded status, defaulting to unmarked.
// Invariant: WorkingDays + Holidays == len(dateSet).
func PerStudentStats(attendance map[string]Status, dateSet []calendar.Date, nonWorking map[string]bool) StudentStats {
	var stats StudentStats
	for _, d := range dateSet {
		ds := d.String()
		if nonWorking[ds] {
			stats.Holidays++
			continue
		}
		stats.WorkingDays++
		switch attendance[ds] {
		case StatusPresent:
			stats.PresentDays++
		case StatusAbsent:
			stats.AbsentDays++
		case StatusHoliday:
			// Recorded holiday on a working date still counts as marked
			// but neither present nor absent.
			stats.Holidays++
			stats.WorkingDays--
		default:
			stats.UnmarkedDays++
		}
	}
	stats.Percentage = round2Ratio(stats.PresentDays, stats.WorkingDays)
	return stats
}

// AggregateStats rolls per-student stats up into a cohort view.
// markedDates holds the dates on which attendance was actually marked
// for this cohort; nonWorking removes holidays from that count.
//
// Precondition: perStudent was computed from Regular students only. The
// aggregator does no status filtering.
func AggregateStats(perStudent []StudentStats, markedDates map[string]bool, nonWorking map[string]bool) CohortStats {
	stats := CohortStats{
		TotalStudents: len(perStudent),
		PerStudent:    perStudent,
	}

	for d := range markedDates {
		if !nonWorking[d] {
			stats.TotalWorkingDays++
		}
	}

	for _, s := range perStudent {
		stats.TotalPresentDays += s.PresentDays
		if s.Percentage.GreaterThanOrEqual(GoodAttendanceThreshold) {
			stats.GoodAttendanceCount++
		}
	}

	stats.OverallPercentage = round2Ratio(stats.TotalPresentDays, stats.TotalWorkingDays*stats.TotalStudents)
	return stats
}

// Counts derives the per-date tallies for a group. FullyMarked requires
// every student marked AND at least one student: a zero-student group is
// never fully marked.
func (g Group) Counts() Counts {
	c := Counts{Total: len(g.StudentIDs)}
	for _, id := range g.StudentIDs {
		switch g.Attendance[id] {
		case StatusPresent:
			c.Present++
		case StatusAbsent:
			c.Absent++
		case StatusHoliday:
			c.Holiday++
		default:
			c.Unmarked++
		}
	}
	c.Marked = c.Present + c.Absent + c.Holiday
	c.FullyMarked = c.Marked == c.Total && c.Total > 0
	c.Percentage = round2Ratio(c.Present, c.Total)
	return c
}

// BuildGroups partitions students into cohorts and overlays the date's
// records. Records for students outside the list are ignored.
//
// Precondition: students contains only Regular students.
func BuildGroups(students []Student, records []Record) []Group {
	byKey := make(map[GroupKey]*Group)
	member := make(map[string]GroupKey, len(students))

	for _, s := range students {
		key := s.GroupKey()
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, Attendance: make(map[string]Status)}
			byKey[key] = g
		}
		g.StudentIDs = append(g.StudentIDs, s.ID)
		member[s.ID] = key
	}

	for _, rec := range records {
		key, ok := member[rec.StudentID]
		if !ok {
			continue
		}
		byKey[key].Attendance[rec.StudentID] = rec.Status
	}

	groups := make([]Group, 0, len(byKey))
	for _, g := range byKey {
		sort.Strings(g.StudentIDs)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key.String() < groups[j].Key.String()
	})
	return groups
}

// MarkedDates returns the distinct dates carrying at least one record.
func MarkedDates(records []Record) map[string]bool {
	marked := make(map[string]bool)
	for _, rec := range records {
		marked[rec.Date.String()] = true
	}
	return marked
}

// round2Ratio computes numer/denom*100 rounded to two places, 0.00 on a
// zero denominator.
func round2Ratio(numer, denom int) decimal.Decimal {
	if denom <= 0 {
		return decimal.Zero.Round(2)
	}
	return decimal.NewFromInt(int64(numer)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(denom))).
		Round(2)
}
