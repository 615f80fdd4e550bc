/*
service.go - Exposed statistics queries

PURPOSE:
  Combines the stores and the non-working-day resolver into the query
  operations the API exposes: per-group statistics for one date, one
  student's history over a range, and a filtered cohort's rollup over a
  range. The pure aggregation math lives in stats.go; this file only
  loads inputs and shapes outputs.
*/
package attendance

import (
	"context"
	"fmt"

	"github.com/campus/attendance-engine/calendar"
)

// Service answers the exposed statistics queries.
type Service struct {
	records  Store
	students StudentStore
	resolver *calendar.Resolver
}

// NewService wires a statistics service.
func NewService(records Store, students StudentStore, resolver *calendar.Resolver) *Service {
	return &Service{records: records, students: students, resolver: resolver}
}

// GroupStatistic is one cohort's statistics for a date.
type GroupStatistic struct {
	Key    GroupKey `json:"key"`
	Counts Counts   `json:"counts"`
}

// GroupStatistics is the full per-date view.
type GroupStatistics struct {
	Date   calendar.Date    `json:"date"`
	Day    calendar.DayInfo `json:"day"`
	Groups []GroupStatistic `json:"groups"`
}

// ComputeGroupStatistics loads the date's records and Regular students,
// partitions them into cohorts and derives each cohort's counts.
func (s *Service) ComputeGroupStatistics(ctx context.Context, date calendar.Date, filters StudentFilters) (GroupStatistics, error) {
	day, err := s.resolver.DayInfo(ctx, date)
	if err != nil {
		return GroupStatistics{}, err
	}

	students, err := s.students.ListRegularStudents(ctx, filters)
	if err != nil {
		return GroupStatistics{}, fmt.Errorf("list students: %w", err)
	}
	records, err := s.records.RecordsForDate(ctx, date)
	if err != nil {
		return GroupStatistics{}, fmt.Errorf("load records for %s: %w", date, err)
	}

	out := GroupStatistics{Date: date, Day: day}
	for _, g := range BuildGroups(students, records) {
		out.Groups = append(out.Groups, GroupStatistic{Key: g.Key, Counts: g.Counts()})
	}
	return out, nil
}

// DayDetail is one date in a student's history.
type DayDetail struct {
	Date         calendar.Date `json:"date"`
	IsNonWorking bool          `json:"isNonWorking"`
	Reasons      []string      `json:"reasons,omitempty"`
	Status       Status        `json:"status,omitempty"`
	AutoMarked   bool          `json:"autoMarked,omitempty"`
}

// StudentHistory is one student's range rollup with per-date detail.
type StudentHistory struct {
	StudentID string        `json:"studentId"`
	From      calendar.Date `json:"from"`
	To        calendar.Date `json:"to"`
	Stats     StudentStats  `json:"stats"`
	Days      []DayDetail   `json:"days"`
}

// ComputeStudentHistory rolls one student's records up over [from, to].
// Fails with InvalidRangeError when from > to.
func (s *Service) ComputeStudentHistory(ctx context.Context, studentID string, from, to calendar.Date) (StudentHistory, error) {
	rangeInfo, err := s.resolver.RangeInfo(ctx, from, to)
	if err != nil {
		return StudentHistory{}, err
	}

	records, err := s.records.RecordsForStudent(ctx, studentID, from, to)
	if err != nil {
		return StudentHistory{}, fmt.Errorf("load records for student %s: %w", studentID, err)
	}

	attendance := make(map[string]Status, len(records))
	auto := make(map[string]bool)
	for _, rec := range records {
		attendance[rec.Date.String()] = rec.Status
		if rec.IsAutoMarked() {
			auto[rec.Date.String()] = true
		}
	}

	nonWorking := make(map[string]bool, len(rangeInfo.Dates))
	for _, d := range rangeInfo.Dates {
		nonWorking[d.String()] = true
	}

	dateSet := BuildDateSet(from, to)
	history := StudentHistory{
		StudentID: studentID,
		From:      from,
		To:        to,
		Stats:     PerStudentStats(attendance, dateSet, nonWorking),
	}
	history.Stats.StudentID = studentID

	for _, d := range dateSet {
		ds := d.String()
		detail := DayDetail{Date: d, IsNonWorking: nonWorking[ds]}
		if day, ok := rangeInfo.Details[ds]; ok {
			detail.Reasons = day.Reasons
		}
		if status, ok := attendance[ds]; ok {
			detail.Status = status
			detail.AutoMarked = auto[ds]
		}
		history.Days = append(history.Days, detail)
	}
	return history, nil
}

// CohortHistory is a filtered cohort's rollup over a range.
type CohortHistory struct {
	From  calendar.Date `json:"from"`
	To    calendar.Date `json:"to"`
	Stats CohortStats   `json:"stats"`
}

// ComputeCohortHistory rolls every Regular student matching the filters
// up over [from, to]. Fails with InvalidRangeError when from > to.
func (s *Service) ComputeCohortHistory(ctx context.Context, filters StudentFilters, from, to calendar.Date) (CohortHistory, error) {
	nonWorking, err := s.resolver.NonWorkingSet(ctx, from, to)
	if err != nil {
		return CohortHistory{}, err
	}
	students, err := s.students.ListRegularStudents(ctx, filters)
	if err != nil {
		return CohortHistory{}, fmt.Errorf("list students: %w", err)
	}

	dateSet := BuildDateSet(from, to)
	perStudent := make([]StudentStats, 0, len(students))
	marked := make(map[string]bool)
	for _, st := range students {
		records, err := s.records.RecordsForStudent(ctx, st.ID, from, to)
		if err != nil {
			return CohortHistory{}, fmt.Errorf("load records for student %s: %w", st.ID, err)
		}
		attendance := make(map[string]Status, len(records))
		for _, rec := range records {
			attendance[rec.Date.String()] = rec.Status
			marked[rec.Date.String()] = true
		}
		stats := PerStudentStats(attendance, dateSet, nonWorking)
		stats.StudentID = st.ID
		perStudent = append(perStudent, stats)
	}

	return CohortHistory{
		From:  from,
		To:    to,
		Stats: AggregateStats(perStudent, marked, nonWorking),
	}, nil
}
