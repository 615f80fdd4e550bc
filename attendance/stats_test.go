package attendance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/attendance-engine/calendar"
)

func dates(from, to string) []calendar.Date {
	f, err := calendar.ParseDate(from)
	if err != nil {
		panic(err)
	}
	t, err := calendar.ParseDate(to)
	if err != nil {
		panic(err)
	}
	return BuildDateSet(f, t)
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// PER-STUDENT STATS
// =============================================================================

func TestPerStudentStats_WeekWithSunday(t *testing.T) {
	// GIVEN: Two marked days in a 7-day range whose last day is a Sunday
	attendance := map[string]Status{
		"2025-03-10": StatusPresent,
		"2025-03-11": StatusAbsent,
	}
	dateSet := dates("2025-03-10", "2025-03-16")
	nonWorking := map[string]bool{"2025-03-16": true}

	// WHEN: Rolling the student up
	stats := PerStudentStats(attendance, dateSet, nonWorking)

	// THEN: 6 working days, 4 unmarked, 16.67%
	assert.Equal(t, 6, stats.WorkingDays)
	assert.Equal(t, 1, stats.PresentDays)
	assert.Equal(t, 1, stats.AbsentDays)
	assert.Equal(t, 4, stats.UnmarkedDays)
	assert.Equal(t, 1, stats.Holidays)
	assert.True(t, stats.Percentage.Equal(pct("16.67")),
		"expected 16.67, got %s", stats.Percentage)
}

func TestPerStudentStats_Invariant_WorkingPlusHolidaysCoversDateSet(t *testing.T) {
	// Property: workingDays + holidays == |dateSet| for varied inputs.
	cases := []struct {
		attendance map[string]Status
		nonWorking map[string]bool
	}{
		{nil, nil},
		{map[string]Status{"2025-03-10": StatusPresent}, nil},
		{map[string]Status{"2025-03-12": StatusHoliday}, map[string]bool{"2025-03-16": true}},
		{nil, map[string]bool{"2025-03-10": true, "2025-03-11": true, "2025-03-16": true}},
	}
	dateSet := dates("2025-03-10", "2025-03-16")

	for i, tc := range cases {
		stats := PerStudentStats(tc.attendance, dateSet, tc.nonWorking)
		assert.Equal(t, len(dateSet), stats.WorkingDays+stats.Holidays, "case %d", i)
	}
}

func TestPerStudentStats_ZeroWorkingDays(t *testing.T) {
	// GIVEN: Every date in the set is non-working
	dateSet := dates("2025-03-16", "2025-03-16")
	nonWorking := map[string]bool{"2025-03-16": true}

	stats := PerStudentStats(nil, dateSet, nonWorking)

	// THEN: Percentage is 0.00, never NaN
	assert.Equal(t, 0, stats.WorkingDays)
	assert.True(t, stats.Percentage.Equal(decimal.Zero), "got %s", stats.Percentage)
}

func TestPerStudentStats_PercentageBounds(t *testing.T) {
	// Property: percentage always lands in [0, 100].
	dateSet := dates("2025-03-10", "2025-03-14")
	full := map[string]Status{}
	for _, d := range dateSet {
		full[d.String()] = StatusPresent
	}

	stats := PerStudentStats(full, dateSet, nil)
	assert.True(t, stats.Percentage.Equal(pct("100")), "got %s", stats.Percentage)

	stats = PerStudentStats(nil, dateSet, nil)
	assert.True(t, stats.Percentage.Equal(decimal.Zero), "got %s", stats.Percentage)
}

// =============================================================================
// COHORT ROLLUP
// =============================================================================

func TestAggregateStats_MarkedDatesDenominator(t *testing.T) {
	// GIVEN: Two students; attendance marked on 3 dates, one of them a
	// Sunday - only days someone actually marked count as working days
	perStudent := []StudentStats{
		{PresentDays: 2, Percentage: pct("100")},
		{PresentDays: 1, Percentage: pct("50")},
	}
	marked := map[string]bool{"2025-03-10": true, "2025-03-11": true, "2025-03-16": true}
	nonWorking := map[string]bool{"2025-03-16": true}

	stats := AggregateStats(perStudent, marked, nonWorking)

	require.Equal(t, 2, stats.TotalWorkingDays)
	assert.Equal(t, 3, stats.TotalPresentDays)
	assert.Equal(t, 1, stats.GoodAttendanceCount)
	// 3 / (2 * 2) * 100 = 75
	assert.True(t, stats.OverallPercentage.Equal(pct("75")),
		"expected 75, got %s", stats.OverallPercentage)
}

func TestAggregateStats_EmptyInputs(t *testing.T) {
	stats := AggregateStats(nil, nil, nil)
	assert.Equal(t, 0, stats.TotalStudents)
	assert.True(t, stats.OverallPercentage.Equal(decimal.Zero), "got %s", stats.OverallPercentage)
}

func TestAggregateStats_GoodAttendanceThresholdIsInclusive(t *testing.T) {
	perStudent := []StudentStats{
		{Percentage: pct("75")},
		{Percentage: pct("74.99")},
		{Percentage: pct("100")},
	}
	stats := AggregateStats(perStudent, nil, nil)
	assert.Equal(t, 2, stats.GoodAttendanceCount)
}

// =============================================================================
// GROUP COUNTS
// =============================================================================

func testGroup(total, present, absent, holiday int) Group {
	g := Group{
		Key:        GroupKey{College: KnownCollege("Engineering"), Course: "BTech", Branch: "CSE", Batch: "2023", Year: 2, Semester: 4},
		Attendance: make(map[string]Status),
	}
	id := 0
	add := func(n int, status Status) {
		for i := 0; i < n; i++ {
			sid := string(rune('a'+id/26)) + string(rune('a'+id%26))
			g.StudentIDs = append(g.StudentIDs, sid)
			if status != "" {
				g.Attendance[sid] = status
			}
			id++
		}
	}
	add(present, StatusPresent)
	add(absent, StatusAbsent)
	add(holiday, StatusHoliday)
	add(total-present-absent-holiday, "")
	return g
}

func TestGroupCounts_FullyMarked(t *testing.T) {
	// GIVEN: 40 students, 25 present, 15 absent
	g := testGroup(40, 25, 15, 0)

	c := g.Counts()

	assert.True(t, c.FullyMarked)
	assert.Equal(t, 40, c.Total)
	assert.Equal(t, 25, c.Present)
	assert.Equal(t, 15, c.Absent)
	assert.True(t, c.Percentage.Equal(pct("62.5")), "expected 62.5, got %s", c.Percentage)
}

func TestGroupCounts_UnmarkedStudentBlocksFullyMarked(t *testing.T) {
	g := testGroup(40, 25, 14, 0) // one student unmarked
	c := g.Counts()
	assert.False(t, c.FullyMarked)
	assert.Equal(t, 1, c.Unmarked)
}

func TestGroupCounts_ZeroStudentGroupNeverFullyMarked(t *testing.T) {
	g := Group{Key: GroupKey{}, Attendance: map[string]Status{}}
	c := g.Counts()
	assert.False(t, c.FullyMarked)
	assert.True(t, c.Percentage.Equal(decimal.Zero))
}

func TestGroupCounts_HolidayStatusCountsAsMarked(t *testing.T) {
	g := testGroup(10, 0, 0, 10)
	c := g.Counts()
	assert.True(t, c.FullyMarked)
	assert.Equal(t, 10, c.Holiday)
}

// =============================================================================
// GROUP BUILDING
// =============================================================================

func student(id, college, course, branch string) Student {
	return Student{
		ID: id, AdmissionNo: "A-" + id,
		College: KnownCollege(college), Course: course, Branch: branch,
		Batch: "2023", Year: 2, Semester: 4, Status: StudentRegular,
	}
}

func TestBuildGroups_PartitionsByCohort(t *testing.T) {
	students := []Student{
		student("s1", "Engineering", "BTech", "CSE"),
		student("s2", "Engineering", "BTech", "CSE"),
		student("s3", "Engineering", "BTech", "ECE"),
		student("s4", "Pharmacy", "BPharm", "Pharm"),
	}
	date, _ := calendar.ParseDate("2025-03-11")
	records := []Record{
		{StudentID: "s1", Date: date, Status: StatusPresent},
		{StudentID: "s3", Date: date, Status: StatusAbsent},
		{StudentID: "ghost", Date: date, Status: StatusPresent}, // not enrolled
	}

	groups := BuildGroups(students, records)
	require.Len(t, groups, 3)

	byBranch := make(map[string]Group)
	for _, g := range groups {
		byBranch[g.Key.Branch] = g
	}
	assert.Len(t, byBranch["CSE"].StudentIDs, 2)
	assert.Equal(t, StatusPresent, byBranch["CSE"].Attendance["s1"])
	assert.Equal(t, StatusAbsent, byBranch["ECE"].Attendance["s3"])
	assert.NotContains(t, byBranch["CSE"].Attendance, "ghost")
}

func TestMarkedDates(t *testing.T) {
	d1, _ := calendar.ParseDate("2025-03-10")
	d2, _ := calendar.ParseDate("2025-03-11")
	records := []Record{
		{StudentID: "s1", Date: d1, Status: StatusPresent},
		{StudentID: "s2", Date: d1, Status: StatusAbsent},
		{StudentID: "s1", Date: d2, Status: StatusPresent},
	}
	marked := MarkedDates(records)
	assert.Len(t, marked, 2)
	assert.True(t, marked["2025-03-10"])
	assert.True(t, marked["2025-03-11"])
}
