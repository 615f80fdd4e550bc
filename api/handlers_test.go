package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campus/attendance-engine/attendance"
	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/dayend"
	"github.com/campus/attendance-engine/scope"
	"github.com/campus/attendance-engine/store/memory"
)

type testEnv struct {
	records    *memory.AttendanceStore
	students   *memory.StudentStore
	scopes     *memory.ScopeStore
	dispatcher *memory.Dispatcher
	router     http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		records:    memory.NewAttendanceStore(),
		students:   memory.NewStudentStore(),
		scopes:     memory.NewScopeStore(),
		dispatcher: memory.NewDispatcher(),
	}
	resolver := calendar.NewResolver(
		&calendar.StaticHolidaySource{},
		nil,
		calendar.NewCalendarCache(calendar.DefaultTTL),
		"IN",
	)
	stats := attendance.NewService(env.records, env.students, resolver)
	orch := dayend.New(env.records, env.students, env.scopes, scope.NewMatcher(), resolver, env.dispatcher, dayend.Config{})
	env.router = NewRouter(NewHandler(resolver, stats, orch))
	return env
}

func (env *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func regular(id string) attendance.Student {
	return attendance.Student{
		ID: id, AdmissionNo: "A-" + id,
		College: attendance.KnownCollege("Engineering"),
		Course:  "BTech", Branch: "CSE", Batch: "2023",
		Year: 2, Semester: 4,
		Status: attendance.StudentRegular,
	}
}

// =============================================================================
// CALENDAR ENDPOINTS
// =============================================================================

func TestGetDayInfo_Sunday(t *testing.T) {
	env := newTestEnv()

	rec := env.get(t, "/api/calendar/day/2025-03-16")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	info := decode[calendar.DayInfo](t, rec)
	if !info.IsNonWorking || !info.IsSunday {
		t.Fatalf("expected a non-working Sunday, got %+v", info)
	}
}

func TestGetDayInfo_MalformedDate(t *testing.T) {
	env := newTestEnv()

	rec := env.get(t, "/api/calendar/day/16-03-2025")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestGetRangeInfo_ListsSundays(t *testing.T) {
	env := newTestEnv()

	rec := env.get(t, "/api/calendar/range?start=2025-03-10&end=2025-03-23")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[RangeInfoResponse](t, rec)
	want := []string{"2025-03-16", "2025-03-23"}
	if len(resp.Dates) != len(want) {
		t.Fatalf("expected %v, got %v", want, resp.Dates)
	}
	for i, d := range want {
		if resp.Dates[i] != d {
			t.Fatalf("expected %v, got %v", want, resp.Dates)
		}
	}
}

func TestGetRangeInfo_InvertedRangeIsClientError(t *testing.T) {
	env := newTestEnv()

	rec := env.get(t, "/api/calendar/range?start=2025-03-23&end=2025-03-10")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// =============================================================================
// STATISTICS ENDPOINTS
// =============================================================================

func TestGetGroupStatistics(t *testing.T) {
	env := newTestEnv()
	env.students.Add(regular("s1"), regular("s2"))
	date, _ := calendar.ParseDate("2025-03-11")
	by := "teacher-1"
	env.records.Upsert(attendance.Record{StudentID: "s1", Date: date, Status: attendance.StatusPresent, MarkedBy: &by})

	rec := env.get(t, "/api/statistics/groups?date=2025-03-11")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stats := decode[attendance.GroupStatistics](t, rec)
	if len(stats.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(stats.Groups))
	}
	if c := stats.Groups[0].Counts; c.Total != 2 || c.Present != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}

func TestGetCohortHistory(t *testing.T) {
	env := newTestEnv()
	env.students.Add(regular("s1"), regular("s2"))
	date, _ := calendar.ParseDate("2025-03-11")
	by := "teacher-1"
	env.records.Upsert(attendance.Record{StudentID: "s1", Date: date, Status: attendance.StatusPresent, MarkedBy: &by})
	env.records.Upsert(attendance.Record{StudentID: "s2", Date: date, Status: attendance.StatusAbsent, MarkedBy: &by})

	rec := env.get(t, "/api/statistics/cohort?from=2025-03-10&to=2025-03-16&branch=CSE")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[attendance.CohortHistory](t, rec)
	if resp.Stats.TotalStudents != 2 || resp.Stats.TotalWorkingDays != 1 {
		t.Fatalf("unexpected cohort stats: %+v", resp.Stats)
	}
	if resp.Stats.TotalPresentDays != 1 {
		t.Fatalf("expected 1 present day, got %d", resp.Stats.TotalPresentDays)
	}
}

func TestGetCohortHistory_InvertedRangeIsClientError(t *testing.T) {
	env := newTestEnv()

	rec := env.get(t, "/api/statistics/cohort?from=2025-03-16&to=2025-03-10")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetStudentHistory_MissingDatesAreClientErrors(t *testing.T) {
	env := newTestEnv()

	rec := env.get(t, "/api/students/s1/history?from=2025-03-10")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing 'to', got %d", rec.Code)
	}
}

// =============================================================================
// DAY-END TRIGGER
// =============================================================================

func TestRunDayEnd_ManualTrigger(t *testing.T) {
	env := newTestEnv()
	env.students.Add(regular("s1"))
	env.scopes.Add(scope.UserScope{
		ID: "h1", Email: "cse@campus.edu", Role: scope.RoleHOD,
		Colleges: []string{"Engineering"}, AllCourses: true, Branches: []string{"CSE"},
	})

	rec := env.post(t, "/api/dayend/run", DayEndRequest{Date: "2025-03-11"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[DayEndResponse](t, rec)
	if resp.RunID == "" || resp.Date != "2025-03-11" {
		t.Fatalf("unexpected summary: %+v", resp)
	}
	if resp.AutoCompleted != 1 || resp.SentCount != 1 {
		t.Fatalf("expected 1 auto-complete and 1 send, got %+v", resp)
	}
}

func TestRunDayEnd_DryRun(t *testing.T) {
	env := newTestEnv()
	env.students.Add(regular("s1"))
	env.scopes.Add(scope.UserScope{
		ID: "h1", Email: "cse@campus.edu", Role: scope.RoleHOD,
		Colleges: []string{"Engineering"}, AllCourses: true, Branches: []string{"CSE"},
	})

	rec := env.post(t, "/api/dayend/run", DayEndRequest{Date: "2025-03-11", DryRun: true})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[DayEndResponse](t, rec)
	if !resp.DryRun || resp.SentCount != 1 {
		t.Fatalf("expected a counted dry run, got %+v", resp)
	}
	if len(env.dispatcher.Sent()) != 0 {
		t.Fatal("dry run must not reach the dispatcher")
	}
}

func TestRunDayEnd_InvalidBody(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/dayend/run", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
