/*
Package dayend runs the single-pass day-end batch: auto-complete
unmarked students, evaluate per-scope completeness, dispatch summaries.

STATE MACHINE (one run):
  Collecting -> Evaluating -> Dispatching -> Done

  There is no Failed state. Individual dispatch failures are recorded
  per recipient and the run still reaches Done - the caller always gets
  a structured summary, even under partial failure.

CONCURRENCY:
  Both the scheduled trigger and the manual trigger call Run; concurrent
  invocations for the same date must be safe. The orchestrator holds no
  in-process locks over shared state: the only shared mutable resource
  is the attendance store, and the auto-complete insert relies on the
  store's unique constraint on (studentID, date), never on a
  select-then-insert. Dispatch to distinct recipients runs on a bounded
  worker pool; ordering across recipients is not guaranteed. The run
  checks cancellation between recipients, but an in-flight send is not
  interruptible.

RETRY:
  None. A failed recipient stays failed in the Result; re-triggering is
  the caller's decision.
*/
package dayend

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/campus/attendance-engine/attendance"
	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/scope"
)

// =============================================================================
// COLLABORATORS AND CONFIG
// =============================================================================

// ReportPayload is one recipient's merged day-end summary for a college.
type ReportPayload struct {
	RunID     string             `json:"runId"`
	Date      calendar.Date      `json:"date"`
	Recipient string             `json:"recipient"`
	Role      scope.Role         `json:"role"`
	College   attendance.College `json:"college"`
	Groups    []GroupSummary     `json:"groups"`
}

// GroupSummary is one fully marked cohort inside a payload.
type GroupSummary struct {
	Key    attendance.GroupKey `json:"key"`
	Counts attendance.Counts   `json:"counts"`
}

// ReportDispatcher sends one payload. External collaborator; a send
// either succeeds or returns the per-recipient error.
type ReportDispatcher interface {
	Send(ctx context.Context, payload ReportPayload) error
}

// Config is the orchestrator's static configuration.
type Config struct {
	// ExcludedCourses and ExcludedAdmissionNos are never auto-completed.
	ExcludedCourses      []string
	ExcludedAdmissionNos []string

	// Concurrency bounds the dispatch worker pool. Default 5.
	Concurrency int
}

// Options control a single run.
type Options struct {
	// DryRun runs the full evaluation without side effects: auto-complete
	// is simulated in memory, would-be sends are counted, and neither the
	// store nor the dispatcher is touched.
	DryRun bool
}

// =============================================================================
// RESULT
// =============================================================================

// DispatchError is one recipient's failure, collected, never thrown.
type DispatchError struct {
	Recipient string `json:"recipient"`
	College   string `json:"college"`
	Err       string `json:"error"`
}

// Result summarizes one run.
type Result struct {
	RunID         string          `json:"runId"`
	Date          calendar.Date   `json:"date"`
	AutoCompleted int             `json:"autoCompleted"`
	SentCount     int             `json:"sentCount"`
	FailedCount   int             `json:"failedCount"`
	SkippedScopes int             `json:"skippedScopes"`
	SkippedReason string          `json:"skippedReason,omitempty"`
	Errors        []DispatchError `json:"errors"`
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type runState string

const (
	stateCollecting  runState = "collecting"
	stateEvaluating  runState = "evaluating"
	stateDispatching runState = "dispatching"
	stateDone        runState = "done"
)

// Orchestrator ties the resolver, aggregator and matcher together into
// the day-end run.
type Orchestrator struct {
	records    attendance.Store
	students   attendance.StudentStore
	scopes     scope.Store
	matcher    *scope.Matcher
	resolver   *calendar.Resolver
	dispatcher ReportDispatcher
	cfg        Config

	excludedCourses map[string]bool
	excludedAdmNos  map[string]bool
}

// New wires an orchestrator.
func New(records attendance.Store, students attendance.StudentStore, scopes scope.Store,
	matcher *scope.Matcher, resolver *calendar.Resolver, dispatcher ReportDispatcher, cfg Config) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	o := &Orchestrator{
		records:         records,
		students:        students,
		scopes:          scopes,
		matcher:         matcher,
		resolver:        resolver,
		dispatcher:      dispatcher,
		cfg:             cfg,
		excludedCourses: make(map[string]bool),
		excludedAdmNos:  make(map[string]bool),
	}
	for _, c := range cfg.ExcludedCourses {
		o.excludedCourses[c] = true
	}
	for _, a := range cfg.ExcludedAdmissionNos {
		o.excludedAdmNos[a] = true
	}
	return o
}

// Run executes one day-end pass for the date. The returned Result is
// always populated when err is nil, including under partial dispatch
// failure. An error is returned only when the run cannot collect its
// inputs at all.
func (o *Orchestrator) Run(ctx context.Context, date calendar.Date, opts Options) (Result, error) {
	result := Result{RunID: uuid.NewString(), Date: date, Errors: []DispatchError{}}
	log.Printf("[DayEnd] run %s for %s starting (dryRun=%v)", result.RunID, date, opts.DryRun)

	// No attendance is expected on a non-working day; auto-completing
	// one would mark everyone present on a Sunday.
	day, err := o.resolver.DayInfo(ctx, date)
	if err != nil {
		return result, err
	}
	if day.IsNonWorking {
		result.SkippedReason = fmt.Sprintf("non-working day: %v", day.Reasons)
		log.Printf("[DayEnd] run %s skipped: %s", result.RunID, result.SkippedReason)
		return result, nil
	}

	// --- Collecting ---
	o.logState(result.RunID, stateCollecting)

	records, err := o.records.RecordsForDate(ctx, date)
	if err != nil {
		return result, fmt.Errorf("load records for %s: %w", date, err)
	}
	students, err := o.students.ListRegularStudents(ctx, attendance.StudentFilters{})
	if err != nil {
		return result, fmt.Errorf("list students: %w", err)
	}
	scopes, err := o.scopes.ListScopedUsers(ctx, scope.RolePrincipal, scope.RoleHOD)
	if err != nil {
		return result, fmt.Errorf("list scoped users: %w", err)
	}

	// Auto-complete runs once, before completeness evaluation.
	records, result.AutoCompleted = o.autoComplete(ctx, date, students, records, opts, &result)

	// --- Evaluating ---
	o.logState(result.RunID, stateEvaluating)

	groups := attendance.BuildGroups(students, records)
	counts := make(map[string]attendance.Counts, len(groups))
	for _, g := range groups {
		counts[g.Key.String()] = g.Counts()
	}

	var jobs []dispatchJob
	processed := newDispatchSet()
	for _, sc := range scopes {
		matched := o.matcher.FilterGroups(groups, sc)
		if !scopeReady(matched, counts) {
			result.SkippedScopes++
			continue
		}
		jobs = append(jobs, o.buildJobs(result.RunID, date, sc, matched, counts, processed)...)
	}

	// --- Dispatching ---
	o.logState(result.RunID, stateDispatching)
	o.dispatch(ctx, jobs, opts, &result)

	// --- Done ---
	o.logState(result.RunID, stateDone)
	log.Printf("[DayEnd] run %s: autoCompleted=%d sent=%d failed=%d skippedScopes=%d",
		result.RunID, result.AutoCompleted, result.SentCount, result.FailedCount, result.SkippedScopes)
	return result, nil
}

// autoComplete inserts a synthetic present record for every Regular,
// non-excluded student with no record for the date. Returns the
// refreshed record list and the number of inserts. Under DryRun the
// synthetic records are overlaid in memory only, so the evaluation
// behaves like a live run while the store stays untouched.
func (o *Orchestrator) autoComplete(ctx context.Context, date calendar.Date,
	students []attendance.Student, records []attendance.Record, opts Options, result *Result) ([]attendance.Record, int) {

	recorded := make(map[string]bool, len(records))
	for _, rec := range records {
		recorded[rec.StudentID] = true
	}

	inserted := 0
	raced := false
	for _, st := range students {
		if recorded[st.ID] || o.excludedCourses[st.Course] || o.excludedAdmNos[st.AdmissionNo] {
			continue
		}
		if opts.DryRun {
			records = append(records, attendance.Record{
				StudentID: st.ID, Date: date, Status: attendance.StatusPresent,
			})
			inserted++
			continue
		}
		ok, err := o.records.InsertIfAbsent(ctx, attendance.Record{
			StudentID: st.ID,
			Date:      date,
			Status:    attendance.StatusPresent,
			MarkedBy:  nil, // system auto-mark
		})
		if err != nil {
			// Persistence failure aborts this student only.
			result.Errors = append(result.Errors, DispatchError{
				Recipient: "", College: "", Err: fmt.Sprintf("auto-complete %s: %v", st.ID, err),
			})
			continue
		}
		if ok {
			records = append(records, attendance.Record{
				StudentID: st.ID, Date: date, Status: attendance.StatusPresent,
			})
			inserted++
		} else {
			// A concurrent run or a late manual mark won the insert;
			// its status is unknown here.
			raced = true
		}
	}

	if raced {
		// Pick up whatever the concurrent writers recorded.
		fresh, err := o.records.RecordsForDate(ctx, date)
		if err == nil {
			records = fresh
		} else {
			log.Printf("[DayEnd] reload after auto-complete race failed: %v", err)
		}
	}
	return records, inserted
}

// scopeReady: a scope is ready iff its filtered set is non-empty and
// every filtered group is fully marked.
func scopeReady(matched []attendance.Group, counts map[string]attendance.Counts) bool {
	if len(matched) == 0 {
		return false
	}
	for _, g := range matched {
		if !counts[g.Key.String()].FullyMarked {
			return false
		}
	}
	return true
}

// =============================================================================
// DISPATCH
// =============================================================================

type dispatchJob struct {
	payload ReportPayload
}

// dispatchSet guards duplicate sends within one run: one recipient
// matching multiple overlapping group slices must not be mailed twice
// for the same (email, college, courseKey).
type dispatchSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newDispatchSet() *dispatchSet {
	return &dispatchSet{seen: make(map[string]bool)}
}

// claim marks the key processed; reports whether this caller won it.
func (s *dispatchSet) claim(email, college, courseKey string) bool {
	k := email + "|" + college + "|" + courseKey
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	return true
}

// buildJobs merges a ready scope's matched groups per college into
// payloads, claiming each (email, college, courseKey) so overlapping
// scope slices cannot double-send.
func (o *Orchestrator) buildJobs(runID string, date calendar.Date, sc scope.UserScope,
	matched []attendance.Group, counts map[string]attendance.Counts, processed *dispatchSet) []dispatchJob {

	byCollege := make(map[string][]attendance.Group)
	colleges := make(map[string]attendance.College)
	for _, g := range matched {
		name, _ := g.Key.College.Name() // "" keys the unspecified bucket
		byCollege[name] = append(byCollege[name], g)
		colleges[name] = g.Key.College
	}

	collegeNames := make([]string, 0, len(byCollege))
	for name := range byCollege {
		collegeNames = append(collegeNames, name)
	}
	sort.Strings(collegeNames)

	var jobs []dispatchJob
	for _, name := range collegeNames {
		var summaries []GroupSummary
		for _, g := range byCollege[name] {
			if !processed.claim(sc.Email, name, g.Key.CourseKey()) {
				continue
			}
			summaries = append(summaries, GroupSummary{Key: g.Key, Counts: counts[g.Key.String()]})
		}
		if len(summaries) == 0 {
			continue
		}
		jobs = append(jobs, dispatchJob{payload: ReportPayload{
			RunID:     runID,
			Date:      date,
			Recipient: sc.Email,
			Role:      sc.Role,
			College:   colleges[name],
			Groups:    summaries,
		}})
	}
	return jobs
}

// dispatch sends the jobs on a bounded pool, collecting per-recipient
// failures into the result. The pool never aborts on a send failure;
// only context cancellation stops the remaining jobs.
func (o *Orchestrator) dispatch(ctx context.Context, jobs []dispatchJob, opts Options, result *Result) {
	if opts.DryRun {
		// Count would-be sends; the dispatcher is never called.
		result.SentCount = len(jobs)
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		job := job
		g.Go(func() error {
			err := o.dispatcher.Send(gctx, job.payload)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedCount++
				collegeName, _ := job.payload.College.Name()
				result.Errors = append(result.Errors, DispatchError{
					Recipient: job.payload.Recipient,
					College:   collegeName,
					Err:       err.Error(),
				})
				return nil
			}
			result.SentCount++
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) logState(runID string, s runState) {
	log.Printf("[DayEnd] run %s -> %s", runID, s)
}
