/*
handlers.go - HTTP handlers for the exposed operations

OPERATIONS:
  GET  /api/calendar/day/{date}         day working status
  GET  /api/calendar/range              non-working dates in a range
  GET  /api/statistics/groups           per-group counts for one date
  GET  /api/statistics/cohort           filtered cohort rollup over a range
  GET  /api/students/{id}/history       one student's range rollup
  POST /api/dayend/run                  manual day-end trigger

ERROR MAPPING:
  Malformed dates and inverted ranges are client errors (400). Holiday
  source failures never surface here - the resolver absorbs them.
  Store failures are 500s. A day-end run with partial dispatch failures
  is still a 200 with the structured summary.
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campus/attendance-engine/attendance"
	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/dayend"
)

// Handler carries the engine dependencies for all routes.
type Handler struct {
	Resolver     *calendar.Resolver
	Stats        *attendance.Service
	Orchestrator *dayend.Orchestrator
}

// NewHandler creates a handler.
func NewHandler(resolver *calendar.Resolver, stats *attendance.Service, orch *dayend.Orchestrator) *Handler {
	return &Handler{Resolver: resolver, Stats: stats, Orchestrator: orch}
}

// GetDayInfo resolves one date's working status.
func (h *Handler) GetDayInfo(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.Resolver.DayInfo(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// GetRangeInfo resolves the non-working dates in [start, end].
func (h *Handler) GetRangeInfo(w http.ResponseWriter, r *http.Request) {
	start, err := calendar.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := calendar.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.Resolver.RangeInfo(r.Context(), start, end)
	if err != nil {
		status := http.StatusInternalServerError
		if calendar.IsClientError(err) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, RangeInfoResponse{
		Start:   start.String(),
		End:     end.String(),
		Dates:   info.SortedDates(),
		Details: info.Details,
	})
}

// GetGroupStatistics computes per-group counts for one date.
func (h *Handler) GetGroupStatistics(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	filters := attendance.StudentFilters{
		College: q.Get("college"),
		Course:  q.Get("course"),
		Branch:  q.Get("branch"),
		Batch:   q.Get("batch"),
	}

	stats, err := h.Stats.ComputeGroupStatistics(r.Context(), date, filters)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetCohortHistory rolls a filtered cohort up over [from, to].
func (h *Handler) GetCohortHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := calendar.ParseDate(q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := calendar.ParseDate(q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filters := attendance.StudentFilters{
		College: q.Get("college"),
		Course:  q.Get("course"),
		Branch:  q.Get("branch"),
		Batch:   q.Get("batch"),
	}

	history, err := h.Stats.ComputeCohortHistory(r.Context(), filters, from, to)
	if err != nil {
		status := http.StatusInternalServerError
		if calendar.IsClientError(err) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// GetStudentHistory computes one student's rollup over [from, to].
func (h *Handler) GetStudentHistory(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	from, err := calendar.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := calendar.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.Stats.ComputeStudentHistory(r.Context(), studentID, from, to)
	if err != nil {
		status := http.StatusInternalServerError
		if calendar.IsClientError(err) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// RunDayEnd is the manual trigger. It always answers with a structured
// summary when the run got as far as producing one; partial dispatch
// failure is a 200.
func (h *Handler) RunDayEnd(w http.ResponseWriter, r *http.Request) {
	var req DayEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Orchestrator.Run(r.Context(), date, dayend.Options{DryRun: req.DryRun})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, dayEndResponse(result, req.DryRun))
}
