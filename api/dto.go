/*
dto.go - Request/response shapes for the HTTP API

CONVENTION:
  Every date crosses this boundary as a YYYY-MM-DD string in the fixed
  zone. There is no time-of-day component anywhere in this subsystem.
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/dayend"
)

// RangeInfoResponse flattens calendar.RangeInfo for the wire.
type RangeInfoResponse struct {
	Start   string                      `json:"start"`
	End     string                      `json:"end"`
	Dates   []string                    `json:"dates"`
	Details map[string]calendar.DayInfo `json:"details"`
}

// DayEndRequest triggers one orchestration run.
type DayEndRequest struct {
	Date   string `json:"date"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// DayEndResponse is the run summary. Always returned, even under
// partial dispatch failure.
type DayEndResponse struct {
	RunID         string                 `json:"runId"`
	Date          string                 `json:"date"`
	AutoCompleted int                    `json:"autoCompleted"`
	SentCount     int                    `json:"sentCount"`
	FailedCount   int                    `json:"failedCount"`
	SkippedScopes int                    `json:"skippedScopes"`
	SkippedReason string                 `json:"skippedReason,omitempty"`
	Errors        []dayend.DispatchError `json:"errors"`
	DryRun        bool                   `json:"dryRun"`
}

func dayEndResponse(r dayend.Result, dryRun bool) DayEndResponse {
	return DayEndResponse{
		RunID:         r.RunID,
		Date:          r.Date.String(),
		AutoCompleted: r.AutoCompleted,
		SentCount:     r.SentCount,
		FailedCount:   r.FailedCount,
		SkippedScopes: r.SkippedScopes,
		SkippedReason: r.SkippedReason,
		Errors:        r.Errors,
		DryRun:        dryRun,
	}
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}
