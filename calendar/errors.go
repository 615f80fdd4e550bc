/*
errors.go - Error types for calendar resolution

ERROR CATEGORIES:
  1. Input errors - malformed dates and inverted ranges, rejected at
     the boundary
  2. Upstream errors - holiday source failures; these are recovered
     locally via the fallback dataset and never reach the caller

USAGE:
  if errors.Is(err, calendar.ErrInvalidDate) {
      // 400, not 500
  }
*/
package calendar

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when input cannot be parsed as YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRange is returned when a range's start is after its end.
	ErrInvalidRange = errors.New("invalid range: start after end")

	// ErrUpstreamHolidaySource marks a holiday source failure. It is
	// handled inside the resolver (fallback dataset, logged warning) and
	// is exported only so sources can wrap it consistently.
	ErrUpstreamHolidaySource = errors.New("upstream holiday source failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError reports the input that failed to parse.
type InvalidDateError struct {
	Input string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: want YYYY-MM-DD", e.Input)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// InvalidRangeError reports an inverted range.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: start %s after end %s", e.Start, e.End)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// UpstreamError reports which fetch failed and why. Resolver-internal.
type UpstreamError struct {
	Year    int
	Country string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("holiday source failed for %s/%d: %v", e.Country, e.Year, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamHolidaySource }

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidRange)
}
