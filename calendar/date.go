/*
Package calendar resolves which dates are non-working days.

PURPOSE:
  A date is non-working when it is a Sunday, a public holiday, or an
  institute-declared custom holiday. This package merges those three
  sources into cached month calendars and answers point and range
  queries against them.

KEY CONCEPTS IN THIS FILE (date.go):
  - Date: a day-granularity point in the fixed zone (UTC)
  - The wire format: every date crosses this package's boundary as a
    YYYY-MM-DD string, never with a time-of-day component

DESIGN PRINCIPLES:
  1. Purity: Sunday detection is weekday arithmetic, it never calls out
  2. Strictness: malformed input is rejected at the boundary with
     InvalidDateError and never reaches calendar logic
  3. Single zone: all dates normalize to midnight UTC

SEE ALSO:
  - resolver.go: DayInfo/RangeInfo queries over month calendars
  - cache.go: TTL cache with per-key rebuild coalescing
  - source.go: public holiday fetch and static fallback
*/
package calendar

import (
	"encoding/json"
	"time"
)

// DateLayout is the only accepted wire format for dates.
const DateLayout = "2006-01-02"

// Date is a day-granularity point in time. The zero value is not a
// valid date; construct via NewDate, ParseDate or Today.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Returns InvalidDateError on
// any other shape, including empty input.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &InvalidDateError{Input: s}
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// Today returns the current date in the fixed zone.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsSunday() bool        { return d.t.Weekday() == time.Sunday }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string { return d.t.Format(DateLayout) }

// MarshalJSON emits the wire format, a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts only the wire format.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthKey returns the calendar key this date belongs to, without a
// country; the resolver fills the country in.
func (d Date) MonthKey() MonthKey {
	return MonthKey{Year: d.t.Year(), Month: d.t.Month()}
}

// DaysBetween returns the number of whole days from 'from' to 'to'.
// Negative when 'to' is earlier.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// DatesBetween returns every date in [from, to], inclusive and ordered.
// Returns nil when from is after to.
func DatesBetween(from, to Date) []Date {
	if from.After(to) {
		return nil
	}
	dates := make([]Date, 0, DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// StartOfMonth and EndOfMonth bound a month key's dates.
func StartOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, 1)
}

func EndOfMonth(year int, month time.Month) Date {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return NewDate(t.Year(), t.Month(), t.Day())
}
