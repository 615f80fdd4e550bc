/*
source.go - Public holiday sources

PURPOSE:
  Fetches the public holiday list for a (year, country) pair. The remote
  source is unreliable, so every fetch carries a hard timeout and a
  failure falls back to a static per-country dataset. The resolver
  guarantees this path never propagates an error to its caller.

SOURCES:
  HTTPHolidaySource: Nager.Date-style JSON API
                     GET {base}/PublicHolidays/{year}/{country}
  FallbackHolidays:  static dataset built from rickar/cal fixed-date
                     holidays plus a movable-festival table

SEE ALSO:
  - resolver.go: fetchPublicHolidays wires source + fallback together
*/
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// Holiday is a named public holiday on a specific date.
type Holiday struct {
	Date Date   `json:"date"`
	Name string `json:"name"`
}

// CustomHoliday is an administrator-declared holiday.
type CustomHoliday struct {
	Date        Date   `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// HolidaySource fetches public holidays for a year/country. May fail or
// time out; callers must treat it as unreliable.
type HolidaySource interface {
	FetchYear(ctx context.Context, year int, country string) ([]Holiday, error)
}

// CustomHolidayStore lists administrator-declared holidays in [start, end].
type CustomHolidayStore interface {
	ListInRange(ctx context.Context, start, end Date) ([]CustomHoliday, error)
}

// =============================================================================
// HTTP SOURCE
// =============================================================================

// DefaultFetchTimeout bounds a single upstream holiday fetch.
const DefaultFetchTimeout = 3 * time.Second

// HTTPHolidaySource fetches public holidays from a Nager.Date-compatible
// API: GET {BaseURL}/PublicHolidays/{year}/{countryCode}.
type HTTPHolidaySource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPHolidaySource creates a source with the hard default timeout.
func NewHTTPHolidaySource(baseURL string) *HTTPHolidaySource {
	return &HTTPHolidaySource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: DefaultFetchTimeout},
	}
}

type nagerHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// FetchYear fetches the year's public holidays. Every failure mode
// (network, timeout, status, parse) is wrapped in UpstreamError.
func (s *HTTPHolidaySource) FetchYear(ctx context.Context, year int, country string) ([]Holiday, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", s.BaseURL, year, country)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{Year: year, Country: country, Cause: err}
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Year: year, Country: country, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Year: year, Country: country,
			Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var raw []nagerHoliday
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &UpstreamError{Year: year, Country: country, Cause: err}
	}

	holidays := make([]Holiday, 0, len(raw))
	for _, h := range raw {
		d, err := ParseDate(h.Date)
		if err != nil {
			return nil, &UpstreamError{Year: year, Country: country,
				Cause: fmt.Errorf("bad date %q in response", h.Date)}
		}
		name := h.LocalName
		if name == "" {
			name = h.Name
		}
		holidays = append(holidays, Holiday{Date: d, Name: name})
	}
	return holidays, nil
}

// =============================================================================
// STATIC FALLBACK DATASET
// =============================================================================

// Fixed-date and Easter-relative holidays, computed per year.
var fixedIndiaHolidays = []*cal.Holiday{
	{Name: "Republic Day", Type: cal.ObservancePublic, Month: time.January, Day: 26, Func: cal.CalcDayOfMonth},
	{Name: "Good Friday", Type: cal.ObservancePublic, Offset: -2, Func: cal.CalcEasterOffset},
	{Name: "Independence Day", Type: cal.ObservancePublic, Month: time.August, Day: 15, Func: cal.CalcDayOfMonth},
	{Name: "Gandhi Jayanti", Type: cal.ObservancePublic, Month: time.October, Day: 2, Func: cal.CalcDayOfMonth},
	{Name: "Christmas Day", Type: cal.ObservancePublic, Month: time.December, Day: 25, Func: cal.CalcDayOfMonth},
}

var fixedUSHolidays = []*cal.Holiday{
	us.NewYear,
	us.MlkDay,
	us.MemorialDay,
	us.IndependenceDay,
	us.LaborDay,
	us.ThanksgivingDay,
	us.ChristmasDay,
}

// Lunar-calendar festivals have no closed-form rule in rickar/cal, so the
// gazetted dates are tabled per year.
var movableIndiaHolidays = map[int][]struct {
	month time.Month
	day   int
	name  string
}{
	2024: {
		{time.March, 25, "Holi"},
		{time.April, 11, "Eid al-Fitr"},
		{time.October, 12, "Dussehra"},
		{time.November, 1, "Diwali"},
	},
	2025: {
		{time.March, 14, "Holi"},
		{time.March, 31, "Eid al-Fitr"},
		{time.October, 2, "Dussehra"},
		{time.October, 20, "Diwali"},
	},
	2026: {
		{time.March, 4, "Holi"},
		{time.March, 20, "Eid al-Fitr"},
		{time.October, 20, "Dussehra"},
		{time.November, 8, "Diwali"},
	},
}

// FallbackHolidays returns the static dataset for a (year, country) pair.
// Returns an empty slice for countries or years it does not know, in
// which case the year is treated as holiday-free.
func FallbackHolidays(year int, country string) []Holiday {
	var defs []*cal.Holiday
	switch country {
	case "IN":
		defs = fixedIndiaHolidays
	case "US":
		defs = fixedUSHolidays
	default:
		return nil
	}

	var holidays []Holiday
	for _, def := range defs {
		actual, _ := def.Calc(year)
		if actual.IsZero() {
			continue
		}
		holidays = append(holidays, Holiday{
			Date: NewDate(actual.Year(), actual.Month(), actual.Day()),
			Name: def.Name,
		})
	}

	if country == "IN" {
		for _, m := range movableIndiaHolidays[year] {
			holidays = append(holidays, Holiday{
				Date: NewDate(year, m.month, m.day),
				Name: m.name,
			})
		}
	}
	return holidays
}

// StaticHolidaySource serves a fixed holiday list; used in tests and as
// an offline stand-in for the remote API.
type StaticHolidaySource struct {
	Holidays map[int][]Holiday // keyed by year
}

func (s *StaticHolidaySource) FetchYear(_ context.Context, year int, _ string) ([]Holiday, error) {
	return s.Holidays[year], nil
}
