/*
resolver.go - Non-working day resolution

PURPOSE:
  Answers "is this date non-working, and why" for points and ranges.
  Merges three sources into one month calendar per (year, month,
  country): Sunday arithmetic, the public holiday source (with fallback)
  and the custom holiday store.

FAILURE POLICY:
  A public-holiday fetch failure NEVER reaches the caller: the resolver
  logs a warning and serves the static fallback dataset, or an empty
  holiday set when the fallback has nothing for the year. Custom-holiday
  store failures are persistence errors and abort only the month build
  that needed them.

SEE ALSO:
  - cache.go: month calendar cache
  - source.go: holiday sources and the fallback dataset
*/
package calendar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"
)

// DayInfo describes one date's working status.
type DayInfo struct {
	Date          Date           `json:"date"`
	IsNonWorking  bool           `json:"isNonWorking"`
	IsSunday      bool           `json:"isSunday"`
	PublicHoliday *Holiday       `json:"publicHoliday,omitempty"`
	CustomHoliday *CustomHoliday `json:"customHoliday,omitempty"`
	Reasons       []string       `json:"reasons"`
}

// RangeInfo describes the non-working dates inside a range.
type RangeInfo struct {
	// Dates holds the non-working dates, ordered.
	Dates []Date `json:"dates"`
	// Details maps every non-working date string to its DayInfo.
	Details map[string]DayInfo `json:"details"`
}

// Resolver answers non-working-day queries from cached month calendars.
type Resolver struct {
	source  HolidaySource
	custom  CustomHolidayStore
	cache   *CalendarCache
	country string
	timeout time.Duration
}

// NewResolver wires a resolver. The cache must be a per-process
// instance; the resolver never creates its own.
func NewResolver(source HolidaySource, custom CustomHolidayStore, cache *CalendarCache, country string) *Resolver {
	return &Resolver{
		source:  source,
		custom:  custom,
		cache:   cache,
		country: country,
		timeout: DefaultFetchTimeout,
	}
}

// DayInfo resolves a single date.
func (r *Resolver) DayInfo(ctx context.Context, date Date) (DayInfo, error) {
	mc, err := r.monthFor(ctx, date)
	if err != nil {
		return DayInfo{}, err
	}
	return r.dayFrom(mc, date), nil
}

// RangeInfo resolves every date in [start, end], merging all overlapping
// month calendars. Fails with InvalidRangeError when start > end.
func (r *Resolver) RangeInfo(ctx context.Context, start, end Date) (RangeInfo, error) {
	if start.After(end) {
		return RangeInfo{}, &InvalidRangeError{Start: start, End: end}
	}

	info := RangeInfo{Details: make(map[string]DayInfo)}

	var mc *MonthCalendar
	for _, d := range DatesBetween(start, end) {
		if mc == nil || mc.Key.Year != d.Year() || mc.Key.Month != d.Month() {
			var err error
			mc, err = r.monthFor(ctx, d)
			if err != nil {
				return RangeInfo{}, err
			}
		}
		day := r.dayFrom(mc, d)
		if day.IsNonWorking {
			info.Dates = append(info.Dates, d)
			info.Details[d.String()] = day
		}
	}
	return info, nil
}

// NonWorkingSet resolves a range into a date-string set, the shape the
// aggregator consumes.
func (r *Resolver) NonWorkingSet(ctx context.Context, start, end Date) (map[string]bool, error) {
	info, err := r.RangeInfo(ctx, start, end)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(info.Dates))
	for _, d := range info.Dates {
		set[d.String()] = true
	}
	return set, nil
}

func (r *Resolver) monthFor(ctx context.Context, date Date) (*MonthCalendar, error) {
	key := date.MonthKey()
	key.Country = r.country
	return r.cache.GetOrBuild(ctx, key, r.buildMonth)
}

func (r *Resolver) dayFrom(mc *MonthCalendar, date Date) DayInfo {
	ds := date.String()
	info := DayInfo{
		Date:     date,
		IsSunday: mc.Sundays[ds],
		Reasons:  []string{},
	}
	if info.IsSunday {
		info.Reasons = append(info.Reasons, "sunday")
	}
	if h, ok := mc.PublicHolidays[ds]; ok {
		hc := h
		info.PublicHoliday = &hc
		info.Reasons = append(info.Reasons, fmt.Sprintf("public holiday: %s", h.Name))
	}
	if ch, ok := mc.CustomHolidays[ds]; ok {
		chc := ch
		info.CustomHoliday = &chc
		info.Reasons = append(info.Reasons, fmt.Sprintf("custom holiday: %s", ch.Title))
	}
	info.IsNonWorking = mc.IsNonWorking(ds)
	return info
}

// buildMonth assembles one month calendar from scratch.
func (r *Resolver) buildMonth(ctx context.Context, key MonthKey) (*MonthCalendar, error) {
	mc := &MonthCalendar{
		Key:            key,
		Sundays:        make(map[string]bool),
		PublicHolidays: make(map[string]Holiday),
		CustomHolidays: make(map[string]CustomHoliday),
	}

	start := StartOfMonth(key.Year, key.Month)
	end := EndOfMonth(key.Year, key.Month)

	// Pure weekday arithmetic, no calls out.
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsSunday() {
			mc.Sundays[d.String()] = true
		}
	}

	for _, h := range r.fetchPublicHolidays(ctx, key.Year) {
		if h.Date.Year() == key.Year && h.Date.Month() == key.Month {
			mc.PublicHolidays[h.Date.String()] = h
		}
	}

	if r.custom != nil {
		customs, err := r.custom.ListInRange(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("list custom holidays for %s: %w", key, err)
		}
		for _, ch := range customs {
			mc.CustomHolidays[ch.Date.String()] = ch
		}
	}

	return mc, nil
}

// fetchPublicHolidays calls the source under a hard timeout and degrades
// to the fallback dataset on any failure. This path never returns an
// error; an unknown year simply has no public holidays.
func (r *Resolver) fetchPublicHolidays(ctx context.Context, year int) []Holiday {
	if r.source != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		holidays, err := r.source.FetchYear(fetchCtx, year, r.country)
		if err == nil {
			return holidays
		}
		log.Printf("[Resolver] holiday source failed for %s/%d, using fallback: %v", r.country, year, err)
	}

	fallback := FallbackHolidays(year, r.country)
	if len(fallback) == 0 {
		log.Printf("[Resolver] no fallback holidays for %s/%d, treating year as holiday-free", r.country, year)
	}
	return fallback
}

// SortedDates returns the range info's dates as strings, ordered. Handy
// for stable report output.
func (ri RangeInfo) SortedDates() []string {
	out := make([]string, 0, len(ri.Dates))
	for _, d := range ri.Dates {
		out = append(out, d.String())
	}
	sort.Strings(out)
	return out
}
