/*
cache.go - TTL cache for built month calendars

PURPOSE:
  Month calendars are expensive to build (one upstream holiday fetch
  plus a custom-holiday query), so built calendars are cached per
  (year, month, country) key with a TTL. A miss rebuilds synchronously,
  blocking only the requesting call; concurrent misses on the same key
  coalesce into one rebuild via singleflight.

DESIGN:
  The cache is an injectable instance constructed once per process and
  passed into the resolver - never a package-level singleton - so tests
  can isolate cache state.

INVARIANT:
  A calendar is replaced whole once its TTL expires. Readers never see
  a partially rebuilt month.

SEE ALSO:
  - resolver.go: the build function handed to GetOrBuild
*/
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a built month calendar stays fresh.
const DefaultTTL = 5 * time.Hour

// MonthKey identifies one cached month calendar.
type MonthKey struct {
	Year    int
	Month   time.Month
	Country string
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d/%s", k.Year, int(k.Month), k.Country)
}

// MonthCalendar holds everything known about one month's non-working
// days. Immutable once built.
type MonthCalendar struct {
	Key            MonthKey
	Sundays        map[string]bool          // date string -> true
	PublicHolidays map[string]Holiday       // date string -> holiday
	CustomHolidays map[string]CustomHoliday // date string -> holiday
	FetchedAt      time.Time
	ExpiresAt      time.Time
}

// IsNonWorking reports whether the given date string is non-working in
// this month.
func (mc *MonthCalendar) IsNonWorking(date string) bool {
	if mc.Sundays[date] {
		return true
	}
	if _, ok := mc.PublicHolidays[date]; ok {
		return true
	}
	_, ok := mc.CustomHolidays[date]
	return ok
}

// CalendarCache caches built month calendars with a TTL.
type CalendarCache struct {
	mu      sync.RWMutex
	entries map[MonthKey]*MonthCalendar
	ttl     time.Duration
	group   singleflight.Group

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewCalendarCache creates a cache. A non-positive ttl falls back to
// DefaultTTL.
func NewCalendarCache(ttl time.Duration) *CalendarCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CalendarCache{
		entries: make(map[MonthKey]*MonthCalendar),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrBuild returns the cached calendar for key, rebuilding it through
// build on a miss or expiry. Concurrent misses on the same key share a
// single build call.
func (c *CalendarCache) GetOrBuild(ctx context.Context, key MonthKey, build func(context.Context, MonthKey) (*MonthCalendar, error)) (*MonthCalendar, error) {
	if mc := c.fresh(key); mc != nil {
		return mc, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A concurrent caller may have completed the build while this
		// one waited on the flight group.
		if mc := c.fresh(key); mc != nil {
			return mc, nil
		}

		mc, err := build(ctx, key)
		if err != nil {
			return nil, err
		}
		now := c.now()
		mc.FetchedAt = now
		mc.ExpiresAt = now.Add(c.ttl)

		c.mu.Lock()
		c.entries[key] = mc
		c.mu.Unlock()
		return mc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MonthCalendar), nil
}

func (c *CalendarCache) fresh(key MonthKey) *MonthCalendar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mc, ok := c.entries[key]
	if !ok || c.now().After(mc.ExpiresAt) {
		return nil
	}
	return mc
}

// Invalidate drops every cached country variant of (year, month).
// Callers that edit custom holidays can use this for immediacy instead
// of waiting out the TTL.
func (c *CalendarCache) Invalidate(year int, month time.Month) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.Year == year && key.Month == month {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of cached months (fresh or expired).
func (c *CalendarCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
