// Package clock supplies wall-clock time and calendar-day tokens to the
// credit engine. Everything temporal in the engine goes through a Clock so
// day boundaries and gate countdowns can be driven deterministically.
package clock

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// System is the production clock.
type System struct{}

// Now returns time.Now.
func (System) Now() time.Time { return time.Now() }

const dayLayout = "2006-01-02"

// Day is a calendar-day token such as "2025-03-14". Two instants belong to
// the same day when their tokens are equal in the principal's location.
type Day string

// DayOf returns the calendar day of t in loc. A nil loc means UTC.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(dayLayout))
}

// Today is shorthand for DayOf(c.Now(), loc).
func Today(c Clock, loc *time.Location) Day {
	return DayOf(c.Now(), loc)
}

// ParseDay validates a token produced by DayOf.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", err
	}
	return Day(s), nil
}

func (d Day) String() string { return string(d) }

// IsZero reports whether the token was never set.
func (d Day) IsZero() bool { return d == "" }

// Before reports whether d is an earlier day than o. Tokens sort
// chronologically as strings.
func (d Day) Before(o Day) bool { return d < o }

// LoadLocation resolves an IANA zone name, falling back to UTC for empty or
// unknown names.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock frozen at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
