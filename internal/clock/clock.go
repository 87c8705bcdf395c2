// Package clock supplies the current instant in the portal's civil timezone.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the wall clock pinned to a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock reporting instants in loc (UTC when nil).
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

// Now returns time.Now in the clock's location.
func (s *System) Now() time.Time { return time.Now().In(s.loc) }

// Location returns the civil timezone.
func (s *System) Location() *time.Location { return s.loc }

// Fixed is a manually driven clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewFixed returns a clock frozen at t, reporting in t's location.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t, loc: t.Location()}
}

// Now returns the frozen instant.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Location returns the location of the initial instant.
func (f *Fixed) Location() *time.Location { return f.loc }

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.In(f.loc)
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// DayKey is the civil date of t in loc, formatted YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// LoadLocation resolves an IANA zone name, falling back to UTC on empty input.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
