// Package clock provides the time source used for first/last bookkeeping.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, always in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a clock that only moves when told to. It is safe for concurrent use.
type Manual struct {
	now  time.Time
	step time.Duration
	mu   sync.Mutex
}

// NewManual returns a clock starting at start. If step is non-zero,
// every call to Now advances the clock by step after reading it.
func NewManual(start time.Time, step time.Duration) *Manual {
	return &Manual{now: start.UTC(), step: step}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now
	m.now = m.now.Add(m.step)
	return t
}

// Advance moves the clock forward (or backward for negative d).
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}
