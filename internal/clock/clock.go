package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time to components that enforce time based rules.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Monotonic wraps a Clock so that successive readings never go backwards.
// Queue ordering relies on joinedAt values that are comparable across calls.
type Monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

func NewMonotonic(src Clock) *Monotonic {
	if src == nil {
		src = System{}
	}
	return &Monotonic{src: src}
}

func (m *Monotonic) Now() time.Time {
	now := m.src.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Before(m.last) {
		now = m.last
	}
	m.last = now
	return now
}

// Fake is a settable clock for tests and simulations.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
