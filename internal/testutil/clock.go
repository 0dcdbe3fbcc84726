package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"scenedeck/internal/deck"
)

// StubClock returns a settable time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}

// FakeTimers is a deck.TimerFactory driven by a StubClock. Timers fire only
// when Advance moves virtual time past their deadline; callbacks run on the
// goroutine calling Advance.
type FakeTimers struct {
	mu     sync.Mutex
	clock  *StubClock
	timers []*fakeTimer
}

type fakeTimer struct {
	owner   *FakeTimers
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewFakeTimers creates a timer factory on top of clock.
func NewFakeTimers(clock *StubClock) *FakeTimers {
	return &FakeTimers{clock: clock}
}

func (ft *FakeTimers) AfterFunc(d time.Duration, f func()) deck.Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{owner: ft, at: ft.clock.Now().Add(d), seq: len(ft.timers), f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward by d, firing due timers in deadline
// order. The clock is set to each timer's deadline before it fires.
func (ft *FakeTimers) Advance(d time.Duration) {
	target := ft.clock.Now().Add(d)
	for {
		next := ft.nextDue(target)
		if next == nil {
			break
		}
		if next.at.After(ft.clock.Now()) {
			ft.clock.Set(next.at)
		}
		next.f()
	}
	ft.clock.Set(target)
}

// Pending returns the number of timers that have neither fired nor stopped.
func (ft *FakeTimers) Pending() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (ft *FakeTimers) nextDue(target time.Time) *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var due []*fakeTimer
	for _, t := range ft.timers {
		if !t.stopped && !t.fired && !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	due[0].fired = true
	return due[0]
}

var _ deck.TimerFactory = (*FakeTimers)(nil)
