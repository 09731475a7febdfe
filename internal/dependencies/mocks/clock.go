package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/wordsync/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// Timers only fire from Advance or Set, synchronously on the caller's goroutine.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	timers      []*mockTimer
}

type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// AfterFunc registers f to run once the clock is advanced past d
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{clock: c, deadline: c.currentTime.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by the given duration, firing due timers
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.currentTime.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set sets the clock to the given time, firing due timers in deadline order
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.currentTime = t
	var due []*mockTimer
	pending := c.timers[:0]
	for _, timer := range c.timers {
		switch {
		case timer.stopped:
		case !timer.deadline.After(t):
			timer.fired = true
			due = append(due, timer)
		default:
			pending = append(pending, timer)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, timer := range due {
		timer.fn()
	}
}

// PendingTimers returns how many timers are armed
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
