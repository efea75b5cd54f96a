package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock for tests. Time stands still until
// Advance is called; due timers fire synchronously inside Advance, on the
// caller's goroutine, so tests observe their effects without sleeping.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
}

// Fake returns a FakeClock starting at the given instant.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the fake clock passes d from now.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, ft)
	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ft.stopped {
			return false
		}
		ft.stopped = true
		return true
	}}
}

// Sleep advances the fake clock by d, firing any timers that come due.
func (c *FakeClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward and fires due timers in deadline
// order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*fakeTimer
	var remaining []*fakeTimer
	for _, ft := range c.timers {
		if ft.stopped {
			continue
		}
		if !ft.deadline.After(now) {
			// Claimed under the lock: a Stop from here on reports false,
			// matching time.Timer once the callback is committed to run.
			ft.stopped = true
			due = append(due, ft)
		} else {
			remaining = append(remaining, ft)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, ft := range due {
		ft.fn()
	}
}

// PendingTimers reports how many timers are registered and not stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, ft := range c.timers {
		if !ft.stopped {
			count++
		}
	}
	return count
}
