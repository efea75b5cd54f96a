// Package clock provides an injectable time abstraction so timer-driven
// code (inactivity deletion, cleanup pacing) can be tested
// deterministically. Production code injects Real(); tests inject Fake()
// and advance time explicitly.
package clock

import "time"

// Clock abstracts the time operations the bot needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine. The returned Timer cancels the pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep pauses the caller for at least duration d.
	Sleep(d time.Duration)
}

// Timer represents a scheduled call. Stop prevents the call from firing;
// it returns false if the timer already fired or was stopped.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the pending call. Safe to call more than once.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

type realClock struct{}

// Real returns the standard-library-backed clock.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
