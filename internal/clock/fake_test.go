package clock

import (
	"testing"
	"time"
)

func TestFakeClockFiresDueTimersInOrder(t *testing.T) {
	fake := Fake(time.Unix(0, 0))

	var order []string
	fake.AfterFunc(2*time.Minute, func() { order = append(order, "second") })
	fake.AfterFunc(time.Minute, func() { order = append(order, "first") })

	fake.Advance(90 * time.Second)
	if len(order) != 1 || order[0] != "first" {
		t.Fatalf("expected only the earlier timer to fire, got %v", order)
	}

	fake.Advance(time.Minute)
	if len(order) != 2 || order[1] != "second" {
		t.Fatalf("expected both timers fired in order, got %v", order)
	}
	if fake.PendingTimers() != 0 {
		t.Fatalf("expected no pending timers, got %d", fake.PendingTimers())
	}
}

func TestFakeClockStopPreventsFiring(t *testing.T) {
	fake := Fake(time.Unix(0, 0))

	fired := false
	timer := fake.AfterFunc(time.Minute, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("stop on a pending timer should return true")
	}
	if timer.Stop() {
		t.Fatal("repeat stop should return false")
	}

	fake.Advance(2 * time.Minute)
	if fired {
		t.Fatal("stopped timer must not fire")
	}
}

func TestFakeClockStopOfDueTimerReportsExpired(t *testing.T) {
	fake := Fake(time.Unix(0, 0))

	var fired []string
	var second *Timer
	fake.AfterFunc(time.Minute, func() {
		fired = append(fired, "first")
		// Both timers are already committed to this Advance, so the stop
		// must report expired and must not swallow the second firing.
		if second.Stop() {
			t.Error("stop on a due timer should return false")
		}
	})
	second = fake.AfterFunc(2*time.Minute, func() { fired = append(fired, "second") })

	fake.Advance(2 * time.Minute)
	if len(fired) != 2 || fired[0] != "first" || fired[1] != "second" {
		t.Fatalf("expected both due timers fired in order, got %v", fired)
	}
}

func TestFakeClockSleepAdvances(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	start := fake.Now()

	fake.Sleep(30 * time.Second)
	if got := fake.Now().Sub(start); got != 30*time.Second {
		t.Fatalf("expected clock advanced 30s, got %v", got)
	}
}
