package timeout

import (
	"testing"
	"time"

	"github.com/spec-kit/claim-bot/internal/clock"
)

func TestAddReplacesExistingTask(t *testing.T) {
	registry := NewRegistry()
	first := NewTask("chan-1")
	second := NewTask("chan-1")

	registry.Add("chan-1", first)
	registry.Add("chan-1", second)

	if !first.Cancelled() {
		t.Fatal("expected first task to be cancelled when replaced")
	}
	if second.Cancelled() {
		t.Fatal("replacement task should not be cancelled")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected 1 registered task, got %d", registry.Len())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	task := NewTask("chan-1")
	registry.Add("chan-1", task)

	if !registry.Cancel("chan-1") {
		t.Fatal("first cancel should report a task existed")
	}
	if registry.Cancel("chan-1") {
		t.Fatal("second cancel should be a no-op")
	}
	if registry.Has("chan-1") {
		t.Fatal("cancelled task should be removed")
	}
}

func TestCancelBeforeBindStopsTimer(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	task := NewTask("chan-1")

	fired := false
	timer := fake.AfterFunc(time.Minute, func() { fired = true })

	task.Cancel()
	task.Bind(timer)

	fake.Advance(2 * time.Minute)
	if fired {
		t.Fatal("timer bound after cancellation should not fire")
	}
}

func TestTaskCancelReturnsTrueOnlyOnce(t *testing.T) {
	task := NewTask("chan-1")
	if !task.Cancel() {
		t.Fatal("first cancel should return true")
	}
	if task.Cancel() {
		t.Fatal("repeat cancel should return false")
	}
}

func TestForgetOnlyRemovesMatchingTask(t *testing.T) {
	registry := NewRegistry()
	old := NewTask("chan-1")
	registry.Add("chan-1", old)

	replacement := NewTask("chan-1")
	registry.Add("chan-1", replacement)

	// The fired callback of the old task must not clobber the newer one.
	registry.Forget("chan-1", old)
	if !registry.Has("chan-1") {
		t.Fatal("forget with a stale task should keep the current entry")
	}

	registry.Forget("chan-1", replacement)
	if registry.Has("chan-1") {
		t.Fatal("forget with the current task should remove the entry")
	}
}
