// Package timeout tracks the pending auto-deletion task for each ticket
// channel. The registry owns these tasks exclusively: every add replaces
// whatever was scheduled before, so at most one timer is ever live per
// channel without callers having to check first.
package timeout

import (
	"sync"
	"sync/atomic"

	"github.com/spec-kit/claim-bot/internal/clock"
)

// Task is a cancellable handle on one scheduled channel deletion.
type Task struct {
	channelID string
	cancelled atomic.Bool

	mu    sync.Mutex
	timer *clock.Timer
}

// NewTask creates a handle for a channel. The timer is bound after
// construction so the deletion callback can consult the cancellation
// flag even if it races the Bind.
func NewTask(channelID string) *Task {
	return &Task{channelID: channelID}
}

// ChannelID returns the channel this task targets.
func (t *Task) ChannelID() string {
	return t.channelID
}

// Bind attaches the underlying timer.
func (t *Task) Bind(timer *clock.Timer) {
	t.mu.Lock()
	t.timer = timer
	t.mu.Unlock()
	// Cancel may have won the race before the timer existed.
	if t.cancelled.Load() {
		timer.Stop()
	}
}

// Cancel marks the task cancelled and stops the timer. Returns true the
// first time, false on any repeat. A callback that has already started
// running must itself re-check Cancelled before acting.
func (t *Task) Cancel() bool {
	if t.cancelled.Swap(true) {
		return false
	}
	t.mu.Lock()
	timer := t.timer
	t.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	return true
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Registry maps channel ids to their pending deletion task.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Add stores the task for a channel, cancelling and replacing any task
// already registered for it.
func (r *Registry) Add(channelID string, task *Task) {
	r.mu.Lock()
	existing := r.tasks[channelID]
	r.tasks[channelID] = task
	r.mu.Unlock()
	if existing != nil {
		existing.Cancel()
	}
}

// Cancel cancels and removes the task for a channel. Returns whether one
// existed; a second call is a safe no-op returning false.
func (r *Registry) Cancel(channelID string) bool {
	r.mu.Lock()
	task, ok := r.tasks[channelID]
	if ok {
		delete(r.tasks, channelID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	task.Cancel()
	return true
}

// Has reports whether a task is registered for the channel.
func (r *Registry) Has(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[channelID]
	return ok
}

// Forget removes the entry for a channel only if it still points at the
// given task. Fired callbacks use this to drop themselves without
// clobbering a newer timer registered in the meantime.
func (r *Registry) Forget(channelID string, task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.tasks[channelID]; ok && current == task {
		delete(r.tasks, channelID)
	}
}

// Len reports how many channels have pending tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
