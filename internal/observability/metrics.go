package observability

import (
	"context"
	"strconv"
	"sync"

	"github.com/spec-kit/claim-bot/internal/events"
)

// Metrics provides basic in-memory counters over ticket lifecycle events.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]int64)}
}

// RegisterHandlers subscribes the counters to lifecycle events.
func (m *Metrics) RegisterHandlers(dispatcher events.Dispatcher) {
	if m == nil || dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventStageAdvanced,
		events.EventTicketRejected,
		events.EventTicketDeleted,
		events.EventChannelExpired,
		events.EventOrderFulfilled,
		events.EventOrderCancelled,
	} {
		dispatcher.Subscribe(eventType, m.handleEvent)
	}
}

func (m *Metrics) handleEvent(_ context.Context, event events.Event) error {
	m.Increment(string(event.Type))
	if payload, ok := event.Payload.(events.TicketRejectedPayload); ok {
		m.Increment("rejection." + payload.Reason)
	}
	return nil
}

// RecordRequest increments the counter for one served request.
func (m *Metrics) RecordRequest(path, method string, status int) {
	m.Increment("http." + method + "|" + path + "|" + strconv.Itoa(status))
}

// RecordError increments the counter for a failed request.
func (m *Metrics) RecordError(path, method, code string) {
	m.Increment("http_error." + method + "|" + path + "|" + code)
}

// Increment bumps a named counter.
func (m *Metrics) Increment(key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for key, value := range m.counters {
		out[key] = value
	}
	return out
}
