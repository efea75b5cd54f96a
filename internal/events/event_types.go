package events

import (
	"time"

	"github.com/spec-kit/claim-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventStageAdvanced  EventType = "ticket_stage_advanced"
	EventTicketRejected EventType = "ticket_rejected"
	EventTicketDeleted  EventType = "ticket_deleted"
	EventChannelExpired EventType = "channel_expired"
	EventOrderFulfilled EventType = "order_fulfilled"
	EventOrderCancelled EventType = "order_cancelled"
)

// Event represents a lifecycle event emitted by the state machine and the
// channel lifecycle manager.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChannelID string      `json:"channel_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	UserID     string `json:"user_id"`
	ServerName string `json:"server_name"`
}

// StageAdvancedPayload payload.
type StageAdvancedPayload struct {
	OldStage domain.TicketStage `json:"old_stage"`
	NewStage domain.TicketStage `json:"new_stage"`
}

// TicketRejectedPayload payload. Reason matches the notification scenario
// sent for the rejection.
type TicketRejectedPayload struct {
	OrderID string `json:"order_id,omitempty"`
	Reason  string `json:"reason"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Cause string `json:"cause"`
}

// ChannelExpiredPayload payload.
type ChannelExpiredPayload struct {
	Reason string `json:"reason"`
}

// OrderFulfilledPayload payload.
type OrderFulfilledPayload struct {
	OrderID string `json:"order_id"`
	Actor   string `json:"actor"`
}

// OrderCancelledPayload payload.
type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	Actor   string `json:"actor,omitempty"`
}
