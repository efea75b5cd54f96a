// Package dto defines the ops API request and response shapes.
package dto

import (
	"time"

	"github.com/spec-kit/claim-bot/internal/domain"
)

// AdminLoginRequest is the operator login payload.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginResponse carries the issued bearer token.
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketResponse is the operator view of one ticket.
type TicketResponse struct {
	ChannelID      string    `json:"channel_id"`
	UserID         string    `json:"user_id"`
	ServerName     string    `json:"server_name"`
	Stage          string    `json:"stage"`
	Language       *string   `json:"language,omitempty"`
	OrderID        *string   `json:"order_id,omitempty"`
	RobloxUsername *string   `json:"roblox_username,omitempty"`
	Timezone       *string   `json:"timezone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FromTicket maps a domain ticket to its response shape.
func FromTicket(ticket domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ChannelID:      ticket.ChannelID,
		UserID:         ticket.UserID,
		ServerName:     ticket.ServerName,
		Stage:          string(ticket.Stage),
		OrderID:        ticket.OrderID,
		RobloxUsername: ticket.RobloxUsername,
		Timezone:       ticket.Timezone,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
	if ticket.Language != nil {
		lang := string(*ticket.Language)
		resp.Language = &lang
	}
	return resp
}

// CleanupRequest scopes an orphan sweep to one server, or all when empty.
type CleanupRequest struct {
	Server string `json:"server"`
}

// CleanupResponse reports sweep results.
type CleanupResponse struct {
	Deleted int `json:"deleted"`
}

// PurgeRequest names the server whose completed channels are purged.
type PurgeRequest struct {
	Server string `json:"server"`
}

// PurgeResponse reports purge results.
type PurgeResponse struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}
