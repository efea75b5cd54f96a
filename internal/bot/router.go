// Package bot routes normalized chat-platform events into the ticket
// service. The SDK binding turns raw gateway payloads into these calls;
// nothing here talks to the wire format directly.
package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/notify"
	"github.com/spec-kit/claim-bot/internal/service"
	apperrors "github.com/spec-kit/claim-bot/pkg/util"
)

// Component ids the bindings register for the claim flow.
const (
	ComponentCreateTicket   = notify.ComponentCreateTicket
	ComponentLanguageSelect = notify.ComponentLanguageSelect
	ComponentTimezoneSelect = notify.ComponentTimezoneSelect
)

// Staff command names.
const (
	CommandFulfillOrder    = "fulfill-order"
	CommandCancelOrder     = "cancel-order"
	CommandCancelTicket    = "cancel-ticket"
	CommandDeleteTicket    = "delete-ticket"
	CommandDeleteCompleted = "delete-completed"
)

// IncomingMessage is a channel message as seen by the router.
type IncomingMessage struct {
	GuildID   string
	ChannelID string
	UserID    string
	Content   string
	FromBot   bool
}

// Router dispatches gateway events to the ticket service.
type Router struct {
	service *service.TicketService
	servers config.ServerTable
	logger  *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(svc *service.TicketService, servers config.ServerTable, logger *zap.Logger) *Router {
	return &Router{service: svc, servers: servers, logger: logger}
}

// OnMessage handles every channel message. Messages outside the order
// verification flow fall through silently inside the service; only
// unexpected failures surface here.
func (r *Router) OnMessage(ctx context.Context, msg IncomingMessage) {
	if msg.FromBot {
		return
	}
	if err := r.service.OnOrderIDSubmitted(ctx, msg.ChannelID, msg.UserID, msg.Content); err != nil {
		r.logger.Error("message handler failed",
			zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// OnCreateTicket handles the claim button. The returned error, if any, is
// a domain error the binding renders as an ephemeral reply.
func (r *Router) OnCreateTicket(ctx context.Context, guildID, userID, userName string) error {
	server, ok := r.servers.ByGuild(guildID)
	if !ok {
		return apperrors.NewNotFound("server", map[string]any{"guild_id": guildID})
	}
	_, err := r.service.OnTicketCreateRequested(ctx, userID, userName, server.Name)
	return err
}

// OnLanguageSelect handles the language dropdown.
func (r *Router) OnLanguageSelect(ctx context.Context, channelID, userID, value string) error {
	return r.service.OnLanguageChosen(ctx, channelID, userID, domain.Language(value))
}

// OnTimezoneSelect handles the timezone dropdown.
func (r *Router) OnTimezoneSelect(ctx context.Context, channelID, userID, value string) error {
	return r.service.OnTimezoneChosen(ctx, channelID, userID, value)
}

// OnStaffCommand dispatches a staff slash command invoked inside a ticket
// channel or, for cancel-order and delete-completed, anywhere in a guild.
func (r *Router) OnStaffCommand(ctx context.Context, command, guildID, channelID, actorID, orderID string) error {
	switch command {
	case CommandFulfillOrder:
		return r.service.StaffFulfill(ctx, channelID, actorID)
	case CommandCancelTicket:
		return r.service.StaffCancel(ctx, channelID, actorID)
	case CommandCancelOrder:
		server, ok := r.servers.ByGuild(guildID)
		if !ok {
			return apperrors.NewNotFound("server", map[string]any{"guild_id": guildID})
		}
		return r.service.StaffCancelOrder(ctx, orderID, actorID, server.Name)
	case CommandDeleteTicket:
		return r.service.StaffDelete(ctx, channelID, actorID)
	case CommandDeleteCompleted:
		server, ok := r.servers.ByGuild(guildID)
		if !ok {
			return apperrors.NewNotFound("server", map[string]any{"guild_id": guildID})
		}
		_, _, err := r.service.PurgeCompleted(ctx, server.Name, actorID)
		return err
	default:
		return apperrors.NewValidationError("unknown command", map[string]any{"command": command})
	}
}
