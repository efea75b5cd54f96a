package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/events"
	"github.com/spec-kit/claim-bot/internal/notify"
	"github.com/spec-kit/claim-bot/internal/platform"
	"github.com/spec-kit/claim-bot/internal/repository"
	apperrors "github.com/spec-kit/claim-bot/pkg/util"
)

// riskInvalidator is implemented by the cached commerce service; plain
// clients simply skip invalidation.
type riskInvalidator interface {
	InvalidateRisk(ctx context.Context, orderID string)
}

// StaffFulfill marks the ticket's order fulfilled: remote fulfillment of
// every open line item, local order and ticket completion, then the
// channel/customer ceremony (rename, DM, role, transcript) where failures
// are logged but never roll the fulfillment back.
func (s *TicketService) StaffFulfill(ctx context.Context, channelID, actorID string) error {
	unlock := s.lockChannel(channelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannel(ctx, channelID, true)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	if ticket.Stage.Terminal() {
		return apperrors.NewTerminalStage(string(ticket.Stage))
	}
	if ticket.OrderID == nil {
		return apperrors.NewValidationError("ticket has no verified order yet", nil)
	}
	orderID := *ticket.OrderID

	server, err := s.requireAdmin(ctx, ticket.ServerName, actorID)
	if err != nil {
		return err
	}

	details, err := s.commerce.FulfillableLineItems(ctx, orderID)
	if err != nil {
		return err
	}
	if len(details) == 0 {
		return apperrors.NewConflict("order has no fulfillable line items", map[string]any{
			"order_id": orderID,
		})
	}
	fulfilled := 0
	for _, detail := range details {
		ok, err := s.commerce.FulfillLineItems(ctx, detail)
		if err != nil || !ok {
			s.logger.Error("fulfillment failed for fulfillment order",
				zap.String("order_id", orderID),
				zap.String("fulfillment_order_id", detail.FulfillmentOrderID),
				zap.Error(err))
			continue
		}
		fulfilled++
	}
	if fulfilled == 0 {
		return apperrors.NewConflict("commerce rejected the fulfillment", map[string]any{
			"order_id": orderID,
		})
	}

	if _, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCompleted); err != nil {
		return err
	}
	completedStage := domain.StageCompleted
	if _, err := s.tickets.Update(ctx, channelID, repository.TicketUpdate{Stage: &completedStage}); err != nil {
		return err
	}
	s.registry.Cancel(channelID)

	lang := s.ticketLanguage(ticket)
	s.renameTicketChannel(ctx, channelID, "completed-", "Order fulfilled")
	if err := s.notifier.SendDirect(ctx, ticket.UserID, lang, notify.ScenarioCompletion, notify.Params{
		"orderId":        orderID,
		"reviewsChannel": server.ReviewsChannel,
	}); err != nil {
		s.logger.Warn("failed to DM completion notice",
			zap.String("user_id", ticket.UserID), zap.Error(err))
	}
	if server.CustomerRoleID != "" {
		if err := s.platform.AddRole(ctx, server.GuildID, ticket.UserID, server.CustomerRoleID); err != nil {
			s.logger.Warn("failed to grant customer role",
				zap.String("user_id", ticket.UserID), zap.Error(err))
		}
	}
	if server.TranscriptID != "" {
		if err := s.notifier.Send(ctx, server.TranscriptID, domain.LanguageEnglish, notify.ScenarioTranscript, notify.Params{
			"orderId":        orderID,
			"channelId":      channelID,
			"userId":         ticket.UserID,
			"robloxUsername": deref(ticket.RobloxUsername),
			"timezone":       deref(ticket.Timezone),
			"actor":          actorID,
		}); err != nil {
			s.logger.Warn("failed to post transcript", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:      events.EventOrderFulfilled,
		ChannelID: channelID,
		Payload:   events.OrderFulfilledPayload{OrderID: orderID, Actor: actorID},
	})
	s.logger.Info("fulfilled order",
		zap.String("channel_id", channelID),
		zap.String("order_id", orderID),
		zap.String("actor", actorID))
	return nil
}

// StaffCancel cancels the ticket's order (remote and local) and tears the
// ticket down, leaving the renamed channel up briefly so the user sees
// the outcome.
func (s *TicketService) StaffCancel(ctx context.Context, channelID, actorID string) error {
	unlock := s.lockChannel(channelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannel(ctx, channelID, false)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	if ticket.Stage.Terminal() {
		return apperrors.NewTerminalStage(string(ticket.Stage))
	}
	if ticket.OrderID == nil {
		return apperrors.NewValidationError("ticket has no verified order yet", nil)
	}
	orderID := *ticket.OrderID

	if _, err := s.requireAdmin(ctx, ticket.ServerName, actorID); err != nil {
		return err
	}

	if err := s.cancelOrderEverywhere(ctx, orderID, actorID); err != nil {
		return err
	}
	return s.teardownCancelledTicket(ctx, ticket, actorID)
}

// StaffCancelOrder cancels an order by id, without requiring an open
// ticket. When an active ticket does reference the order it is torn down
// the same way StaffCancel would.
func (s *TicketService) StaffCancelOrder(ctx context.Context, orderID, actorID, serverName string) error {
	if _, err := s.requireAdmin(ctx, serverName, actorID); err != nil {
		return err
	}

	if err := s.cancelOrderEverywhere(ctx, orderID, actorID); err != nil {
		return err
	}

	ticket, err := s.tickets.GetActiveByOrder(ctx, orderID, serverName)
	if err != nil {
		return err
	}
	if ticket == nil {
		return nil
	}

	unlock := s.lockChannel(ticket.ChannelID)
	defer unlock()
	return s.teardownCancelledTicket(ctx, ticket, actorID)
}

// cancelOrderEverywhere cancels remotely (idempotent on already-cancelled
// orders), mirrors the status locally and drops the cached risk view.
func (s *TicketService) cancelOrderEverywhere(ctx context.Context, orderID, actorID string) error {
	ok, err := s.commerce.CancelOrder(ctx, orderID, "Cancelled by support staff", true, true)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewConflict("commerce rejected the cancellation", map[string]any{
			"order_id": orderID,
		})
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled)
	if err != nil {
		return err
	}
	if !updated {
		s.logger.Warn("no local order record to cancel", zap.String("order_id", orderID))
	}
	if inv, ok := s.commerce.(riskInvalidator); ok {
		inv.InvalidateRisk(ctx, orderID)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventOrderCancelled,
		Payload: events.OrderCancelledPayload{OrderID: orderID, Actor: actorID},
	})
	return nil
}

// teardownCancelledTicket drops the record, renames the channel to the
// cancelled pattern and schedules its deletion.
func (s *TicketService) teardownCancelledTicket(ctx context.Context, ticket *domain.Ticket, actorID string) error {
	channelID := ticket.ChannelID
	lang := s.ticketLanguage(ticket)

	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioCancelRefund, notify.Params{
		"orderId": deref(ticket.OrderID),
	}); err != nil {
		s.logger.Warn("failed to send cancellation notice", zap.String("channel_id", channelID), zap.Error(err))
	}

	deleted, err := s.tickets.Delete(ctx, channelID)
	if err != nil {
		return err
	}
	if !deleted {
		s.logger.Warn("ticket record already gone during cancellation",
			zap.String("channel_id", channelID))
	}
	s.registry.Cancel(channelID)

	name := s.renameTicketChannel(ctx, channelID, "cancelled-", "Order cancelled")
	s.lifecycle.ScheduleDeletion(platform.Channel{ID: channelID, Name: name},
		s.timing.CancelledDeleteDelay(), "Cancelled Ticket", nil)

	s.publish(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		ChannelID: channelID,
		Payload:   events.TicketDeletedPayload{Cause: "cancelled"},
	})
	return nil
}

// StaffDelete removes a ticket channel immediately. It also works on
// channels with no backing record, so staff can clear leftovers by hand.
func (s *TicketService) StaffDelete(ctx context.Context, channelID, actorID string) error {
	unlock := s.lockChannel(channelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannel(ctx, channelID, false)
	if err != nil {
		return err
	}

	var server config.ServerConfig
	if ticket != nil {
		server, err = s.requireAdmin(ctx, ticket.ServerName, actorID)
		if err != nil {
			return err
		}
	} else {
		channel, err := s.platform.FetchChannel(ctx, channelID)
		if err != nil {
			if errors.Is(err, platform.ErrUnknownChannel) {
				return apperrors.NewNotFound("channel", map[string]any{"channel_id": channelID})
			}
			return err
		}
		resolved, ok := s.servers.ByGuild(channel.GuildID)
		if !ok {
			return apperrors.NewNotFound("server", map[string]any{"guild_id": channel.GuildID})
		}
		server = resolved
		if err := s.checkAdminRole(ctx, server, actorID); err != nil {
			return err
		}
	}

	s.registry.Cancel(channelID)
	if ticket != nil {
		if _, err := s.tickets.Delete(ctx, channelID); err != nil {
			return err
		}
	}
	if err := s.platform.DeleteChannel(ctx, channelID, "Deleted by support staff"); err != nil &&
		!errors.Is(err, platform.ErrUnknownChannel) {
		return err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		ChannelID: channelID,
		Payload:   events.TicketDeletedPayload{Cause: "staff_delete"},
	})
	s.logger.Info("staff deleted ticket channel",
		zap.String("channel_id", channelID), zap.String("actor", actorID))
	return nil
}

// PurgeCompleted removes every completed-ticket channel in the server's
// guild. Returns deleted and failed counts.
func (s *TicketService) PurgeCompleted(ctx context.Context, serverName, actorID string) (int, int, error) {
	server, err := s.requireAdmin(ctx, serverName, actorID)
	if err != nil {
		return 0, 0, err
	}
	return s.lifecycle.DeleteChannelsByPrefix(ctx, server.GuildID, "completed-", "Completed ticket purge")
}

// requireAdmin resolves the server and verifies the actor holds its admin
// role.
func (s *TicketService) requireAdmin(ctx context.Context, serverName, actorID string) (config.ServerConfig, error) {
	server, ok := s.servers.Get(serverName)
	if !ok {
		return config.ServerConfig{}, apperrors.NewNotFound("server", map[string]any{"server": serverName})
	}
	if err := s.checkAdminRole(ctx, server, actorID); err != nil {
		return config.ServerConfig{}, err
	}
	return server, nil
}

func (s *TicketService) checkAdminRole(ctx context.Context, server config.ServerConfig, actorID string) error {
	isAdmin, err := s.platform.HasRole(ctx, server.GuildID, actorID, server.AdminRoleID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// renameTicketChannel swaps the ticket- prefix for the given one. Rename
// failures are logged only; the returned name is best effort.
func (s *TicketService) renameTicketChannel(ctx context.Context, channelID, prefix, reason string) string {
	channel, err := s.platform.FetchChannel(ctx, channelID)
	if err != nil {
		s.logger.Warn("failed to fetch channel for rename",
			zap.String("channel_id", channelID), zap.Error(err))
		return ""
	}
	name := prefix + strings.TrimPrefix(channel.Name, "ticket-")
	if len(name) > 100 {
		name = name[:100]
	}
	if err := s.platform.RenameChannel(ctx, channelID, name, reason); err != nil {
		s.logger.Warn("failed to rename channel",
			zap.String("channel_id", channelID), zap.String("name", name), zap.Error(err))
		return channel.Name
	}
	return name
}
