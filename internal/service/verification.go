package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/commerce"
	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/events"
	"github.com/spec-kit/claim-bot/internal/notify"
	"github.com/spec-kit/claim-bot/internal/repository"
)

// Cross-game claim exemption: this game's orders may be claimed from
// this server even when the server is configured for a different game.
const (
	exemptGame   = "blox-fruits"
	exemptServer = "bloxy-market"
)

// Rejection reasons carried on ticket_rejected events.
const (
	reasonOrderNotFound   = "order_not_found"
	reasonTicketExists    = "ticket_exists"
	reasonMissingReceiver = "missing_receiver"
	reasonDifferentGame   = "different_game"
	reasonAlreadyClaimed  = "already_claimed"
	reasonAccountItems    = "account_items"
	reasonPhysicalOnly    = "physical_goods_only"
	reasonRefunded        = "refunded"
)

// verifyOrder runs the claim eligibility checks against a submitted order
// id. The checks run in a fixed order and the first failing one decides
// the outcome; a failing check notifies the user and drops the ticket
// record, leaving the channel to the pending inactivity timer.
func (s *TicketService) verifyOrder(ctx context.Context, ticket *domain.Ticket, orderID string, lang domain.Language) error {
	channelID := ticket.ChannelID

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status == domain.OrderStatusCancelled {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioOrderNotFound,
			notify.Params{"orderId": orderID}, reasonOrderNotFound, orderID)
	}

	existing, err := s.tickets.GetActiveByOrder(ctx, orderID, ticket.ServerName)
	if err != nil {
		return err
	}
	if existing != nil && existing.ChannelID != channelID {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioTicketExists,
			notify.Params{"orderId": orderID, "channelId": existing.ChannelID}, reasonTicketExists, orderID)
	}

	if order.Receiver.Username == "" {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioMissingReceiver,
			notify.Params{"orderId": orderID}, reasonMissingReceiver, orderID)
	}

	if order.Game != ticket.ServerName && !(order.Game == exemptGame && ticket.ServerName == exemptServer) {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioDifferentGame,
			notify.Params{"orderId": orderID, "game": order.Game}, reasonDifferentGame, orderID)
	}

	if order.Status == domain.OrderStatusCompleted {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioOrderClaimed,
			notify.Params{"orderId": orderID}, reasonAlreadyClaimed, orderID)
	}

	if order.OnlyAccountItems() {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioAccountItems,
			notify.Params{"orderId": orderID}, reasonAccountItems, orderID)
	}

	if order.OnlyPhysicalGoods() && ticket.ServerName != exemptServer {
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioPhysicalOnly,
			notify.Params{"orderId": orderID}, reasonPhysicalOnly, orderID)
	}

	// Nothing physical to hand over on the trading server: tell the user
	// where their items will arrive, but keep the ticket open so staff
	// can still assist.
	if order.NoPhysicalGoods() && ticket.ServerName == exemptServer {
		if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioNoPhysicalGoods,
			notify.Params{"orderId": orderID}); err != nil {
			s.logger.Warn("failed to send delivery notice", zap.String("channel_id", channelID), zap.Error(err))
		}
		return nil
	}

	risk, err := s.commerce.OrderRiskAndFinancialStatus(ctx, orderID)
	if err != nil {
		s.logger.Error("risk lookup failed, continuing without it",
			zap.String("order_id", orderID), zap.Error(err))
		if sendErr := s.notifier.Send(ctx, channelID, lang, notify.ScenarioRiskUnknown, nil); sendErr != nil {
			s.logger.Warn("failed to send risk notice", zap.String("channel_id", channelID), zap.Error(sendErr))
		}
		risk = nil
	}
	if risk != nil && risk.Refunded() {
		if _, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled); err != nil {
			s.logger.Error("failed to mark order cancelled locally",
				zap.String("order_id", orderID), zap.Error(err))
		}
		s.publish(ctx, events.Event{
			Type:      events.EventOrderCancelled,
			ChannelID: channelID,
			Payload:   events.OrderCancelledPayload{OrderID: orderID, Actor: "risk-check"},
		})
		return s.rejectAndDrop(ctx, ticket, lang, notify.ScenarioCancelRefund,
			notify.Params{"orderId": orderID}, reasonRefunded, orderID)
	}

	return s.acceptOrder(ctx, ticket, order, lang, risk)
}

// acceptOrder is the single success path of verification: bind the order,
// advance to the timezone stage and disarm the inactivity timer.
func (s *TicketService) acceptOrder(ctx context.Context, ticket *domain.Ticket, order *domain.Order, lang domain.Language, risk *commerce.RiskStatus) error {
	channelID := ticket.ChannelID
	nextStage := domain.StageTimezone
	username := order.Receiver.Username

	updated, err := s.tickets.Update(ctx, channelID, repository.TicketUpdate{
		Stage:          &nextStage,
		OrderID:        &order.ID,
		RobloxUsername: &username,
	})
	if err != nil {
		return err
	}
	if updated == nil {
		s.logger.Warn("ticket vanished mid-verification", zap.String("channel_id", channelID))
		return nil
	}

	if cancelled := s.registry.Cancel(channelID); cancelled {
		s.logger.Info("cancelled inactivity timeout after verification",
			zap.String("channel_id", channelID))
	}

	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioOrderFound, notify.Params{
		"orderId":        order.ID,
		"robloxUsername": username,
	}); err != nil {
		s.logger.Warn("failed to send order confirmation", zap.String("channel_id", channelID), zap.Error(err))
	}
	if risk != nil && risk.RiskLevel != "LOW" {
		if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioRiskWarning, notify.Params{
			"orderId":   order.ID,
			"riskLevel": risk.RiskLevel,
		}); err != nil {
			s.logger.Warn("failed to send risk warning", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioTimezonePrompt, nil); err != nil {
		s.logger.Warn("failed to send timezone prompt", zap.String("channel_id", channelID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:      events.EventStageAdvanced,
		ChannelID: channelID,
		Payload:   events.StageAdvancedPayload{OldStage: domain.StageOrderVerification, NewStage: nextStage},
	})
	s.logger.Info("order verified",
		zap.String("channel_id", channelID),
		zap.String("order_id", order.ID),
		zap.String("server", ticket.ServerName))
	return nil
}

// rejectAndDrop notifies the user of a failed check and deletes the
// ticket record. The channel stays up until its scheduled deletion fires,
// so the user can read the rejection.
func (s *TicketService) rejectAndDrop(ctx context.Context, ticket *domain.Ticket, lang domain.Language, scenario notify.Scenario, params notify.Params, reason, orderID string) error {
	channelID := ticket.ChannelID

	if err := s.notifier.Send(ctx, channelID, lang, scenario, params); err != nil {
		s.logger.Warn("failed to send rejection notice",
			zap.String("channel_id", channelID), zap.String("reason", reason), zap.Error(err))
	}

	deleted, err := s.tickets.Delete(ctx, channelID)
	if err != nil {
		return err
	}
	if !deleted {
		s.logger.Warn("ticket record already gone during rejection",
			zap.String("channel_id", channelID))
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketRejected,
		ChannelID: channelID,
		Payload:   events.TicketRejectedPayload{OrderID: orderID, Reason: reason},
	})
	s.publish(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		ChannelID: channelID,
		Payload:   events.TicketDeletedPayload{Cause: "rejected:" + reason},
	})
	s.logger.Info("rejected claim",
		zap.String("channel_id", channelID),
		zap.String("order_id", orderID),
		zap.String("reason", reason))
	return nil
}
