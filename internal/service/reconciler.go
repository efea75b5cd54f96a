package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/platform"
)

// ReconcileReport summarizes one startup reconciliation pass.
type ReconcileReport struct {
	Rearmed        int
	DroppedRecords int
	OrphansDeleted int
}

// Reconcile brings persisted ticket state and live channel state back in
// agreement after a restart: records whose channels vanished are dropped,
// live non-terminal tickets get a fresh (shortened) inactivity timer, and
// ticket-pattern channels with no record are swept away. Must run before
// the bot starts accepting platform events.
func (s *TicketService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return report, err
	}

	for i := range tickets {
		ticket := &tickets[i]
		if ticket.Stage.Terminal() {
			continue
		}

		channel, err := s.platform.FetchChannel(ctx, ticket.ChannelID)
		switch {
		case errors.Is(err, platform.ErrUnknownChannel):
			if _, delErr := s.tickets.Delete(ctx, ticket.ChannelID); delErr != nil {
				s.logger.Error("failed to drop ticket for missing channel",
					zap.String("channel_id", ticket.ChannelID), zap.Error(delErr))
				continue
			}
			report.DroppedRecords++
			s.logger.Info("dropped ticket for missing channel",
				zap.String("channel_id", ticket.ChannelID))
		case err != nil:
			s.logger.Error("failed to fetch channel during reconciliation",
				zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		default:
			s.lifecycle.ScheduleDeletion(*channel, s.timing.ReconcileArmTimeout(),
				"Ticket Inactivity (restart)", s.handleInactivityExpiry)
			report.Rearmed++
		}
	}

	orphans, err := s.lifecycle.CleanupOrphanedChannels(ctx, "")
	if err != nil {
		s.logger.Error("orphan cleanup failed during reconciliation", zap.Error(err))
	} else {
		report.OrphansDeleted = orphans
	}

	s.logger.Info("reconciliation finished",
		zap.Int("rearmed", report.Rearmed),
		zap.Int("dropped_records", report.DroppedRecords),
		zap.Int("orphans_deleted", report.OrphansDeleted))
	return report, nil
}
