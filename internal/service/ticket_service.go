package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/commerce"
	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/events"
	"github.com/spec-kit/claim-bot/internal/lifecycle"
	"github.com/spec-kit/claim-bot/internal/notify"
	"github.com/spec-kit/claim-bot/internal/platform"
	"github.com/spec-kit/claim-bot/internal/repository"
	"github.com/spec-kit/claim-bot/internal/timeout"
	apperrors "github.com/spec-kit/claim-bot/pkg/util"
)

// TicketService is the ticket state machine: every stage transition and
// staff operation goes through here, serialized per channel so two
// near-simultaneous events for one ticket cannot both pass a stage check.
type TicketService struct {
	tickets   repository.TicketRepository
	orders    repository.OrderRepository
	platform  platform.Client
	commerce  commerce.Service
	notifier  notify.Notifier
	lifecycle *lifecycle.Manager
	registry  *timeout.Registry
	servers   config.ServerTable
	timing    config.TicketConfig
	dispatch  events.Dispatcher
	logger    *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// TicketDependencies bundles collaborators for the service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	OrderRepo  repository.OrderRepository
	Platform   platform.Client
	Commerce   commerce.Service
	Notifier   notify.Notifier
	Lifecycle  *lifecycle.Manager
	Registry   *timeout.Registry
	Servers    config.ServerTable
	Timing     config.TicketConfig
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:   deps.TicketRepo,
		orders:    deps.OrderRepo,
		platform:  deps.Platform,
		commerce:  deps.Commerce,
		notifier:  deps.Notifier,
		lifecycle: deps.Lifecycle,
		registry:  deps.Registry,
		servers:   deps.Servers,
		timing:    deps.Timing,
		dispatch:  deps.Dispatcher,
		logger:    deps.Logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockChannel serializes handlers for one channel. Returns the unlock.
func (s *TicketService) lockChannel(channelID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[channelID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[channelID] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// OnTicketCreateRequested handles a user asking for a new ticket: checks
// the active-ticket cap, creates the channel, persists the ticket at the
// language stage, arms the inactivity timer and sends the welcome.
func (s *TicketService) OnTicketCreateRequested(ctx context.Context, userID, userName, serverName string) (*domain.Ticket, error) {
	server, ok := s.servers.Get(serverName)
	if !ok {
		return nil, apperrors.NewNotFound("server", map[string]any{"server": serverName})
	}

	active, err := s.tickets.CountActiveByUser(ctx, userID, serverName)
	if err != nil {
		return nil, err
	}
	if active >= s.timing.MaxActivePerUser {
		return nil, apperrors.NewConflict("active ticket limit reached for this server", map[string]any{
			"limit": s.timing.MaxActivePerUser,
		})
	}

	channel, err := s.platform.CreateChannel(ctx, platform.CreateChannelSpec{
		GuildID:     server.GuildID,
		Name:        ticketChannelName(userName),
		Topic:       "Ticket for " + userName + " (ID: " + userID + "). Order: Pending.",
		OwnerUserID: userID,
		AdminRoleID: server.AdminRoleID,
	})
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Create(ctx, channel.ID, userID, serverName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateChannel) {
			return nil, apperrors.NewConflict("ticket already exists for channel", nil)
		}
		return nil, err
	}

	s.lifecycle.ScheduleDeletion(*channel, s.timing.InactivityTimeout(), "Ticket Inactivity", s.handleInactivityExpiry)

	if err := s.notifier.Send(ctx, channel.ID, domain.LanguageEnglish, notify.ScenarioWelcome, notify.Params{
		"userId": userID,
	}); err != nil {
		s.logger.Warn("failed to send welcome", zap.String("channel_id", channel.ID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		ChannelID: channel.ID,
		Payload:   events.TicketCreatedPayload{UserID: userID, ServerName: serverName},
	})

	s.logger.Info("created ticket",
		zap.String("channel_id", channel.ID),
		zap.String("user_id", userID),
		zap.String("server", serverName))
	return ticket, nil
}

// OnLanguageChosen records the language pick and advances the ticket to
// order verification.
func (s *TicketService) OnLanguageChosen(ctx context.Context, channelID, userID string, lang domain.Language) error {
	if !domain.ValidLanguage(lang) {
		return apperrors.NewValidationError("unsupported language", map[string]any{"language": lang})
	}

	unlock := s.lockChannel(channelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannel(ctx, channelID, false)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	if ticket.UserID != userID {
		return apperrors.NewNotOwner()
	}
	if ticket.Stage != domain.StageLanguagePreference {
		return apperrors.NewWrongStage(string(ticket.Stage))
	}

	nextStage := domain.StageOrderVerification
	updated, err := s.tickets.Update(ctx, channelID, repository.TicketUpdate{
		Stage:    &nextStage,
		Language: &lang,
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}

	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioOrderPrompt, nil); err != nil {
		s.logger.Warn("failed to send order prompt", zap.String("channel_id", channelID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:      events.EventStageAdvanced,
		ChannelID: channelID,
		Payload:   events.StageAdvancedPayload{OldStage: domain.StageLanguagePreference, NewStage: nextStage},
	})
	return nil
}

// OnOrderIDSubmitted handles a message in a ticket channel while the
// ticket awaits order verification. Messages from non-owners or in other
// stages are ignored entirely, matching how the platform event stream
// routes every channel message through here.
func (s *TicketService) OnOrderIDSubmitted(ctx context.Context, channelID, userID, text string) error {
	unlock := s.lockChannel(channelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannel(ctx, channelID, false)
	if err != nil {
		return err
	}
	if ticket == nil || ticket.UserID != userID {
		return nil
	}
	if ticket.Stage != domain.StageOrderVerification {
		return nil
	}

	orderID := strings.TrimPrefix(strings.TrimSpace(text), "#")
	lang := s.ticketLanguage(ticket)

	if err := s.verifyOrder(ctx, ticket, orderID, lang); err != nil {
		s.logger.Error("order verification failed",
			zap.String("channel_id", channelID),
			zap.String("order_id", orderID),
			zap.Error(err))
		s.notifyGenericError(ctx, channelID, lang)
		return err
	}
	return nil
}

// OnTimezoneChosen records the timezone pick, finishes the conversation
// flow and cancels the pending inactivity timer.
func (s *TicketService) OnTimezoneChosen(ctx context.Context, channelID, userID, zone string) error {
	unlock := s.lockChannel(channelID)
	defer unlock()

	ticket, err := s.tickets.GetByChannel(ctx, channelID, true)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	lang := s.ticketLanguage(ticket)
	if ticket.UserID != userID {
		return apperrors.NewNotOwner()
	}
	if ticket.Stage != domain.StageTimezone {
		return apperrors.NewWrongStage(string(ticket.Stage))
	}

	nextStage := domain.StageFinished
	updated, err := s.tickets.Update(ctx, channelID, repository.TicketUpdate{
		Stage:    &nextStage,
		Timezone: &zone,
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}

	if cancelled := s.registry.Cancel(channelID); cancelled {
		s.logger.Info("cancelled inactivity timeout", zap.String("channel_id", channelID))
	}

	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioTimezoneRecorded, notify.Params{
		"timezone": zone,
	}); err != nil {
		s.logger.Warn("failed to send timezone confirmation", zap.String("channel_id", channelID), zap.Error(err))
	}
	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioSummary, notify.Params{
		"orderId":        deref(updated.OrderID),
		"robloxUsername": deref(updated.RobloxUsername),
		"timezone":       zone,
		"language":       string(lang),
	}); err != nil {
		s.logger.Warn("failed to send summary", zap.String("channel_id", channelID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:      events.EventStageAdvanced,
		ChannelID: channelID,
		Payload:   events.StageAdvancedPayload{OldStage: domain.StageTimezone, NewStage: nextStage},
	})
	return nil
}

// handleInactivityExpiry is the deletion callback armed on new and
// reconciled tickets: once the channel is confirmed gone, drop the
// record.
func (s *TicketService) handleInactivityExpiry(ctx context.Context, channelID string) {
	deleted, err := s.tickets.Delete(ctx, channelID)
	if err != nil {
		s.logger.Error("failed to delete ticket after channel expiry",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if !deleted {
		s.logger.Warn("no ticket record found during expiry cleanup",
			zap.String("channel_id", channelID))
		return
	}
	s.publish(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		ChannelID: channelID,
		Payload:   events.TicketDeletedPayload{Cause: "inactivity"},
	})
}

func (s *TicketService) ticketLanguage(ticket *domain.Ticket) domain.Language {
	if ticket.Language != nil {
		return *ticket.Language
	}
	return domain.LanguageEnglish
}

func (s *TicketService) notifyGenericError(ctx context.Context, channelID string, lang domain.Language) {
	if err := s.notifier.Send(ctx, channelID, lang, notify.ScenarioGenericError, nil); err != nil {
		s.logger.Warn("failed to send generic error", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatch.Publish(ctx, event)
}

func ticketChannelName(userName string) string {
	name := strings.ToLower(strings.TrimSpace(userName))
	name = strings.ReplaceAll(name, " ", "-")
	if len(name) > 25 {
		name = name[:25]
	}
	return "ticket-" + name
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
