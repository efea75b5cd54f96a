// Package lifecycle schedules delayed channel deletion and reconciles
// live channel state against the ticket store.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/clock"
	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/events"
	"github.com/spec-kit/claim-bot/internal/platform"
	"github.com/spec-kit/claim-bot/internal/repository"
	"github.com/spec-kit/claim-bot/internal/timeout"
)

// ticketChannelPrefixes are the channel name prefixes orphan cleanup
// considers. Completed channels are excluded on purpose: those are purged
// by the explicit staff command, not the orphan sweep.
var ticketChannelPrefixes = []string{"ticket-", "cancelled-"}

// OnDeleted is invoked exactly once when a scheduled deletion confirms
// the channel is gone (deleted by this call or already gone). It is never
// invoked on permission or unexpected errors.
type OnDeleted func(ctx context.Context, channelID string)

// ManagerDependencies bundles collaborators for the manager.
type ManagerDependencies struct {
	Platform   platform.Client
	TicketRepo repository.TicketRepository
	Registry   *timeout.Registry
	Clock      clock.Clock
	Servers    config.ServerTable
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Pacing     time.Duration
}

// Manager owns delayed channel deletion and orphan cleanup.
type Manager struct {
	platform   platform.Client
	tickets    repository.TicketRepository
	registry   *timeout.Registry
	clock      clock.Clock
	servers    config.ServerTable
	dispatcher events.Dispatcher
	logger     *zap.Logger
	pacing     time.Duration
}

// NewManager constructs the manager.
func NewManager(deps ManagerDependencies) *Manager {
	return &Manager{
		platform:   deps.Platform,
		tickets:    deps.TicketRepo,
		registry:   deps.Registry,
		clock:      deps.Clock,
		servers:    deps.Servers,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		pacing:     deps.Pacing,
	}
}

// ScheduleDeletion arms a delayed deletion for the channel and registers
// it in the timeout registry, replacing any pending timer for the same
// channel. At fire time the channel is re-fetched from the platform;
// onDeleted runs only when the channel is confirmed gone.
func (m *Manager) ScheduleDeletion(channel platform.Channel, delay time.Duration, reason string, onDeleted OnDeleted) *timeout.Task {
	task := timeout.NewTask(channel.ID)

	m.logger.Info("scheduling channel deletion",
		zap.String("channel_id", channel.ID),
		zap.String("channel_name", channel.Name),
		zap.Duration("delay", delay),
		zap.String("reason", reason))

	timer := m.clock.AfterFunc(delay, func() {
		m.fire(task, channel.ID, reason, onDeleted)
	})
	task.Bind(timer)
	m.registry.Add(channel.ID, task)
	return task
}

// fire executes one scheduled deletion. Arbitrary time has passed since
// scheduling, so nothing from the in-memory handle is trusted: the task's
// cancellation flag is re-checked and the channel re-fetched before any
// destructive call.
func (m *Manager) fire(task *timeout.Task, channelID, reason string, onDeleted OnDeleted) {
	defer m.registry.Forget(channelID, task)

	if task.Cancelled() {
		return
	}

	ctx := context.Background()
	gone := false

	fresh, err := m.platform.FetchChannel(ctx, channelID)
	switch {
	case errors.Is(err, platform.ErrUnknownChannel):
		m.logger.Info("channel already gone at deletion time", zap.String("channel_id", channelID))
		gone = true
	case err != nil:
		m.logger.Error("failed to re-fetch channel before deletion",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	default:
		// A cancel that landed while the fetch was in flight wins over
		// the deletion.
		if task.Cancelled() {
			return
		}
		if err := m.platform.DeleteChannel(ctx, fresh.ID, "Automatic deletion: "+reason); err != nil {
			switch {
			case errors.Is(err, platform.ErrUnknownChannel):
				gone = true
			case errors.Is(err, platform.ErrMissingPermissions):
				m.logger.Warn("missing permissions to delete channel",
					zap.String("channel_id", channelID))
			default:
				m.logger.Error("unexpected error deleting channel",
					zap.String("channel_id", channelID), zap.Error(err))
			}
		} else {
			m.logger.Info("deleted channel",
				zap.String("channel_id", channelID), zap.String("reason", reason))
			gone = true
		}
	}

	if !gone || task.Cancelled() {
		return
	}

	m.publish(ctx, events.Event{
		Type:      events.EventChannelExpired,
		ChannelID: channelID,
		Payload:   events.ChannelExpiredPayload{Reason: reason},
	})
	if onDeleted != nil {
		onDeleted(ctx, channelID)
	}
}

// CleanupOrphanedChannels deletes ticket-pattern channels that have no
// backing record in the store. When targetServer is non-empty only that
// server's guild is swept. One channel's failure never aborts the batch;
// the returned count is successful deletions only.
func (m *Manager) CleanupOrphanedChannels(ctx context.Context, targetServer string) (int, error) {
	tickets, err := m.tickets.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(tickets))
	for _, ticket := range tickets {
		known[ticket.ChannelID] = struct{}{}
	}

	var guilds []string
	if targetServer != "" {
		server, ok := m.servers.Get(targetServer)
		if !ok {
			return 0, errors.New("unknown server: " + targetServer)
		}
		guilds = append(guilds, server.GuildID)
	} else {
		for _, server := range m.servers {
			guilds = append(guilds, server.GuildID)
		}
	}

	var orphans []platform.Channel
	for _, guildID := range guilds {
		channels, err := m.platform.ListGuildChannels(ctx, guildID)
		if err != nil {
			m.logger.Error("failed to list guild channels",
				zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		for _, channel := range channels {
			if !hasTicketPrefix(channel.Name) {
				continue
			}
			if _, ok := known[channel.ID]; !ok {
				orphans = append(orphans, channel)
			}
		}
	}

	deleted := 0
	failed := 0
	for i, channel := range orphans {
		if i > 0 && m.pacing > 0 {
			m.clock.Sleep(m.pacing)
		}
		err := m.platform.DeleteChannel(ctx, channel.ID, "Orphaned ticket channel cleanup (no store record)")
		switch {
		case err == nil, errors.Is(err, platform.ErrUnknownChannel):
			deleted++
			m.logger.Info("deleted orphaned channel",
				zap.String("channel_id", channel.ID), zap.String("channel_name", channel.Name))
		case errors.Is(err, platform.ErrMissingPermissions):
			failed++
			m.logger.Warn("missing permissions to delete orphaned channel",
				zap.String("channel_id", channel.ID))
		default:
			failed++
			m.logger.Error("failed to delete orphaned channel",
				zap.String("channel_id", channel.ID), zap.Error(err))
		}
	}

	m.logger.Info("orphaned channel cleanup finished",
		zap.Int("deleted", deleted), zap.Int("failed", failed),
		zap.String("target_server", targetServer))
	return deleted, nil
}

// DeleteChannelsByPrefix removes every channel in the guild whose name
// carries the prefix, with pacing between deletions. Used by the staff
// purge of completed-ticket channels. Returns deleted and failed counts.
func (m *Manager) DeleteChannelsByPrefix(ctx context.Context, guildID, prefix, reason string) (int, int, error) {
	channels, err := m.platform.ListGuildChannels(ctx, guildID)
	if err != nil {
		return 0, 0, err
	}

	deleted := 0
	failed := 0
	for _, channel := range channels {
		if !strings.HasPrefix(channel.Name, prefix) {
			continue
		}
		if deleted+failed > 0 && m.pacing > 0 {
			m.clock.Sleep(m.pacing)
		}
		err := m.platform.DeleteChannel(ctx, channel.ID, reason)
		switch {
		case err == nil, errors.Is(err, platform.ErrUnknownChannel):
			deleted++
			m.registry.Cancel(channel.ID)
		default:
			failed++
			m.logger.Error("failed to delete channel during purge",
				zap.String("channel_id", channel.ID),
				zap.String("channel_name", channel.Name),
				zap.Error(err))
		}
	}

	m.logger.Info("prefix purge finished",
		zap.String("guild_id", guildID), zap.String("prefix", prefix),
		zap.Int("deleted", deleted), zap.Int("failed", failed))
	return deleted, failed, nil
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.clock.Now()
	}
	_ = m.dispatcher.Publish(ctx, event)
}

func hasTicketPrefix(name string) bool {
	for _, prefix := range ticketChannelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
