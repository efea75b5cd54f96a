package main

import (
	"context"

	"github.com/spec-kit/claim-bot/internal/bot"
	"github.com/spec-kit/claim-bot/internal/platform/discord"
)

// gatewayAdapter maps raw gateway events onto the bot router.
type gatewayAdapter struct {
	router *bot.Router
}

var _ discord.GatewayHandler = (*gatewayAdapter)(nil)

func (a *gatewayAdapter) HandleMessage(ctx context.Context, guildID, channelID, userID, content string, fromBot bool) {
	a.router.OnMessage(ctx, bot.IncomingMessage{
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
		FromBot:   fromBot,
	})
}

func (a *gatewayAdapter) HandleComponent(ctx context.Context, customID, value, guildID, channelID, userID, userName string) error {
	switch customID {
	case bot.ComponentCreateTicket:
		return a.router.OnCreateTicket(ctx, guildID, userID, userName)
	case bot.ComponentLanguageSelect:
		return a.router.OnLanguageSelect(ctx, channelID, userID, value)
	case bot.ComponentTimezoneSelect:
		return a.router.OnTimezoneSelect(ctx, channelID, userID, value)
	default:
		return nil
	}
}

func (a *gatewayAdapter) HandleCommand(ctx context.Context, command, guildID, channelID, userID, orderID string) error {
	return a.router.OnStaffCommand(ctx, command, guildID, channelID, userID, orderID)
}
