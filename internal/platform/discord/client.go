// Package discord implements the platform.Client boundary over the
// Discord REST API. Gateway intake (messages, interactions) is wired by
// the deployment's gateway glue, which feeds the bot router; this client
// only covers the outbound surface the lifecycle needs.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/platform"
)

// Discord error codes the lifecycle distinguishes.
const (
	codeUnknownChannel     = 10003
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// Channel type and permission constants from the Discord API.
const (
	channelTypeGuildText = 0

	permViewChannel    = 1 << 10
	permSendMessages   = 1 << 11
	permReadHistory    = 1 << 16
	permManageChannels = 1 << 4
)

// Client is a minimal Discord REST client.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds the client. The bot token is required.
func NewClient(cfg config.PlatformConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("DISCORD_BOT_TOKEN is required")
	}
	return &Client{
		base:   cfg.APIBaseURL,
		token:  cfg.BotToken,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type channelPayload struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Name    string `json:"name"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWithReason(ctx, method, path, body, out, "")
}

// FetchChannel implements platform.Client.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*platform.Channel, error) {
	var payload channelPayload
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &payload); err != nil {
		return nil, err
	}
	return &platform.Channel{ID: payload.ID, GuildID: payload.GuildID, Name: payload.Name}, nil
}

// CreateChannel implements platform.Client. The channel is visible to the
// owner and the admin role only.
func (c *Client) CreateChannel(ctx context.Context, spec platform.CreateChannelSpec) (*platform.Channel, error) {
	memberPerms := permViewChannel | permSendMessages | permReadHistory
	body := map[string]any{
		"name":  spec.Name,
		"type":  channelTypeGuildText,
		"topic": spec.Topic,
		"permission_overwrites": []map[string]any{
			{"id": spec.GuildID, "type": 0, "deny": fmt.Sprint(permViewChannel)},
			{"id": spec.OwnerUserID, "type": 1, "allow": fmt.Sprint(memberPerms)},
			{"id": spec.AdminRoleID, "type": 0, "allow": fmt.Sprint(memberPerms | permManageChannels)},
		},
	}
	var payload channelPayload
	if err := c.do(ctx, http.MethodPost, "/guilds/"+spec.GuildID+"/channels", body, &payload); err != nil {
		return nil, err
	}
	if payload.GuildID == "" {
		payload.GuildID = spec.GuildID
	}
	return &platform.Channel{ID: payload.ID, GuildID: payload.GuildID, Name: payload.Name}, nil
}

// DeleteChannel implements platform.Client.
func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return c.doWithReason(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil, reason)
}

// RenameChannel implements platform.Client.
func (c *Client) RenameChannel(ctx context.Context, channelID, name, reason string) error {
	return c.doWithReason(ctx, http.MethodPatch, "/channels/"+channelID,
		map[string]any{"name": name}, nil, reason)
}

// ListGuildChannels implements platform.Client.
func (c *Client) ListGuildChannels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	var payload []channelPayload
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &payload); err != nil {
		return nil, err
	}
	channels := make([]platform.Channel, len(payload))
	for i, ch := range payload {
		guild := ch.GuildID
		if guild == "" {
			guild = guildID
		}
		channels[i] = platform.Channel{ID: ch.ID, GuildID: guild, Name: ch.Name}
	}
	return channels, nil
}

// SendMessage implements platform.Client.
func (c *Client) SendMessage(ctx context.Context, channelID string, message platform.Message) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", messageBody(message), nil)
}

// SendDirectMessage implements platform.Client. Discord requires opening
// a DM channel first.
func (c *Client) SendDirectMessage(ctx context.Context, userID string, message platform.Message) error {
	var dm struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels",
		map[string]any{"recipient_id": userID}, &dm); err != nil {
		return err
	}
	return c.SendMessage(ctx, dm.ID, message)
}

// AddRole implements platform.Client.
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut,
		"/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, nil, nil)
}

// HasRole implements platform.Client.
func (c *Client) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	var member struct {
		Roles []string `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &member); err != nil {
		return false, err
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) doWithReason(ctx context.Context, method, path string, body, out any, reason string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", reason)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		switch {
		case apiErr.Code == codeUnknownChannel, resp.StatusCode == http.StatusNotFound:
			return platform.ErrUnknownChannel
		case apiErr.Code == codeMissingAccess, apiErr.Code == codeMissingPermissions,
			resp.StatusCode == http.StatusForbidden:
			return platform.ErrMissingPermissions
		}
		return fmt.Errorf("discord API %s %s: status %d code %d: %s",
			method, path, resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func messageBody(message platform.Message) map[string]any {
	body := map[string]any{}
	if message.Content != "" {
		body["content"] = message.Content
	}
	if message.Embed != nil {
		body["embeds"] = []any{message.Embed}
	}
	if message.Components != nil {
		body["components"] = message.Components
	}
	return body
}
