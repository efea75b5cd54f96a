package discord

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	apperrors "github.com/spec-kit/claim-bot/pkg/util"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opHello          = 10
	opHeartbeatAck   = 11
	opInvalidSession = 9
	opReconnect      = 7
)

// Gateway intents: guilds, guild messages, message content.
const gatewayIntents = (1 << 0) | (1 << 9) | (1 << 15)

// Interaction types and response callback types.
const (
	interactionCommand   = 2
	interactionComponent = 3

	callbackChannelMessage  = 4
	callbackDeferredMessage = 5
	callbackDeferredUpdate  = 6

	flagEphemeral = 1 << 6
)

// GatewayHandler receives normalized gateway events. Errors returned from
// interaction handlers are rendered back to the invoker as ephemeral
// replies.
type GatewayHandler interface {
	HandleMessage(ctx context.Context, guildID, channelID, userID, content string, fromBot bool)
	HandleComponent(ctx context.Context, customID, value, guildID, channelID, userID, userName string) error
	HandleCommand(ctx context.Context, command, guildID, channelID, userID, orderID string) error
}

// Gateway maintains the websocket connection to the platform and feeds
// dispatched events to the handler.
type Gateway struct {
	url     string
	token   string
	rest    *Client
	handler GatewayHandler
	logger  *zap.Logger

	appID string
	// last dispatch sequence number; written by the read loop, read by
	// the heartbeat goroutine
	seq atomic.Pointer[int]
}

// NewGateway constructs the gateway. rest is used for interaction
// follow-up messages.
func NewGateway(token string, rest *Client, handler GatewayHandler, logger *zap.Logger) *Gateway {
	return &Gateway{
		url:     "wss://gateway.discord.gg/?v=10&encoding=json",
		token:   token,
		rest:    rest,
		handler: handler,
		logger:  logger,
	}
}

type gatewayPayload struct {
	Op   int            `json:"op"`
	Type string         `json:"t,omitempty"`
	Seq  *int           `json:"s,omitempty"`
	Data map[string]any `json:"d,omitempty"`
}

// Run connects and processes events until ctx is cancelled, reconnecting
// with backoff on failure.
func (g *Gateway) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := g.session(ctx); err != nil && ctx.Err() == nil {
			g.logger.Error("gateway session ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		var payload gatewayPayload
		if err := wsjson.Read(sessionCtx, conn, &payload); err != nil {
			return err
		}
		g.noteSeq(payload.Seq)

		switch payload.Op {
		case opHello:
			interval, _ := payload.Data["heartbeat_interval"].(float64)
			go g.heartbeat(sessionCtx, conn, time.Duration(interval)*time.Millisecond)
			if err := g.identify(sessionCtx, conn); err != nil {
				return err
			}
		case opDispatch:
			g.dispatch(sessionCtx, payload)
		case opReconnect, opInvalidSession:
			return nil
		case opHeartbeatAck:
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	if interval <= 0 {
		interval = 41 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, map[string]any{"op": opHeartbeat, "d": g.lastSeq()}); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) noteSeq(seq *int) {
	if seq != nil {
		g.seq.Store(seq)
	}
}

// lastSeq returns the latest recorded sequence number, nil before the
// first dispatch. nil serializes to the null heartbeat payload the
// gateway expects from a fresh session.
func (g *Gateway) lastSeq() *int {
	return g.seq.Load()
}

func (g *Gateway) identify(ctx context.Context, conn *websocket.Conn) error {
	return wsjson.Write(ctx, conn, map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]any{
				"os":      "linux",
				"browser": "claim-bot",
				"device":  "claim-bot",
			},
		},
	})
}

func (g *Gateway) dispatch(ctx context.Context, payload gatewayPayload) {
	switch payload.Type {
	case "READY":
		if app, ok := payload.Data["application"].(map[string]any); ok {
			g.appID, _ = app["id"].(string)
		}
		g.logger.Info("gateway ready")
	case "MESSAGE_CREATE":
		g.handleMessageCreate(ctx, payload.Data)
	case "INTERACTION_CREATE":
		g.handleInteraction(ctx, payload.Data)
	}
}

func (g *Gateway) handleMessageCreate(ctx context.Context, data map[string]any) {
	author, _ := data["author"].(map[string]any)
	userID, _ := author["id"].(string)
	fromBot, _ := author["bot"].(bool)
	guildID, _ := data["guild_id"].(string)
	channelID, _ := data["channel_id"].(string)
	content, _ := data["content"].(string)
	g.handler.HandleMessage(ctx, guildID, channelID, userID, content, fromBot)
}

func (g *Gateway) handleInteraction(ctx context.Context, data map[string]any) {
	interactionID, _ := data["id"].(string)
	interactionToken, _ := data["token"].(string)
	interactionType, _ := data["type"].(float64)
	guildID, _ := data["guild_id"].(string)
	channelID, _ := data["channel_id"].(string)

	var userID, userName string
	if member, ok := data["member"].(map[string]any); ok {
		if user, ok := member["user"].(map[string]any); ok {
			userID, _ = user["id"].(string)
			userName, _ = user["username"].(string)
		}
	}

	inner, _ := data["data"].(map[string]any)

	var err error
	switch int(interactionType) {
	case interactionComponent:
		customID, _ := inner["custom_id"].(string)
		var value string
		if values, ok := inner["values"].([]any); ok && len(values) > 0 {
			value, _ = values[0].(string)
		}
		// Acknowledge before the handler runs; the flow's own messages
		// are sent through the notifier.
		g.respond(ctx, interactionID, interactionToken, map[string]any{"type": callbackDeferredUpdate})
		err = g.handler.HandleComponent(ctx, customID, value, guildID, channelID, userID, userName)
	case interactionCommand:
		command, _ := inner["name"].(string)
		var orderID string
		if options, ok := inner["options"].([]any); ok {
			for _, raw := range options {
				option, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if name, _ := option["name"].(string); name == "order-id" {
					orderID, _ = option["value"].(string)
				}
			}
		}
		g.respond(ctx, interactionID, interactionToken, map[string]any{
			"type": callbackDeferredMessage,
			"data": map[string]any{"flags": flagEphemeral},
		})
		err = g.handler.HandleCommand(ctx, command, guildID, channelID, userID, orderID)
		if err == nil {
			g.followUp(ctx, interactionToken, "Done.")
			return
		}
	default:
		return
	}

	if err != nil {
		g.logger.Warn("interaction handler failed", zap.Error(err))
		g.followUp(ctx, interactionToken, apperrors.ToDomainError(err).Message)
	}
}

func (g *Gateway) respond(ctx context.Context, interactionID, token string, body map[string]any) {
	path := "/interactions/" + interactionID + "/" + token + "/callback"
	if err := g.rest.do(ctx, http.MethodPost, path, body, nil); err != nil {
		g.logger.Warn("interaction callback failed", zap.Error(err))
	}
}

func (g *Gateway) followUp(ctx context.Context, token, content string) {
	if g.appID == "" {
		return
	}
	path := "/webhooks/" + g.appID + "/" + token
	body := map[string]any{"content": content, "flags": flagEphemeral}
	if err := g.rest.do(ctx, http.MethodPost, path, body, nil); err != nil {
		g.logger.Warn("interaction follow-up failed", zap.Error(err))
	}
}
