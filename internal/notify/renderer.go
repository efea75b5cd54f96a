package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/platform"
)

// Component ids attached to interactive prompts. The gateway glue routes
// interactions carrying these ids back into the bot router.
const (
	ComponentCreateTicket   = "create_ticket"
	ComponentLanguageSelect = "language_select"
	ComponentTimezoneSelect = "timezone_select"
)

// Renderer implements Notifier over the platform client with per-language
// message templates. Placeholders use {name} syntax.
type Renderer struct {
	platform platform.Client
	logger   *zap.Logger
}

// NewRenderer constructs the renderer.
func NewRenderer(client platform.Client, logger *zap.Logger) *Renderer {
	return &Renderer{platform: client, logger: logger}
}

var templates = map[Scenario]map[domain.Language]string{
	ScenarioWelcome: {
		domain.LanguageEnglish: "Welcome <@{userId}>! Please pick your preferred language below.",
		domain.LanguageSpanish: "¡Bienvenido <@{userId}>! Elige tu idioma preferido abajo.",
	},
	ScenarioOrderPrompt: {
		domain.LanguageEnglish: "Please send your order number (for example: #12345).",
		domain.LanguageSpanish: "Envía tu número de pedido (por ejemplo: #12345).",
	},
	ScenarioOrderNotFound: {
		domain.LanguageEnglish: "Order **{orderId}** was not found or is cancelled. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** no existe o está cancelado. Este ticket se cerrará en breve.",
	},
	ScenarioTicketExists: {
		domain.LanguageEnglish: "Order **{orderId}** is already being handled in <#{channelId}>. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** ya se está atendiendo en <#{channelId}>. Este ticket se cerrará en breve.",
	},
	ScenarioMissingReceiver: {
		domain.LanguageEnglish: "Order **{orderId}** has no receiver account on file. Please contact support. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** no tiene una cuenta receptora registrada. Contacta con soporte. Este ticket se cerrará en breve.",
	},
	ScenarioDifferentGame: {
		domain.LanguageEnglish: "Order **{orderId}** belongs to **{game}** and cannot be claimed in this server. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** pertenece a **{game}** y no puede reclamarse en este servidor. Este ticket se cerrará en breve.",
	},
	ScenarioOrderClaimed: {
		domain.LanguageEnglish: "Order **{orderId}** has already been claimed. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** ya fue reclamado. Este ticket se cerrará en breve.",
	},
	ScenarioAccountItems: {
		domain.LanguageEnglish: "Order **{orderId}** only contains account-delivered items; there is nothing to hand over here. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** solo contiene artículos entregados por cuenta; no hay nada que entregar aquí. Este ticket se cerrará en breve.",
	},
	ScenarioPhysicalOnly: {
		domain.LanguageEnglish: "Order **{orderId}** only contains physical fruit, which must be claimed in the trading server. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** solo contiene frutas físicas, que deben reclamarse en el servidor de intercambio. Este ticket se cerrará en breve.",
	},
	ScenarioNoPhysicalGoods: {
		domain.LanguageEnglish: "Order **{orderId}** has no physical fruit; those items are delivered in their own game server. Staff can still help you here.",
		domain.LanguageSpanish: "El pedido **{orderId}** no tiene frutas físicas; esos artículos se entregan en su propio servidor. El personal aún puede ayudarte aquí.",
	},
	ScenarioCancelRefund: {
		domain.LanguageEnglish: "Order **{orderId}** was cancelled or refunded. This ticket will close shortly.",
		domain.LanguageSpanish: "El pedido **{orderId}** fue cancelado o reembolsado. Este ticket se cerrará en breve.",
	},
	ScenarioOrderFound: {
		domain.LanguageEnglish: "Order **{orderId}** verified for **{robloxUsername}**.",
		domain.LanguageSpanish: "Pedido **{orderId}** verificado para **{robloxUsername}**.",
	},
	ScenarioRiskWarning: {
		domain.LanguageEnglish: "Heads up: order **{orderId}** is flagged **{riskLevel}** risk. Staff may ask for extra verification.",
		domain.LanguageSpanish: "Atención: el pedido **{orderId}** tiene riesgo **{riskLevel}**. El personal puede pedir verificación adicional.",
	},
	ScenarioRiskUnknown: {
		domain.LanguageEnglish: "We could not check this order's payment status right now; staff will verify it manually.",
		domain.LanguageSpanish: "No pudimos comprobar el estado de pago del pedido ahora; el personal lo verificará manualmente.",
	},
	ScenarioTimezonePrompt: {
		domain.LanguageEnglish: "Please pick your timezone below so staff can schedule your delivery.",
		domain.LanguageSpanish: "Elige tu zona horaria abajo para que el personal pueda programar tu entrega.",
	},
	ScenarioTimezoneRecorded: {
		domain.LanguageEnglish: "Timezone **{timezone}** recorded.",
		domain.LanguageSpanish: "Zona horaria **{timezone}** registrada.",
	},
	ScenarioSummary: {
		domain.LanguageEnglish: "All set! Order: **{orderId}** · Account: **{robloxUsername}** · Timezone: **{timezone}**. Staff will be with you soon.",
		domain.LanguageSpanish: "¡Listo! Pedido: **{orderId}** · Cuenta: **{robloxUsername}** · Zona horaria: **{timezone}**. El personal te atenderá pronto.",
	},
	ScenarioCompletion: {
		domain.LanguageEnglish: "Your order **{orderId}** has been delivered. Thank you! Consider leaving a review in <#{reviewsChannel}>.",
		domain.LanguageSpanish: "Tu pedido **{orderId}** ha sido entregado. ¡Gracias! Considera dejar una reseña en <#{reviewsChannel}>.",
	},
	ScenarioTranscript: {
		domain.LanguageEnglish: "Order **{orderId}** fulfilled by <@{actor}> for <@{userId}> (account {robloxUsername}, timezone {timezone}, channel <#{channelId}>).",
	},
	ScenarioGenericError: {
		domain.LanguageEnglish: "Something went wrong on our side. Please try again in a moment.",
		domain.LanguageSpanish: "Algo salió mal por nuestra parte. Inténtalo de nuevo en un momento.",
	},
}

// Send implements Notifier.
func (r *Renderer) Send(ctx context.Context, channelID string, lang domain.Language, scenario Scenario, params Params) error {
	return r.platform.SendMessage(ctx, channelID, r.render(lang, scenario, params))
}

// SendDirect implements Notifier.
func (r *Renderer) SendDirect(ctx context.Context, userID string, lang domain.Language, scenario Scenario, params Params) error {
	return r.platform.SendDirectMessage(ctx, userID, r.render(lang, scenario, params))
}

func (r *Renderer) render(lang domain.Language, scenario Scenario, params Params) platform.Message {
	byLang, ok := templates[scenario]
	if !ok {
		r.logger.Warn("no template for scenario", zap.String("scenario", string(scenario)))
		return platform.Message{Content: string(scenario)}
	}
	text, ok := byLang[lang]
	if !ok {
		text = byLang[domain.LanguageEnglish]
	}
	for key, value := range params {
		text = strings.ReplaceAll(text, "{"+key+"}", fmt.Sprint(value))
	}

	message := platform.Message{Content: text}
	switch scenario {
	case ScenarioWelcome:
		message.Components = selectMenu(ComponentLanguageSelect, []selectOption{
			{Label: "English", Value: string(domain.LanguageEnglish)},
			{Label: "Español", Value: string(domain.LanguageSpanish)},
		})
	case ScenarioTimezonePrompt:
		message.Components = selectMenu(ComponentTimezoneSelect, timezoneOptions())
	}
	return message
}

type selectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// selectMenu builds a single-row string select in the platform's
// component wire shape.
func selectMenu(customID string, options []selectOption) any {
	return []map[string]any{{
		"type": 1,
		"components": []map[string]any{{
			"type":      3,
			"custom_id": customID,
			"options":   options,
		}},
	}}
}

func timezoneOptions() []selectOption {
	zones := []string{
		"UTC-8 (Pacific)",
		"UTC-5 (Eastern)",
		"UTC+0 (London)",
		"UTC+1 (Central Europe)",
		"UTC+3 (Moscow)",
		"UTC+5:30 (India)",
		"UTC+8 (Singapore)",
		"UTC+10 (Sydney)",
	}
	options := make([]selectOption, len(zones))
	for i, zone := range zones {
		options[i] = selectOption{Label: zone, Value: zone}
	}
	return options
}
