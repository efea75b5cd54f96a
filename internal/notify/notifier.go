// Package notify defines the notification collaborator. The core names a
// scenario and supplies parameters; rendering the actual embed text is
// the presentation layer's problem.
package notify

import (
	"context"

	"github.com/spec-kit/claim-bot/internal/domain"
)

// Scenario tags the user-facing message to render.
type Scenario string

const (
	ScenarioWelcome          Scenario = "welcome"
	ScenarioOrderPrompt      Scenario = "order_prompt"
	ScenarioOrderNotFound    Scenario = "order_not_found"
	ScenarioTicketExists     Scenario = "ticket_exists"
	ScenarioMissingReceiver  Scenario = "missing_receiver_account"
	ScenarioDifferentGame    Scenario = "different_game"
	ScenarioOrderClaimed     Scenario = "order_already_claimed"
	ScenarioAccountItems     Scenario = "account_items_only"
	ScenarioPhysicalOnly     Scenario = "physical_goods_only"
	ScenarioNoPhysicalGoods  Scenario = "no_physical_goods"
	ScenarioCancelRefund     Scenario = "order_cancelled_or_refunded"
	ScenarioOrderFound       Scenario = "order_found"
	ScenarioRiskWarning      Scenario = "risk_warning"
	ScenarioRiskUnknown      Scenario = "risk_unknown"
	ScenarioTimezonePrompt   Scenario = "timezone_prompt"
	ScenarioTimezoneRecorded Scenario = "timezone_recorded"
	ScenarioSummary          Scenario = "summary"
	ScenarioCompletion       Scenario = "completion"
	ScenarioTranscript       Scenario = "transcript"
	ScenarioGenericError     Scenario = "generic_error"
)

// Params carries scenario substitutions, e.g. {"orderId": "12345"}.
type Params map[string]any

// Notifier renders and delivers scenario messages. Implementations own
// localization and formatting; the core only picks the scenario.
type Notifier interface {
	Send(ctx context.Context, channelID string, lang domain.Language, scenario Scenario, params Params) error
	SendDirect(ctx context.Context, userID string, lang domain.Language, scenario Scenario, params Params) error
}
