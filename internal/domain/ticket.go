package domain

import "time"

// TicketStage enumerates the ticket lifecycle positions. The first four
// form a strictly forward-moving conversation flow; completed and
// cancelled are absorbing and reachable from any non-terminal stage.
type TicketStage string

const (
	StageLanguagePreference TicketStage = "languagePreference"
	StageOrderVerification  TicketStage = "orderVerification"
	StageTimezone           TicketStage = "timezone"
	StageFinished           TicketStage = "finished"
	StageCompleted          TicketStage = "completed"
	StageCancelled          TicketStage = "cancelled"
)

// stageRank orders the progressive stages. Terminal stages carry no rank.
var stageRank = map[TicketStage]int{
	StageLanguagePreference: 0,
	StageOrderVerification:  1,
	StageTimezone:           2,
	StageFinished:           3,
}

// Terminal reports whether the stage is absorbing.
func (s TicketStage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// CanAdvanceTo reports whether moving from s to next is a legal
// transition: one step forward along the flow, or into a terminal stage
// from any non-terminal one. Backward moves are never legal.
func (s TicketStage) CanAdvanceTo(next TicketStage) bool {
	if s.Terminal() {
		return false
	}
	if next.Terminal() {
		return true
	}
	from, ok := stageRank[s]
	if !ok {
		return false
	}
	to, ok := stageRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// ActiveStages lists every non-terminal stage, the set used for
// "at most one active ticket per order" lookups.
func ActiveStages() []TicketStage {
	return []TicketStage{StageLanguagePreference, StageOrderVerification, StageTimezone, StageFinished}
}

// Language enumerates supported conversation languages.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

// ValidLanguage reports whether code is a supported language.
func ValidLanguage(code Language) bool {
	return code == LanguageEnglish || code == LanguageSpanish
}

// Ticket is one tracked support conversation, bound to a single channel
// and, after verification, at most one order.
type Ticket struct {
	ChannelID       string
	UserID          string
	ServerName      string
	Stage           TicketStage
	Language        *Language
	OrderID         *string
	Order           *Order
	RobloxUsername  *string
	Timezone        *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
