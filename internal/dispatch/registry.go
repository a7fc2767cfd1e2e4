// Package dispatch is the per-request pipeline: red-flag scan, quota
// gate, classification, tier check, handler invocation and uniform
// post-processing. Each request runs the pipeline independently; the
// only shared state is the store.
package dispatch

import (
	"context"
	"fmt"

	"github.com/arialabs/aria-backend/internal/models"
)

// Request is the input every feature handler receives.
type Request struct {
	User           *models.User
	Text           string
	ConversationID int
	Channel        models.Channel
	Classification models.Classification
	Recent         []models.Message
}

// Result is what a handler produces on success.
type Result struct {
	Reply   string
	Payload map[string]any
}

// HandlerFunc is the contract every feature handler satisfies. A
// returned error is a handler fault: it is caught at the dispatcher
// boundary and never billed.
type HandlerFunc func(ctx context.Context, req *Request) (*Result, error)

// Registry maps every vocabulary tag to exactly one handler. Coverage
// is validated at construction so an unhandled intent is impossible at
// runtime.
type Registry struct {
	handlers map[models.Intent]HandlerFunc
}

func NewRegistry(handlers map[models.Intent]HandlerFunc) (*Registry, error) {
	for _, intent := range models.Intents {
		if handlers[intent] == nil {
			return nil, fmt.Errorf("dispatch: no handler registered for intent %q", intent)
		}
	}
	for intent := range handlers {
		if !models.ValidIntent(intent) {
			return nil, fmt.Errorf("dispatch: handler registered for unknown intent %q", intent)
		}
	}
	return &Registry{handlers: handlers}, nil
}

// Lookup returns the handler for a vocabulary tag.
func (r *Registry) Lookup(intent models.Intent) HandlerFunc {
	return r.handlers[intent]
}

// usageCategories maps each intent to the usage-record category billed
// on successful completion.
var usageCategories = map[models.Intent]string{
	models.IntentChat:                 "chat",
	models.IntentAddJournalEntry:      "journal_write",
	models.IntentViewJournal:          "journal_read",
	models.IntentDeleteJournalEntry:   "journal_write",
	models.IntentCreateHabit:          "habit_modify",
	models.IntentLogHabit:             "habit_modify",
	models.IntentViewHabits:           "habit_read",
	models.IntentDeleteHabit:          "habit_modify",
	models.IntentCreateGoal:           "goal_modify",
	models.IntentUpdateGoal:           "goal_modify",
	models.IntentMarkGoalCompleted:    "goal_modify",
	models.IntentViewGoals:            "goal_read",
	models.IntentDeleteGoal:           "goal_modify",
	models.IntentScheduleCheckin:      "checkin",
	models.IntentCancelCheckin:        "checkin",
	models.IntentViewCheckins:         "checkin",
	models.IntentSetReminder:          "reminder",
	models.IntentCancelReminder:       "reminder",
	models.IntentWebSearch:            "search",
	models.IntentSmartReply:           "smart_reply",
	models.IntentGenerateCaption:      "creator_tool",
	models.IntentGenerateContentIdeas: "creator_tool",
	models.IntentGenerateScript:       "creator_tool",
	models.IntentPersonaWeeklySummary: "persona",
	models.IntentSetPersonality:       "persona",
	models.IntentSetGoalFocus:         "persona",
	models.IntentToggleVoiceNudges:    "device",
	models.IntentDeviceStatus:         "device",
	models.IntentUpdateDeliveryMode:   "device",
	models.IntentHelp:                 "chat",
	models.IntentFallback:             "chat",
}

// UsageCategory returns the billing category for an intent.
func UsageCategory(intent models.Intent) string {
	if c, ok := usageCategories[intent]; ok {
		return c
	}
	return "chat"
}

const creatorCategory = "creator_tool"
