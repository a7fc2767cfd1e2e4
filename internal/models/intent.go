package models

// Intent is one tag from the closed classification vocabulary. The
// classifier guarantees every value it emits is a member of Intents;
// anything it cannot recognize becomes IntentFallback.
type Intent string

const (
	IntentChat                 Intent = "chat"
	IntentAddJournalEntry      Intent = "add_journal_entry"
	IntentViewJournal          Intent = "view_journal"
	IntentDeleteJournalEntry   Intent = "delete_journal_entry"
	IntentCreateHabit          Intent = "create_habit"
	IntentLogHabit             Intent = "log_habit"
	IntentViewHabits           Intent = "view_habits"
	IntentDeleteHabit          Intent = "delete_habit"
	IntentCreateGoal           Intent = "create_goal"
	IntentUpdateGoal           Intent = "update_goal"
	IntentMarkGoalCompleted    Intent = "mark_goal_completed"
	IntentViewGoals            Intent = "view_goals"
	IntentDeleteGoal           Intent = "delete_goal"
	IntentScheduleCheckin      Intent = "schedule_checkin"
	IntentCancelCheckin        Intent = "cancel_checkin"
	IntentViewCheckins         Intent = "view_checkins"
	IntentSetReminder          Intent = "set_reminder"
	IntentCancelReminder       Intent = "cancel_reminder"
	IntentWebSearch            Intent = "web_search"
	IntentSmartReply           Intent = "smart_reply"
	IntentGenerateCaption      Intent = "generate_caption"
	IntentGenerateContentIdeas Intent = "generate_content_ideas"
	IntentGenerateScript       Intent = "generate_script"
	IntentPersonaWeeklySummary Intent = "persona_weekly_summary"
	IntentSetPersonality       Intent = "set_personality"
	IntentSetGoalFocus         Intent = "set_goal_focus"
	IntentToggleVoiceNudges    Intent = "toggle_voice_nudges"
	IntentDeviceStatus         Intent = "device_status"
	IntentUpdateDeliveryMode   Intent = "update_delivery_mode"
	IntentHelp                 Intent = "help"
	IntentFallback             Intent = "fallback"
)

// Intents is the full closed vocabulary in a stable order.
var Intents = []Intent{
	IntentChat,
	IntentAddJournalEntry,
	IntentViewJournal,
	IntentDeleteJournalEntry,
	IntentCreateHabit,
	IntentLogHabit,
	IntentViewHabits,
	IntentDeleteHabit,
	IntentCreateGoal,
	IntentUpdateGoal,
	IntentMarkGoalCompleted,
	IntentViewGoals,
	IntentDeleteGoal,
	IntentScheduleCheckin,
	IntentCancelCheckin,
	IntentViewCheckins,
	IntentSetReminder,
	IntentCancelReminder,
	IntentWebSearch,
	IntentSmartReply,
	IntentGenerateCaption,
	IntentGenerateContentIdeas,
	IntentGenerateScript,
	IntentPersonaWeeklySummary,
	IntentSetPersonality,
	IntentSetGoalFocus,
	IntentToggleVoiceNudges,
	IntentDeviceStatus,
	IntentUpdateDeliveryMode,
	IntentHelp,
	IntentFallback,
}

var intentSet = func() map[Intent]struct{} {
	set := make(map[Intent]struct{}, len(Intents))
	for _, it := range Intents {
		set[it] = struct{}{}
	}
	return set
}()

// ValidIntent reports whether tag is a member of the closed vocabulary.
func ValidIntent(tag Intent) bool {
	_, ok := intentSet[tag]
	return ok
}

// Entities holds ids the classifier extracted from the message.
// Extraction is best-effort: a zero value means "not present" and
// handlers do their own validation.
type Entities struct {
	GoalID  int64 `json:"goal_id,omitempty"`
	HabitID int64 `json:"habit_id,omitempty"`
}

// Classification is the ephemeral result of one classifier call.
type Classification struct {
	Intent   Intent   `json:"intent"`
	Emotion  string   `json:"emotion,omitempty"`
	Entities Entities `json:"entities"`
}
