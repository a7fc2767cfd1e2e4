package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/llm"
	"github.com/arialabs/aria-backend/internal/models"
	"github.com/arialabs/aria-backend/internal/storage"
)

// Handlers holds the collaborator set shared by the built-in feature
// handlers. Each handler only implements the dispatch contract; the
// feature's own CRUD surface lives elsewhere.
type Handlers struct {
	client llm.Client
	store  storage.Storage
	logger *zap.Logger
}

func NewHandlers(client llm.Client, store storage.Storage, logger *zap.Logger) *Handlers {
	return &Handlers{client: client, store: store, logger: logger}
}

// Registry returns the full intent-to-handler table.
func (h *Handlers) Registry() (*Registry, error) {
	return NewRegistry(map[models.Intent]HandlerFunc{
		models.IntentChat:                 h.Chat,
		models.IntentSmartReply:           h.Chat,
		models.IntentAddJournalEntry:      h.AddJournalEntry,
		models.IntentViewJournal:          h.ViewJournal,
		models.IntentDeleteJournalEntry:   h.action("journal_entry_deleted", "Done, I removed that journal entry."),
		models.IntentCreateHabit:          h.habitAction("habit_created", "Got it, I'll track that habit for you."),
		models.IntentLogHabit:             h.habitAction("habit_logged", "Logged! Keep the streak going."),
		models.IntentViewHabits:           h.action("habits_listed", "Here's where your habits stand."),
		models.IntentDeleteHabit:          h.habitAction("habit_deleted", "Okay, I stopped tracking that habit."),
		models.IntentCreateGoal:           h.goalAction("goal_created", "Love it. That goal is on the board."),
		models.IntentUpdateGoal:           h.goalAction("goal_updated", "Updated. Your goal reflects that now."),
		models.IntentMarkGoalCompleted:    h.goalAction("goal_completed", "That's a big one. Congratulations on finishing it!"),
		models.IntentViewGoals:            h.action("goals_listed", "Here's what you're working toward."),
		models.IntentDeleteGoal:           h.goalAction("goal_deleted", "Alright, I took that goal off your list."),
		models.IntentScheduleCheckin:      h.action("checkin_scheduled", "I'll check in with you then."),
		models.IntentCancelCheckin:        h.action("checkin_cancelled", "No problem, that check-in is off."),
		models.IntentViewCheckins:         h.action("checkins_listed", "Here are your upcoming check-ins."),
		models.IntentSetReminder:          h.action("reminder_set", "Reminder set. I won't let it slip."),
		models.IntentCancelReminder:       h.action("reminder_cancelled", "Okay, I cancelled that reminder."),
		models.IntentWebSearch:            h.WebSearch,
		models.IntentGenerateCaption:      h.creatorTool("caption", "Write a short, engaging social media caption for this:"),
		models.IntentGenerateContentIdeas: h.creatorTool("content_ideas", "Suggest five fresh content ideas based on this:"),
		models.IntentGenerateScript:       h.creatorTool("script", "Write a short video script based on this:"),
		models.IntentPersonaWeeklySummary: h.WeeklySummary,
		models.IntentSetPersonality:       h.SetPersonality,
		models.IntentSetGoalFocus:         h.SetGoalFocus,
		models.IntentToggleVoiceNudges:    h.ToggleVoiceNudges,
		models.IntentDeviceStatus:         h.DeviceStatus,
		models.IntentUpdateDeliveryMode:   h.UpdateDeliveryMode,
		models.IntentHelp:                 h.Help,
		models.IntentFallback:             h.Fallback,
	})
}

// Chat produces a conversational reply in the user's configured
// personality, with recent context folded into the prompt.
func (h *Handlers) Chat(ctx context.Context, req *Request) (*Result, error) {
	var b strings.Builder
	b.WriteString("You are a warm, concise personal assistant.")
	if req.User.PersonalityMode != "" {
		fmt.Fprintf(&b, " Personality mode: %s.", req.User.PersonalityMode)
	}
	if req.User.GoalFocus != "" {
		fmt.Fprintf(&b, " The user is currently focused on: %s.", req.User.GoalFocus)
	}
	b.WriteString("\n\n")
	for _, m := range req.Recent {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", req.Text)

	reply, err := h.client.GenerateReply(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("chat reply: %w", err)
	}
	return &Result{Reply: reply}, nil
}

// AddJournalEntry persists the message as an important journal entry.
func (h *Handlers) AddJournalEntry(ctx context.Context, req *Request) (*Result, error) {
	entry := &models.Message{
		ID:             uuid.New().String(),
		UserID:         req.User.ID,
		ConversationID: req.ConversationID,
		Role:           models.RoleUser,
		Content:        req.Text,
		Emotion:        req.Classification.Emotion,
		Important:      true,
		CreatedAt:      time.Now(),
	}
	if err := h.store.SaveMessage(ctx, entry); err != nil {
		return nil, fmt.Errorf("save journal entry: %w", err)
	}
	return &Result{
		Reply:   "Saved to your journal. Thanks for sharing that with me.",
		Payload: map[string]any{"action": "journal_entry_created", "entry_id": entry.ID},
	}, nil
}

// ViewJournal returns the user's recent important entries.
func (h *Handlers) ViewJournal(ctx context.Context, req *Request) (*Result, error) {
	msgs, err := h.store.RecentMessages(ctx, req.User.ID, req.ConversationID, 50)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	var entries []map[string]any
	for _, m := range msgs {
		if m.Important {
			entries = append(entries, map[string]any{
				"entry_id":   m.ID,
				"content":    m.Content,
				"created_at": m.CreatedAt,
			})
		}
	}
	return &Result{
		Reply:   "Here's what you've written lately.",
		Payload: map[string]any{"action": "journal_listed", "entries": entries},
	}, nil
}

// WebSearch answers through the search-backed reply path. The search
// backend itself sits behind the model collaborator.
func (h *Handlers) WebSearch(ctx context.Context, req *Request) (*Result, error) {
	prompt := fmt.Sprintf(
		"Answer the user's question using current knowledge. Be factual and brief.\n\nQuestion: %s", req.Text)
	reply, err := h.client.GenerateReply(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("web search reply: %w", err)
	}
	return &Result{Reply: reply, Payload: map[string]any{"action": "web_search"}}, nil
}

// WeeklySummary builds the pro-tier persona summary from recent
// conversation history.
func (h *Handlers) WeeklySummary(ctx context.Context, req *Request) (*Result, error) {
	msgs, err := h.store.RecentMessages(ctx, req.User.ID, req.ConversationID, 50)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	var b strings.Builder
	b.WriteString("Summarize the user's week from these messages: themes, mood, progress on goals and habits. Keep it personal and under 120 words.\n\n")
	for _, m := range msgs {
		if m.Role == models.RoleUser {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	reply, err := h.client.GenerateReply(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("weekly summary: %w", err)
	}
	return &Result{Reply: reply, Payload: map[string]any{"action": "weekly_summary"}}, nil
}

func (h *Handlers) SetPersonality(ctx context.Context, req *Request) (*Result, error) {
	mode := lastWord(req.Text)
	user := *req.User
	user.PersonalityMode = mode
	if err := h.store.UpdateUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("set personality: %w", err)
	}
	return &Result{
		Reply:   fmt.Sprintf("Done. I'll be more %s from now on.", mode),
		Payload: map[string]any{"action": "personality_updated", "mode": mode},
	}, nil
}

func (h *Handlers) SetGoalFocus(ctx context.Context, req *Request) (*Result, error) {
	user := *req.User
	user.GoalFocus = strings.TrimSpace(req.Text)
	if err := h.store.UpdateUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("set goal focus: %w", err)
	}
	return &Result{
		Reply:   "Got it. I'll keep our conversations oriented around that.",
		Payload: map[string]any{"action": "goal_focus_updated"},
	}, nil
}

func (h *Handlers) ToggleVoiceNudges(ctx context.Context, req *Request) (*Result, error) {
	user := *req.User
	user.VoiceNudges = !user.VoiceNudges
	if err := h.store.UpdateUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("toggle voice nudges: %w", err)
	}
	state := "off"
	if user.VoiceNudges {
		state = "on"
	}
	return &Result{
		Reply:   fmt.Sprintf("Voice nudges are now %s.", state),
		Payload: map[string]any{"action": "voice_nudges_toggled", "enabled": user.VoiceNudges},
	}, nil
}

func (h *Handlers) UpdateDeliveryMode(ctx context.Context, req *Request) (*Result, error) {
	mode := "text"
	if strings.Contains(strings.ToLower(req.Text), "voice") {
		mode = "voice"
	}
	user := *req.User
	user.DeliveryMode = mode
	if err := h.store.UpdateUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("update delivery mode: %w", err)
	}
	return &Result{
		Reply:   fmt.Sprintf("I'll reply in %s from now on.", mode),
		Payload: map[string]any{"action": "delivery_mode_updated", "mode": mode},
	}, nil
}

func (h *Handlers) DeviceStatus(ctx context.Context, req *Request) (*Result, error) {
	return &Result{
		Reply: "Here's how things are set up right now.",
		Payload: map[string]any{
			"action":         "device_status",
			"tier":           req.User.Tier,
			"delivery_mode":  req.User.DeliveryMode,
			"voice_nudges":   req.User.VoiceNudges,
			"memory_enabled": req.User.MemoryEnabled,
		},
	}, nil
}

func (h *Handlers) Help(ctx context.Context, req *Request) (*Result, error) {
	return &Result{
		Reply: "I can journal with you, track habits and goals, schedule check-ins and reminders, search the web, and help with creator content. Just tell me what you need in your own words.",
	}, nil
}

// Fallback never touches the model, so it stays available when
// classification itself degraded because the model was unreachable.
func (h *Handlers) Fallback(ctx context.Context, req *Request) (*Result, error) {
	return &Result{
		Reply: "I didn't quite catch what you'd like me to do. Could you say it another way?",
	}, nil
}

// action returns a handler for intents whose business content lives in
// an external feature service; here they acknowledge and emit the
// structured action for that service to pick up.
func (h *Handlers) action(action, reply string) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Result, error) {
		return &Result{Reply: reply, Payload: map[string]any{"action": action}}, nil
	}
}

func (h *Handlers) goalAction(action, reply string) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Result, error) {
		payload := map[string]any{"action": action}
		if id := req.Classification.Entities.GoalID; id > 0 {
			payload["goal_id"] = id
		}
		return &Result{Reply: reply, Payload: payload}, nil
	}
}

func (h *Handlers) habitAction(action, reply string) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Result, error) {
		payload := map[string]any{"action": action}
		if id := req.Classification.Entities.HabitID; id > 0 {
			payload["habit_id"] = id
		}
		return &Result{Reply: reply, Payload: payload}, nil
	}
}

func (h *Handlers) creatorTool(kind, instruction string) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Result, error) {
		reply, err := h.client.GenerateReply(ctx, instruction+"\n\n"+req.Text)
		if err != nil {
			return nil, fmt.Errorf("creator tool %s: %w", kind, err)
		}
		return &Result{Reply: reply, Payload: map[string]any{"action": "creator_" + kind}}, nil
	}
}

func lastWord(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return "balanced"
	}
	return strings.Trim(fields[len(fields)-1], ".!,?")
}
