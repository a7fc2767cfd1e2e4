package models

import "time"

// Tier is a subscription level. A user has exactly one active tier.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// AtLeast reports whether t grants everything min does.
func (t Tier) AtLeast(min Tier) bool {
	return tierRank[t] >= tierRank[min]
}

var tierRank = map[Tier]int{
	TierFree:  0,
	TierBasic: 1,
	TierPro:   2,
}

// ParseTier returns the tier for s, defaulting to free for unknown values.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBasic:
		return TierBasic
	case TierPro:
		return TierPro
	default:
		return TierFree
	}
}

// Channel is the inbound message channel, used to pick the quota counter.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
)

// Role is the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// User is the long-lived per-device identity with its tier, monthly
// counters and persona state. Counters only move through the storage
// layer's reserve/release/reset operations.
type User struct {
	ID              string    `json:"id"`
	Tier            Tier      `json:"tier"`
	TextCount       int       `json:"text_count"`
	VoiceCount      int       `json:"voice_count"`
	CreatorCount    int       `json:"creator_count"`
	CounterResetAt  time.Time `json:"counter_reset_at"`
	MemoryEnabled   bool      `json:"memory_enabled"`
	VoiceNudges     bool      `json:"voice_nudges"`
	DeliveryMode    string    `json:"delivery_mode"`
	Language        string    `json:"language"`
	EmotionState    string    `json:"emotion_state"`
	PersonalityMode string    `json:"personality_mode"`
	GoalFocus       string    `json:"goal_focus"`
	CreatedAt       time.Time `json:"created_at"`
}

// Message is one entry in a user's append-only conversation log.
// Immutable once written except for the Important flag.
type Message struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID int       `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Emotion        string    `json:"emotion,omitempty"`
	Important      bool      `json:"important"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageRecord is the per-category analytics counter, incremented at most
// once per successfully completed handler invocation.
type UsageRecord struct {
	UserID     string    `json:"user_id"`
	Category   string    `json:"category"`
	Count      int       `json:"count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// InteractionEntry is the append-only audit trace of what was attempted,
// written after every dispatch regardless of handler outcome.
type InteractionEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Intent    Intent    `json:"intent"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
