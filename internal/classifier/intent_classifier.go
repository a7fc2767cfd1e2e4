package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/arialabs/aria-backend/internal/llm"
	"github.com/arialabs/aria-backend/internal/models"
	"go.uber.org/zap"
)

// looseID decodes an entity id from whatever shape the model produced:
// a number, a quoted number, null, or junk. Junk becomes zero ("unset")
// instead of failing the whole classification.
type looseID int64

func (l *looseID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*l = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		*l = 0
		return nil
	}
	*l = looseID(n)
	return nil
}

// rawResult mirrors the JSON object the prompt asks the model for.
type rawResult struct {
	Intent  string  `json:"intent"`
	Emotion string  `json:"emotion"`
	GoalID  looseID `json:"goal_id"`
	HabitID looseID `json:"habit_id"`
}

// IntentClassifier classifies with one model call per message. Retries
// on transient network failure belong to the llm.Client's own policy;
// the classifier itself never retries.
type IntentClassifier struct {
	client     llm.Client
	maxContext int
	logger     *zap.Logger
}

func NewIntentClassifier(client llm.Client, maxContext int, logger *zap.Logger) *IntentClassifier {
	if maxContext <= 0 {
		maxContext = 6
	}
	return &IntentClassifier{
		client:     client,
		maxContext: maxContext,
		logger:     logger,
	}
}

func (c *IntentClassifier) Classify(ctx context.Context, messageText string, recentContext []models.Message) models.Classification {
	if strings.TrimSpace(messageText) == "" {
		return Fallback()
	}

	raw, err := c.client.GenerateReply(ctx, c.buildPrompt(messageText, recentContext))
	if err != nil {
		c.logger.Warn("classification call failed, using fallback", zap.Error(err))
		return Fallback()
	}

	return Parse(raw, c.logger)
}

// Parse turns raw model output into a validated classification. Accepts
// either a JSON object with an "intent" field or a bare lowercase
// token. Unknown tags, empty output and malformed JSON all coerce to
// fallback; entity parse failures leave the entity unset.
func Parse(raw string, logger *zap.Logger) models.Classification {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return Fallback()
	}

	if strings.HasPrefix(raw, "{") {
		var parsed rawResult
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			logger.Warn("malformed classifier output", zap.String("raw", truncate(raw, 200)), zap.Error(err))
			return Fallback()
		}
		tag := models.Intent(strings.ToLower(strings.TrimSpace(parsed.Intent)))
		if !models.ValidIntent(tag) {
			logger.Warn("classifier returned unknown intent", zap.String("tag", string(tag)))
			return Fallback()
		}
		return models.Classification{
			Intent:  tag,
			Emotion: strings.ToLower(strings.TrimSpace(parsed.Emotion)),
			Entities: models.Entities{
				GoalID:  int64(parsed.GoalID),
				HabitID: int64(parsed.HabitID),
			},
		}
	}

	tag := models.Intent(strings.ToLower(strings.Fields(raw)[0]))
	if !models.ValidIntent(tag) {
		logger.Warn("classifier returned unknown intent", zap.String("tag", string(tag)))
		return Fallback()
	}
	return models.Classification{Intent: tag}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *IntentClassifier) buildPrompt(messageText string, recentContext []models.Message) string {
	var b strings.Builder
	b.WriteString("You are the intent router for a personal assistant. ")
	b.WriteString("Classify the user's message into exactly one of these intents:\n")
	for _, intent := range models.Intents {
		b.WriteString("- ")
		b.WriteString(string(intent))
		b.WriteByte('\n')
	}
	b.WriteString(`
Also label the user's current emotion with a single lowercase word
(e.g. happy, sad, anxious, angry, neutral) and extract a referenced
goal or habit id when the message mentions one.

Return a JSON object with this exact structure and nothing else:
{"intent": "intent_tag", "emotion": "label", "goal_id": 0, "habit_id": 0}
Use 0 when no id is referenced.

Examples:
"I want to write about my day" -> {"intent": "add_journal_entry", "emotion": "neutral", "goal_id": 0, "habit_id": 0}
"I finished my goal to read 5 books" -> {"intent": "mark_goal_completed", "emotion": "happy", "goal_id": 5, "habit_id": 0}
"did I meditate this week" -> {"intent": "view_habits", "emotion": "neutral", "goal_id": 0, "habit_id": 0}
"write me an instagram caption about sunsets" -> {"intent": "generate_caption", "emotion": "neutral", "goal_id": 0, "habit_id": 0}
"hey how are you" -> {"intent": "chat", "emotion": "neutral", "goal_id": 0, "habit_id": 0}
`)

	if len(recentContext) > 0 {
		start := len(recentContext) - c.maxContext
		if start < 0 {
			start = 0
		}
		b.WriteString("\nRecent conversation:\n")
		for _, m := range recentContext[start:] {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, truncate(m.Content, 300))
		}
	}

	b.WriteString("\nUser message: ")
	b.WriteString(messageText)
	return b.String()
}
