package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/models"
)

type stubClient struct {
	reply string
	err   error
}

func (s *stubClient) GenerateReply(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func classify(t *testing.T, reply string, err error) models.Classification {
	t.Helper()
	clf := NewIntentClassifier(&stubClient{reply: reply, err: err}, 6, zap.NewNop())
	return clf.Classify(context.Background(), "some message", nil)
}

func TestClassifyJSONResponse(t *testing.T) {
	cls := classify(t, `{"intent": "mark_goal_completed", "emotion": "happy", "goal_id": 5, "habit_id": 0}`, nil)
	assert.Equal(t, models.IntentMarkGoalCompleted, cls.Intent)
	assert.Equal(t, "happy", cls.Emotion)
	assert.Equal(t, int64(5), cls.Entities.GoalID)
	assert.Zero(t, cls.Entities.HabitID)
}

func TestClassifyBareToken(t *testing.T) {
	cls := classify(t, "add_journal_entry", nil)
	assert.Equal(t, models.IntentAddJournalEntry, cls.Intent)

	cls = classify(t, "  VIEW_GOALS  ", nil)
	assert.Equal(t, models.IntentViewGoals, cls.Intent)
}

func TestClassifyCodeFencedJSON(t *testing.T) {
	cls := classify(t, "```json\n{\"intent\": \"create_habit\", \"emotion\": \"neutral\", \"goal_id\": 0, \"habit_id\": 12}\n```", nil)
	assert.Equal(t, models.IntentCreateHabit, cls.Intent)
	assert.Equal(t, int64(12), cls.Entities.HabitID)
}

func TestClassifyQuotedEntityID(t *testing.T) {
	cls := classify(t, `{"intent": "update_goal", "emotion": "", "goal_id": "7", "habit_id": ""}`, nil)
	assert.Equal(t, models.IntentUpdateGoal, cls.Intent)
	assert.Equal(t, int64(7), cls.Entities.GoalID)
	assert.Zero(t, cls.Entities.HabitID)
}

func TestClassifyUnknownTagCoercesToFallback(t *testing.T) {
	cls := classify(t, "banana", nil)
	assert.Equal(t, models.IntentFallback, cls.Intent)

	cls = classify(t, `{"intent": "banana", "emotion": "happy"}`, nil)
	assert.Equal(t, models.IntentFallback, cls.Intent)
}

func TestClassifyModelFailureCoercesToFallback(t *testing.T) {
	cls := classify(t, "", errors.New("connection refused"))
	assert.Equal(t, models.IntentFallback, cls.Intent)
}

func TestClassifyEmptyMessage(t *testing.T) {
	clf := NewIntentClassifier(&stubClient{reply: "chat"}, 6, zap.NewNop())
	cls := clf.Classify(context.Background(), "   ", nil)
	assert.Equal(t, models.IntentFallback, cls.Intent)
}

// TestParseClosure is the closure property: whatever the model emits,
// Parse returns a member of the vocabulary.
func TestParseClosure(t *testing.T) {
	logger := zap.NewNop()
	garbage := []string{
		"",
		"   ",
		"banana",
		"BANANA SPLIT",
		"{",
		"}{",
		`{"intent": }`,
		`{"intent": 42}`,
		`{"intent": null}`,
		`{"wrong_key": "chat"}`,
		`[1, 2, 3]`,
		"\x00\xff\xfe",
		"<!DOCTYPE html><html></html>",
		`{"intent": "chat", "goal_id": "not-a-number"}`,
		`{"intent": "chat", "goal_id": -3}`,
		"```\ntotally not json\n```",
		"intent: chat",
	}
	for _, raw := range garbage {
		cls := Parse(raw, logger)
		require.True(t, models.ValidIntent(cls.Intent), "raw %q produced %q", raw, cls.Intent)
	}

	// Every vocabulary member round-trips as a bare token.
	for _, intent := range models.Intents {
		cls := Parse(string(intent), logger)
		assert.Equal(t, intent, cls.Intent)
	}
}

func TestParseMalformedEntityLeavesIDUnset(t *testing.T) {
	cls := Parse(`{"intent": "mark_goal_completed", "goal_id": "seven"}`, zap.NewNop())
	assert.Equal(t, models.IntentMarkGoalCompleted, cls.Intent)
	assert.Zero(t, cls.Entities.GoalID)
}
