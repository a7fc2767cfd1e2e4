package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/cache"
	"github.com/arialabs/aria-backend/internal/classifier"
	"github.com/arialabs/aria-backend/internal/llm"
	"github.com/arialabs/aria-backend/internal/models"
	"github.com/arialabs/aria-backend/internal/quota"
	"github.com/arialabs/aria-backend/internal/redflag"
	"github.com/arialabs/aria-backend/internal/sos"
	"github.com/arialabs/aria-backend/internal/storage"
	"github.com/arialabs/aria-backend/internal/tier"
)

// ErrInternal is what the transport layer sees when something escapes
// the pipeline; details stay in the logs.
var ErrInternal = errors.New("dispatch: internal error")

// Inbound is the minimal per-request input contract from the router
// layer. The identity is already authenticated upstream.
type Inbound struct {
	UserID         string
	Text           string
	ConversationID int
	Channel        models.Channel
}

// Engine runs one message through the pipeline. Engines are safe for
// concurrent use; per-user consistency comes from the storage layer's
// conditional operations, not from in-process locks.
type Engine struct {
	store      storage.Storage
	gate       *quota.Gate
	clf        classifier.Classifier
	registry   *Registry
	escalator  sos.Escalator
	synth      llm.Synthesizer
	translator llm.Translator
	recent     *cache.RecentCache
	logger     *zap.Logger
}

func NewEngine(
	store storage.Storage,
	gate *quota.Gate,
	clf classifier.Classifier,
	registry *Registry,
	escalator sos.Escalator,
	synth llm.Synthesizer,
	translator llm.Translator,
	recent *cache.RecentCache,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:      store,
		gate:       gate,
		clf:        clf,
		registry:   registry,
		escalator:  escalator,
		synth:      synth,
		translator: translator,
		recent:     recent,
		logger:     logger,
	}
}

// HandleMessage is the full pipeline: red-flag scan, quota gate,
// classification, tier check, handler, post-processing. Denials and
// intercepts come back as ordinary responses; the returned error is
// reserved for infrastructure failures.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (resp *models.Response, err error) {
	// Set once the gate has reserved a unit; a panic after that point
	// must give the unit back, the failed attempt is never billed.
	var reservedFor string
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in dispatch pipeline",
				zap.Any("panic", r),
				zap.String("user_id", in.UserID),
				zap.Stack("stack"))
			if reservedFor != "" {
				if relErr := e.gate.Release(ctx, reservedFor, in.Channel); relErr != nil {
					e.logger.Error("failed to release reservation after panic",
						zap.String("user_id", reservedFor), zap.Error(relErr))
				}
			}
			resp, err = nil, ErrInternal
		}
	}()

	if in.ConversationID <= 0 {
		in.ConversationID = 1
	}
	if in.Channel == "" {
		in.Channel = models.ChannelText
	}

	// Red-flag scan runs before anything else: no quota is consumed
	// and nothing is persisted for intercepted messages.
	if scan := redflag.Scan(in.Text); scan.Reason != redflag.ReasonNone {
		return e.intercept(ctx, in, scan)
	}

	user, err := e.store.GetOrCreateUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	decision, err := e.gate.Check(ctx, user, in.Channel)
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !decision.Allowed {
		return &models.Response{
			Kind:           models.ResponseQuotaExceeded,
			Reply:          fmt.Sprintf("You've used all %d messages included in your plan this month. Upgrade to keep the conversation going!", decision.Limit),
			RemainingQuota: 0,
			QuotaLimit:     decision.Limit,
			CurrentTier:    user.Tier,
		}, nil
	}
	reservedFor = user.ID

	recentMsgs, err := e.recent.Context(ctx, user.ID, in.ConversationID, 10)
	if err != nil {
		e.logger.Warn("recent context unavailable", zap.String("user_id", user.ID), zap.Error(err))
		recentMsgs = nil
	}

	cls := e.clf.Classify(ctx, in.Text, recentMsgs)

	if required := tier.MinimumTier(cls.Intent); !user.Tier.AtLeast(required) {
		// The reserved unit goes back: tier denials must leave no side
		// effects.
		if relErr := e.gate.Release(ctx, user.ID, in.Channel); relErr != nil {
			e.logger.Error("failed to release reservation after tier denial",
				zap.String("user_id", user.ID), zap.Error(relErr))
		}
		return &models.Response{
			Kind:            models.ResponseTierRequired,
			Reply:           fmt.Sprintf("%s is part of the %s plan. Upgrade to unlock it!", intentLabel(cls.Intent), required),
			IntentAttempted: cls.Intent,
			RemainingQuota:  decision.Remaining + 1,
			RequiredTier:    required,
			CurrentTier:     user.Tier,
		}, nil
	}

	req := &Request{
		User:           user,
		Text:           in.Text,
		ConversationID: in.ConversationID,
		Channel:        in.Channel,
		Classification: cls,
		Recent:         recentMsgs,
	}
	result, handlerErr := e.registry.Lookup(cls.Intent)(ctx, req)

	return e.postProcess(ctx, in, user, cls, decision, result, handlerErr), nil
}

// intercept resolves a red-flag scan: canned replies for probing
// questions, SOS escalation for emergencies. Skips the gate, the
// classifier and all bookkeeping.
func (e *Engine) intercept(ctx context.Context, in Inbound, scan redflag.Result) (*models.Response, error) {
	if scan.Reason == redflag.ReasonEmergency {
		if err := e.escalator.Escalate(ctx, in.UserID, in.Text, scan.Severe); err != nil {
			e.logger.Error("sos escalation failed",
				zap.String("user_id", in.UserID), zap.Error(err))
		}
		return &models.Response{
			Kind:  models.ResponseSOS,
			Reply: sos.Reply,
		}, nil
	}

	e.logger.Info("red-flag intercept",
		zap.String("user_id", in.UserID),
		zap.String("reason", string(scan.Reason)))
	return &models.Response{
		Kind:  models.ResponseRedFlag,
		Reply: scan.Reply,
	}, nil
}

// postProcess does the uniform bookkeeping after a handler ran: the
// interaction log is written no matter what; usage, emotion and
// message persistence only follow a successful handler; a faulting
// handler gets its reserved quota unit back.
func (e *Engine) postProcess(
	ctx context.Context,
	in Inbound,
	user *models.User,
	cls models.Classification,
	decision quota.Decision,
	result *Result,
	handlerErr error,
) *models.Response {
	now := time.Now()

	if err := e.store.AppendInteraction(ctx, &models.InteractionEntry{
		UserID:    user.ID,
		Intent:    cls.Intent,
		Source:    in.Text,
		CreatedAt: now,
	}); err != nil {
		e.logger.Error("failed to append interaction log",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	if handlerErr != nil {
		e.logger.Error("handler fault",
			zap.String("user_id", user.ID),
			zap.String("intent", string(cls.Intent)),
			zap.Error(handlerErr))
		if err := e.gate.Release(ctx, user.ID, in.Channel); err != nil {
			e.logger.Error("failed to release reservation after handler fault",
				zap.String("user_id", user.ID), zap.Error(err))
		}
		return &models.Response{
			Kind:            models.ResponseHandlerError,
			Reply:           "Something went wrong handling that. Please try again in a moment.",
			IntentAttempted: cls.Intent,
			RemainingQuota:  decision.Remaining + 1,
			Diagnostic:      fmt.Sprintf("%s handler failed", cls.Intent),
			CurrentTier:     user.Tier,
		}
	}

	category := UsageCategory(cls.Intent)
	if err := e.store.IncrementUsageRecord(ctx, user.ID, category, now); err != nil {
		e.logger.Error("failed to increment usage record",
			zap.String("user_id", user.ID), zap.String("category", category), zap.Error(err))
	}
	if category == creatorCategory {
		if err := e.store.IncrementCreatorCount(ctx, user.ID); err != nil {
			e.logger.Error("failed to increment creator count",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if cls.Emotion != "" && cls.Emotion != user.EmotionState {
		if err := e.store.UpdateEmotionState(ctx, user.ID, cls.Emotion); err != nil {
			e.logger.Error("failed to update emotion state",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	reply := result.Reply
	if e.translator != nil && user.Language != "" && user.Language != "en" {
		reply = e.translator.Translate(ctx, reply, "en", user.Language)
	}

	if user.MemoryEnabled {
		e.persistExchange(ctx, in, user, cls, reply, now)
	}

	resp := &models.Response{
		Kind:            models.ResponseOK,
		Reply:           reply,
		Payload:         result.Payload,
		IntentAttempted: cls.Intent,
		RemainingQuota:  decision.Remaining,
		QuotaLimit:      decision.Limit,
		CurrentTier:     user.Tier,
	}

	if e.synth != nil && (in.Channel == models.ChannelVoice || user.DeliveryMode == "voice") {
		ref, err := e.synth.Synthesize(ctx, reply, llm.VoiceParams{})
		if err != nil {
			// Voice is decoration; the text reply stands.
			e.logger.Warn("voice synthesis failed",
				zap.String("user_id", user.ID), zap.Error(err))
		} else {
			resp.AudioRef = ref
		}
	}

	return resp
}

// persistExchange appends the user message and the assistant reply to
// the conversation log and refreshes the recent-context cache.
func (e *Engine) persistExchange(ctx context.Context, in Inbound, user *models.User, cls models.Classification, reply string, now time.Time) {
	userMsg := &models.Message{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		ConversationID: in.ConversationID,
		Role:           models.RoleUser,
		Content:        in.Text,
		Emotion:        cls.Emotion,
		CreatedAt:      now,
	}
	assistantMsg := &models.Message{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		ConversationID: in.ConversationID,
		Role:           models.RoleAssistant,
		Content:        reply,
		CreatedAt:      now.Add(time.Millisecond),
	}
	for _, msg := range []*models.Message{userMsg, assistantMsg} {
		if err := e.store.SaveMessage(ctx, msg); err != nil {
			e.logger.Error("failed to persist message",
				zap.String("user_id", user.ID), zap.Error(err))
			return
		}
		e.recent.Push(ctx, msg)
	}
}

var intentLabels = map[models.Intent]string{
	models.IntentGenerateCaption:      "Caption writing",
	models.IntentGenerateContentIdeas: "Content ideas",
	models.IntentGenerateScript:       "Script writing",
	models.IntentPersonaWeeklySummary: "Your weekly summary",
	models.IntentWebSearch:            "Web search",
	models.IntentToggleVoiceNudges:    "Voice nudges",
}

func intentLabel(intent models.Intent) string {
	if l, ok := intentLabels[intent]; ok {
		return l
	}
	return "That feature"
}
