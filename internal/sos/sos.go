// Package sos is the escalation collaborator invoked when the red-flag
// filter detects emergency content. Actual outreach (push, trusted
// contacts) is delivered by external infrastructure behind Escalator.
package sos

import (
	"context"

	"go.uber.org/zap"
)

// Escalator triggers the safety path for a user. force bypasses the
// user's notification preferences when a severe keyword matched.
type Escalator interface {
	Escalate(ctx context.Context, userID, messageText string, force bool) error
}

// Reply is the supportive text returned in place of a normal reply when
// a message escalates.
const Reply = "I'm really glad you told me. You don't have to face this alone. I've flagged this so you can get support, and if you're in immediate danger please reach out to local emergency services right now."

// LogEscalator records escalations; deployments swap in a real
// notifier.
type LogEscalator struct {
	logger *zap.Logger
}

func NewLogEscalator(logger *zap.Logger) *LogEscalator {
	return &LogEscalator{logger: logger}
}

func (e *LogEscalator) Escalate(ctx context.Context, userID, messageText string, force bool) error {
	e.logger.Warn("sos escalation triggered",
		zap.String("user_id", userID),
		zap.Bool("force", force),
		zap.Int("message_len", len(messageText)))
	return nil
}
