package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Translator converts text between languages. Implementations fail
// open: on any error the original text comes back unchanged, so a
// translation outage never breaks a conversation.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) string
}

// ModelTranslator translates through the reply-generation client.
type ModelTranslator struct {
	client Client
	logger *zap.Logger
}

func NewModelTranslator(client Client, logger *zap.Logger) *ModelTranslator {
	return &ModelTranslator{client: client, logger: logger}
}

func (t *ModelTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	if text == "" || sourceLang == targetLang {
		return text
	}
	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Return only the translation, nothing else.\n\n%s",
		sourceLang, targetLang, text)

	out, err := t.client.GenerateReply(ctx, prompt)
	if err != nil || out == "" {
		t.logger.Warn("translation failed, returning original text",
			zap.String("source", sourceLang),
			zap.String("target", targetLang),
			zap.Error(err))
		return text
	}
	return out
}
