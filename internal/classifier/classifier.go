// Package classifier turns free-text user messages into one tag from
// the closed intent vocabulary, plus best-effort emotion and entity
// extraction. Whatever the model returns, the result is always a valid
// vocabulary member: anything unparseable degrades to fallback.
package classifier

import (
	"context"

	"github.com/arialabs/aria-backend/internal/models"
)

// Classifier is the contract the dispatcher consumes.
type Classifier interface {
	Classify(ctx context.Context, messageText string, recentContext []models.Message) models.Classification
}

// Fallback is the classification every degraded path resolves to.
func Fallback() models.Classification {
	return models.Classification{Intent: models.IntentFallback}
}
