package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/models"
	"github.com/arialabs/aria-backend/internal/storage"
)

func TestContextWithoutRedisFallsThroughToStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	_, err := store.GetOrCreateUser(ctx, "u1")
	require.NoError(t, err)

	base := time.Now()
	for i, content := range []string{"one", "two", "three"} {
		require.NoError(t, store.SaveMessage(ctx, &models.Message{
			ID: content, UserID: "u1", ConversationID: 1,
			Role: models.RoleUser, Content: content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	c := NewRecentCache(nil, store, zap.NewNop())
	msgs, err := c.Context(ctx, "u1", 1, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)

	// Push with no client is a no-op, not a panic.
	c.Push(ctx, &models.Message{ID: "x", UserID: "u1", ConversationID: 1})
}

func TestContextEmptyConversation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	c := NewRecentCache(nil, store, zap.NewNop())

	msgs, err := c.Context(ctx, "nobody", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
