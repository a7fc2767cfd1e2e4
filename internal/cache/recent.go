// Package cache keeps a short per-conversation tail of messages in
// Redis so the classifier gets its context without a database read on
// every request. Every path fails open to storage.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/models"
	"github.com/arialabs/aria-backend/internal/storage"
)

const (
	recentMaxLen = 20
	recentTTL    = time.Hour
)

// RecentCache layers a Redis list per (user, conversation) over the
// message store. A nil client disables caching entirely.
type RecentCache struct {
	client *redis.Client
	store  storage.Storage
	logger *zap.Logger
}

func NewRecentCache(client *redis.Client, store storage.Storage, logger *zap.Logger) *RecentCache {
	return &RecentCache{client: client, store: store, logger: logger}
}

func recentKey(userID string, conversationID int) string {
	return fmt.Sprintf("conv:%s:%d:recent", userID, conversationID)
}

// Context returns up to limit recent messages, oldest first. Redis hit
// first; on miss or error it reads storage and warms the cache.
func (c *RecentCache) Context(ctx context.Context, userID string, conversationID, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > recentMaxLen {
		limit = recentMaxLen
	}

	if c.client != nil {
		if msgs, ok := c.fromRedis(ctx, userID, conversationID, limit); ok {
			return msgs, nil
		}
	}

	msgs, err := c.store.RecentMessages(ctx, userID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if c.client != nil && len(msgs) > 0 {
		c.warm(ctx, userID, conversationID, msgs)
	}
	return msgs, nil
}

// Push appends a freshly persisted message to the cache tail. Call
// after SaveMessage; errors are logged and swallowed.
func (c *RecentCache) Push(ctx context.Context, msg *models.Message) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	key := recentKey(msg.UserID, msg.ConversationID)
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -recentMaxLen, -1)
	pipe.Expire(ctx, key, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("recent cache push failed", zap.String("user_id", msg.UserID), zap.Error(err))
	}
}

func (c *RecentCache) fromRedis(ctx context.Context, userID string, conversationID, limit int) ([]models.Message, bool) {
	key := recentKey(userID, conversationID)
	raw, err := c.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	msgs := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var m models.Message
		if json.Unmarshal([]byte(item), &m) != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, len(msgs) > 0
}

func (c *RecentCache) warm(ctx context.Context, userID string, conversationID int, msgs []models.Message) {
	key := recentKey(userID, conversationID)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	for i := range msgs {
		data, err := json.Marshal(&msgs[i])
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, -recentMaxLen, -1)
	pipe.Expire(ctx, key, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("recent cache warm failed", zap.String("user_id", userID), zap.Error(err))
	}
}
