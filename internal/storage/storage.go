// Package storage persists users, messages, usage counters and the
// interaction audit log. The quota-critical operations (reset, reserve,
// release) are defined so that concurrent requests for the same user
// behave as if they ran one at a time.
package storage

import (
	"context"
	"time"

	"github.com/arialabs/aria-backend/internal/models"
)

type Storage interface {
	// GetOrCreateUser resolves the device-bound identity, creating a
	// free-tier user on first contact.
	GetOrCreateUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateEmotionState(ctx context.Context, userID, emotion string) error

	// ResetCountersIfStale zeroes the monthly counters when the stored
	// reset timestamp is from a prior calendar month. Applied at most
	// once per month even when called concurrently.
	ResetCountersIfStale(ctx context.Context, userID string, now time.Time) error

	// ReserveUsage atomically takes one unit of quota on the given
	// channel if usage is still under limit. With combined set, text
	// and voice draw from one shared pool. Returns whether the unit
	// was granted and the pool usage after the call.
	ReserveUsage(ctx context.Context, userID string, ch models.Channel, limit int, combined bool) (allowed bool, used int, err error)

	// ReleaseUsage hands back one reserved unit after a handler fault,
	// so failed attempts are never billed.
	ReleaseUsage(ctx context.Context, userID string, ch models.Channel) error

	IncrementCreatorCount(ctx context.Context, userID string) error

	SaveMessage(ctx context.Context, msg *models.Message) error
	RecentMessages(ctx context.Context, userID string, conversationID, limit int) ([]models.Message, error)
	SetMessageImportant(ctx context.Context, messageID string, important bool) error

	IncrementUsageRecord(ctx context.Context, userID, category string, now time.Time) error
	GetUsageRecords(ctx context.Context, userID string) ([]models.UsageRecord, error)

	AppendInteraction(ctx context.Context, entry *models.InteractionEntry) error

	Close() error
}
