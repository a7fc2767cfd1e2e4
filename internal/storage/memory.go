package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arialabs/aria-backend/internal/models"
)

// MemoryStorage is the mutex-guarded in-memory implementation used for
// tests and local development. The single mutex gives the same
// one-at-a-time semantics per operation that Postgres provides through
// row locking.
type MemoryStorage struct {
	mu           sync.Mutex
	users        map[string]*models.User
	messages     []*models.Message
	usage        map[string]map[string]*models.UsageRecord
	interactions []*models.InteractionEntry
	nextEntryID  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]*models.User),
		usage: make(map[string]map[string]*models.UsageRecord),
	}
}

func (s *MemoryStorage) GetOrCreateUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	u := &models.User{
		ID:             id,
		Tier:           models.TierFree,
		CounterResetAt: time.Now(),
		MemoryEnabled:  true,
		DeliveryMode:   "text",
		Language:       "en",
		EmotionState:   "neutral",
		CreatedAt:      time.Now(),
	}
	s.users[id] = u
	copied := *u
	return &copied, nil
}

func (s *MemoryStorage) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}
	// Counters only move through reserve/release/reset.
	updated := *user
	updated.TextCount = existing.TextCount
	updated.VoiceCount = existing.VoiceCount
	updated.CreatorCount = existing.CreatorCount
	updated.CounterResetAt = existing.CounterResetAt
	s.users[user.ID] = &updated
	return nil
}

func (s *MemoryStorage) UpdateEmotionState(ctx context.Context, userID, emotion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.EmotionState = emotion
	}
	return nil
}

func (s *MemoryStorage) ResetCountersIfStale(ctx context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	if sameMonth(u.CounterResetAt, now) {
		return nil
	}
	u.TextCount = 0
	u.VoiceCount = 0
	u.CreatorCount = 0
	u.CounterResetAt = now
	return nil
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}

func (s *MemoryStorage) ReserveUsage(ctx context.Context, userID string, ch models.Channel, limit int, combined bool) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, 0, fmt.Errorf("user %s not found", userID)
	}

	used := u.TextCount
	if combined {
		used = u.TextCount + u.VoiceCount
	} else if ch == models.ChannelVoice {
		used = u.VoiceCount
	}
	if used >= limit {
		return false, used, nil
	}

	if ch == models.ChannelVoice {
		u.VoiceCount++
	} else {
		u.TextCount++
	}
	return true, used + 1, nil
}

func (s *MemoryStorage) ReleaseUsage(ctx context.Context, userID string, ch models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	if ch == models.ChannelVoice {
		if u.VoiceCount > 0 {
			u.VoiceCount--
		}
	} else if u.TextCount > 0 {
		u.TextCount--
	}
	return nil
}

func (s *MemoryStorage) IncrementCreatorCount(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.CreatorCount++
	}
	return nil
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *msg
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *MemoryStorage) RecentMessages(ctx context.Context, userID string, conversationID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStorage) SetMessageImportant(ctx context.Context, messageID string, important bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == messageID {
			m.Important = important
			return nil
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}

func (s *MemoryStorage) IncrementUsageRecord(ctx context.Context, userID, category string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCategory, ok := s.usage[userID]
	if !ok {
		byCategory = make(map[string]*models.UsageRecord)
		s.usage[userID] = byCategory
	}
	rec, ok := byCategory[category]
	if !ok {
		rec = &models.UsageRecord{UserID: userID, Category: category}
		byCategory[category] = rec
	}
	rec.Count++
	rec.LastUsedAt = now
	return nil
}

func (s *MemoryStorage) GetUsageRecords(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.UsageRecord
	for _, rec := range s.usage[userID] {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *MemoryStorage) AppendInteraction(ctx context.Context, entry *models.InteractionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEntryID++
	copied := *entry
	copied.ID = s.nextEntryID
	s.interactions = append(s.interactions, &copied)
	return nil
}

// Interactions returns a snapshot of the audit log, oldest first.
// Test helper; the core only appends.
func (s *MemoryStorage) Interactions(userID string) []models.InteractionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.InteractionEntry
	for _, e := range s.interactions {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out
}

func (s *MemoryStorage) Close() error {
	return nil
}
