package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/arialabs/aria-backend/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStorage implements Storage on database/sql. Quota-critical
// writes use single conditional UPDATEs so Postgres row locking makes
// them atomic under concurrent requests for the same user.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	s := &PostgresStorage{db: db}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}
	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetOrCreateUser(ctx context.Context, id string) (*models.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	u := &models.User{}
	var tier string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, tier, text_count, voice_count, creator_count, counter_reset_at,
		       memory_enabled, voice_nudges, delivery_mode, language, emotion_state,
		       personality_mode, goal_focus, created_at
		FROM users WHERE id = $1`, id).Scan(
		&u.ID, &tier, &u.TextCount, &u.VoiceCount, &u.CreatorCount, &u.CounterResetAt,
		&u.MemoryEnabled, &u.VoiceNudges, &u.DeliveryMode, &u.Language, &u.EmotionState,
		&u.PersonalityMode, &u.GoalFocus, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	u.Tier = models.ParseTier(tier)
	return u, nil
}

func (s *PostgresStorage) UpdateUser(ctx context.Context, user *models.User) error {
	// Counters and reset timestamp only move through the dedicated
	// reserve/release/reset operations.
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET tier = $2, memory_enabled = $3, voice_nudges = $4, delivery_mode = $5,
		    language = $6, emotion_state = $7, personality_mode = $8, goal_focus = $9
		WHERE id = $1`,
		user.ID, string(user.Tier), user.MemoryEnabled, user.VoiceNudges,
		user.DeliveryMode, user.Language, user.EmotionState, user.PersonalityMode, user.GoalFocus)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s not found", user.ID)
	}
	return nil
}

func (s *PostgresStorage) UpdateEmotionState(ctx context.Context, userID, emotion string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET emotion_state = $2 WHERE id = $1`, userID, emotion)
	if err != nil {
		return fmt.Errorf("error updating emotion state: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ResetCountersIfStale(ctx context.Context, userID string, now time.Time) error {
	// The month comparison sits inside the UPDATE's WHERE clause, so of
	// two concurrent callers only the first one matches and resets.
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET text_count = 0, voice_count = 0, creator_count = 0, counter_reset_at = $2
		WHERE id = $1
		  AND date_trunc('month', counter_reset_at) < date_trunc('month', $2::timestamptz)`,
		userID, now)
	if err != nil {
		return fmt.Errorf("error resetting counters: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ReserveUsage(ctx context.Context, userID string, ch models.Channel, limit int, combined bool) (bool, int, error) {
	counter := "text_count"
	if ch == models.ChannelVoice {
		counter = "voice_count"
	}
	pool := counter
	if combined {
		pool = "text_count + voice_count"
	}

	// Conditional increment: the check and the write are one statement,
	// so two concurrent requests can never both take the last unit.
	query := fmt.Sprintf(`
		UPDATE users SET %s = %s + 1
		WHERE id = $1 AND (%s) < $2
		RETURNING %s`, counter, counter, pool, pool)

	var used int
	err := s.db.QueryRowContext(ctx, query, userID, limit).Scan(&used)
	if err == nil {
		return true, used, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, fmt.Errorf("error reserving usage: %w", err)
	}

	// Denied: report current usage for the remaining-quota metadata.
	query = fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, pool)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&used); err != nil {
		return false, 0, fmt.Errorf("error reading usage: %w", err)
	}
	return false, used, nil
}

func (s *PostgresStorage) ReleaseUsage(ctx context.Context, userID string, ch models.Channel) error {
	counter := "text_count"
	if ch == models.ChannelVoice {
		counter = "voice_count"
	}
	query := fmt.Sprintf(`
		UPDATE users SET %s = %s - 1
		WHERE id = $1 AND %s > 0`, counter, counter, counter)
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error releasing usage: %w", err)
	}
	return nil
}

func (s *PostgresStorage) IncrementCreatorCount(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET creator_count = creator_count + 1 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("error incrementing creator count: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, conversation_id, role, content, emotion, important, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.UserID, msg.ConversationID, string(msg.Role),
		msg.Content, msg.Emotion, msg.Important, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentMessages(ctx context.Context, userID string, conversationID, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, role, content, emotion, important, created_at
		FROM (
			SELECT * FROM messages
			WHERE user_id = $1 AND conversation_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC`,
		userID, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &role,
			&m.Content, &m.Emotion, &m.Important, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		m.Role = models.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *PostgresStorage) SetMessageImportant(ctx context.Context, messageID string, important bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET important = $2 WHERE id = $1`, messageID, important)
	if err != nil {
		return fmt.Errorf("error updating message importance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message %s not found", messageID)
	}
	return nil
}

func (s *PostgresStorage) IncrementUsageRecord(ctx context.Context, userID, category string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (user_id, category, count, last_used_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, category)
		DO UPDATE SET count = usage_records.count + 1, last_used_at = $3`,
		userID, category, now)
	if err != nil {
		return fmt.Errorf("error incrementing usage record: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUsageRecords(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category, count, last_used_at
		FROM usage_records WHERE user_id = $1
		ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying usage records: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		if err := rows.Scan(&rec.UserID, &rec.Category, &rec.Count, &rec.LastUsedAt); err != nil {
			return nil, fmt.Errorf("error scanning usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStorage) AppendInteraction(ctx context.Context, entry *models.InteractionEntry) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO interaction_log (user_id, intent, source, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		entry.UserID, string(entry.Intent), entry.Source, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("error appending interaction: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
