// Package history persists the per-conversation message log used to build
// the model context for the next turn.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mikanworks/kokoro/internal/types"
)

// Entry is one logged message.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store appends and replays conversation history.
type Store interface {
	Append(ctx context.Context, conversationID string, entries ...Entry) error
	Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error)
}

// Messages converts entries into the shared message list.
func Messages(entries []Entry) []types.Message {
	out := make([]types.Message, 0, len(entries))
	for _, entry := range entries {
		out = append(out, types.Message{Role: entry.Role, Content: entry.Content})
	}
	return out
}

// chatMessageModel maps to the chat_messages table.
type chatMessageModel struct {
	ID             uint `gorm:"primaryKey"`
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

func (chatMessageModel) TableName() string {
	return "chat_messages"
}

// PostgresStore persists history through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore returns a store over an open gorm handle.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the chat_messages table if missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&chatMessageModel{})
}

func (s *PostgresStore) Append(ctx context.Context, conversationID string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]chatMessageModel, 0, len(entries))
	for _, entry := range entries {
		records = append(records, chatMessageModel{
			ConversationID: conversationID,
			Role:           entry.Role,
			Content:        entry.Content,
		})
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to insert chat messages: %w", err)
	}
	return nil
}

// Recent returns the newest entries, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []chatMessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}

	results := make([]Entry, 0, len(records))
	for _, record := range records {
		results = append(results, Entry{
			Role:      record.Role,
			Content:   record.Content,
			CreatedAt: record.CreatedAt,
		})
	}
	// Oldest -> newest
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}
