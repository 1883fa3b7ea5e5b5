// Package relationship persists the one piece of state that outlives a
// turn: the long-term relationship level and the doki excitement fields.
package relationship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the persisted tuple. It is written once per turn, whole.
type Record struct {
	RelationshipLevel float64 `json:"relationship_level"`
	DokiPower         float64 `json:"doki_power"`
	DokiLevel         int     `json:"doki_level"`
}

// Store is the persisted relationship state contract, simple key-value
// semantics keyed by conversation.
type Store interface {
	Read(ctx context.Context, conversationID string) (Record, error)
	Write(ctx context.Context, conversationID string, rec Record) error
}

type relationshipModel struct {
	ConversationID    string `gorm:"primaryKey"`
	RelationshipLevel float64
	DokiPower         float64
	DokiLevel         int
	UpdatedAt         time.Time
}

func (relationshipModel) TableName() string {
	return "relationship_states"
}

// PostgresStore persists records through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// Migrate creates the relationship_states table if missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&relationshipModel{})
}

// NewPostgresStore returns a store over an open gorm handle.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Read fetches the record for a conversation. A missing row yields the
// zero record, not an error.
func (s *PostgresStore) Read(ctx context.Context, conversationID string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, fmt.Errorf("relationship store not configured")
	}
	var model relationshipModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("failed to read relationship state: %w", err)
	}
	return Record{
		RelationshipLevel: model.RelationshipLevel,
		DokiPower:         model.DokiPower,
		DokiLevel:         model.DokiLevel,
	}, nil
}

// Write upserts the whole tuple in one statement.
func (s *PostgresStore) Write(ctx context.Context, conversationID string, rec Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("relationship store not configured")
	}
	model := relationshipModel{
		ConversationID:    conversationID,
		RelationshipLevel: rec.RelationshipLevel,
		DokiPower:         rec.DokiPower,
		DokiLevel:         rec.DokiLevel,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to write relationship state: %w", err)
	}
	return nil
}
