// Package storage opens the PostgreSQL pool and bundles the persistent
// stores behind it.
package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mikanworks/kokoro/internal/history"
	"github.com/mikanworks/kokoro/internal/relationship"
)

// Store holds the DB pool and repositories.
type Store struct {
	db *gorm.DB

	Relationships relationship.Store
	History       history.Store
}

// NewStore initializes the PostgreSQL pool, runs migrations, and wires the
// repositories.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := relationship.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate relationship states: %w", err)
	}
	if err := history.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate chat messages: %w", err)
	}

	return &Store{
		db:            db,
		Relationships: relationship.NewPostgresStore(db),
		History:       history.NewPostgresStore(db),
	}, nil
}

// NewMemoryStore returns the in-process variant used without DATABASE_URL.
func NewMemoryStore() *Store {
	return &Store{
		Relationships: relationship.NewMemoryStore(),
		History:       history.NewMemoryStore(),
	}
}

func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
