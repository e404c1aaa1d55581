package recipient

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormStore looks up device tokens in a SQL table with id and fcm_token
// columns.
type GormStore struct {
	db    *gorm.DB
	table string
}

// NewGormStore creates a store reading from table.
func NewGormStore(db *gorm.DB, table string) *GormStore {
	return &GormStore{
		db:    db,
		table: table,
	}
}

// TokensExcept returns the device tokens of every user other than userID.
// Rows without a token are skipped.
func (s *GormStore) TokensExcept(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	q := s.db.WithContext(ctx).
		Table(s.table).
		Where("fcm_token IS NOT NULL AND fcm_token <> ''")
	// no author, nobody to exclude; comparing typed id columns to '' fails on postgres
	if userID != "" {
		q = q.Where("id <> ?", userID)
	}
	err := q.Pluck("fcm_token", &tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s tokens: %w", s.table, err)
	}
	return tokens, nil
}

// ClearToken removes a device token the gateway reported as unregistered.
func (s *GormStore) ClearToken(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).
		Table(s.table).
		Where("fcm_token = ?", token).
		Update("fcm_token", nil).Error
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
