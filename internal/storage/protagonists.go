package storage

import (
	"context"
	"fmt"

	"once/server/internal/models"
)

// CreateProtagonist inserts a new protagonist row.
func (s *MySQLStore) CreateProtagonist(ctx context.Context, p *models.Protagonist) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create protagonist: %w", err)
	}
	return nil
}

// SaveProtagonist writes back the full mutable state of a protagonist
// after a delta has been applied.
func (s *MySQLStore) SaveProtagonist(ctx context.Context, p *models.Protagonist) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save protagonist %d: %w", p.ID, err)
	}
	return nil
}
