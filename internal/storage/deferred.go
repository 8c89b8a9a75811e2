package storage

import (
	"context"
	"fmt"

	"once/server/internal/models"
)

// CreateDeferredCharacter inserts a withheld character.
func (s *MySQLStore) CreateDeferredCharacter(ctx context.Context, c *models.DeferredCharacter) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create deferred character: %w", err)
	}
	return nil
}

// MarkIntroduced flips the monotone introduced flag and stamps the scene.
// The guard keeps the flag from ever reverting or being restamped.
func (s *MySQLStore) MarkIntroduced(ctx context.Context, id, sceneID uint) error {
	if err := s.db.WithContext(ctx).Model(&models.DeferredCharacter{}).
		Where("id = ? AND introduced = ?", id, false).
		Updates(map[string]interface{}{
			"introduced":             true,
			"introduced_at_scene_id": sceneID,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark character %d introduced: %w", id, err)
	}
	return nil
}
