package storage

import (
	"context"
	"fmt"
	"time"

	"once/server/internal/models"
)

// CreateEcho inserts a planted consequence in pending status.
func (s *MySQLStore) CreateEcho(ctx context.Context, echo *models.Echo) error {
	if echo.Status == "" {
		echo.Status = models.EchoPending
	}
	if err := s.db.WithContext(ctx).Create(echo).Error; err != nil {
		return fmt.Errorf("failed to plant echo: %w", err)
	}
	return nil
}

// ResolveEchoes marks the given echoes resolved at the given scene. The
// status guard in the WHERE clause keeps the pending -> resolved transition
// one-way even if the same ids are submitted twice.
func (s *MySQLStore) ResolveEchoes(ctx context.Context, ids []uint, sceneID uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Echo{}).
		Where("id IN ? AND status = ?", ids, models.EchoPending).
		Updates(map[string]interface{}{
			"status":               models.EchoResolved,
			"resolved_at_scene_id": sceneID,
			"updated_at":           time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to resolve echoes: %w", err)
	}
	return nil
}
