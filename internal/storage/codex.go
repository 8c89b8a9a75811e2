package storage

import (
	"context"
	"fmt"
	"time"

	"once/server/internal/models"
)

// ListCodexEntries returns all encyclopedia entries of a story.
func (s *MySQLStore) ListCodexEntries(ctx context.Context, storyID uint) ([]models.CodexEntry, error) {
	var entries []models.CodexEntry
	if err := s.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("name ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list codex entries: %w", err)
	}
	return entries, nil
}

// CreateCodexEntries inserts a batch of new entries.
func (s *MySQLStore) CreateCodexEntries(ctx context.Context, entries []models.CodexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to create codex entries: %w", err)
	}
	return nil
}

// UpdateCodexSummary replaces an entry's summary. The user_edited guard is
// enforced here as well as in the curator: a manual edit is a permanent
// lock against automatic rewrites.
func (s *MySQLStore) UpdateCodexSummary(ctx context.Context, id uint, summary string) error {
	if err := s.db.WithContext(ctx).Model(&models.CodexEntry{}).
		Where("id = ? AND user_edited = ?", id, false).
		Updates(map[string]interface{}{
			"summary":    summary,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update codex entry %d: %w", id, err)
	}
	return nil
}
