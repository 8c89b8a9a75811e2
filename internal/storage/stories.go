package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"once/server/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateStory inserts a new story row.
func (s *MySQLStore) CreateStory(ctx context.Context, story *models.Story) error {
	if err := s.db.WithContext(ctx).Create(story).Error; err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetStory loads a single story.
func (s *MySQLStore) GetStory(ctx context.Context, id uint) (*models.Story, error) {
	var story models.Story
	if err := s.db.WithContext(ctx).First(&story, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load story %d: %w", id, err)
	}
	return &story, nil
}

// GetStoryAggregate loads a story with its last recentScenes scenes (newest
// first), protagonists, echoes, and deferred characters.
func (s *MySQLStore) GetStoryAggregate(ctx context.Context, id uint, recentScenes int) (*models.StoryAggregate, error) {
	story, err := s.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}

	agg := &models.StoryAggregate{Story: *story}
	db := s.db.WithContext(ctx)

	if err := db.Where("story_id = ?", id).
		Order("turn_number DESC").
		Limit(recentScenes).
		Find(&agg.Scenes).Error; err != nil {
		return nil, fmt.Errorf("failed to load scenes for story %d: %w", id, err)
	}
	if err := db.Where("story_id = ?", id).Find(&agg.Protagonists).Error; err != nil {
		return nil, fmt.Errorf("failed to load protagonists for story %d: %w", id, err)
	}
	if err := db.Where("story_id = ?", id).Find(&agg.Echoes).Error; err != nil {
		return nil, fmt.Errorf("failed to load echoes for story %d: %w", id, err)
	}
	if err := db.Where("story_id = ?", id).Find(&agg.Deferred).Error; err != nil {
		return nil, fmt.Errorf("failed to load deferred characters for story %d: %w", id, err)
	}
	return agg, nil
}

// UpdateStoryStatus is an administrative status change.
func (s *MySQLStore) UpdateStoryStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Story{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update story status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendScene inserts the scene and advances the story's turn count to the
// scene's turn number in one transaction, so the story can never end up
// with an incremented count and no persisted scene.
func (s *MySQLStore) AppendScene(ctx context.Context, scene *models.Scene) error {
	return s.WithTx(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(scene).Error; err != nil {
			return fmt.Errorf("failed to insert scene: %w", err)
		}
		if err := tx.WithContext(ctx).Model(&models.Story{}).
			Where("id = ?", scene.StoryID).
			Updates(map[string]interface{}{
				"turn_count": scene.TurnNumber,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("failed to advance turn count: %w", err)
		}
		return nil
	})
}

// GetScene loads a single scene.
func (s *MySQLStore) GetScene(ctx context.Context, id uint) (*models.Scene, error) {
	var scene models.Scene
	if err := s.db.WithContext(ctx).First(&scene, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scene %d: %w", id, err)
	}
	return &scene, nil
}

// ListScenesThrough returns all scenes of a story with turn number <=
// throughTurn, oldest first. The fork manager replays this log.
func (s *MySQLStore) ListScenesThrough(ctx context.Context, storyID uint, throughTurn int) ([]models.Scene, error) {
	var scenes []models.Scene
	if err := s.db.WithContext(ctx).
		Where("story_id = ? AND turn_number <= ?", storyID, throughTurn).
		Order("turn_number ASC").
		Find(&scenes).Error; err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	return scenes, nil
}

// CreateFork persists a forked story, its protagonist, and the copied
// scenes atomically. Scene and protagonist story ids are wired up inside
// the transaction once the new story id is known.
func (s *MySQLStore) CreateFork(ctx context.Context, story *models.Story, protagonist *models.Protagonist, scenes []models.Scene) error {
	return s.WithTx(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(story).Error; err != nil {
			return fmt.Errorf("failed to create forked story: %w", err)
		}

		var protagonistID *uint
		if protagonist != nil {
			protagonist.StoryID = story.ID
			if err := tx.WithContext(ctx).Create(protagonist).Error; err != nil {
				return fmt.Errorf("failed to create forked protagonist: %w", err)
			}
			protagonistID = &protagonist.ID
		}

		for i := range scenes {
			scenes[i].ID = 0
			scenes[i].StoryID = story.ID
			scenes[i].ProtagonistID = protagonistID
			if err := tx.WithContext(ctx).Create(&scenes[i]).Error; err != nil {
				return fmt.Errorf("failed to copy scene %d: %w", scenes[i].TurnNumber, err)
			}
		}
		return nil
	})
}
