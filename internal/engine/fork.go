package engine

import (
	"context"
	"errors"
	"fmt"

	"once/server/internal/models"
)

// ErrForkForbidden is returned when the requester may not fork the story.
var ErrForkForbidden = errors.New("story cannot be forked by this user")

// ErrSceneMismatch is returned when the fork point does not belong to the
// story being forked.
var ErrSceneMismatch = errors.New("scene does not belong to this story")

// ForkRepo is the persistence surface the fork manager needs.
type ForkRepo interface {
	GetStory(ctx context.Context, id uint) (*models.Story, error)
	GetScene(ctx context.Context, id uint) (*models.Scene, error)
	ListScenesThrough(ctx context.Context, storyID uint, throughTurn int) ([]models.Scene, error)
	CreateFork(ctx context.Context, story *models.Story, protagonist *models.Protagonist, scenes []models.Scene) error
}

// ForkManager branches a story at a chosen scene into a new timeline owned
// by the requester.
type ForkManager struct {
	repo ForkRepo
}

func NewForkManager(repo ForkRepo) *ForkManager {
	return &ForkManager{repo: repo}
}

// Fork copies the source story's history through the given scene into a new
// story. The owner may always fork; anyone else needs the story public with
// forking allowed. The forked protagonist is rebuilt from the fork scene's
// snapshot, so later developments in the source never bleed across.
func (m *ForkManager) Fork(ctx context.Context, userID string, storyID, sceneID uint) (*models.Story, error) {
	source, err := m.repo.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !canFork(source, userID) {
		return nil, ErrForkForbidden
	}

	forkScene, err := m.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if forkScene.StoryID != storyID {
		return nil, ErrSceneMismatch
	}

	scenes, err := m.repo.ListScenesThrough(ctx, storyID, forkScene.TurnNumber)
	if err != nil {
		return nil, err
	}

	fork := &models.Story{
		UserID:            userID,
		Title:             source.Title + " (Fork)",
		Description:       source.Description,
		Genre:             source.Genre,
		NarrativeStance:   source.NarrativeStance,
		StoryMode:         source.StoryMode,
		Status:            models.StoryStatusActive,
		Visibility:        models.VisibilityPrivate,
		AllowForking:      source.AllowForking,
		TurnCount:         forkScene.TurnNumber,
		ForkedFromStoryID: &source.ID,
		ForkedAtSceneID:   &forkScene.ID,
	}

	protagonist := protagonistFromSnapshot(forkScene.ProtagonistSnapshot)

	if err := m.repo.CreateFork(ctx, fork, protagonist, scenes); err != nil {
		return nil, fmt.Errorf("failed to fork story %d at scene %d: %w", storyID, sceneID, err)
	}
	return fork, nil
}

func canFork(story *models.Story, userID string) bool {
	if story.UserID == userID {
		return true
	}
	return story.Visibility == models.VisibilityPublic && story.AllowForking
}

func protagonistFromSnapshot(snap *models.Snapshot) *models.Protagonist {
	if snap == nil {
		return nil
	}
	return &models.Protagonist{
		Name:            snap.Name,
		Description:     snap.Description,
		IsActive:        true,
		Health:          snap.Health,
		Energy:          snap.Energy,
		CurrentLocation: snap.CurrentLocation,
		BaseTraits:      append(models.StringList{}, snap.BaseTraits...),
		CurrentTraits:   append(models.StringList{}, snap.CurrentTraits...),
		Inventory:       append(models.StringList{}, snap.Inventory...),
		Scars:           append(models.StringList{}, snap.Scars...),
	}
}
