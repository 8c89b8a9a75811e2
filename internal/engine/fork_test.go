package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"once/server/internal/models"
)

type fakeForkRepo struct {
	story  *models.Story
	scenes []models.Scene

	forked      *models.Story
	protagonist *models.Protagonist
	copied      []models.Scene
}

func (r *fakeForkRepo) GetStory(ctx context.Context, id uint) (*models.Story, error) {
	if r.story == nil || r.story.ID != id {
		return nil, errNotFound
	}
	return r.story, nil
}

func (r *fakeForkRepo) GetScene(ctx context.Context, id uint) (*models.Scene, error) {
	for i := range r.scenes {
		if r.scenes[i].ID == id {
			return &r.scenes[i], nil
		}
	}
	return nil, errNotFound
}

func (r *fakeForkRepo) ListScenesThrough(ctx context.Context, storyID uint, throughTurn int) ([]models.Scene, error) {
	var out []models.Scene
	for _, s := range r.scenes {
		if s.StoryID == storyID && s.TurnNumber <= throughTurn {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeForkRepo) CreateFork(ctx context.Context, story *models.Story, protagonist *models.Protagonist, scenes []models.Scene) error {
	story.ID = 42
	r.forked = story
	r.protagonist = protagonist
	r.copied = scenes
	return nil
}

func forkFixture() *fakeForkRepo {
	snap := &models.Snapshot{
		Name:            "Kael",
		Health:          60,
		Energy:          80,
		CurrentLocation: "the spire",
		Inventory:       models.StringList{"rope"},
		Scars:           models.StringList{"burned left hand"},
	}
	return &fakeForkRepo{
		story: &models.Story{
			ID:           1,
			UserID:       "owner",
			Title:        "Emberfall",
			Status:       models.StoryStatusActive,
			Visibility:   models.VisibilityPublic,
			AllowForking: true,
			TurnCount:    5,
		},
		scenes: []models.Scene{
			{ID: 10, StoryID: 1, TurnNumber: 1, UserAction: models.ActionStoryStart, Narration: "opening"},
			{ID: 11, StoryID: 1, TurnNumber: 2, UserAction: "climb", Narration: "you climb", ProtagonistSnapshot: snap},
			{ID: 12, StoryID: 1, TurnNumber: 3, UserAction: "rest", Narration: "you rest"},
		},
	}
}

func TestForkCopiesHistoryThroughScene(t *testing.T) {
	repo := forkFixture()
	m := NewForkManager(repo)

	fork, err := m.Fork(context.Background(), "someone-else", 1, 11)
	require.NoError(t, err)

	assert.Equal(t, "Emberfall (Fork)", fork.Title)
	assert.Equal(t, "someone-else", fork.UserID)
	assert.Equal(t, 2, fork.TurnCount)
	assert.Equal(t, models.VisibilityPrivate, fork.Visibility, "forks start private")
	require.NotNil(t, fork.ForkedFromStoryID)
	assert.Equal(t, uint(1), *fork.ForkedFromStoryID)
	require.NotNil(t, fork.ForkedAtSceneID)
	assert.Equal(t, uint(11), *fork.ForkedAtSceneID)

	require.Len(t, repo.copied, 2, "scenes after the fork point are left behind")
}

func TestForkProtagonistRebuiltFromSnapshot(t *testing.T) {
	repo := forkFixture()
	m := NewForkManager(repo)

	_, err := m.Fork(context.Background(), "owner", 1, 11)
	require.NoError(t, err)

	p := repo.protagonist
	require.NotNil(t, p)
	assert.True(t, p.IsActive)
	assert.Equal(t, 60, p.Health)
	assert.Equal(t, "the spire", p.CurrentLocation)

	// The copy is by value: mutating the fork's protagonist must not
	// reach back into the snapshot.
	p.Inventory = append(p.Inventory, "stolen key")
	assert.NotContains(t, repo.scenes[1].ProtagonistSnapshot.Inventory, "stolen key")
}

func TestForkForbiddenWritesNothing(t *testing.T) {
	repo := forkFixture()
	repo.story.Visibility = models.VisibilityPrivate
	m := NewForkManager(repo)

	_, err := m.Fork(context.Background(), "someone-else", 1, 11)

	assert.ErrorIs(t, err, ErrForkForbidden)
	assert.Nil(t, repo.forked)
}

func TestForkUnlistedNotForkableByOthers(t *testing.T) {
	repo := forkFixture()
	repo.story.Visibility = models.VisibilityUnlisted
	m := NewForkManager(repo)

	_, err := m.Fork(context.Background(), "someone-else", 1, 11)
	assert.ErrorIs(t, err, ErrForkForbidden)
}

func TestForkSceneFromAnotherStoryRejected(t *testing.T) {
	repo := forkFixture()
	repo.scenes = append(repo.scenes, models.Scene{ID: 99, StoryID: 7, TurnNumber: 1})
	m := NewForkManager(repo)

	_, err := m.Fork(context.Background(), "owner", 1, 99)

	assert.ErrorIs(t, err, ErrSceneMismatch)
	assert.Nil(t, repo.forked)
}
