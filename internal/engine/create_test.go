package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"once/server/internal/llm"
	"once/server/internal/models"
)

func TestCreateStoryWithSeededProtagonist(t *testing.T) {
	repo := newFakeRepo()
	gen := newFakeGenerator()
	gen.results["opening_scene"] = llm.OpeningScene{Narration: "Rain hammers the tin roof as you wake."}
	o := newTestOrchestrator(repo, gen, nil)

	result, err := o.CreateStory(context.Background(), CreateStoryInput{
		UserID:          "u1",
		Title:           "Emberfall",
		Genre:           "fantasy",
		NarrativeStance: "noir",
		Protagonist: &ProtagonistSeed{
			Name:     "Kael",
			Traits:   []string{"wary"},
			Location: "the undercity",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StoryStatusActive, result.Story.Status)
	assert.Equal(t, models.VisibilityPrivate, result.Story.Visibility)
	assert.Equal(t, 1, result.Story.TurnCount)

	require.NotNil(t, result.Protagonist)
	assert.Equal(t, 100, result.Protagonist.Health)
	assert.Equal(t, models.StringList{"wary"}, result.Protagonist.BaseTraits)

	assert.Equal(t, 1, result.Scene.TurnNumber)
	assert.Equal(t, models.ActionStoryStart, result.Scene.UserAction)
	require.NotNil(t, result.Scene.ProtagonistSnapshot)
}

func TestCreateStoryAutoGeneratesProtagonist(t *testing.T) {
	repo := newFakeRepo()
	gen := newFakeGenerator()
	gen.results["opening_scene"] = llm.OpeningScene{
		Narration: "The ship lists hard to port.",
		ProtagonistGenerated: &llm.GeneratedProtagonist{
			Name:     "Mara",
			Traits:   []string{"stubborn"},
			Location: "the brig",
		},
	}
	o := newTestOrchestrator(repo, gen, nil)

	result, err := o.CreateStory(context.Background(), CreateStoryInput{
		UserID: "u1",
		Title:  "Saltbound",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Protagonist)
	assert.Equal(t, "Mara", result.Protagonist.Name)
	assert.Equal(t, "the brig", result.Protagonist.CurrentLocation)
}

func TestCreateStoryNarratorModeHasNoProtagonist(t *testing.T) {
	repo := newFakeRepo()
	gen := newFakeGenerator()
	gen.results["opening_scene"] = llm.OpeningScene{Narration: "The kingdom holds its breath."}
	o := newTestOrchestrator(repo, gen, nil)

	result, err := o.CreateStory(context.Background(), CreateStoryInput{
		UserID:    "u1",
		Title:     "Thrones of Ash",
		StoryMode: models.ModeNarrator,
	})
	require.NoError(t, err)

	assert.Nil(t, result.Protagonist)
	assert.Nil(t, result.Scene.ProtagonistSnapshot)
}

func TestCreateStoryValidation(t *testing.T) {
	o := newTestOrchestrator(newFakeRepo(), newFakeGenerator(), nil)

	cases := []CreateStoryInput{
		{UserID: "u1"},                                                     // missing title
		{UserID: "u1", Title: "x", NarrativeStance: "whimsical"},           // unknown stance
		{UserID: "u1", Title: "x", StoryMode: "observer"},                  // unknown mode
		{UserID: "u1", Title: "x", Visibility: "secret"},                   // unknown visibility
		{UserID: "u1", Title: "x", DeferredCharacters: []DeferredSeed{{}}}, // bad deferred seed
	}
	for _, in := range cases {
		_, err := o.CreateStory(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestCreateStoryRegistersDeferredCharacters(t *testing.T) {
	repo := newFakeRepo()
	gen := newFakeGenerator()
	gen.results["opening_scene"] = llm.OpeningScene{
		Narration:            "Dawn breaks.",
		ProtagonistGenerated: &llm.GeneratedProtagonist{Name: "Ilya"},
	}
	o := newTestOrchestrator(repo, gen, nil)

	_, err := o.CreateStory(context.Background(), CreateStoryInput{
		UserID: "u1",
		Title:  "The Long Watch",
		DeferredCharacters: []DeferredSeed{
			{Name: "The Stranger", TriggerCondition: "the protagonist leaves the village"},
		},
	})
	require.NoError(t, err)

	require.Len(t, repo.deferred, 1)
	assert.False(t, repo.deferred[0].Introduced)
}
