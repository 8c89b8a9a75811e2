package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"once/server/internal/interfaces"
	"once/server/internal/models"
)

func TestSystemPromptPerspective(t *testing.T) {
	protagonist := SystemPrompt("grimdark", models.ModeProtagonist)
	assert.Contains(t, protagonist, "second person")
	assert.Contains(t, protagonist, "brutal and indifferent")

	narrator := SystemPrompt("heroic", models.ModeNarrator)
	assert.Contains(t, narrator, "third person")
}

func TestBuildInitializePromptSeededProtagonist(t *testing.T) {
	prompt := BuildInitializePrompt(InitializeInput{
		Title: "Emberfall",
		Genre: "fantasy",
		Protagonist: &ProtagonistSeed{
			Name:     "Kael",
			Traits:   []string{"wary", "driven"},
			Location: "the undercity",
		},
	})

	assert.Contains(t, prompt, "Kael")
	assert.Contains(t, prompt, "wary, driven")
	assert.Contains(t, prompt, "Leave protagonistGenerated null")
}

func TestBuildInitializePromptAutoProtagonist(t *testing.T) {
	prompt := BuildInitializePrompt(InitializeInput{Title: "Saltbound", Genre: "nautical"})

	assert.Contains(t, prompt, "return it in protagonistGenerated")
	assert.NotContains(t, prompt, "Leave protagonistGenerated null")
}

func TestBuildContinuePromptSections(t *testing.T) {
	prompt := BuildContinuePrompt(ContinueInput{
		Protagonist: &models.Protagonist{Name: "Kael", Health: 70, Energy: 50, CurrentLocation: "the docks"},
		RecentScenes: []models.Scene{
			{UserAction: models.ActionStoryStart, Narration: "It begins."},
			{UserAction: "run", Narration: "You run."},
		},
		UserAction:           "hide in the warehouse",
		TriggeredEchoes:      []models.Echo{{Description: "the guard you bribed talks"}},
		IntroducedCharacters: []models.DeferredCharacter{{Name: "The Collector", Role: "fence"}},
		FactualKnowledge:     []string{"the vault was sealed years ago"},
		Relationships:        []interfaces.Relationship{{Name: "Vex", Type: "BETRAYED", Reason: "the ledger"}},
		LocationEvents:       []interfaces.LocationEvent{{Description: "a fire broke out here"}},
	})

	assert.Contains(t, prompt, "## Consequences to weave in")
	assert.Contains(t, prompt, "## Characters to introduce")
	assert.Contains(t, prompt, "## Established facts")
	assert.Contains(t, prompt, "## Known relationships")
	assert.Contains(t, prompt, "## What happened at this location before")
	assert.Contains(t, prompt, "hide in the warehouse")

	// The sentinel opening action never leaks into the prompt.
	assert.NotContains(t, prompt, models.ActionStoryStart)
	assert.Contains(t, prompt, "> run")
}

func TestBuildContinuePromptOmitsEmptySections(t *testing.T) {
	prompt := BuildContinuePrompt(ContinueInput{UserAction: "look around"})

	assert.NotContains(t, prompt, "## Consequences to weave in")
	assert.NotContains(t, prompt, "## Characters to introduce")
	assert.NotContains(t, prompt, "## Established facts")
}

func TestBuildEchoEvalPromptListsIDs(t *testing.T) {
	prompt := BuildEchoEvalPrompt([]models.Echo{
		{ID: 4, Description: "the guard talks", TriggerCondition: "you return to the barracks"},
	}, Situation{UserAction: "enter the barracks", ProtagonistLocation: "the barracks"})

	assert.Contains(t, prompt, "id 4:")
	assert.Contains(t, prompt, "you return to the barracks")
	assert.Contains(t, prompt, "enter the barracks")
}

func TestBuildCodexExtractionPromptListsExisting(t *testing.T) {
	prompt := BuildCodexExtractionPrompt("The Hollow Court stirs.", []models.CodexEntry{
		{Name: "Hollow Court", EntryType: "faction"},
	})

	assert.Contains(t, prompt, "- Hollow Court (faction)")
	assert.True(t, strings.Contains(prompt, "Do not duplicate"))
}
