package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"once/server/internal/llm"
	"once/server/internal/models"
)

func TestCodexExtractCreatesNewEntries(t *testing.T) {
	repo := newFakeRepo()
	gen := newFakeGenerator()
	gen.results["codex_extraction"] = llm.CodexExtraction{
		NewEntries: []llm.CodexNewEntry{
			{Name: "The Hollow Court", EntryType: "faction", Summary: "A cabal ruling the undercity."},
			{Name: "", EntryType: "lore", Summary: "dropped, no name"},
		},
	}
	curator := NewCodexCurator(repo, gen)

	require.NoError(t, curator.Extract(context.Background(), 1, "The Hollow Court watches."))

	require.Len(t, repo.codexEntries, 1)
	assert.Equal(t, "faction", repo.codexEntries[0].EntryType)
}

func TestCodexExtractMatchesCaseInsensitively(t *testing.T) {
	repo := newFakeRepo()
	repo.codexEntries = []models.CodexEntry{
		{ID: 5, StoryID: 1, Name: "Hollow Court", Summary: "A cabal."},
	}
	gen := newFakeGenerator()
	gen.results["codex_extraction"] = llm.CodexExtraction{
		NewEntries: []llm.CodexNewEntry{
			{Name: "HOLLOW COURT", EntryType: "faction", Summary: "They meet at midnight."},
		},
	}
	curator := NewCodexCurator(repo, gen)

	require.NoError(t, curator.Extract(context.Background(), 1, "..."))

	require.Len(t, repo.codexEntries, 1, "a re-reported entity updates instead of duplicating")
	assert.Equal(t, "A cabal.\n\nThey meet at midnight.", repo.codexEntries[0].Summary)
}

func TestCodexUserEditedEntriesNeverRewritten(t *testing.T) {
	repo := newFakeRepo()
	repo.codexEntries = []models.CodexEntry{
		{ID: 5, StoryID: 1, Name: "Hollow Court", Summary: "My own words.", UserEdited: true},
	}
	gen := newFakeGenerator()
	gen.results["codex_extraction"] = llm.CodexExtraction{
		Updates: []llm.CodexUpdate{{Name: "Hollow Court", NewInfo: "machine words"}},
	}
	curator := NewCodexCurator(repo, gen)

	require.NoError(t, curator.Extract(context.Background(), 1, "..."))

	assert.Equal(t, "My own words.", repo.codexEntries[0].Summary)
}

func TestCodexUnknownEntryTypeFallsBackToLore(t *testing.T) {
	assert.Equal(t, "lore", normalizeEntryType("prophecy"))
	assert.Equal(t, "item", normalizeEntryType(" Item "))
}
