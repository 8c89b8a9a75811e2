package engine

import (
	"context"
	"fmt"
	"strings"

	"once/server/internal/interfaces"
	"once/server/internal/llm"
	"once/server/internal/models"
	"once/server/internal/prompts"
)

// CodexRepo is the persistence surface the curator needs.
type CodexRepo interface {
	ListCodexEntries(ctx context.Context, storyID uint) ([]models.CodexEntry, error)
	CreateCodexEntries(ctx context.Context, entries []models.CodexEntry) error
	UpdateCodexSummary(ctx context.Context, id uint, summary string) error
}

// CodexCurator maintains the in-world encyclopedia from scene narration.
type CodexCurator struct {
	repo CodexRepo
	gen  interfaces.StructuredGenerator
}

func NewCodexCurator(repo CodexRepo, gen interfaces.StructuredGenerator) *CodexCurator {
	return &CodexCurator{repo: repo, gen: gen}
}

// Extract runs codex extraction on a finished scene and applies the result.
// New entries are matched against existing ones case-insensitively so the
// service re-reporting a known entity becomes an update, not a duplicate.
// Entries a user has edited are never rewritten.
func (c *CodexCurator) Extract(ctx context.Context, storyID uint, narration string) error {
	existing, err := c.repo.ListCodexEntries(ctx, storyID)
	if err != nil {
		return err
	}

	var extraction llm.CodexExtraction
	err = c.gen.GenerateStructured(ctx, prompts.CodexSystemPrompt,
		prompts.BuildCodexExtractionPrompt(narration, existing), "codex_extraction", &extraction)
	if err != nil {
		return fmt.Errorf("codex extraction failed: %w", err)
	}

	byName := make(map[string]*models.CodexEntry, len(existing))
	for i := range existing {
		byName[strings.ToLower(existing[i].Name)] = &existing[i]
	}

	var created []models.CodexEntry
	for _, entry := range extraction.NewEntries {
		if entry.Name == "" || entry.Summary == "" {
			continue
		}
		if known, ok := byName[strings.ToLower(entry.Name)]; ok {
			if err := c.appendInfo(ctx, known, entry.Summary); err != nil {
				return err
			}
			continue
		}
		created = append(created, models.CodexEntry{
			StoryID:   storyID,
			EntryType: normalizeEntryType(entry.EntryType),
			Name:      entry.Name,
			Summary:   entry.Summary,
		})
	}
	if err := c.repo.CreateCodexEntries(ctx, created); err != nil {
		return err
	}

	for _, update := range extraction.Updates {
		known, ok := byName[strings.ToLower(update.Name)]
		if !ok || update.NewInfo == "" {
			continue
		}
		if err := c.appendInfo(ctx, known, update.NewInfo); err != nil {
			return err
		}
	}
	return nil
}

func (c *CodexCurator) appendInfo(ctx context.Context, entry *models.CodexEntry, info string) error {
	if entry.UserEdited {
		return nil
	}
	return c.repo.UpdateCodexSummary(ctx, entry.ID, entry.Summary+"\n\n"+info)
}

func normalizeEntryType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, known := range models.CodexEntryTypes {
		if t == known {
			return t
		}
	}
	return "lore"
}
