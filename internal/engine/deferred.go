package engine

import (
	"context"
	"fmt"

	"once/server/internal/interfaces"
	"once/server/internal/llm"
	"once/server/internal/models"
	"once/server/internal/prompts"
)

// DeferredRepo is the persistence surface the cast manager needs.
type DeferredRepo interface {
	CreateDeferredCharacter(ctx context.Context, c *models.DeferredCharacter) error
	MarkIntroduced(ctx context.Context, id, sceneID uint) error
}

// DeferredCast holds characters back from the narrative until the story
// reaches their entrance condition.
type DeferredCast struct {
	repo DeferredRepo
	gen  interfaces.StructuredGenerator
}

func NewDeferredCast(repo DeferredRepo, gen interfaces.StructuredGenerator) *DeferredCast {
	return &DeferredCast{repo: repo, gen: gen}
}

// Defer registers a withheld character for a story.
func (d *DeferredCast) Defer(ctx context.Context, c *models.DeferredCharacter) error {
	if c.Name == "" || c.TriggerCondition == "" {
		return fmt.Errorf("deferred character needs a name and a trigger condition")
	}
	c.Introduced = false
	return d.repo.CreateDeferredCharacter(ctx, c)
}

// Evaluate returns the withheld characters whose entrance condition is now
// met. Skips the generation call entirely when none are pending, and
// discards any id the evaluator invents.
func (d *DeferredCast) Evaluate(ctx context.Context, pending []models.DeferredCharacter, sit prompts.Situation) ([]models.DeferredCharacter, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	var eval llm.DeferredEvaluation
	err := d.gen.GenerateStructured(ctx, prompts.EvalSystemPrompt,
		prompts.BuildDeferredEvalPrompt(pending, sit), "deferred_evaluation", &eval)
	if err != nil {
		return nil, fmt.Errorf("deferred character evaluation failed: %w", err)
	}

	byID := make(map[uint]models.DeferredCharacter, len(pending))
	for _, c := range pending {
		byID[c.ID] = c
	}

	var entering []models.DeferredCharacter
	for _, id := range eval.TriggeredCharacterIDs {
		if c, ok := byID[id]; ok {
			entering = append(entering, c)
		}
	}
	return entering, nil
}

// MarkIntroduced stamps each character with the scene that brought them in.
func (d *DeferredCast) MarkIntroduced(ctx context.Context, entering []models.DeferredCharacter, sceneID uint) error {
	for _, c := range entering {
		if err := d.repo.MarkIntroduced(ctx, c.ID, sceneID); err != nil {
			return err
		}
	}
	return nil
}
