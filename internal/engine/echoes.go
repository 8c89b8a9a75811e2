package engine

import (
	"context"
	"fmt"

	"once/server/internal/interfaces"
	"once/server/internal/llm"
	"once/server/internal/models"
	"once/server/internal/prompts"
)

// EchoRepo is the persistence surface the tracker needs.
type EchoRepo interface {
	CreateEcho(ctx context.Context, echo *models.Echo) error
	ResolveEchoes(ctx context.Context, ids []uint, sceneID uint) error
}

// EchoTracker plants narrative consequences and decides when they fire.
type EchoTracker struct {
	repo EchoRepo
	gen  interfaces.StructuredGenerator
}

func NewEchoTracker(repo EchoRepo, gen interfaces.StructuredGenerator) *EchoTracker {
	return &EchoTracker{repo: repo, gen: gen}
}

// Plant records a new pending echo sourced from the given scene. It reports
// whether a row was written; an echo missing its description or trigger
// condition is skipped without error.
func (t *EchoTracker) Plant(ctx context.Context, storyID, sceneID uint, planted llm.PlantedEcho) (bool, error) {
	if planted.Description == "" || planted.TriggerCondition == "" {
		return false, nil
	}
	err := t.repo.CreateEcho(ctx, &models.Echo{
		StoryID:          storyID,
		Description:      planted.Description,
		TriggerCondition: planted.TriggerCondition,
		Status:           models.EchoPending,
		SourceSceneID:    sceneID,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Evaluate returns the pending echoes whose trigger condition the current
// situation satisfies. No generation call is made when nothing is pending.
// Ids the evaluator returns that are not actually pending are discarded.
func (t *EchoTracker) Evaluate(ctx context.Context, pending []models.Echo, sit prompts.Situation) ([]models.Echo, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	var eval llm.EchoEvaluation
	err := t.gen.GenerateStructured(ctx, prompts.EvalSystemPrompt,
		prompts.BuildEchoEvalPrompt(pending, sit), "echo_evaluation", &eval)
	if err != nil {
		return nil, fmt.Errorf("echo evaluation failed: %w", err)
	}

	byID := make(map[uint]models.Echo, len(pending))
	for _, e := range pending {
		byID[e.ID] = e
	}

	var triggered []models.Echo
	for _, id := range eval.TriggeredEchoIDs {
		if e, ok := byID[id]; ok {
			triggered = append(triggered, e)
		}
	}
	return triggered, nil
}

// Resolve marks the triggered echoes resolved at the scene that surfaced
// them.
func (t *EchoTracker) Resolve(ctx context.Context, triggered []models.Echo, sceneID uint) error {
	if len(triggered) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(triggered))
	for _, e := range triggered {
		ids = append(ids, e.ID)
	}
	return t.repo.ResolveEchoes(ctx, ids, sceneID)
}
