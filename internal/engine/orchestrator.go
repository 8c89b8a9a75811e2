package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"once/server/internal/interfaces"
	"once/server/internal/llm"
	"once/server/internal/memory"
	"once/server/internal/models"
	"once/server/internal/prompts"
)

var (
	// ErrStoryNotActive is returned when acting on a completed or
	// abandoned story.
	ErrStoryNotActive = errors.New("story is not active")

	// ErrEmptyAction is returned for a blank user action.
	ErrEmptyAction = errors.New("action cannot be empty")

	// ErrGeneration wraps a failed narration generation. Nothing has been
	// persisted when it is returned; the turn simply did not happen.
	ErrGeneration = errors.New("generation failed")

	// ErrForbidden is returned when the requester does not own the story
	// and it is not visible to them.
	ErrForbidden = errors.New("story does not belong to this user")
)

// turnLockTTL bounds how long a crashed turn can keep a story locked.
const turnLockTTL = 3 * time.Minute

// StoryRepo is the persistence surface the orchestrator needs.
type StoryRepo interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryAggregate(ctx context.Context, id uint, recentScenes int) (*models.StoryAggregate, error)
	AppendScene(ctx context.Context, scene *models.Scene) error
	CreateProtagonist(ctx context.Context, p *models.Protagonist) error
	SaveProtagonist(ctx context.Context, p *models.Protagonist) error
}

// Orchestrator runs the turn loop: validate, recall, generate, persist,
// then hand slow side effects to the task runner.
type Orchestrator struct {
	repo     StoryRepo
	gen      interfaces.StructuredGenerator
	streamer interfaces.NarrationStreamer
	locker   interfaces.TurnLocker
	mem      *memory.Store
	tasks    *TaskRunner

	echoes   *EchoTracker
	deferred *DeferredCast
	codex    *CodexCurator

	recentSceneCount int
}

func NewOrchestrator(
	repo StoryRepo,
	gen interfaces.StructuredGenerator,
	streamer interfaces.NarrationStreamer,
	locker interfaces.TurnLocker,
	mem *memory.Store,
	tasks *TaskRunner,
	echoes *EchoTracker,
	deferred *DeferredCast,
	codex *CodexCurator,
	recentSceneCount int,
) *Orchestrator {
	return &Orchestrator{
		repo:             repo,
		gen:              gen,
		streamer:         streamer,
		locker:           locker,
		mem:              mem,
		tasks:            tasks,
		echoes:           echoes,
		deferred:         deferred,
		codex:            codex,
		recentSceneCount: recentSceneCount,
	}
}

// TurnResult is everything one continuation produced.
type TurnResult struct {
	Scene              *models.Scene          `json:"scene"`
	Narration          string                 `json:"narration"`
	Mood               string                 `json:"mood,omitempty"`
	ProtagonistUpdates *llm.ProtagonistUpdate `json:"protagonist_updates,omitempty"`
	EchoPlanted        bool                   `json:"echo_planted"`
	TriggeredEchoes    []models.Echo          `json:"triggered_echoes,omitempty"`
	EnteredCharacters  []models.DeferredCharacter `json:"entered_characters,omitempty"`
}

// turnContext is the assembled state shared by the blocking and streaming
// continuation paths.
type turnContext struct {
	agg         *models.StoryAggregate
	protagonist *models.Protagonist
	scenes      []models.Scene // oldest first
	triggered   []models.Echo
	entering    []models.DeferredCharacter
	bundle      memory.ContextBundle
	input       prompts.ContinueInput
	system      string
}

// ContinueStory runs one full turn and returns the persisted scene. The
// turn is atomic from the caller's point of view: a generation failure
// leaves the story exactly as it was.
func (o *Orchestrator) ContinueStory(ctx context.Context, userID string, storyID uint, action string) (*TurnResult, error) {
	tc, unlock, err := o.prepareTurn(ctx, userID, storyID, action)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.Printf("[Orchestrator] failed to release turn lock for story %d: %v", storyID, err)
		}
	}()

	var response llm.SceneResponse
	err = o.gen.GenerateStructured(ctx, tc.system, prompts.BuildContinuePrompt(tc.input), "scene_response", &response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	return o.commitTurn(ctx, tc, action, response.Narration, llm.SceneEffects{
		Mood:               response.Mood,
		ProtagonistUpdates: response.ProtagonistUpdates,
		EchoPlanted:        response.EchoPlanted,
	})
}

// StreamEvent is one message emitted during a streamed turn.
type StreamEvent struct {
	Type  string      `json:"type"` // narration | complete | error
	Chunk string      `json:"chunk,omitempty"`
	Turn  *TurnResult `json:"turn,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ContinueStoryStream runs one turn, emitting narration chunks as they
// arrive. Effects are derived from the finished text in a second structured
// call. Nothing persists unless both calls succeed and the caller is still
// connected: an aborted stream, a failed effects derivation, or a caller
// gone before completion all leave the story untouched.
func (o *Orchestrator) ContinueStoryStream(ctx context.Context, userID string, storyID uint, action string, emit func(StreamEvent)) (*TurnResult, error) {
	tc, unlock, err := o.prepareTurn(ctx, userID, storyID, action)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.Printf("[Orchestrator] failed to release turn lock for story %d: %v", storyID, err)
		}
	}()

	narration, err := o.streamer.StreamNarration(ctx, tc.system, prompts.BuildContinuePrompt(tc.input), func(chunk string) {
		emit(StreamEvent{Type: "narration", Chunk: chunk})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if err := ctx.Err(); err != nil {
		// The caller disconnected while narration was being generated.
		// The finished text is discarded, never persisted.
		log.Printf("[Orchestrator] caller gone mid-stream for story %d, discarding turn", storyID)
		return nil, err
	}

	var effects llm.SceneEffects
	err = o.gen.GenerateStructured(ctx, prompts.SystemPrompt(tc.agg.Story.NarrativeStance, tc.agg.Story.StoryMode),
		prompts.BuildEffectsPrompt(narration, tc.protagonist), "scene_effects", &effects)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	result, err := o.commitTurn(ctx, tc, action, narration, effects)
	if err != nil {
		return nil, err
	}
	emit(StreamEvent{Type: "complete", Turn: result})
	return result, nil
}

// prepareTurn validates the request, takes the per-story turn lock, and
// assembles everything generation needs. On success the caller owns the
// returned unlock.
func (o *Orchestrator) prepareTurn(ctx context.Context, userID string, storyID uint, action string) (*turnContext, interfaces.UnlockFunc, error) {
	if strings.TrimSpace(action) == "" {
		return nil, nil, ErrEmptyAction
	}

	agg, err := o.repo.GetStoryAggregate(ctx, storyID, o.recentSceneCount)
	if err != nil {
		return nil, nil, err
	}
	if agg.Story.UserID != userID {
		return nil, nil, ErrForbidden
	}
	if agg.Story.Status != models.StoryStatusActive {
		return nil, nil, ErrStoryNotActive
	}

	unlock, err := o.locker.Lock(ctx, storyID, turnLockTTL)
	if err != nil {
		return nil, nil, err
	}

	tc := &turnContext{
		agg:         agg,
		protagonist: agg.ActiveProtagonist(),
		scenes:      chronological(agg.Scenes),
	}

	sit := prompts.Situation{UserAction: action}
	if last := agg.LastScene(); last != nil {
		sit.RecentNarration = last.Narration
	}
	if p := tc.protagonist; p != nil {
		sit.ProtagonistLocation = p.CurrentLocation
		sit.ProtagonistState = fmt.Sprintf("health %d/100, energy %d/100", p.Health, p.Energy)
	}

	// Trigger evaluation and memory recall share no state, so they run
	// concurrently, and each degrades independently: a failure here
	// costs context quality, never the turn.
	protagonistName, location := "", ""
	if p := tc.protagonist; p != nil {
		protagonistName, location = p.Name, p.CurrentLocation
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		triggered, err := o.echoes.Evaluate(ctx, agg.PendingEchoes(), sit)
		if err != nil {
			log.Printf("[Orchestrator] echo evaluation degraded for story %d: %v", storyID, err)
			return
		}
		tc.triggered = triggered
	}()
	go func() {
		defer wg.Done()
		entering, err := o.deferred.Evaluate(ctx, agg.PendingCharacters(), sit)
		if err != nil {
			log.Printf("[Orchestrator] deferred evaluation degraded for story %d: %v", storyID, err)
			return
		}
		tc.entering = entering
	}()
	go func() {
		defer wg.Done()
		tc.bundle = o.mem.AssembleContext(ctx, storyID, action, protagonistName, location)
	}()
	wg.Wait()

	facts := make([]string, 0, len(tc.bundle.SimilarScenes))
	for _, s := range tc.bundle.SimilarScenes {
		facts = append(facts, s.Narration)
	}

	tc.system = prompts.SystemPrompt(agg.Story.NarrativeStance, agg.Story.StoryMode)
	tc.input = prompts.ContinueInput{
		Protagonist:          tc.protagonist,
		RecentScenes:         tc.scenes,
		UserAction:           action,
		TriggeredEchoes:      tc.triggered,
		IntroducedCharacters: tc.entering,
		FactualKnowledge:     facts,
		Relationships:        tc.bundle.Relationships,
		LocationEvents:       tc.bundle.LocationEvents,
	}
	return tc, unlock, nil
}

// commitTurn persists the generated scene and its effects, then queues the
// slow side effects.
func (o *Orchestrator) commitTurn(ctx context.Context, tc *turnContext, action, narration string, effects llm.SceneEffects) (*TurnResult, error) {
	story := &tc.agg.Story

	if tc.protagonist != nil && effects.ProtagonistUpdates != nil {
		ApplyUpdate(tc.protagonist, effects.ProtagonistUpdates)
		if err := o.repo.SaveProtagonist(ctx, tc.protagonist); err != nil {
			return nil, err
		}
	}

	scene := &models.Scene{
		StoryID:    story.ID,
		TurnNumber: story.TurnCount + 1,
		UserAction: action,
		Narration:  narration,
		Mood:       effects.Mood,
	}
	if p := tc.protagonist; p != nil {
		scene.ProtagonistID = &p.ID
		scene.ProtagonistSnapshot = p.TakeSnapshot()
	}
	if err := o.repo.AppendScene(ctx, scene); err != nil {
		return nil, err
	}

	if err := o.echoes.Resolve(ctx, tc.triggered, scene.ID); err != nil {
		log.Printf("[Orchestrator] failed to resolve echoes for scene %d: %v", scene.ID, err)
	}
	if err := o.deferred.MarkIntroduced(ctx, tc.entering, scene.ID); err != nil {
		log.Printf("[Orchestrator] failed to mark characters introduced for scene %d: %v", scene.ID, err)
	}

	echoPlanted := false
	if effects.EchoPlanted != nil {
		planted, err := o.echoes.Plant(ctx, story.ID, scene.ID, *effects.EchoPlanted)
		if err != nil {
			log.Printf("[Orchestrator] failed to plant echo for scene %d: %v", scene.ID, err)
		} else {
			echoPlanted = planted
		}
	}

	o.dispatchSideEffects(scene, tc.protagonist)

	return &TurnResult{
		Scene:              scene,
		Narration:          narration,
		Mood:               effects.Mood,
		ProtagonistUpdates: effects.ProtagonistUpdates,
		EchoPlanted:        echoPlanted,
		TriggeredEchoes:    tc.triggered,
		EnteredCharacters:  tc.entering,
	}, nil
}

// dispatchSideEffects queues memory ingestion, entity extraction, and codex
// extraction for a persisted scene. All three run detached from the turn.
func (o *Orchestrator) dispatchSideEffects(scene *models.Scene, protagonist *models.Protagonist) {
	if o.tasks == nil {
		return
	}
	sceneID, storyID, turn := scene.ID, scene.StoryID, scene.TurnNumber
	narration := scene.Narration

	o.tasks.Dispatch(Task{
		Name: fmt.Sprintf("ingest-scene-%d", sceneID),
		Run: func(ctx context.Context) error {
			return o.mem.IngestScene(ctx, sceneID, storyID, narration)
		},
	})

	protagonistName := ""
	if protagonist != nil {
		protagonistName = protagonist.Name
	}
	o.tasks.Dispatch(Task{
		Name: fmt.Sprintf("extract-entities-%d", sceneID),
		Run: func(ctx context.Context) error {
			var entities llm.ExtractedEntities
			err := o.gen.GenerateStructured(ctx, prompts.ExtractionSystemPrompt,
				prompts.BuildExtractionPrompt(narration, protagonistName), "entity_extraction", &entities)
			if err != nil {
				return err
			}
			o.mem.IngestEntities(ctx, storyID, turn, entities)
			return nil
		},
	})

	o.tasks.Dispatch(Task{
		Name: fmt.Sprintf("codex-extract-%d", sceneID),
		Run: func(ctx context.Context) error {
			return o.codex.Extract(ctx, storyID, narration)
		},
	})
}

// chronological reverses the newest-first scene slice into reading order.
func chronological(scenes []models.Scene) []models.Scene {
	out := make([]models.Scene, len(scenes))
	for i, s := range scenes {
		out[len(scenes)-1-i] = s
	}
	return out
}
