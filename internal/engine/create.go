package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"once/server/internal/llm"
	"once/server/internal/models"
	"once/server/internal/prompts"
)

// ErrInvalidInput is returned when story creation input fails validation.
var ErrInvalidInput = errors.New("invalid story input")

// ProtagonistSeed is an optional player-authored protagonist.
type ProtagonistSeed struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Location    string   `json:"location"`
}

// DeferredSeed is a character withheld from the story until its trigger.
type DeferredSeed struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Role             string `json:"role"`
	TriggerCondition string `json:"trigger_condition"`
}

// CreateStoryInput is everything needed to start a new story.
type CreateStoryInput struct {
	UserID          string
	Title           string
	StoryIdea       string
	Genre           string
	NarrativeStance string
	StoryMode       string
	Visibility      string
	AllowForking    bool

	Protagonist        *ProtagonistSeed
	DeferredCharacters []DeferredSeed
}

// CreateStoryResult bundles everything creation produced.
type CreateStoryResult struct {
	Story       *models.Story       `json:"story"`
	Scene       *models.Scene       `json:"scene"`
	Protagonist *models.Protagonist `json:"protagonist,omitempty"`
}

func (in *CreateStoryInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	if in.NarrativeStance == "" {
		in.NarrativeStance = "grounded"
	} else if !contains(models.NarrativeStances, in.NarrativeStance) {
		return fmt.Errorf("%w: unknown narrative stance %q", ErrInvalidInput, in.NarrativeStance)
	}

	switch in.StoryMode {
	case "":
		in.StoryMode = models.ModeProtagonist
	case models.ModeProtagonist, models.ModeNarrator:
	default:
		return fmt.Errorf("%w: unknown story mode %q", ErrInvalidInput, in.StoryMode)
	}

	switch in.Visibility {
	case "":
		in.Visibility = models.VisibilityPrivate
	case models.VisibilityPrivate, models.VisibilityPublic, models.VisibilityUnlisted:
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, in.Visibility)
	}

	for _, seed := range in.DeferredCharacters {
		if seed.Name == "" || seed.TriggerCondition == "" {
			return fmt.Errorf("%w: deferred characters need a name and a trigger condition", ErrInvalidInput)
		}
	}
	return nil
}

// CreateStory generates the opening scene and persists the new story, its
// protagonist, and the scene as turn 1. In protagonist mode a missing seed
// means the opening generation invents the protagonist.
func (o *Orchestrator) CreateStory(ctx context.Context, in CreateStoryInput) (*CreateStoryResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	init := prompts.InitializeInput{
		Title:     in.Title,
		Genre:     in.Genre,
		StoryIdea: in.StoryIdea,
	}
	if in.StoryMode == models.ModeProtagonist && in.Protagonist != nil {
		init.Protagonist = &prompts.ProtagonistSeed{
			Name:        in.Protagonist.Name,
			Description: in.Protagonist.Description,
			Traits:      in.Protagonist.Traits,
			Location:    in.Protagonist.Location,
		}
	}

	var opening llm.OpeningScene
	err := o.gen.GenerateStructured(ctx, prompts.SystemPrompt(in.NarrativeStance, in.StoryMode),
		prompts.BuildInitializePrompt(init), "opening_scene", &opening)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if opening.Narration == "" {
		return nil, fmt.Errorf("%w: empty opening narration", ErrGeneration)
	}

	story := &models.Story{
		UserID:          in.UserID,
		Title:           in.Title,
		Description:     in.StoryIdea,
		Genre:           in.Genre,
		NarrativeStance: in.NarrativeStance,
		StoryMode:       in.StoryMode,
		Status:          models.StoryStatusActive,
		Visibility:      in.Visibility,
		AllowForking:    in.AllowForking,
	}
	if err := o.repo.CreateStory(ctx, story); err != nil {
		return nil, err
	}

	protagonist, err := o.createOpeningProtagonist(ctx, story.ID, in, opening.ProtagonistGenerated)
	if err != nil {
		return nil, err
	}

	scene := &models.Scene{
		StoryID:    story.ID,
		TurnNumber: 1,
		UserAction: models.ActionStoryStart,
		Narration:  opening.Narration,
	}
	if protagonist != nil {
		scene.ProtagonistID = &protagonist.ID
		scene.ProtagonistSnapshot = protagonist.TakeSnapshot()
	}
	if err := o.repo.AppendScene(ctx, scene); err != nil {
		return nil, err
	}

	for _, seed := range in.DeferredCharacters {
		err := o.deferred.Defer(ctx, &models.DeferredCharacter{
			StoryID:          story.ID,
			Name:             seed.Name,
			Description:      seed.Description,
			Role:             seed.Role,
			TriggerCondition: seed.TriggerCondition,
		})
		if err != nil {
			log.Printf("[Orchestrator] failed to defer character %q for story %d: %v", seed.Name, story.ID, err)
		}
	}

	story.TurnCount = 1
	o.dispatchSideEffects(scene, protagonist)

	return &CreateStoryResult{Story: story, Scene: scene, Protagonist: protagonist}, nil
}

func (o *Orchestrator) createOpeningProtagonist(ctx context.Context, storyID uint, in CreateStoryInput, generated *llm.GeneratedProtagonist) (*models.Protagonist, error) {
	if in.StoryMode != models.ModeProtagonist {
		return nil, nil
	}

	p := &models.Protagonist{
		StoryID:  storyID,
		IsActive: true,
		Health:   100,
		Energy:   100,
	}
	switch {
	case in.Protagonist != nil:
		p.Name = in.Protagonist.Name
		p.Description = in.Protagonist.Description
		p.CurrentLocation = in.Protagonist.Location
		p.BaseTraits = append(models.StringList{}, in.Protagonist.Traits...)
		p.CurrentTraits = append(models.StringList{}, in.Protagonist.Traits...)
	case generated != nil:
		p.Name = generated.Name
		p.Description = generated.Description
		p.CurrentLocation = generated.Location
		p.BaseTraits = append(models.StringList{}, generated.Traits...)
		p.CurrentTraits = append(models.StringList{}, generated.Traits...)
	default:
		return nil, fmt.Errorf("%w: opening scene did not produce a protagonist", ErrGeneration)
	}

	if err := o.repo.CreateProtagonist(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
