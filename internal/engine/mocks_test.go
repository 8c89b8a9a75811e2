package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"once/server/internal/interfaces"
	"once/server/internal/models"
)

// fakeGenerator returns canned structured results keyed by schema name and
// counts calls so short-circuit behavior can be asserted. Evaluations run
// concurrently, so access is locked.
type fakeGenerator struct {
	mu      sync.Mutex
	results map[string]any
	errs    map[string]error
	calls   map[string]int
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		results: make(map[string]any),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (g *fakeGenerator) GenerateStructured(ctx context.Context, instructions, input, schemaName string, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[schemaName]++
	if err, ok := g.errs[schemaName]; ok {
		return err
	}
	result, ok := g.results[schemaName]
	if !ok {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type fakeStreamer struct {
	chunks []string
	err    error
}

func (s *fakeStreamer) StreamNarration(ctx context.Context, instructions, input string, onDelta func(chunk string)) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	full := ""
	for _, chunk := range s.chunks {
		onDelta(chunk)
		full += chunk
	}
	return full, nil
}

// fakeRepo is an in-memory StoryRepo plus the component repo surfaces.
type fakeRepo struct {
	stories      map[uint]*models.StoryAggregate
	scenes       []*models.Scene
	echoes       []*models.Echo
	deferred     []*models.DeferredCharacter
	codexEntries []models.CodexEntry

	resolvedEchoIDs []uint
	introducedIDs   []uint
	savedProtas     int
	nextSceneID     uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stories: make(map[uint]*models.StoryAggregate), nextSceneID: 100}
}

func (r *fakeRepo) CreateStory(ctx context.Context, story *models.Story) error {
	story.ID = uint(len(r.stories) + 1)
	r.stories[story.ID] = &models.StoryAggregate{Story: *story}
	return nil
}

func (r *fakeRepo) GetStoryAggregate(ctx context.Context, id uint, recentScenes int) (*models.StoryAggregate, error) {
	agg, ok := r.stories[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *agg
	return &copied, nil
}

func (r *fakeRepo) AppendScene(ctx context.Context, scene *models.Scene) error {
	r.nextSceneID++
	scene.ID = r.nextSceneID
	r.scenes = append(r.scenes, scene)
	if agg, ok := r.stories[scene.StoryID]; ok {
		agg.Story.TurnCount = scene.TurnNumber
		agg.Scenes = append([]models.Scene{*scene}, agg.Scenes...)
	}
	return nil
}

func (r *fakeRepo) CreateProtagonist(ctx context.Context, p *models.Protagonist) error {
	p.ID = 1
	if agg, ok := r.stories[p.StoryID]; ok {
		agg.Protagonists = append(agg.Protagonists, *p)
	}
	return nil
}

func (r *fakeRepo) SaveProtagonist(ctx context.Context, p *models.Protagonist) error {
	r.savedProtas++
	return nil
}

func (r *fakeRepo) CreateEcho(ctx context.Context, echo *models.Echo) error {
	echo.ID = uint(len(r.echoes) + 1)
	r.echoes = append(r.echoes, echo)
	return nil
}

func (r *fakeRepo) ResolveEchoes(ctx context.Context, ids []uint, sceneID uint) error {
	r.resolvedEchoIDs = append(r.resolvedEchoIDs, ids...)
	return nil
}

func (r *fakeRepo) CreateDeferredCharacter(ctx context.Context, c *models.DeferredCharacter) error {
	c.ID = uint(len(r.deferred) + 1)
	r.deferred = append(r.deferred, c)
	return nil
}

func (r *fakeRepo) MarkIntroduced(ctx context.Context, id, sceneID uint) error {
	r.introducedIDs = append(r.introducedIDs, id)
	return nil
}

func (r *fakeRepo) ListCodexEntries(ctx context.Context, storyID uint) ([]models.CodexEntry, error) {
	return r.codexEntries, nil
}

func (r *fakeRepo) CreateCodexEntries(ctx context.Context, entries []models.CodexEntry) error {
	r.codexEntries = append(r.codexEntries, entries...)
	return nil
}

func (r *fakeRepo) UpdateCodexSummary(ctx context.Context, id uint, summary string) error {
	for i := range r.codexEntries {
		if r.codexEntries[i].ID == id && !r.codexEntries[i].UserEdited {
			r.codexEntries[i].Summary = summary
		}
	}
	return nil
}

var errNotFound = errSentinel("not found")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }

// noopLocker always grants the lock.
type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, storyID uint, ttl time.Duration) (interfaces.UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}
