package memory

import (
	"context"
	"fmt"
	"log"
	"sync"

	"once/server/internal/config"
	"once/server/internal/interfaces"
	"once/server/internal/llm"
)

// ContextBundle is everything long-term memory contributes to one turn.
// Every field may be empty: recall is best effort and a dead backend
// degrades the bundle, never the turn.
type ContextBundle struct {
	SimilarScenes  []interfaces.SimilarScene
	Relationships  []interfaces.Relationship
	LocationEvents []interfaces.LocationEvent
}

// Store composes the semantic and relational memory backends behind one
// facade. Either backend may be nil when its service is unreachable at
// startup; the store then skips that dimension of recall.
type Store struct {
	embedder interfaces.Embedder
	vectors  interfaces.VectorStore
	graph    interfaces.GraphStore

	recallLimit   int
	locationLimit int
}

func NewStore(embedder interfaces.Embedder, vectors interfaces.VectorStore, graph interfaces.GraphStore, cfg config.MemoryConfig) *Store {
	return &Store{
		embedder:      embedder,
		vectors:       vectors,
		graph:         graph,
		recallLimit:   cfg.RecallLimit,
		locationLimit: cfg.LocationHistoryLimit,
	}
}

// AssembleContext gathers the three recall dimensions concurrently. Each
// sub-query fails independently: an error is logged and its slot left
// empty so a sick backend cannot block turn generation.
func (s *Store) AssembleContext(ctx context.Context, storyID uint, userAction, protagonistName, location string) ContextBundle {
	var bundle ContextBundle
	var wg sync.WaitGroup

	if s.vectors != nil && s.embedder != nil && userAction != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scenes, err := s.recallSimilar(ctx, storyID, userAction)
			if err != nil {
				log.Printf("[MemoryStore] semantic recall failed for story %d: %v", storyID, err)
				return
			}
			bundle.SimilarScenes = scenes
		}()
	}

	if s.graph != nil && protagonistName != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rels, err := s.graph.CharacterRelationships(ctx, storyID, protagonistName)
			if err != nil {
				log.Printf("[MemoryStore] relationship recall failed for story %d: %v", storyID, err)
				return
			}
			bundle.Relationships = rels
		}()
	}

	if s.graph != nil && location != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := s.graph.LocationEvents(ctx, storyID, location, s.locationLimit)
			if err != nil {
				log.Printf("[MemoryStore] location recall failed for story %d: %v", storyID, err)
				return
			}
			bundle.LocationEvents = events
		}()
	}

	wg.Wait()
	return bundle
}

func (s *Store) recallSimilar(ctx context.Context, storyID uint, query string) ([]interfaces.SimilarScene, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.vectors.SearchScenes(ctx, storyID, vector, s.recallLimit)
}

// IngestScene embeds a finished scene's narration and stores it for
// semantic recall.
func (s *Store) IngestScene(ctx context.Context, sceneID, storyID uint, narration string) error {
	if s.vectors == nil || s.embedder == nil {
		return nil
	}
	vector, err := s.embedder.Embed(ctx, narration)
	if err != nil {
		return fmt.Errorf("failed to embed scene %d: %w", sceneID, err)
	}
	return s.vectors.UpsertScene(ctx, sceneID, storyID, narration, vector)
}

// IngestEntities fans extracted entities out into the graph. Individual
// upsert failures are logged and skipped; the remaining entities still
// land.
func (s *Store) IngestEntities(ctx context.Context, storyID uint, sceneTurn int, entities llm.ExtractedEntities) {
	if s.graph == nil {
		return
	}

	for _, c := range entities.Characters {
		err := s.graph.UpsertCharacter(ctx, interfaces.GraphCharacter{
			Name:         c.Name,
			Description:  c.Description,
			StoryID:      storyID,
			IntroducedAt: sceneTurn,
		})
		if err != nil {
			log.Printf("[MemoryStore] character upsert failed: %v", err)
		}
	}

	for _, l := range entities.Locations {
		err := s.graph.UpsertLocation(ctx, interfaces.GraphLocation{
			Name:           l.Name,
			Description:    l.Description,
			StoryID:        storyID,
			FirstVisitedAt: sceneTurn,
		})
		if err != nil {
			log.Printf("[MemoryStore] location upsert failed: %v", err)
		}
	}

	for _, o := range entities.Objects {
		err := s.graph.UpsertObject(ctx, interfaces.GraphObject{
			Name:         o.Name,
			Description:  o.Description,
			StoryID:      storyID,
			Significance: o.Significance,
			OwnedBy:      o.OwnedBy,
		})
		if err != nil {
			log.Printf("[MemoryStore] object upsert failed: %v", err)
		}
	}

	for _, r := range entities.Relationships {
		err := s.graph.UpsertRelationship(ctx, storyID, interfaces.GraphRelationship{
			From:   r.From,
			To:     r.To,
			Type:   r.Type,
			Since:  sceneTurn,
			Reason: r.Reason,
		})
		if err != nil {
			log.Printf("[MemoryStore] relationship upsert failed: %v", err)
		}
	}

	for _, e := range entities.Events {
		err := s.graph.UpsertEvent(ctx, interfaces.GraphEvent{
			ID:          eventID(sceneTurn, e.Description),
			Description: e.Description,
			StoryID:     storyID,
			SceneTurn:   sceneTurn,
			Who:         e.Who,
			Where:       e.Where,
			CausedBy:    e.CausedBy,
		})
		if err != nil {
			log.Printf("[MemoryStore] event upsert failed: %v", err)
		}
	}
}

// eventID derives a stable natural key so re-ingesting the same scene
// merges its events instead of duplicating them. The prefix is cut on a
// rune boundary so multi-byte descriptions never yield a mangled key.
func eventID(sceneTurn int, description string) string {
	prefix := []rune(description)
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}
	return fmt.Sprintf("%d-%s", sceneTurn, string(prefix))
}
