package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"once/server/internal/config"
	"once/server/internal/interfaces"
)

// QdrantStore is the semantic memory backend: one collection of scene
// narrations, points keyed by scene id so re-ingesting a scene overwrites
// rather than duplicates.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
	}, nil
}

// EnsureCollection creates the scene collection if it does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", s.collection, err)
	}
	return nil
}

func (s *QdrantStore) UpsertScene(ctx context.Context, sceneID, storyID uint, narration string, vector []float32) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(sceneID)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"storyId":   int64(storyID),
					"narration": narration,
					"createdAt": time.Now().UTC().Format(time.RFC3339),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert scene vector %d: %w", sceneID, err)
	}
	return nil
}

func (s *QdrantStore) SearchScenes(ctx context.Context, storyID uint, vector []float32, limit int) ([]interfaces.SimilarScene, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("storyId", int64(storyID)),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search scene vectors: %w", err)
	}

	scenes := make([]interfaces.SimilarScene, 0, len(points))
	for _, p := range points {
		scenes = append(scenes, interfaces.SimilarScene{
			SceneID:   p.GetId().GetNum(),
			Narration: p.GetPayload()["narration"].GetStringValue(),
			Score:     p.GetScore(),
		})
	}
	return scenes, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
