package interfaces

import "context"

// SimilarScene is one semantic-recall hit: a past scene narration and its
// similarity score against the query.
type SimilarScene struct {
	SceneID   uint64  `json:"scene_id"`
	Narration string  `json:"narration"`
	Score     float32 `json:"score"`
}

// VectorStore is the semantic memory backend, scoped by story to prevent
// cross-story leakage.
type VectorStore interface {
	UpsertScene(ctx context.Context, sceneID, storyID uint, narration string, vector []float32) error
	SearchScenes(ctx context.Context, storyID uint, vector []float32, limit int) ([]SimilarScene, error)
}

// GraphCharacter is a character node keyed by name + story.
type GraphCharacter struct {
	Name         string
	Description  string
	StoryID      uint
	IntroducedAt int
}

// GraphLocation is a location node keyed by name + story.
type GraphLocation struct {
	Name           string
	Description    string
	StoryID        uint
	FirstVisitedAt int
}

// GraphObject is an object node; OwnedBy links it to a character via a
// POSSESSES edge.
type GraphObject struct {
	Name         string
	Description  string
	StoryID      uint
	Significance string
	OwnedBy      string
}

// GraphRelationship is a typed directed edge between two characters. Type
// is an uppercase-snake-case label produced by extraction ("BETRAYED",
// "SAVED_LIFE", ...).
type GraphRelationship struct {
	From   string
	To     string
	Type   string
	Since  int
	Reason string
}

// GraphEvent records something that happened: who was involved, where, and
// what earlier event caused it.
type GraphEvent struct {
	ID          string
	Description string
	StoryID     uint
	SceneTurn   int
	Who         []string
	Where       string
	CausedBy    string
}

// Relationship is one outgoing edge of a character, as read back for
// context assembly.
type Relationship struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Since  int    `json:"since"`
	Reason string `json:"reason,omitempty"`
}

// LocationEvent is one past event at a location, most recent first.
type LocationEvent struct {
	Description string `json:"description"`
	SceneTurn   int    `json:"scene_turn"`
}

// GraphStore is the relational/graph memory backend. Upserts are keyed by
// natural identity (name + storyId) so repeated mentions merge.
type GraphStore interface {
	UpsertCharacter(ctx context.Context, c GraphCharacter) error
	UpsertLocation(ctx context.Context, l GraphLocation) error
	UpsertObject(ctx context.Context, o GraphObject) error
	UpsertRelationship(ctx context.Context, storyID uint, r GraphRelationship) error
	UpsertEvent(ctx context.Context, e GraphEvent) error

	CharacterRelationships(ctx context.Context, storyID uint, name string) ([]Relationship, error)
	LocationEvents(ctx context.Context, storyID uint, location string, limit int) ([]LocationEvent, error)
}
