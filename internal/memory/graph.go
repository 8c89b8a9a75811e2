package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"once/server/internal/config"
	"once/server/internal/interfaces"
)

// Neo4jStore is the relational memory backend. Entities are merged by
// (name, storyId) so repeated extraction of the same character or place
// enriches one node instead of multiplying it.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jStore(ctx context.Context, cfg config.Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach neo4j: %w", err)
	}
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

func (s *Neo4jStore) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
}

func (s *Neo4jStore) UpsertCharacter(ctx context.Context, c interfaces.GraphCharacter) error {
	_, err := s.run(ctx, `
		MERGE (c:Character {name: $name, storyId: $storyId})
		ON CREATE SET c.introducedAt = $introducedAt
		SET c.description = $description`,
		map[string]any{
			"name":         c.Name,
			"storyId":      int64(c.StoryID),
			"description":  c.Description,
			"introducedAt": int64(c.IntroducedAt),
		})
	if err != nil {
		return fmt.Errorf("failed to upsert character %q: %w", c.Name, err)
	}
	return nil
}

func (s *Neo4jStore) UpsertLocation(ctx context.Context, l interfaces.GraphLocation) error {
	_, err := s.run(ctx, `
		MERGE (l:Location {name: $name, storyId: $storyId})
		ON CREATE SET l.firstVisitedAt = $firstVisitedAt
		SET l.description = $description`,
		map[string]any{
			"name":           l.Name,
			"storyId":        int64(l.StoryID),
			"description":    l.Description,
			"firstVisitedAt": int64(l.FirstVisitedAt),
		})
	if err != nil {
		return fmt.Errorf("failed to upsert location %q: %w", l.Name, err)
	}
	return nil
}

func (s *Neo4jStore) UpsertObject(ctx context.Context, o interfaces.GraphObject) error {
	_, err := s.run(ctx, `
		MERGE (o:Object {name: $name, storyId: $storyId})
		SET o.description = $description, o.significance = $significance`,
		map[string]any{
			"name":         o.Name,
			"storyId":      int64(o.StoryID),
			"description":  o.Description,
			"significance": o.Significance,
		})
	if err != nil {
		return fmt.Errorf("failed to upsert object %q: %w", o.Name, err)
	}
	if o.OwnedBy == "" {
		return nil
	}
	_, err = s.run(ctx, `
		MATCH (o:Object {name: $name, storyId: $storyId})
		MERGE (c:Character {name: $owner, storyId: $storyId})
		MERGE (c)-[:POSSESSES]->(o)`,
		map[string]any{
			"name":    o.Name,
			"storyId": int64(o.StoryID),
			"owner":   o.OwnedBy,
		})
	if err != nil {
		return fmt.Errorf("failed to link object %q to owner: %w", o.Name, err)
	}
	return nil
}

// UpsertRelationship records a typed edge between two characters. The
// relationship type becomes the edge label, so it is sanitized to an
// uppercase identifier before being interpolated into the query.
func (s *Neo4jStore) UpsertRelationship(ctx context.Context, storyID uint, r interfaces.GraphRelationship) error {
	relType := sanitizeRelType(r.Type)
	if relType == "" {
		relType = "KNOWS"
	}
	cypher := fmt.Sprintf(`
		MERGE (a:Character {name: $from, storyId: $storyId})
		MERGE (b:Character {name: $to, storyId: $storyId})
		MERGE (a)-[r:%s]->(b)
		SET r.since = $since, r.reason = $reason`, relType)
	_, err := s.run(ctx, cypher, map[string]any{
		"from":    r.From,
		"to":      r.To,
		"storyId": int64(storyID),
		"since":   int64(r.Since),
		"reason":  r.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relationship %s-%s: %w", r.From, r.To, err)
	}
	return nil
}

func (s *Neo4jStore) UpsertEvent(ctx context.Context, e interfaces.GraphEvent) error {
	_, err := s.run(ctx, `
		MERGE (e:Event {id: $id, storyId: $storyId})
		SET e.description = $description, e.sceneId = $sceneTurn, e.where = $where`,
		map[string]any{
			"id":          e.ID,
			"storyId":     int64(e.StoryID),
			"description": e.Description,
			"sceneTurn":   int64(e.SceneTurn),
			"where":       e.Where,
		})
	if err != nil {
		return fmt.Errorf("failed to upsert event %q: %w", e.ID, err)
	}

	for _, who := range e.Who {
		_, err = s.run(ctx, `
			MATCH (e:Event {id: $id, storyId: $storyId})
			MERGE (c:Character {name: $who, storyId: $storyId})
			MERGE (e)-[:INVOLVES]->(c)`,
			map[string]any{"id": e.ID, "storyId": int64(e.StoryID), "who": who})
		if err != nil {
			return fmt.Errorf("failed to link event %q participant: %w", e.ID, err)
		}
	}

	if e.CausedBy != "" {
		_, err = s.run(ctx, `
			MATCH (e:Event {id: $id, storyId: $storyId})
			MATCH (cause:Event {storyId: $storyId})
			WHERE cause.description CONTAINS $causedBy
			MERGE (cause)-[:CAUSED]->(e)`,
			map[string]any{"id": e.ID, "storyId": int64(e.StoryID), "causedBy": e.CausedBy})
		if err != nil {
			return fmt.Errorf("failed to link event %q cause: %w", e.ID, err)
		}
	}
	return nil
}

// characterRelationshipsQuery follows only outgoing edges. Edges are written
// directed from the relationship holder, so matching both directions would
// report b's stance toward a as if it were a's.
const characterRelationshipsQuery = `
	MATCH (a:Character {name: $name, storyId: $storyId})-[r]->(b:Character)
	RETURN type(r) AS type, b.name AS name, r.since AS since, r.reason AS reason`

func (s *Neo4jStore) CharacterRelationships(ctx context.Context, storyID uint, name string) ([]interfaces.Relationship, error) {
	result, err := s.run(ctx, characterRelationshipsQuery,
		map[string]any{"name": name, "storyId": int64(storyID)})
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships for %q: %w", name, err)
	}

	rels := make([]interfaces.Relationship, 0, len(result.Records))
	for _, record := range result.Records {
		rel := interfaces.Relationship{}
		if v, ok := record.Get("name"); ok {
			rel.Name, _ = v.(string)
		}
		if v, ok := record.Get("type"); ok {
			rel.Type, _ = v.(string)
		}
		if v, ok := record.Get("since"); ok {
			if since, ok := v.(int64); ok {
				rel.Since = int(since)
			}
		}
		if v, ok := record.Get("reason"); ok {
			rel.Reason, _ = v.(string)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func (s *Neo4jStore) LocationEvents(ctx context.Context, storyID uint, location string, limit int) ([]interfaces.LocationEvent, error) {
	result, err := s.run(ctx, `
		MATCH (e:Event {storyId: $storyId})
		WHERE e.where = $location
		RETURN e.description AS description, e.sceneId AS sceneId
		ORDER BY e.sceneId DESC
		LIMIT $limit`,
		map[string]any{"storyId": int64(storyID), "location": location, "limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to query events at %q: %w", location, err)
	}

	events := make([]interfaces.LocationEvent, 0, len(result.Records))
	for _, record := range result.Records {
		ev := interfaces.LocationEvent{}
		if v, ok := record.Get("description"); ok {
			ev.Description, _ = v.(string)
		}
		if v, ok := record.Get("sceneId"); ok {
			if turn, ok := v.(int64); ok {
				ev.SceneTurn = int(turn)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func sanitizeRelType(t string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(t)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
