package llm

// Typed results for every structured generation call. Each type doubles as
// the JSON schema sent to the service (generated by the client) and the
// deserialization target, so a response that does not match the schema is
// rejected at the boundary instead of probed field by field.

// GeneratedProtagonist is returned when the opening scene auto-generates a
// protagonist because none was supplied.
type GeneratedProtagonist struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Location    string   `json:"location"`
}

// OpeningScene is the result of opening-scene generation.
type OpeningScene struct {
	Narration            string                `json:"narration"`
	ProtagonistGenerated *GeneratedProtagonist `json:"protagonistGenerated"`
}

// ProtagonistUpdate is a delta to apply to the active protagonist. Every
// field is independently optional: scalars overwrite when present, list
// fields are additive/subtractive set operations.
type ProtagonistUpdate struct {
	Health          *int     `json:"health"`
	Energy          *int     `json:"energy"`
	Location        *string  `json:"location"`
	AddTraits       []string `json:"addTraits"`
	RemoveTraits    []string `json:"removeTraits"`
	AddInventory    []string `json:"addInventory"`
	RemoveInventory []string `json:"removeInventory"`
	AddScars        []string `json:"addScars"`
}

// PlantedEcho is a consequence planted for future resolution.
type PlantedEcho struct {
	Description      string `json:"description"`
	TriggerCondition string `json:"triggerCondition"`
}

// SceneResponse is the result of turn continuation.
type SceneResponse struct {
	Narration          string             `json:"narration"`
	Mood               string             `json:"mood"`
	ProtagonistUpdates *ProtagonistUpdate `json:"protagonistUpdates"`
	EchoPlanted        *PlantedEcho       `json:"echoPlanted"`
}

// SceneEffects is the structured follow-up for streamed turns: once the
// narration stream has completed, the effects are derived from the full
// text in a second call.
type SceneEffects struct {
	Mood               string             `json:"mood"`
	ProtagonistUpdates *ProtagonistUpdate `json:"protagonistUpdates"`
	EchoPlanted        *PlantedEcho       `json:"echoPlanted"`
}

// EchoEvaluation selects which pending echoes have met their trigger.
type EchoEvaluation struct {
	TriggeredEchoIDs []uint `json:"triggeredEchoIds"`
	Reasoning        string `json:"reasoning"`
}

// DeferredEvaluation selects which withheld characters should now appear.
type DeferredEvaluation struct {
	TriggeredCharacterIDs []uint `json:"triggeredCharacterIds"`
	Reasoning             string `json:"reasoning"`
}

// ExtractedCharacter is a character mentioned in a narration.
type ExtractedCharacter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsNew       bool   `json:"isNew"`
}

// ExtractedLocation is a place mentioned in a narration.
type ExtractedLocation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ExtractedObject is a notable object, optionally owned by a character.
type ExtractedObject struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Significance string `json:"significance"`
	OwnedBy      string `json:"ownedBy"`
}

// ExtractedRelationship is a typed edge between two characters.
type ExtractedRelationship struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ExtractedEvent is something that happened in the scene.
type ExtractedEvent struct {
	Description string   `json:"description"`
	Who         []string `json:"who"`
	Where       string   `json:"where"`
	CausedBy    string   `json:"causedBy"`
}

// ExtractedEntities is the full entity-extraction result for one scene.
type ExtractedEntities struct {
	Characters    []ExtractedCharacter    `json:"characters"`
	Locations     []ExtractedLocation     `json:"locations"`
	Objects       []ExtractedObject       `json:"objects"`
	Relationships []ExtractedRelationship `json:"relationships"`
	Events        []ExtractedEvent        `json:"events"`
}

// CodexNewEntry is a brand-new encyclopedia entry.
type CodexNewEntry struct {
	Name      string `json:"name"`
	EntryType string `json:"entryType"`
	Summary   string `json:"summary"`
}

// CodexUpdate is new information about an already-known entry.
type CodexUpdate struct {
	Name    string `json:"name"`
	NewInfo string `json:"newInfo"`
}

// CodexExtraction is the codex-extraction result for one scene.
type CodexExtraction struct {
	NewEntries []CodexNewEntry `json:"newEntries"`
	Updates    []CodexUpdate   `json:"updates"`
}
