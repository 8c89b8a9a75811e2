package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Story lifecycle status
const (
	StoryStatusActive    = "active"
	StoryStatusCompleted = "completed"
	StoryStatusAbandoned = "abandoned"
)

// Story visibility
const (
	VisibilityPrivate  = "private"
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
)

// Story modes
const (
	ModeProtagonist = "protagonist"
	ModeNarrator    = "narrator"
)

// Echo status
const (
	EchoPending  = "pending"
	EchoResolved = "resolved"
)

// ActionStoryStart marks the user action of an opening scene.
const ActionStoryStart = "[STORY_START]"

// NarrativeStances lists the supported narration tones.
var NarrativeStances = []string{"grimdark", "heroic", "grounded", "mythic", "noir"}

// CodexEntryTypes lists the supported encyclopedia entry kinds.
var CodexEntryTypes = []string{"character", "location", "item", "faction", "event", "lore"}

// StringList is a JSON-encoded string slice stored in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Contains reports whether the list holds the given item.
func (l StringList) Contains(item string) bool {
	for _, s := range l {
		if s == item {
			return true
		}
	}
	return false
}

// Snapshot is a frozen copy of protagonist attributes embedded in a scene.
// Forking replays it, so it must capture everything needed to rebuild the
// protagonist exactly as they were at that turn.
type Snapshot struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Health          int        `json:"health"`
	Energy          int        `json:"energy"`
	CurrentLocation string     `json:"currentLocation"`
	BaseTraits      StringList `json:"baseTraits"`
	CurrentTraits   StringList `json:"currentTraits"`
	Inventory       StringList `json:"inventory"`
	Scars           StringList `json:"scars"`
}

func (s Snapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *Snapshot) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into Snapshot", value)
	}
}

// Story is one interactive narrative owned by a user. The engine mutates
// TurnCount and UpdatedAt only; status changes are administrative.
type Story struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UserID          string `gorm:"index;size:64" json:"user_id"`
	Title           string `gorm:"size:255" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	Genre           string `gorm:"size:50" json:"genre"`
	NarrativeStance string `gorm:"size:32" json:"narrative_stance"`
	StoryMode       string `gorm:"size:32" json:"story_mode"`
	Status          string `gorm:"size:32" json:"status"`
	Visibility      string `gorm:"size:32" json:"visibility"`
	AllowForking    bool   `json:"allow_forking"`
	TurnCount       int    `json:"turn_count"`

	ForkedFromStoryID *uint `json:"forked_from_story_id,omitempty"`
	ForkedAtSceneID   *uint `json:"forked_at_scene_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scene is an immutable append-only record of one turn.
type Scene struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	StoryID             uint      `gorm:"uniqueIndex:idx_story_turn" json:"story_id"`
	TurnNumber          int       `gorm:"uniqueIndex:idx_story_turn" json:"turn_number"`
	UserAction          string    `gorm:"type:text" json:"user_action"`
	Narration           string    `gorm:"type:text" json:"narration"`
	Mood                string    `gorm:"size:64" json:"mood,omitempty"`
	ProtagonistID       *uint     `json:"protagonist_id,omitempty"`
	ProtagonistSnapshot *Snapshot `gorm:"type:text" json:"protagonist_snapshot,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Protagonist is a playable character. At most one per story is active.
type Protagonist struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StoryID         uint       `gorm:"index" json:"story_id"`
	Name            string     `gorm:"size:100" json:"name"`
	Description     string     `gorm:"type:text" json:"description"`
	IsActive        bool       `json:"is_active"`
	Health          int        `json:"health"`
	Energy          int        `json:"energy"`
	CurrentLocation string     `gorm:"size:255" json:"current_location"`
	BaseTraits      StringList `gorm:"type:text" json:"base_traits"`
	CurrentTraits   StringList `gorm:"type:text" json:"current_traits"`
	Inventory       StringList `gorm:"type:text" json:"inventory"`
	Scars           StringList `gorm:"type:text" json:"scars"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TakeSnapshot freezes the protagonist's current attributes.
func (p *Protagonist) TakeSnapshot() *Snapshot {
	return &Snapshot{
		Name:            p.Name,
		Description:     p.Description,
		Health:          p.Health,
		Energy:          p.Energy,
		CurrentLocation: p.CurrentLocation,
		BaseTraits:      append(StringList{}, p.BaseTraits...),
		CurrentTraits:   append(StringList{}, p.CurrentTraits...),
		Inventory:       append(StringList{}, p.Inventory...),
		Scars:           append(StringList{}, p.Scars...),
	}
}

// Echo is a planted narrative consequence awaiting a future trigger.
// Status only ever moves pending -> resolved.
type Echo struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StoryID          uint      `gorm:"index" json:"story_id"`
	Description      string    `gorm:"type:text" json:"description"`
	TriggerCondition string    `gorm:"type:text" json:"trigger_condition"`
	Status           string    `gorm:"size:16" json:"status"`
	SourceSceneID    uint      `json:"source_scene_id"`
	ResolvedAtSceneID *uint    `json:"resolved_at_scene_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DeferredCharacter is withheld from the narrative until its trigger
// condition is met. Introduced is monotone.
type DeferredCharacter struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	StoryID             uint      `gorm:"index" json:"story_id"`
	Name                string    `gorm:"size:100" json:"name"`
	Description         string    `gorm:"type:text" json:"description"`
	Role                string    `gorm:"size:100" json:"role"`
	TriggerCondition    string    `gorm:"type:text" json:"trigger_condition"`
	Introduced          bool      `json:"introduced"`
	IntroducedAtSceneID *uint     `json:"introduced_at_scene_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// CodexEntry is one row of the in-world encyclopedia. Once a user edits the
// summary, automatic rewrites stop for good.
type CodexEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StoryID    uint      `gorm:"index" json:"story_id"`
	EntryType  string    `gorm:"size:32" json:"entry_type"`
	Name       string    `gorm:"size:255" json:"name"`
	Summary    string    `gorm:"type:text" json:"summary"`
	UserEdited bool      `json:"user_edited"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
