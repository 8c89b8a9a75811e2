package models

// StoryAggregate bundles everything the orchestrator needs to run one turn:
// the story, its most recent scenes (newest first), all protagonists, and
// the planted echoes and deferred characters.
type StoryAggregate struct {
	Story        Story               `json:"story"`
	Scenes       []Scene             `json:"scenes"`
	Protagonists []Protagonist       `json:"protagonists"`
	Echoes       []Echo              `json:"echoes"`
	Deferred     []DeferredCharacter `json:"deferred_characters"`
}

// ActiveProtagonist returns the protagonist presently being controlled, or
// nil when the story runs in narrator mode.
func (a *StoryAggregate) ActiveProtagonist() *Protagonist {
	for i := range a.Protagonists {
		if a.Protagonists[i].IsActive {
			return &a.Protagonists[i]
		}
	}
	return nil
}

// LastScene returns the most recent scene, or nil for a brand-new story.
func (a *StoryAggregate) LastScene() *Scene {
	if len(a.Scenes) == 0 {
		return nil
	}
	return &a.Scenes[0]
}

// PendingEchoes filters echoes still awaiting their trigger.
func (a *StoryAggregate) PendingEchoes() []Echo {
	var pending []Echo
	for _, e := range a.Echoes {
		if e.Status == EchoPending {
			pending = append(pending, e)
		}
	}
	return pending
}

// PendingCharacters filters deferred characters not yet introduced.
func (a *StoryAggregate) PendingCharacters() []DeferredCharacter {
	var pending []DeferredCharacter
	for _, c := range a.Deferred {
		if !c.Introduced {
			pending = append(pending, c)
		}
	}
	return pending
}
