// Package prompts builds every prompt sent to the generation service. The
// builders are pure string assembly so they can be tested without a live
// service.
package prompts

import (
	"fmt"
	"strings"

	"once/server/internal/interfaces"
	"once/server/internal/models"
)

var stanceDescriptions = map[string]string{
	"grimdark": "The world is brutal and indifferent. Victories cost dearly, trust is scarce, and consequences are permanent.",
	"heroic":   "Courage matters and hope is earned. Stakes are real but heroism can change outcomes.",
	"grounded": "Keep events plausible and human-scale. No melodrama; tension comes from believable pressure.",
	"mythic":   "Larger-than-life forces move beneath events. Symbols, omens, and fate color the narration.",
	"noir":     "Morally gray, atmospheric, cynical. Everyone wants something and nobody says what it is.",
}

// SystemPrompt returns the system instructions for narrative generation,
// shaped by the story's stance and mode.
func SystemPrompt(stance, mode string) string {
	var b strings.Builder
	b.WriteString("You are the narrator of an interactive fiction story. You write vivid, coherent prose that respects everything established so far.\n\n")

	if desc, ok := stanceDescriptions[stance]; ok {
		b.WriteString("## Tone\n")
		b.WriteString(desc)
		b.WriteString("\n\n")
	}

	b.WriteString("## Perspective\n")
	if mode == models.ModeProtagonist {
		b.WriteString("Write in second person (\"you\"), addressing the protagonist directly. The player controls only the protagonist's actions.\n")
	} else {
		b.WriteString("Write in third person. The player directs the story as an omniscient narrator.\n")
	}

	b.WriteString("\n## Rules\n")
	b.WriteString("- Never contradict established facts, inventory, injuries, or relationships.\n")
	b.WriteString("- Never speak for the player or decide their next action.\n")
	b.WriteString("- No meta-commentary. Just the story.\n")
	return b.String()
}

// InitializeInput carries everything needed for the opening-scene prompt.
type InitializeInput struct {
	Title     string
	Genre     string
	StoryIdea string

	// Protagonist is nil when one should be auto-generated.
	Protagonist *ProtagonistSeed
}

// ProtagonistSeed describes a player-supplied protagonist.
type ProtagonistSeed struct {
	Name        string
	Description string
	Traits      []string
	Location    string
}

// BuildInitializePrompt builds the opening-scene prompt.
func BuildInitializePrompt(in InitializeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create the opening scene for a %s story titled %q.", in.Genre, in.Title)
	if in.StoryIdea != "" {
		fmt.Fprintf(&b, " Follow this premise: %s.", in.StoryIdea)
	}
	b.WriteString("\n\n")

	if p := in.Protagonist; p != nil {
		b.WriteString("## Protagonist\n")
		fmt.Fprintf(&b, "- Name: %s\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(&b, "- Description: %s\n", p.Description)
		} else {
			b.WriteString("- Description: not specified, infer from traits\n")
		}
		if len(p.Traits) > 0 {
			fmt.Fprintf(&b, "- Traits: %s\n", strings.Join(p.Traits, ", "))
		}
		fmt.Fprintf(&b, "- Starting location: %s\n", p.Location)
		b.WriteString("\n## Requirements\n")
		b.WriteString("1. Begin in media res; the protagonist is already in motion, facing a situation.\n")
		fmt.Fprintf(&b, "2. Establish %s with vivid sensory detail.\n", p.Location)
		b.WriteString("3. Introduce a hook: a problem, mystery, or choice that demands attention.\n")
		b.WriteString("4. Show the protagonist's personality through action, not exposition.\n")
		b.WriteString("5. End at a moment that invites the player to act.\n")
		b.WriteString("\nLeave protagonistGenerated null.\n")
	} else {
		b.WriteString("## Requirements\n")
		b.WriteString("1. Generate a compelling protagonist with a name, appearance, and clear personality, and return it in protagonistGenerated.\n")
		b.WriteString("2. Place them in a specific, vivid location.\n")
		b.WriteString("3. Begin in media res; they are already facing a situation.\n")
		b.WriteString("4. Introduce a hook: a problem, mystery, or choice.\n")
		b.WriteString("5. End at a moment that invites the player to act.\n")
	}

	b.WriteString("\nWrite 200-400 words of narration.\n")
	return b.String()
}

// ContinueInput carries the assembled context for one turn continuation.
type ContinueInput struct {
	Protagonist  *models.Protagonist
	RecentScenes []models.Scene // oldest first
	UserAction   string

	TriggeredEchoes      []models.Echo
	IntroducedCharacters []models.DeferredCharacter

	FactualKnowledge []string
	Relationships    []interfaces.Relationship
	LocationEvents   []interfaces.LocationEvent
}

// BuildContinuePrompt builds the turn-continuation prompt.
func BuildContinuePrompt(in ContinueInput) string {
	var b strings.Builder

	if p := in.Protagonist; p != nil {
		b.WriteString("## Protagonist\n")
		fmt.Fprintf(&b, "- Name: %s\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(&b, "- Description: %s\n", p.Description)
		}
		fmt.Fprintf(&b, "- Health: %d/100, Energy: %d/100\n", p.Health, p.Energy)
		fmt.Fprintf(&b, "- Location: %s\n", p.CurrentLocation)
		if len(p.CurrentTraits) > 0 {
			fmt.Fprintf(&b, "- Traits: %s\n", strings.Join(p.CurrentTraits, ", "))
		}
		if len(p.Inventory) > 0 {
			fmt.Fprintf(&b, "- Inventory: %s\n", strings.Join(p.Inventory, ", "))
		}
		if len(p.Scars) > 0 {
			fmt.Fprintf(&b, "- Scars: %s\n", strings.Join(p.Scars, "; "))
		}
		b.WriteString("\n")
	}

	if len(in.RecentScenes) > 0 {
		b.WriteString("## Recent scenes\n")
		for _, s := range in.RecentScenes {
			if s.UserAction != models.ActionStoryStart {
				fmt.Fprintf(&b, "> %s\n", s.UserAction)
			}
			b.WriteString(s.Narration)
			b.WriteString("\n\n")
		}
	}

	if len(in.FactualKnowledge) > 0 {
		b.WriteString("## Established facts from earlier in the story\n")
		for _, fact := range in.FactualKnowledge {
			fmt.Fprintf(&b, "- %s\n", fact)
		}
		b.WriteString("\n")
	}

	if len(in.Relationships) > 0 {
		b.WriteString("## Known relationships of the protagonist\n")
		for _, r := range in.Relationships {
			if r.Reason != "" {
				fmt.Fprintf(&b, "- %s %s (%s)\n", r.Type, r.Name, r.Reason)
			} else {
				fmt.Fprintf(&b, "- %s %s\n", r.Type, r.Name)
			}
		}
		b.WriteString("\n")
	}

	if len(in.LocationEvents) > 0 {
		b.WriteString("## What happened at this location before\n")
		for _, e := range in.LocationEvents {
			fmt.Fprintf(&b, "- %s\n", e.Description)
		}
		b.WriteString("\n")
	}

	if len(in.TriggeredEchoes) > 0 {
		b.WriteString("## Consequences to weave in\n")
		b.WriteString("These planted consequences have triggered; they MUST surface naturally in this scene:\n")
		for _, e := range in.TriggeredEchoes {
			fmt.Fprintf(&b, "- %s\n", e.Description)
		}
		b.WriteString("\n")
	}

	if len(in.IntroducedCharacters) > 0 {
		b.WriteString("## Characters to introduce\n")
		b.WriteString("These characters enter the story in this scene:\n")
		for _, c := range in.IntroducedCharacters {
			fmt.Fprintf(&b, "- %s", c.Name)
			if c.Role != "" {
				fmt.Fprintf(&b, " (%s)", c.Role)
			}
			if c.Description != "" {
				fmt.Fprintf(&b, ": %s", c.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Player action\n")
	b.WriteString(in.UserAction)
	b.WriteString("\n\nContinue the story. Report any protagonist changes in protagonistUpdates (null fields mean unchanged). If something in this scene should echo later, describe it in echoPlanted.\n")
	return b.String()
}

// BuildEffectsPrompt builds the follow-up prompt for streamed turns, where
// narration already exists and only the structured effects are needed.
func BuildEffectsPrompt(narration string, protagonist *models.Protagonist) string {
	var b strings.Builder
	b.WriteString("The following scene has just been narrated.\n\n## Scene\n")
	b.WriteString(narration)
	b.WriteString("\n\n")
	if p := protagonist; p != nil {
		b.WriteString("## Protagonist before the scene\n")
		fmt.Fprintf(&b, "- Name: %s, Health: %d/100, Energy: %d/100, Location: %s\n", p.Name, p.Health, p.Energy, p.CurrentLocation)
		if len(p.Inventory) > 0 {
			fmt.Fprintf(&b, "- Inventory: %s\n", strings.Join(p.Inventory, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Determine the scene's mood, any protagonist changes (protagonistUpdates; null fields mean unchanged), and whether a consequence was planted for later (echoPlanted).\n")
	return b.String()
}

// EvalSystemPrompt is the system prompt for trigger evaluation calls.
const EvalSystemPrompt = "You judge whether narrative trigger conditions have been met. Be conservative: only select entries whose condition is clearly satisfied by the current situation."

// Situation is the current turn context used to judge trigger conditions.
type Situation struct {
	UserAction          string
	RecentNarration     string
	ProtagonistLocation string
	ProtagonistState    string
}

func (s Situation) write(b *strings.Builder) {
	b.WriteString("## Current situation\n")
	fmt.Fprintf(b, "- Player action: %s\n", s.UserAction)
	if s.ProtagonistLocation != "" {
		fmt.Fprintf(b, "- Protagonist location: %s\n", s.ProtagonistLocation)
	}
	if s.ProtagonistState != "" {
		fmt.Fprintf(b, "- Protagonist state: %s\n", s.ProtagonistState)
	}
	if s.RecentNarration != "" {
		b.WriteString("\n## Most recent scene\n")
		b.WriteString(s.RecentNarration)
		b.WriteString("\n")
	}
}

// BuildEchoEvalPrompt builds the echo trigger-evaluation prompt.
func BuildEchoEvalPrompt(pending []models.Echo, sit Situation) string {
	var b strings.Builder
	b.WriteString("## Pending consequences\n")
	for _, e := range pending {
		fmt.Fprintf(&b, "- id %d: %s (triggers: %s)\n", e.ID, e.Description, e.TriggerCondition)
	}
	b.WriteString("\n")
	sit.write(&b)
	b.WriteString("\nReturn the ids of consequences whose trigger condition is now met.\n")
	return b.String()
}

// BuildDeferredEvalPrompt builds the deferred-character evaluation prompt.
func BuildDeferredEvalPrompt(pending []models.DeferredCharacter, sit Situation) string {
	var b strings.Builder
	b.WriteString("## Withheld characters\n")
	for _, c := range pending {
		fmt.Fprintf(&b, "- id %d: %s", c.ID, c.Name)
		if c.Role != "" {
			fmt.Fprintf(&b, " (%s)", c.Role)
		}
		fmt.Fprintf(&b, ", appears when: %s\n", c.TriggerCondition)
	}
	b.WriteString("\n")
	sit.write(&b)
	b.WriteString("\nReturn the ids of characters whose introduction condition is now met.\n")
	return b.String()
}

// ExtractionSystemPrompt is the system prompt for entity extraction.
const ExtractionSystemPrompt = "You extract structured entities from story narration: characters, locations, objects, relationships between characters, and events. Only extract what the text states or clearly implies."

// BuildExtractionPrompt builds the entity-extraction prompt.
func BuildExtractionPrompt(narration, protagonistName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The protagonist of this story is %q.\n\n## Scene\n", protagonistName)
	b.WriteString(narration)
	b.WriteString("\n\nExtract all named characters, locations, and significant objects, plus relationships between characters (use short uppercase labels like BETRAYED or SAVED_LIFE) and events (what happened, who was involved, where).\n")
	return b.String()
}

// CodexSystemPrompt is the system prompt for codex extraction.
const CodexSystemPrompt = "You extract notable entities from story narration for an encyclopedia."

// BuildCodexExtractionPrompt builds the codex-extraction prompt. Existing
// entries are listed so the service updates rather than duplicates them.
func BuildCodexExtractionPrompt(narration string, existing []models.CodexEntry) string {
	var b strings.Builder
	b.WriteString("## Scene\n")
	b.WriteString(narration)
	b.WriteString("\n\n## Entries already in the encyclopedia\n")
	if len(existing) == 0 {
		b.WriteString("(none yet)\n")
	}
	for _, e := range existing {
		fmt.Fprintf(&b, "- %s (%s)\n", e.Name, e.EntryType)
	}
	b.WriteString("\nIdentify brand-new notable entities (newEntries) and new information about already-listed ones (updates). Entry types: character, location, item, faction, event, lore. Do not duplicate existing entries.\n")
	return b.String()
}
