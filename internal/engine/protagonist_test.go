package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"once/server/internal/llm"
	"once/server/internal/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func newTestProtagonist() *models.Protagonist {
	return &models.Protagonist{
		Name:            "Kael",
		Health:          40,
		Energy:          70,
		CurrentLocation: "the undercity",
		CurrentTraits:   models.StringList{"wary"},
		Inventory:       models.StringList{"rope", "lantern"},
		Scars:           models.StringList{"burned left hand"},
	}
}

func TestApplyUpdateScalarOverwrite(t *testing.T) {
	p := newTestProtagonist()

	ApplyUpdate(p, &llm.ProtagonistUpdate{Health: intPtr(25)})

	assert.Equal(t, 25, p.Health)
	assert.Equal(t, 70, p.Energy, "absent fields stay untouched")
	assert.Equal(t, "the undercity", p.CurrentLocation)
}

func TestApplyUpdateClampsBounds(t *testing.T) {
	p := newTestProtagonist()

	ApplyUpdate(p, &llm.ProtagonistUpdate{Health: intPtr(-10), Energy: intPtr(250)})

	assert.Equal(t, 0, p.Health)
	assert.Equal(t, 100, p.Energy)
}

func TestApplyUpdateLocationOverwrite(t *testing.T) {
	p := newTestProtagonist()

	ApplyUpdate(p, &llm.ProtagonistUpdate{Location: strPtr("the spire")})
	assert.Equal(t, "the spire", p.CurrentLocation)

	ApplyUpdate(p, &llm.ProtagonistUpdate{Location: strPtr("")})
	assert.Equal(t, "the spire", p.CurrentLocation, "empty location is ignored")
}

func TestApplyUpdateAddThenRemove(t *testing.T) {
	p := newTestProtagonist()

	// An item both added and removed in the same delta nets out removed.
	ApplyUpdate(p, &llm.ProtagonistUpdate{
		AddInventory:    []string{"key", "map"},
		RemoveInventory: []string{"key", "rope"},
	})

	assert.ElementsMatch(t, []string{"lantern", "map"}, []string(p.Inventory))
}

func TestApplyUpdateTraitsDeduplicate(t *testing.T) {
	p := newTestProtagonist()

	ApplyUpdate(p, &llm.ProtagonistUpdate{AddTraits: []string{"wary", "driven"}})

	assert.Equal(t, models.StringList{"wary", "driven"}, p.CurrentTraits)
}

func TestApplyUpdateScarsAppendOnly(t *testing.T) {
	p := newTestProtagonist()

	ApplyUpdate(p, &llm.ProtagonistUpdate{AddScars: []string{"broken rib", "burned left hand"}})

	assert.Equal(t, models.StringList{"burned left hand", "broken rib"}, p.Scars)
}

func TestApplyUpdateNilSafe(t *testing.T) {
	p := newTestProtagonist()
	before := *p

	ApplyUpdate(p, nil)
	ApplyUpdate(nil, &llm.ProtagonistUpdate{Health: intPtr(1)})

	assert.Equal(t, before.Health, p.Health)
	assert.Equal(t, before.Inventory, p.Inventory)
}
