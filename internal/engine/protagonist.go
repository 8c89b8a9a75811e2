package engine

import (
	"once/server/internal/llm"
	"once/server/internal/models"
)

// ApplyUpdate mutates the protagonist in place according to a generated
// delta. Scalar fields overwrite only when present. List fields apply
// additions before removals, so an item that appears in both lists ends
// up removed. Scars only ever accumulate.
func ApplyUpdate(p *models.Protagonist, u *llm.ProtagonistUpdate) {
	if p == nil || u == nil {
		return
	}

	if u.Health != nil {
		p.Health = clamp(*u.Health, 0, 100)
	}
	if u.Energy != nil {
		p.Energy = clamp(*u.Energy, 0, 100)
	}
	if u.Location != nil && *u.Location != "" {
		p.CurrentLocation = *u.Location
	}

	p.CurrentTraits = applyListDelta(p.CurrentTraits, u.AddTraits, u.RemoveTraits)
	p.Inventory = applyListDelta(p.Inventory, u.AddInventory, u.RemoveInventory)

	for _, scar := range u.AddScars {
		if scar != "" && !p.Scars.Contains(scar) {
			p.Scars = append(p.Scars, scar)
		}
	}
}

func applyListDelta(list models.StringList, add, remove []string) models.StringList {
	for _, item := range add {
		if item != "" && !list.Contains(item) {
			list = append(list, item)
		}
	}
	if len(remove) == 0 {
		return list
	}

	removed := make(map[string]struct{}, len(remove))
	for _, item := range remove {
		removed[item] = struct{}{}
	}
	kept := list[:0]
	for _, item := range list {
		if _, ok := removed[item]; !ok {
			kept = append(kept, item)
		}
	}
	return kept
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
