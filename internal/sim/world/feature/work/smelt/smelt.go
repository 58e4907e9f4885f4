// Package smelt resolves furnace recipes for a requested output and applies
// them to an agent's inventory.
package smelt

import (
	"fmt"
	"sort"
	"strings"

	"nearbysmelt/internal/sim/catalogs"
	"nearbysmelt/internal/sim/world/kernel/model"
)

// BuildSmeltByInput indexes furnace recipes by their primary (first) input.
func BuildSmeltByInput(recipes map[string]catalogs.RecipeDef) (map[string]catalogs.RecipeDef, error) {
	out := map[string]catalogs.RecipeDef{}
	ids := make([]string, 0, len(recipes))
	for id := range recipes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := recipes[id]
		if r.Station != catalogs.StationFurnace || len(r.Inputs) == 0 {
			continue
		}
		primary := r.Inputs[0].Item
		if prev, ok := out[primary]; ok {
			return nil, fmt.Errorf("duplicate furnace primary input %s: %s and %s", primary, prev.RecipeID, r.RecipeID)
		}
		out[primary] = r
	}
	return out, nil
}

// Resolver answers smelting requests from a recipe catalog.
type Resolver struct {
	byInput map[string]catalogs.RecipeDef
	// Primary inputs in sorted order, so lookups by output are deterministic.
	order []string
}

func NewResolver(recipes catalogs.RecipeCatalog) (*Resolver, error) {
	byInput, err := BuildSmeltByInput(recipes.ByID)
	if err != nil {
		return nil, err
	}
	r := &Resolver{byInput: byInput}
	for in := range byInput {
		r.order = append(r.order, in)
	}
	sort.Strings(r.order)
	return r, nil
}

// ResolveInputFor returns the primary input the agent must smelt to obtain
// output. Matching on the output name ignores case. Only recipes whose
// inputs are all held qualify.
func (r *Resolver) ResolveInputFor(output string, inv model.Inventory) (model.ItemStack, bool) {
	output = strings.TrimSpace(output)
	if output == "" {
		return model.ItemStack{}, false
	}
	for _, in := range r.order {
		rec := r.byInput[in]
		if !producesItem(rec, output) || !hasInputs(inv, rec) {
			continue
		}
		return model.ItemStack{Item: rec.Inputs[0].Item, Count: rec.Inputs[0].Count}, true
	}
	return model.ItemStack{}, false
}

// ApplySmelting consumes the recipe keyed by input and adds its outputs.
// Secondary inputs (fuel) are consumed with the primary one. It reports
// false and leaves inv untouched when anything is missing.
func (r *Resolver) ApplySmelting(inv model.Inventory, input model.ItemStack) bool {
	rec, ok := r.byInput[input.Item]
	if !ok || !hasInputs(inv, rec) {
		return false
	}
	for _, ic := range rec.Inputs {
		inv.Take(ic.Item, ic.Count)
	}
	for _, ic := range rec.Outputs {
		inv.Add(ic.Item, ic.Count)
	}
	return true
}

func producesItem(rec catalogs.RecipeDef, item string) bool {
	for _, o := range rec.Outputs {
		if strings.EqualFold(o.Item, item) {
			return true
		}
	}
	return false
}

func hasInputs(inv model.Inventory, rec catalogs.RecipeDef) bool {
	need := map[string]int{}
	for _, ic := range rec.Inputs {
		need[ic.Item] += ic.Count
	}
	for item, n := range need {
		if !inv.Has(item, n) {
			return false
		}
	}
	return true
}
