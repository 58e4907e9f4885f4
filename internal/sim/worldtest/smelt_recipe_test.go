package worldtest

import (
	"sort"
	"strings"
	"testing"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/catalogs"
)

func TestSmeltRecipes_EveryFurnaceRecipeViaNearbyFurnace(t *testing.T) {
	base := NewHarness(t, testConfig(nil), "catalog")
	var ids []string
	for id, rec := range base.Cats.Recipes.ByID {
		if rec.Station == catalogs.StationFurnace {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		t.Fatalf("no furnace recipes in configs")
	}

	for _, id := range ids {
		rec := base.Cats.Recipes.ByID[id]
		t.Run(id, func(t *testing.T) {
			starter := map[string]int{}
			for _, in := range rec.Inputs {
				starter[in.Item] += in.Count
			}
			h := NewHarness(t, testConfig(starter), "bot")
			h.Place(furnacePos, "")
			h.StepNoop()

			h.Step(facing(), protocol.SmeltNearby{Param: strings.ToLower(rec.Outputs[0].Item)})

			if got := h.LastOutcome(); got != protocol.OutcomeAccepted {
				t.Fatalf("outcome=%q", got)
			}
			inv := h.Inventory(h.DefaultAgentID)
			for _, out := range rec.Outputs {
				if inv[out.Item] != out.Count {
					t.Fatalf("%s=%d want %d (inv=%v)", out.Item, inv[out.Item], out.Count, inv)
				}
			}
			for _, in := range rec.Inputs {
				if inv[in.Item] != 0 {
					t.Fatalf("%s not consumed (inv=%v)", in.Item, inv)
				}
			}
		})
	}
}

func TestSmeltRecipes_HandRecipeNotSmeltable(t *testing.T) {
	h := NewHarness(t, testConfig(map[string]int{"LOG": 1}), "bot")
	h.Place(furnacePos, "")
	h.StepNoop()

	h.Step(facing(), protocol.SmeltNearby{Param: "plank"})

	if got := h.LastOutcome(); got != protocol.OutcomeNoRecipe {
		t.Fatalf("outcome=%q", got)
	}
	if inv := h.Inventory(h.DefaultAgentID); inv["LOG"] != 1 {
		t.Fatalf("inventory=%v", inv)
	}
}
