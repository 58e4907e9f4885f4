package worldtest

import (
	"testing"

	"nearbysmelt/internal/protocol"
)

func TestStationProximity_SmeltsFurnaceInView(t *testing.T) {
	h := NewHarness(t, testConfig(map[string]int{"IRON_ORE": 1, "COAL": 1}), "bot")
	h.Place(furnacePos, "")
	h.StepNoop()

	h.Step(facing(), protocol.SmeltNearby{Param: "iron_ingot"})

	inv := h.Inventory(h.DefaultAgentID)
	if inv["IRON_INGOT"] != 1 || inv["IRON_ORE"] != 0 || inv["COAL"] != 0 {
		t.Fatalf("inventory=%v", inv)
	}
	if got := h.LastOutcome(); got != protocol.OutcomeAccepted {
		t.Fatalf("outcome=%q", got)
	}
}

func TestStationProximity_RejectsUnseenFurnace(t *testing.T) {
	cases := []struct {
		name string
		pose protocol.AgentPose
	}{
		{"behind", facingAway()},
		{"out_of_range", protocol.AgentPose{X: 0.5, Y: 0, Z: -9.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHarness(t, testConfig(map[string]int{"IRON_ORE": 1, "COAL": 1}), "bot")
			h.Place(furnacePos, "")
			h.StepNoop()

			h.Step(tc.pose, protocol.SmeltNearby{Param: "iron_ingot"})

			inv := h.Inventory(h.DefaultAgentID)
			if inv["IRON_INGOT"] != 0 || inv["IRON_ORE"] != 1 {
				t.Fatalf("inventory=%v", inv)
			}
			if got := h.LastOutcome(); got != protocol.OutcomeNotVisible {
				t.Fatalf("outcome=%q", got)
			}
		})
	}
}

func TestStationProximity_PlacementAppliesAtTickStart(t *testing.T) {
	h := NewHarness(t, testConfig(map[string]int{"IRON_ORE": 1, "COAL": 1}), "bot")
	h.Place(furnacePos, "")
	// The pending add lands before the tick handles actions.
	h.Step(facing(), protocol.SmeltNearby{Param: "iron_ingot"})
	if got := h.LastOutcome(); got != protocol.OutcomeAccepted {
		t.Fatalf("outcome=%q", got)
	}

	h = NewHarness(t, testConfig(map[string]int{"IRON_ORE": 1, "COAL": 1}), "bot")
	h.Step(facing(), protocol.SmeltNearby{Param: "iron_ingot"})
	if got := h.LastOutcome(); got != protocol.OutcomeNotVisible {
		t.Fatalf("outcome=%q", got)
	}
}

func TestStationProximity_MissingFuel(t *testing.T) {
	h := NewHarness(t, testConfig(map[string]int{"IRON_ORE": 1}), "bot")
	h.Place(furnacePos, "")
	h.StepNoop()

	h.Step(facing(), protocol.SmeltNearby{Param: "iron_ingot"})

	if got := h.LastOutcome(); got != protocol.OutcomeNoRecipe {
		t.Fatalf("outcome=%q", got)
	}
	if inv := h.Inventory(h.DefaultAgentID); inv["IRON_ORE"] != 1 {
		t.Fatalf("inventory=%v", inv)
	}
}
