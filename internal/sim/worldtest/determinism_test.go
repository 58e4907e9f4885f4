package worldtest

import (
	"reflect"
	"testing"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/world/kernel/model"
)

// script replays the same inputs against a fresh harness.
func script(t *testing.T) *Harness {
	t.Helper()
	h := NewHarness(t, testConfig(map[string]int{"IRON_ORE": 3, "SAND": 1, "COAL": 3, "LOG": 1}), "a")
	b := h.Join("b")

	h.Place(furnacePos, "")
	h.Place(model.Vec3i{X: 0, Y: 1, Z: -2}, b)
	h.StepNoop()

	h.Step(facing(), protocol.SmeltNearby{Param: "iron_ingot"})
	h.StepFor(b, facingAway(), protocol.SmeltNearby{Param: "glass"})
	h.Step(protocol.SmeltNearby{Param: "charcoal"}, protocol.SmeltNearby{Param: "gold_ingot"})

	h.Remove(furnacePos, h.DefaultAgentID)
	h.StepNoop()
	h.Step(protocol.SmeltNearby{Param: "iron_ingot"})
	h.StepFor(b, protocol.SmeltNearby{Param: "iron_ingot"})
	return h
}

func TestDeterminism_SameInputsSameState(t *testing.T) {
	h1 := script(t)
	h2 := script(t)

	if got, want := h2.W.DebugFurnaces(), h1.W.DebugFurnaces(); !sameVecs(got, want) {
		t.Fatalf("registry mismatch: %v vs %v", got, want)
	}
	if got, want := h2.W.DebugAgents(), h1.W.DebugAgents(); !reflect.DeepEqual(got, want) {
		t.Fatalf("agents mismatch:\n%+v\n%+v", got, want)
	}
	if got, want := h2.Audits(), h1.Audits(); !reflect.DeepEqual(got, want) {
		t.Fatalf("audit mismatch:\n%+v\n%+v", got, want)
	}

	// Sanity: the script exercises both outcomes on both furnaces.
	outcomes := map[string]int{}
	for _, e := range h1.Audits() {
		outcomes[e.Outcome]++
	}
	if outcomes[protocol.OutcomeAccepted] == 0 || outcomes[protocol.OutcomeNoRecipe] == 0 {
		t.Fatalf("outcomes=%v", outcomes)
	}
}
