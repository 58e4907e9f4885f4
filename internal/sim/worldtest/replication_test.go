package worldtest

import (
	"testing"

	"nearbysmelt/internal/sim/world/kernel/model"
)

func TestReplication_AgentCausedEventsReachEveryMirror(t *testing.T) {
	h := NewHarness(t, testConfig(nil), "alpha")
	beta := h.Join("beta")

	p := model.Vec3i{X: 4, Y: 64, Z: -3}
	h.Place(p, h.DefaultAgentID)
	h.StepNoop()

	want := []model.Vec3i{p}
	for _, id := range []string{h.DefaultAgentID, beta} {
		if got := h.Mirror(id); !sameVecs(got, want) {
			t.Fatalf("mirror %s=%v want %v", id, got, want)
		}
	}
	if got := h.W.DebugFurnaces(); !sameVecs(got, want) {
		t.Fatalf("registry=%v", got)
	}

	h.Remove(p, beta)
	h.StepNoop()
	for _, id := range []string{h.DefaultAgentID, beta} {
		if got := h.Mirror(id); len(got) != 0 {
			t.Fatalf("mirror %s=%v after remove", id, got)
		}
	}
	if got := h.W.DebugFurnaces(); len(got) != 0 {
		t.Fatalf("registry=%v after remove", got)
	}
}

func TestReplication_NonAgentEventsReachOnlyLateJoiners(t *testing.T) {
	h := NewHarness(t, testConfig(nil), "early")

	p := model.Vec3i{X: 16, Y: 64, Z: -8}
	h.Place(p, "")
	h.StepNoop()
	if got := h.Mirror(h.DefaultAgentID); len(got) != 0 {
		t.Fatalf("world-generated furnace replicated live: %v", got)
	}

	late := h.Join("late")
	if got := h.Mirror(late); !sameVecs(got, []model.Vec3i{p}) {
		t.Fatalf("late mirror=%v", got)
	}
}

func TestReplication_MirrorsConvergeOverMixedSequence(t *testing.T) {
	h := NewHarness(t, testConfig(nil), "a")
	b := h.Join("b")

	seq := []struct {
		pos   model.Vec3i
		add   bool
		actor string
	}{
		{model.Vec3i{X: 1}, true, h.DefaultAgentID},
		{model.Vec3i{X: 2}, true, b},
		{model.Vec3i{X: 1}, true, b},
		{model.Vec3i{X: 3}, true, h.DefaultAgentID},
		{model.Vec3i{X: 2}, false, h.DefaultAgentID},
		{model.Vec3i{X: 9}, false, b},
	}
	for i, ev := range seq {
		if ev.add {
			h.Place(ev.pos, ev.actor)
		} else {
			h.Remove(ev.pos, ev.actor)
		}
		if i%2 == 1 {
			h.StepNoop()
		}
	}
	h.StepNoop()

	want := h.W.DebugFurnaces()
	if len(want) != 2 {
		t.Fatalf("registry=%v", want)
	}
	for _, id := range []string{h.DefaultAgentID, b} {
		if got := h.Mirror(id); !sameVecs(got, want) {
			t.Fatalf("mirror %s=%v registry=%v", id, got, want)
		}
	}
}
