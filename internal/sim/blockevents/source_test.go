package blockevents

import (
	"testing"

	"nearbysmelt/internal/sim/world/kernel/model"
)

type recorder struct {
	added   []Event
	removed []Event
}

func (r *recorder) OnLandmarkAdded(ev Event)   { r.added = append(r.added, ev) }
func (r *recorder) OnLandmarkRemoved(ev Event) { r.removed = append(r.removed, ev) }

func TestSource_RegisterUnregister(t *testing.T) {
	src := NewSource()
	rec := &recorder{}
	unregister := src.Register(rec)

	src.Placed(Event{Pos: model.Vec3i{X: 1}, Actor: "A1"})
	src.Destroyed(Event{Pos: model.Vec3i{X: 1}})
	if len(rec.added) != 1 || len(rec.removed) != 1 {
		t.Fatalf("added=%d removed=%d", len(rec.added), len(rec.removed))
	}
	if !rec.added[0].AgentCaused() || rec.removed[0].AgentCaused() {
		t.Fatalf("unexpected actor attribution: %+v %+v", rec.added[0], rec.removed[0])
	}

	unregister()
	unregister()
	if src.Listeners() != 0 {
		t.Fatalf("listeners=%d want=0", src.Listeners())
	}
	src.Placed(Event{Pos: model.Vec3i{X: 2}})
	if len(rec.added) != 1 {
		t.Fatalf("unregistered listener still notified")
	}
}
