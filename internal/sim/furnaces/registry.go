// Package furnaces holds the furnace position registry. The server owns the
// authoritative copy; every client keeps a mirror rebuilt from replication
// updates.
package furnaces

import "nearbysmelt/internal/sim/world/kernel/model"

// Registry is an ordered set of furnace positions.
// It is not safe for concurrent use; confine it to its owner's loop.
type Registry struct {
	positions []model.Vec3i
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add inserts pos at the end. An existing equal entry is removed first, so
// repeated adds leave exactly one occurrence.
func (r *Registry) Add(pos model.Vec3i) {
	r.Remove(pos)
	r.positions = append(r.positions, pos)
}

// Remove deletes every entry equal to pos. Absent positions are a no-op.
func (r *Registry) Remove(pos model.Vec3i) {
	for i := len(r.positions) - 1; i >= 0; i-- {
		if r.positions[i] == pos {
			r.positions = append(r.positions[:i], r.positions[i+1:]...)
		}
	}
}

// Apply replays one replication update: remove, then re-add when isAdd.
func (r *Registry) Apply(pos model.Vec3i, isAdd bool) {
	r.Remove(pos)
	if isAdd {
		r.positions = append(r.positions, pos)
	}
}

func (r *Registry) Contains(pos model.Vec3i) bool {
	for _, p := range r.positions {
		if p == pos {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int { return len(r.positions) }

// Snapshot returns a copy of the current positions in insertion order.
func (r *Registry) Snapshot() []model.Vec3i {
	out := make([]model.Vec3i, len(r.positions))
	copy(out, r.positions)
	return out
}
