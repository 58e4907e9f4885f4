package world

import (
	"context"
	"sort"

	"nearbysmelt/internal/sim/visibility"
	"nearbysmelt/internal/sim/world/kernel/model"
)

// AgentStatus is a read-only view of one agent for admin tooling.
type AgentStatus struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Pos           [3]float64     `json:"pos"`
	Yaw           float64        `json:"yaw"`
	Pitch         float64        `json:"pitch"`
	NearbyFurnace bool           `json:"nearby_furnace"`
	Inventory     map[string]int `json:"inventory"`
}

// Furnaces returns the authoritative registry, read on the world goroutine.
func (w *World) Furnaces(ctx context.Context) ([]model.Vec3i, error) {
	var out []model.Vec3i
	err := w.do(ctx, func() { out = w.furnaces.Snapshot() })
	return out, err
}

// Agents reports every joined agent, ordered by id.
func (w *World) Agents(ctx context.Context) ([]AgentStatus, error) {
	var out []AgentStatus
	err := w.do(ctx, func() { out = w.agentStatuses() })
	return out, err
}

func (w *World) agentStatuses() []AgentStatus {
	lms := w.furnaces.Snapshot()
	out := make([]AgentStatus, 0, len(w.agents))
	for _, a := range w.agents {
		inv := make(map[string]int, len(a.Inventory))
		for k, v := range a.Inventory {
			inv[k] = v
		}
		out = append(out, AgentStatus{
			ID:            a.ID,
			Name:          a.Name,
			Pos:           [3]float64(a.Pose.Pos),
			Yaw:           a.Pose.Yaw,
			Pitch:         a.Pose.Pitch,
			NearbyFurnace: visibility.IsVisible(a.Observer(w.cfg.EyeHeight), lms),
			Inventory:     inv,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DebugFurnaces returns the registry without going through the loop. It is
// for tests and tools that drive the world with StepOnce; it must not be
// called while Run is active.
func (w *World) DebugFurnaces() []model.Vec3i { return w.furnaces.Snapshot() }

// DebugAgents is the StepOnce counterpart of Agents.
func (w *World) DebugAgents() []AgentStatus { return w.agentStatuses() }
