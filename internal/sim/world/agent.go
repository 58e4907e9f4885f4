package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/visibility"
	"nearbysmelt/internal/sim/world/kernel/model"
)

type Agent struct {
	ID   string
	Name string

	Pose     visibility.Pose
	Viewport visibility.Viewport

	Inventory model.Inventory

	smeltLimiter *rate.Limiter
}

// Observer derives the agent's view from its live pose and viewport.
func (a *Agent) Observer(eyeHeight float64) visibility.Observer {
	return visibility.ObserverFor(a.Pose, a.Viewport, eyeHeight)
}

func (w *World) newAgent(name string, vp visibility.Viewport) *Agent {
	n := w.nextAgentNum.Add(1)
	if name == "" {
		name = "agent"
	}
	if !vp.Valid() {
		vp = w.cfg.DefaultViewport
	}
	a := &Agent{
		ID:           fmt.Sprintf("A%d", n),
		Name:         name,
		Viewport:     vp,
		Inventory:    model.Inventory{},
		smeltLimiter: rate.NewLimiter(w.cfg.SmeltRate, w.cfg.SmeltBurst),
	}
	for item, c := range w.cfg.StarterItems {
		a.Inventory.Add(item, c)
	}
	return a
}

func (w *World) handleJoin(tick uint64, req JoinRequest) {
	a := w.newAgent(req.Name, req.Viewport)
	w.agents[a.ID] = a

	resp := JoinResponse{AgentID: a.ID, Tick: tick}
	if req.Out != nil {
		c := &clientState{Out: req.Out, Drop: req.Drop}
		w.clients[a.ID] = c
		w.sendTo(a.ID, c, protocol.Welcome{AgentID: a.ID, Tick: int64(tick)})
		// Bring the new mirror up to date. Adds are idempotent, so a
		// reconnecting client converges whatever it already held.
		for _, p := range w.furnaces.Snapshot() {
			w.sendTo(a.ID, c, protocol.LandmarkUpdate{Pos: p.ToArray(), IsAdd: true})
		}
	}
	w.log.Infow("agent joined", "tick", tick, "agent_id", a.ID, "name", a.Name, "furnaces", w.furnaces.Len())

	if req.Resp != nil {
		select {
		case req.Resp <- resp:
		default:
		}
	}
}

func (w *World) handleLeave(agentID string) {
	if _, ok := w.agents[agentID]; !ok {
		return
	}
	delete(w.clients, agentID)
	delete(w.agents, agentID)
	w.log.Infow("agent left", "agent_id", agentID)
}

func (w *World) handleAction(tick uint64, env ActionEnvelope) {
	a := w.agents[env.AgentID]
	if a == nil {
		return
	}
	switch m := env.Msg.(type) {
	case protocol.AgentPose:
		a.Pose = visibility.Pose{
			Pos:   mgl64.Vec3{m.X, m.Y, m.Z},
			Yaw:   float64(m.Yaw),
			Pitch: float64(m.Pitch),
		}
	case protocol.ViewportUpdate:
		vp := ViewportFromWire(m.Viewport)
		if vp.Valid() {
			a.Viewport = vp
		}
	case protocol.SmeltNearby:
		w.handleSmeltNearby(tick, a, m)
	default:
		w.log.Debugw("ignored action", "agent_id", a.ID, "kind", env.Msg.Kind().String())
	}
}

// ViewportFromWire converts a HELLO or VIEWPORT_UPDATE viewport.
func ViewportFromWire(v protocol.Viewport) visibility.Viewport {
	return visibility.Viewport{Width: v.Width, Height: v.Height, FOV: float64(v.FOV)}
}
