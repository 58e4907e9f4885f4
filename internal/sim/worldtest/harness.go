package worldtest

import (
	"testing"

	"nearbysmelt/internal/client"
	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/blockevents"
	"nearbysmelt/internal/sim/catalogs"
	"nearbysmelt/internal/sim/world"
	"nearbysmelt/internal/sim/world/feature/work/smelt"
	"nearbysmelt/internal/sim/world/kernel/model"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Step()/StepFor() deliver client frames via StepOnce()
// - Per-agent Out channels are decoded into a client mirror
// - Place/Remove emit furnace events through a blockevents.Source
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World
	Src  *blockevents.Source

	DefaultAgentID string

	audits   *auditLog
	sessions map[string]*session
}

type session struct {
	AgentID string
	Out     chan []byte
	Client  *client.Client
}

type auditLog struct{ entries []world.AuditEntry }

func (a *auditLog) WriteAudit(e world.AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

func NewHarness(t *testing.T, cfg world.WorldConfig, agentName string) *Harness {
	t.Helper()

	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	resolver, err := smelt.NewResolver(cats.Recipes)
	if err != nil {
		t.Fatalf("smelt.NewResolver: %v", err)
	}
	w := world.New(cfg, resolver, nil)
	src := blockevents.NewSource()
	w.Install(src)
	t.Cleanup(w.Deinstall)

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		Src:      src,
		audits:   &auditLog{},
		sessions: map[string]*session{},
	}
	w.SetAuditLoggers(h.audits)
	h.DefaultAgentID = h.Join(agentName)
	return h
}

func (h *Harness) Join(agentName string) string {
	h.T.Helper()

	out := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{Name: agentName, Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.AgentID == "" {
		h.T.Fatalf("join returned empty agent id")
	}
	s := &session{
		AgentID: jr.AgentID,
		Out:     out,
		Client:  client.New(client.Config{Name: agentName}, nil, nil),
	}
	h.sessions[s.AgentID] = s
	h.drainAll()
	return s.AgentID
}

func (h *Harness) Step(msgs ...protocol.Message) {
	h.StepFor(h.DefaultAgentID, msgs...)
}

func (h *Harness) StepFor(agentID string, msgs ...protocol.Message) {
	h.T.Helper()
	envs := make([]world.ActionEnvelope, 0, len(msgs))
	for _, m := range msgs {
		envs = append(envs, world.ActionEnvelope{AgentID: agentID, Msg: m})
	}
	h.W.StepOnce(nil, nil, envs)
	h.drainAll()
}

func (h *Harness) StepNoop() {
	h.W.StepOnce(nil, nil, nil)
	h.drainAll()
}

// Place emits a furnace placement. Actor "" marks it as not agent-caused.
func (h *Harness) Place(pos model.Vec3i, actor string) {
	h.Src.Placed(blockevents.Event{Pos: pos, Actor: actor})
}

func (h *Harness) Remove(pos model.Vec3i, actor string) {
	h.Src.Destroyed(blockevents.Event{Pos: pos, Actor: actor})
}

// Mirror is the agent's client-side furnace registry.
func (h *Harness) Mirror(agentID string) []model.Vec3i {
	h.T.Helper()
	return h.session(agentID).Client.Known()
}

func (h *Harness) Inventory(agentID string) map[string]int {
	h.T.Helper()
	for _, a := range h.W.DebugAgents() {
		if a.ID == agentID {
			return a.Inventory
		}
	}
	h.T.Fatalf("unknown agent id: %q", agentID)
	return nil
}

func (h *Harness) Audits() []world.AuditEntry {
	return append([]world.AuditEntry(nil), h.audits.entries...)
}

func (h *Harness) LastOutcome() string {
	h.T.Helper()
	if len(h.audits.entries) == 0 {
		h.T.Fatalf("no audit entries")
	}
	return h.audits.entries[len(h.audits.entries)-1].Outcome
}

func (h *Harness) session(agentID string) *session {
	s := h.sessions[agentID]
	if s == nil {
		h.T.Fatalf("unknown agent id: %q", agentID)
	}
	return s
}

func (h *Harness) drainAll() {
	for _, s := range h.sessions {
		h.drain(s)
	}
}

func (h *Harness) drain(s *session) {
	h.T.Helper()
	for {
		select {
		case b := <-s.Out:
			m, err := protocol.Decode(b)
			if err != nil {
				h.T.Fatalf("decode frame for %s: %v", s.AgentID, err)
			}
			if err := s.Client.Handle(m); err != nil {
				h.T.Fatalf("client %s: %v", s.AgentID, err)
			}
		default:
			return
		}
	}
}
