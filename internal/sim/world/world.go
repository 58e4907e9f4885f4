package world

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/blockevents"
	"nearbysmelt/internal/sim/furnaces"
	"nearbysmelt/internal/sim/tickqueue"
	"nearbysmelt/internal/sim/visibility"
	"nearbysmelt/internal/sim/world/kernel/model"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	EyeHeight  float64

	DefaultViewport visibility.Viewport

	// Per-agent smelt request budget.
	SmeltRate  rate.Limit
	SmeltBurst int

	StarterItems map[string]int

	// Clock defaults to time.Now; tests pin it.
	Clock func() time.Time
}

// Smelter is the crafting collaborator. Both calls are opaque to the world.
type Smelter interface {
	ResolveInputFor(output string, inv model.Inventory) (model.ItemStack, bool)
	ApplySmelting(inv model.Inventory, input model.ItemStack) bool
}

// EventSource delivers furnace placement and removal.
type EventSource interface {
	Register(l blockevents.Listener) (unregister func())
}

type JoinRequest struct {
	Name     string
	Viewport visibility.Viewport
	// Out receives encoded frames for this connection, starting with WELCOME.
	Out chan []byte
	// Drop closes the connection. It is called from the world goroutine and
	// must not block.
	Drop func(reason string)
	Resp chan JoinResponse
}

type JoinResponse struct {
	AgentID string
	Tick    uint64
}

type ActionEnvelope struct {
	AgentID string
	Msg     protocol.Message
}

type landmarkReq struct {
	ev    blockevents.Event
	isAdd bool
}

// World is the single-threaded authoritative session: it owns the furnace
// registry, the agents and the client connections. All of that state must be
// accessed only from the world loop goroutine.
type World struct {
	cfg     WorldConfig
	smelter Smelter
	log     *zap.SugaredLogger

	tick atomic.Uint64

	furnaces *furnaces.Registry
	deferred tickqueue.Queue

	agents  map[string]*Agent
	clients map[string]*clientState

	inbox     chan ActionEnvelope
	join      chan JoinRequest
	leave     chan string
	landmarks chan landmarkReq
	queries   chan func()
	stop      chan struct{}
	stopOnce  atomic.Bool

	unregister func()

	nextAgentNum atomic.Uint64

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	auditLoggers       []AuditLogger
	replicationLoggers []ReplicationLogger
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type ReplicationLogger interface {
	WriteReplication(entry ReplicationEntry) error
}

// AuditEntry records the outcome of one smelt request.
type AuditEntry struct {
	Tick    uint64     `json:"tick"`
	Actor   string     `json:"actor"`
	Action  string     `json:"action"`
	Param   string     `json:"param"`
	Outcome string     `json:"outcome"`
	Input   string     `json:"input,omitempty"`
	Pos     [3]float64 `json:"pos"`
	Yaw     float64    `json:"yaw"`
	Pitch   float64    `json:"pitch"`
}

// ReplicationEntry records one furnace update fanned out to clients.
type ReplicationEntry struct {
	Tick    uint64   `json:"tick"`
	Pos     [3]int32 `json:"pos"`
	IsAdd   bool     `json:"is_add"`
	Actor   string   `json:"actor"`
	Clients int      `json:"clients"`
}

type clientState struct {
	Out  chan []byte
	Drop func(reason string)
}

func New(cfg WorldConfig, smelter Smelter, logger *zap.SugaredLogger) *World {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.EyeHeight == 0 {
		cfg.EyeHeight = visibility.DefaultEyeHeight
	}
	if !cfg.DefaultViewport.Valid() {
		cfg.DefaultViewport = visibility.DefaultViewport()
	}
	if cfg.SmeltRate <= 0 {
		cfg.SmeltRate = rate.Inf
	}
	if cfg.SmeltBurst <= 0 {
		cfg.SmeltBurst = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &World{
		cfg:       cfg,
		smelter:   smelter,
		log:       logger.With("component", "world", "world_id", cfg.ID),
		furnaces:  furnaces.NewRegistry(),
		agents:    map[string]*Agent{},
		clients:   map[string]*clientState{},
		inbox:     make(chan ActionEnvelope, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan string, 64),
		landmarks: make(chan landmarkReq, 1024),
		queries:   make(chan func()),
		stop:      make(chan struct{}),
	}
}

func (w *World) SetAuditLoggers(l ...AuditLogger)             { w.auditLoggers = l }
func (w *World) SetReplicationLoggers(l ...ReplicationLogger) { w.replicationLoggers = l }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Install registers the world as a furnace event listener for this session.
func (w *World) Install(src EventSource) {
	w.Deinstall()
	w.unregister = src.Register(w)
}

// Deinstall removes the registration made by Install.
func (w *World) Deinstall() {
	if w.unregister != nil {
		w.unregister()
		w.unregister = nil
	}
}
