// Package client is the agent side of a smelting session. It keeps a mirror
// of the server's furnace registry, rebuilt only from replicated updates, and
// turns textual commands into smelt requests.
package client

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/furnaces"
	"nearbysmelt/internal/sim/visibility"
	"nearbysmelt/internal/sim/world/kernel/model"
)

const (
	VerbSmeltNearby = "smeltNearby"
	// ParamNone is the sentinel meaning "no smelt this step".
	ParamNone = "none"
)

// Sender delivers a frame to the server. It must be safe for concurrent use.
type Sender interface {
	Send(m protocol.Message) error
}

type Config struct {
	Name      string
	EyeHeight float64
	Viewport  visibility.Viewport

	// Allow, when non-empty, lists the only verbs this client handles.
	// Deny lists verbs it never handles. Matching is case-insensitive.
	Allow []string
	Deny  []string
}

type Client struct {
	cfg    Config
	sender Sender
	log    *zap.SugaredLogger

	allow map[string]struct{}
	deny  map[string]struct{}

	// Loop-confined state.
	agentID  string
	tick     uint64
	pose     visibility.Pose
	viewport visibility.Viewport
	mirror   *furnaces.Registry

	inbound chan protocol.Message
	queries chan func()
}

func New(cfg Config, sender Sender, logger *zap.SugaredLogger) *Client {
	if cfg.EyeHeight == 0 {
		cfg.EyeHeight = visibility.DefaultEyeHeight
	}
	if !cfg.Viewport.Valid() {
		cfg.Viewport = visibility.DefaultViewport()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		cfg:      cfg,
		sender:   sender,
		log:      logger.With("component", "client", "name", cfg.Name),
		allow:    verbSet(cfg.Allow),
		deny:     verbSet(cfg.Deny),
		viewport: cfg.Viewport,
		mirror:   furnaces.NewRegistry(),
		inbound:  make(chan protocol.Message, 1024),
		queries:  make(chan func()),
	}
}

func verbSet(vs []string) map[string]struct{} {
	if len(vs) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		m[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return m
}

// Hello is the opening frame for a client with this config.
func (cfg Config) Hello() protocol.Hello {
	vp := cfg.Viewport
	if !vp.Valid() {
		vp = visibility.DefaultViewport()
	}
	return protocol.Hello{
		AgentName: cfg.Name,
		Viewport:  protocol.Viewport{Width: vp.Width, Height: vp.Height, FOV: float32(vp.FOV)},
	}
}

// Inbound receives decoded server frames, normally from the transport reader.
func (c *Client) Inbound() chan<- protocol.Message { return c.inbound }

// IsAllowed reports whether verb passes the allow and deny lists.
func (c *Client) IsAllowed(verb string) bool {
	v := strings.ToLower(verb)
	if _, ok := c.deny[v]; ok {
		return false
	}
	if c.allow == nil {
		return true
	}
	_, ok := c.allow[v]
	return ok
}

// Execute handles one command. It returns true only when the command was
// recognized, allowed and sent; the server's decision is never reported back.
// Safe to call from any goroutine.
func (c *Client) Execute(verb, param string) bool {
	if !c.IsAllowed(verb) {
		return false
	}
	if !strings.EqualFold(verb, VerbSmeltNearby) || strings.EqualFold(param, ParamNone) {
		return false
	}
	if c.sender == nil {
		return false
	}
	if err := c.sender.Send(protocol.SmeltNearby{Param: param}); err != nil {
		c.log.Warnw("send smelt request failed", "param", param, "err", err)
		return false
	}
	return true
}

// ExecuteLine splits "verb param" on the first run of whitespace.
func (c *Client) ExecuteLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	verb, param := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		verb, param = line[:i], strings.TrimSpace(line[i:])
	}
	return c.Execute(verb, param)
}

// Handle applies one server frame to the client state. Run calls it for
// every delivered frame; it must not be called concurrently with Run.
func (c *Client) Handle(m protocol.Message) error {
	switch msg := m.(type) {
	case protocol.Welcome:
		c.agentID = msg.AgentID
		c.tick = uint64(msg.Tick)
		c.log.Infow("welcome", "agent_id", msg.AgentID, "tick", msg.Tick)
	case protocol.LandmarkUpdate:
		c.mirror.Apply(model.Vec3iFromArray(msg.Pos), msg.IsAdd)
	default:
		return fmt.Errorf("%w: unexpected %s from server", protocol.ErrMalformed, m.Kind())
	}
	return nil
}

// Observation evaluates the client's own view against its mirror. It must
// not be called concurrently with Run; use Observe instead.
func (c *Client) Observation() protocol.ObsMsg {
	obs := visibility.ObserverFor(c.pose, c.viewport, c.cfg.EyeHeight)
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            c.tick,
		AgentID:         c.agentID,
		Pos:             [3]float64{c.pose.Pos.X(), c.pose.Pos.Y(), c.pose.Pos.Z()},
		Yaw:             c.pose.Yaw,
		Pitch:           c.pose.Pitch,
		NearbyFurnace:   visibility.IsVisible(obs, c.mirror.Snapshot()),
		KnownFurnaces:   c.mirror.Len(),
	}
}

// Known returns a copy of the mirror. Like Observation, it must not be
// called concurrently with Run.
func (c *Client) Known() []model.Vec3i { return c.mirror.Snapshot() }

// Run owns the mirror until ctx is done or the server sends a frame the
// client cannot accept.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-c.inbound:
			if err := c.Handle(m); err != nil {
				return err
			}
		case fn := <-c.queries:
			fn()
		}
	}
}

func (c *Client) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.queries <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observe is the goroutine-safe form of Observation; it requires Run.
func (c *Client) Observe(ctx context.Context) (protocol.ObsMsg, error) {
	var out protocol.ObsMsg
	err := c.do(ctx, func() { out = c.Observation() })
	return out, err
}

// SetPose records the agent's pose and reports it to the server. It requires Run.
func (c *Client) SetPose(ctx context.Context, p visibility.Pose) error {
	if !p.Valid() {
		return fmt.Errorf("invalid pose pos=%v yaw %.1f pitch %.1f", p.Pos, p.Yaw, p.Pitch)
	}
	if err := c.do(ctx, func() { c.pose = p }); err != nil {
		return err
	}
	if c.sender == nil {
		return nil
	}
	return c.sender.Send(protocol.AgentPose{
		X: p.Pos.X(), Y: p.Pos.Y(), Z: p.Pos.Z(),
		Yaw: float32(p.Yaw), Pitch: float32(p.Pitch),
	})
}

// SetViewport records a resized window or changed FOV and reports it. It
// requires Run.
func (c *Client) SetViewport(ctx context.Context, vp visibility.Viewport) error {
	if !vp.Valid() {
		return fmt.Errorf("invalid viewport %dx%d fov %.1f", vp.Width, vp.Height, vp.FOV)
	}
	if err := c.do(ctx, func() { c.viewport = vp }); err != nil {
		return err
	}
	if c.sender == nil {
		return nil
	}
	return c.sender.Send(protocol.ViewportUpdate{Viewport: protocol.Viewport{
		Width: vp.Width, Height: vp.Height, FOV: float32(vp.FOV),
	}})
}

// Furnaces returns a copy of the mirror. It requires Run.
func (c *Client) Furnaces(ctx context.Context) ([]model.Vec3i, error) {
	var out []model.Vec3i
	err := c.do(ctx, func() { out = c.mirror.Snapshot() })
	return out, err
}
