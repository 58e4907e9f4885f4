// Package protocol defines the binary frames exchanged between the smelting
// server and its clients, plus the JSON observation a client produces.
//
// Every frame is a one-byte kind followed by its payload. Integers and
// floats are big-endian, booleans are one byte, and strings are a varint
// byte length followed by UTF-8.
package protocol

const Version = "1.0"

// Kind is the leading discriminator byte of a frame.
type Kind byte

const (
	KindHello          Kind = 0
	KindWelcome        Kind = 1
	KindLandmarkUpdate Kind = 2
	KindSmeltNearby    Kind = 3
	KindAgentPose      Kind = 4
	KindViewportUpdate Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "HELLO"
	case KindWelcome:
		return "WELCOME"
	case KindLandmarkUpdate:
		return "LANDMARK_UPDATE"
	case KindSmeltNearby:
		return "SMELT_NEARBY"
	case KindAgentPose:
		return "AGENT_POSE"
	case KindViewportUpdate:
		return "VIEWPORT_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Message is any frame payload.
type Message interface {
	Kind() Kind
}

// Hello (client -> server) opens a session.
type Hello struct {
	AgentName string
	Viewport  Viewport
}

// Welcome (server -> client) assigns the agent id.
type Welcome struct {
	AgentID string
	Tick    int64
}

// LandmarkUpdate (server -> client) replicates one furnace registry change.
type LandmarkUpdate struct {
	Pos   [3]int32
	IsAdd bool
}

// SmeltNearby (client -> server) asks to smelt into the named output item.
type SmeltNearby struct {
	Param string
}

// AgentPose (client -> server) reports the agent's feet position and head
// rotation in degrees.
type AgentPose struct {
	X, Y, Z    float64
	Yaw, Pitch float32
}

// ViewportUpdate (client -> server) reports a resized window or a changed FOV.
type ViewportUpdate struct {
	Viewport Viewport
}

type Viewport struct {
	Width  int32
	Height int32
	FOV    float32
}

func (Hello) Kind() Kind          { return KindHello }
func (Welcome) Kind() Kind        { return KindWelcome }
func (LandmarkUpdate) Kind() Kind { return KindLandmarkUpdate }
func (SmeltNearby) Kind() Kind    { return KindSmeltNearby }
func (AgentPose) Kind() Kind      { return KindAgentPose }
func (ViewportUpdate) Kind() Kind { return KindViewportUpdate }
