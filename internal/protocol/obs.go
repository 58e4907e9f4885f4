package protocol

import "encoding/json"

const TypeObs = "OBS"

// ObsMsg is the per-tick observation a client reports for its own agent.
// NearbyFurnace is informational; the server decides independently.
type ObsMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	AgentID         string     `json:"agent_id"`
	Pos             [3]float64 `json:"pos"`
	Yaw             float64    `json:"yaw"`
	Pitch           float64    `json:"pitch"`
	NearbyFurnace   bool       `json:"nearby_furnace"`
	KnownFurnaces   int        `json:"known_furnaces"`
}

func (o ObsMsg) JSON() ([]byte, error) { return json.Marshal(o) }
