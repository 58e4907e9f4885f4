package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"nearbysmelt/internal/protocol"
)

func TestSchemas_ValidateObs(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "obs.schema.json"))
	if err != nil {
		t.Fatalf("compile obs.schema.json: %v", err)
	}

	b, err := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		AgentID:         "A1",
		Pos:             [3]float64{0.5, 64, 0.5},
		Yaw:             180,
		NearbyFurnace:   true,
		KnownFurnaces:   1,
	}.JSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var missing any
	_ = json.Unmarshal([]byte(`{"type":"OBS","protocol_version":"1.0","tick":0,"agent_id":"A1"}`), &missing)
	if err := s.Validate(missing); err == nil {
		t.Fatalf("expected OBS without nearby_furnace to fail validation")
	}
}
