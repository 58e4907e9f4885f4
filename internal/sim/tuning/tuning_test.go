package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nearbysmelt/internal/protocol"
)

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := `
tick_rate_hz: 10
default_viewport: {width: 1920, height: 1080, fov: 90}
starter_items:
  IRON_ORE: 3
worldgen:
  furnaces:
    - [0, 64, 0]
    - [10, 5, -3]
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 10 || tu.DefaultViewport.Width != 1920 || tu.DefaultViewport.FOV != 90 {
		t.Fatalf("unexpected tuning: %+v", tu)
	}
	if tu.EyeHeight != 1.6 || tu.OutQueue != 256 {
		t.Fatalf("defaults lost: eye=%v out=%d", tu.EyeHeight, tu.OutQueue)
	}
	if len(tu.WorldGen.Furnaces) != 2 || tu.WorldGen.Furnaces[1] != [3]int32{10, 5, -3} {
		t.Fatalf("worldgen furnaces: %v", tu.WorldGen.Furnaces)
	}
	if tu.StarterItems["IRON_ORE"] != 3 {
		t.Fatalf("starter items: %v", tu.StarterItems)
	}
}

func TestLoad_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoad_ProtocolVersionMustMatch(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("protocol_version: \"2.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "protocol_version") {
		t.Fatalf("expected protocol_version error, got %v", err)
	}

	tu := Defaults()
	tu.ProtocolVersion = ""
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected empty protocol_version to fail")
	}
	if Defaults().ProtocolVersion != protocol.Version {
		t.Fatalf("default protocol_version=%q", Defaults().ProtocolVersion)
	}
}

func TestLoad_RepoTuning(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tu.WorldGen.Furnaces) == 0 {
		t.Fatalf("expected worldgen furnaces in repo tuning")
	}
	if tu.StarterItems["COAL"] <= 0 {
		t.Fatalf("expected starter fuel, got %v", tu.StarterItems)
	}
}
