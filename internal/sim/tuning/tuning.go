package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"nearbysmelt/internal/protocol"
)

type Tuning struct {
	// Must match the wire version this binary speaks.
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int     `yaml:"tick_rate_hz"`
	EyeHeight  float64 `yaml:"eye_height"`

	// Used until a client reports its own viewport.
	DefaultViewport Viewport `yaml:"default_viewport"`

	RateLimits RateLimits `yaml:"rate_limits"`

	// Per-connection outbound frame queue. A client that falls this far
	// behind is disconnected.
	OutQueue int `yaml:"out_queue"`

	StarterItems map[string]int `yaml:"starter_items"`

	WorldGen WorldGen `yaml:"worldgen"`
}

type Viewport struct {
	Width  int32   `yaml:"width"`
	Height int32   `yaml:"height"`
	FOV    float64 `yaml:"fov"`
}

type RateLimits struct {
	SmeltPerSecond float64 `yaml:"smelt_per_second"`
	SmeltBurst     int     `yaml:"smelt_burst"`
}

type WorldGen struct {
	// Furnaces placed at startup. They are not caused by an agent.
	Furnaces [][3]int32 `yaml:"furnaces"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: protocol.Version,
		TickRateHz:      20,
		EyeHeight:       1.6,
		DefaultViewport: Viewport{Width: 854, Height: 480, FOV: 70},
		RateLimits: RateLimits{
			SmeltPerSecond: 5,
			SmeltBurst:     5,
		},
		OutQueue: 256,
	}
}

// Load reads path over Defaults, so omitted keys keep their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.ProtocolVersion != protocol.Version {
		errs = append(errs, fmt.Errorf("protocol_version %q, this build speaks %q", t.ProtocolVersion, protocol.Version))
	}
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz))
	}
	if t.EyeHeight < 0 {
		errs = append(errs, fmt.Errorf("eye_height must be >= 0"))
	}
	vp := t.DefaultViewport
	if vp.Width <= 0 || vp.Height <= 0 || vp.FOV <= 0 || vp.FOV >= 180 {
		errs = append(errs, fmt.Errorf("default_viewport invalid: %+v", vp))
	}
	if t.RateLimits.SmeltPerSecond <= 0 || t.RateLimits.SmeltBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limits.smelt_* must be > 0"))
	}
	if t.OutQueue <= 0 {
		errs = append(errs, fmt.Errorf("out_queue must be > 0"))
	}
	for item, n := range t.StarterItems {
		if item == "" || n <= 0 {
			errs = append(errs, fmt.Errorf("starter_items: bad entry %q=%d", item, n))
		}
	}
	return errors.Join(errs...)
}
