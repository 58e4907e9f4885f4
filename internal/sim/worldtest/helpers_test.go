package worldtest

import (
	"time"

	"golang.org/x/time/rate"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/world"
	"nearbysmelt/internal/sim/world/kernel/model"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig(starter map[string]int) world.WorldConfig {
	return world.WorldConfig{
		ID:           "worldtest",
		TickRateHz:   20,
		SmeltRate:    rate.Inf,
		StarterItems: starter,
		Clock:        func() time.Time { return fixedNow },
	}
}

// furnacePos sits two blocks ahead of facing at eye level.
var furnacePos = model.Vec3i{X: 0, Y: 1, Z: 2}

func facing() protocol.AgentPose {
	return protocol.AgentPose{X: 0.5, Y: 0, Z: 0.5}
}

func facingAway() protocol.AgentPose {
	return protocol.AgentPose{X: 0.5, Y: 0, Z: 0.5, Yaw: 180}
}

func sameVecs(a, b []model.Vec3i) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
