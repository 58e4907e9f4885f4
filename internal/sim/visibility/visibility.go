// Package visibility decides whether an observer is near and facing a
// furnace. It approximates "the furnace is on screen" from the observer's
// field of view and viewport aspect ratio.
package visibility

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"nearbysmelt/internal/sim/world/kernel/model"
)

const (
	// MaxRangeSq is the squared eye-to-block-center distance still in range.
	MaxRangeSq = 25.0

	DefaultEyeHeight = 1.6

	// Vectors shorter than this are treated as degenerate.
	epsilon = 1e-9
)

var worldUp = mgl64.Vec3{0, 1, 0}

// Observer is derived fresh for every test from live agent state.
type Observer struct {
	Eye    mgl64.Vec3
	Facing mgl64.Vec3

	AspectWidth  float64
	AspectHeight float64
	// FOV is the horizontal field of view in degrees.
	FOV float64
}

// IsVisible reports whether any landmark is within range of obs and inside
// its view. The first landmark that passes every gate wins.
func IsVisible(obs Observer, landmarks []model.Vec3i) bool {
	if obs.AspectWidth <= 0 || obs.AspectHeight <= 0 {
		return false
	}
	lookLen := obs.Facing.Len()
	if lookLen < epsilon {
		return false
	}
	yawLimit := math.Min(1, obs.AspectWidth/obs.AspectHeight) * (obs.FOV / 2)
	pitchLimit := math.Min(1, obs.AspectHeight/obs.AspectWidth) * (obs.FOV / 2)

	for _, lm := range landmarks {
		if landmarkVisible(obs, lookLen, yawLimit, pitchLimit, lm) {
			return true
		}
	}
	return false
}

func landmarkVisible(obs Observer, lookLen, yawLimit, pitchLimit float64, lm model.Vec3i) bool {
	look := obs.Facing
	center := mgl64.Vec3(lm.Center())
	toBlock := center.Sub(obs.Eye)

	if toBlock.Dot(toBlock) > MaxRangeSq {
		return false
	}

	// Scalar projection onto the look vector; <= 0 is behind or level with the eye.
	if look.Dot(toBlock)/lookLen <= 0 {
		return false
	}

	// Horizontal reference axis. Zero when looking straight up or down.
	right := look.Cross(worldUp)
	if right.Len() < epsilon {
		return false
	}
	// Drop the sideways component: what remains lies in the pitch plane.
	pitchPlane := toBlock.Sub(project(toBlock, right))
	pitch, ok := angleDeg(look, pitchPlane)
	if !ok {
		return false
	}

	up := right.Cross(look)
	if up.Len() < epsilon {
		return false
	}
	// Drop the vertical component: what remains lies in the yaw plane.
	yawPlane := toBlock.Sub(project(toBlock, up))
	yaw, ok := angleDeg(look, yawPlane)
	if !ok {
		return false
	}

	return math.Abs(yaw) <= yawLimit && math.Abs(pitch) <= pitchLimit
}

// project returns the vector projection of v onto axis. axis must be non-zero.
func project(v, axis mgl64.Vec3) mgl64.Vec3 {
	return axis.Mul(axis.Dot(v) / axis.Dot(axis))
}

func angleDeg(a, b mgl64.Vec3) (float64, bool) {
	la, lb := a.Len(), b.Len()
	if la < epsilon || lb < epsilon {
		return 0, false
	}
	cos := mgl64.Clamp(a.Dot(b)/(la*lb), -1, 1)
	return mgl64.RadToDeg(math.Acos(cos)), true
}
