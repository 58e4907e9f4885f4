package visibility

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is an agent's feet position and head rotation in degrees.
// Yaw 0 faces +Z and increases clockwise seen from above; pitch +90 looks
// straight down.
type Pose struct {
	Pos   mgl64.Vec3
	Yaw   float64
	Pitch float64
}

// Valid reports whether every component is finite, pitch lies in
// [-90, 90] and yaw fits the wire's float32.
func (p Pose) Valid() bool {
	for _, v := range []float64{p.Pos.X(), p.Pos.Y(), p.Pos.Z(), p.Yaw, p.Pitch} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Pitch >= -90 && p.Pitch <= 90 && math.Abs(p.Yaw) <= math.MaxFloat32
}

// Viewport is the client's render surface and horizontal field of view.
type Viewport struct {
	Width  int32
	Height int32
	FOV    float64
}

func DefaultViewport() Viewport {
	return Viewport{Width: 854, Height: 480, FOV: 70}
}

func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0 && v.FOV > 0 && v.FOV < 180
}

// LookVec returns the unit facing direction for yaw and pitch.
func LookVec(yaw, pitch float64) mgl64.Vec3 {
	y := mgl64.DegToRad(yaw)
	p := mgl64.DegToRad(pitch)
	return mgl64.Vec3{
		-math.Sin(y) * math.Cos(p),
		-math.Sin(p),
		math.Cos(y) * math.Cos(p),
	}
}

// ObserverFor builds the observer for an agent standing at pose.
func ObserverFor(pose Pose, vp Viewport, eyeHeight float64) Observer {
	return Observer{
		Eye:          pose.Pos.Add(mgl64.Vec3{0, eyeHeight, 0}),
		Facing:       LookVec(pose.Yaw, pose.Pitch),
		AspectWidth:  float64(vp.Width),
		AspectHeight: float64(vp.Height),
		FOV:          vp.FOV,
	}
}
