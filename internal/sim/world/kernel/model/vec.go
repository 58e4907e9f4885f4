package model

// Vec3i is a block-grid position with the wire's int32 coordinates.
type Vec3i struct {
	X int32
	Y int32
	Z int32
}

func (v Vec3i) ToArray() [3]int32 { return [3]int32{v.X, v.Y, v.Z} }

func Vec3iFromArray(a [3]int32) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

// Center returns the geometric center of the unit cube at v.
func (v Vec3i) Center() [3]float64 {
	return [3]float64{float64(v.X) + 0.5, float64(v.Y) + 0.5, float64(v.Z) + 0.5}
}
