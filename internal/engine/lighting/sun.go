// Package lighting provides the directional light used to shade terrain.
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sun is a directional light. Longitude rotates around the Y axis (degrees),
// latitude is the elevation above the horizon (degrees).
type Sun struct {
	Longitude float32
	Latitude  float32
	Color     mgl32.Vec3
	Ambient   float32 // fraction of Color applied to unlit faces
}

// DefaultSun returns a white afternoon sun.
func DefaultSun() Sun {
	return Sun{Longitude: 45, Latitude: 50, Color: mgl32.Vec3{1, 1, 1}, Ambient: 0.25}
}

// Direction returns the normalized vector pointing towards the sun.
func (s Sun) Direction() mgl32.Vec3 {
	lon := float64(mgl32.DegToRad(s.Longitude))
	lat := float64(mgl32.DegToRad(s.Latitude))

	return mgl32.Vec3{
		float32(math.Cos(lat) * math.Sin(lon)),
		float32(math.Sin(lat)),
		float32(math.Cos(lat) * math.Cos(lon)),
	}
}
