package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		lon, lat float32
		want     mgl32.Vec3
	}{
		{0, 90, mgl32.Vec3{0, 1, 0}},
		{0, 0, mgl32.Vec3{0, 0, 1}},
		{90, 0, mgl32.Vec3{1, 0, 0}},
	}
	for _, tt := range tests {
		got := Sun{Longitude: tt.lon, Latitude: tt.lat}.Direction()
		if !near(got, tt.want, 1e-5) {
			t.Errorf("Direction(%v, %v) = %v, want %v", tt.lon, tt.lat, got, tt.want)
		}
	}

	if l := DefaultSun().Direction().Len(); l < 0.9999 || l > 1.0001 {
		t.Errorf("default direction length = %v, want 1", l)
	}
}

// near compares per component with an absolute tolerance.
func near(a, b mgl32.Vec3, eps float32) bool {
	for i := range a {
		if d := a[i] - b[i]; d > eps || d < -eps {
			return false
		}
	}
	return true
}

func TestNearToleratesResidue(t *testing.T) {
	if !near(mgl32.Vec3{0, 1, -4.371139e-08}, mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Error("near() rejected float residue on a zero component")
	}
	if near(mgl32.Vec3{0, 1, 0.1}, mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Error("near() accepted a real difference")
	}
}
