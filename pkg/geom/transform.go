package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a local translation, rotation and scale.
// The matrix form is T * R * S.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// FromTranslation returns a transform that only translates.
func FromTranslation(x, y, z float32) Transform {
	t := Identity()
	t.Translation = mgl32.Vec3{x, y, z}
	return t
}

// FromMatrix decomposes an affine matrix into translation, rotation and scale.
// Shear is discarded.
func FromMatrix(m mgl32.Mat4) Transform {
	c0, c1, c2 := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()
	scale := mgl32.Vec3{c0.Len(), c1.Len(), c2.Len()}
	if m.Det() < 0 {
		scale[0] = -scale[0]
	}

	cols := [3]mgl32.Vec3{c0, c1, c2}
	for i := range cols {
		if scale[i] != 0 {
			cols[i] = cols[i].Mul(1 / scale[i])
		}
	}
	rot := mgl32.Mat4FromCols(cols[0].Vec4(0), cols[1].Vec4(0), cols[2].Vec4(0), mgl32.Vec4{0, 0, 0, 1})

	return Transform{
		Translation: m.Col(3).Vec3(),
		Rotation:    mgl32.Mat4ToQuat(rot).Normalize(),
		Scale:       scale,
	}
}

// Matrix returns the 4x4 column-major matrix for the transform.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Mul composes t (parent) with child, returning the child's transform in the
// parent's space.
func (t Transform) Mul(child Transform) Transform {
	scaled := mgl32.Vec3{
		t.Scale[0] * child.Translation[0],
		t.Scale[1] * child.Translation[1],
		t.Scale[2] * child.Translation[2],
	}
	return Transform{
		Translation: t.Translation.Add(t.Rotation.Rotate(scaled)),
		Rotation:    t.Rotation.Mul(child.Rotation),
		Scale: mgl32.Vec3{
			t.Scale[0] * child.Scale[0],
			t.Scale[1] * child.Scale[1],
			t.Scale[2] * child.Scale[2],
		},
	}
}

// TransformPoint applies the transform to a point.
func (t Transform) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return t.Matrix().Mul4x1(p.Vec4(1)).Vec3()
}

// IsIdentity reports whether the transform is exactly the identity.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}
