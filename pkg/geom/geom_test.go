package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad returns a unit quad in the XZ plane facing +Y with UVs mapped to XZ.
func quad() *Mesh {
	return &Mesh{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1}},
		Normals:   [][3]float32{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		Indices:   []uint32{0, 2, 1, 1, 2, 3},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, quad().Validate())

	m := quad()
	m.Positions = nil
	assert.ErrorIs(t, m.Validate(), ErrMissingAttribute)

	m = quad()
	m.Indices = m.Indices[:4]
	assert.ErrorIs(t, m.Validate(), ErrNotTriangleList)

	m = quad()
	m.Indices[5] = 9
	assert.ErrorIs(t, m.Validate(), ErrIndexOutOfRange)

	m = quad()
	m.UVs = m.UVs[:2]
	assert.ErrorIs(t, m.Validate(), ErrAttributeMismatch)
}

func TestGenerateTangents(t *testing.T) {
	m := quad()
	require.False(t, m.HasTangents())
	require.NoError(t, m.GenerateTangents())
	require.Len(t, m.Tangents, 4)

	for i, tangent := range m.Tangents {
		v := mgl32.Vec3{tangent[0], tangent[1], tangent[2]}
		assert.InDelta(t, 1, v.Len(), 1e-5, "tangent %d not unit length", i)
		assert.InDelta(t, 0, v.Dot(mgl32.Vec3(m.Normals[i])), 1e-5, "tangent %d not perpendicular", i)
		// U runs along +X
		assert.InDelta(t, 1, v[0], 1e-5)
		assert.Contains(t, []float32{1, -1}, tangent[3])
	}
}

func TestGenerateTangentsMissingAttributes(t *testing.T) {
	m := quad()
	m.UVs = nil
	assert.ErrorIs(t, m.GenerateTangents(), ErrMissingAttribute)

	m = quad()
	m.Normals = nil
	assert.ErrorIs(t, m.GenerateTangents(), ErrMissingAttribute)
}

func TestGenerateTangentsDegenerateUVs(t *testing.T) {
	m := quad()
	m.UVs = [][2]float32{{0, 0}, {0, 0}, {0, 0}, {0, 0}}
	assert.ErrorIs(t, m.GenerateTangents(), ErrDegenerateTangents)
}

func TestCloneIsDeep(t *testing.T) {
	m := quad()
	c := m.Clone()
	c.Positions[0] = [3]float32{9, 9, 9}
	c.Indices[0] = 3
	assert.Equal(t, [3]float32{0, 0, 0}, m.Positions[0])
	assert.Equal(t, uint32(0), m.Indices[0])
}

func TestTransformMatrixRoundTrip(t *testing.T) {
	tr := Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	back := FromMatrix(tr.Matrix())

	assert.InDeltaSlice(t, tr.Translation[:], back.Translation[:], 1e-5)
	assert.InDeltaSlice(t, tr.Scale[:], back.Scale[:], 1e-5)
	// q and -q are the same rotation
	assert.InDelta(t, 1, math.Abs(float64(back.Rotation.Dot(tr.Rotation))), 1e-5)
}

func TestTransformMulMatchesMatrixProduct(t *testing.T) {
	parent := Transform{
		Translation: mgl32.Vec3{0, 10, 0},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	child := FromTranslation(1, 0, 0)

	got := parent.Mul(child).Matrix()
	want := parent.Matrix().Mul4(child.Matrix())
	assert.InDeltaSlice(t, want[:], got[:], 1e-5)

	p := parent.Mul(child).TransformPoint(mgl32.Vec3{})
	assert.InDeltaSlice(t, []float32{0, 10, -2}, p[:], 1e-5)
}

func TestIdentity(t *testing.T) {
	assert.True(t, Identity().IsIdentity())
	assert.False(t, FromTranslation(1, 0, 0).IsIdentity())
	ident, got := mgl32.Ident4(), Identity().Matrix()
	assert.InDeltaSlice(t, ident[:], got[:], 1e-6)
}
