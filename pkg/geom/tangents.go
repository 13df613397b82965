package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// GenerateTangents computes a per-vertex tangent stream from positions,
// normals and texture coordinates, replacing any existing tangents.
//
// Tangents are accumulated per triangle from the UV derivatives, then
// orthogonalised against the vertex normal. W holds the bitangent
// handedness (+1 or -1).
func (m *Mesh) GenerateTangents() error {
	if err := m.Validate(); err != nil {
		return err
	}
	for _, attr := range []Attribute{AttributeNormal, AttributeUV} {
		if !m.Has(attr) {
			return fmt.Errorf("%w: %s", ErrMissingAttribute, attr)
		}
	}
	if len(m.Indices) == 0 {
		return fmt.Errorf("%w: no triangles", ErrMissingAttribute)
	}

	n := len(m.Positions)
	tan := make([]mgl32.Vec3, n)
	bitan := make([]mgl32.Vec3, n)
	contributed := 0

	for t := 0; t+2 < len(m.Indices); t += 3 {
		i0, i1, i2 := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		p0, p1, p2 := mgl32.Vec3(m.Positions[i0]), mgl32.Vec3(m.Positions[i1]), mgl32.Vec3(m.Positions[i2])
		w0, w1, w2 := m.UVs[i0], m.UVs[i1], m.UVs[i2]

		e1, e2 := p1.Sub(p0), p2.Sub(p0)
		s1, s2 := w1[0]-w0[0], w2[0]-w0[0]
		t1, t2 := w1[1]-w0[1], w2[1]-w0[1]

		det := s1*t2 - s2*t1
		if math.Abs(float64(det)) < 1e-12 {
			continue
		}
		r := 1 / det
		sdir := e1.Mul(t2).Sub(e2.Mul(t1)).Mul(r)
		tdir := e2.Mul(s1).Sub(e1.Mul(s2)).Mul(r)

		for _, i := range [3]uint32{i0, i1, i2} {
			tan[i] = tan[i].Add(sdir)
			bitan[i] = bitan[i].Add(tdir)
		}
		contributed++
	}

	if contributed == 0 {
		return ErrDegenerateTangents
	}

	tangents := make([][4]float32, n)
	for i := range tangents {
		normal := mgl32.Vec3(m.Normals[i])
		t := tan[i].Sub(normal.Mul(normal.Dot(tan[i])))
		if t.Len() < 1e-8 {
			t = anyPerpendicular(normal)
		}
		t = t.Normalize()

		w := float32(1)
		if normal.Cross(t).Dot(bitan[i]) < 0 {
			w = -1
		}
		tangents[i] = [4]float32{t[0], t[1], t[2], w}
	}

	m.Tangents = tangents
	return nil
}

// anyPerpendicular returns a unit vector perpendicular to n, or +X when n is zero.
func anyPerpendicular(n mgl32.Vec3) mgl32.Vec3 {
	if n.Len() < 1e-8 {
		return mgl32.Vec3{1, 0, 0}
	}
	axis := mgl32.Vec3{1, 0, 0}
	if math.Abs(float64(n[0])) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return n.Cross(axis).Normalize()
}
