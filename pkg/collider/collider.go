// Package collider builds physics collision shapes from triangle meshes.
package collider

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

// ErrDegenerateGeometry is returned when a mesh cannot produce a collision shape.
var ErrDegenerateGeometry = errors.New("degenerate collision geometry")

// ShapeKind discriminates the shape variants.
type ShapeKind uint8

// Shape kinds. Values are persisted in terrain artifacts; do not reorder.
const (
	KindTriMesh ShapeKind = 1
)

// String returns the shape kind name.
func (k ShapeKind) String() string {
	switch k {
	case KindTriMesh:
		return "trimesh"
	default:
		return fmt.Sprintf("ShapeKind(%d)", uint8(k))
	}
}

// TriMesh is a static triangle-mesh collision shape.
type TriMesh struct {
	Vertices  [][3]float32
	Triangles [][3]uint32
}

// Shape is a self-contained collision shape.
type Shape struct {
	Kind    ShapeKind
	TriMesh *TriMesh
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// FromMesh builds a triangle-mesh shape from the mesh's positions and indices.
// Other attributes are ignored.
func FromMesh(m *geom.Mesh) (Shape, error) {
	if m == nil || len(m.Positions) == 0 {
		return Shape{}, fmt.Errorf("%w: no vertex positions", ErrDegenerateGeometry)
	}
	if len(m.Indices) == 0 {
		return Shape{}, fmt.Errorf("%w: no triangles", ErrDegenerateGeometry)
	}
	if len(m.Indices)%3 != 0 {
		return Shape{}, fmt.Errorf("%w: %d indices is not a triangle list", ErrDegenerateGeometry, len(m.Indices))
	}

	n := uint32(len(m.Positions))
	tris := make([][3]uint32, 0, len(m.Indices)/3)
	area := false
	for t := 0; t < len(m.Indices); t += 3 {
		tri := [3]uint32{m.Indices[t], m.Indices[t+1], m.Indices[t+2]}
		for _, idx := range tri {
			if idx >= n {
				return Shape{}, fmt.Errorf("%w: index %d out of range (%d vertices)", ErrDegenerateGeometry, idx, n)
			}
		}
		if !area {
			a, b, c := mgl32.Vec3(m.Positions[tri[0]]), mgl32.Vec3(m.Positions[tri[1]]), mgl32.Vec3(m.Positions[tri[2]])
			area = b.Sub(a).Cross(c.Sub(a)).Len() > 1e-12
		}
		tris = append(tris, tri)
	}
	if !area {
		return Shape{}, fmt.Errorf("%w: every triangle has zero area", ErrDegenerateGeometry)
	}

	return Shape{
		Kind: KindTriMesh,
		TriMesh: &TriMesh{
			Vertices:  append([][3]float32(nil), m.Positions...),
			Triangles: tris,
		},
	}, nil
}

// AABB returns the bounds of the shape's vertices.
func (s Shape) AABB() AABB {
	if s.TriMesh == nil || len(s.TriMesh.Vertices) == 0 {
		return AABB{}
	}
	box := AABB{Min: s.TriMesh.Vertices[0], Max: s.TriMesh.Vertices[0]}
	for _, v := range s.TriMesh.Vertices[1:] {
		for i := 0; i < 3; i++ {
			box.Min[i] = min(box.Min[i], v[i])
			box.Max[i] = max(box.Max[i], v[i])
		}
	}
	return box
}

// TriangleCount returns the number of triangles in the shape.
func (s Shape) TriangleCount() int {
	if s.TriMesh == nil {
		return 0
	}
	return len(s.TriMesh.Triangles)
}
