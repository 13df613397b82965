// Package geom provides triangle mesh vertex data and rigid transforms shared
// by the terrain build and load pipeline.
package geom

import (
	"errors"
	"fmt"
)

// Mesh errors.
var (
	ErrMissingAttribute   = errors.New("missing vertex attribute")
	ErrAttributeMismatch  = errors.New("vertex attribute length mismatch")
	ErrIndexOutOfRange    = errors.New("vertex index out of range")
	ErrNotTriangleList    = errors.New("index count is not a multiple of 3")
	ErrDegenerateTangents = errors.New("unable to derive tangents from texture coordinates")
)

// Attribute names a vertex attribute stream.
type Attribute string

// Vertex attribute names (matching the glTF semantic names).
const (
	AttributePosition Attribute = "POSITION"
	AttributeNormal   Attribute = "NORMAL"
	AttributeUV       Attribute = "TEXCOORD_0"
	AttributeTangent  Attribute = "TANGENT"
)

// Mesh is an indexed triangle list with optional per-vertex attributes.
// Every non-empty attribute stream has one entry per position.
type Mesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Tangents  [][4]float32 // xyz = tangent, w = bitangent handedness
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles in the index list.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Has reports whether the attribute stream is present.
func (m *Mesh) Has(attr Attribute) bool {
	switch attr {
	case AttributePosition:
		return len(m.Positions) > 0
	case AttributeNormal:
		return len(m.Normals) > 0
	case AttributeUV:
		return len(m.UVs) > 0
	case AttributeTangent:
		return len(m.Tangents) > 0
	}
	return false
}

// HasTangents reports whether a tangent stream is present.
func (m *Mesh) HasTangents() bool {
	return m.Has(AttributeTangent)
}

// Validate checks the attribute streams and index list are consistent.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMissingAttribute, AttributePosition)
	}
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrAttributeMismatch, AttributeNormal, len(m.Normals), n)
	}
	if len(m.UVs) != 0 && len(m.UVs) != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrAttributeMismatch, AttributeUV, len(m.UVs), n)
	}
	if len(m.Tangents) != 0 && len(m.Tangents) != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrAttributeMismatch, AttributeTangent, len(m.Tangents), n)
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrNotTriangleList, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d at %d (vertex count %d)", ErrIndexOutOfRange, idx, i, n)
		}
	}
	return nil
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{}
	if m.Positions != nil {
		c.Positions = append([][3]float32(nil), m.Positions...)
	}
	if m.Normals != nil {
		c.Normals = append([][3]float32(nil), m.Normals...)
	}
	if m.UVs != nil {
		c.UVs = append([][2]float32(nil), m.UVs...)
	}
	if m.Tangents != nil {
		c.Tangents = append([][4]float32(nil), m.Tangents...)
	}
	if m.Indices != nil {
		c.Indices = append([]uint32(nil), m.Indices...)
	}
	return c
}

// SequentialIndices returns 0..n-1, used for non-indexed triangle lists.
func SequentialIndices(n int) []uint32 {
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return indices
}
