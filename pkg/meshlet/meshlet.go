// Package meshlet builds precomputed surface clusters ("meshlets") from
// tangent-complete triangle meshes.
package meshlet

import (
	"errors"
	"fmt"
	"math"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

// Default cluster limits.
const (
	DefaultMaxVertices  = 64
	DefaultMaxTriangles = 124

	// maxLocalVertices bounds cluster-local vertex ids, stored as uint8.
	maxLocalVertices = 255
)

// Meshlet build errors.
var (
	ErrNoTriangles    = errors.New("mesh has no triangles")
	ErrInvalidOptions = errors.New("invalid meshlet options")
)

// Options configures the cluster size limits.
type Options struct {
	MaxVertices  int
	MaxTriangles int
}

// DefaultOptions returns the default cluster limits.
func DefaultOptions() Options {
	return Options{
		MaxVertices:  DefaultMaxVertices,
		MaxTriangles: DefaultMaxTriangles,
	}
}

func (o Options) validate() error {
	if o.MaxVertices < 3 || o.MaxVertices > maxLocalVertices {
		return fmt.Errorf("%w: max vertices %d not in [3, %d]", ErrInvalidOptions, o.MaxVertices, maxLocalVertices)
	}
	if o.MaxTriangles < 1 || o.MaxTriangles > math.MaxUint8 {
		return fmt.Errorf("%w: max triangles %d not in [1, %d]", ErrInvalidOptions, o.MaxTriangles, math.MaxUint8)
	}
	return nil
}

// Meshlet is one cluster: a window into Mesh.VertexIDs and Mesh.Triangles.
type Meshlet struct {
	VertexOffset   uint32
	TriangleOffset uint32 // in triangles, not bytes
	VertexCount    uint8
	TriangleCount  uint8
}

// BoundingSphere bounds one cluster in mesh space.
type BoundingSphere struct {
	Center [3]float32
	Radius float32
}

// Mesh is the precomputed cluster geometry for one primitive.
type Mesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Tangents  [][4]float32

	VertexIDs []uint32 // cluster-local vertex -> mesh vertex
	Triangles []uint8  // 3 cluster-local vertex ids per triangle
	Meshlets  []Meshlet
	Bounds    []BoundingSphere
}

// Build partitions the mesh's triangle list into clusters. Triangles keep
// their original order; a new cluster starts whenever the next triangle would
// exceed either limit.
func Build(m *geom.Mesh, opts Options) (*Mesh, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for _, attr := range []geom.Attribute{geom.AttributeNormal, geom.AttributeUV, geom.AttributeTangent} {
		if !m.Has(attr) {
			return nil, fmt.Errorf("%w: %s", geom.ErrMissingAttribute, attr)
		}
	}
	if m.TriangleCount() == 0 {
		return nil, ErrNoTriangles
	}

	out := &Mesh{
		Positions: m.Positions,
		Normals:   m.Normals,
		UVs:       m.UVs,
		Tangents:  m.Tangents,
		Triangles: make([]uint8, 0, len(m.Indices)),
	}

	// local maps a mesh vertex to its id in the open cluster; stamp marks
	// which cluster wrote the entry so the table never needs clearing.
	local := make([]uint8, len(m.Positions))
	stamp := make([]int, len(m.Positions))
	cluster := 1

	cur := Meshlet{}
	flush := func() {
		if cur.TriangleCount == 0 {
			return
		}
		out.Meshlets = append(out.Meshlets, cur)
		cluster++
		cur = Meshlet{
			VertexOffset:   uint32(len(out.VertexIDs)),
			TriangleOffset: uint32(len(out.Triangles) / 3),
		}
	}

	for t := 0; t < len(m.Indices); t += 3 {
		tri := [3]uint32{m.Indices[t], m.Indices[t+1], m.Indices[t+2]}

		fresh := 0
		for i, v := range tri {
			if stamp[v] == cluster {
				continue
			}
			// repeated vertices inside one triangle only count once
			if (i > 0 && tri[0] == v) || (i > 1 && tri[1] == v) {
				continue
			}
			fresh++
		}
		if int(cur.VertexCount)+fresh > opts.MaxVertices || int(cur.TriangleCount)+1 > opts.MaxTriangles {
			flush()
		}

		for _, v := range tri {
			if stamp[v] != cluster {
				stamp[v] = cluster
				local[v] = cur.VertexCount
				out.VertexIDs = append(out.VertexIDs, v)
				cur.VertexCount++
			}
			out.Triangles = append(out.Triangles, local[v])
		}
		cur.TriangleCount++
	}
	flush()

	out.Bounds = make([]BoundingSphere, len(out.Meshlets))
	for i, ml := range out.Meshlets {
		out.Bounds[i] = out.bound(ml)
	}

	return out, nil
}

// bound computes a centroid-based bounding sphere for one cluster.
func (m *Mesh) bound(ml Meshlet) BoundingSphere {
	ids := m.VertexIDs[ml.VertexOffset : ml.VertexOffset+uint32(ml.VertexCount)]

	var c [3]float64
	for _, id := range ids {
		p := m.Positions[id]
		c[0] += float64(p[0])
		c[1] += float64(p[1])
		c[2] += float64(p[2])
	}
	n := float64(len(ids))
	c[0], c[1], c[2] = c[0]/n, c[1]/n, c[2]/n

	var r float64
	for _, id := range ids {
		p := m.Positions[id]
		dx, dy, dz := float64(p[0])-c[0], float64(p[1])-c[1], float64(p[2])-c[2]
		r = math.Max(r, math.Sqrt(dx*dx+dy*dy+dz*dz))
	}

	return BoundingSphere{
		Center: [3]float32{float32(c[0]), float32(c[1]), float32(c[2])},
		Radius: float32(r),
	}
}

// TriangleCount returns the total number of triangles across all clusters.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Indices expands the clusters back into a flat mesh-space index list.
func (m *Mesh) Indices() []uint32 {
	indices := make([]uint32, 0, len(m.Triangles))
	for _, ml := range m.Meshlets {
		start := int(ml.TriangleOffset) * 3
		end := start + int(ml.TriangleCount)*3
		for _, l := range m.Triangles[start:end] {
			indices = append(indices, m.VertexIDs[ml.VertexOffset+uint32(l)])
		}
	}
	return indices
}
