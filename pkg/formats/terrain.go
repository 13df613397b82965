package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/collider"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/meshlet"
)

// Terrain artifact errors.
var (
	ErrInvalidTerrainMagic       = errors.New("invalid terrain magic: expected 'MTRN'")
	ErrUnsupportedTerrainVersion = errors.New("unsupported terrain version")
	ErrTruncatedTerrainData      = errors.New("truncated terrain data")
	ErrTrailingTerrainData       = errors.New("trailing bytes after terrain data")
	ErrTerrainTooDeep            = errors.New("terrain node hierarchy too deep")
	ErrUnknownShapeKind          = errors.New("unknown collider shape kind")
	ErrInvalidTerrain            = errors.New("invalid terrain")
)

const (
	terrainMagic = "MTRN"

	// TerrainVersion is bumped whenever the encoding changes. Artifacts with
	// any other version are refused rather than decoded leniently.
	TerrainVersion uint16 = 1

	// MaxNodeDepth bounds the decoded hierarchy depth.
	MaxNodeDepth = 256
)

// Meshlet pairs precomputed cluster geometry with a material.
// MaterialIndex indexes the source scene's material list.
type Meshlet struct {
	Mesh          *meshlet.Mesh
	MaterialIndex uint32
}

// MeshletNode mirrors one source scene node in the surface cluster tree.
type MeshletNode struct {
	Meshlets  []Meshlet
	Transform geom.Transform
	Children  []MeshletNode
}

// ColliderNode mirrors one source scene node in the collision tree.
type ColliderNode struct {
	Colliders []collider.Shape
	Transform geom.Transform
	Children  []ColliderNode
}

// Terrain is the processed terrain artifact.
type Terrain struct {
	GltfPath     string
	MeshletNodes []MeshletNode
	Colliders    []ColliderNode
}

// TerrainStats summarises a terrain artifact.
type TerrainStats struct {
	MeshletNodes  int
	ColliderNodes int
	Meshlets      int // surface clusters (one per material-bearing primitive)
	Clusters      int // meshlets inside all surface clusters
	Colliders     int
	Triangles     int // collision triangles
	MaxDepth      int
}

// Stats walks both trees and counts their contents.
func (t *Terrain) Stats() TerrainStats {
	var s TerrainStats
	var walkMeshlets func(nodes []MeshletNode, depth int)
	walkMeshlets = func(nodes []MeshletNode, depth int) {
		for _, n := range nodes {
			s.MeshletNodes++
			s.MaxDepth = max(s.MaxDepth, depth)
			s.Meshlets += len(n.Meshlets)
			for _, m := range n.Meshlets {
				if m.Mesh != nil {
					s.Clusters += len(m.Mesh.Meshlets)
				}
			}
			walkMeshlets(n.Children, depth+1)
		}
	}
	var walkColliders func(nodes []ColliderNode)
	walkColliders = func(nodes []ColliderNode) {
		for _, n := range nodes {
			s.ColliderNodes++
			s.Colliders += len(n.Colliders)
			for _, c := range n.Colliders {
				s.Triangles += c.TriangleCount()
			}
			walkColliders(n.Children)
		}
	}
	walkMeshlets(t.MeshletNodes, 1)
	walkColliders(t.Colliders)
	return s
}

// LoadTerrain reads and parses a compressed terrain artifact from disk.
func LoadTerrain(path string) (*Terrain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading terrain: %w", err)
	}
	return ParseTerrain(data)
}

// MarshalTerrain encodes and compresses a terrain artifact.
func MarshalTerrain(t *Terrain, level int) ([]byte, error) {
	raw, err := EncodeTerrain(t)
	if err != nil {
		return nil, err
	}
	return Compress(raw, level)
}

// ParseTerrain decompresses and decodes a terrain artifact.
func ParseTerrain(data []byte) (*Terrain, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, err
	}
	return DecodeTerrain(raw)
}

//****************************************************************************
// ENCODING
//****************************************************************************

// EncodeTerrain encodes a terrain artifact without compression.
//
// Layout (little-endian, counts as uvarints):
//
//	magic "MTRN" | version u16 | gltf path | meshlet nodes | collider nodes
//
// Nodes are written depth-first: items, transform (10 x f32), children.
func EncodeTerrain(t *Terrain) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil terrain", ErrInvalidTerrain)
	}

	e := &encoder{buf: make([]byte, 0, 4096)}
	e.buf = append(e.buf, terrainMagic...)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, TerrainVersion)
	e.string(t.GltfPath)

	e.uvarint(uint64(len(t.MeshletNodes)))
	for i := range t.MeshletNodes {
		if err := e.meshletNode(&t.MeshletNodes[i]); err != nil {
			return nil, err
		}
	}

	e.uvarint(uint64(len(t.Colliders)))
	for i := range t.Colliders {
		if err := e.colliderNode(&t.Colliders[i]); err != nil {
			return nil, err
		}
	}

	return e.buf, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *encoder) f32(v float32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) transform(t geom.Transform) {
	for _, v := range t.Translation {
		e.f32(v)
	}
	for _, v := range t.Rotation.V {
		e.f32(v)
	}
	e.f32(t.Rotation.W)
	for _, v := range t.Scale {
		e.f32(v)
	}
}

func (e *encoder) meshletNode(n *MeshletNode) error {
	e.uvarint(uint64(len(n.Meshlets)))
	for i, m := range n.Meshlets {
		if m.Mesh == nil {
			return fmt.Errorf("%w: meshlet %d has no geometry", ErrInvalidTerrain, i)
		}
		e.meshletMesh(m.Mesh)
		e.uvarint(uint64(m.MaterialIndex))
	}
	e.transform(n.Transform)
	e.uvarint(uint64(len(n.Children)))
	for i := range n.Children {
		if err := e.meshletNode(&n.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) meshletMesh(m *meshlet.Mesh) {
	e.uvarint(uint64(len(m.Positions)))
	for _, p := range m.Positions {
		e.f32(p[0])
		e.f32(p[1])
		e.f32(p[2])
	}
	e.uvarint(uint64(len(m.Normals)))
	for _, n := range m.Normals {
		e.f32(n[0])
		e.f32(n[1])
		e.f32(n[2])
	}
	e.uvarint(uint64(len(m.UVs)))
	for _, uv := range m.UVs {
		e.f32(uv[0])
		e.f32(uv[1])
	}
	e.uvarint(uint64(len(m.Tangents)))
	for _, t := range m.Tangents {
		e.f32(t[0])
		e.f32(t[1])
		e.f32(t[2])
		e.f32(t[3])
	}
	e.uvarint(uint64(len(m.VertexIDs)))
	for _, id := range m.VertexIDs {
		e.uvarint(uint64(id))
	}
	e.uvarint(uint64(len(m.Triangles)))
	e.buf = append(e.buf, m.Triangles...)
	e.uvarint(uint64(len(m.Meshlets)))
	for _, ml := range m.Meshlets {
		e.uvarint(uint64(ml.VertexOffset))
		e.uvarint(uint64(ml.TriangleOffset))
		e.buf = append(e.buf, ml.VertexCount, ml.TriangleCount)
	}
	e.uvarint(uint64(len(m.Bounds)))
	for _, b := range m.Bounds {
		e.f32(b.Center[0])
		e.f32(b.Center[1])
		e.f32(b.Center[2])
		e.f32(b.Radius)
	}
}

func (e *encoder) colliderNode(n *ColliderNode) error {
	e.uvarint(uint64(len(n.Colliders)))
	for i, c := range n.Colliders {
		switch c.Kind {
		case collider.KindTriMesh:
			if c.TriMesh == nil {
				return fmt.Errorf("%w: collider %d has no triangle mesh", ErrInvalidTerrain, i)
			}
			e.buf = append(e.buf, byte(c.Kind))
			e.uvarint(uint64(len(c.TriMesh.Vertices)))
			for _, v := range c.TriMesh.Vertices {
				e.f32(v[0])
				e.f32(v[1])
				e.f32(v[2])
			}
			e.uvarint(uint64(len(c.TriMesh.Triangles)))
			for _, tri := range c.TriMesh.Triangles {
				e.uvarint(uint64(tri[0]))
				e.uvarint(uint64(tri[1]))
				e.uvarint(uint64(tri[2]))
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownShapeKind, c.Kind)
		}
	}
	e.transform(n.Transform)
	e.uvarint(uint64(len(n.Children)))
	for i := range n.Children {
		if err := e.colliderNode(&n.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

//****************************************************************************
// DECODING
//****************************************************************************

// DecodeTerrain decodes an uncompressed terrain artifact. Any malformed,
// truncated or over-long input is rejected; partial results are never returned.
func DecodeTerrain(data []byte) (*Terrain, error) {
	if len(data) < len(terrainMagic)+2 {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedTerrainData)
	}
	if string(data[:4]) != terrainMagic {
		return nil, ErrInvalidTerrainMagic
	}
	if version := binary.LittleEndian.Uint16(data[4:6]); version != TerrainVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedTerrainVersion, version, TerrainVersion)
	}

	d := &decoder{data: data, off: 6}
	t := &Terrain{}

	var err error
	if t.GltfPath, err = d.string("gltf path"); err != nil {
		return nil, err
	}

	n, err := d.count("meshlet node count", 1)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		t.MeshletNodes = make([]MeshletNode, n)
		for i := range t.MeshletNodes {
			if err := d.meshletNode(&t.MeshletNodes[i], 1); err != nil {
				return nil, err
			}
		}
	}

	if n, err = d.count("collider node count", 1); err != nil {
		return nil, err
	}
	if n > 0 {
		t.Colliders = make([]ColliderNode, n)
		for i := range t.Colliders {
			if err := d.colliderNode(&t.Colliders[i], 1); err != nil {
				return nil, err
			}
		}
	}

	if d.off != len(d.data) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingTerrainData, len(d.data)-d.off)
	}
	return t, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) uvarint(what string) (uint64, error) {
	v, n := binary.Uvarint(d.data[d.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: reading %s", ErrTruncatedTerrainData, what)
	}
	d.off += n
	return v, nil
}

func (d *decoder) u32(what string) (uint32, error) {
	v, err := d.uvarint(what)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s %d overflows uint32", ErrInvalidTerrain, what, v)
	}
	return uint32(v), nil
}

// count reads an element count and rejects counts that could not possibly
// fit in the remaining input, given each element's minimum encoded size.
func (d *decoder) count(what string, minSize int) (int, error) {
	v, err := d.uvarint(what)
	if err != nil {
		return 0, err
	}
	if v > uint64(d.remaining()/minSize) {
		return 0, fmt.Errorf("%w: %s %d exceeds remaining input", ErrTruncatedTerrainData, what, v)
	}
	return int(v), nil
}

func (d *decoder) bytes(n int, what string) ([]byte, error) {
	if n > d.remaining() {
		return nil, fmt.Errorf("%w: reading %s", ErrTruncatedTerrainData, what)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) f32s(dst []float32, what string) error {
	b, err := d.bytes(4*len(dst), what)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return nil
}

func (d *decoder) string(what string) (string, error) {
	n, err := d.count(what+" length", 1)
	if err != nil {
		return "", err
	}
	b, err := d.bytes(n, what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) transform() (geom.Transform, error) {
	var v [10]float32
	if err := d.f32s(v[:], "transform"); err != nil {
		return geom.Transform{}, err
	}
	return geom.Transform{
		Translation: mgl32.Vec3{v[0], v[1], v[2]},
		Rotation:    mgl32.Quat{V: mgl32.Vec3{v[3], v[4], v[5]}, W: v[6]},
		Scale:       mgl32.Vec3{v[7], v[8], v[9]},
	}, nil
}

func (d *decoder) meshletNode(n *MeshletNode, depth int) error {
	if depth > MaxNodeDepth {
		return fmt.Errorf("%w: exceeds %d levels", ErrTerrainTooDeep, MaxNodeDepth)
	}

	count, err := d.count("meshlet count", 1)
	if err != nil {
		return err
	}
	if count > 0 {
		n.Meshlets = make([]Meshlet, count)
		for i := range n.Meshlets {
			if n.Meshlets[i].Mesh, err = d.meshletMesh(); err != nil {
				return err
			}
			if n.Meshlets[i].MaterialIndex, err = d.u32("material index"); err != nil {
				return err
			}
		}
	}

	if n.Transform, err = d.transform(); err != nil {
		return err
	}

	if count, err = d.count("meshlet node children", 1); err != nil {
		return err
	}
	if count > 0 {
		n.Children = make([]MeshletNode, count)
		for i := range n.Children {
			if err := d.meshletNode(&n.Children[i], depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) meshletMesh() (*meshlet.Mesh, error) {
	m := &meshlet.Mesh{}

	n, err := d.count("position count", 12)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		flat := make([]float32, 3*n)
		if err := d.f32s(flat, "positions"); err != nil {
			return nil, err
		}
		m.Positions = make([][3]float32, n)
		for i := range m.Positions {
			m.Positions[i] = [3]float32{flat[3*i], flat[3*i+1], flat[3*i+2]}
		}
	}

	if n, err = d.count("normal count", 12); err != nil {
		return nil, err
	}
	if n > 0 {
		flat := make([]float32, 3*n)
		if err := d.f32s(flat, "normals"); err != nil {
			return nil, err
		}
		m.Normals = make([][3]float32, n)
		for i := range m.Normals {
			m.Normals[i] = [3]float32{flat[3*i], flat[3*i+1], flat[3*i+2]}
		}
	}

	if n, err = d.count("uv count", 8); err != nil {
		return nil, err
	}
	if n > 0 {
		flat := make([]float32, 2*n)
		if err := d.f32s(flat, "uvs"); err != nil {
			return nil, err
		}
		m.UVs = make([][2]float32, n)
		for i := range m.UVs {
			m.UVs[i] = [2]float32{flat[2*i], flat[2*i+1]}
		}
	}

	if n, err = d.count("tangent count", 16); err != nil {
		return nil, err
	}
	if n > 0 {
		flat := make([]float32, 4*n)
		if err := d.f32s(flat, "tangents"); err != nil {
			return nil, err
		}
		m.Tangents = make([][4]float32, n)
		for i := range m.Tangents {
			m.Tangents[i] = [4]float32{flat[4*i], flat[4*i+1], flat[4*i+2], flat[4*i+3]}
		}
	}

	if n, err = d.count("vertex id count", 1); err != nil {
		return nil, err
	}
	if n > 0 {
		m.VertexIDs = make([]uint32, n)
		for i := range m.VertexIDs {
			if m.VertexIDs[i], err = d.u32("vertex id"); err != nil {
				return nil, err
			}
			if int(m.VertexIDs[i]) >= len(m.Positions) {
				return nil, fmt.Errorf("%w: vertex id %d out of range (%d positions)",
					ErrInvalidTerrain, m.VertexIDs[i], len(m.Positions))
			}
		}
	}

	if n, err = d.count("triangle index count", 1); err != nil {
		return nil, err
	}
	if n > 0 {
		b, err := d.bytes(n, "triangle indices")
		if err != nil {
			return nil, err
		}
		m.Triangles = append([]uint8(nil), b...)
	}

	if n, err = d.count("meshlet count", 4); err != nil {
		return nil, err
	}
	if n > 0 {
		m.Meshlets = make([]meshlet.Meshlet, n)
		for i := range m.Meshlets {
			ml := &m.Meshlets[i]
			if ml.VertexOffset, err = d.u32("meshlet vertex offset"); err != nil {
				return nil, err
			}
			if ml.TriangleOffset, err = d.u32("meshlet triangle offset"); err != nil {
				return nil, err
			}
			b, err := d.bytes(2, "meshlet counts")
			if err != nil {
				return nil, err
			}
			ml.VertexCount, ml.TriangleCount = b[0], b[1]
			if uint64(ml.VertexOffset)+uint64(ml.VertexCount) > uint64(len(m.VertexIDs)) ||
				(uint64(ml.TriangleOffset)+uint64(ml.TriangleCount))*3 > uint64(len(m.Triangles)) {
				return nil, fmt.Errorf("%w: meshlet %d window out of range", ErrInvalidTerrain, i)
			}
			start := int(ml.TriangleOffset) * 3
			for _, local := range m.Triangles[start : start+int(ml.TriangleCount)*3] {
				if local >= ml.VertexCount {
					return nil, fmt.Errorf("%w: meshlet %d triangle references local vertex %d of %d",
						ErrInvalidTerrain, i, local, ml.VertexCount)
				}
			}
		}
	}

	if n, err = d.count("bounds count", 16); err != nil {
		return nil, err
	}
	if n > 0 {
		flat := make([]float32, 4*n)
		if err := d.f32s(flat, "bounds"); err != nil {
			return nil, err
		}
		m.Bounds = make([]meshlet.BoundingSphere, n)
		for i := range m.Bounds {
			m.Bounds[i] = meshlet.BoundingSphere{
				Center: [3]float32{flat[4*i], flat[4*i+1], flat[4*i+2]},
				Radius: flat[4*i+3],
			}
		}
	}

	return m, nil
}

func (d *decoder) colliderNode(n *ColliderNode, depth int) error {
	if depth > MaxNodeDepth {
		return fmt.Errorf("%w: exceeds %d levels", ErrTerrainTooDeep, MaxNodeDepth)
	}

	count, err := d.count("collider count", 1)
	if err != nil {
		return err
	}
	if count > 0 {
		n.Colliders = make([]collider.Shape, count)
		for i := range n.Colliders {
			if n.Colliders[i], err = d.shape(); err != nil {
				return err
			}
		}
	}

	if n.Transform, err = d.transform(); err != nil {
		return err
	}

	if count, err = d.count("collider node children", 1); err != nil {
		return err
	}
	if count > 0 {
		n.Children = make([]ColliderNode, count)
		for i := range n.Children {
			if err := d.colliderNode(&n.Children[i], depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) shape() (collider.Shape, error) {
	b, err := d.bytes(1, "collider kind")
	if err != nil {
		return collider.Shape{}, err
	}

	kind := collider.ShapeKind(b[0])
	switch kind {
	case collider.KindTriMesh:
		tm := &collider.TriMesh{}

		n, err := d.count("collider vertex count", 12)
		if err != nil {
			return collider.Shape{}, err
		}
		if n > 0 {
			flat := make([]float32, 3*n)
			if err := d.f32s(flat, "collider vertices"); err != nil {
				return collider.Shape{}, err
			}
			tm.Vertices = make([][3]float32, n)
			for i := range tm.Vertices {
				tm.Vertices[i] = [3]float32{flat[3*i], flat[3*i+1], flat[3*i+2]}
			}
		}

		if n, err = d.count("collider triangle count", 3); err != nil {
			return collider.Shape{}, err
		}
		if n > 0 {
			tm.Triangles = make([][3]uint32, n)
			for i := range tm.Triangles {
				for j := 0; j < 3; j++ {
					idx, err := d.u32("collider index")
					if err != nil {
						return collider.Shape{}, err
					}
					if int(idx) >= len(tm.Vertices) {
						return collider.Shape{}, fmt.Errorf("%w: collider index %d out of range", ErrInvalidTerrain, idx)
					}
					tm.Triangles[i][j] = idx
				}
			}
		}

		return collider.Shape{Kind: kind, TriMesh: tm}, nil
	default:
		return collider.Shape{}, fmt.Errorf("%w: %s", ErrUnknownShapeKind, kind)
	}
}
