package formats

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/collider"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/meshlet"
)

// createTestMesh builds a 2x2 quad grid with every attribute populated.
func createTestMesh(t *testing.T) *geom.Mesh {
	t.Helper()
	m := &geom.Mesh{}
	for z := 0; z <= 2; z++ {
		for x := 0; x <= 2; x++ {
			m.Positions = append(m.Positions, [3]float32{float32(x), float32(x * z), float32(z)})
			m.Normals = append(m.Normals, [3]float32{0, 1, 0})
			m.UVs = append(m.UVs, [2]float32{float32(x) / 2, float32(z) / 2})
		}
	}
	for z := uint32(0); z < 2; z++ {
		for x := uint32(0); x < 2; x++ {
			i := z*3 + x
			m.Indices = append(m.Indices, i, i+3, i+1, i+1, i+3, i+4)
		}
	}
	require.NoError(t, m.GenerateTangents())
	return m
}

// createTestTerrain builds a two-level terrain: a root with one child.
func createTestTerrain(t *testing.T) *Terrain {
	t.Helper()
	m := createTestMesh(t)

	cluster, err := meshlet.Build(m, meshlet.Options{MaxVertices: 4, MaxTriangles: 2})
	require.NoError(t, err)
	shape, err := collider.FromMesh(m)
	require.NoError(t, err)

	child := geom.FromTranslation(0, -2, 5)
	root := geom.Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatRotate(0.5, mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{1, 1, 1},
	}

	return &Terrain{
		GltfPath: "terrain/island.glb",
		MeshletNodes: []MeshletNode{{
			Meshlets:  []Meshlet{{Mesh: cluster, MaterialIndex: 3}},
			Transform: root,
			Children: []MeshletNode{{
				Transform: child,
			}},
		}},
		Colliders: []ColliderNode{{
			Colliders: []collider.Shape{shape},
			Transform: root,
			Children: []ColliderNode{{
				Colliders: []collider.Shape{shape},
				Transform: child,
			}},
		}},
	}
}

func TestEncodeDecodeTerrain(t *testing.T) {
	want := createTestTerrain(t)

	data, err := EncodeTerrain(want)
	require.NoError(t, err)

	got, err := DecodeTerrain(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMarshalParseTerrain(t *testing.T) {
	want := createTestTerrain(t)

	data, err := MarshalTerrain(want, DefaultCompressionLevel)
	require.NoError(t, err)

	got, err := ParseTerrain(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeDecodeEmptyTerrain(t *testing.T) {
	want := &Terrain{GltfPath: "empty.gltf"}

	data, err := EncodeTerrain(want)
	require.NoError(t, err)

	got, err := DecodeTerrain(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeTerrainTruncated(t *testing.T) {
	data, err := EncodeTerrain(createTestTerrain(t))
	require.NoError(t, err)

	// every proper prefix must fail; none may yield a partial terrain
	for n := 0; n < len(data); n++ {
		got, err := DecodeTerrain(data[:n])
		require.Error(t, err, "prefix of %d bytes decoded", n)
		require.Nil(t, got)
	}
}

func TestDecodeTerrainTrailingBytes(t *testing.T) {
	data, err := EncodeTerrain(createTestTerrain(t))
	require.NoError(t, err)

	_, err = DecodeTerrain(append(data, 0))
	assert.ErrorIs(t, err, ErrTrailingTerrainData)
}

func TestDecodeTerrainInvalidMagic(t *testing.T) {
	_, err := DecodeTerrain([]byte("XXXX\x01\x00\x00\x00\x00"))
	assert.ErrorIs(t, err, ErrInvalidTerrainMagic)
}

func TestDecodeTerrainVersionMismatch(t *testing.T) {
	data, err := EncodeTerrain(&Terrain{GltfPath: "a.glb"})
	require.NoError(t, err)
	binary.LittleEndian.PutUint16(data[4:], TerrainVersion+1)

	_, err = DecodeTerrain(data)
	assert.ErrorIs(t, err, ErrUnsupportedTerrainVersion)
}

func TestDecodeTerrainHugeCount(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.WriteString("MTRN")
	binary.Write(buf, binary.LittleEndian, TerrainVersion)
	buf.WriteByte(0) // empty path
	buf.Write(binary.AppendUvarint(nil, 1<<40))

	_, err := DecodeTerrain(buf.Bytes())
	assert.ErrorIs(t, err, ErrTruncatedTerrainData)
}

func TestDecodeTerrainUnknownShapeKind(t *testing.T) {
	e := &encoder{}
	e.buf = append(e.buf, terrainMagic...)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, TerrainVersion)
	e.string("a.glb")
	e.uvarint(0) // meshlet nodes
	e.uvarint(1) // collider nodes
	e.uvarint(1) // one shape
	e.buf = append(e.buf, 42)

	_, err := DecodeTerrain(e.buf)
	assert.ErrorIs(t, err, ErrUnknownShapeKind)
}

func TestDecodeTerrainMeshletIndexOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		mesh *meshlet.Mesh
	}{
		{"local vertex beyond cluster", &meshlet.Mesh{
			Positions: [][3]float32{{0, 0, 0}},
			VertexIDs: []uint32{0},
			Triangles: []uint8{0, 200, 0},
			Meshlets:  []meshlet.Meshlet{{VertexCount: 1, TriangleCount: 1}},
		}},
		{"vertex id beyond positions", &meshlet.Mesh{
			Positions: [][3]float32{{0, 0, 0}},
			VertexIDs: []uint32{7},
			Triangles: []uint8{0, 0, 0},
			Meshlets:  []meshlet.Meshlet{{VertexCount: 1, TriangleCount: 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeTerrain(&Terrain{
				MeshletNodes: []MeshletNode{{
					Meshlets:  []Meshlet{{Mesh: tt.mesh}},
					Transform: geom.Identity(),
				}},
			})
			require.NoError(t, err)

			_, err = DecodeTerrain(data)
			assert.ErrorIs(t, err, ErrInvalidTerrain)
		})
	}
}

func TestDecodeTerrainTooDeep(t *testing.T) {
	e := &encoder{}
	e.buf = append(e.buf, terrainMagic...)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, TerrainVersion)
	e.string("a.glb")
	e.uvarint(1)
	for i := 0; i <= MaxNodeDepth; i++ {
		e.uvarint(0) // no meshlets
		e.transform(geom.Identity())
		e.uvarint(1) // one child
	}

	_, err := DecodeTerrain(e.buf)
	assert.ErrorIs(t, err, ErrTerrainTooDeep)
}

func TestEncodeTerrainRejectsMissingGeometry(t *testing.T) {
	_, err := EncodeTerrain(&Terrain{
		MeshletNodes: []MeshletNode{{Meshlets: []Meshlet{{MaterialIndex: 0}}}},
	})
	assert.ErrorIs(t, err, ErrInvalidTerrain)

	_, err = EncodeTerrain(&Terrain{
		Colliders: []ColliderNode{{Colliders: []collider.Shape{{Kind: collider.KindTriMesh}}}},
	})
	assert.ErrorIs(t, err, ErrInvalidTerrain)

	_, err = EncodeTerrain(nil)
	assert.ErrorIs(t, err, ErrInvalidTerrain)
}

func TestParseTerrainCorrupt(t *testing.T) {
	_, err := ParseTerrain([]byte("definitely not zstd"))
	assert.ErrorIs(t, err, ErrDecompress)

	_, err = ParseTerrain(nil)
	assert.ErrorIs(t, err, ErrDecompress)
}

func TestTerrainStats(t *testing.T) {
	s := createTestTerrain(t).Stats()

	assert.Equal(t, 2, s.MeshletNodes)
	assert.Equal(t, 2, s.ColliderNodes)
	assert.Equal(t, 1, s.Meshlets)
	assert.Equal(t, 4, s.Clusters) // 8 triangles, 2 per cluster
	assert.Equal(t, 2, s.Colliders)
	assert.Equal(t, 16, s.Triangles)
	assert.Equal(t, 2, s.MaxDepth)
}
