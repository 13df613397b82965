package terrain

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/66OJ66/meshlet-terrain-testing/internal/assets"
	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
)

// writeIsland saves a two-node glTF scene with a textured and a bare primitive.
func writeIsland(t *testing.T, dir string) {
	t.Helper()
	doc := gltf.NewDocument()

	var positions [][3]float32
	var normals [][3]float32
	var uvs [][2]float32
	var indices []uint32
	const n = 8
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			positions = append(positions, [3]float32{float32(x), float32((x * z) % 3), float32(z)})
			normals = append(normals, [3]float32{0, 1, 0})
			uvs = append(uvs, [2]float32{float32(x) / n, float32(z) / n})
		}
	}
	for z := uint32(0); z < n; z++ {
		for x := uint32(0); x < n; x++ {
			i := z*(n+1) + x
			indices = append(indices, i, i+n+1, i+1, i+1, i+n+1, i+n+2)
		}
	}

	attrs := map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, positions),
		"NORMAL":     modeler.WriteNormal(doc, normals),
		"TEXCOORD_0": modeler.WriteTextureCoord(doc, uvs),
	}
	idx := modeler.WriteIndices(doc, indices)

	doc.Materials = append(doc.Materials, &gltf.Material{Name: "sand"}, &gltf.Material{Name: "grass"})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "island",
		Primitives: []*gltf.Primitive{
			{Attributes: attrs, Indices: gltf.Index(idx), Material: gltf.Index(1)},
			{Attributes: map[string]uint32{"POSITION": attrs["POSITION"]}, Indices: gltf.Index(idx)},
		},
	})
	doc.Nodes = append(doc.Nodes,
		&gltf.Node{Name: "world", Children: []uint32{1}},
		&gltf.Node{Name: "island", Mesh: gltf.Index(0), Translation: [3]float32{0, -1, 0}},
	)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	require.NoError(t, gltf.SaveBinary(doc, filepath.Join(dir, "island.glb")))
}

func TestPipelineBuildAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeIsland(t, dir)
	descPath := writeDescriptor(t, dir, "default", "island.glb")

	mgr := assets.NewManager()
	require.NoError(t, mgr.AddRoot(dir))
	scenes := assets.NewSceneCache(scene.NewGLTFLoader(mgr.Resolve))

	res, err := NewBuilder(scenes, newTestProcessor(), 0).BuildFile(context.Background(), descPath, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.MeshletNodes)
	assert.Equal(t, 1, res.Stats.Meshlets)
	assert.Equal(t, 2, res.Stats.Colliders)
	assert.Equal(t, 2*8*8*2, res.Stats.Triangles)

	reg := render.NewMemoryRegistry()
	loader := NewLoader(scenes, reg)
	h := assets.Go(context.Background(), func(ctx context.Context) (*RuntimeScene, error) {
		data, err := mgr.Load(filepath.Base(res.Output))
		if err != nil {
			return nil, err
		}
		return loader.Load(ctx, data)
	})

	w := world.New()
	m := NewStartupManager(h, w)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, Loaded, m.Poll())

	rs, _ := h.Get()
	require.Len(t, rs.Surface, 1)
	island := rs.Surface[0].Children[0]
	require.Len(t, island.Clusters, 1)
	assert.Equal(t, "grass", island.Clusters[0].Material.Name)
	assert.Equal(t, []string{"meshlet1-1-0"}, reg.Labels())

	geometry, ok := reg.Get(island.Clusters[0].Cluster)
	require.True(t, ok)
	assert.Equal(t, 8*8*2, geometry.TriangleCount())
	assert.Len(t, geometry.Tangents, len(geometry.Positions))

	// one scene per policy was loaded through the cache
	assert.Equal(t, 2, scenes.Len())
}
