package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/formats"
)

// writeProject writes a glTF plane and a descriptor naming it into dir.
func writeProject(t *testing.T, dir, name string) string {
	t.Helper()

	doc := gltf.NewDocument()
	attrs := map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}),
		"NORMAL":     modeler.WriteNormal(doc, [][3]float32{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}}),
		"TEXCOORD_0": modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}),
	}
	idx := modeler.WriteIndices(doc, []uint32{0, 2, 1, 0, 3, 2})
	doc.Materials = append(doc.Materials, &gltf.Material{Name: "ground"})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       "plane",
		Primitives: []*gltf.Primitive{{Attributes: attrs, Indices: gltf.Index(idx), Material: gltf.Index(0)}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "plane", Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	require.NoError(t, gltf.SaveBinary(doc, filepath.Join(dir, name+".glb")))

	desc, err := formats.SceneDescriptor{GltfPath: name + ".glb"}.Marshal()
	require.NoError(t, err)
	path := filepath.Join(dir, name+formats.DescriptorExtension)
	require.NoError(t, os.WriteFile(path, desc, 0o644))
	return path
}

func TestBuildInfoDumpVerify(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	a := writeProject(t, dir, "a")
	b := writeProject(t, dir, "b")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"build", "-level", "3", a, b}, &out))
	assert.Contains(t, out.String(), formats.ArtifactPath(a))
	assert.Contains(t, out.String(), formats.ArtifactPath(b))

	artifact := formats.ArtifactPath(a)
	require.FileExists(t, artifact)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"info", artifact}, &out))
	assert.Contains(t, out.String(), "Source:     a.glb")
	assert.Contains(t, out.String(), "Meshlets:   1")
	assert.Contains(t, out.String(), "Materials:  [0]")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"dump", artifact}, &out))
	assert.Contains(t, out.String(), "material 0: 1 clusters, 2 triangles")
	assert.Contains(t, out.String(), "trimesh: 2 triangles")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"verify", artifact}, &out))
	assert.Contains(t, out.String(), "ok (1 materials referenced, 1 in source)")
}

func TestBuildOutputDir(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	outDir := t.TempDir()
	desc := writeProject(t, dir, "island")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"build", "-o", outDir, desc}, &out))
	assert.FileExists(t, filepath.Join(outDir, "island"+formats.ArtifactExtension))
	assert.NoFileExists(t, formats.ArtifactPath(desc))
}

func TestBuildFailureWritesNothing(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	desc := filepath.Join(dir, "broken"+formats.DescriptorExtension)
	require.NoError(t, os.WriteFile(desc, []byte("gltf_path: missing.glb\n"), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), []string{"build", desc}, &out)
	require.Error(t, err)
	assert.NoFileExists(t, formats.ArtifactPath(desc))
}

func TestVerifyDetectsMissingSource(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	desc := writeProject(t, dir, "gone")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"build", desc}, &out))
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.glb")))

	assert.Error(t, run(context.Background(), []string{"verify", formats.ArtifactPath(desc)}, &out))
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(context.Background(), nil, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"bogus"}, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"info"}, &out), errUsage)
	assert.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "terrainc - meshlet terrain artifact tool")
}
