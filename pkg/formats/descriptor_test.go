package formats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte("gltf_path: terrain/island.glb\n"))
	require.NoError(t, err)
	assert.Equal(t, "terrain/island.glb", d.GltfPath)
}

func TestParseDescriptorMissingPath(t *testing.T) {
	for _, input := range []string{"", "gltf_path: \"\"\n", "gltf_path: \"   \"\n"} {
		_, err := ParseDescriptor([]byte(input))
		assert.ErrorIs(t, err, ErrMissingSourcePath, "input %q", input)
	}
}

func TestParseDescriptorUnknownField(t *testing.T) {
	_, err := ParseDescriptor([]byte("gltf_pth: terrain.glb\n"))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestParseDescriptorSyntaxError(t *testing.T) {
	_, err := ParseDescriptor([]byte("gltf_path: [unterminated\n"))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestDescriptorMarshalRoundTrip(t *testing.T) {
	want := SceneDescriptor{GltfPath: "maps/default.gltf"}
	data, err := want.Marshal()
	require.NoError(t, err)

	got, err := ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default"+DescriptorExtension)
	require.NoError(t, os.WriteFile(path, []byte("gltf_path: default.glb\n"), 0644))

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "default.glb", d.GltfPath)

	_, err = LoadDescriptor(filepath.Join(t.TempDir(), "missing.terrain.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, "maps/default.terrain.bin", ArtifactPath("maps/default.terrain.yaml"))
	assert.Equal(t, "other.terrain.bin", ArtifactPath("other"))
}
