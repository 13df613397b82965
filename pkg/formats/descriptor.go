package formats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File extensions for descriptors and the artifacts built from them.
const (
	DescriptorExtension = ".terrain.yaml"
	ArtifactExtension   = ".terrain.bin"
)

// Descriptor errors.
var (
	ErrMissingSourcePath = errors.New("no path specified for terrain")
	ErrInvalidDescriptor = errors.New("invalid terrain descriptor")
)

// SceneDescriptor names the source scene a terrain artifact is built from.
type SceneDescriptor struct {
	GltfPath string `yaml:"gltf_path"`
}

// Validate checks the descriptor names a source scene.
func (d SceneDescriptor) Validate() error {
	if strings.TrimSpace(d.GltfPath) == "" {
		return ErrMissingSourcePath
	}
	return nil
}

// Marshal encodes the descriptor as YAML.
func (d SceneDescriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// ParseDescriptor parses and validates a YAML descriptor.
// Unknown keys are rejected so typos do not silently yield an empty path.
func ParseDescriptor(data []byte) (SceneDescriptor, error) {
	var d SceneDescriptor

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return SceneDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	if err := d.Validate(); err != nil {
		return SceneDescriptor{}, err
	}
	return d, nil
}

// LoadDescriptor reads and parses a descriptor file.
func LoadDescriptor(path string) (SceneDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SceneDescriptor{}, fmt.Errorf("reading descriptor: %w", err)
	}
	return ParseDescriptor(data)
}

// ArtifactPath returns the artifact path for a descriptor path:
// "maps/default.terrain.yaml" becomes "maps/default.terrain.bin".
func ArtifactPath(descriptorPath string) string {
	base := strings.TrimSuffix(descriptorPath, DescriptorExtension)
	return base + ArtifactExtension
}
