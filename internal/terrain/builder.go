package terrain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/formats"
)

// Builder produces terrain artifacts from descriptors.
type Builder struct {
	scenes    scene.Loader
	processor *Processor
	level     int
	log       *zap.Logger
}

// NewBuilder creates a builder that loads source scenes through scenes and
// compresses artifacts at level (<= 0 for the default).
func NewBuilder(scenes scene.Loader, processor *Processor, level int) *Builder {
	return &Builder{
		scenes:    scenes,
		processor: processor,
		level:     level,
		log:       logger.Named("terrain"),
	}
}

// BuildResult describes a written artifact.
type BuildResult struct {
	Output string
	Bytes  int
	Stats  formats.TerrainStats
}

// Process validates desc, loads its source scene with geometry and runs the
// processor over it.
func (b *Builder) Process(ctx context.Context, desc formats.SceneDescriptor) (*formats.Terrain, error) {
	if err := desc.Validate(); err != nil {
		return nil, &Error{Kind: KindConfiguration, Op: "build", Err: err}
	}

	s, err := b.scenes.Load(ctx, desc.GltfPath, scene.LoadFull)
	if err != nil {
		return nil, &Error{Kind: KindDependency, Op: "build", Path: desc.GltfPath, Err: err}
	}

	return b.processor.Process(ctx, s)
}

// Build processes desc and returns the compressed artifact bytes.
func (b *Builder) Build(ctx context.Context, desc formats.SceneDescriptor) ([]byte, error) {
	data, _, err := b.build(ctx, desc)
	return data, err
}

func (b *Builder) build(ctx context.Context, desc formats.SceneDescriptor) ([]byte, *formats.Terrain, error) {
	t, err := b.Process(ctx, desc)
	if err != nil {
		return nil, nil, err
	}

	data, err := formats.MarshalTerrain(t, b.level)
	if err != nil {
		return nil, nil, &Error{Kind: KindCodec, Op: "build", Path: desc.GltfPath, Err: err}
	}
	return data, t, nil
}

// BuildFile builds the descriptor at descPath and writes the artifact to
// outPath (or next to the descriptor when empty). Nothing is written unless
// the whole build succeeds.
func (b *Builder) BuildFile(ctx context.Context, descPath, outPath string) (*BuildResult, error) {
	desc, err := formats.LoadDescriptor(descPath)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Op: "build", Path: descPath, Err: err}
	}
	if outPath == "" {
		outPath = formats.ArtifactPath(descPath)
	}

	data, t, err := b.build(ctx, desc)
	if err != nil {
		return nil, err
	}

	if err := writeFileAtomic(outPath, data); err != nil {
		return nil, &Error{Kind: KindDependency, Op: "build", Path: outPath, Err: err}
	}

	b.log.Debug("Processed terrain asset written to disk",
		zap.String("descriptor", descPath),
		zap.String("output", outPath),
		zap.Int("bytes", len(data)))

	return &BuildResult{Output: outPath, Bytes: len(data), Stats: t.Stats()}, nil
}

// writeFileAtomic writes data to a temporary file beside path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".terrain-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting artifact permissions: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
