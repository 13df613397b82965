package terrain

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/formats"
)

// Loader turns artifact bytes into runtime scenes.
type Loader struct {
	scenes   scene.Loader
	registry render.Registry
	log      *zap.Logger
}

// NewLoader creates a loader resolving materials through scenes and
// registering cluster geometry with registry.
func NewLoader(scenes scene.Loader, registry render.Registry) *Loader {
	return &Loader{
		scenes:   scenes,
		registry: registry,
		log:      logger.Named("terrain"),
	}
}

// Load decodes an artifact, reloads its source scene with materials only and
// reconstructs the runtime scene, strictly in that order.
func (l *Loader) Load(ctx context.Context, data []byte) (*RuntimeScene, error) {
	t, err := formats.ParseTerrain(data)
	if err != nil {
		return nil, &Error{Kind: KindCodec, Op: "load", Err: err}
	}

	// the artifact already carries cluster geometry; only materials are needed
	src, err := l.scenes.Load(ctx, t.GltfPath, scene.LoadMaterialsOnly)
	if err != nil {
		return nil, &Error{Kind: KindDependency, Op: "load", Path: t.GltfPath, Err: err}
	}

	rs := Reconstruct(t, src, l.registry)

	stats := t.Stats()
	l.log.Debug("terrain loaded",
		zap.String("source", t.GltfPath),
		zap.Int("nodes", stats.MeshletNodes),
		zap.Int("meshlets", stats.Meshlets),
		zap.Int("colliders", stats.Colliders))
	return rs, nil
}

// LoadFile reads an artifact from disk and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*RuntimeScene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: KindDependency, Op: "load", Path: path, Err: err}
	}

	rs, err := l.Load(ctx, data)
	return rs, WithPath(err, path)
}
