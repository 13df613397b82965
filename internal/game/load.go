package game

import (
	"context"

	"github.com/66OJ66/meshlet-terrain-testing/internal/assets"
	"github.com/66OJ66/meshlet-terrain-testing/internal/config"
	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/internal/terrain"
)

// NewAssetManager creates an asset manager over the configured roots.
func NewAssetManager(cfg *config.Config) (*assets.Manager, error) {
	mgr := assets.NewManager()
	for _, root := range cfg.Assets.Roots {
		if err := mgr.AddRoot(root); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// TerrainLoad returns a LoadFunc that reads the configured artifact through
// mgr and reconstructs it against its source scene.
func TerrainLoad(cfg *config.Config, mgr *assets.Manager) LoadFunc {
	scenes := assets.NewSceneCache(scene.NewGLTFLoader(mgr.Resolve))
	path := cfg.Assets.Terrain

	return func(ctx context.Context, reg render.Registry) (*terrain.RuntimeScene, error) {
		data, err := mgr.Load(path)
		if err != nil {
			return nil, &terrain.Error{Kind: terrain.KindDependency, Op: "load", Path: path, Err: err}
		}
		rs, err := terrain.NewLoader(scenes, reg).Load(ctx, data)
		return rs, terrain.WithPath(err, path)
	}
}
