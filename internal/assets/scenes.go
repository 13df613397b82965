package assets

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
)

// SceneCache is a scene.Loader that caches loaded scenes per path and policy.
// Concurrent loads of the same key share one underlying load. Cached scenes
// are shared between callers and must be treated as read-only.
type SceneCache struct {
	loader scene.Loader
	group  singleflight.Group
	mu     sync.RWMutex
	scenes map[string]*scene.Scene
	log    *zap.Logger
}

// NewSceneCache wraps loader with a cache.
func NewSceneCache(loader scene.Loader) *SceneCache {
	return &SceneCache{
		loader: loader,
		scenes: make(map[string]*scene.Scene),
		log:    logger.Named("assets"),
	}
}

func sceneKey(path string, policy scene.Policy) string {
	return policy.String() + ":" + path
}

// Load implements scene.Loader. Failed loads are not cached.
func (c *SceneCache) Load(ctx context.Context, path string, policy scene.Policy) (*scene.Scene, error) {
	key := sceneKey(path, policy)

	c.mu.RLock()
	s, ok := c.scenes[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	// the shared load must outlive whichever caller started it
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.RLock()
		s, ok := c.scenes[key]
		c.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := c.loader.Load(loadCtx, path, policy)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.scenes[key] = s
		c.mu.Unlock()
		return s, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.log.Debug("scene load coalesced", zap.String("path", path), zap.Stringer("policy", policy))
	}
	return res.Val.(*scene.Scene), nil
}

// Evict drops every cached policy of path.
func (c *SceneCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range []scene.Policy{scene.LoadFull, scene.LoadMaterialsOnly} {
		delete(c.scenes, sceneKey(path, p))
	}
}

// Len returns the number of cached scenes.
func (c *SceneCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenes)
}
