package game

import (
	"context"
	"errors"
	"testing"

	"github.com/66OJ66/meshlet-terrain-testing/internal/config"
	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/terrain"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

func headlessConfig() *config.Config {
	cfg := config.Default()
	cfg.Graphics.Headless = true
	cfg.Startup.TickRate = 1000
	cfg.Startup.MaxTicks = 5000
	return cfg
}

func TestHeadlessReachesInGame(t *testing.T) {
	var gotReg render.Registry
	load := func(ctx context.Context, reg render.Registry) (*terrain.RuntimeScene, error) {
		gotReg = reg
		return &terrain.RuntimeScene{
			Surface: []*terrain.SurfaceNode{{Transform: geom.Identity()}},
		}, nil
	}

	g, err := New(headlessConfig(), load)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !g.InGame() {
		t.Error("InGame() = false after Run")
	}
	if g.World().Len() != 2 {
		t.Errorf("world has %d entities, want 2", g.World().Len())
	}
	if _, ok := gotReg.(*render.MemoryRegistry); !ok {
		t.Errorf("headless registry = %T, want *render.MemoryRegistry", gotReg)
	}
}

func TestHeadlessFailedStartupExhaustsBudget(t *testing.T) {
	errBoom := errors.New("boom")
	cfg := headlessConfig()
	cfg.Startup.MaxTicks = 20

	g, err := New(cfg, func(ctx context.Context, reg render.Registry) (*terrain.RuntimeScene, error) {
		return nil, errBoom
	})
	if err != nil {
		t.Fatal(err)
	}

	err = g.Run(context.Background())
	if !errors.Is(err, ErrStartupIncomplete) {
		t.Errorf("Run() = %v, want ErrStartupIncomplete", err)
	}
	if g.InGame() {
		t.Error("reached InGame after a failed load")
	}
}

func TestHeadlessCancel(t *testing.T) {
	cfg := headlessConfig()
	cfg.Startup.MaxTicks = 0
	block := make(chan struct{})
	defer close(block)

	g, err := New(cfg, func(ctx context.Context, reg render.Registry) (*terrain.RuntimeScene, error) {
		<-block
		return nil, errors.New("unreachable")
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestNewAssetManagerMissingRoot(t *testing.T) {
	cfg := headlessConfig()
	cfg.Assets.Roots = []string{t.TempDir() + "/missing"}
	if _, err := NewAssetManager(cfg); err == nil {
		t.Error("NewAssetManager() succeeded with a missing root")
	}
}

func TestTerrainLoadMissingArtifact(t *testing.T) {
	cfg := headlessConfig()
	cfg.Assets.Roots = []string{t.TempDir()}
	mgr, err := NewAssetManager(cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = TerrainLoad(cfg, mgr)(context.Background(), render.NewMemoryRegistry())
	if !errors.Is(err, terrain.ErrDependency) {
		t.Errorf("load error = %v, want a dependency error", err)
	}
	var te *terrain.Error
	if !errors.As(err, &te) || te.Path != cfg.Assets.Terrain {
		t.Errorf("error path = %v, want %q", err, cfg.Assets.Terrain)
	}
}

func TestTerrainLoadCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	cfg := headlessConfig()
	cfg.Assets.Roots = []string{dir}
	writeFile(t, dir, cfg.Assets.Terrain, []byte("not a terrain"))

	mgr, err := NewAssetManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = TerrainLoad(cfg, mgr)(context.Background(), render.NewMemoryRegistry())
	if !errors.Is(err, terrain.ErrCodec) {
		t.Errorf("load error = %v, want a codec error", err)
	}
	var te *terrain.Error
	if errors.As(err, &te) && te.Path != cfg.Assets.Terrain {
		t.Errorf("error path = %q, want %q", te.Path, cfg.Assets.Terrain)
	}
}
