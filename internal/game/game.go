// Package game runs the application tick loop over the startup and in-game
// phases.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/config"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/debug"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/input"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/renderer"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/window"
	"github.com/66OJ66/meshlet-terrain-testing/internal/game/states"
	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/terrain"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
)

// ErrStartupIncomplete is returned by a headless run that used up its tick
// budget before reaching the in-game phase.
var ErrStartupIncomplete = errors.New("startup did not complete")

// LoadFunc produces the startup terrain, registering clusters with reg.
type LoadFunc func(ctx context.Context, reg render.Registry) (*terrain.RuntimeScene, error)

// Game is the main application instance.
type Game struct {
	config  *config.Config
	states  *states.Manager
	startup *states.StartupState
	world   *world.World
	log     *zap.Logger

	// nil when headless
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	shots    *debug.Screenshots

	screenshot bool

	// Registry receives the terrain clusters.
	Registry render.Registry
	running  bool
}

// New creates the game. Headless mode registers clusters in memory and
// opens no window.
func New(cfg *config.Config, load LoadFunc) (*Game, error) {
	g := &Game{
		config: cfg,
		states: states.NewManager(),
		world:  world.New(),
		log:    logger.Named("game"),
	}

	g.log.Info("initializing game",
		zap.Bool("headless", cfg.Graphics.Headless),
		zap.String("terrain", cfg.Assets.Terrain),
	)

	var drawer states.Drawer
	if cfg.Graphics.Headless {
		g.Registry = render.NewMemoryRegistry()
	} else {
		if err := g.openWindow(); err != nil {
			return nil, err
		}
		g.Registry = g.renderer.Registry()
		drawer = g.renderer
	}

	reg := g.Registry
	g.startup = states.NewStartupState(states.StartupStateConfig{
		World:  g.world,
		Drawer: drawer,
		Load: func(ctx context.Context) (*terrain.RuntimeScene, error) {
			return load(ctx, reg)
		},
	}, g.states)
	g.states.Change(g.startup)

	return g, nil
}

func (g *Game) openWindow() error {
	gc := g.config.Graphics

	var err error
	g.window, err = window.New(window.Config{
		Title:      "Meshlet Terrain",
		Width:      gc.Width,
		Height:     gc.Height,
		Fullscreen: gc.Fullscreen,
		VSync:      gc.VSync,
	})
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer after the window: the GL context must exist
	g.renderer, err = renderer.New(renderer.Config{Width: gc.Width, Height: gc.Height})
	if err != nil {
		g.window.Close()
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	g.input = input.New()
	g.shots = debug.NewScreenshots("screenshots", "terrain")
	return nil
}

// World returns the world the terrain spawns into.
func (g *Game) World() *world.World {
	return g.world
}

// InGame reports whether startup has completed.
func (g *Game) InGame() bool {
	_, ok := g.states.Current().(*states.InGameState)
	return ok
}

// Run starts the main loop.
func (g *Game) Run(ctx context.Context) error {
	if g.window == nil {
		return g.runHeadless(ctx)
	}
	return g.runWindowed(ctx)
}

// runHeadless ticks at the configured rate until the in-game phase starts.
func (g *Game) runHeadless(ctx context.Context) error {
	rate := max(g.config.Startup.TickRate, 1)
	interval := time.Second / time.Duration(rate)
	dt := interval.Seconds()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.log.Info("starting headless loop", zap.Int("tick_rate", rate), zap.Int("max_ticks", g.config.Startup.MaxTicks))

	for ticks := 1; ; ticks++ {
		if err := g.states.Update(dt); err != nil {
			return fmt.Errorf("update error: %w", err)
		}
		if g.InGame() {
			g.log.Info("startup complete", zap.Int("ticks", ticks), zap.Int("entities", g.world.Len()))
			return nil
		}
		if limit := g.config.Startup.MaxTicks; limit > 0 && ticks >= limit {
			if err := g.startup.Err(); err != nil {
				return fmt.Errorf("%w after %d ticks: %w", ErrStartupIncomplete, ticks, err)
			}
			return fmt.Errorf("%w after %d ticks", ErrStartupIncomplete, ticks)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Game) runWindowed(ctx context.Context) error {
	g.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	g.log.Info("starting game loop")

	for g.running {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		if g.input.Update() {
			g.running = false
			break
		}

		for _, event := range g.input.Events() {
			switch event.Type {
			case input.EventWindowResize:
				g.renderer.Resize(event.Width, event.Height)
			case input.EventKeyDown:
				switch event.Key {
				case sdl.SCANCODE_ESCAPE:
					g.running = false
				case sdl.SCANCODE_F12:
					g.screenshot = true
				}
			}
			if err := g.states.HandleInput(event); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
		}

		if err := g.states.Update(dt); err != nil {
			return fmt.Errorf("update error: %w", err)
		}

		g.renderer.Begin()
		if err := g.states.Render(); err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		if g.screenshot {
			g.screenshot = false
			g.saveScreenshot()
		}
		g.renderer.End()

		g.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			g.log.Debug("fps", zap.Int("count", frameCount), zap.String("dt", fmt.Sprintf("%.2fms", dt*1000)))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (g *Game) saveScreenshot() {
	pixels, w, h := g.renderer.ReadPixels()
	path, err := g.shots.Save(pixels, w, h)
	if err != nil {
		g.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	g.log.Info("screenshot saved", zap.String("path", path))
}

// Close cleans up game resources.
func (g *Game) Close() {
	g.log.Info("closing game")

	if g.renderer != nil {
		g.renderer.Close()
	}
	if g.window != nil {
		g.window.Close()
	}
}
