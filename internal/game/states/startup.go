package states

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/assets"
	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/terrain"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
)

// LoadFunc produces the runtime terrain. It runs off the tick goroutine.
type LoadFunc func(ctx context.Context) (*terrain.RuntimeScene, error)

// StartupStateConfig contains configuration for the startup state.
type StartupStateConfig struct {
	Load   LoadFunc
	World  *world.World
	Drawer Drawer // handed to InGameState
}

// StartupState waits for the startup terrain and then moves to InGameState.
// A failed load leaves the application in this state.
type StartupState struct {
	config  StartupStateConfig
	manager *Manager
	log     *zap.Logger

	handle   *assets.Handle[*terrain.RuntimeScene]
	startup  *terrain.StartupManager
	reported bool
	changed  bool

	startTime time.Time
}

// NewStartupState creates a new startup state.
func NewStartupState(cfg StartupStateConfig, manager *Manager) *StartupState {
	if cfg.World == nil {
		cfg.World = world.New()
	}
	return &StartupState{
		config:  cfg,
		manager: manager,
		log:     logger.Named("startup"),
	}
}

// Enter requests the terrain load.
func (s *StartupState) Enter() error {
	s.startTime = time.Now()
	s.log.Info("entering StartupState")

	s.handle = assets.Go(context.Background(), func(ctx context.Context) (*terrain.RuntimeScene, error) {
		return s.config.Load(ctx)
	})
	s.startup = terrain.NewStartupManager(s.handle, s.config.World)
	return nil
}

// Exit is called when leaving this state.
func (s *StartupState) Exit() error {
	return nil
}

// Update polls the terrain readiness once.
func (s *StartupState) Update(dt float64) error {
	switch s.startup.Poll() {
	case terrain.Loaded:
		if !s.changed {
			s.changed = true
			s.log.Info("All startup assets loaded. Progressing to InGame",
				zap.Duration("elapsed", time.Since(s.startTime)))
			s.manager.Change(NewInGameState(s.config.World, s.startup.Root(), s.config.Drawer))
		}
	case terrain.Failed:
		if !s.reported {
			s.reported = true
			s.log.Error("startup stalled", zap.Error(s.startup.Err()))
		}
	}
	return nil
}

// Render is called every frame.
func (s *StartupState) Render() error {
	return nil
}

// HandleInput processes input events.
func (s *StartupState) HandleInput(event any) error {
	return nil
}

// Readiness returns the terrain readiness without polling.
func (s *StartupState) Readiness() terrain.ReadinessState {
	if s.startup == nil {
		return terrain.Loading
	}
	return s.startup.State()
}

// Err returns the load failure, if any.
func (s *StartupState) Err() error {
	if s.startup == nil {
		return nil
	}
	return s.startup.Err()
}
