package states

import (
	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
)

// Drawer draws the world each frame.
type Drawer interface {
	Draw(w *world.World) error
}

// InputHandler is implemented by drawers that react to input (camera control).
type InputHandler interface {
	HandleInput(event any) error
}

// InGameState runs once the terrain is spawned.
type InGameState struct {
	world  *world.World
	root   world.EntityID
	drawer Drawer

	// Ticks counts updates since entering.
	Ticks int
}

// NewInGameState creates the in-game state. drawer may be nil (headless).
func NewInGameState(w *world.World, root world.EntityID, drawer Drawer) *InGameState {
	return &InGameState{world: w, root: root, drawer: drawer}
}

// Enter is called when entering this state.
func (s *InGameState) Enter() error {
	logger.Info("entering InGameState",
		zap.Uint32("terrain", uint32(s.root)),
		zap.Int("entities", s.world.Len()))
	return nil
}

// Exit is called when leaving this state.
func (s *InGameState) Exit() error {
	return nil
}

// Update is called every tick.
func (s *InGameState) Update(dt float64) error {
	s.Ticks++
	return nil
}

// Render draws the world through the drawer.
func (s *InGameState) Render() error {
	if s.drawer == nil {
		return nil
	}
	return s.drawer.Draw(s.world)
}

// HandleInput forwards input to the drawer when it accepts it.
func (s *InGameState) HandleInput(event any) error {
	if h, ok := s.drawer.(InputHandler); ok {
		return h.HandleInput(event)
	}
	return nil
}

// World returns the world.
func (s *InGameState) World() *world.World {
	return s.world
}

// Root returns the terrain root entity.
func (s *InGameState) Root() world.EntityID {
	return s.root
}
