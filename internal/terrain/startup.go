package terrain

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/assets"
	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
)

// ReadinessState is the startup progress of the terrain.
type ReadinessState int

const (
	Loading ReadinessState = iota
	Loaded
	Failed
)

func (s ReadinessState) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("ReadinessState(%d)", int(s))
	}
}

// ErrEmptyLoad reports a load that completed without a runtime scene.
var ErrEmptyLoad = errors.New("terrain load completed without a scene")

// StartupManager gates startup on the terrain load. Poll it once per tick;
// it never blocks. Loaded and Failed are terminal.
type StartupManager struct {
	handle *assets.Handle[*RuntimeScene]
	world  *world.World
	state  ReadinessState
	root   world.EntityID
	err    error
	log    *zap.Logger
}

// NewStartupManager watches handle and spawns its result into w once loaded.
func NewStartupManager(handle *assets.Handle[*RuntimeScene], w *world.World) *StartupManager {
	return &StartupManager{
		handle: handle,
		world:  w,
		log:    logger.Named("startup"),
	}
}

// Poll advances the state machine by at most one transition.
func (m *StartupManager) Poll() ReadinessState {
	if m.state != Loading {
		return m.state
	}

	switch m.handle.LoadState() {
	case assets.StateFailed:
		m.fail(m.handle.Err())
	case assets.StateLoaded:
		rs, ok := m.handle.Get()
		if !ok || rs == nil {
			m.fail(&Error{Kind: KindDependency, Op: "load", Err: ErrEmptyLoad})
			return m.state
		}
		root, err := Spawn(m.world, rs)
		if err != nil {
			m.fail(err)
			return m.state
		}
		m.root = root
		m.state = Loaded
		m.log.Info("terrain spawned", zap.Uint32("root", uint32(root)), zap.Int("entities", m.world.Len()))
	}
	return m.state
}

func (m *StartupManager) fail(err error) {
	m.err = err
	m.state = Failed
	m.log.Error("terrain failed to load", zap.Error(err))
}

// State returns the current state without polling.
func (m *StartupManager) State() ReadinessState {
	return m.state
}

// Err returns the failure cause once Failed.
func (m *StartupManager) Err() error {
	return m.err
}

// Root returns the spawned terrain root once Loaded.
func (m *StartupManager) Root() world.EntityID {
	return m.root
}
