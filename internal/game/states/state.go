// Package states sequences the viewer through startup and in-game phases.
package states

// State is one phase of the viewer. Enter and Exit bracket the phase; Update
// runs once per tick and Render once per frame.
type State interface {
	Enter() error
	Exit() error
	Update(dt float64) error
	Render() error
	HandleInput(event any) error
}

// Manager holds the active phase. A Change takes effect at the start of the
// next Update, so a phase may request its successor from its own Update.
type Manager struct {
	current State
	next    State
}

func NewManager() *Manager {
	return &Manager{}
}

// Current returns the active phase, or nil before the first Update.
func (m *Manager) Current() State {
	return m.current
}

// Pending reports whether a phase change is queued.
func (m *Manager) Pending() bool {
	return m.next != nil
}

// Change queues next as the successor phase, replacing any queued one.
func (m *Manager) Change(next State) {
	m.next = next
}

// Update applies a queued change, then ticks the active phase.
func (m *Manager) Update(dt float64) error {
	if err := m.advance(); err != nil {
		return err
	}
	if m.current == nil {
		return nil
	}
	return m.current.Update(dt)
}

func (m *Manager) advance() error {
	if m.next == nil {
		return nil
	}
	if m.current != nil {
		if err := m.current.Exit(); err != nil {
			return err
		}
	}
	m.current, m.next = m.next, nil
	return m.current.Enter()
}

func (m *Manager) Render() error {
	if m.current == nil {
		return nil
	}
	return m.current.Render()
}

// HandleInput forwards event to the active phase.
func (m *Manager) HandleInput(event any) error {
	if m.current == nil {
		return nil
	}
	return m.current.HandleInput(event)
}
