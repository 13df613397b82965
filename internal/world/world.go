// Package world holds the live entities spawned from loaded terrain.
package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/collider"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

// World errors.
var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrHasParent     = errors.New("entity already has a parent")
	ErrCycle         = errors.New("entity would become its own ancestor")
)

// EntityID identifies a spawned entity. Zero is never issued.
type EntityID uint32

// RigidBodyKind is the simulation mode of a physics body.
type RigidBodyKind uint8

const (
	BodyFixed RigidBodyKind = iota
	BodyDynamic
	BodyKinematic
)

// Renderable binds registered cluster geometry to a material.
type Renderable struct {
	Cluster  render.ClusterHandle
	Material *scene.Material
}

// Body is a physics body with a collision shape.
type Body struct {
	Kind     RigidBodyKind
	Collider *collider.Shape
}

// Entity is a bag of optional components.
type Entity struct {
	Name       string
	Transform  geom.Transform
	Renderable *Renderable
	Body       *Body
}

type record struct {
	Entity
	parent   EntityID
	children []EntityID
}

// World stores entities and their parent/child links. Safe for concurrent use.
type World struct {
	mu       sync.RWMutex
	next     EntityID
	entities map[EntityID]*record
	roots    []EntityID
}

// New creates an empty world.
func New() *World {
	return &World{entities: make(map[EntityID]*record)}
}

// Spawn adds a root entity and returns its id.
func (w *World) Spawn(e Entity) EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	w.entities[w.next] = &record{Entity: e}
	w.roots = append(w.roots, w.next)
	return w.next
}

// AttachChild makes child a child of parent. The child must be a root.
func (w *World) AttachChild(parent, child EntityID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.entities[parent]
	if !ok {
		return fmt.Errorf("%w: parent %d", ErrUnknownEntity, parent)
	}
	c, ok := w.entities[child]
	if !ok {
		return fmt.Errorf("%w: child %d", ErrUnknownEntity, child)
	}
	if c.parent != 0 {
		return fmt.Errorf("%w: %d", ErrHasParent, child)
	}
	for id := parent; id != 0; id = w.entities[id].parent {
		if id == child {
			return ErrCycle
		}
	}

	c.parent = parent
	p.children = append(p.children, child)
	for i, id := range w.roots {
		if id == child {
			w.roots = append(w.roots[:i], w.roots[i+1:]...)
			break
		}
	}
	return nil
}

// SpawnChild spawns e and attaches it under parent.
func (w *World) SpawnChild(parent EntityID, e Entity) (EntityID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.entities[parent]
	if !ok {
		return 0, fmt.Errorf("%w: parent %d", ErrUnknownEntity, parent)
	}
	w.next++
	w.entities[w.next] = &record{Entity: e, parent: parent}
	p.children = append(p.children, w.next)
	return w.next, nil
}

// Get returns a copy of an entity.
func (w *World) Get(id EntityID) (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return r.Entity, true
}

// Parent returns the parent of id, or 0 for roots.
func (w *World) Parent(id EntityID) EntityID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if r, ok := w.entities[id]; ok {
		return r.parent
	}
	return 0
}

// Children returns the children of id in attach order.
func (w *World) Children(id EntityID) []EntityID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.entities[id]
	if !ok {
		return nil
	}
	return append([]EntityID(nil), r.children...)
}

// Roots returns the parent-less entities in spawn order.
func (w *World) Roots() []EntityID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]EntityID(nil), w.roots...)
}

// GlobalTransform composes the transforms from the root down to id.
func (w *World) GlobalTransform(id EntityID) mgl32.Mat4 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	m := mgl32.Ident4()
	for r, ok := w.entities[id]; ok; r, ok = w.entities[r.parent] {
		m = r.Transform.Matrix().Mul4(m)
	}
	return m
}

// Walk visits every entity depth-first from the roots, parents before
// children, with the entity's global transform. fn must not call back into w.
func (w *World) Walk(fn func(id EntityID, e Entity, global mgl32.Mat4)) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var walk func(ids []EntityID, parent mgl32.Mat4)
	walk = func(ids []EntityID, parent mgl32.Mat4) {
		for _, id := range ids {
			r := w.entities[id]
			global := parent.Mul4(r.Transform.Matrix())
			fn(id, r.Entity, global)
			walk(r.children, global)
		}
	}
	walk(w.roots, mgl32.Ident4())
}

// Len returns the number of entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}
