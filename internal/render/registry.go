// Package render defines the registry that turns precomputed cluster
// geometry into renderable handles.
package render

import (
	"sort"
	"sync"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/meshlet"
)

// ClusterHandle identifies registered cluster geometry.
type ClusterHandle struct {
	ID    uint32
	Label string
}

// Valid reports whether the handle was issued by a registry.
func (h ClusterHandle) Valid() bool {
	return h.ID != 0
}

// Registry accepts cluster geometry for rendering.
type Registry interface {
	Register(label string, m *meshlet.Mesh) ClusterHandle
}

// MemoryRegistry keeps registered clusters in memory. Safe for concurrent use.
type MemoryRegistry struct {
	mu       sync.RWMutex
	next     uint32
	clusters map[uint32]*meshlet.Mesh
	labels   map[uint32]string
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		clusters: make(map[uint32]*meshlet.Mesh),
		labels:   make(map[uint32]string),
	}
}

// Register implements Registry.
func (r *MemoryRegistry) Register(label string, m *meshlet.Mesh) ClusterHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.clusters[r.next] = m
	r.labels[r.next] = label
	return ClusterHandle{ID: r.next, Label: label}
}

// Get returns the geometry behind a handle.
func (r *MemoryRegistry) Get(h ClusterHandle) (*meshlet.Mesh, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.clusters[h.ID]
	return m, ok
}

// Len returns the number of registered clusters.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clusters)
}

// Labels returns all labels in registration order.
func (r *MemoryRegistry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint32, 0, len(r.labels))
	for id := range r.labels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.labels[id]
	}
	return out
}
