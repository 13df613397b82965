package renderer

import (
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/meshlet"
)

// floats per interleaved vertex: position, normal
const vertexStride = 6

type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
	min, max      mgl32.Vec3
}

type upload struct {
	id       uint32
	label    string
	vertices []float32
	indices  []uint32
	min, max mgl32.Vec3
}

// GLRegistry registers clusters for drawing. Register may be called from any
// goroutine; the GPU upload happens on the next Flush, which must run on the
// GL thread.
type GLRegistry struct {
	mu      sync.Mutex
	next    uint32
	pending []upload
	meshes  map[uint32]*gpuMesh
	log     *zap.Logger
}

// NewGLRegistry creates an empty registry.
func NewGLRegistry() *GLRegistry {
	return &GLRegistry{
		meshes: make(map[uint32]*gpuMesh),
		log:    logger.Named("renderer"),
	}
}

// Register implements render.Registry. The vertex data is prepared here so
// Flush only copies.
func (r *GLRegistry) Register(label string, m *meshlet.Mesh) render.ClusterHandle {
	lo, hi := bounds(m.Positions)
	u := upload{
		label:    label,
		vertices: interleave(m),
		indices:  m.Indices(),
		min:      lo,
		max:      hi,
	}

	r.mu.Lock()
	r.next++
	u.id = r.next
	r.pending = append(r.pending, u)
	r.mu.Unlock()

	return render.ClusterHandle{ID: u.id, Label: label}
}

// Pending returns the number of clusters waiting for upload.
func (r *GLRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush uploads every pending cluster.
func (r *GLRegistry) Flush() {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, u := range batch {
		if len(u.indices) == 0 {
			continue
		}
		gm := &gpuMesh{count: int32(len(u.indices)), min: u.min, max: u.max}

		gl.GenVertexArrays(1, &gm.vao)
		gl.BindVertexArray(gm.vao)

		gl.GenBuffers(1, &gm.vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, gm.vbo)
		gl.BufferData(gl.ARRAY_BUFFER, len(u.vertices)*4, unsafe.Pointer(&u.vertices[0]), gl.STATIC_DRAW)

		gl.GenBuffers(1, &gm.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gm.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(u.indices)*4, unsafe.Pointer(&u.indices[0]), gl.STATIC_DRAW)

		// Position (location = 0)
		gl.VertexAttribPointer(0, 3, gl.FLOAT, false, vertexStride*4, nil)
		gl.EnableVertexAttribArray(0)
		// Normal (location = 1)
		gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, vertexStride*4, 3*4)
		gl.EnableVertexAttribArray(1)

		gl.BindVertexArray(0)

		r.meshes[u.id] = gm
		r.log.Debug("cluster uploaded",
			zap.String("label", u.label),
			zap.Uint32("vao", gm.vao),
			zap.Int32("indices", gm.count),
		)
	}
}

func (r *GLRegistry) mesh(h render.ClusterHandle) (*gpuMesh, bool) {
	gm, ok := r.meshes[h.ID]
	return gm, ok
}

// Len returns the number of uploaded clusters.
func (r *GLRegistry) Len() int {
	return len(r.meshes)
}

// Delete releases all GPU buffers. GL thread only.
func (r *GLRegistry) Delete() {
	for id, gm := range r.meshes {
		gl.DeleteVertexArrays(1, &gm.vao)
		gl.DeleteBuffers(1, &gm.vbo)
		gl.DeleteBuffers(1, &gm.ebo)
		delete(r.meshes, id)
	}
}

// interleave packs position and normal per vertex. Missing normals point up.
func interleave(m *meshlet.Mesh) []float32 {
	out := make([]float32, 0, len(m.Positions)*vertexStride)
	for i, p := range m.Positions {
		n := [3]float32{0, 1, 0}
		if i < len(m.Normals) {
			n = m.Normals[i]
		}
		out = append(out, p[0], p[1], p[2], n[0], n[1], n[2])
	}
	return out
}

func bounds(positions [][3]float32) (lo, hi mgl32.Vec3) {
	if len(positions) == 0 {
		return
	}
	lo, hi = positions[0], positions[0]
	for _, p := range positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return
}
