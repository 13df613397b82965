// Package renderer draws spawned terrain with OpenGL.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/camera"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/input"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/lighting"
	"github.com/66OJ66/meshlet-terrain-testing/internal/engine/shader"
	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
)

const vertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;

uniform mat4 uModel;
uniform mat4 uViewProj;

out vec3 vNormal;

void main() {
	vNormal = mat3(uModel) * aNormal;
	gl_Position = uViewProj * uModel * vec4(aPos, 1.0);
}
`

const fragmentShader = `
#version 410 core

in vec3 vNormal;

uniform vec4 uBaseColor;
uniform vec3 uSunDir;
uniform vec3 uSunColor;
uniform float uAmbient;

out vec4 FragColor;

void main() {
	float diffuse = max(dot(normalize(vNormal), uSunDir), 0.0);
	vec3 light = uSunColor * (uAmbient + (1.0 - uAmbient) * diffuse);
	FragColor = vec4(uBaseColor.rgb * light, uBaseColor.a);
}
`

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config   Config
	program  *shader.Program
	registry *GLRegistry
	camera   *camera.OrbitCamera
	sun      lighting.Sun
	log      *zap.Logger

	framed   bool
	dragging bool
}

// New creates a new renderer. Must be called after the GL context exists.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config:   cfg,
		registry: NewGLRegistry(),
		camera:   camera.NewOrbitCamera(),
		sun:      lighting.DefaultSun(),
		log:      logger.Named("renderer"),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	var err error
	r.program, err = shader.New(vertexShader, fragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))
	return r, nil
}

// Registry returns the cluster registry to hand to the terrain loader.
func (r *Renderer) Registry() *GLRegistry {
	return r.registry
}

// Camera returns the viewer camera.
func (r *Renderer) Camera() *camera.OrbitCamera {
	return r.camera
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	r.registry.Delete()
	if r.program != nil {
		r.program.Delete()
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Begin uploads newly registered clusters and clears the frame.
func (r *Renderer) Begin() {
	r.registry.Flush()
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// End finishes the current frame.
func (r *Renderer) End() {}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	if len(pixels) == 0 {
		return pixels, w, h
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// Draw renders every renderable entity of w.
func (r *Renderer) Draw(w *world.World) error {
	type item struct {
		mesh  *gpuMesh
		model mgl32.Mat4
		color [4]float32
	}
	var items []item
	w.Walk(func(id world.EntityID, e world.Entity, global mgl32.Mat4) {
		if e.Renderable == nil {
			return
		}
		gm, ok := r.registry.mesh(e.Renderable.Cluster)
		if !ok {
			return
		}
		color := [4]float32{1, 1, 1, 1}
		if e.Renderable.Material != nil {
			color = e.Renderable.Material.BaseColor
		}
		items = append(items, item{mesh: gm, model: global, color: color})
	})
	if len(items) == 0 {
		return nil
	}

	if !r.framed {
		lo := mgl32.Vec3{float32(1e30), 1e30, 1e30}
		hi := lo.Mul(-1)
		for _, it := range items {
			for _, c := range []mgl32.Vec3{it.mesh.min, it.mesh.max} {
				p := mgl32.TransformCoordinate(c, it.model)
				for k := 0; k < 3; k++ {
					lo[k] = min(lo[k], p[k])
					hi[k] = max(hi[k], p[k])
				}
			}
		}
		r.camera.FitToBounds(lo, hi)
		r.framed = true
	}

	r.program.Use()
	viewProj := r.camera.ProjectionMatrix(r.config.Width, r.config.Height).Mul4(r.camera.ViewMatrix())
	r.program.SetMat4("uViewProj", viewProj)
	r.program.SetVec3("uSunDir", r.sun.Direction())
	r.program.SetVec3("uSunColor", r.sun.Color)
	r.program.SetFloat("uAmbient", r.sun.Ambient)

	for _, it := range items {
		r.program.SetMat4("uModel", it.model)
		r.program.SetVec4("uBaseColor", it.color)
		gl.BindVertexArray(it.mesh.vao)
		gl.DrawElements(gl.TRIANGLES, it.mesh.count, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
	return nil
}

// HandleInput drives the camera: left-drag orbits, the wheel zooms and
// WASD/QE pan.
func (r *Renderer) HandleInput(event any) error {
	ev, ok := event.(input.Event)
	if !ok {
		return nil
	}
	switch ev.Type {
	case input.EventMouseDown:
		r.dragging = ev.Button == sdl.BUTTON_LEFT
	case input.EventMouseUp:
		r.dragging = false
	case input.EventMouseMove:
		if r.dragging {
			r.camera.HandleDrag(float32(ev.DeltaX), float32(ev.DeltaY))
		}
	case input.EventMouseWheel:
		r.camera.HandleZoom(float32(ev.DeltaY))
	case input.EventKeyDown:
		switch ev.Key {
		case sdl.SCANCODE_W:
			r.camera.HandleMovement(1, 0, 0)
		case sdl.SCANCODE_S:
			r.camera.HandleMovement(-1, 0, 0)
		case sdl.SCANCODE_A:
			r.camera.HandleMovement(0, -1, 0)
		case sdl.SCANCODE_D:
			r.camera.HandleMovement(0, 1, 0)
		case sdl.SCANCODE_E:
			r.camera.HandleMovement(0, 0, 1)
		case sdl.SCANCODE_Q:
			r.camera.HandleMovement(0, 0, -1)
		}
	}
	return nil
}
