package terrain

import (
	"context"
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

// quad returns a unit quad on the XZ plane without tangents.
func quad(offset float32) *geom.Mesh {
	return &geom.Mesh{
		Positions: [][3]float32{{offset, 0, 0}, {offset + 1, 0, 0}, {offset, 0, 1}, {offset + 1, 0, 1}},
		Normals:   [][3]float32{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		Indices:   []uint32{0, 2, 1, 1, 2, 3},
	}
}

func meshRef(i int) *int { return &i }

// sceneLoader is an in-memory scene.Loader that records its calls.
type sceneLoader struct {
	mu     sync.Mutex
	scenes map[string]*scene.Scene
	err    error
	calls  []loadCall
}

type loadCall struct {
	path   string
	policy scene.Policy
}

var errSceneMissing = errors.New("scene missing")

func newSceneLoader(scenes map[string]*scene.Scene) *sceneLoader {
	return &sceneLoader{scenes: scenes}
}

func (l *sceneLoader) Load(_ context.Context, path string, policy scene.Policy) (*scene.Scene, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, loadCall{path, policy})
	if l.err != nil {
		return nil, l.err
	}
	s, ok := l.scenes[path]
	if !ok {
		return nil, errSceneMissing
	}
	if policy == scene.LoadFull {
		return s, nil
	}
	return materialsOnly(s), nil
}

// materialsOnly copies s with fresh material values and no geometry, the way
// a second load of the same file would.
func materialsOnly(s *scene.Scene) *scene.Scene {
	out := &scene.Scene{Path: s.Path, Policy: scene.LoadMaterialsOnly, Roots: s.Roots}
	remap := make(map[*scene.Material]*scene.Material)
	for _, m := range s.Materials {
		c := *m
		out.Materials = append(out.Materials, &c)
		remap[m] = &c
	}
	for _, m := range s.Meshes {
		cm := &scene.Mesh{Name: m.Name}
		for _, p := range m.Primitives {
			cm.Primitives = append(cm.Primitives, scene.Primitive{Material: remap[p.Material]})
		}
		out.Meshes = append(out.Meshes, cm)
	}
	return out
}

// singlePrimitiveScene is one node with one mesh holding one quad primitive,
// with or without a material.
func singlePrimitiveScene(path string, withMaterial bool) *scene.Scene {
	s := &scene.Scene{Path: path}
	prim := scene.Primitive{Geometry: quad(0)}
	if withMaterial {
		s.Materials = []*scene.Material{{Name: "grass", Index: 0}}
		prim.Material = s.Materials[0]
	}
	s.Meshes = []*scene.Mesh{{Name: "ground", Primitives: []scene.Primitive{prim}}}
	s.Roots = []*scene.Node{{Name: "root", Transform: geom.Identity(), Mesh: meshRef(0)}}
	return s
}

// hierarchyScene has five nodes across three levels. Mesh 0 (two materials
// plus a material-less primitive) is shared by two nodes; two nodes have no
// mesh at all.
//
//	a (mesh 0)
//	├── b
//	│   └── c (mesh 1)
//	└── d (mesh 0)
//	e
func hierarchyScene(path string) *scene.Scene {
	s := &scene.Scene{Path: path}
	s.Materials = []*scene.Material{{Name: "grass", Index: 0}, {Name: "rock", Index: 1}}
	s.Meshes = []*scene.Mesh{
		{Name: "ground", Primitives: []scene.Primitive{
			{Geometry: quad(0), Material: s.Materials[1]},
			{Geometry: quad(2)},
			{Geometry: quad(4), Material: s.Materials[0]},
		}},
		{Name: "cliff", Primitives: []scene.Primitive{
			{Geometry: quad(6), Material: s.Materials[1]},
		}},
	}

	c := &scene.Node{Name: "c", Transform: geom.FromTranslation(0, 3, 0), Mesh: meshRef(1)}
	b := &scene.Node{Name: "b", Transform: geom.Transform{
		Translation: mgl32.Vec3{1, 0, 0},
		Rotation:    mgl32.QuatRotate(0.25, mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{1, 2, 1},
	}, Children: []*scene.Node{c}}
	d := &scene.Node{Name: "d", Transform: geom.FromTranslation(0, 0, 7), Mesh: meshRef(0)}
	a := &scene.Node{Name: "a", Transform: geom.FromTranslation(10, 0, 0), Mesh: meshRef(0), Children: []*scene.Node{b, d}}
	e := &scene.Node{Name: "e", Transform: geom.Identity()}
	s.Roots = []*scene.Node{a, e}
	return s
}
