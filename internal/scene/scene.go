// Package scene models a loaded source scene: a node hierarchy whose nodes
// reference meshes made of primitives, plus the scene's flat material list.
package scene

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

// Scene loading errors.
var (
	ErrNotFound = fmt.Errorf("scene not found: %w", fs.ErrNotExist)
	ErrParse    = errors.New("scene parse error")
)

// Policy selects how much of a source scene is loaded.
type Policy int

const (
	// LoadFull loads the hierarchy, materials and mesh geometry.
	LoadFull Policy = iota
	// LoadMaterialsOnly loads the hierarchy and materials; geometry buffers
	// are never read and Primitive.Geometry stays nil.
	LoadMaterialsOnly
)

func (p Policy) String() string {
	switch p {
	case LoadFull:
		return "full"
	case LoadMaterialsOnly:
		return "materials-only"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Loader loads source scenes.
type Loader interface {
	Load(ctx context.Context, path string, policy Policy) (*Scene, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string, policy Policy) (*Scene, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string, policy Policy) (*Scene, error) {
	return f(ctx, path, policy)
}

// Scene is a loaded source scene.
type Scene struct {
	Path      string
	Policy    Policy
	Roots     []*Node
	Meshes    []*Mesh
	Materials []*Material
}

// Node is one node of the scene hierarchy.
type Node struct {
	Name      string
	Transform geom.Transform
	Mesh      *int // index into Scene.Meshes, nil when the node has no mesh
	Children  []*Node
}

// Mesh is a named list of primitives.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Primitive is one drawable part of a mesh.
type Primitive struct {
	Geometry *geom.Mesh // nil under LoadMaterialsOnly
	Material *Material  // entry of Scene.Materials, nil when unassigned
}

// Material is a surface material. Index is its position in Scene.Materials.
type Material struct {
	Name        string
	Index       int
	BaseColor   [4]float32
	DoubleSided bool
}

// MeshOf returns the mesh referenced by n, or nil.
func (s *Scene) MeshOf(n *Node) *Mesh {
	if n.Mesh == nil || *n.Mesh < 0 || *n.Mesh >= len(s.Meshes) {
		return nil
	}
	return s.Meshes[*n.Mesh]
}

// Walk visits every node below roots in pre-order with its depth (roots are 0).
// Returning false from fn skips the node's children.
func Walk(roots []*Node, fn func(n *Node, depth int) bool) {
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(roots, 0)
}

// Count returns the number of nodes below roots, roots included.
func Count(roots []*Node) int {
	n := 0
	Walk(roots, func(*Node, int) bool {
		n++
		return true
	})
	return n
}
