package terrain

import (
	"fmt"

	"github.com/66OJ66/meshlet-terrain-testing/internal/render"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/internal/world"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/formats"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

// RootName is the name of the entity every spawned terrain hangs under.
const RootName = "Terrain"

// ClusterInstance is registered cluster geometry bound to a material.
type ClusterInstance struct {
	Cluster  render.ClusterHandle
	Material *scene.Material
}

// SurfaceNode is the runtime mirror of a formats.MeshletNode.
type SurfaceNode struct {
	Clusters  []ClusterInstance
	Transform geom.Transform
	Children  []*SurfaceNode
}

// RuntimeScene is a loaded terrain ready to be spawned.
type RuntimeScene struct {
	// Source keeps the materials-only source scene alive for as long as
	// the runtime scene references its materials.
	Source    *scene.Scene
	Surface   []*SurfaceNode
	Colliders []formats.ColliderNode
}

// ClusterLabel names a registered cluster by tree depth, pre-order node
// ordinal and position within the node.
func ClusterLabel(depth, node, index int) string {
	return fmt.Sprintf("meshlet%d-%d-%d", depth, node, index)
}

// Reconstruct registers every cluster of t with reg and binds it to its
// material in src. The collision tree is carried over unchanged.
//
// A material index outside src.Materials cannot come out of a build of the
// same source scene and panics.
func Reconstruct(t *formats.Terrain, src *scene.Scene, reg render.Registry) *RuntimeScene {
	rs := &RuntimeScene{Source: src, Colliders: t.Colliders}

	ordinal := 0
	var build func(n *formats.MeshletNode, depth int) *SurfaceNode
	build = func(n *formats.MeshletNode, depth int) *SurfaceNode {
		node := ordinal
		ordinal++

		sn := &SurfaceNode{Transform: n.Transform}
		for i, m := range n.Meshlets {
			if int(m.MaterialIndex) >= len(src.Materials) {
				panic(fmt.Sprintf("terrain: material index %d out of range (%d materials in %s)",
					m.MaterialIndex, len(src.Materials), src.Path))
			}
			sn.Clusters = append(sn.Clusters, ClusterInstance{
				Cluster:  reg.Register(ClusterLabel(depth, node, i), m.Mesh),
				Material: src.Materials[m.MaterialIndex],
			})
		}
		for i := range n.Children {
			sn.Children = append(sn.Children, build(&n.Children[i], depth+1))
		}
		return sn
	}

	for i := range t.MeshletNodes {
		rs.Surface = append(rs.Surface, build(&t.MeshletNodes[i], 0))
	}
	return rs
}

// Spawn instantiates rs into w: a root entity named RootName holding the
// surface tree (one entity per node, one child per cluster) and, as siblings,
// the collision tree (one entity per node, one fixed body per shape).
func Spawn(w *world.World, rs *RuntimeScene) (world.EntityID, error) {
	root := w.Spawn(world.Entity{Name: RootName, Transform: geom.Identity()})

	var spawnSurface func(parent world.EntityID, n *SurfaceNode) error
	spawnSurface = func(parent world.EntityID, n *SurfaceNode) error {
		id, err := w.SpawnChild(parent, world.Entity{Name: "surface", Transform: n.Transform})
		if err != nil {
			return err
		}
		for _, c := range n.Clusters {
			_, err := w.SpawnChild(id, world.Entity{
				Name:       c.Cluster.Label,
				Transform:  geom.Identity(),
				Renderable: &world.Renderable{Cluster: c.Cluster, Material: c.Material},
			})
			if err != nil {
				return err
			}
		}
		for _, child := range n.Children {
			if err := spawnSurface(id, child); err != nil {
				return err
			}
		}
		return nil
	}

	var spawnColliders func(parent world.EntityID, n *formats.ColliderNode) error
	spawnColliders = func(parent world.EntityID, n *formats.ColliderNode) error {
		id, err := w.SpawnChild(parent, world.Entity{Name: "collider", Transform: n.Transform})
		if err != nil {
			return err
		}
		for i := range n.Colliders {
			_, err := w.SpawnChild(id, world.Entity{
				Name:      fmt.Sprintf("shape%d", i),
				Transform: geom.Identity(),
				Body:      &world.Body{Kind: world.BodyFixed, Collider: &n.Colliders[i]},
			})
			if err != nil {
				return err
			}
		}
		for i := range n.Children {
			if err := spawnColliders(id, &n.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}

	for _, n := range rs.Surface {
		if err := spawnSurface(root, n); err != nil {
			return 0, err
		}
	}
	for i := range rs.Colliders {
		if err := spawnColliders(root, &rs.Colliders[i]); err != nil {
			return 0, err
		}
	}
	return root, nil
}
