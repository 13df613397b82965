package terrain

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/collider"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/formats"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/meshlet"
)

// ErrUnknownMaterial is returned when a primitive references a material
// missing from the scene's material list.
var ErrUnknownMaterial = errors.New("primitive material is not in the scene material list")

// Processor turns a fully loaded source scene into parallel surface cluster
// and collision trees.
type Processor struct {
	opts    meshlet.Options
	workers int
	log     *zap.Logger
}

// NewProcessor creates a processor. workers <= 0 uses one worker per CPU.
func NewProcessor(opts meshlet.Options, workers int) *Processor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Processor{
		opts:    opts,
		workers: workers,
		log:     logger.Named("terrain"),
	}
}

// meshOutput is the generated data of one mesh of the scene's mesh arena.
type meshOutput struct {
	meshlets  []formats.Meshlet
	colliders []collider.Shape
}

// Process generates the terrain for s. Every mesh referenced by the
// hierarchy is processed once; each node then picks up its mesh's output.
// Any generation failure aborts the whole run.
func (p *Processor) Process(ctx context.Context, s *scene.Scene) (*formats.Terrain, error) {
	if s == nil {
		return nil, &Error{Kind: KindProcessing, Op: "process", Err: errors.New("nil scene")}
	}

	used := make([]bool, len(s.Meshes))
	scene.Walk(s.Roots, func(n *scene.Node, _ int) bool {
		if n.Mesh != nil && *n.Mesh >= 0 && *n.Mesh < len(used) {
			used[*n.Mesh] = true
		}
		return true
	})

	arena := make([]meshOutput, len(s.Meshes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range s.Meshes {
		if !used[i] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := p.processMesh(s, i)
			if err != nil {
				return err
			}
			arena[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var te *Error
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &Error{Kind: KindProcessing, Op: "process", Path: s.Path, Err: err}
	}

	t := &formats.Terrain{GltfPath: s.Path}
	for _, root := range s.Roots {
		mn, cn := mirror(root, arena)
		t.MeshletNodes = append(t.MeshletNodes, mn)
		t.Colliders = append(t.Colliders, cn)
	}
	return t, nil
}

// mirror emits the surface and collision node for n and its subtree.
func mirror(n *scene.Node, arena []meshOutput) (formats.MeshletNode, formats.ColliderNode) {
	mn := formats.MeshletNode{Transform: n.Transform}
	cn := formats.ColliderNode{Transform: n.Transform}
	if n.Mesh != nil && *n.Mesh >= 0 && *n.Mesh < len(arena) {
		out := arena[*n.Mesh]
		mn.Meshlets = out.meshlets
		cn.Colliders = out.colliders
	}
	for _, c := range n.Children {
		cm, cc := mirror(c, arena)
		mn.Children = append(mn.Children, cm)
		cn.Children = append(cn.Children, cc)
	}
	return mn, cn
}

func (p *Processor) processMesh(s *scene.Scene, index int) (meshOutput, error) {
	var out meshOutput
	mesh := s.Meshes[index]
	if mesh == nil {
		return out, nil
	}

	fail := func(prim int, err error) error {
		return &Error{
			Kind: KindProcessing,
			Op:   "process",
			Path: s.Path,
			Err:  fmt.Errorf("mesh %d (%s) primitive %d: %w", index, mesh.Name, prim, err),
		}
	}

	for pi, prim := range mesh.Primitives {
		if prim.Geometry == nil {
			return out, fail(pi, errors.New("primitive has no geometry"))
		}

		p.log.Debug("Generating collider...", zap.Int("mesh", index), zap.Int("primitive", pi))
		shape, err := collider.FromMesh(prim.Geometry)
		if err != nil {
			return out, fail(pi, fmt.Errorf("unable to generate collider for terrain mesh: %w", err))
		}
		out.colliders = append(out.colliders, shape)

		if prim.Material == nil {
			continue
		}

		matIndex := materialIndex(s.Materials, prim.Material)
		if matIndex < 0 {
			return out, fail(pi, fmt.Errorf("%w: %q", ErrUnknownMaterial, prim.Material.Name))
		}

		geometry := prim.Geometry
		if !geometry.HasTangents() {
			p.log.Debug("Generating tangents...", zap.Int("mesh", index), zap.Int("primitive", pi))
			// scenes may be shared through a cache; never mutate the source
			geometry = geometry.Clone()
			if err := geometry.GenerateTangents(); err != nil {
				return out, fail(pi, fmt.Errorf("unable to generate tangents: %w", err))
			}
		}

		p.log.Debug("Generating meshlets...", zap.Int("mesh", index), zap.Int("primitive", pi))
		clusters, err := meshlet.Build(geometry, p.opts)
		if err != nil {
			return out, fail(pi, fmt.Errorf("unable to generate meshlets: %w", err))
		}
		out.meshlets = append(out.meshlets, formats.Meshlet{Mesh: clusters, MaterialIndex: uint32(matIndex)})
	}
	return out, nil
}

// materialIndex returns the position of the first entry of materials that is
// m itself, or -1.
func materialIndex(materials []*scene.Material, m *scene.Material) int {
	for i, candidate := range materials {
		if candidate == m {
			return i
		}
	}
	return -1
}
