// terrainc builds and inspects processed terrain artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/66OJ66/meshlet-terrain-testing/internal/assets"
	"github.com/66OJ66/meshlet-terrain-testing/internal/config"
	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/internal/scene"
	"github.com/66OJ66/meshlet-terrain-testing/internal/terrain"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/formats"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errUsage
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "build", "b":
		return cmdBuild(ctx, args, out)
	case "info":
		return cmdInfo(args, out)
	case "dump":
		return cmdDump(args, out)
	case "verify":
		return cmdVerify(ctx, args, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", command)
		printUsage(out)
		return errUsage
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `terrainc - meshlet terrain artifact tool

Usage:
  terrainc <command> [options]

Commands:
  build [descriptor.terrain.yaml...]  Build artifacts (default: configured descriptor)
  info <file.terrain.bin>             Show artifact statistics
  dump <file.terrain.bin>             Dump the node trees
  verify <file.terrain.bin>           Check material indices against the source scene

Examples:
  terrainc build assets/default.terrain.yaml
  terrainc build -o out -level 3 maps/*.terrain.yaml
  terrainc info assets/default.terrain.bin`)
}

// loadConfig loads the config file (or defaults) and initialises logging.
func loadConfig(path string, debug bool) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// assetManager searches the configured roots that exist, then dirs
// (highest priority last).
func assetManager(cfg *config.Config, dirs ...string) (*assets.Manager, error) {
	mgr := assets.NewManager()
	for _, root := range cfg.Assets.Roots {
		if err := mgr.AddRoot(root); err != nil {
			logger.Debug("skipping asset root", zap.String("root", root), zap.Error(err))
		}
	}
	for _, dir := range dirs {
		if err := mgr.AddRoot(dir); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func cmdBuild(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Path to config file")
	outDir := fs.String("o", "", "Output directory (default: next to each descriptor)")
	level := fs.Int("level", 0, "zstd compression level (default: from config)")
	workers := fs.Int("workers", -1, "Mesh processing workers (default: from config)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath, *debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *level > 0 {
		cfg.Build.CompressionLevel = *level
	}
	if *workers >= 0 {
		cfg.Build.Workers = *workers
	}
	if *outDir == "" {
		*outDir = cfg.Assets.OutputDir
	}

	descriptors := fs.Args()
	if len(descriptors) == 0 {
		descriptors = []string{cfg.Assets.Descriptor}
	}

	processor := terrain.NewProcessor(cfg.MeshletOptions(), cfg.Build.Workers)
	results := make([]*terrain.BuildResult, len(descriptors))

	g, ctx := errgroup.WithContext(ctx)
	for i, desc := range descriptors {
		g.Go(func() error {
			mgr, err := assetManager(cfg, filepath.Dir(desc))
			if err != nil {
				return fmt.Errorf("%s: %w", desc, err)
			}
			builder := terrain.NewBuilder(scene.NewGLTFLoader(mgr.Resolve), processor, cfg.Build.CompressionLevel)

			outPath := ""
			if *outDir != "" {
				outPath = filepath.Join(*outDir, filepath.Base(formats.ArtifactPath(desc)))
			}
			res, err := builder.BuildFile(ctx, desc, outPath)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		fmt.Fprintf(out, "%s: %d bytes, %d nodes, %d meshlets, %d colliders\n",
			res.Output, res.Bytes, res.Stats.MeshletNodes, res.Stats.Meshlets, res.Stats.Colliders)
	}
	return nil
}

func cmdInfo(args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: terrainc info <file.terrain.bin>")
		return errUsage
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	t, err := formats.ParseTerrain(data)
	if err != nil {
		return err
	}
	raw, err := formats.EncodeTerrain(t)
	if err != nil {
		return err
	}

	s := t.Stats()
	fmt.Fprintf(out, "Artifact:   %s\n", args[0])
	fmt.Fprintf(out, "Source:     %s\n", t.GltfPath)
	fmt.Fprintf(out, "Size:       %d bytes (%d raw, ratio %.2f)\n", len(data), len(raw), float64(len(raw))/float64(max(len(data), 1)))
	fmt.Fprintf(out, "Nodes:      %d surface, %d collision (depth %d)\n", s.MeshletNodes, s.ColliderNodes, s.MaxDepth)
	fmt.Fprintf(out, "Meshlets:   %d (%d clusters)\n", s.Meshlets, s.Clusters)
	fmt.Fprintf(out, "Colliders:  %d (%d triangles)\n", s.Colliders, s.Triangles)
	fmt.Fprintf(out, "Materials:  %v\n", materialIndices(t))
	return nil
}

// materialIndices returns the distinct material indices, sorted.
func materialIndices(t *formats.Terrain) []uint32 {
	seen := map[uint32]bool{}
	var walk func(nodes []formats.MeshletNode)
	walk = func(nodes []formats.MeshletNode) {
		for _, n := range nodes {
			for _, m := range n.Meshlets {
				seen[m.MaterialIndex] = true
			}
			walk(n.Children)
		}
	}
	walk(t.MeshletNodes)

	out := make([]uint32, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type dumpNode struct {
	Transform geom.Transform
	Items     []string
	Children  []dumpNode
}

func cmdDump(args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: terrainc dump <file.terrain.bin>")
		return errUsage
	}

	t, err := formats.LoadTerrain(args[0])
	if err != nil {
		return err
	}

	var surface func(nodes []formats.MeshletNode) []dumpNode
	surface = func(nodes []formats.MeshletNode) []dumpNode {
		var res []dumpNode
		for _, n := range nodes {
			d := dumpNode{Transform: n.Transform, Children: surface(n.Children)}
			for _, m := range n.Meshlets {
				d.Items = append(d.Items, fmt.Sprintf("material %d: %d clusters, %d triangles",
					m.MaterialIndex, len(m.Mesh.Meshlets), m.Mesh.TriangleCount()))
			}
			res = append(res, d)
		}
		return res
	}
	var collision func(nodes []formats.ColliderNode) []dumpNode
	collision = func(nodes []formats.ColliderNode) []dumpNode {
		var res []dumpNode
		for _, n := range nodes {
			d := dumpNode{Transform: n.Transform, Children: collision(n.Children)}
			for _, c := range n.Colliders {
				d.Items = append(d.Items, fmt.Sprintf("%s: %d triangles", c.Kind, c.TriangleCount()))
			}
			res = append(res, d)
		}
		return res
	}

	cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
	fmt.Fprintf(out, "source: %s\n", t.GltfPath)
	fmt.Fprintln(out, "surface:")
	cs.Fdump(out, surface(t.MeshletNodes))
	fmt.Fprintln(out, "collision:")
	cs.Fdump(out, collision(t.Colliders))
	return nil
}

func cmdVerify(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(out, "Usage: terrainc verify [-config file] <file.terrain.bin>")
		return errUsage
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	t, err := formats.LoadTerrain(path)
	if err != nil {
		return err
	}
	mgr, err := assetManager(cfg, filepath.Dir(path))
	if err != nil {
		return err
	}
	src, err := scene.NewGLTFLoader(mgr.Resolve).Load(ctx, t.GltfPath, scene.LoadMaterialsOnly)
	if err != nil {
		return err
	}

	indices := materialIndices(t)
	for _, idx := range indices {
		if int(idx) >= len(src.Materials) {
			return fmt.Errorf("material index %d out of range: %s has %d materials", idx, t.GltfPath, len(src.Materials))
		}
	}
	fmt.Fprintf(out, "%s: ok (%d materials referenced, %d in source)\n", path, len(indices), len(src.Materials))
	return nil
}
