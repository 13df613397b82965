package scene

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/66OJ66/meshlet-terrain-testing/internal/logger"
	"github.com/66OJ66/meshlet-terrain-testing/pkg/geom"
)

const (
	glbMagic     = 0x46546C67 // "glTF"
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbHeader    = 12
)

// GLTFLoader loads glTF 2.0 scenes (.gltf and .glb).
type GLTFLoader struct {
	resolve func(path string) (string, error)
	log     *zap.Logger
}

// NewGLTFLoader creates a loader. resolve maps asset paths to filesystem
// paths; when nil, paths are used as given.
func NewGLTFLoader(resolve func(path string) (string, error)) *GLTFLoader {
	return &GLTFLoader{
		resolve: resolve,
		log:     logger.Named("scene"),
	}
}

// Load implements Loader.
func (l *GLTFLoader) Load(ctx context.Context, path string, policy Policy) (*Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fsPath := path
	if l.resolve != nil {
		p, err := l.resolve(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrapf(ErrNotFound, "resolving %s", path)
			}
			return nil, errors.Wrapf(err, "resolving %s", path)
		}
		fsPath = p
	}
	if _, err := os.Stat(fsPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	var doc *gltf.Document
	var err error
	switch policy {
	case LoadFull:
		doc, err = gltf.Open(fsPath)
		if err != nil {
			return nil, parseErr(err, "opening %s", path)
		}
	case LoadMaterialsOnly:
		doc, err = readDocumentOnly(fsPath)
		if err != nil {
			return nil, parseErr(err, "reading %s", path)
		}
	default:
		return nil, errors.Errorf("unknown load policy %d", int(policy))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := convert(doc, path, policy)
	if err != nil {
		return nil, err
	}

	l.log.Debug("scene loaded",
		zap.String("path", path),
		zap.Stringer("policy", policy),
		zap.Int("nodes", Count(s.Roots)),
		zap.Int("meshes", len(s.Meshes)),
		zap.Int("materials", len(s.Materials)))
	return s, nil
}

// parseErr tags err as ErrParse and annotates it with context.
func parseErr(err error, format string, args ...any) error {
	return errors.Wrapf(fmt.Errorf("%w: %w", ErrParse, err), format, args...)
}

// readDocumentOnly decodes the JSON document of a .gltf or .glb file
// without loading any buffer.
func readDocumentOnly(path string) (*gltf.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic {
		if data, err = glbJSONChunk(data); err != nil {
			return nil, err
		}
	} else if strings.HasSuffix(strings.ToLower(path), ".glb") {
		return nil, errors.New("invalid glb magic")
	}

	doc := new(gltf.Document)
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(doc); err != nil {
		return nil, errors.Wrap(err, "decoding json")
	}
	return doc, nil
}

// glbJSONChunk returns the JSON chunk of a binary glTF container.
func glbJSONChunk(data []byte) ([]byte, error) {
	if len(data) < glbHeader+8 {
		return nil, errors.New("glb too short")
	}
	if version := binary.LittleEndian.Uint32(data[4:]); version != 2 {
		return nil, errors.Errorf("unsupported glb version %d", version)
	}
	length := binary.LittleEndian.Uint32(data[glbHeader:])
	if kind := binary.LittleEndian.Uint32(data[glbHeader+4:]); kind != glbChunkJSON {
		return nil, errors.Errorf("first glb chunk is 0x%08x, want JSON", kind)
	}
	start := glbHeader + 8
	if uint64(length) > uint64(len(data)-start) {
		return nil, errors.Errorf("glb json chunk of %d bytes exceeds file", length)
	}
	return data[start : start+int(length)], nil
}

// convert builds a Scene from a decoded document.
func convert(doc *gltf.Document, path string, policy Policy) (*Scene, error) {
	s := &Scene{Path: path, Policy: policy}

	if len(doc.Materials) > 0 {
		s.Materials = make([]*Material, len(doc.Materials))
		for i, m := range doc.Materials {
			s.Materials[i] = convertMaterial(m, i)
		}
	}

	if len(doc.Meshes) > 0 {
		s.Meshes = make([]*Mesh, len(doc.Meshes))
		for i, m := range doc.Meshes {
			mesh, err := convertMesh(doc, m, s.Materials, policy)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d (%s)", i, m.Name)
			}
			s.Meshes[i] = mesh
		}
	}

	roots, err := convertHierarchy(doc, len(s.Meshes))
	if err != nil {
		return nil, err
	}
	s.Roots = roots
	return s, nil
}

func convertMaterial(m *gltf.Material, index int) *Material {
	mat := &Material{Index: index, BaseColor: [4]float32{1, 1, 1, 1}}
	if m == nil {
		return mat
	}
	mat.Name = m.Name
	mat.DoubleSided = m.DoubleSided
	if pbr := m.PBRMetallicRoughness; pbr != nil && pbr.BaseColorFactor != nil {
		for i, v := range pbr.BaseColorFactor {
			mat.BaseColor[i] = float32(v)
		}
	}
	return mat
}

func convertMesh(doc *gltf.Document, m *gltf.Mesh, materials []*Material, policy Policy) (*Mesh, error) {
	mesh := &Mesh{}
	if m == nil {
		return mesh, nil
	}
	mesh.Name = m.Name

	for i, p := range m.Primitives {
		if p == nil {
			continue
		}
		if p.Mode != gltf.PrimitiveTriangles {
			return nil, errors.Wrapf(ErrParse, "primitive %d: mode %v is not a triangle list", i, p.Mode)
		}

		var prim Primitive
		if p.Material != nil {
			idx := int(*p.Material)
			if idx < 0 || idx >= len(materials) {
				return nil, errors.Wrapf(ErrParse, "primitive %d: material %d out of range", i, idx)
			}
			prim.Material = materials[idx]
		}

		if policy == LoadFull {
			g, err := readGeometry(doc, p)
			if err != nil {
				return nil, errors.Wrapf(err, "primitive %d", i)
			}
			prim.Geometry = g
		}
		mesh.Primitives = append(mesh.Primitives, prim)
	}
	return mesh, nil
}

func accessor(doc *gltf.Document, p *gltf.Primitive, attr geom.Attribute) (*gltf.Accessor, bool, error) {
	idx, ok := p.Attributes[string(attr)]
	if !ok {
		return nil, false, nil
	}
	if int(idx) >= len(doc.Accessors) {
		return nil, false, errors.Wrapf(ErrParse, "%s accessor %d out of range", attr, idx)
	}
	return doc.Accessors[idx], true, nil
}

// readGeometry reads the vertex streams and index list of a triangle primitive.
func readGeometry(doc *gltf.Document, p *gltf.Primitive) (*geom.Mesh, error) {
	g := &geom.Mesh{}

	acr, ok, err := accessor(doc, p, geom.AttributePosition)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrParse, "missing %s", geom.AttributePosition)
	}
	if g.Positions, err = modeler.ReadPosition(doc, acr, nil); err != nil {
		return nil, parseErr(err, "reading %s", geom.AttributePosition)
	}

	if acr, ok, err = accessor(doc, p, geom.AttributeNormal); err != nil {
		return nil, err
	} else if ok {
		if g.Normals, err = modeler.ReadNormal(doc, acr, nil); err != nil {
			return nil, parseErr(err, "reading %s", geom.AttributeNormal)
		}
	}

	if acr, ok, err = accessor(doc, p, geom.AttributeUV); err != nil {
		return nil, err
	} else if ok {
		if g.UVs, err = modeler.ReadTextureCoord(doc, acr, nil); err != nil {
			return nil, parseErr(err, "reading %s", geom.AttributeUV)
		}
	}

	if acr, ok, err = accessor(doc, p, geom.AttributeTangent); err != nil {
		return nil, err
	} else if ok {
		if g.Tangents, err = modeler.ReadTangent(doc, acr, nil); err != nil {
			return nil, parseErr(err, "reading %s", geom.AttributeTangent)
		}
	}

	if p.Indices != nil {
		idx := int(*p.Indices)
		if idx >= len(doc.Accessors) {
			return nil, errors.Wrapf(ErrParse, "index accessor %d out of range", idx)
		}
		if g.Indices, err = modeler.ReadIndices(doc, doc.Accessors[idx], nil); err != nil {
			return nil, parseErr(err, "reading indices")
		}
	} else {
		g.Indices = geom.SequentialIndices(len(g.Positions))
	}

	return g, nil
}

// convertHierarchy builds the node tree. Roots are the default scene's nodes,
// or every parent-less node when the document declares no scene.
func convertHierarchy(doc *gltf.Document, meshCount int) ([]*Node, error) {
	var rootIDs []int
	switch {
	case len(doc.Scenes) > 0:
		si := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			si = int(*doc.Scene)
		}
		if sc := doc.Scenes[si]; sc != nil {
			for _, n := range sc.Nodes {
				rootIDs = append(rootIDs, int(n))
			}
		}
	default:
		hasParent := make([]bool, len(doc.Nodes))
		for _, n := range doc.Nodes {
			if n == nil {
				continue
			}
			for _, c := range n.Children {
				if int(c) < len(hasParent) {
					hasParent[c] = true
				}
			}
		}
		for i, p := range hasParent {
			if !p {
				rootIDs = append(rootIDs, i)
			}
		}
	}

	onPath := make([]bool, len(doc.Nodes))
	var build func(id int) (*Node, error)
	build = func(id int) (*Node, error) {
		if id < 0 || id >= len(doc.Nodes) || doc.Nodes[id] == nil {
			return nil, errors.Wrapf(ErrParse, "node %d out of range", id)
		}
		if onPath[id] {
			return nil, errors.Wrapf(ErrParse, "node %d is its own ancestor", id)
		}
		onPath[id] = true
		defer func() { onPath[id] = false }()

		src := doc.Nodes[id]
		n := &Node{Name: src.Name, Transform: nodeTransform(src)}
		if src.Mesh != nil {
			mi := int(*src.Mesh)
			if mi >= meshCount {
				return nil, errors.Wrapf(ErrParse, "node %d: mesh %d out of range", id, mi)
			}
			n.Mesh = &mi
		}
		for _, c := range src.Children {
			child, err := build(int(c))
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	var roots []*Node
	for _, id := range rootIDs {
		n, err := build(id)
		if err != nil {
			return nil, err
		}
		roots = append(roots, n)
	}
	return roots, nil
}

// nodeTransform returns the node's local transform. A non-identity matrix
// takes precedence over TRS; zero-valued rotation and scale mean "unset".
func nodeTransform(n *gltf.Node) geom.Transform {
	var m mgl32.Mat4
	for i, v := range n.Matrix {
		m[i] = float32(v)
	}
	if m != (mgl32.Mat4{}) && m != mgl32.Ident4() {
		return geom.FromMatrix(m)
	}

	t := geom.Identity()
	for i, v := range n.Translation {
		t.Translation[i] = float32(v)
	}

	var r [4]float32
	for i, v := range n.Rotation {
		r[i] = float32(v)
	}
	if r != ([4]float32{}) {
		t.Rotation = mgl32.Quat{V: mgl32.Vec3{r[0], r[1], r[2]}, W: r[3]}
	}

	var sc mgl32.Vec3
	for i, v := range n.Scale {
		sc[i] = float32(v)
	}
	if sc != (mgl32.Vec3{}) {
		t.Scale = sc
	}
	return t
}
