package scene

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"

	"github.com/immiao/softpipe/pkg/log"
	"github.com/immiao/softpipe/pkg/math3d"
)

var logger = log.New("scene")

// Loader loads glTF/GLB documents into the flat batch arena. The node
// hierarchy is walked exactly once, here; each batch stores its resolved
// world matrix so the per-frame pipeline never traverses anything.
type Loader struct {
	// DeriveNormals computes smooth normals for primitives that carry
	// none.
	DeriveNormals bool
}

// NewLoader creates a loader with default options.
func NewLoader() *Loader {
	return &Loader{DeriveNormals: true}
}

// LoadGLB loads a glTF or binary glTF file with default options.
func LoadGLB(path string) (*Scene, error) {
	return NewLoader().Load(path)
}

// Load reads a glTF/GLB document and flattens it into a Scene.
// Malformed or unsupported primitives are skipped with a warning; the
// scene proceeds with whatever loaded successfully.
func (l *Loader) Load(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	scn := &Scene{}
	textures := make(map[int]*Texture) // glTF image index -> decoded texture

	for _, root := range rootNodes(doc) {
		l.flattenNode(doc, root, math3d.Identity(), path, textures, scn)
	}

	if len(scn.Batches) == 0 {
		return nil, fmt.Errorf("load %s: no renderable primitives", filepath.Base(path))
	}
	return scn, nil
}

// rootNodes returns the node indices of the document's default scene,
// or every node when no scene is declared.
func rootNodes(doc *gltf.Document) []int {
	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if sceneIdx < len(doc.Scenes) {
		return doc.Scenes[sceneIdx].Nodes
	}
	roots := make([]int, len(doc.Nodes))
	for i := range doc.Nodes {
		roots[i] = i
	}
	return roots
}

// flattenNode resolves the node's world matrix and emits one batch per
// renderable mesh primitive, then recurses into children.
func (l *Loader) flattenNode(doc *gltf.Document, nodeIdx int, parent math3d.Mat4, path string, textures map[int]*Texture, scn *Scene) {
	if nodeIdx < 0 || nodeIdx >= len(doc.Nodes) {
		return
	}
	node := doc.Nodes[nodeIdx]
	world := parent.Mul(nodeMatrix(node))

	if node.Mesh != nil && *node.Mesh < len(doc.Meshes) {
		mesh := doc.Meshes[*node.Mesh]
		for pi, prim := range mesh.Primitives {
			name := fmt.Sprintf("%s/%d", mesh.Name, pi)
			batch, err := l.loadPrimitive(doc, prim, name, world, path, textures)
			if err != nil {
				logger.Warningf("skipping primitive %s: %v", name, err)
				continue
			}
			scn.Batches = append(scn.Batches, batch)
		}
	}

	for _, child := range node.Children {
		l.flattenNode(doc, child, world, path, textures, scn)
	}
}

// loadPrimitive builds a batch from one glTF mesh primitive.
func (l *Loader) loadPrimitive(doc *gltf.Document, prim *gltf.Primitive, name string, world math3d.Mat4, path string, textures map[int]*Texture) (*Batch, error) {
	batch := &Batch{
		Name:     name,
		Topology: topologyOf(prim.Mode),
		World:    world,
	}
	if batch.Topology != Triangles {
		return nil, fmt.Errorf("%w: %s", ErrTopology, batch.Topology)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, ErrNoPositions
	}
	positions, err := readVec3Accessor(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	batch.Positions = positions

	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		batch.Normals, err = readVec3Accessor(doc, normIdx)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}

	if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		batch.UVs, err = readVec2Accessor(doc, uvIdx)
		if err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
	}

	if prim.Indices != nil {
		batch.Indices, err = readIndices(doc, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		// Non-indexed geometry: sequential triangles.
		batch.Indices = make([]uint32, len(positions))
		for i := range batch.Indices {
			batch.Indices[i] = uint32(i)
		}
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	if len(batch.Normals) == 0 && l.DeriveNormals {
		batch.CalculateSmoothNormals()
	}

	// Texture coordinates with no texture (or the reverse) are
	// tolerated; a texture without UVs just samples its first texel.
	if prim.Material != nil {
		batch.Texture = l.materialTexture(doc, *prim.Material, path, textures)
	}

	return batch, nil
}

// materialTexture resolves and decodes the base color texture of a
// material, caching decodes by glTF image index.
func (l *Loader) materialTexture(doc *gltf.Document, matIdx int, path string, textures map[int]*Texture) *Texture {
	if matIdx >= len(doc.Materials) {
		return nil
	}
	mat := doc.Materials[matIdx]
	if mat.PBRMetallicRoughness == nil || mat.PBRMetallicRoughness.BaseColorTexture == nil {
		return nil
	}
	texIdx := mat.PBRMetallicRoughness.BaseColorTexture.Index
	if texIdx >= len(doc.Textures) || doc.Textures[texIdx].Source == nil {
		return nil
	}
	imgIdx := *doc.Textures[texIdx].Source

	if tex, ok := textures[imgIdx]; ok {
		return tex
	}

	data, err := imageBytes(doc, imgIdx, path)
	if err != nil {
		logger.Warningf("texture image %d: %v", imgIdx, err)
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warningf("decode texture image %d: %v", imgIdx, err)
		return nil
	}

	tex := TextureFromImage(img)
	textures[imgIdx] = tex
	return tex
}

// imageBytes returns the encoded bytes of a glTF image, from an embedded
// buffer view or an external file next to the document.
func imageBytes(doc *gltf.Document, imgIdx int, path string) ([]byte, error) {
	if imgIdx >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", imgIdx)
	}
	img := doc.Images[imgIdx]

	if img.BufferView != nil {
		bv := doc.BufferViews[*img.BufferView]
		buf := doc.Buffers[bv.Buffer]
		if buf.Data == nil {
			return nil, fmt.Errorf("image buffer has no data")
		}
		return buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
	}
	if img.URI != "" {
		return os.ReadFile(filepath.Join(filepath.Dir(path), img.URI))
	}
	return nil, fmt.Errorf("image has neither buffer view nor URI")
}

// topologyOf maps a glTF primitive mode onto a batch topology tag.
// Strips, fans and loops are not re-indexed; anything that is not a
// plain triangle list is classified and later skipped.
func topologyOf(mode gltf.PrimitiveMode) Topology {
	switch mode {
	case gltf.PrimitiveTriangles:
		return Triangles
	case gltf.PrimitivePoints:
		return Points
	default:
		return Lines
	}
}

// readVec3Accessor reads Vec3 data from a glTF accessor.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("expected VEC3, got %v", accessor.Type)
	}

	data, err := readAccessorData(doc, accessor)
	if err != nil {
		return nil, err
	}
	floats, ok := data.([][3]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected data type for VEC3")
	}

	result := make([]math3d.Vec3, len(floats))
	for i, f := range floats {
		result[i] = math3d.V3(float64(f[0]), float64(f[1]), float64(f[2]))
	}
	return result, nil
}

// readVec2Accessor reads Vec2 data from a glTF accessor.
func readVec2Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec2, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec2 {
		return nil, fmt.Errorf("expected VEC2, got %v", accessor.Type)
	}

	data, err := readAccessorData(doc, accessor)
	if err != nil {
		return nil, err
	}
	floats, ok := data.([][2]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected data type for VEC2")
	}

	result := make([]math3d.Vec2, len(floats))
	for i, f := range floats {
		result[i] = math3d.V2(float64(f[0]), float64(f[1]))
	}
	return result, nil
}

// readIndices reads index data from a glTF accessor, widening all
// component types to uint32.
func readIndices(doc *gltf.Document, accessorIdx int) ([]uint32, error) {
	accessor := doc.Accessors[accessorIdx]

	data, err := readAccessorData(doc, accessor)
	if err != nil {
		return nil, err
	}

	switch v := data.(type) {
	case []uint8:
		result := make([]uint32, len(v))
		for i, x := range v {
			result[i] = uint32(x)
		}
		return result, nil
	case []uint16:
		result := make([]uint32, len(v))
		for i, x := range v {
			result[i] = uint32(x)
		}
		return result, nil
	case []uint32:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected index type: %T", data)
	}
}

// readAccessorData reads raw data from a glTF accessor, honoring buffer
// view strides.
func readAccessorData(doc *gltf.Document, accessor *gltf.Accessor) (any, error) {
	if accessor.BufferView == nil {
		return nil, fmt.Errorf("accessor has no buffer view")
	}

	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	bufData := buffer.Data
	if bufData == nil {
		return nil, fmt.Errorf("buffer has no data (external buffers not supported)")
	}

	start := bufferView.ByteOffset + accessor.ByteOffset
	stride := bufferView.ByteStride
	count := accessor.Count

	switch accessor.Type {
	case gltf.AccessorVec3:
		if stride == 0 {
			stride = 12 // 3 floats * 4 bytes
		}
		result := make([][3]float32, count)
		for i := range count {
			offset := start + i*stride
			for j := range 3 {
				result[i][j] = readFloat32(bufData[offset+j*4:])
			}
		}
		return result, nil

	case gltf.AccessorVec2:
		if stride == 0 {
			stride = 8 // 2 floats * 4 bytes
		}
		result := make([][2]float32, count)
		for i := range count {
			offset := start + i*stride
			for j := range 2 {
				result[i][j] = readFloat32(bufData[offset+j*4:])
			}
		}
		return result, nil

	case gltf.AccessorScalar:
		if stride == 0 {
			switch accessor.ComponentType {
			case gltf.ComponentUbyte:
				stride = 1
			case gltf.ComponentUshort:
				stride = 2
			case gltf.ComponentUint:
				stride = 4
			}
		}

		switch accessor.ComponentType {
		case gltf.ComponentUbyte:
			result := make([]uint8, count)
			for i := range count {
				result[i] = bufData[start+i*stride]
			}
			return result, nil
		case gltf.ComponentUshort:
			result := make([]uint16, count)
			for i := range count {
				offset := start + i*stride
				result[i] = uint16(bufData[offset]) | uint16(bufData[offset+1])<<8
			}
			return result, nil
		case gltf.ComponentUint:
			result := make([]uint32, count)
			for i := range count {
				offset := start + i*stride
				result[i] = uint32(bufData[offset]) |
					uint32(bufData[offset+1])<<8 |
					uint32(bufData[offset+2])<<16 |
					uint32(bufData[offset+3])<<24
			}
			return result, nil
		}
	}

	return nil, fmt.Errorf("unsupported accessor type: %v / %v", accessor.Type, accessor.ComponentType)
}

// readFloat32 reads a little-endian float32.
func readFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

// nodeMatrix returns the local transform of a node: its explicit matrix
// when present, otherwise translation * rotation * scale.
func nodeMatrix(node *gltf.Node) math3d.Mat4 {
	identity := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	if node.Matrix != identity && node.Matrix != [16]float64{} {
		var m math3d.Mat4
		copy(m[:], node.Matrix[:]) // glTF matrices are column-major too
		return m
	}

	t := math3d.Translate(math3d.V3(node.Translation[0], node.Translation[1], node.Translation[2]))
	r := quatMat4(node.Rotation[0], node.Rotation[1], node.Rotation[2], node.Rotation[3])

	s := node.Scale
	if s == [3]float64{} {
		s = [3]float64{1, 1, 1}
	}
	return t.Mul(r).Mul(math3d.Scale(math3d.V3(s[0], s[1], s[2])))
}

// quatMat4 converts a unit quaternion (x, y, z, w) to a rotation matrix.
func quatMat4(x, y, z, w float64) math3d.Mat4 {
	if x == 0 && y == 0 && z == 0 && w == 0 {
		w = 1
	}
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return math3d.Mat4{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}
