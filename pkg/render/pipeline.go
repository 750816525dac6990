// Package render implements a data-parallel software rasterization
// pipeline: vertex transform, primitive assembly, optional backface
// culling, barycentric scan conversion with a locked depth buffer, and
// Blinn-Phong fragment shading.
package render

import (
	"image/color"

	"github.com/immiao/softpipe/internal/parallel"
	"github.com/immiao/softpipe/pkg/log"
	"github.com/immiao/softpipe/pkg/math3d"
	"github.com/immiao/softpipe/pkg/scene"
)

var logger = log.New("render")

// Pipeline owns every buffer of the rasterization pipeline. Stages run
// in sequence per frame; within a stage the work is spread over a worker
// pool. A Pipeline is not safe for concurrent SubmitFrame calls.
type Pipeline struct {
	width  int
	height int

	pool          *parallel.Pool
	cullBackfaces bool
	texturesOff   bool
	lightPos      math3d.Vec3 // eye space
	clearColor    color.RGBA

	// Scene-sized arenas, allocated in SetScene. Each batch owns the
	// slice regions at its offsets, so stages write without contention.
	batches       []*scene.Batch
	vertexOffsets []int
	primOffsets   []int
	vertices      []TransformedVertex
	primitives    []Primitive
	backFacing    []bool
	compacted     []Primitive

	// Screen-sized buffers, allocated in Init.
	depth     []float64
	locks     []int32
	fragments []Fragment
	fb        *Framebuffer

	initialized bool
}

// NewPipeline creates a pipeline with the given options. Init must be
// called before the first frame.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		pool:       parallel.NewPool(0),
		lightPos:   math3d.V3(0, 0, 10),
		clearColor: RGB(0, 0, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init allocates the screen-sized buffers for the given dimensions. It
// may be called again to resize; the previous buffers are dropped.
func (p *Pipeline) Init(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrBadDimensions
	}

	p.width = width
	p.height = height
	n := width * height
	p.depth = make([]float64, n)
	p.locks = make([]int32, n)
	p.fragments = make([]Fragment, n)
	p.fb = NewFramebuffer(width, height)
	p.initialized = true
	return nil
}

// Teardown releases all pipeline buffers. The pipeline must be
// re-initialized before further use.
func (p *Pipeline) Teardown() {
	p.depth = nil
	p.locks = nil
	p.fragments = nil
	p.fb = nil
	p.vertices = nil
	p.primitives = nil
	p.backFacing = nil
	p.compacted = nil
	p.batches = nil
	p.vertexOffsets = nil
	p.primOffsets = nil
	p.initialized = false
}

// SetScene attaches a scene and sizes the vertex and primitive arenas.
// Batches that fail validation are skipped with a warning.
func (p *Pipeline) SetScene(scn *scene.Scene) {
	p.batches = p.batches[:0]
	p.vertexOffsets = p.vertexOffsets[:0]
	p.primOffsets = p.primOffsets[:0]

	totalVerts, totalPrims := 0, 0
	for _, b := range scn.Batches {
		if err := b.Validate(); err != nil {
			logger.Warningf("skipping batch %q: %v", b.Name, err)
			continue
		}
		p.batches = append(p.batches, b)
		p.vertexOffsets = append(p.vertexOffsets, totalVerts)
		p.primOffsets = append(p.primOffsets, totalPrims)
		totalVerts += b.VertexCount()
		totalPrims += b.TriangleCount()
	}

	p.vertices = make([]TransformedVertex, totalVerts)
	p.primitives = make([]Primitive, totalPrims)
	p.backFacing = make([]bool, totalPrims)
	p.compacted = make([]Primitive, 0, totalPrims)
}

// SetBackfaceCulling toggles backface culling between frames.
func (p *Pipeline) SetBackfaceCulling(enabled bool) {
	p.cullBackfaces = enabled
}

// SetTexturesEnabled toggles texture sampling. With textures off every
// surface shades with the flat base color.
func (p *Pipeline) SetTexturesEnabled(enabled bool) {
	p.texturesOff = !enabled
}

// SetLightPosition moves the eye-space point light.
func (p *Pipeline) SetLightPosition(pos math3d.Vec3) {
	p.lightPos = pos
}

// Framebuffer returns the framebuffer holding the last submitted frame.
func (p *Pipeline) Framebuffer() *Framebuffer {
	return p.fb
}

// TriangleCount returns the number of triangles across renderable
// batches.
func (p *Pipeline) TriangleCount() int {
	total := 0
	for _, b := range p.batches {
		total += b.TriangleCount()
	}
	return total
}

// SubmitFrame renders one frame with the given projection and view
// matrices. Stages run in order with a full barrier between them; the
// result lands in the pipeline's framebuffer.
func (p *Pipeline) SubmitFrame(proj, view math3d.Mat4) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if len(p.batches) == 0 {
		return ErrNoScene
	}

	p.clearBuffers()

	// Vertex transform, per batch at its arena offset.
	for bi, b := range p.batches {
		modelView := view.Mul(b.World)
		m := batchMatrices{
			modelView:     modelView,
			modelViewProj: proj.Mul(modelView),
			normal:        modelView.NormalMat3(),
		}
		base := p.vertexOffsets[bi]
		batch := b
		p.pool.For(b.VertexCount(), func(i int) {
			transformVertex(batch, &m, i, p.width, p.height, &p.vertices[base+i])
		})
	}

	// Primitive assembly.
	for bi, b := range p.batches {
		vertexBase := p.vertexOffsets[bi]
		primBase := p.primOffsets[bi]
		batch := b
		p.pool.For(b.TriangleCount(), func(t int) {
			assemblePrimitive(batch, p.vertices, vertexBase, t, &p.primitives[primBase+t])
		})
	}

	// Optional backface culling: parallel classification, then a
	// serial order-preserving compaction.
	prims := p.primitives
	if p.cullBackfaces {
		p.pool.For(len(p.primitives), func(i int) {
			p.backFacing[i] = isBackFacing(&p.primitives[i])
		})
		p.compacted = compactFrontFacing(p.primitives, p.backFacing, p.compacted)
		prims = p.compacted
	}

	// Scan conversion with per-pixel depth arbitration.
	p.pool.For(len(prims), func(i int) {
		p.rasterizePrimitive(&prims[i])
	})

	// Fragment shading.
	p.pool.For(len(p.depth), func(i int) {
		p.shadePixel(i)
	})

	return nil
}

// clearBuffers resets the per-frame screen buffers: depth to infinity,
// locks to released, fragments to zero, framebuffer to the clear color.
func (p *Pipeline) clearBuffers() {
	p.pool.For(len(p.depth), func(i int) {
		p.depth[i] = depthInfinity
		p.locks[i] = 0
		p.fragments[i] = Fragment{}
		p.fb.Pixels[i] = p.clearColor
	})
}
