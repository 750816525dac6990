package render

import (
	"errors"
	"math"
	"testing"

	"github.com/immiao/softpipe/pkg/math3d"
	"github.com/immiao/softpipe/pkg/scene"
)

// newTestBatch builds a triangle-list batch from raw vertex positions,
// three per triangle, with flat +Z normals and an identity world matrix.
func newTestBatch(name string, tex *scene.Texture, positions ...math3d.Vec3) *scene.Batch {
	b := &scene.Batch{
		Name:      name,
		Positions: positions,
		Normals:   make([]math3d.Vec3, len(positions)),
		Indices:   make([]uint32, len(positions)),
		Texture:   tex,
		World:     math3d.Identity(),
	}
	for i := range positions {
		b.Normals[i] = math3d.V3(0, 0, 1)
		b.Indices[i] = uint32(i)
	}
	return b
}

// fullScreenTriangle covers every pixel when rendered with identity
// matrices: its NDC footprint contains the whole [-1,1] square.
func fullScreenTriangle(name string, tex *scene.Texture, z float64) *scene.Batch {
	return newTestBatch(name, tex,
		math3d.V3(-1, -1, z),
		math3d.V3(3, -1, z),
		math3d.V3(-1, 3, z),
	)
}

func solidTexture(r, g, b byte) *scene.Texture {
	tex := scene.NewTexture(1, 1, 3)
	tex.Data[0], tex.Data[1], tex.Data[2] = r, g, b
	return tex
}

// newTestPipeline builds an initialized pipeline with the light pushed
// far off to the side, so shading reduces to the ambient term and color
// checks stay simple.
func newTestPipeline(t *testing.T, width, height int, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLightPosition(math3d.V3(1000, 0, 0))}, opts...)
	p := NewPipeline(opts...)
	if err := p.Init(width, height); err != nil {
		t.Fatalf("Init(%d, %d): %v", width, height, err)
	}
	return p
}

func submitIdentity(t *testing.T, p *Pipeline) {
	t.Helper()
	if err := p.SubmitFrame(math3d.Identity(), math3d.Identity()); err != nil {
		t.Fatalf("SubmitFrame: %v", err)
	}
}

func TestPipelineLifecycleErrors(t *testing.T) {
	p := NewPipeline()

	if err := p.SubmitFrame(math3d.Identity(), math3d.Identity()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SubmitFrame before Init = %v, want ErrNotInitialized", err)
	}

	if err := p.Init(0, 10); !errors.Is(err, ErrBadDimensions) {
		t.Errorf("Init(0, 10) = %v, want ErrBadDimensions", err)
	}

	if err := p.Init(8, 8); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.SubmitFrame(math3d.Identity(), math3d.Identity()); !errors.Is(err, ErrNoScene) {
		t.Errorf("SubmitFrame without scene = %v, want ErrNoScene", err)
	}

	p.Teardown()
	if err := p.SubmitFrame(math3d.Identity(), math3d.Identity()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SubmitFrame after Teardown = %v, want ErrNotInitialized", err)
	}
}

func TestSubmitFrameFullCoverage(t *testing.T) {
	p := newTestPipeline(t, 4, 4)
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{
		fullScreenTriangle("full", nil, -0.5),
	}})

	submitIdentity(t, p)

	// A flat triangle at NDC z = -0.5 lands at depth 0.25 everywhere.
	for i, d := range p.depth {
		if math.Abs(d-0.25) > 1e-9 {
			t.Errorf("depth[%d] = %v, want 0.25", i, d)
		}
	}
	for i, c := range p.fb.Pixels {
		if c == p.clearColor {
			t.Errorf("pixel %d still holds the clear color, want coverage", i)
		}
	}
}

func TestSubmitFrameOffscreen(t *testing.T) {
	tests := []struct {
		name  string
		batch *scene.Batch
	}{
		{
			"right of the screen",
			newTestBatch("right", nil,
				math3d.V3(5, -1, -0.5), math3d.V3(7, -1, -0.5), math3d.V3(6, 1, -0.5)),
		},
		{
			"outside the depth range",
			fullScreenTriangle("deep", nil, 5),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t, 8, 8, WithClearColor(RGB(9, 9, 9)))
			p.SetScene(&scene.Scene{Batches: []*scene.Batch{tc.batch}})

			submitIdentity(t, p)

			for i, d := range p.depth {
				if d != depthInfinity {
					t.Fatalf("depth[%d] = %v, want untouched", i, d)
				}
			}
			for i, c := range p.fb.Pixels {
				if c != RGB(9, 9, 9) {
					t.Fatalf("pixel %d = %v, want clear color", i, c)
				}
			}
		})
	}
}

func TestSubmitFramePartialCoverage(t *testing.T) {
	// The triangle (-0.5,-0.5), (0.5,-0.5), (0,0.5) at NDC z = 0 maps to
	// screen corners (1,3), (3,3), (2,1) in a 4x4 buffer. Exactly the
	// centers of pixels (1,2) and (2,2) fall inside; everything else
	// stays background.
	b := newTestBatch("small", nil,
		math3d.V3(-0.5, -0.5, 0),
		math3d.V3(0.5, -0.5, 0),
		math3d.V3(0, 0.5, 0),
	)
	b.UVs = []math3d.Vec2{{X: 0.25, Y: 0.75}, {X: 0.25, Y: 0.75}, {X: 0.25, Y: 0.75}}

	p := newTestPipeline(t, 4, 4)
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{b}})
	submitIdentity(t, p)

	covered := map[int]bool{2*4 + 1: true, 2*4 + 2: true}
	for i, d := range p.depth {
		if covered[i] {
			// NDC z = 0 stores as depth 0.5 under the [0,1] remap.
			if math.Abs(d-0.5) > 1e-9 {
				t.Errorf("depth[%d] = %v, want 0.5", i, d)
			}
			continue
		}
		if d != depthInfinity {
			t.Errorf("depth[%d] = %v, want untouched background", i, d)
		}
	}

	// Every vertex sits on the eye plane under identity matrices, so
	// interpolation runs on the uncorrected screen-space weights. The
	// constant attributes must still come through exactly.
	for i := range covered {
		frag := &p.fragments[i]
		if math.Abs(frag.UV.X-0.25) > 1e-12 || math.Abs(frag.UV.Y-0.75) > 1e-12 {
			t.Errorf("fragment %d UV = %v, want (0.25, 0.75)", i, frag.UV)
		}
		if math.Abs(frag.Color.X-1) > 1e-12 ||
			math.Abs(frag.Color.Y-1) > 1e-12 ||
			math.Abs(frag.Color.Z-1) > 1e-12 {
			t.Errorf("fragment %d color = %v, want the white default", i, frag.Color)
		}
	}
}

func TestDepthOrderIndependence(t *testing.T) {
	near := func() *scene.Batch { return fullScreenTriangle("near", solidTexture(255, 0, 0), -0.6) }
	far := func() *scene.Batch { return fullScreenTriangle("far", solidTexture(0, 0, 255), 0.6) }

	render := func(batches ...*scene.Batch) *Pipeline {
		p := newTestPipeline(t, 8, 8)
		p.SetScene(&scene.Scene{Batches: batches})
		submitIdentity(t, p)
		return p
	}

	nearFirst := render(near(), far())
	farFirst := render(far(), near())

	for _, p := range []*Pipeline{nearFirst, farFirst} {
		for i, d := range p.depth {
			if math.Abs(d-0.2) > 1e-9 {
				t.Fatalf("depth[%d] = %v, want 0.2 (near surface)", i, d)
			}
			// Red texture means the near triangle's fragment survived.
			if c := p.fb.Pixels[i]; c.R <= c.B {
				t.Fatalf("pixel %d = %v, want the near (red) surface", i, c)
			}
		}
	}

	for i := range nearFirst.fb.Pixels {
		if nearFirst.fb.Pixels[i] != farFirst.fb.Pixels[i] {
			t.Fatalf("pixel %d differs between submission orders", i)
		}
	}
}

func TestDepthOrderConcurrent(t *testing.T) {
	// Many overlapping layers racing for the same pixels across 8
	// workers. The nearest layer must win at every pixel.
	const layers = 16

	p := newTestPipeline(t, 16, 16, WithWorkers(8))
	batches := make([]*scene.Batch, layers)
	for i := range batches {
		// Depths 0.9, 0.85, ... nearest is the last batch.
		z := 0.8 - float64(i)*0.1/layers
		batches[i] = fullScreenTriangle("layer", nil, z)
	}
	nearest := (batches[layers-1].Positions[0].Z + 1) * 0.5
	p.SetScene(&scene.Scene{Batches: batches})

	for range 5 {
		submitIdentity(t, p)

		for i, d := range p.depth {
			if math.Abs(d-nearest) > 1e-9 {
				t.Fatalf("depth[%d] = %v, want %v (nearest layer)", i, d, nearest)
			}
		}
	}
}

func TestSubmitFrameDeterministic(t *testing.T) {
	buildScene := func() *scene.Scene {
		return &scene.Scene{Batches: []*scene.Batch{
			fullScreenTriangle("back", solidTexture(0, 0, 255), 0.4),
			newTestBatch("left", solidTexture(255, 0, 0),
				math3d.V3(-1, -1, -0.2), math3d.V3(0.5, -1, -0.2), math3d.V3(-1, 1, -0.2)),
			newTestBatch("top", solidTexture(0, 255, 0),
				math3d.V3(-1, 0, -0.1), math3d.V3(1, 0, 0.3), math3d.V3(0, 1, -0.3)),
		}}
	}

	p1 := newTestPipeline(t, 32, 32, WithWorkers(8))
	p1.SetScene(buildScene())
	submitIdentity(t, p1)
	first := make([]Color, len(p1.fb.Pixels))
	copy(first, p1.fb.Pixels)

	// Same pipeline resubmitted, and a fresh pipeline, must both match
	// byte for byte.
	submitIdentity(t, p1)
	for i := range first {
		if p1.fb.Pixels[i] != first[i] {
			t.Fatalf("pixel %d changed between identical submissions", i)
		}
	}

	p2 := newTestPipeline(t, 32, 32, WithWorkers(2))
	p2.SetScene(buildScene())
	submitIdentity(t, p2)
	for i := range first {
		if p2.fb.Pixels[i] != first[i] {
			t.Fatalf("pixel %d differs between pipelines", i)
		}
	}
}

func TestBackfaceCullingPipeline(t *testing.T) {
	ccw := newTestBatch("front", nil,
		math3d.V3(-1, -1, -0.5), math3d.V3(1, -1, -0.5), math3d.V3(0, 1, -0.5))
	cw := newTestBatch("back", nil,
		math3d.V3(-1, -1, -0.5), math3d.V3(0, 1, -0.5), math3d.V3(1, -1, -0.5))

	covered := func(p *Pipeline) int {
		n := 0
		for _, d := range p.depth {
			if d != depthInfinity {
				n++
			}
		}
		return n
	}

	p := newTestPipeline(t, 16, 16, WithBackfaceCulling(true))
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{ccw}})
	submitIdentity(t, p)
	if covered(p) == 0 {
		t.Error("counter-clockwise triangle should survive culling")
	}

	p.SetScene(&scene.Scene{Batches: []*scene.Batch{cw}})
	submitIdentity(t, p)
	if n := covered(p); n != 0 {
		t.Errorf("clockwise triangle left %d covered pixels, want 0", n)
	}

	// Same winding renders fine with culling off.
	p.SetBackfaceCulling(false)
	submitIdentity(t, p)
	if covered(p) == 0 {
		t.Error("culling disabled should render both windings")
	}
}

func TestPerspectiveCorrectConstantAttributes(t *testing.T) {
	// A constant attribute must interpolate to exactly that constant,
	// whatever the weights do.
	b := fullScreenTriangle("flat", nil, -0.5)
	b.UVs = []math3d.Vec2{{X: 0.25, Y: 0.75}, {X: 0.25, Y: 0.75}, {X: 0.25, Y: 0.75}}

	p := newTestPipeline(t, 8, 8)
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{b}})
	submitIdentity(t, p)

	for i := range p.fragments {
		frag := &p.fragments[i]
		if math.Abs(frag.UV.X-0.25) > 1e-12 || math.Abs(frag.UV.Y-0.75) > 1e-12 {
			t.Fatalf("fragment %d UV = %v, want (0.25, 0.75)", i, frag.UV)
		}
		if math.Abs(frag.EyeNor.Z-1) > 1e-12 {
			t.Fatalf("fragment %d normal = %v, want +Z", i, frag.EyeNor)
		}
	}
}

func TestShadingAmbientAndTextureToggle(t *testing.T) {
	// Light is far along +X and the surface faces +Z, so diffuse and
	// specular vanish and pixels show base color times the ambient term.
	b := fullScreenTriangle("red", solidTexture(255, 0, 0), -0.5)
	b.UVs = []math3d.Vec2{{}, {}, {}}

	p := newTestPipeline(t, 4, 4)
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{b}})
	submitIdentity(t, p)

	want := uint8(ambientWeight * 255)
	for i, c := range p.fb.Pixels {
		if absInt(int(c.R)-int(want)) > 1 || c.G != 0 || c.B != 0 {
			t.Fatalf("pixel %d = %v, want ambient red (%d, 0, 0)", i, c, want)
		}
	}

	// With textures off the same surface shades with the white base.
	p.SetTexturesEnabled(false)
	submitIdentity(t, p)
	for i, c := range p.fb.Pixels {
		if c.R != c.G || c.G != c.B {
			t.Fatalf("pixel %d = %v, want gray with textures disabled", i, c)
		}
	}
}

func TestSetSceneSkipsInvalidBatches(t *testing.T) {
	lines := newTestBatch("lines", nil,
		math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0))
	lines.Topology = scene.Lines
	empty := &scene.Batch{
		Name:      "empty",
		Positions: []math3d.Vec3{{X: 1}},
		World:     math3d.Identity(),
	}
	valid := fullScreenTriangle("valid", nil, -0.5)

	p := newTestPipeline(t, 4, 4)
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{lines, empty, valid}})

	if got := p.TriangleCount(); got != 1 {
		t.Errorf("TriangleCount() = %d, want 1 (only the valid batch)", got)
	}
	submitIdentity(t, p)

	// Nothing renderable at all reports ErrNoScene.
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{lines, empty}})
	if err := p.SubmitFrame(math3d.Identity(), math3d.Identity()); !errors.Is(err, ErrNoScene) {
		t.Errorf("SubmitFrame with no renderable batches = %v, want ErrNoScene", err)
	}
}

func TestInitResize(t *testing.T) {
	p := newTestPipeline(t, 8, 4)
	p.SetScene(&scene.Scene{Batches: []*scene.Batch{
		fullScreenTriangle("full", nil, -0.5),
	}})
	submitIdentity(t, p)

	if err := p.Init(16, 8); err != nil {
		t.Fatalf("Init resize: %v", err)
	}
	if p.fb.Width != 16 || p.fb.Height != 8 {
		t.Errorf("framebuffer = %dx%d, want 16x8", p.fb.Width, p.fb.Height)
	}
	submitIdentity(t, p)

	for i, d := range p.depth {
		if d == depthInfinity {
			t.Fatalf("depth[%d] untouched after resize, want full coverage", i)
		}
	}
}

func TestVertexTransformScreenMapping(t *testing.T) {
	b := newTestBatch("verts", nil,
		math3d.V3(0, 0, -0.5),
		math3d.V3(-1, 1, -0.5),
		math3d.V3(1, -1, 0.5),
	)
	b.UVs = []math3d.Vec2{{X: 0.5, Y: 0.5}, {}, {}}
	m := &batchMatrices{
		modelView:     math3d.Identity(),
		modelViewProj: math3d.Identity(),
		normal:        math3d.Identity3(),
	}

	tests := []struct {
		name    string
		index   int
		x, y, z float64
		eyeZ    float64
	}{
		{"center", 0, 16, 8, 0.25, -0.5},
		{"top-left corner", 1, 0, 0, 0.25, -0.5},
		{"bottom-right corner", 2, 32, 16, 0.75, 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out TransformedVertex
			transformVertex(b, m, tc.index, 32, 16, &out)

			if math.Abs(out.ScreenPos.X-tc.x) > 1e-9 ||
				math.Abs(out.ScreenPos.Y-tc.y) > 1e-9 ||
				math.Abs(out.ScreenPos.Z-tc.z) > 1e-9 {
				t.Errorf("screen pos = (%v, %v, %v), want (%v, %v, %v)",
					out.ScreenPos.X, out.ScreenPos.Y, out.ScreenPos.Z, tc.x, tc.y, tc.z)
			}
			if out.EyePos.Z != tc.eyeZ {
				t.Errorf("eye z = %v, want %v", out.EyePos.Z, tc.eyeZ)
			}
		})
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func BenchmarkSubmitFrame(b *testing.B) {
	p := NewPipeline(WithWorkers(4))
	if err := p.Init(160, 100); err != nil {
		b.Fatal(err)
	}

	// 100 stacked triangles fighting over the same pixels.
	batches := make([]*scene.Batch, 100)
	for i := range batches {
		batches[i] = fullScreenTriangle("layer", nil, -0.9+float64(i)*0.01)
	}
	p.SetScene(&scene.Scene{Batches: batches})

	proj, view := math3d.Identity(), math3d.Identity()
	for b.Loop() {
		if err := p.SubmitFrame(proj, view); err != nil {
			b.Fatal(err)
		}
	}
}
