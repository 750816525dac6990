package render

import (
	"math"
	"testing"

	"github.com/immiao/softpipe/pkg/math3d"
)

func sv(x, y float64) math3d.Vec4 {
	return math3d.V4(x, y, 0, 1)
}

func TestBarycentric(t *testing.T) {
	// Triangle: (0,0), (4,0), (0,4)
	a, b, c := sv(0, 0), sv(4, 0), sv(0, 4)

	tests := []struct {
		name       string
		px, py     float64
		w0, w1, w2 float64
	}{
		{"vertex 0", 0, 0, 1, 0, 0},
		{"vertex 1", 4, 0, 0, 1, 0},
		{"vertex 2", 0, 4, 0, 0, 1},
		{"centroid", 4.0 / 3, 4.0 / 3, 1.0 / 3, 1.0 / 3, 1.0 / 3},
		{"edge midpoint", 2, 0, 0.5, 0.5, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w0, w1, w2 := barycentric(a, b, c, tc.px, tc.py)

			if math.Abs(w0-tc.w0) > 1e-9 ||
				math.Abs(w1-tc.w1) > 1e-9 ||
				math.Abs(w2-tc.w2) > 1e-9 {
				t.Errorf("barycentric(%v, %v) = (%v, %v, %v), want (%v, %v, %v)",
					tc.px, tc.py, w0, w1, w2, tc.w0, tc.w1, tc.w2)
			}
		})
	}
}

func TestBarycentricWeightsSumToOne(t *testing.T) {
	a, b, c := sv(1.5, 2.25), sv(17, 3), sv(6, 13.5)

	for _, p := range [][2]float64{{5, 5}, {8, 4}, {2, 3}, {-10, -10}, {100, 0}} {
		w0, w1, w2 := barycentric(a, b, c, p[0], p[1])
		if sum := w0 + w1 + w2; math.Abs(sum-1) > 1e-9 {
			t.Errorf("weights at (%v, %v) sum to %v, want 1", p[0], p[1], sum)
		}
	}
}

func TestBarycentricOutside(t *testing.T) {
	w0, w1, w2 := barycentric(sv(0, 0), sv(4, 0), sv(0, 4), -1, -1)
	if insideTriangle(w0, w1, w2) {
		t.Error("point outside triangle should fail the inside test")
	}
}

func TestBarycentricDegenerate(t *testing.T) {
	// Collinear vertices: zero area
	w0, w1, w2 := barycentric(sv(0, 0), sv(1, 1), sv(2, 2), 1, 1)
	if w0 != 0 || w1 != 0 || w2 != 0 {
		t.Errorf("degenerate triangle weights = (%v, %v, %v), want all zero", w0, w1, w2)
	}
	if insideTriangle(w0, w1, w2) {
		t.Error("degenerate triangle should cover no pixels")
	}
}

func TestInsideTriangleEdgeTolerance(t *testing.T) {
	// A weight a hair below zero from rounding still counts as inside.
	if !insideTriangle(-1e-12, 0.5, 0.5) {
		t.Error("edge-touching weight within tolerance should be inside")
	}
	if insideTriangle(-0.1, 0.6, 0.5) {
		t.Error("clearly negative weight should be outside")
	}
}

func TestIsBackFacing(t *testing.T) {
	front := Primitive{}
	front.V[0].EyePos = math3d.V3(-1, -1, -2)
	front.V[1].EyePos = math3d.V3(1, -1, -2)
	front.V[2].EyePos = math3d.V3(0, 1, -2)

	if isBackFacing(&front) {
		t.Error("counter-clockwise triangle should be front-facing")
	}

	back := front
	back.V[1], back.V[2] = front.V[2], front.V[1]
	if !isBackFacing(&back) {
		t.Error("clockwise triangle should be back-facing")
	}
}

func TestCompactFrontFacing(t *testing.T) {
	prims := make([]Primitive, 5)
	for i := range prims {
		prims[i].V[0].UV = math3d.V2(float64(i), 0) // tag for identity checks
	}
	flags := []bool{false, true, false, true, false}

	out := compactFrontFacing(prims, flags, nil)
	if len(out) != 3 {
		t.Fatalf("compacted %d primitives, want 3", len(out))
	}
	for i, want := range []float64{0, 2, 4} {
		if out[i].V[0].UV.X != want {
			t.Errorf("compacted[%d] came from primitive %v, want %v", i, out[i].V[0].UV.X, want)
		}
	}
}

func TestMin3Max3(t *testing.T) {
	if min3(1, 2, 3) != 1 || min3(3, 1, 2) != 1 || min3(2, 3, 1) != 1 {
		t.Error("min3 failed")
	}
	if max3(1, 2, 3) != 3 || max3(3, 1, 2) != 3 || max3(2, 3, 1) != 3 {
		t.Error("max3 failed")
	}
}
