package render

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/immiao/softpipe/pkg/math3d"
)

// areaEpsilon is the degeneracy threshold for the signed double area of
// a triangle's screen footprint.
const areaEpsilon = 1e-9

// insideEpsilon is the tolerance of the inside test, so pixels exactly
// on an edge are not dropped to rounding noise.
const insideEpsilon = 1e-9

// barycentric computes the barycentric weights of point (px, py) with
// respect to the triangle (a, b, c) in screen space, as ratios of signed
// double areas. Degenerate triangles yield zero weights, which fail the
// inside test everywhere.
func barycentric(a, b, c math3d.Vec4, px, py float64) (w0, w1, w2 float64) {
	area := (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
	if math.Abs(area) < areaEpsilon {
		return 0, 0, 0
	}

	inv := 1 / area
	w0 = ((b.X-px)*(c.Y-py) - (c.X-px)*(b.Y-py)) * inv
	w1 = ((c.X-px)*(a.Y-py) - (a.X-px)*(c.Y-py)) * inv
	w2 = 1 - w0 - w1
	return w0, w1, w2
}

// insideTriangle reports whether barycentric weights describe a point
// inside the triangle, tolerating edge-touching pixels. Zero weights
// from a degenerate triangle sum to 0, not 1, and are rejected here.
func insideTriangle(w0, w1, w2 float64) bool {
	if w0 == 0 && w1 == 0 && w2 == 0 {
		return false
	}
	return w0 >= -insideEpsilon && w1 >= -insideEpsilon && w2 >= -insideEpsilon
}

// rasterizePrimitive scan-converts one triangle: every pixel center
// inside both the triangle and the screen is depth-tested and, if it
// wins, committed as a fragment under the pixel's lock.
func (p *Pipeline) rasterizePrimitive(prim *Primitive) {
	v0, v1, v2 := prim.V[0].ScreenPos, prim.V[1].ScreenPos, prim.V[2].ScreenPos

	// Screen-clamped bounding box of the triangle.
	minX := int(math.Max(0, math.Floor(min3(v0.X, v1.X, v2.X))))
	maxX := int(math.Min(float64(p.width-1), math.Ceil(max3(v0.X, v1.X, v2.X))))
	minY := int(math.Max(0, math.Floor(min3(v0.Y, v1.Y, v2.Y))))
	maxY := int(math.Min(float64(p.height-1), math.Ceil(max3(v0.Y, v1.Y, v2.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5

			w0, w1, w2 := barycentric(v0, v1, v2, px, py)
			if !insideTriangle(w0, w1, w2) {
				continue
			}

			// Depth interpolates in screen space: the projected z is
			// already screen-linear after the perspective divide.
			z := w0*v0.Z + w1*v1.Z + w2*v2.Z
			if z < 0 || z > 1 {
				continue
			}

			p.commitFragment(y*p.width+x, z, prim, w0, w1, w2)
		}
	}
}

// commitFragment performs the depth test and fragment write for one
// pixel under that pixel's spin lock. The depth re-check happens inside
// the critical section; a losing candidate releases without writing.
func (p *Pipeline) commitFragment(idx int, z float64, prim *Primitive, w0, w1, w2 float64) {
	for !atomic.CompareAndSwapInt32(&p.locks[idx], 0, 1) {
		runtime.Gosched()
	}

	if z < p.depth[idx] {
		p.writeFragment(&p.fragments[idx], prim, w0, w1, w2)
		p.depth[idx] = z
	}

	atomic.StoreInt32(&p.locks[idx], 0)
}

// writeFragment interpolates the primitive's attributes at the pixel
// with perspective correction: screen-space weights are rescaled by the
// reciprocal eye-space depth of each vertex. When a vertex sits exactly
// on the eye plane (or the rescaled weights cancel), the correction is
// undefined and interpolation falls back to the uncorrected screen-space
// weights; a covered pixel always commits a fragment.
func (p *Pipeline) writeFragment(frag *Fragment, prim *Primitive, w0, w1, w2 float64) {
	z0 := prim.V[0].EyePos.Z
	z1 := prim.V[1].EyePos.Z
	z2 := prim.V[2].EyePos.Z

	c0, c1, c2 := w0, w1, w2
	fDepth := 1.0
	if z0 != 0 && z1 != 0 && z2 != 0 {
		r0, r1, r2 := w0/z0, w1/z1, w2/z2
		if sum := r0 + r1 + r2; sum != 0 {
			c0, c1, c2 = r0, r1, r2
			fDepth = 1 / sum
		}
	}

	frag.EyePos = prim.V[0].EyePos.Scale(c0).
		Add(prim.V[1].EyePos.Scale(c1)).
		Add(prim.V[2].EyePos.Scale(c2)).Scale(fDepth)
	frag.EyeNor = prim.V[0].EyeNor.Scale(c0).
		Add(prim.V[1].EyeNor.Scale(c1)).
		Add(prim.V[2].EyeNor.Scale(c2)).Scale(fDepth)
	frag.UV = prim.V[0].UV.Scale(c0).
		Add(prim.V[1].UV.Scale(c1)).
		Add(prim.V[2].UV.Scale(c2)).Scale(fDepth)
	frag.Color = prim.V[0].Color.Scale(c0).
		Add(prim.V[1].Color.Scale(c1)).
		Add(prim.V[2].Color.Scale(c2)).Scale(fDepth)
	frag.Tex = prim.Tex
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
