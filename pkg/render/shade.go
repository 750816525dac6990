package render

import (
	"math"

	"github.com/immiao/softpipe/pkg/math3d"
)

// Blinn-Phong term weights.
const (
	ambientWeight    = 0.6
	diffuseWeight    = 0.4
	specularExponent = 200.0
)

// shadePixel lights one covered fragment with Blinn-Phong in eye space
// and writes the result to the framebuffer. The eye sits at the origin
// of eye space, so the view vector is the negated fragment position.
func (p *Pipeline) shadePixel(idx int) {
	if p.depth[idx] == depthInfinity {
		return // background, framebuffer already holds the clear color
	}
	frag := &p.fragments[idx]

	base := frag.Color
	if frag.Tex != nil && !p.texturesOff {
		base = frag.Tex.Sample(frag.UV)
	}

	n := frag.EyeNor.Normalize()
	l := p.lightPos.Sub(frag.EyePos).Normalize()
	v := frag.EyePos.Negate().Normalize()
	h := l.Add(v).Normalize()

	diffuse := diffuseWeight * clamp01(n.Dot(l))
	specular := math.Pow(math.Max(0, n.Dot(h)), specularExponent)

	rgb := base.Scale(ambientWeight + diffuse).
		Add(math3d.V3(specular, specular, specular)).Clamp01()

	p.fb.Pixels[idx] = RGB(
		uint8(rgb.X*255),
		uint8(rgb.Y*255),
		uint8(rgb.Z*255),
	)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
