package render

import (
	"math"

	"github.com/immiao/softpipe/pkg/math3d"
	"github.com/immiao/softpipe/pkg/scene"
)

// depthInfinity is the cleared depth buffer value. Any candidate depth
// inside the valid [0,1] range wins against it.
const depthInfinity = math.MaxFloat64

// Fragment carries the attributes of the front-most surface point at a
// pixel, interpolated perspective-correctly, for the shading stage.
// All fields are written together under the pixel's lock, so a fragment
// is never a mix of two triangles.
type Fragment struct {
	Color  math3d.Vec3 // base color before lighting
	EyePos math3d.Vec3 // eye-space position
	EyeNor math3d.Vec3 // eye-space normal
	UV     math3d.Vec2
	Tex    *scene.Texture // nil when untextured
}
