package render

import (
	"github.com/immiao/softpipe/pkg/math3d"
	"github.com/immiao/softpipe/pkg/scene"
)

// TransformedVertex is the output of the vertex transform stage: the
// vertex projected to screen space plus the eye-space attributes the
// later stages interpolate.
type TransformedVertex struct {
	// ScreenPos holds pixel coordinates in X and Y and the projected
	// depth in Z, remapped from NDC to [0,1]. W keeps the clip-space w.
	ScreenPos math3d.Vec4

	EyePos math3d.Vec3 // eye-space position (perspective correction, lighting)
	EyeNor math3d.Vec3 // eye-space normal
	UV     math3d.Vec2
	Color  math3d.Vec3 // base color; assembly fills in the white default
}

// batchMatrices holds the per-batch transform products computed once per
// frame before the vertex stage runs.
type batchMatrices struct {
	modelView     math3d.Mat4 // view * world
	modelViewProj math3d.Mat4 // projection * view * world
	normal        math3d.Mat3 // transpose of inverse of upper 3x3 of modelView
}

// transformVertex runs the vertex stage for one vertex of a batch:
// project to clip space, divide to NDC, map to pixel coordinates, and
// carry the eye-space position and normal through.
func transformVertex(b *scene.Batch, m *batchMatrices, i, width, height int, out *TransformedVertex) {
	pos := math3d.V4FromV3(b.Positions[i], 1)

	clip := m.modelViewProj.MulVec4(pos)
	ndc := clip.PerspectiveDivide()

	// NDC to pixel coordinates. Y is flipped: NDC +Y is up, pixel rows
	// grow downward. Depth is remapped from [-1,1] to [0,1]; values
	// outside that range fail the depth validity test downstream.
	out.ScreenPos = math3d.V4(
		(ndc.X+1)*0.5*float64(width),
		(1-ndc.Y)*0.5*float64(height),
		(ndc.Z+1)*0.5,
		clip.W,
	)

	out.EyePos = m.modelView.MulPoint(b.Positions[i])
	if len(b.Normals) > 0 {
		out.EyeNor = m.normal.MulVec3(b.Normals[i]).Normalize()
	}
	if len(b.UVs) > 0 {
		out.UV = b.UVs[i]
	}
}
