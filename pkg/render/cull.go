package render

// isBackFacing classifies a primitive by the winding of its eye-space
// footprint: the z sign of the cross product of the two edges from the
// first vertex. Counter-clockwise triangles face the camera.
func isBackFacing(p *Primitive) bool {
	e1 := p.V[1].EyePos.Sub(p.V[0].EyePos)
	e2 := p.V[2].EyePos.Sub(p.V[0].EyePos)
	return e1.Cross(e2).Z <= 0
}

// compactFrontFacing filters the assembled primitives down to the
// front-facing ones, preserving order. flags[i] must hold the
// classification for prims[i]. The result reuses dst's backing array.
func compactFrontFacing(prims []Primitive, flags []bool, dst []Primitive) []Primitive {
	dst = dst[:0]
	for i := range prims {
		if !flags[i] {
			dst = append(dst, prims[i])
		}
	}
	return dst
}
