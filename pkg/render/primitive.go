package render

import (
	"github.com/immiao/softpipe/pkg/math3d"
	"github.com/immiao/softpipe/pkg/scene"
)

// Primitive is an assembled triangle: three transformed vertices plus
// the texture shared by the whole batch.
type Primitive struct {
	V   [3]TransformedVertex
	Tex *scene.Texture
}

// assemblePrimitive gathers the three vertices of triangle t of a batch
// from the flat vertex arena. vertexBase is the batch's global offset
// into the arena, so concurrent assembly across batches never collides.
func assemblePrimitive(b *scene.Batch, vertices []TransformedVertex, vertexBase, t int, out *Primitive) {
	i0 := b.Indices[3*t]
	i1 := b.Indices[3*t+1]
	i2 := b.Indices[3*t+2]

	out.V[0] = vertices[vertexBase+int(i0)]
	out.V[1] = vertices[vertexBase+int(i1)]
	out.V[2] = vertices[vertexBase+int(i2)]

	// Batches carry no per-vertex colors, so every vertex gets the
	// white default here.
	for i := range out.V {
		out.V[i].Color = math3d.V3(1, 1, 1)
	}
	out.Tex = b.Texture
}
