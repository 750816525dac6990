// Package scene provides the device-side representation of loaded
// geometry: a flat arena of primitive batches with their world
// transforms already resolved, ready for per-frame iteration by index.
package scene

import (
	"errors"

	"github.com/immiao/softpipe/pkg/math3d"
)

// Topology tags the primitive layout of a batch's index array.
// Only triangles are rasterized; lines and points are classified at load
// time and skipped.
type Topology int

const (
	Triangles Topology = iota
	Lines
	Points
)

// String returns the topology name.
func (t Topology) String() string {
	switch t {
	case Triangles:
		return "triangles"
	case Lines:
		return "lines"
	case Points:
		return "points"
	}
	return "unknown"
}

var (
	ErrNoPositions  = errors.New("scene: batch has no vertex positions")
	ErrEmptyIndices = errors.New("scene: batch has an empty index array")
	ErrTopology     = errors.New("scene: unsupported primitive topology")
)

// Batch is an immutable per-submesh bundle of vertex attribute arrays,
// an index array, and an optional texture, plus the precomputed world
// transform resolved from the scene graph at load time. The per-frame
// pipeline reads batches but never mutates them.
type Batch struct {
	Name     string
	Topology Topology

	Positions []math3d.Vec3
	Normals   []math3d.Vec3
	UVs       []math3d.Vec2 // nil when the submesh has no texture coordinates
	Indices   []uint32

	Texture *Texture // nil when untextured
	World   math3d.Mat4
}

// Validate reports whether the batch can be rendered.
func (b *Batch) Validate() error {
	if b.Topology != Triangles {
		return ErrTopology
	}
	if len(b.Positions) == 0 {
		return ErrNoPositions
	}
	if len(b.Indices) == 0 {
		return ErrEmptyIndices
	}
	return nil
}

// VertexCount returns the number of vertices.
func (b *Batch) VertexCount() int {
	return len(b.Positions)
}

// TriangleCount returns the number of triangles described by the index
// array.
func (b *Batch) TriangleCount() int {
	return len(b.Indices) / 3
}

// HasUVs reports whether the batch carries texture coordinates.
func (b *Batch) HasUVs() bool {
	return len(b.UVs) > 0
}

// CalculateSmoothNormals derives per-vertex normals by accumulating
// unnormalized face normals and normalizing the sums, for meshes loaded
// without normal data.
func (b *Batch) CalculateSmoothNormals() {
	b.Normals = make([]math3d.Vec3, len(b.Positions))

	for i := 0; i+2 < len(b.Indices); i += 3 {
		i0, i1, i2 := b.Indices[i], b.Indices[i+1], b.Indices[i+2]
		v0 := b.Positions[i0]
		edge1 := b.Positions[i1].Sub(v0)
		edge2 := b.Positions[i2].Sub(v0)
		n := edge1.Cross(edge2) // area-weighted, normalize after summing

		b.Normals[i0] = b.Normals[i0].Add(n)
		b.Normals[i1] = b.Normals[i1].Add(n)
		b.Normals[i2] = b.Normals[i2].Add(n)
	}

	for i := range b.Normals {
		b.Normals[i] = b.Normals[i].Normalize()
	}
}

// Bounds returns the world-space axis-aligned bounding box of the batch.
func (b *Batch) Bounds() (min, max math3d.Vec3) {
	if len(b.Positions) == 0 {
		return math3d.Zero3(), math3d.Zero3()
	}
	min = b.World.MulPoint(b.Positions[0])
	max = min
	for _, p := range b.Positions[1:] {
		w := b.World.MulPoint(p)
		min = min.Min(w)
		max = max.Max(w)
	}
	return min, max
}

// Scene is the flat arena of primitive batches produced by loading. The
// pipeline iterates it by index; name lookups never happen per frame.
type Scene struct {
	Batches []*Batch
}

// TriangleCount returns the total triangle count across all batches.
func (s *Scene) TriangleCount() int {
	total := 0
	for _, b := range s.Batches {
		total += b.TriangleCount()
	}
	return total
}

// VertexCount returns the total vertex count across all batches.
func (s *Scene) VertexCount() int {
	total := 0
	for _, b := range s.Batches {
		total += b.VertexCount()
	}
	return total
}

// Bounds returns the world-space bounding box of the whole scene.
func (s *Scene) Bounds() (min, max math3d.Vec3) {
	if len(s.Batches) == 0 {
		return math3d.Zero3(), math3d.Zero3()
	}
	min, max = s.Batches[0].Bounds()
	for _, b := range s.Batches[1:] {
		bmin, bmax := b.Bounds()
		min = min.Min(bmin)
		max = max.Max(bmax)
	}
	return min, max
}

// Center returns the center of the scene bounding box.
func (s *Scene) Center() math3d.Vec3 {
	min, max := s.Bounds()
	return min.Add(max).Scale(0.5)
}

// Size returns the dimensions of the scene bounding box.
func (s *Scene) Size() math3d.Vec3 {
	min, max := s.Bounds()
	return max.Sub(min)
}
