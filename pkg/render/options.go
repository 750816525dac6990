package render

import (
	"image/color"

	"github.com/immiao/softpipe/internal/parallel"
	"github.com/immiao/softpipe/pkg/math3d"
)

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithWorkers sets the worker count for the parallel stages. Zero or
// negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.pool = parallel.NewPool(n)
	}
}

// WithBackfaceCulling enables backface culling. Off by default: meshes
// with inconsistent winding lose faces when culled.
func WithBackfaceCulling(enabled bool) Option {
	return func(p *Pipeline) {
		p.cullBackfaces = enabled
	}
}

// WithLightPosition places the point light, in eye space.
func WithLightPosition(pos math3d.Vec3) Option {
	return func(p *Pipeline) {
		p.lightPos = pos
	}
}

// WithClearColor sets the background color.
func WithClearColor(c color.RGBA) Option {
	return func(p *Pipeline) {
		p.clearColor = c
	}
}
