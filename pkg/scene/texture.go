package scene

import (
	"image"

	"github.com/immiao/softpipe/pkg/math3d"
)

// Texture holds raw texel bytes for sampling during shading. It is
// immutable once loaded: every fragment and vertex referencing it shares
// the same buffer for the lifetime of the scene.
//
// Channels may be 1 (grayscale), 3 (RGB), or 4 (RGBA). Values are 8-bit
// per channel, rows stored top to bottom.
type Texture struct {
	Data     []byte
	Width    int
	Height   int
	Channels int
}

// NewTexture creates an empty texture with the given dimensions and
// channel count.
func NewTexture(width, height, channels int) *Texture {
	return &Texture{
		Data:     make([]byte, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// TextureFromImage converts a decoded image into a 4-channel texture.
func TextureFromImage(img image.Image) *Texture {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	tex := NewTexture(width, height, 4)
	for y := range height {
		for x := range width {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 16-bit values, scale to 8-bit
			off := (y*width + x) * 4
			tex.Data[off] = byte(r >> 8)
			tex.Data[off+1] = byte(g >> 8)
			tex.Data[off+2] = byte(b >> 8)
			tex.Data[off+3] = byte(a >> 8)
		}
	}
	return tex
}

// NewCheckerTexture creates a procedural 3-channel checkerboard texture.
func NewCheckerTexture(width, height, checkSize int, c1, c2 math3d.Vec3) *Texture {
	tex := NewTexture(width, height, 3)
	for y := range height {
		for x := range width {
			c := c1
			if ((x/checkSize)+(y/checkSize))%2 != 0 {
				c = c2
			}
			off := (y*width + x) * 3
			tex.Data[off] = byte(c.X * 255)
			tex.Data[off+1] = byte(c.Y * 255)
			tex.Data[off+2] = byte(c.Z * 255)
		}
	}
	return tex
}

// Sample returns the nearest texel color at the given texture coordinate
// as an RGB vector in [0,1]. Coordinates are clamped to [0,1] and texel
// indices truncated, so (0,0) maps to texel (0,0) and (1,1) to
// (Width-1, Height-1). Grayscale textures replicate their single channel;
// the alpha channel of RGBA textures is ignored.
func (t *Texture) Sample(uv math3d.Vec2) math3d.Vec3 {
	uv = uv.Clamp01()

	x := int(uv.X * float64(t.Width))
	y := int(uv.Y * float64(t.Height))
	if x >= t.Width {
		x = t.Width - 1
	}
	if y >= t.Height {
		y = t.Height - 1
	}

	off := (y*t.Width + x) * t.Channels
	switch t.Channels {
	case 1:
		v := float64(t.Data[off]) / 255
		return math3d.V3(v, v, v)
	default:
		return math3d.V3(
			float64(t.Data[off])/255,
			float64(t.Data[off+1])/255,
			float64(t.Data[off+2])/255,
		)
	}
}
