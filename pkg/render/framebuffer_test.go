package render

import "testing"

func TestFramebufferSetGetPixel(t *testing.T) {
	fb := NewFramebuffer(4, 4)

	fb.SetPixel(2, 1, RGB(10, 20, 30))
	if got := fb.GetPixel(2, 1); got != RGB(10, 20, 30) {
		t.Errorf("GetPixel(2, 1) = %v, want (10, 20, 30)", got)
	}

	// Out of bounds is a no-op / transparent black, never a panic.
	fb.SetPixel(-1, 0, ColorWhite)
	fb.SetPixel(4, 0, ColorWhite)
	if got := fb.GetPixel(-1, 0); got != (Color{}) {
		t.Errorf("out of bounds GetPixel = %v, want zero color", got)
	}
}

func TestFramebufferClear(t *testing.T) {
	fb := NewFramebuffer(3, 3)
	fb.Clear(RGB(5, 6, 7))
	for i, c := range fb.Pixels {
		if c != RGB(5, 6, 7) {
			t.Fatalf("pixel %d = %v after Clear, want (5, 6, 7)", i, c)
		}
	}
}

func TestFramebufferDrawLine(t *testing.T) {
	fb := NewFramebuffer(5, 5)
	fb.DrawLine(0, 0, 4, 4, ColorWhite)

	// The diagonal must be fully set.
	for i := range 5 {
		if fb.GetPixel(i, i) != ColorWhite {
			t.Errorf("diagonal pixel (%d, %d) not drawn", i, i)
		}
	}
}

func TestFramebufferToImage(t *testing.T) {
	fb := NewFramebuffer(2, 2)
	fb.SetPixel(1, 0, RGB(200, 100, 50))

	img := fb.ToImage()
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Fatalf("image bounds = %v, want 2x2", img.Bounds())
	}
	if got := img.RGBAAt(1, 0); got != RGB(200, 100, 50) {
		t.Errorf("image pixel (1, 0) = %v, want (200, 100, 50)", got)
	}
}
