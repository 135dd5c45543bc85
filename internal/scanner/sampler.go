package scanner

import (
	"image"
	"image/draw"
)

// Sampler copies frames into a reusable raster. The buffer is reallocated
// only when the frame size changes.
type Sampler struct {
	buf *image.RGBA
}

func (s *Sampler) Sample(frame image.Image) *image.RGBA {
	b := frame.Bounds()
	if s.buf == nil || s.buf.Rect.Dx() != b.Dx() || s.buf.Rect.Dy() != b.Dy() {
		s.buf = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Draw(s.buf, s.buf.Rect, frame, b.Min, draw.Src)
	return s.buf
}
