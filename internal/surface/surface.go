// Package surface provides RGBA raster surfaces with the two primitives the
// selection overlay needs: filling a path and reading back a pixel.
//
// A Surface is either antialiased, for what the user sees, or flat. Flat
// surfaces write the fill colour verbatim to every covered pixel and nothing
// else, so a pixel read back is always exactly one of the colours that were
// filled. That property is what makes a flat surface usable as a lookup
// table.
package surface

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// coverageThreshold is the minimum antialiased coverage at which a flat
// surface treats a pixel as inside the path.
const coverageThreshold = 0x80

// Surface is a fixed-size RGBA raster.
type Surface struct {
	img  *image.RGBA
	flat bool

	rast *vector.Rasterizer
	mask *image.Alpha
}

// New returns a transparent antialiased surface.
func New(width, height int) *Surface {
	s := &Surface{rast: vector.NewRasterizer(0, 0)}
	s.Resize(width, height)
	return s
}

// NewFlat returns a transparent surface that fills without antialiasing.
func NewFlat(width, height int) *Surface {
	s := New(width, height)
	s.flat = true
	return s
}

// Flat reports whether the surface fills without antialiasing.
func (s *Surface) Flat() bool {
	return s.flat
}

// Resize reallocates the surface, clearing it. Negative sizes are treated as
// zero.
func (s *Surface) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	s.mask = nil
}

// Clear makes every pixel transparent.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.img.Rect.Dx() }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Image returns the backing raster. It is replaced on Resize.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// At returns the pixel at (x, y), or transparent outside the surface.
func (s *Surface) At(x, y int) color.RGBA {
	if !(image.Point{X: x, Y: y}.In(s.img.Rect)) {
		return color.RGBA{}
	}
	return s.img.RGBAAt(x, y)
}

// Fill paints the interior of p with c.
func (s *Surface) Fill(p Path, c color.Color) {
	w, h := s.Width(), s.Height()
	if w == 0 || h == 0 || p.Empty() {
		return
	}

	s.rast.Reset(w, h)
	for _, contour := range p.Contours {
		if len(contour) < 3 {
			continue
		}
		s.rast.MoveTo(float32(contour[0].X()), float32(contour[0].Y()))
		for _, pt := range contour[1:] {
			s.rast.LineTo(float32(pt.X()), float32(pt.Y()))
		}
		s.rast.ClosePath()
	}

	if !s.flat {
		s.rast.DrawOp = draw.Over
		s.rast.Draw(s.img, s.img.Rect, image.NewUniform(c), image.Point{})
		return
	}

	if s.mask == nil || s.mask.Rect != s.img.Rect {
		s.mask = image.NewAlpha(s.img.Rect)
	} else {
		clear(s.mask.Pix)
	}
	s.rast.DrawOp = draw.Src
	s.rast.Draw(s.mask, s.mask.Rect, image.Opaque, image.Point{})

	flat := color.RGBAModel.Convert(c).(color.RGBA)
	for y := 0; y < h; y++ {
		row := s.mask.Pix[y*s.mask.Stride : y*s.mask.Stride+w]
		for x, a := range row {
			if a >= coverageThreshold {
				s.img.SetRGBA(x, y, flat)
			}
		}
	}
}

// Composite draws src over the surface.
func (s *Surface) Composite(src image.Image) {
	draw.Draw(s.img, s.img.Rect, src, src.Bounds().Min, draw.Over)
}
