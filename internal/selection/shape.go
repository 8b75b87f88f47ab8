package selection

import (
	"errors"
	"image/color"

	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/surface"
)

// FillID is the hit-surface identity painted over a shape's interior.
const FillID uint8 = 255

// ErrHandleCount is returned by SetHandles when the number of positions does
// not match the shape.
var ErrHandleCount = errors.New("wrong number of handles")

// HitKind classifies what lies under the pointer.
type HitKind int

const (
	// HitNone means the hit surface is transparent there.
	HitNone HitKind = iota
	// HitFill means inside the shape but not on a handle.
	HitFill
	// HitHandle means on the handle named by Hit.Handle.
	HitHandle
)

// Hit is a decoded hit-surface sample.
type Hit struct {
	Kind   HitKind
	Handle int
}

// handleColor encodes handle index i as grey level i+1 so that zero stays
// free for "nothing painted".
func handleColor(i int) color.RGBA {
	k := uint8(i + 1)
	return color.RGBA{R: k, G: k, B: k, A: 0xff}
}

var fillColor = color.RGBA{R: FillID, G: FillID, B: FillID, A: 0xff}

// decodeHit turns a hit-surface pixel back into a Hit.
func decodeHit(c color.RGBA) Hit {
	switch {
	case c.A == 0 || c.R == 0:
		return Hit{Kind: HitNone}
	case c.R == FillID:
		return Hit{Kind: HitFill}
	default:
		return Hit{Kind: HitHandle, Handle: int(c.R) - 1}
	}
}

// Shape is one selection geometry. All positions are in image pixel
// coordinates. Shapes are driven by Selection, which holds the lock; they
// need no synchronisation of their own.
type Shape interface {
	// Name identifies the variant ("rectangle", "circle", "annulus").
	Name() string
	// Handles returns the ordered handle positions. Index 0 is the anchor.
	Handles() []geom.Vec2
	// SetHandles positions every handle at once and applies the shape's
	// constraints.
	SetHandles(handles []geom.Vec2) error
	// PointerDown reacts to a press at p over hit. It reports the handle to
	// drag, or false when no drag should start.
	PointerDown(hit Hit, p geom.Vec2) (handle int, dragging bool)
	// PointerMove moves the dragged handle towards p.
	PointerMove(handle int, p geom.Vec2)
	// PointerUp finishes the drag at p and re-applies every constraint.
	PointerUp(handle int, p geom.Vec2)
	// Draw renders the shape onto both surfaces of c.
	Draw(c *Canvas)
}

// pressTarget is the PointerDown behaviour shared by every shape: empty
// space starts a fresh selection via begin, the fill absorbs the press, and
// a known handle starts dragging it.
func pressTarget(hit Hit, handles int, begin func() int) (int, bool) {
	switch hit.Kind {
	case HitNone:
		return begin(), true
	case HitHandle:
		if hit.Handle >= 0 && hit.Handle < handles {
			return hit.Handle, true
		}
	}
	return 0, false
}

// Style is the appearance of the visible surface. Colours are
// alpha-premultiplied.
type Style struct {
	Fill         color.RGBA
	Stroke       color.RGBA
	StrokeWidth  float64
	HandleFill   color.RGBA
	HandleStroke color.RGBA
	// HandleRadius is in container pixels.
	HandleRadius float64
}

// DefaultStyle is a translucent white fill with a red outline.
func DefaultStyle() Style {
	return Style{
		Fill:         color.RGBA{R: 51, G: 51, B: 51, A: 51},
		Stroke:       color.RGBA{R: 0xff, A: 0xff},
		StrokeWidth:  1.5,
		HandleFill:   color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		HandleStroke: color.RGBA{R: 0xff, A: 0xff},
		HandleRadius: 5,
	}
}

// Canvas is what a Shape draws on: the visible surface, the hit surface, and
// the image-to-container scales.
type Canvas struct {
	visible *surface.Surface
	hit     *surface.Surface
	xScale  geom.LinearScale
	yScale  geom.LinearScale
	style   Style
}

// ToContainer maps an image position to container pixels.
func (c *Canvas) ToContainer(p geom.Vec2) geom.Vec2 {
	return geom.V(c.xScale.Apply(p.X()), c.yScale.Apply(p.Y()))
}

// Radii converts an image-space radius into per-axis container radii.
func (c *Canvas) Radii(r float64) (rx, ry float64) {
	return r * c.xScale.Factor(), r * c.yScale.Factor()
}

// Style returns the visible style.
func (c *Canvas) Style() Style {
	return c.style
}

// FillShape paints the translucent interior and marks it with FillID.
func (c *Canvas) FillShape(p surface.Path) {
	c.visible.Fill(p, c.style.Fill)
	c.hit.Fill(p, fillColor)
}

// StrokeShape paints an outline path. Outlines count as interior for
// hit-testing.
func (c *Canvas) StrokeShape(p surface.Path) {
	c.visible.Fill(p, c.style.Stroke)
	c.hit.Fill(p, fillColor)
}

// DrawHandles paints a glyph per handle, and its identity on the hit
// surface. Later handles win where glyphs overlap.
func (c *Canvas) DrawHandles(handles ...geom.Vec2) {
	r := c.style.HandleRadius
	for i, h := range handles {
		pt := c.ToContainer(h)
		c.visible.Fill(surface.Circle(pt, r), c.style.HandleFill)
		c.visible.Fill(surface.EllipseRing(pt, r, r, 1), c.style.HandleStroke)
		c.hit.Fill(surface.Circle(pt, r+0.5), handleColor(i))
	}
}
