package selection

import (
	"fmt"
	"math"

	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/surface"
)

const (
	DefaultMinDelta = 1
	DefaultMaxDelta = 9
)

// Rectangle is an axis-aligned box between an anchor corner and an opposite
// corner, both on whole pixels. The opposite corner stays within
// [MinDelta, MaxDelta] of the anchor on each axis.
type Rectangle struct {
	MinDelta float64
	MaxDelta float64

	p0, p1 geom.Vec2
}

// NewRectangle returns a rectangle constrained to the given per-axis
// offsets. Non-positive limits take the defaults.
func NewRectangle(minDelta, maxDelta float64) *Rectangle {
	if minDelta <= 0 {
		minDelta = DefaultMinDelta
	}
	if maxDelta <= 0 {
		maxDelta = DefaultMaxDelta
	}
	if maxDelta < minDelta {
		maxDelta = minDelta
	}
	r := &Rectangle{MinDelta: minDelta, MaxDelta: maxDelta}
	r.p1 = constrainCorner(r.p0, r.p0, minDelta, maxDelta)
	return r
}

func (r *Rectangle) Name() string { return "rectangle" }

func (r *Rectangle) Handles() []geom.Vec2 {
	return []geom.Vec2{r.p0, r.p1}
}

func (r *Rectangle) SetHandles(handles []geom.Vec2) error {
	if len(handles) != 2 {
		return fmt.Errorf("%w: rectangle takes 2, got %d", ErrHandleCount, len(handles))
	}
	r.p0 = handles[0].Floor()
	r.p1 = constrainCorner(handles[1].Floor(), r.p0, r.MinDelta, r.MaxDelta)
	return nil
}

func (r *Rectangle) PointerDown(hit Hit, p geom.Vec2) (int, bool) {
	return pressTarget(hit, 2, func() int {
		r.p0 = p.Floor()
		r.p1 = r.p0
		return 1
	})
}

func (r *Rectangle) PointerMove(handle int, p geom.Vec2) {
	p = p.Floor()
	if handle == 0 {
		delta := p.Sub(r.p0)
		r.p0 = p
		r.p1 = r.p1.Add(delta)
		return
	}
	r.p1 = constrainCorner(p, r.p0, r.MinDelta, r.MaxDelta)
}

func (r *Rectangle) PointerUp(handle int, p geom.Vec2) {
	r.PointerMove(handle, p)
	r.p1 = constrainCorner(r.p1, r.p0, r.MinDelta, r.MaxDelta)
}

func (r *Rectangle) Draw(c *Canvas) {
	a, b := c.ToContainer(r.p0), c.ToContainer(r.p1)
	c.FillShape(surface.Rect(a, b))
	c.StrokeShape(surface.RectRing(a, b, c.Style().StrokeWidth))
	c.DrawHandles(r.p0, r.p1)
}

// constrainCorner moves p so that its offset from anchor lies within
// [lo, hi] on each axis, keeping the side of the anchor it was on. A zero
// offset counts as positive.
func constrainCorner(p, anchor geom.Vec2, lo, hi float64) geom.Vec2 {
	out := p
	for axis := 0; axis < 2; axis++ {
		d := p[axis] - anchor[axis]
		sign := 1.0
		if d < 0 {
			sign = -1
		}
		if math.Abs(d) < lo {
			out[axis] = anchor[axis] + sign*lo
		}
		if math.Abs(d) > hi {
			out[axis] = anchor[axis] + sign*hi
		}
	}
	return out
}
