package selection

import (
	"fmt"

	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/surface"
)

const (
	DefaultMinRadius = 1
	DefaultMaxRadius = 64
)

// Annulus is a ring around a centre handle. It has one radius handle (a
// circle) or two, inner then outer. Radii are clamped to
// [MinRadius, MaxRadius] and the inner radius never exceeds the outer.
type Annulus struct {
	MinRadius float64
	MaxRadius float64

	center geom.Vec2
	radii  []geom.Vec2
}

// NewCircle returns an annulus with a single radius handle.
func NewCircle(minRadius, maxRadius float64) *Annulus {
	return newAnnulus(1, minRadius, maxRadius)
}

// NewAnnulus returns an annulus with inner and outer radius handles.
func NewAnnulus(minRadius, maxRadius float64) *Annulus {
	return newAnnulus(2, minRadius, maxRadius)
}

func newAnnulus(n int, minRadius, maxRadius float64) *Annulus {
	if minRadius <= 0 {
		minRadius = DefaultMinRadius
	}
	if maxRadius <= 0 {
		maxRadius = DefaultMaxRadius
	}
	if maxRadius < minRadius {
		maxRadius = minRadius
	}
	a := &Annulus{MinRadius: minRadius, MaxRadius: maxRadius, radii: make([]geom.Vec2, n)}
	a.constrainAll()
	return a
}

func (a *Annulus) Name() string {
	if len(a.radii) == 1 {
		return "circle"
	}
	return "annulus"
}

func (a *Annulus) Handles() []geom.Vec2 {
	return append([]geom.Vec2{a.center}, a.radii...)
}

// Radii returns the radius of each radius handle, inner first.
func (a *Annulus) Radii() []float64 {
	out := make([]float64, len(a.radii))
	for i, h := range a.radii {
		out[i] = geom.Dist(a.center, h)
	}
	return out
}

func (a *Annulus) SetHandles(handles []geom.Vec2) error {
	if len(handles) != len(a.radii)+1 {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrHandleCount, a.Name(), len(a.radii)+1, len(handles))
	}
	a.center = handles[0]
	copy(a.radii, handles[1:])
	a.constrainAll()
	return nil
}

func (a *Annulus) PointerDown(hit Hit, p geom.Vec2) (int, bool) {
	return pressTarget(hit, len(a.radii)+1, func() int {
		a.center = p
		for i := range a.radii {
			a.radii[i] = p
		}
		return len(a.radii)
	})
}

func (a *Annulus) PointerMove(handle int, p geom.Vec2) {
	if handle == 0 {
		delta := p.Sub(a.center)
		a.center = p
		for i := range a.radii {
			a.radii[i] = a.radii[i].Add(delta)
		}
		return
	}
	a.placeRadius(handle-1, p)
}

func (a *Annulus) PointerUp(handle int, p geom.Vec2) {
	a.PointerMove(handle, p)
	a.constrainAll()
}

// bounds returns the radius limits for radius handle i given its
// neighbours.
func (a *Annulus) bounds(i int) (lo, hi float64) {
	lo, hi = a.MinRadius, a.MaxRadius
	if i > 0 {
		if r := geom.Dist(a.center, a.radii[i-1]); r > lo {
			lo = r
		}
	}
	if i < len(a.radii)-1 {
		if r := geom.Dist(a.center, a.radii[i+1]); r < hi {
			hi = r
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// placeRadius moves radius handle i towards p, keeping the direction of p
// from the centre but clamping the distance.
func (a *Annulus) placeRadius(i int, p geom.Vec2) {
	lo, hi := a.bounds(i)
	r := geom.Clamp(geom.Dist(a.center, p), lo, hi)
	a.radii[i] = a.center.Add(geom.NormalizeVec2(p.Sub(a.center), r))
}

// constrainAll clamps every radius, innermost first.
func (a *Annulus) constrainAll() {
	for i := range a.radii {
		lo, hi := a.MinRadius, a.MaxRadius
		if i > 0 {
			lo = geom.Dist(a.center, a.radii[i-1])
		}
		r := geom.Clamp(geom.Dist(a.center, a.radii[i]), lo, hi)
		a.radii[i] = a.center.Add(geom.NormalizeVec2(a.radii[i].Sub(a.center), r))
	}
}

func (a *Annulus) Draw(c *Canvas) {
	center := c.ToContainer(a.center)
	radii := a.Radii()
	outer := radii[len(radii)-1]
	orx, ory := c.Radii(outer)
	width := c.Style().StrokeWidth

	if len(radii) == 1 {
		c.FillShape(surface.Ellipse(center, orx, ory))
	} else {
		irx, iry := c.Radii(radii[0])
		c.FillShape(surface.EllipseAnnulus(center, orx, ory, irx, iry))
		c.StrokeShape(surface.EllipseRing(center, irx, iry, width))
	}
	c.StrokeShape(surface.EllipseRing(center, orx, ory, width))
	c.DrawHandles(a.Handles()...)
}
