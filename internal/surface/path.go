package surface

import (
	"math"

	"github.com/banshee-data/stemview/internal/geom"
)

// Path is a set of closed contours in surface pixel coordinates. Contours
// are filled with the non-zero rule, so a contour wound the other way cuts a
// hole.
type Path struct {
	Contours [][]geom.Vec2
}

// Add appends the contours of q.
func (p Path) Add(q Path) Path {
	out := Path{Contours: make([][]geom.Vec2, 0, len(p.Contours)+len(q.Contours))}
	out.Contours = append(out.Contours, p.Contours...)
	out.Contours = append(out.Contours, q.Contours...)
	return out
}

// Empty reports whether the path has nothing to fill.
func (p Path) Empty() bool {
	for _, c := range p.Contours {
		if len(c) >= 3 {
			return false
		}
	}
	return true
}

// Rect returns the axis-aligned rectangle spanning the two corners, in
// either order.
func Rect(a, b geom.Vec2) Path {
	return Path{Contours: [][]geom.Vec2{rectContour(a, b, false)}}
}

func rectContour(a, b geom.Vec2, reverse bool) []geom.Vec2 {
	x0, x1 := math.Min(a.X(), b.X()), math.Max(a.X(), b.X())
	y0, y1 := math.Min(a.Y(), b.Y()), math.Max(a.Y(), b.Y())
	c := []geom.Vec2{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	if reverse {
		reverseContour(c)
	}
	return c
}

// RectRing returns the outline of the rectangle spanning a and b, centred on
// its edges and width pixels wide.
func RectRing(a, b geom.Vec2, width float64) Path {
	half := width / 2
	x0, x1 := math.Min(a.X(), b.X()), math.Max(a.X(), b.X())
	y0, y1 := math.Min(a.Y(), b.Y()), math.Max(a.Y(), b.Y())
	outer := rectContour(geom.V(x0-half, y0-half), geom.V(x1+half, y1+half), false)
	if x1-x0 <= width || y1-y0 <= width {
		return Path{Contours: [][]geom.Vec2{outer}}
	}
	inner := rectContour(geom.V(x0+half, y0+half), geom.V(x1-half, y1-half), true)
	return Path{Contours: [][]geom.Vec2{outer, inner}}
}

// ellipseSegments picks a polygon resolution that keeps edges around two
// pixels long.
func ellipseSegments(rx, ry float64) int {
	n := int(math.Ceil(math.Pi * math.Max(rx, ry)))
	if n < 24 {
		n = 24
	}
	if n > 720 {
		n = 720
	}
	return n
}

func ellipseContour(center geom.Vec2, rx, ry float64, reverse bool) []geom.Vec2 {
	n := ellipseSegments(rx, ry)
	c := make([]geom.Vec2, n)
	for i := range c {
		theta := 2 * math.Pi * float64(i) / float64(n)
		c[i] = geom.V(center.X()+rx*math.Cos(theta), center.Y()+ry*math.Sin(theta))
	}
	if reverse {
		reverseContour(c)
	}
	return c
}

// Ellipse returns a polygonal ellipse. Non-positive radii yield an empty
// path.
func Ellipse(center geom.Vec2, rx, ry float64) Path {
	if rx <= 0 || ry <= 0 {
		return Path{}
	}
	return Path{Contours: [][]geom.Vec2{ellipseContour(center, rx, ry, false)}}
}

// Circle is Ellipse with equal radii.
func Circle(center geom.Vec2, r float64) Path {
	return Ellipse(center, r, r)
}

// EllipseAnnulus returns the region between two concentric ellipses. An
// inner ellipse that does not fit inside the outer one is ignored.
func EllipseAnnulus(center geom.Vec2, rx, ry, innerRx, innerRy float64) Path {
	outer := Ellipse(center, rx, ry)
	if outer.Empty() || innerRx <= 0 || innerRy <= 0 || innerRx >= rx || innerRy >= ry {
		return outer
	}
	return Path{Contours: [][]geom.Vec2{
		outer.Contours[0],
		ellipseContour(center, innerRx, innerRy, true),
	}}
}

// EllipseRing returns an ellipse outline width pixels wide.
func EllipseRing(center geom.Vec2, rx, ry, width float64) Path {
	half := width / 2
	return EllipseAnnulus(center, rx+half, ry+half, rx-half, ry-half)
}

func reverseContour(c []geom.Vec2) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}
