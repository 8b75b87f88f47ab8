// Package geom provides the small amount of vector math shared by the
// selection overlay and the raster view.
package geom

import "math"

// Vec2 is a 2D point. It marshals to JSON as an [x, y] pair.
type Vec2 [2]float64

// V returns the point (x, y).
func V(x, y float64) Vec2 {
	return Vec2{x, y}
}

// X returns the first component.
func (p Vec2) X() float64 { return p[0] }

// Y returns the second component.
func (p Vec2) Y() float64 { return p[1] }

// Add returns p + q.
func (p Vec2) Add(q Vec2) Vec2 {
	return Vec2{p[0] + q[0], p[1] + q[1]}
}

// Sub returns p - q.
func (p Vec2) Sub(q Vec2) Vec2 {
	return Vec2{p[0] - q[0], p[1] - q[1]}
}

// Scale returns p scaled by factor.
func (p Vec2) Scale(factor float64) Vec2 {
	return Vec2{p[0] * factor, p[1] * factor}
}

// Floor rounds both components down to whole pixels.
func (p Vec2) Floor() Vec2 {
	return Vec2{math.Floor(p[0]), math.Floor(p[1])}
}

// Distance returns the Euclidean distance between two points of equal
// dimension. Extra components of the longer slice are ignored.
func Distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Dist is Distance for two Vec2 points.
func Dist(a, b Vec2) float64 {
	return Distance(a[:], b[:])
}

// Normalize returns v rescaled to the given length while keeping its
// direction. A zero vector has no direction; it is mapped onto the +x axis.
func Normalize(v []float64, length float64) []float64 {
	out := make([]float64, len(v))
	norm := 0.0
	for _, c := range v {
		norm += c * c
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		if len(out) > 0 {
			out[0] = length
		}
		return out
	}
	for i, c := range v {
		out[i] = c / norm * length
	}
	return out
}

// NormalizeVec2 is Normalize for a Vec2.
func NormalizeVec2(v Vec2, length float64) Vec2 {
	n := Normalize(v[:], length)
	return Vec2{n[0], n[1]}
}

// LinearScale maps the domain [D0, D1] onto the range [R0, R1].
type LinearScale struct {
	D0, D1 float64
	R0, R1 float64
}

// NewLinearScale returns the scale mapping domain onto rng.
func NewLinearScale(domain, rng [2]float64) LinearScale {
	return LinearScale{D0: domain[0], D1: domain[1], R0: rng[0], R1: rng[1]}
}

// Apply maps value from the domain to the range. A collapsed domain maps
// everything to R0.
func (s LinearScale) Apply(value float64) float64 {
	if s.D1 == s.D0 {
		return s.R0
	}
	return s.R0 + (s.R1-s.R0)*((value-s.D0)/(s.D1-s.D0))
}

// Invert maps value from the range back to the domain.
func (s LinearScale) Invert(value float64) float64 {
	if s.R1 == s.R0 {
		return s.D0
	}
	return s.D0 + (s.D1-s.D0)*((value-s.R0)/(s.R1-s.R0))
}

// Factor is the range length per unit of domain.
func (s LinearScale) Factor() float64 {
	if s.D1 == s.D0 {
		return 0
	}
	return (s.R1 - s.R0) / (s.D1 - s.D0)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
