// Package imagesource owns the raster buffer behind a view: its size, its
// value range, and the merging of full or partial updates into it.
//
// Two sources share one contract. StaticSource is assigned whole images;
// StreamSource is bound to a transport and accumulates pixel chunks or dense
// per-iteration results as they arrive. Both publish TopicSizeChanged before
// any TopicDataChanged that assumes the new size.
package imagesource

import (
	"errors"
	"math"
)

// Topics published by every source.
const (
	TopicSizeChanged = "sizeChanged"
	TopicDataChanged = "dataChanged"
)

// degenerateEpsilon is the smallest value span treated as a real range.
const degenerateEpsilon = 1e-12

var (
	// ErrInvalidSize is returned for negative image dimensions and for
	// sizes holding more than MaxPixels samples.
	ErrInvalidSize = errors.New("image size must be non-negative and at most MaxPixels")
	// ErrDataLength is returned when a full image does not match width*height.
	ErrDataLength = errors.New("image data length does not match image size")
)

// MaxPixels bounds the buffer a size message can allocate.
const MaxPixels = 1 << 26

// ImageSize is the raster dimension in pixels.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Len is the number of samples a buffer of this size holds. It is only
// meaningful for a Valid size.
func (s ImageSize) Len() int {
	if s.Width <= 0 || s.Height <= 0 {
		return 0
	}
	return s.Width * s.Height
}

// Valid reports whether both dimensions are non-negative and the buffer
// they describe holds at most MaxPixels samples.
func (s ImageSize) Valid() bool {
	if s.Width < 0 || s.Height < 0 {
		return false
	}
	if s.Width == 0 || s.Height == 0 {
		return true
	}
	return s.Width <= MaxPixels/s.Height
}

// DataRange is the [Min, Max] span of the samples in a buffer.
type DataRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// UnitRange is substituted for degenerate ranges.
var UnitRange = DataRange{Min: 0, Max: 1}

// Span returns Max - Min.
func (r DataRange) Span() float64 {
	return r.Max - r.Min
}

// Degenerate reports whether the range is too narrow, or too broken, to
// normalise against.
func (r DataRange) Degenerate() bool {
	span := r.Span()
	return math.IsNaN(span) || math.IsInf(span, 0) || span < degenerateEpsilon
}

// Normalized returns the range itself, or UnitRange when it is degenerate.
// Consumers mapping values onto [0, 1] must go through this.
func (r DataRange) Normalized() DataRange {
	if r.Degenerate() {
		return UnitRange
	}
	return r
}

// PixelChunk is a sparse update: Values[i] belongs at flat index Indexes[i].
type PixelChunk struct {
	Indexes []uint32  `json:"indexes"`
	Values  []float64 `json:"values"`
}

// Valid reports whether the parallel slices line up.
func (c PixelChunk) Valid() bool {
	return len(c.Indexes) == len(c.Values)
}

// RangePolicy controls which samples take part in the range computation.
type RangePolicy int

const (
	// IncludeZeros computes min and max over every sample.
	IncludeZeros RangePolicy = iota
	// ExcludeZeros leaves samples equal to zero out of the minimum, so
	// pixels that have not been received yet do not pin the low end of the
	// colour scale. A zero-span result is stored as UnitRange. This is a
	// display policy: an image that is legitimately all zeros also ends up
	// with UnitRange.
	ExcludeZeros
)

// String returns the config name of the policy.
func (p RangePolicy) String() string {
	switch p {
	case ExcludeZeros:
		return "exclude-zeros"
	default:
		return "include-zeros"
	}
}
