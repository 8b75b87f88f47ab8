// Package rasterview renders an image source through a colour ramp into a
// displayable raster, re-rendering whenever the source changes.
package rasterview

import (
	"errors"
	"image"
	"image/png"
	"io"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/banshee-data/stemview/internal/eventbus"
	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/monitoring"
)

var logf = monitoring.Component("rasterview")

// ErrEmptyRamp is returned when a colour map has no stops.
var ErrEmptyRamp = errors.New("color ramp has no stops")

// View keeps an RGBA rendering of a Source up to date.
type View struct {
	mu sync.Mutex

	source  imagesource.Source
	ramp    ColorRamp
	opacity OpacityRamp

	size   imagesource.ImageSize
	img    *image.NRGBA
	frames uint64

	sizeSub eventbus.Subscription
	dataSub eventbus.Subscription
	closed  bool
}

// NewView renders source through ramp and subscribes to its changes. A nil
// ramp uses DefaultColorMap.
func NewView(source imagesource.Source, ramp ColorRamp) *View {
	if len(ramp) == 0 {
		ramp, _ = ColorMap(DefaultColorMap)
	}
	v := &View{source: source, ramp: ramp}
	v.mu.Lock()
	v.reallocLocked()
	v.drawLocked()
	v.mu.Unlock()

	v.sizeSub = source.Subscribe(imagesource.TopicSizeChanged, func(any) { v.onSizeChanged() })
	v.dataSub = source.Subscribe(imagesource.TopicDataChanged, func(any) { v.Redraw() })
	return v
}

func (v *View) onSizeChanged() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.reallocLocked()
	v.drawLocked()
}

// reallocLocked sizes the output raster. Placeholder sources of one pixel or
// less get an empty raster.
func (v *View) reallocLocked() {
	v.size = v.source.ImageSize()
	if v.size.Len() <= 1 {
		v.img = image.NewNRGBA(image.Rectangle{})
		return
	}
	v.img = image.NewNRGBA(image.Rect(0, 0, v.size.Width, v.size.Height))
}

// Redraw re-renders from the source's current data.
func (v *View) Redraw() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.drawLocked()
}

func (v *View) drawLocked() {
	if v.img.Rect.Empty() {
		return
	}
	if v.source.ImageSize() != v.size {
		// A resize is in flight; its sizeChanged handler redraws.
		return
	}
	data := v.source.ImageData()
	if len(data) != v.size.Len() {
		logf("skipping frame: %d samples for %dx%d", len(data), v.size.Width, v.size.Height)
		return
	}

	rng := v.source.DataRange().Normalized()
	norm := geom.NewLinearScale([2]float64{rng.Min, rng.Max}, [2]float64{0, 1})
	pix := v.img.Pix
	for i, value := range data {
		t := norm.Apply(value)
		c := v.ramp.At(t)
		if v.opacity != nil {
			c.A = v.opacity.At(t)
		}
		o := i * 4
		pix[o], pix[o+1], pix[o+2], pix[o+3] = c.R, c.G, c.B, c.A
	}
	v.frames++
}

// SetColorMap replaces the ramp and redraws from the last data at once.
func (v *View) SetColorMap(ramp ColorRamp) error {
	if len(ramp) == 0 {
		return ErrEmptyRamp
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ramp = append(ColorRamp(nil), ramp...)
	v.drawLocked()
	return nil
}

// SetColorMapName switches to a preset ramp.
func (v *View) SetColorMapName(name string) error {
	ramp, err := ColorMap(name)
	if err != nil {
		return err
	}
	return v.SetColorMap(ramp)
}

// ColorRamp returns a copy of the active ramp.
func (v *View) ColorRamp() ColorRamp {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append(ColorRamp(nil), v.ramp...)
}

// SetOpacity installs a per-value opacity ramp, or restores fixed opacity
// when nil, and redraws.
func (v *View) SetOpacity(o OpacityRamp) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opacity = append(OpacityRamp(nil), o...)
	if len(o) == 0 {
		v.opacity = nil
	}
	v.drawLocked()
}

// Frames counts completed renders.
func (v *View) Frames() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Image returns a copy of the current rendering. It is empty while the
// source covers one pixel or less.
func (v *View) Image() *image.NRGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := image.NewNRGBA(v.img.Rect)
	copy(out.Pix, v.img.Pix)
	return out
}

// Scaled returns the rendering scaled to width x height with
// nearest-neighbour sampling, so individual detector pixels stay crisp.
func (v *View) Scaled(width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.img.Rect.Empty() || dst.Rect.Empty() {
		return dst
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Rect, v.img, v.img.Rect, xdraw.Src, nil)
	return dst
}

// EncodePNG writes the current rendering as PNG.
func (v *View) EncodePNG(w io.Writer) error {
	return png.Encode(w, v.Image())
}

// Close unsubscribes from the source.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()
	v.source.Unsubscribe(v.sizeSub)
	v.source.Unsubscribe(v.dataSub)
}
