// Package selection implements the interactive selection overlay drawn on
// top of a raster view.
//
// A Selection owns two surfaces the size of its container. The visible
// surface shows the shape and its handles. The hit surface is never shown:
// every handle is painted on it in a flat grey level that encodes its index,
// and the shape interior in FillID. A pointer press samples the hit surface
// at the pointer to find out what was pressed, with no geometric testing.
package selection

import (
	"image"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/stemview/internal/eventbus"
	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/monitoring"
	"github.com/banshee-data/stemview/internal/surface"
	"github.com/banshee-data/stemview/internal/timeutil"
)

// TopicSelectionChanged carries the final []geom.Vec2 handle positions
// after each completed drag.
const TopicSelectionChanged = "selectionChanged"

// DefaultResizeDebounce lets a burst of size changes settle before the
// scales are rebuilt.
const DefaultResizeDebounce = 50 * time.Millisecond

var logf = monitoring.Component("selection")

// Option configures a Selection.
type Option func(*Selection)

// WithClock replaces the clock driving the resize debounce.
func WithClock(c timeutil.Clock) Option {
	return func(s *Selection) { s.clock = c }
}

// WithResizeDebounce sets the delay between a source size change and the
// resize it triggers. Zero resizes synchronously.
func WithResizeDebounce(d time.Duration) Option {
	return func(s *Selection) { s.debounceDelay = d }
}

// WithStyle sets the visible appearance.
func WithStyle(style Style) Option {
	return func(s *Selection) { s.style = style }
}

type drag struct {
	active bool
	handle int
	before []geom.Vec2
}

// Selection binds a Shape to an image source and a container.
type Selection struct {
	mu sync.Mutex

	source imagesource.Source
	shape  Shape
	style  Style

	visible *surface.Surface
	hit     *surface.Surface

	imageSize imagesource.ImageSize
	container image.Point
	xScale    geom.LinearScale
	yScale    geom.LinearScale

	drag drag

	bus           *eventbus.Bus
	sizeSub       eventbus.Subscription
	clock         timeutil.Clock
	debounceDelay time.Duration
	debounce      *timeutil.Debouncer
	closed        bool
}

// New returns a Selection of shape over source, drawn into a container of
// the given size in pixels. It tracks the source's size until Close.
func New(source imagesource.Source, shape Shape, containerWidth, containerHeight int, opts ...Option) *Selection {
	s := &Selection{
		source:        source,
		shape:         shape,
		style:         DefaultStyle(),
		visible:       surface.New(0, 0),
		hit:           surface.NewFlat(0, 0),
		bus:           eventbus.New(),
		debounceDelay: DefaultResizeDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debounce = timeutil.NewDebouncer(s.clock, s.debounceDelay, s.onSourceResized)
	s.Resize(containerWidth, containerHeight)
	s.sizeSub = source.Subscribe(imagesource.TopicSizeChanged, func(any) { s.debounce.Trigger() })
	return s
}

func (s *Selection) onSourceResized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.rescaleLocked()
	s.redrawLocked()
}

// Resize adapts to a new container size, rebuilding the scales and both
// surfaces.
func (s *Selection) Resize(containerWidth, containerHeight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.container = image.Pt(max(containerWidth, 0), max(containerHeight, 0))
	s.visible.Resize(s.container.X, s.container.Y)
	s.hit.Resize(s.container.X, s.container.Y)
	s.rescaleLocked()
	s.redrawLocked()
}

func (s *Selection) rescaleLocked() {
	s.imageSize = s.source.ImageSize()
	s.xScale = geom.NewLinearScale([2]float64{0, float64(s.imageSize.Width)}, [2]float64{0, float64(s.container.X)})
	s.yScale = geom.NewLinearScale([2]float64{0, float64(s.imageSize.Height)}, [2]float64{0, float64(s.container.Y)})
}

func (s *Selection) redrawLocked() {
	s.visible.Clear()
	s.hit.Clear()
	s.shape.Draw(&Canvas{
		visible: s.visible,
		hit:     s.hit,
		xScale:  s.xScale,
		yScale:  s.yScale,
		style:   s.style,
	})
}

// toImage converts a container pixel position to image coordinates,
// clamped so that flooring the result lands on a pixel of the image.
func (s *Selection) toImage(x, y float64) geom.Vec2 {
	ix := geom.Clamp(s.xScale.Invert(x), 0, lastPixelEdge(s.imageSize.Width))
	iy := geom.Clamp(s.yScale.Invert(y), 0, lastPixelEdge(s.imageSize.Height))
	if math.IsNaN(ix) {
		ix = 0
	}
	if math.IsNaN(iy) {
		iy = 0
	}
	return geom.V(ix, iy)
}

// lastPixelEdge is the largest coordinate below n, or 0 for an empty axis.
func lastPixelEdge(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Nextafter(float64(n), 0)
}

// HitTest samples the hit surface at a container position.
func (s *Selection) HitTest(x, y float64) Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hitTestLocked(x, y)
}

func (s *Selection) hitTestLocked(x, y float64) Hit {
	return decodeHit(s.hit.At(int(math.Floor(x)), int(math.Floor(y))))
}

// PointerDown starts a drag at a container position. It reports whether a
// drag started; a press on the shape interior is absorbed.
func (s *Selection) PointerDown(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.drag.active {
		s.cancelLocked()
	}

	hit := s.hitTestLocked(x, y)
	before := s.shape.Handles()
	handle, ok := s.shape.PointerDown(hit, s.toImage(x, y))
	if !ok {
		return false
	}
	s.drag = drag{active: true, handle: handle, before: before}
	s.redrawLocked()
	return true
}

// PointerMove moves the dragged handle. It is ignored outside a drag.
func (s *Selection) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drag.active {
		return
	}
	s.shape.PointerMove(s.drag.handle, s.toImage(x, y))
	s.redrawLocked()
}

// PointerUp ends the drag and publishes TopicSelectionChanged. It reports
// whether a drag was in progress; without one nothing is published.
func (s *Selection) PointerUp(x, y float64) bool {
	s.mu.Lock()
	if !s.drag.active {
		s.mu.Unlock()
		return false
	}
	s.shape.PointerUp(s.drag.handle, s.toImage(x, y))
	s.drag = drag{}
	s.redrawLocked()
	handles := s.shape.Handles()
	s.mu.Unlock()

	s.bus.Publish(TopicSelectionChanged, handles)
	return true
}

// PointerCancel abandons the drag, restoring the handles it started from.
// Nothing is published.
func (s *Selection) PointerCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Selection) cancelLocked() {
	if !s.drag.active {
		return
	}
	if err := s.shape.SetHandles(s.drag.before); err != nil {
		logf("restoring %s handles: %v", s.shape.Name(), err)
	}
	s.drag = drag{}
	s.redrawLocked()
}

// Dragging reports whether a drag is in progress.
func (s *Selection) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.active
}

// SetHandles positions the shape programmatically and redraws. It does not
// publish TopicSelectionChanged.
func (s *Selection) SetHandles(handles []geom.Vec2) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag = drag{}
	if err := s.shape.SetHandles(handles); err != nil {
		return err
	}
	s.redrawLocked()
	return nil
}

// Handles returns the current handle positions in image coordinates.
func (s *Selection) Handles() []geom.Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape.Handles()
}

// Shape returns the active shape variant.
func (s *Selection) Shape() Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape
}

// SetShape switches the shape variant, abandoning any drag.
func (s *Selection) SetShape(shape Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag = drag{}
	s.shape = shape
	s.redrawLocked()
}

// Overlay returns a copy of the visible surface.
func (s *Selection) Overlay() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRGBA(s.visible.Image())
}

// HitImage returns a copy of the hit surface.
func (s *Selection) HitImage() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRGBA(s.hit.Image())
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

// Subscribe registers a handler for TopicSelectionChanged.
func (s *Selection) Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription {
	return s.bus.Subscribe(topic, handler)
}

// Unsubscribe removes a handler.
func (s *Selection) Unsubscribe(sub eventbus.Subscription) {
	s.bus.Unsubscribe(sub)
}

// Close releases the source subscription and any pending resize. The
// selection must not be used afterwards.
func (s *Selection) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.drag = drag{}
	sub := s.sizeSub
	s.mu.Unlock()

	s.debounce.Stop()
	s.source.Unsubscribe(sub)
}
