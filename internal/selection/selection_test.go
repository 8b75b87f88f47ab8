package selection

import (
	"errors"
	"image/color"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/timeutil"
)

// newSource returns a 100x100 static source; selections over it use a
// 200x200 container, so one image pixel spans two container pixels.
func newSource(t *testing.T) *imagesource.StaticSource {
	t.Helper()
	src := imagesource.NewStaticSource()
	require.NoError(t, src.SetImageSize(imagesource.ImageSize{Width: 100, Height: 100}))
	return src
}

func newSelection(t *testing.T, shape Shape, opts ...Option) (*Selection, *[][]geom.Vec2) {
	t.Helper()
	opts = append([]Option{WithResizeDebounce(0)}, opts...)
	sel := New(newSource(t), shape, 200, 200, opts...)
	t.Cleanup(sel.Close)

	var events [][]geom.Vec2
	sel.Subscribe(TopicSelectionChanged, func(m any) { events = append(events, m.([]geom.Vec2)) })
	return sel, &events
}

func TestRectangle_DragConstraintInvariant(t *testing.T) {
	t.Parallel()

	sel, events := newSelection(t, NewRectangle(1, 9))
	rng := rand.New(rand.NewSource(3))
	pointer := func() float64 { return rng.Float64()*260 - 30 }

	for trial := 0; trial < 200; trial++ {
		if !sel.PointerDown(pointer(), pointer()) {
			continue
		}
		for i := 0; i < 3; i++ {
			sel.PointerMove(pointer(), pointer())
		}
		require.True(t, sel.PointerUp(pointer(), pointer()))

		h := sel.Handles()
		for axis := 0; axis < 2; axis++ {
			d := math.Abs(h[1][axis] - h[0][axis])
			assert.GreaterOrEqual(t, d, 1.0, "trial %d handles %v", trial, h)
			assert.LessOrEqual(t, d, 9.0, "trial %d handles %v", trial, h)
		}
		assert.Equal(t, h, (*events)[len(*events)-1])
	}
	assert.NotEmpty(t, *events)
}

func TestConstrainCorner(t *testing.T) {
	t.Parallel()

	anchor := geom.V(10, 10)
	tests := []struct {
		name string
		p    geom.Vec2
		want geom.Vec2
	}{
		{"inside limits", geom.V(15, 5), geom.V(15, 5)},
		{"collapsed goes positive", geom.V(10, 10), geom.V(11, 11)},
		{"too far keeps side", geom.V(40, -30), geom.V(19, 1)},
		{"too near keeps side", geom.V(10.5, 9.5), geom.V(11, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, constrainCorner(tt.p, anchor, 1, 9))
		})
	}
}

func TestCircle_HitTest(t *testing.T) {
	t.Parallel()

	sel, events := newSelection(t, NewCircle(1, 40))
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(50, 50), geom.V(70, 50)}))
	assert.Empty(t, *events, "SetHandles does not publish")

	assert.Equal(t, Hit{Kind: HitHandle, Handle: 0}, sel.HitTest(100, 100))
	assert.Equal(t, Hit{Kind: HitHandle, Handle: 1}, sel.HitTest(140, 100))
	assert.Equal(t, Hit{Kind: HitFill}, sel.HitTest(100, 130))
	assert.Equal(t, Hit{Kind: HitNone}, sel.HitTest(190, 190))
	assert.Equal(t, Hit{Kind: HitNone}, sel.HitTest(-5, 400))

	hit := sel.HitImage()
	assert.Equal(t, handleColor(1), hit.RGBAAt(140, 100))
	assert.Equal(t, color.RGBA{R: FillID, G: FillID, B: FillID, A: 0xff}, hit.RGBAAt(100, 130))

	overlay := sel.Overlay()
	assert.NotZero(t, overlay.RGBAAt(100, 130).A, "visible fill is drawn")
	assert.Less(t, overlay.RGBAAt(100, 130).A, uint8(0xff), "visible fill is translucent")
}

func TestRectangle_GroupMove(t *testing.T) {
	t.Parallel()

	sel, events := newSelection(t, NewRectangle(1, 9))
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(10, 10), geom.V(15, 14)}))

	require.True(t, sel.PointerDown(20, 20), "press on the anchor handle")
	sel.PointerMove(30, 30)
	require.True(t, sel.PointerUp(40, 50))

	want := []geom.Vec2{geom.V(20, 25), geom.V(25, 29)}
	assert.Equal(t, want, sel.Handles())
	require.Len(t, *events, 1)
	assert.Equal(t, want, (*events)[0])
}

func TestRectangle_FreshSelection(t *testing.T) {
	t.Parallel()

	sel, events := newSelection(t, NewRectangle(1, 9))
	require.Equal(t, Hit{Kind: HitNone}, sel.HitTest(150, 150))

	require.True(t, sel.PointerDown(150, 150))
	assert.True(t, sel.Dragging())
	assert.Equal(t, []geom.Vec2{geom.V(75, 75), geom.V(75, 75)}, sel.Handles(), "both handles snap to the press")

	sel.PointerMove(170, 160)
	require.True(t, sel.PointerUp(170, 160))
	assert.False(t, sel.Dragging())

	want := []geom.Vec2{geom.V(75, 75), geom.V(84, 80)}
	assert.Equal(t, want, sel.Handles())
	assert.Equal(t, [][]geom.Vec2{want}, *events)
}

func TestRectangle_PressAtFarEdgeStaysInImage(t *testing.T) {
	t.Parallel()

	sel, _ := newSelection(t, NewRectangle(1, 9))
	require.True(t, sel.PointerDown(200, 200))
	assert.Equal(t, []geom.Vec2{geom.V(99, 99), geom.V(99, 99)}, sel.Handles())

	require.True(t, sel.PointerUp(250, 250))
	assert.Equal(t, []geom.Vec2{geom.V(99, 99), geom.V(100, 100)}, sel.Handles(),
		"anchor on the last pixel, corner on the far edge")
}

func TestPressOnFillIsAbsorbed(t *testing.T) {
	t.Parallel()

	sel, events := newSelection(t, NewRectangle(1, 9))
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(10, 10), geom.V(19, 19)}))
	require.Equal(t, Hit{Kind: HitFill}, sel.HitTest(29, 29))

	assert.False(t, sel.PointerDown(29, 29))
	sel.PointerMove(60, 60)
	assert.False(t, sel.PointerUp(60, 60))
	assert.Empty(t, *events, "no drag, no event")
	assert.Equal(t, []geom.Vec2{geom.V(10, 10), geom.V(19, 19)}, sel.Handles())
}

func TestPointerCancel(t *testing.T) {
	t.Parallel()

	sel, events := newSelection(t, NewRectangle(1, 9))
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(10, 10), geom.V(15, 15)}))
	before := sel.Handles()

	require.True(t, sel.PointerDown(150, 150))
	sel.PointerMove(170, 170)
	sel.PointerCancel()

	assert.False(t, sel.Dragging())
	assert.Equal(t, before, sel.Handles())
	assert.False(t, sel.PointerUp(170, 170))
	assert.Empty(t, *events)
}

func TestSetHandles_Errors(t *testing.T) {
	t.Parallel()

	sel, _ := newSelection(t, NewAnnulus(1, 30))
	err := sel.SetHandles([]geom.Vec2{geom.V(1, 1)})
	assert.True(t, errors.Is(err, ErrHandleCount))
	assert.ErrorIs(t, NewRectangle(0, 0).SetHandles(nil), ErrHandleCount)
}

func TestAnnulus_RadiusConstraints(t *testing.T) {
	t.Parallel()

	shape := NewAnnulus(2, 30)
	sel, events := newSelection(t, shape)
	assert.Equal(t, "annulus", shape.Name())

	// Fresh annulus dragged far out: outer radius clamps to the maximum.
	require.True(t, sel.PointerDown(100, 100))
	require.True(t, sel.PointerUp(100, 180))
	radii := shape.Radii()
	assert.InDelta(t, 2, radii[0], 1e-9, "inner radius raised to the minimum")
	assert.InDelta(t, 30, radii[1], 1e-9)
	h := sel.Handles()
	assert.InDelta(t, 50, h[2].X(), 1e-9, "direction of the drag is kept")
	assert.InDelta(t, 80, h[2].Y(), 1e-9)
	require.Len(t, *events, 1)

	// The inner radius cannot pass the outer one.
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(50, 50), geom.V(60, 50), geom.V(70, 50)}))
	shape.PointerMove(1, geom.V(50, 95))
	assert.InDelta(t, 20, shape.Radii()[0], 1e-9)
	assert.InDelta(t, 70, shape.Handles()[1].Y(), 1e-9)

	// The outer radius cannot shrink below the inner one.
	shape.PointerUp(2, geom.V(51, 50))
	radii = shape.Radii()
	assert.LessOrEqual(t, radii[0], radii[1])
}

func TestAnnulus_CenterDragMovesAll(t *testing.T) {
	t.Parallel()

	shape := NewCircle(1, 40)
	require.NoError(t, shape.SetHandles([]geom.Vec2{geom.V(10, 10), geom.V(15, 10)}))
	handle, ok := shape.PointerDown(Hit{Kind: HitHandle, Handle: 0}, geom.V(10, 10))
	require.True(t, ok)
	shape.PointerUp(handle, geom.V(30, 12))
	assert.Equal(t, []geom.Vec2{geom.V(30, 12), geom.V(35, 12)}, shape.Handles())

	_, ok = shape.PointerDown(Hit{Kind: HitHandle, Handle: 7}, geom.V(0, 0))
	assert.False(t, ok, "unknown handle identity")
	_, ok = shape.PointerDown(Hit{Kind: HitFill}, geom.V(0, 0))
	assert.False(t, ok)
}

func TestSourceResizeIsDebounced(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	src := newSource(t)
	sel := New(src, NewCircle(1, 40), 200, 200, WithClock(clock), WithResizeDebounce(50*time.Millisecond))
	defer sel.Close()
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(25, 25), geom.V(30, 25)}))
	require.Equal(t, Hit{Kind: HitHandle, Handle: 0}, sel.HitTest(50, 50))

	require.NoError(t, src.SetImageSize(imagesource.ImageSize{Width: 60, Height: 60}))
	require.NoError(t, src.SetImageSize(imagesource.ImageSize{Width: 50, Height: 50}))
	assert.Equal(t, 1, clock.Pending(), "bursts collapse into one pending resize")
	assert.Equal(t, Hit{Kind: HitHandle, Handle: 0}, sel.HitTest(50, 50), "old scale until the delay passes")

	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, Hit{Kind: HitHandle, Handle: 0}, sel.HitTest(100, 100))
	assert.Equal(t, Hit{Kind: HitNone}, sel.HitTest(50, 50))
}

func TestClose(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	src := newSource(t)
	sel := New(src, NewRectangle(1, 9), 200, 200, WithClock(clock))
	sel.Close()
	sel.Close()

	require.NoError(t, src.SetImageSize(imagesource.ImageSize{Width: 10, Height: 10}))
	assert.Equal(t, 0, clock.Pending(), "closed selections no longer follow the source")
	assert.False(t, sel.PointerDown(150, 150))
}

func TestContainerResize(t *testing.T) {
	t.Parallel()

	sel, _ := newSelection(t, NewCircle(1, 40))
	require.NoError(t, sel.SetHandles([]geom.Vec2{geom.V(50, 50), geom.V(60, 50)}))
	sel.Resize(100, 400)

	assert.Equal(t, 100, sel.Overlay().Rect.Dx())
	assert.Equal(t, Hit{Kind: HitHandle, Handle: 0}, sel.HitTest(50, 200))
	assert.Equal(t, Hit{Kind: HitHandle, Handle: 1}, sel.HitTest(60, 200))

	sel.SetShape(NewRectangle(1, 9))
	assert.Equal(t, "rectangle", sel.Shape().Name())
}
