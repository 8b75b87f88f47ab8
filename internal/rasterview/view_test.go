package rasterview

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stemview/internal/imagesource"
)

var (
	black = color.NRGBA{A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gray  = ColorRamp{black, white}
)

func TestColorRamp_At(t *testing.T) {
	t.Parallel()

	three := ColorRamp{{R: 0, A: 0xff}, {R: 100, A: 0xff}, {R: 200, A: 0xff}}
	tests := []struct {
		name string
		t    float64
		want uint8
	}{
		{"start", 0, 0},
		{"below", -1, 0},
		{"quarter", 0.25, 50},
		{"middle stop", 0.5, 100},
		{"three quarters", 0.75, 150},
		{"end", 1, 200},
		{"above", 7, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, three.At(tt.t).R)
		})
	}

	assert.Equal(t, black, ColorRamp(nil).At(0.3))
	assert.Equal(t, white, ColorRamp{white}.At(0.9))
}

func TestPresets(t *testing.T) {
	t.Parallel()

	for _, name := range ColorMapNames() {
		t.Run(name, func(t *testing.T) {
			ramp, err := ColorMap(name)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(ramp), 2)
			for _, c := range ramp {
				assert.Equal(t, uint8(0xff), c.A, "presets are opaque")
			}
		})
	}

	viridis, err := ColorMap(" Viridis ")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x44, G: 0x01, B: 0x54, A: 0xff}, viridis[0])
	assert.Len(t, ViridisHex(), len(viridis))

	_, err = ColorMap("jet")
	assert.ErrorIs(t, err, ErrUnknownColorMap)
}

func TestParseHexColor(t *testing.T) {
	t.Parallel()

	c, err := ParseHexColor("#fde725")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff}, c)

	c, err = ParseHexColor("ff000080")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0x80}, c)

	for _, bad := range []string{"", "#12345", "#gggggg"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
	_, err = ParseRamp([]string{"#000000", "nope"})
	assert.Error(t, err)
}

func TestOpacityRamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0xff), OpacityRamp(nil).At(0.5))
	o := OpacityRamp{0, 1}
	assert.Equal(t, uint8(0), o.At(0))
	assert.Equal(t, uint8(128), o.At(0.5))
	assert.Equal(t, uint8(0xff), o.At(2))
	assert.Equal(t, uint8(0xff), OpacityRamp{3}.At(0), "clamped to fully opaque")
}

func newLoadedSource(t *testing.T, size imagesource.ImageSize, data []float64) *imagesource.StaticSource {
	t.Helper()
	src := imagesource.NewStaticSource()
	require.NoError(t, src.SetImage(size, data))
	return src
}

func TestView_RendersThroughRamp(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 3, Height: 1}, []float64{10, 15, 20})
	v := NewView(src, gray)
	defer v.Close()

	img := v.Image()
	require.Equal(t, image.Rect(0, 0, 3, 1), img.Rect)
	assert.Equal(t, black, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 128, A: 0xff}, img.NRGBAAt(1, 0))
	assert.Equal(t, white, img.NRGBAAt(2, 0))

	// New data re-renders without any explicit call.
	require.NoError(t, src.SetImageData([]float64{20, 15, 10}))
	assert.Equal(t, white, v.Image().NRGBAAt(0, 0))
}

func TestView_DegenerateRange(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 2, Height: 2}, []float64{0.5, 0.5, 0.5, 0.5})
	v := NewView(src, gray)
	defer v.Close()

	// The unit range stands in for a zero span, so 0.5 maps to mid grey.
	c := v.Image().NRGBAAt(1, 1)
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 128, A: 0xff}, c)
}

func TestView_PlaceholderIsEmpty(t *testing.T) {
	t.Parallel()

	src := imagesource.NewStaticSource()
	v := NewView(src, nil)
	defer v.Close()

	assert.True(t, v.Image().Rect.Empty(), "a 1x1 placeholder renders nothing")
	assert.True(t, v.Scaled(10, 10).Rect.Dx() == 10)
	assert.Error(t, v.EncodePNG(&bytes.Buffer{}))

	require.NoError(t, src.SetImageSize(imagesource.ImageSize{Width: 4, Height: 2}))
	assert.Equal(t, image.Rect(0, 0, 4, 2), v.Image().Rect, "reallocated on sizeChanged")
}

func TestView_SetColorMapRedrawsImmediately(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 2, Height: 1}, []float64{0, 1})
	v := NewView(src, gray)
	defer v.Close()
	frames := v.Frames()

	red := ColorRamp{{R: 0xff, A: 0xff}}
	require.NoError(t, v.SetColorMap(red))
	assert.Equal(t, frames+1, v.Frames())
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, v.Image().NRGBAAt(0, 0))
	if diff := cmp.Diff(red, v.ColorRamp()); diff != "" {
		t.Errorf("ramp mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, errors.Is(v.SetColorMap(nil), ErrEmptyRamp))
	assert.ErrorIs(t, v.SetColorMapName("nope"), ErrUnknownColorMap)
	require.NoError(t, v.SetColorMapName("grayscale"))
	assert.Equal(t, white, v.Image().NRGBAAt(1, 0))
}

func TestView_Opacity(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 2, Height: 1}, []float64{0, 1})
	v := NewView(src, gray)
	defer v.Close()

	v.SetOpacity(OpacityRamp{0, 1})
	img := v.Image()
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0xff), img.NRGBAAt(1, 0).A)

	v.SetOpacity(nil)
	assert.Equal(t, uint8(0xff), v.Image().NRGBAAt(0, 0).A)
}

func TestView_ScaledAndPNG(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 2, Height: 2}, []float64{0, 1, 1, 0})
	v := NewView(src, gray)
	defer v.Close()

	scaled := v.Scaled(4, 4)
	assert.Equal(t, black, scaled.NRGBAAt(1, 1))
	assert.Equal(t, white, scaled.NRGBAAt(2, 1))
	assert.Equal(t, white, scaled.NRGBAAt(0, 3))

	var buf bytes.Buffer
	require.NoError(t, v.EncodePNG(&buf))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())
}

func TestView_Close(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 2, Height: 1}, []float64{0, 1})
	v := NewView(src, gray)
	v.Close()
	v.Close()
	frames := v.Frames()

	require.NoError(t, src.SetImageData([]float64{1, 0}))
	assert.Equal(t, frames, v.Frames())
}

func TestRenderPlot(t *testing.T) {
	t.Parallel()

	src := newLoadedSource(t, imagesource.ImageSize{Width: 3, Height: 2}, []float64{0, 1, 2, 3, 4, 5})
	w, err := RenderPlot(src, gray, PlotOptions{Title: "frame"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	_, err = png.Decode(&buf)
	require.NoError(t, err)

	_, err = RenderPlot(src, nil, PlotOptions{})
	assert.ErrorIs(t, err, ErrEmptyRamp)

	empty := imagesource.NewStaticSource()
	require.NoError(t, empty.SetImageSize(imagesource.ImageSize{}))
	_, err = RenderPlot(empty, gray, PlotOptions{})
	assert.Error(t, err)

	g := gridXYZ{size: imagesource.ImageSize{Width: 3, Height: 2}, data: []float64{0, 1, 2, 3, 4, 5}}
	assert.Equal(t, 0.0, g.Z(0, 0))
	assert.Equal(t, 5.0, g.Z(2, 1))
	assert.Equal(t, 1.0, g.Y(1))
}
