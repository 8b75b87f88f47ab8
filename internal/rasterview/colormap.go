package rasterview

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// ErrUnknownColorMap is returned for a colour map name with no preset.
var ErrUnknownColorMap = errors.New("unknown color map")

// presetStops is the number of stops sampled from continuous gonum maps.
const presetStops = 32

// ColorRamp is an ordered list of colour stops spread evenly over [0, 1].
// Values between stops interpolate linearly between the two nearest.
type ColorRamp []color.NRGBA

// At returns the colour for t in [0, 1]. Out-of-range values clamp to the
// end stops and NaN maps to the first. An empty ramp is black.
func (r ColorRamp) At(t float64) color.NRGBA {
	switch len(r) {
	case 0:
		return color.NRGBA{A: 0xff}
	case 1:
		return r[0]
	}
	if math.IsNaN(t) || t <= 0 {
		return r[0]
	}
	if t >= 1 {
		return r[len(r)-1]
	}
	pos := t * float64(len(r)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := r[i], r[i+1]
	return color.NRGBA{
		R: lerp8(a.R, b.R, frac),
		G: lerp8(a.G, b.G, frac),
		B: lerp8(a.B, b.B, frac),
		A: lerp8(a.A, b.A, frac),
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// Palette samples the ramp into n colours so it can drive gonum/plot.
func (r ColorRamp) Palette(n int) palette.Palette {
	if n < 2 {
		n = 2
	}
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = r.At(float64(i) / float64(n-1))
	}
	return rampPalette(colors)
}

type rampPalette []color.Color

func (p rampPalette) Colors() []color.Color { return p }

// FromPalette converts a gonum palette into a ramp.
func FromPalette(p palette.Palette) ColorRamp {
	colors := p.Colors()
	r := make(ColorRamp, len(colors))
	for i, c := range colors {
		r[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	return r
}

// fromColorMap samples a continuous gonum colour map over [0, 1].
func fromColorMap(cm palette.ColorMap) ColorRamp {
	cm.SetMax(1)
	cm.SetMin(0)
	cm.SetAlpha(1)
	return FromPalette(cm.Palette(presetStops))
}

// ParseHexColor parses "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseRamp builds a ramp from hex colour strings.
func ParseRamp(hex []string) (ColorRamp, error) {
	r := make(ColorRamp, 0, len(hex))
	for _, s := range hex {
		c, err := ParseHexColor(s)
		if err != nil {
			return nil, err
		}
		r = append(r, c)
	}
	return r, nil
}

// viridisStops match the visual map used on the debug heatmap page.
var viridisStops = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ViridisHex returns the viridis stops as hex strings.
func ViridisHex() []string {
	return append([]string(nil), viridisStops...)
}

var presets = map[string]func() ColorRamp{
	"grayscale": func() ColorRamp {
		return ColorRamp{{A: 0xff}, {R: 0xff, G: 0xff, B: 0xff, A: 0xff}}
	},
	"viridis": func() ColorRamp {
		r, err := ParseRamp(viridisStops)
		if err != nil {
			panic(err)
		}
		return r
	},
	"heat": func() ColorRamp {
		return FromPalette(palette.Heat(presetStops, 1))
	},
	"rainbow": func() ColorRamp {
		return FromPalette(palette.Rainbow(presetStops, palette.Blue, palette.Red, 1, 1, 1))
	},
	"blue-red": func() ColorRamp {
		return fromColorMap(moreland.SmoothBlueRed())
	},
	"blackbody": func() ColorRamp {
		return fromColorMap(moreland.BlackBody())
	},
}

// DefaultColorMap is the preset used when none is configured.
const DefaultColorMap = "grayscale"

// ColorMap returns the named preset ramp.
func ColorMap(name string) (ColorRamp, error) {
	build, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownColorMap, name, strings.Join(ColorMapNames(), ", "))
	}
	return build(), nil
}

// ColorMapNames lists the preset names in order.
func ColorMapNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpacityRamp is an ordered list of alpha stops in [0, 1], spread evenly
// over [0, 1] like ColorRamp.
type OpacityRamp []float64

// At returns the interpolated opacity for t as an 8-bit alpha. An empty ramp
// is fully opaque.
func (o OpacityRamp) At(t float64) uint8 {
	if len(o) == 0 {
		return 0xff
	}
	var a float64
	switch {
	case len(o) == 1 || math.IsNaN(t) || t <= 0:
		a = o[0]
	case t >= 1:
		a = o[len(o)-1]
	default:
		pos := t * float64(len(o)-1)
		i := int(pos)
		a = o[i] + (o[i+1]-o[i])*(pos-float64(i))
	}
	return uint8(math.Round(0xff * math.Max(0, math.Min(1, a))))
}
