package rasterview

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/stemview/internal/imagesource"
)

// gridXYZ adapts a row-major raster to plotter.GridXYZ.
type gridXYZ struct {
	size imagesource.ImageSize
	data []float64
}

func (g gridXYZ) Dims() (c, r int) { return g.size.Width, g.size.Height }

func (g gridXYZ) Z(c, r int) float64 {
	return g.data[r*g.size.Width+c]
}

func (g gridXYZ) X(c int) float64 { return float64(c) }

func (g gridXYZ) Y(r int) float64 { return float64(r) }

// PlotOptions controls RenderPlot.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	// Format is any format gonum/plot can write: png, svg, pdf, ...
	Format string
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Width <= 0 {
		o.Width = 6 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 6 * vg.Inch
	}
	if o.Format == "" {
		o.Format = "png"
	}
	return o
}

// RenderPlot draws the source as a gonum/plot heat map with pixel axes,
// coloured by ramp over the source's normalised range.
func RenderPlot(source imagesource.Source, ramp ColorRamp, opts PlotOptions) (io.WriterTo, error) {
	opts = opts.withDefaults()
	size, data := source.Snapshot()
	if size.Len() == 0 || len(data) != size.Len() {
		return nil, fmt.Errorf("nothing to plot: %dx%d with %d samples", size.Width, size.Height, len(data))
	}
	if len(ramp) == 0 {
		return nil, ErrEmptyRamp
	}

	rng := source.DataRange().Normalized()
	hm := plotter.NewHeatMap(gridXYZ{size: size, data: data}, ramp.Palette(presetStops))
	hm.Min, hm.Max = rng.Min, rng.Max
	hm.Underflow, hm.Overflow = ramp.At(0), ramp.At(1)

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	// Image row 0 is at the top.
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(hm)

	w, err := p.WriterTo(opts.Width, opts.Height, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s plot: %w", opts.Format, err)
	}
	return w, nil
}
