package viewer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/httputil"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/rasterview"
	"github.com/banshee-data/stemview/internal/security"
	"github.com/banshee-data/stemview/internal/version"
)

// echartsAssetsPrefix is where rendered chart pages load echarts from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxHeatmapPoints bounds the scatter series on the heatmap page.
const maxHeatmapPoints = 40000

type statusResponse struct {
	Version string `json:"version"`
	Status
}

// AttachAdminRoutes registers the viewer's debug endpoints, and the active
// transport's, under /debug/ on mux.
func (v *Viewer) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("viewer", "viewer status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		httputil.WriteJSONOK(w, statusResponse{Version: version.String(), Status: v.Status()})
	})

	debug.HandleFunc("raster.png", "current raster as PNG (?source=stream|static&w=&h=)", v.handleRaster)
	debug.HandleFunc("frame.png", "raster with selection overlay", v.handleFrame)
	debug.HandleFunc("plot", "raster rendered with gonum/plot (?format=png|svg)", v.handlePlot)
	debug.HandleFunc("heatmap", "raster as an echarts heatmap", v.handleHeatmap)
	debug.HandleSilentFunc("selection", v.handleSelection)
	debug.HandleSilentFunc("colormap", v.handleColorMap)
	debug.HandleSilentFunc("snapshot", v.handleSnapshot)

	v.Transport().AttachAdminRoutes(mux)
}

func (v *Viewer) pick(r *http.Request) (imagesource.Source, *rasterview.View, error) {
	switch r.URL.Query().Get("source") {
	case "", "stream":
		return v.stream, v.view, nil
	case "static":
		return v.static, v.staticView, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", r.URL.Query().Get("source"))
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

// pngWriter adapts an encode func to io.WriterTo for httputil.WriteImage.
type pngWriter func(io.Writer) error

func (f pngWriter) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	err := f(cw)
	return cw.n, err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (v *Viewer) handleRaster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	src, view, err := v.pick(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	width, err := queryInt(r, "w")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	height, err := queryInt(r, "h")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if src.ImageSize().Len() == 0 {
		httputil.NotFound(w, "no image")
		return
	}

	// Encode before writing headers so a failure can still be reported.
	var buf bytes.Buffer
	if width > 0 && height > 0 {
		err = png.Encode(&buf, view.Scaled(width, height))
	} else {
		err = view.EncodePNG(&buf)
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode image: %v", err))
		return
	}
	httputil.WriteImage(w, "image/png", &buf)
}

func (v *Viewer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	frame := v.Frame()
	httputil.WriteImage(w, "image/png", pngWriter(func(out io.Writer) error {
		return png.Encode(out, frame)
	}))
}

func (v *Viewer) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	src, view, err := v.pick(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "png"
	}
	contentType := map[string]string{"png": "image/png", "svg": "image/svg+xml"}[format]
	if contentType == "" {
		httputil.BadRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}

	img, err := rasterview.RenderPlot(src, view.ColorRamp(), rasterview.PlotOptions{
		Title:  "Bright field",
		Format: format,
	})
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	httputil.WriteImage(w, contentType, img)
}

func (v *Viewer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	src, _, err := v.pick(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	size, data := src.Snapshot()
	rng := src.DataRange().Normalized()

	stride := 1
	for (size.Width/stride)*(size.Height/stride) > maxHeatmapPoints {
		stride++
	}

	points := make([]opts.ScatterData, 0, len(data)/(stride*stride)+1)
	for y := 0; y < size.Height; y += stride {
		for x := 0; x < size.Width; x += stride {
			points = append(points, opts.ScatterData{Value: []interface{}{x, y, data[y*size.Width+x]}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Raster Heatmap", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Raster Heatmap", Subtitle: fmt.Sprintf("%dx%d points=%d stride=%d", size.Width, size.Height, len(points), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: size.Width, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: size.Height, Name: "y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(rng.Min),
			Max:        float32(rng.Max),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: rasterview.ViridisHex()},
		}),
	)
	scatter.AddSeries("raster", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type selectionRequest struct {
	Handles []geom.Vec2 `json:"handles"`
}

func (v *Viewer) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, selectionRequest{Handles: v.selection.Handles()})
	case http.MethodPost:
		var req selectionRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid body: %v", err))
			return
		}
		if err := v.selection.SetHandles(req.Handles); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, selectionRequest{Handles: v.selection.Handles()})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (v *Viewer) handleColorMap(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]any{"available": rasterview.ColorMapNames()})
	case http.MethodPost:
		name := r.URL.Query().Get("name")
		if err := v.SetColorMap(name); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"colormap": name})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (v *Viewer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names, err := v.Snapshots()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]any{"snapshots": names})
	case http.MethodPost:
		path, err := v.SaveSnapshot(r.URL.Query().Get("name"))
		switch {
		case errors.Is(err, security.ErrPathEscape):
			httputil.BadRequest(w, err.Error())
			return
		case err != nil:
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"path": path})
	default:
		httputil.MethodNotAllowed(w)
	}
}
