// Package viewer assembles the streaming image viewer: one transport
// connection feeding a stream source, a raster view of that source, and a
// selection overlay tracking its size. A static source holds the optional
// image fetched at startup.
package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"strings"
	"sync"

	"github.com/banshee-data/stemview/internal/config"
	"github.com/banshee-data/stemview/internal/eventbus"
	"github.com/banshee-data/stemview/internal/fsutil"
	"github.com/banshee-data/stemview/internal/geom"
	"github.com/banshee-data/stemview/internal/httputil"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/monitoring"
	"github.com/banshee-data/stemview/internal/rasterview"
	"github.com/banshee-data/stemview/internal/security"
	"github.com/banshee-data/stemview/internal/selection"
	"github.com/banshee-data/stemview/internal/surface"
	"github.com/banshee-data/stemview/internal/timeutil"
	"github.com/banshee-data/stemview/internal/transport"
)

var logf = monitoring.Component("viewer")

var (
	// ErrNotAuthenticated is returned by Start when a session is required
	// and the gate reports none.
	ErrNotAuthenticated = errors.New("no authenticated session")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("viewer already started")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("viewer closed")
)

// SessionGate reports whether the user has an authenticated session.
type SessionGate interface {
	HasSession(ctx context.Context) bool
}

// SessionGateFunc adapts a function to SessionGate.
type SessionGateFunc func(ctx context.Context) bool

// HasSession calls f.
func (f SessionGateFunc) HasSession(ctx context.Context) bool { return f(ctx) }

// Options carries the viewer's collaborators. Zero values select production
// defaults.
type Options struct {
	FS     fsutil.FileSystem
	Client httputil.HTTPClient
	Gate   SessionGate
	Dialer transport.Dialer
	Clock  timeutil.Clock
}

// Viewer owns every component for one logical view.
type Viewer struct {
	cfg    *config.ViewerConfig
	fs     fsutil.FileSystem
	client httputil.HTTPClient
	gate   SessionGate
	clock  timeutil.Clock

	stream     *imagesource.StreamSource
	static     *imagesource.StaticSource
	view       *rasterview.View
	staticView *rasterview.View
	selection  *selection.Selection
	selSub     eventbus.Subscription

	mu        sync.Mutex
	transport transport.Transport
	started   bool
	closed    bool
	gated     bool
	last      []geom.Vec2
	edits     uint64
}

// New validates cfg and wires the components. Nothing connects until Start.
func New(cfg *config.ViewerConfig, opts Options) (*Viewer, error) {
	if cfg == nil {
		cfg = &config.ViewerConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Client == nil {
		opts.Client = httputil.NewStandardClient(nil)
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	ramp, err := rasterview.ColorMap(cfg.GetColorMap())
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		cfg:    cfg,
		fs:     opts.FS,
		client: opts.Client,
		gate:   opts.Gate,
		clock:  opts.Clock,
	}

	v.stream = imagesource.NewStreamSource(
		imagesource.WithMode(cfg.GetStreamMode()),
		imagesource.WithAggregation(cfg.GetAggregation()),
		imagesource.WithRangePolicy(cfg.GetRangePolicy()),
	)
	v.static = imagesource.NewStaticSource()

	conn := transport.NewConnection(opts.Dialer)
	v.transport = conn
	v.stream.SetConnection(conn, cfg.GetSizeTopic(), cfg.GetDataTopic())

	v.view = rasterview.NewView(v.stream, ramp)
	v.staticView = rasterview.NewView(v.static, ramp)

	style := selection.DefaultStyle()
	style.HandleRadius = cfg.GetHandleRadius()
	v.selection = selection.New(v.stream, newShape(cfg),
		cfg.GetContainerWidth(), cfg.GetContainerHeight(),
		selection.WithStyle(style),
		selection.WithClock(opts.Clock),
		selection.WithResizeDebounce(cfg.GetResizeDebounce()),
	)
	v.selSub = v.selection.Subscribe(selection.TopicSelectionChanged, v.onSelectionChanged)
	return v, nil
}

func newShape(cfg *config.ViewerConfig) selection.Shape {
	switch cfg.GetShape() {
	case config.ShapeCircle:
		return selection.NewCircle(cfg.GetMinRadius(), cfg.GetMaxRadius())
	case config.ShapeAnnulus:
		return selection.NewAnnulus(cfg.GetMinRadius(), cfg.GetMaxRadius())
	default:
		return selection.NewRectangle(cfg.GetMinDelta(), cfg.GetMaxDelta())
	}
}

func (v *Viewer) onSelectionChanged(message any) {
	handles, ok := message.([]geom.Vec2)
	if !ok {
		return
	}
	v.mu.Lock()
	v.last = append([]geom.Vec2(nil), handles...)
	v.edits++
	v.mu.Unlock()
	logf("selection changed: %v", handles)
}

// Start fetches the initial image, if configured, and connects the
// transport. When a session is required and the gate reports none, the
// stream source is rebound to a disabled transport and ErrNotAuthenticated
// is returned. A failed initial fetch is logged and streaming still starts.
func (v *Viewer) Start(ctx context.Context) (ready, closed <-chan struct{}, err error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if v.started {
		v.mu.Unlock()
		return nil, nil, ErrAlreadyStarted
	}
	v.started = true
	v.mu.Unlock()

	if v.cfg.GetRequireSession() && (v.gate == nil || !v.gate.HasSession(ctx)) {
		v.disableStreaming()
		return nil, nil, ErrNotAuthenticated
	}

	if url := v.cfg.GetInitialImageURL(); url != "" {
		if err := v.static.LoadURL(ctx, v.client, url); err != nil {
			logf("initial image: %v", err)
		}
	}

	v.mu.Lock()
	t := v.transport
	v.mu.Unlock()
	ready, closed = t.Connect(v.cfg.GetTransportURL(), v.cfg.GetChannel())
	return ready, closed, nil
}

func (v *Viewer) disableStreaming() {
	disabled := transport.NewDisabled()
	v.mu.Lock()
	old := v.transport
	v.transport = disabled
	v.gated = true
	v.mu.Unlock()

	v.stream.SetConnection(disabled, v.cfg.GetSizeTopic(), v.cfg.GetDataTopic())
	if err := old.Close(); err != nil {
		logf("close transport: %v", err)
	}
	logf("streaming disabled: no authenticated session")
}

// Transport returns the active transport.
func (v *Viewer) Transport() transport.Transport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transport
}

// Stream returns the live source.
func (v *Viewer) Stream() *imagesource.StreamSource { return v.stream }

// Static returns the source holding the fetched image.
func (v *Viewer) Static() *imagesource.StaticSource { return v.static }

// View returns the rendering of the live source.
func (v *Viewer) View() *rasterview.View { return v.view }

// StaticView returns the rendering of the fetched image.
func (v *Viewer) StaticView() *rasterview.View { return v.staticView }

// Selection returns the overlay on the live source.
func (v *Viewer) Selection() *selection.Selection { return v.selection }

// LastSelection returns the handles from the most recent completed drag,
// or nil if there has been none.
func (v *Viewer) LastSelection() []geom.Vec2 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]geom.Vec2(nil), v.last...)
}

// SetColorMap switches both views to a preset ramp.
func (v *Viewer) SetColorMap(name string) error {
	if err := v.view.SetColorMapName(name); err != nil {
		return err
	}
	return v.staticView.SetColorMapName(name)
}

// Frame composites the live raster, scaled to the container, with the
// selection overlay.
func (v *Viewer) Frame() *image.RGBA {
	w, h := v.cfg.GetContainerWidth(), v.cfg.GetContainerHeight()
	s := surface.New(w, h)
	s.Composite(v.view.Scaled(w, h))
	s.Composite(v.selection.Overlay())
	return s.Image()
}

// SaveSnapshot writes Frame as a PNG into the snapshot directory and returns
// its path. An empty name is replaced by a timestamp.
func (v *Viewer) SaveSnapshot(name string) (string, error) {
	if name == "" {
		name = "frame-" + v.clock.Now().UTC().Format("20060102T150405.000")
	}
	dir := v.cfg.GetSnapshotDir()
	if err := v.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	path, err := security.FilePathIn(dir, name, ".png")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, v.Frame()); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := v.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	logf("snapshot written to %s", path)
	return path, nil
}

// Snapshots lists the PNG files in the snapshot directory.
func (v *Viewer) Snapshots() ([]string, error) {
	entries, err := v.fs.ReadDir(v.cfg.GetSnapshotDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Status is a snapshot of the viewer for the debug routes.
type Status struct {
	Gated     bool             `json:"gated"`
	Transport transport.Status `json:"transport"`
	Stream    SourceStatus     `json:"stream"`
	Static    SourceStatus     `json:"static"`
	Selection SelectionStatus  `json:"selection"`
	Frames    uint64           `json:"frames"`
}

// SourceStatus describes one image source.
type SourceStatus struct {
	Size   imagesource.ImageSize `json:"size"`
	Range  imagesource.DataRange `json:"range"`
	Policy string                `json:"policy"`
}

// SelectionStatus describes the overlay.
type SelectionStatus struct {
	Shape    string      `json:"shape"`
	Handles  []geom.Vec2 `json:"handles"`
	Last     []geom.Vec2 `json:"last,omitempty"`
	Edits    uint64      `json:"edits"`
	Dragging bool        `json:"dragging"`
}

type policySource interface {
	imagesource.Source
	RangePolicy() imagesource.RangePolicy
}

func sourceStatus(s policySource) SourceStatus {
	return SourceStatus{
		Size:   s.ImageSize(),
		Range:  s.DataRange(),
		Policy: s.RangePolicy().String(),
	}
}

// Status returns the current state of every component.
func (v *Viewer) Status() Status {
	v.mu.Lock()
	t, gated := v.transport, v.gated
	last, edits := append([]geom.Vec2(nil), v.last...), v.edits
	v.mu.Unlock()

	return Status{
		Gated:     gated,
		Transport: t.Status(),
		Stream:    sourceStatus(v.stream),
		Static:    sourceStatus(v.static),
		Selection: SelectionStatus{
			Shape:    v.selection.Shape().Name(),
			Handles:  v.selection.Handles(),
			Last:     last,
			Edits:    edits,
			Dragging: v.selection.Dragging(),
		},
		Frames: v.view.Frames(),
	}
}

// Close tears everything down. It is safe to call more than once.
func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	t := v.transport
	v.mu.Unlock()

	v.selection.Unsubscribe(v.selSub)
	v.selection.Close()
	v.view.Close()
	v.staticView.Close()
	v.stream.ClearConnection()
	return t.Close()
}
