package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/stemview/internal/fsutil"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/rasterview"
)

// MaxConfigSize bounds config files.
const MaxConfigSize = 1 * 1024 * 1024 // 1MB

// Shape names accepted by the shape field.
const (
	ShapeRectangle = "rectangle"
	ShapeCircle    = "circle"
	ShapeAnnulus   = "annulus"
)

// ViewerConfig is the viewer's configuration. Every field is optional; the
// Get* methods supply defaults for anything left unset, so partial files are
// safe.
type ViewerConfig struct {
	// Transport
	TransportURL *string `json:"transport_url,omitempty" yaml:"transport_url,omitempty"`
	Channel      *string `json:"channel,omitempty" yaml:"channel,omitempty"`
	SizeTopic    *string `json:"size_topic,omitempty" yaml:"size_topic,omitempty"`
	DataTopic    *string `json:"data_topic,omitempty" yaml:"data_topic,omitempty"`

	// Source
	StreamMode      *string `json:"stream_mode,omitempty" yaml:"stream_mode,omitempty"`
	Aggregation     *string `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	ExcludeZeros    *bool   `json:"exclude_zeros,omitempty" yaml:"exclude_zeros,omitempty"`
	InitialImageURL *string `json:"initial_image_url,omitempty" yaml:"initial_image_url,omitempty"`

	// View
	ColorMap        *string `json:"color_map,omitempty" yaml:"color_map,omitempty"`
	ContainerWidth  *int    `json:"container_width,omitempty" yaml:"container_width,omitempty"`
	ContainerHeight *int    `json:"container_height,omitempty" yaml:"container_height,omitempty"`

	// Selection
	Shape          *string  `json:"shape,omitempty" yaml:"shape,omitempty"`
	MinDelta       *float64 `json:"min_delta,omitempty" yaml:"min_delta,omitempty"`
	MaxDelta       *float64 `json:"max_delta,omitempty" yaml:"max_delta,omitempty"`
	MinRadius      *float64 `json:"min_radius,omitempty" yaml:"min_radius,omitempty"`
	MaxRadius      *float64 `json:"max_radius,omitempty" yaml:"max_radius,omitempty"`
	HandleRadius   *float64 `json:"handle_radius,omitempty" yaml:"handle_radius,omitempty"`
	ResizeDebounce *string  `json:"resize_debounce,omitempty" yaml:"resize_debounce,omitempty"` // duration string like "50ms"

	// Service
	DebugListen    *string `json:"debug_listen,omitempty" yaml:"debug_listen,omitempty"`
	RequireSession *bool   `json:"require_session,omitempty" yaml:"require_session,omitempty"`
	SnapshotDir    *string `json:"snapshot_dir,omitempty" yaml:"snapshot_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultViewerConfig returns a config with every field set to its default.
func DefaultViewerConfig() *ViewerConfig {
	c := &ViewerConfig{}
	return &ViewerConfig{
		TransportURL:    ptrString(c.GetTransportURL()),
		Channel:         ptrString(c.GetChannel()),
		SizeTopic:       ptrString(c.GetSizeTopic()),
		DataTopic:       ptrString(c.GetDataTopic()),
		StreamMode:      ptrString(string(c.GetStreamMode())),
		Aggregation:     ptrString(string(c.GetAggregation())),
		ExcludeZeros:    ptrBool(c.GetExcludeZeros()),
		InitialImageURL: ptrString(c.GetInitialImageURL()),
		ColorMap:        ptrString(c.GetColorMap()),
		ContainerWidth:  ptrInt(c.GetContainerWidth()),
		ContainerHeight: ptrInt(c.GetContainerHeight()),
		Shape:           ptrString(c.GetShape()),
		MinDelta:        ptrFloat64(c.GetMinDelta()),
		MaxDelta:        ptrFloat64(c.GetMaxDelta()),
		MinRadius:       ptrFloat64(c.GetMinRadius()),
		MaxRadius:       ptrFloat64(c.GetMaxRadius()),
		HandleRadius:    ptrFloat64(c.GetHandleRadius()),
		ResizeDebounce:  ptrString(c.GetResizeDebounce().String()),
		DebugListen:     ptrString(c.GetDebugListen()),
		RequireSession:  ptrBool(c.GetRequireSession()),
		SnapshotDir:     ptrString(c.GetSnapshotDir()),
	}
}

// LoadViewerConfig reads a .json, .yaml or .yml config from fsys.
func LoadViewerConfig(fsys fsutil.FileSystem, path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > MaxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), MaxConfigSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ViewerConfig{}
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF; treat it as all defaults.
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ViewerConfig) Validate() error {
	if c.StreamMode != nil {
		switch imagesource.StreamMode(*c.StreamMode) {
		case imagesource.ModeChunk, imagesource.ModeDense:
		default:
			return fmt.Errorf("stream_mode must be %q or %q, got %q", imagesource.ModeChunk, imagesource.ModeDense, *c.StreamMode)
		}
	}
	if c.Aggregation != nil {
		if _, err := imagesource.ParseAggregation(*c.Aggregation); err != nil {
			return err
		}
	}
	if c.ColorMap != nil {
		if _, err := rasterview.ColorMap(*c.ColorMap); err != nil {
			return err
		}
	}
	if c.Shape != nil {
		switch *c.Shape {
		case ShapeRectangle, ShapeCircle, ShapeAnnulus:
		default:
			return fmt.Errorf("shape must be one of %s, %s, %s; got %q", ShapeRectangle, ShapeCircle, ShapeAnnulus, *c.Shape)
		}
	}

	if c.ContainerWidth != nil && *c.ContainerWidth <= 0 {
		return fmt.Errorf("container_width must be positive, got %d", *c.ContainerWidth)
	}
	if c.ContainerHeight != nil && *c.ContainerHeight <= 0 {
		return fmt.Errorf("container_height must be positive, got %d", *c.ContainerHeight)
	}
	if c.HandleRadius != nil && *c.HandleRadius <= 0 {
		return fmt.Errorf("handle_radius must be positive, got %f", *c.HandleRadius)
	}

	// Bounds are checked on the effective values so a lone override cannot
	// cross its default partner.
	if lo, hi := c.GetMinDelta(), c.GetMaxDelta(); lo < 0 || hi < lo {
		return fmt.Errorf("delta bounds must satisfy 0 <= min_delta <= max_delta, got [%g, %g]", lo, hi)
	}
	if lo, hi := c.GetMinRadius(), c.GetMaxRadius(); lo < 0 || hi < lo {
		return fmt.Errorf("radius bounds must satisfy 0 <= min_radius <= max_radius, got [%g, %g]", lo, hi)
	}

	if c.ResizeDebounce != nil && *c.ResizeDebounce != "" {
		d, err := time.ParseDuration(*c.ResizeDebounce)
		if err != nil {
			return fmt.Errorf("invalid resize_debounce '%s': %w", *c.ResizeDebounce, err)
		}
		if d < 0 {
			return fmt.Errorf("resize_debounce must not be negative, got %s", d)
		}
	}

	return nil
}

// GetTransportURL returns the transport_url value or the default.
func (c *ViewerConfig) GetTransportURL() string {
	if c.TransportURL == nil || *c.TransportURL == "" {
		return "ws://localhost:8765/ws"
	}
	return *c.TransportURL
}

// GetChannel returns the channel value or the default.
func (c *ViewerConfig) GetChannel() string {
	if c.Channel == nil || *c.Channel == "" {
		return "default"
	}
	return *c.Channel
}

// GetSizeTopic returns the size_topic value or the default.
func (c *ViewerConfig) GetSizeTopic() string {
	if c.SizeTopic == nil || *c.SizeTopic == "" {
		return "stem.size"
	}
	return *c.SizeTopic
}

// GetDataTopic returns the data_topic value or the default.
func (c *ViewerConfig) GetDataTopic() string {
	if c.DataTopic == nil || *c.DataTopic == "" {
		return "stem.bright"
	}
	return *c.DataTopic
}

// GetStreamMode returns the stream_mode value or the default.
func (c *ViewerConfig) GetStreamMode() imagesource.StreamMode {
	if c.StreamMode == nil || *c.StreamMode == "" {
		return imagesource.ModeChunk
	}
	return imagesource.StreamMode(*c.StreamMode)
}

// GetAggregation returns the aggregation value or the default.
func (c *ViewerConfig) GetAggregation() imagesource.Aggregation {
	if c.Aggregation == nil {
		return imagesource.AggregationSum
	}
	a, err := imagesource.ParseAggregation(*c.Aggregation)
	if err != nil {
		return imagesource.AggregationSum // default on parse error
	}
	return a
}

// GetExcludeZeros returns the exclude_zeros value or the default.
func (c *ViewerConfig) GetExcludeZeros() bool {
	if c.ExcludeZeros == nil {
		return true // default: streamed frames start empty
	}
	return *c.ExcludeZeros
}

// GetRangePolicy maps exclude_zeros onto a range policy.
func (c *ViewerConfig) GetRangePolicy() imagesource.RangePolicy {
	if c.GetExcludeZeros() {
		return imagesource.ExcludeZeros
	}
	return imagesource.IncludeZeros
}

// GetInitialImageURL returns the initial_image_url value. Empty disables the
// initial fetch.
func (c *ViewerConfig) GetInitialImageURL() string {
	if c.InitialImageURL == nil {
		return ""
	}
	return *c.InitialImageURL
}

// GetColorMap returns the color_map value or the default.
func (c *ViewerConfig) GetColorMap() string {
	if c.ColorMap == nil || *c.ColorMap == "" {
		return rasterview.DefaultColorMap
	}
	return *c.ColorMap
}

// GetContainerWidth returns the container_width value or the default.
func (c *ViewerConfig) GetContainerWidth() int {
	if c.ContainerWidth == nil {
		return 640
	}
	return *c.ContainerWidth
}

// GetContainerHeight returns the container_height value or the default.
func (c *ViewerConfig) GetContainerHeight() int {
	if c.ContainerHeight == nil {
		return 640
	}
	return *c.ContainerHeight
}

// GetShape returns the shape value or the default.
func (c *ViewerConfig) GetShape() string {
	if c.Shape == nil || *c.Shape == "" {
		return ShapeRectangle
	}
	return *c.Shape
}

// GetMinDelta returns the min_delta value or the default.
func (c *ViewerConfig) GetMinDelta() float64 {
	if c.MinDelta == nil {
		return 1
	}
	return *c.MinDelta
}

// GetMaxDelta returns the max_delta value or the default.
func (c *ViewerConfig) GetMaxDelta() float64 {
	if c.MaxDelta == nil {
		return 9
	}
	return *c.MaxDelta
}

// GetMinRadius returns the min_radius value or the default.
func (c *ViewerConfig) GetMinRadius() float64 {
	if c.MinRadius == nil {
		return 1
	}
	return *c.MinRadius
}

// GetMaxRadius returns the max_radius value or the default.
func (c *ViewerConfig) GetMaxRadius() float64 {
	if c.MaxRadius == nil {
		return 64
	}
	return *c.MaxRadius
}

// GetHandleRadius returns the handle_radius value or the default.
func (c *ViewerConfig) GetHandleRadius() float64 {
	if c.HandleRadius == nil {
		return 5
	}
	return *c.HandleRadius
}

// GetResizeDebounce parses and returns the ResizeDebounce as a time.Duration.
func (c *ViewerConfig) GetResizeDebounce() time.Duration {
	if c.ResizeDebounce == nil || *c.ResizeDebounce == "" {
		return 50 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ResizeDebounce)
	if err != nil || d < 0 {
		return 50 * time.Millisecond // default on parse error
	}
	return d
}

// GetDebugListen returns the debug_listen value or the default.
func (c *ViewerConfig) GetDebugListen() string {
	if c.DebugListen == nil || *c.DebugListen == "" {
		return "localhost:8081"
	}
	return *c.DebugListen
}

// GetRequireSession returns the require_session value or the default.
func (c *ViewerConfig) GetRequireSession() bool {
	if c.RequireSession == nil {
		return false
	}
	return *c.RequireSession
}

// GetSnapshotDir returns the snapshot_dir value or the default.
func (c *ViewerConfig) GetSnapshotDir() string {
	if c.SnapshotDir == nil || *c.SnapshotDir == "" {
		return "snapshots"
	}
	return *c.SnapshotDir
}
