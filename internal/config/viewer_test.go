package config

import (
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/stemview/internal/fsutil"
	"github.com/banshee-data/stemview/internal/imagesource"
)

func TestDefaultViewerConfig(t *testing.T) {
	cfg := DefaultViewerConfig()

	// Test that defaults are set via pointers
	if cfg.TransportURL == nil || *cfg.TransportURL != "ws://localhost:8765/ws" {
		t.Errorf("Expected TransportURL ws://localhost:8765/ws, got %v", cfg.TransportURL)
	}
	if cfg.SizeTopic == nil || *cfg.SizeTopic != "stem.size" {
		t.Errorf("Expected SizeTopic stem.size, got %v", cfg.SizeTopic)
	}
	if cfg.ResizeDebounce == nil || *cfg.ResizeDebounce != "50ms" {
		t.Errorf("Expected ResizeDebounce '50ms', got %v", cfg.ResizeDebounce)
	}
	if cfg.ExcludeZeros == nil || *cfg.ExcludeZeros != true {
		t.Errorf("Expected ExcludeZeros true, got %v", cfg.ExcludeZeros)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	// Test getter methods
	if cfg.GetMinDelta() != 1 || cfg.GetMaxDelta() != 9 {
		t.Errorf("delta bounds = [%g, %g], want [1, 9]", cfg.GetMinDelta(), cfg.GetMaxDelta())
	}
	if cfg.GetStreamMode() != imagesource.ModeChunk {
		t.Errorf("GetStreamMode() = %q, want chunk", cfg.GetStreamMode())
	}
	if cfg.GetRangePolicy() != imagesource.ExcludeZeros {
		t.Errorf("GetRangePolicy() = %v, want ExcludeZeros", cfg.GetRangePolicy())
	}
	if cfg.GetRequireSession() {
		t.Error("GetRequireSession() = true, want false")
	}
}

func writeConfig(t *testing.T, name, body string) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	if err := fsys.WriteFile(name, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return fsys
}

func TestLoadViewerConfig_JSON(t *testing.T) {
	fsys := writeConfig(t, "/etc/stemview/viewer.json", `{
  "transport_url": "ws://detector:9000/ws",
  "channel": "scan-7",
  "stream_mode": "dense",
  "aggregation": "max",
  "exclude_zeros": false,
  "shape": "annulus",
  "max_radius": 32,
  "resize_debounce": "100ms"
}`)

	cfg, err := LoadViewerConfig(fsys, "/etc/stemview/viewer.json")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetTransportURL(); got != "ws://detector:9000/ws" {
		t.Errorf("GetTransportURL() = %q", got)
	}
	if got := cfg.GetChannel(); got != "scan-7" {
		t.Errorf("GetChannel() = %q", got)
	}
	if got := cfg.GetStreamMode(); got != imagesource.ModeDense {
		t.Errorf("GetStreamMode() = %q, want dense", got)
	}
	if got := cfg.GetAggregation(); got != imagesource.AggregationMax {
		t.Errorf("GetAggregation() = %q, want max", got)
	}
	if got := cfg.GetRangePolicy(); got != imagesource.IncludeZeros {
		t.Errorf("GetRangePolicy() = %v, want IncludeZeros", got)
	}
	if got := cfg.GetShape(); got != ShapeAnnulus {
		t.Errorf("GetShape() = %q", got)
	}
	if got := cfg.GetMaxRadius(); got != 32 {
		t.Errorf("GetMaxRadius() = %g, want 32", got)
	}
	if got := cfg.GetResizeDebounce(); got != 100*time.Millisecond {
		t.Errorf("GetResizeDebounce() = %v, want 100ms", got)
	}
	// Omitted fields fall back to defaults.
	if got := cfg.GetDataTopic(); got != "stem.bright" {
		t.Errorf("GetDataTopic() = %q, want default", got)
	}
}

func TestLoadViewerConfig_YAML(t *testing.T) {
	fsys := writeConfig(t, "viewer.yaml", `
transport_url: ws://detector:9000/ws
color_map: viridis
min_delta: 2
max_delta: 12
require_session: true
`)

	cfg, err := LoadViewerConfig(fsys, "viewer.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if got := cfg.GetColorMap(); got != "viridis" {
		t.Errorf("GetColorMap() = %q, want viridis", got)
	}
	if cfg.GetMinDelta() != 2 || cfg.GetMaxDelta() != 12 {
		t.Errorf("delta bounds = [%g, %g], want [2, 12]", cfg.GetMinDelta(), cfg.GetMaxDelta())
	}
	if !cfg.GetRequireSession() {
		t.Error("GetRequireSession() = false, want true")
	}
}

func TestLoadViewerConfig_EmptyYAML(t *testing.T) {
	fsys := writeConfig(t, "empty.yml", "")
	cfg, err := LoadViewerConfig(fsys, "empty.yml")
	if err != nil {
		t.Fatalf("empty YAML should load: %v", err)
	}
	if cfg.GetShape() != ShapeRectangle {
		t.Errorf("GetShape() = %q, want default", cfg.GetShape())
	}
}

func TestLoadViewerConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		wantErr string
	}{
		{"wrong extension", "viewer.toml", "x = 1", "extension"},
		{"invalid JSON", "viewer.json", `{"channel": `, "parse config JSON"},
		{"unknown JSON field", "viewer.json", `{"chanel": "x"}`, "parse config JSON"},
		{"invalid YAML", "viewer.yaml", "shape: [", "parse config YAML"},
		{"unknown YAML field", "viewer.yaml", "colour_map: heat", "parse config YAML"},
		{"fails validation", "viewer.json", `{"shape": "hexagon"}`, "invalid configuration"},
		{"too large", "viewer.json", `{"channel": "` + strings.Repeat("x", MaxConfigSize) + `"}`, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := writeConfig(t, tt.path, tt.body)
			_, err := LoadViewerConfig(fsys, tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadViewerConfig() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadViewerConfig(fsutil.NewMemoryFileSystem(), "/nonexistent/viewer.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ViewerConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultViewerConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &ViewerConfig{},
			wantErr: false,
		},
		{
			name:    "unknown stream mode",
			cfg:     &ViewerConfig{StreamMode: ptrString("bulk")},
			wantErr: true,
		},
		{
			name:    "unknown aggregation",
			cfg:     &ViewerConfig{Aggregation: ptrString("mean")},
			wantErr: true,
		},
		{
			name:    "unknown color map",
			cfg:     &ViewerConfig{ColorMap: ptrString("jet")},
			wantErr: true,
		},
		{
			name:    "min delta above default max",
			cfg:     &ViewerConfig{MinDelta: ptrFloat64(10)},
			wantErr: true,
		},
		{
			name:    "negative min radius",
			cfg:     &ViewerConfig{MinRadius: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "zero container",
			cfg:     &ViewerConfig{ContainerWidth: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "zero handle radius",
			cfg:     &ViewerConfig{HandleRadius: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "invalid resize debounce",
			cfg:     &ViewerConfig{ResizeDebounce: ptrString("soon")},
			wantErr: true,
		},
		{
			name:    "negative resize debounce",
			cfg:     &ViewerConfig{ResizeDebounce: ptrString("-1s")},
			wantErr: true,
		},
		{
			name:    "zero resize debounce",
			cfg:     &ViewerConfig{ResizeDebounce: ptrString("0s")},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetResizeDebounce(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ViewerConfig
		want time.Duration
	}{
		{
			name: "100 milliseconds",
			cfg:  &ViewerConfig{ResizeDebounce: ptrString("100ms")},
			want: 100 * time.Millisecond,
		},
		{
			name: "zero disables",
			cfg:  &ViewerConfig{ResizeDebounce: ptrString("0s")},
			want: 0,
		},
		{
			name: "nil pointer returns default",
			cfg:  &ViewerConfig{},
			want: 50 * time.Millisecond,
		},
		{
			name: "empty string returns default",
			cfg:  &ViewerConfig{ResizeDebounce: ptrString("")},
			want: 50 * time.Millisecond,
		},
		{
			name: "invalid duration returns default",
			cfg:  &ViewerConfig{ResizeDebounce: ptrString("invalid")},
			want: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetResizeDebounce()
			if got != tt.want {
				t.Errorf("GetResizeDebounce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetAggregation_FallsBack(t *testing.T) {
	cfg := &ViewerConfig{Aggregation: ptrString("median")}
	if got := cfg.GetAggregation(); got != imagesource.AggregationSum {
		t.Errorf("GetAggregation() = %q, want sum on parse error", got)
	}
}
