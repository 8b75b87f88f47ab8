// Package producer is a synthetic data producer that speaks the viewer's
// transport protocol. It backs the synthetic-producer tool and end-to-end
// tests.
package producer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/monitoring"
	"github.com/banshee-data/stemview/internal/timeutil"
	"github.com/banshee-data/stemview/internal/transport"
)

var logf = monitoring.Component("producer")

// Defaults match a 160x160 detector read out in 32 interleaved chunks.
const (
	DefaultWidth      = 160
	DefaultHeight     = 160
	DefaultChunks     = 32
	DefaultIterations = 4
	DefaultSizeTopic  = "stem.size"
	DefaultDataTopic  = "stem.bright"
)

// Config describes what a Server emits after each subscribe.
type Config struct {
	Size imagesource.ImageSize
	// Mode selects sparse chunks or dense per-iteration results.
	Mode imagesource.StreamMode
	// Chunks is the number of disjoint chunks per frame in chunk mode.
	Chunks int
	// Iterations is the number of dense results in dense mode.
	Iterations int
	// Value is written to every pixel. Dense results scale it by the
	// iteration number so aggregation is observable.
	Value     float64
	SizeTopic string
	DataTopic string
	// Interval paces data messages. Zero sends as fast as possible.
	Interval time.Duration
	// Clock times the pacing. Nil uses the real clock.
	Clock timeutil.Clock
}

// DefaultConfig returns the chunk-mode defaults.
func DefaultConfig() Config {
	return Config{
		Size:       imagesource.ImageSize{Width: DefaultWidth, Height: DefaultHeight},
		Mode:       imagesource.ModeChunk,
		Chunks:     DefaultChunks,
		Iterations: DefaultIterations,
		Value:      1.0,
		SizeTopic:  DefaultSizeTopic,
		DataTopic:  DefaultDataTopic,
	}
}

// Validate reports configurations that cannot produce a frame.
func (c Config) Validate() error {
	if !c.Size.Valid() || c.Size.Len() == 0 {
		return fmt.Errorf("invalid size %dx%d", c.Size.Width, c.Size.Height)
	}
	switch c.Mode {
	case imagesource.ModeChunk:
		if c.Chunks <= 0 {
			return fmt.Errorf("chunks must be positive, got %d", c.Chunks)
		}
	case imagesource.ModeDense:
		if c.Iterations <= 0 {
			return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.SizeTopic == "" || c.DataTopic == "" {
		return errors.New("size and data topics are required")
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	return nil
}

// Frames returns the message sequence sent after a subscribe: the size
// message first, then every data message.
func Frames(cfg Config) ([]transport.Message, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size, err := transport.NewMessage(cfg.SizeTopic, imagesource.SizeMessage{
		Width:  imagesource.FlexInt(cfg.Size.Width),
		Height: imagesource.FlexInt(cfg.Size.Height),
	})
	if err != nil {
		return nil, err
	}
	msgs := []transport.Message{size}

	var payloads []any
	if cfg.Mode == imagesource.ModeDense {
		payloads = denseResults(cfg)
	} else {
		for _, chunk := range Chunks(cfg.Size.Len(), cfg.Chunks, cfg.Value) {
			payloads = append(payloads, map[string]any{"data": chunk})
		}
	}
	for _, p := range payloads {
		msg, err := transport.NewMessage(cfg.DataTopic, p)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Chunks splits n pixels into count interleaved, disjoint chunks whose
// union covers every index. Chunk k holds k, k+count, k+2*count, ...
func Chunks(n, count int, value float64) []imagesource.PixelChunk {
	if n <= 0 || count <= 0 {
		return nil
	}
	count = min(count, n)
	chunks := make([]imagesource.PixelChunk, count)
	for k := range chunks {
		per := (n - k + count - 1) / count
		c := imagesource.PixelChunk{
			Indexes: make([]uint32, 0, per),
			Values:  make([]float64, 0, per),
		}
		for i := k; i < n; i += count {
			c.Indexes = append(c.Indexes, uint32(i))
			c.Values = append(c.Values, value)
		}
		chunks[k] = c
	}
	return chunks
}

func denseResults(cfg Config) []any {
	out := make([]any, cfg.Iterations)
	for it := range out {
		result := make([][]float64, cfg.Size.Height)
		for y := range result {
			row := make([]float64, cfg.Size.Width)
			for x := range row {
				row[x] = cfg.Value * float64(it+1)
			}
			result[y] = row
		}
		out[it] = imagesource.ResultMessage{
			Rank:       it,
			WorkerID:   "synthetic",
			PipelineID: "synthetic",
			Result:     result,
		}
	}
	return out
}

// Stats counts what a Server has done.
type Stats struct {
	Sessions   uint64 `json:"sessions"`
	Subscribes uint64 `json:"subscribes"`
	Sent       uint64 `json:"sent"`
}

// Server is an http.Handler that upgrades to a websocket and streams
// Frames after every subscribe message.
type Server struct {
	cfg    Config
	frames []transport.Message

	sessions   atomic.Uint64
	subscribes atomic.Uint64
	sent       atomic.Uint64
}

// NewServer validates cfg and pre-encodes its frames.
func NewServer(cfg Config) (*Server, error) {
	frames, err := Frames(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Server{cfg: cfg, frames: frames}, nil
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	return Stats{
		Sessions:   s.sessions.Load(),
		Subscribes: s.subscribes.Load(),
		Sent:       s.sent.Load(),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		logf("accept from %s: %v", r.RemoteAddr, err)
		return
	}
	s.sessions.Add(1)
	conn := transport.NewWebSocketConn(c)
	defer conn.Close()
	s.Serve(r.Context(), conn)
}

// Serve handles one established connection until it closes or ctx is done.
func (s *Server) Serve(ctx context.Context, conn transport.Conn) {
	for {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrMalformedMessage) {
				logf("skipping frame: %v", err)
				continue
			}
			return
		}
		if msg.Event != transport.EventSubscribe {
			logf("ignoring %q message", msg.Event)
			continue
		}
		s.subscribes.Add(1)
		logf("subscribe to channel %s: sending %d messages", string(msg.Data), len(s.frames))
		if err := s.stream(ctx, conn); err != nil {
			if ctx.Err() == nil {
				logf("stream: %v", err)
			}
			return
		}
	}
}

func (s *Server) stream(ctx context.Context, conn transport.Conn) error {
	for i, msg := range s.frames {
		// The size message and the first data message go out unpaced.
		if s.cfg.Interval > 0 && i > 1 {
			if err := timeutil.Sleep(ctx, s.cfg.Clock, s.cfg.Interval); err != nil {
				return err
			}
		}
		if err := conn.WriteMessage(ctx, msg); err != nil {
			return err
		}
		s.sent.Add(1)
	}
	return nil
}
