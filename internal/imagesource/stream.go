package imagesource

import (
	"sync"

	"github.com/banshee-data/stemview/internal/eventbus"
)

// Transport is the subscription side of a live connection that a
// StreamSource binds to. transport.Connection satisfies it.
type Transport interface {
	Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription
	Unsubscribe(sub eventbus.Subscription)
}

// StreamMode selects how data messages are interpreted.
type StreamMode string

const (
	// ModeChunk treats data messages as sparse PixelChunks.
	ModeChunk StreamMode = "chunk"
	// ModeDense treats data messages as dense per-iteration results.
	ModeDense StreamMode = "dense"
)

// StreamSource accumulates data arriving over a Transport.
type StreamSource struct {
	base

	mode        StreamMode
	aggregation Aggregation

	bindMu  sync.Mutex
	conn    Transport
	sizeSub eventbus.Subscription
	dataSub eventbus.Subscription

	// seeded is false until the first dense result after a resize or reset,
	// which is copied rather than aggregated so min/max start from real data.
	seeded bool
}

// StreamOption configures a StreamSource.
type StreamOption func(*StreamSource)

// WithMode selects chunk or dense data messages.
func WithMode(mode StreamMode) StreamOption {
	return func(s *StreamSource) { s.mode = mode }
}

// WithAggregation selects how dense results are folded together.
func WithAggregation(a Aggregation) StreamOption {
	return func(s *StreamSource) { s.aggregation = a }
}

// WithRangePolicy overrides the default ExcludeZeros policy.
func WithRangePolicy(p RangePolicy) StreamOption {
	return func(s *StreamSource) { s.policy = p }
}

// NewStreamSource returns an unbound 1x1 source in chunk mode.
func NewStreamSource(opts ...StreamOption) *StreamSource {
	s := &StreamSource{
		base:        newBase(ExcludeZeros),
		mode:        ModeChunk,
		aggregation: AggregationSum,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the data message interpretation.
func (s *StreamSource) Mode() StreamMode {
	return s.mode
}

// SetConnection binds the source to conn, listening for size messages on
// sizeTopic and data messages on dataTopic. Any previous binding is detached
// first so orphaned handlers cannot accumulate the same data twice.
func (s *StreamSource) SetConnection(conn Transport, sizeTopic, dataTopic string) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	s.detachLocked()
	if conn == nil {
		return
	}
	s.conn = conn
	s.sizeSub = conn.Subscribe(sizeTopic, s.onSizeMessage)
	s.dataSub = conn.Subscribe(dataTopic, s.onDataMessage)
}

// ClearConnection detaches the source from its transport.
func (s *StreamSource) ClearConnection() {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	s.detachLocked()
}

func (s *StreamSource) detachLocked() {
	if s.conn == nil {
		return
	}
	s.conn.Unsubscribe(s.sizeSub)
	s.conn.Unsubscribe(s.dataSub)
	s.conn = nil
	s.sizeSub = eventbus.Subscription{}
	s.dataSub = eventbus.Subscription{}
}

func (s *StreamSource) onSizeMessage(message any) {
	size, err := DecodeSize(message)
	if err != nil {
		logf("dropping size message: %v", err)
		return
	}
	if err := s.SetImageSize(size); err != nil {
		logf("dropping size %dx%d: %v", size.Width, size.Height, err)
	}
}

func (s *StreamSource) onDataMessage(message any) {
	if s.mode == ModeDense {
		result, err := DecodeResult(message)
		if err != nil {
			logf("dropping result message: %v", err)
			return
		}
		s.UpdateDense(result.Result)
		return
	}
	chunk, err := DecodeChunk(message)
	if err != nil {
		logf("dropping chunk message: %v", err)
		return
	}
	s.UpdateImageChunk(chunk)
}

// SetImageSize reallocates the buffer and publishes TopicSizeChanged.
func (s *StreamSource) SetImageSize(size ImageSize) error {
	if !size.Valid() {
		return ErrInvalidSize
	}
	s.mu.Lock()
	if size != s.size {
		s.seeded = false
	}
	s.mu.Unlock()
	return s.base.SetImageSize(size)
}

// UpdateImageChunk sums chunk into the buffer, recomputes the range and
// publishes TopicDataChanged. A chunk whose slices differ in length is
// dropped whole and reported as false; indexes beyond the buffer, including
// the invalidIndex that undecodable wire indexes map to, are skipped
// individually.
func (s *StreamSource) UpdateImageChunk(chunk PixelChunk) bool {
	if !chunk.Valid() {
		logf("dropping chunk: %d indexes but %d values", len(chunk.Indexes), len(chunk.Values))
		return false
	}

	s.mu.Lock()
	n := uint64(len(s.data))
	skipped := 0
	for i, idx := range chunk.Indexes {
		if uint64(idx) >= n {
			skipped++
			continue
		}
		s.data[idx] += chunk.Values[i]
	}
	s.updateRangeLocked()
	s.mu.Unlock()

	if skipped > 0 {
		logf("skipped %d out-of-range chunk indexes (buffer holds %d)", skipped, n)
	}
	s.bus.Publish(TopicDataChanged, nil)
	return true
}

// UpdateDense folds a [row][column] result into the buffer with the
// configured aggregation. A result whose dimension differs from the current
// size resizes the source first, so TopicSizeChanged precedes the
// TopicDataChanged it implies.
func (s *StreamSource) UpdateDense(result [][]float64) {
	dims := ResultMessage{Result: result}.Size()
	if dims.Len() == 0 {
		logf("dropping empty dense result")
		return
	}
	if dims != s.ImageSize() {
		if err := s.SetImageSize(dims); err != nil {
			logf("dropping dense result: %v", err)
			return
		}
	}

	s.mu.Lock()
	width := s.size.Width
	for y, row := range result {
		if y >= s.size.Height {
			break
		}
		dst := s.data[y*width : (y+1)*width]
		if !s.seeded {
			copy(dst, row)
			continue
		}
		s.aggregation.aggregateRow(dst, row)
	}
	s.seeded = true
	s.updateRangeLocked()
	s.mu.Unlock()

	s.bus.Publish(TopicDataChanged, nil)
}

// Reset zero-fills the buffer without changing its size, ready for a new
// acquisition.
func (s *StreamSource) Reset() {
	s.mu.Lock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.seeded = false
	s.updateRangeLocked()
	s.mu.Unlock()

	s.bus.Publish(TopicDataChanged, nil)
}
