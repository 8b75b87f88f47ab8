package imagesource

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/stemview/internal/eventbus"
	"github.com/banshee-data/stemview/internal/monitoring"
)

var logf = monitoring.Component("imagesource")

// Source is the read side shared by every image source. Views and selections
// depend on this interface only.
type Source interface {
	// ImageSize returns the current raster dimension.
	ImageSize() ImageSize
	// DataRange returns the range computed after the last mutation.
	DataRange() DataRange
	// ImageData returns a snapshot of the raster buffer in row-major order.
	ImageData() []float64
	// Snapshot returns the size and a copy of the buffer read together, so
	// len(data) == size.Len() even while resizes arrive.
	Snapshot() (ImageSize, []float64)
	// PixelData returns the sample at (x, y), or 0 outside the image.
	PixelData(x, y float64) float64
	// Subscribe registers handler on TopicSizeChanged or TopicDataChanged.
	Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription
	// Unsubscribe removes a registration made by Subscribe.
	Unsubscribe(sub eventbus.Subscription)
}

// base is the state shared by both source variants. It is unexported so a
// source can only be built through NewStaticSource or NewStreamSource.
type base struct {
	mu     sync.RWMutex
	data   []float64
	size   ImageSize
	rng    DataRange
	policy RangePolicy

	bus *eventbus.Bus
}

func newBase(policy RangePolicy) base {
	return base{
		data:   []float64{0},
		size:   ImageSize{Width: 1, Height: 1},
		policy: policy,
		bus:    eventbus.New(),
	}
}

// ImageSize returns the current raster dimension.
func (b *base) ImageSize() ImageSize {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// DataRange returns the range computed after the last mutation.
func (b *base) DataRange() DataRange {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rng
}

// ImageData returns a copy of the raster buffer. The buffer itself is
// replaced on resize and mutated on updates, so callers never see it.
func (b *base) ImageData() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float64, len(b.data))
	copy(out, b.data)
	return out
}

// Snapshot returns the size and a copy of the buffer under one lock.
func (b *base) Snapshot() (ImageSize, []float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size, append([]float64(nil), b.data...)
}

// PixelData returns the sample at the floored coordinates, or 0 when they
// fall outside the image.
func (b *base) PixelData(x, y float64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0
	}
	fx, fy := math.Floor(x), math.Floor(y)
	if fx < 0 || fy < 0 || fx >= float64(b.size.Width) || fy >= float64(b.size.Height) {
		return 0
	}
	idx := int(fy)*b.size.Width + int(fx)
	if idx >= len(b.data) {
		return 0
	}
	return b.data[idx]
}

// RangePolicy returns the policy used when recomputing the range.
func (b *base) RangePolicy() RangePolicy {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.policy
}

// SetRangePolicy changes the policy and recomputes the range.
func (b *base) SetRangePolicy(policy RangePolicy) {
	b.mu.Lock()
	b.policy = policy
	b.updateRangeLocked()
	b.mu.Unlock()
	b.bus.Publish(TopicDataChanged, nil)
}

// Subscribe registers handler on one of the source topics.
func (b *base) Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription {
	return b.bus.Subscribe(topic, handler)
}

// Unsubscribe removes a registration.
func (b *base) Unsubscribe(sub eventbus.Subscription) {
	b.bus.Unsubscribe(sub)
}

// SetImageSize reallocates a zero-filled buffer for size and publishes
// TopicSizeChanged. An unchanged size is a no-op.
func (b *base) SetImageSize(size ImageSize) error {
	if !size.Valid() {
		return ErrInvalidSize
	}
	b.mu.Lock()
	if size == b.size {
		b.mu.Unlock()
		return nil
	}
	b.size = size
	b.data = make([]float64, size.Len())
	b.updateRangeLocked()
	b.mu.Unlock()

	b.bus.Publish(TopicSizeChanged, size)
	return nil
}

// updateRangeLocked recomputes b.rng. The caller holds b.mu for writing.
func (b *base) updateRangeLocked() {
	b.rng = computeRange(b.data, b.policy)
}

// computeRange returns the range of data under policy. An empty buffer, or
// one with no sample eligible under ExcludeZeros, yields {0, 0} before the
// policy's degenerate substitution.
func computeRange(data []float64, policy RangePolicy) DataRange {
	if policy == IncludeZeros {
		if len(data) == 0 {
			return DataRange{}
		}
		return DataRange{Min: floats.Min(data), Max: floats.Max(data)}
	}

	// Zeros only stay out of the minimum; the maximum sees every sample.
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if v > hi {
			hi = v
		}
		if v != 0 && v < lo {
			lo = v
		}
	}
	rng := DataRange{Min: lo, Max: hi}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		rng = DataRange{}
	}
	if rng.Degenerate() {
		return UnitRange
	}
	return rng
}
