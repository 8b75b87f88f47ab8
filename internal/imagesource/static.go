package imagesource

import "fmt"

// StaticSource is fed whole images, typically fetched over REST.
type StaticSource struct {
	base
}

// NewStaticSource returns a 1x1 source computing its range over every
// sample.
func NewStaticSource() *StaticSource {
	return &StaticSource{base: newBase(IncludeZeros)}
}

// SetImageData replaces the buffer with a copy of data, recomputes the range
// and publishes TopicDataChanged. data must hold exactly width*height samples.
func (s *StaticSource) SetImageData(data []float64) error {
	s.mu.Lock()
	if len(data) != s.size.Len() {
		n := s.size.Len()
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d samples, want %d", ErrDataLength, len(data), n)
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	s.data = buf
	s.updateRangeLocked()
	s.mu.Unlock()

	s.bus.Publish(TopicDataChanged, nil)
	return nil
}

// SetImage resizes to size, if needed, and then assigns data.
func (s *StaticSource) SetImage(size ImageSize, data []float64) error {
	if !size.Valid() {
		return ErrInvalidSize
	}
	if len(data) != size.Len() {
		return fmt.Errorf("%w: got %d samples for %dx%d", ErrDataLength, len(data), size.Width, size.Height)
	}
	if err := s.SetImageSize(size); err != nil {
		return err
	}
	return s.SetImageData(data)
}

// FetchedImage is the shape of an image returned by the REST layer.
type FetchedImage struct {
	Size ImageSize `json:"size"`
	Data []float64 `json:"data"`
}

// Load assigns a fetched image.
func (s *StaticSource) Load(img FetchedImage) error {
	return s.SetImage(img.Size, img.Data)
}
