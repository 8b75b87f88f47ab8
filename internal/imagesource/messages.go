package imagesource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a numeric string into an int. Producers
// are inconsistent about quoting sizes.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := parseLeadingInt(s)
		if err != nil {
			return err
		}
		*f = FlexInt(n)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("size field: %w", err)
	}
	if math.Abs(v) > math.MaxInt32 {
		return fmt.Errorf("size field %v is out of range", v)
	}
	*f = FlexInt(int(math.Trunc(v)))
	return nil
}

// parseLeadingInt parses the integer prefix of s ("12", "12.7", "12px").
func parseLeadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("size field %q is not an integer", s)
	}
	return n, nil
}

// SizeMessage is the inbound size message.
type SizeMessage struct {
	Width  FlexInt `json:"width"`
	Height FlexInt `json:"height"`
}

// ImageSize converts the message into an ImageSize.
func (m SizeMessage) ImageSize() ImageSize {
	return ImageSize{Width: int(m.Width), Height: int(m.Height)}
}

// wireChunk is a chunk as it arrives. Indexes decode as plain numbers so a
// negative or fractional entry costs only its own sample.
type wireChunk struct {
	Indexes []float64 `json:"indexes"`
	Values  []float64 `json:"values"`
}

// PixelChunk converts the wire indexes. Entries that are not an integer in
// [0, math.MaxUint32) become invalidIndex, which no buffer reaches.
func (w wireChunk) PixelChunk() PixelChunk {
	indexes := make([]uint32, len(w.Indexes))
	for i, f := range w.Indexes {
		if f < 0 || f >= invalidIndex || f != math.Trunc(f) {
			indexes[i] = invalidIndex
			continue
		}
		indexes[i] = uint32(f)
	}
	return PixelChunk{Indexes: indexes, Values: w.Values}
}

// invalidIndex stands in for a chunk index that cannot address a sample.
// It exceeds MaxPixels.
const invalidIndex = math.MaxUint32

// chunkMessage is the sparse data message. Producers either send the chunk
// bare or wrapped under "data".
type chunkMessage struct {
	wireChunk
	Data *wireChunk `json:"data"`
}

// ResultMessage is a dense per-iteration pipeline result. Result is indexed
// [row][column].
type ResultMessage struct {
	Rank       int         `json:"rank"`
	WorkerID   string      `json:"workerId"`
	PipelineID string      `json:"pipelineId"`
	Result     [][]float64 `json:"result"`
}

// Size returns the dimension of Result. Ragged rows take the widest row.
func (m ResultMessage) Size() ImageSize {
	width := 0
	for _, row := range m.Result {
		if len(row) > width {
			width = len(row)
		}
	}
	return ImageSize{Width: width, Height: len(m.Result)}
}

// rawBytes extracts the JSON body of a transport message.
func rawBytes(message any) ([]byte, bool) {
	switch m := message.(type) {
	case json.RawMessage:
		return m, true
	case []byte:
		return m, true
	case string:
		return []byte(m), true
	}
	return nil, false
}

// DecodeSize accepts a SizeMessage, an ImageSize, or raw JSON.
func DecodeSize(message any) (ImageSize, error) {
	switch m := message.(type) {
	case ImageSize:
		return m, nil
	case SizeMessage:
		return m.ImageSize(), nil
	case *SizeMessage:
		if m == nil {
			return ImageSize{}, fmt.Errorf("nil size message")
		}
		return m.ImageSize(), nil
	}
	raw, ok := rawBytes(message)
	if !ok {
		return ImageSize{}, fmt.Errorf("unsupported size message type %T", message)
	}
	var msg SizeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ImageSize{}, fmt.Errorf("failed to decode size message: %w", err)
	}
	return msg.ImageSize(), nil
}

// DecodeChunk accepts a PixelChunk or raw JSON, bare or wrapped.
func DecodeChunk(message any) (PixelChunk, error) {
	switch m := message.(type) {
	case PixelChunk:
		return m, nil
	case *PixelChunk:
		if m == nil {
			return PixelChunk{}, fmt.Errorf("nil chunk")
		}
		return *m, nil
	}
	raw, ok := rawBytes(message)
	if !ok {
		return PixelChunk{}, fmt.Errorf("unsupported chunk message type %T", message)
	}
	var msg chunkMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return PixelChunk{}, fmt.Errorf("failed to decode chunk message: %w", err)
	}
	if msg.Data != nil {
		return msg.Data.PixelChunk(), nil
	}
	return msg.wireChunk.PixelChunk(), nil
}

// DecodeResult accepts a ResultMessage, a bare [][]float64, or raw JSON of
// either form.
func DecodeResult(message any) (ResultMessage, error) {
	switch m := message.(type) {
	case ResultMessage:
		return m, nil
	case *ResultMessage:
		if m == nil {
			return ResultMessage{}, fmt.Errorf("nil result")
		}
		return *m, nil
	case [][]float64:
		return ResultMessage{Result: m}, nil
	}
	raw, ok := rawBytes(message)
	if !ok {
		return ResultMessage{}, fmt.Errorf("unsupported result message type %T", message)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var dense [][]float64
		if err := json.Unmarshal(raw, &dense); err != nil {
			return ResultMessage{}, fmt.Errorf("failed to decode dense result: %w", err)
		}
		return ResultMessage{Result: dense}, nil
	}
	var msg ResultMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ResultMessage{}, fmt.Errorf("failed to decode result message: %w", err)
	}
	return msg, nil
}
