package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EventSubscribe is the outbound message naming the channel a connection
// wants to receive.
const EventSubscribe = "subscribe"

var (
	// ErrNotConnected is returned by Send when there is no live connection.
	ErrNotConnected = errors.New("transport not connected")
	// ErrMalformedMessage wraps frames that could not be decoded. The read
	// loop logs and skips them.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrConnClosed is returned by Conn operations after Close.
	ErrConnClosed = errors.New("connection closed")
)

// Message is a named frame on the wire: {"event": "...", "data": ...}.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals payload into a Message. A json.RawMessage payload is
// used as-is.
func NewMessage(event string, payload any) (Message, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return Message{Event: event, Data: raw}, nil
	}
	if payload == nil {
		return Message{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %q payload: %w", event, err)
	}
	return Message{Event: event, Data: data}, nil
}

// decodeFrame parses a wire frame into a Message.
func decodeFrame(frame []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Event == "" {
		return Message{}, fmt.Errorf("%w: missing event name", ErrMalformedMessage)
	}
	return msg, nil
}

// Conn is a single established connection carrying Messages.
type Conn interface {
	// ReadMessage blocks until a message arrives, the connection closes or
	// ctx is done. Undecodable frames return an error wrapping
	// ErrMalformedMessage and leave the connection usable.
	ReadMessage(ctx context.Context) (Message, error)
	// WriteMessage sends msg.
	WriteMessage(ctx context.Context, msg Message) error
	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Dialer opens Conns. The websocket dialer is the production implementation;
// PipeDialer serves tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
