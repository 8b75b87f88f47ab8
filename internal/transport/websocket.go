package transport

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// DefaultReadLimit bounds a single inbound frame. A 160x160 dense result
// encoded as JSON is well under 1MB; chunks are smaller still.
const DefaultReadLimit = 16 << 20

// WebSocketDialer dials producers over websockets.
type WebSocketDialer struct {
	// Options are passed to websocket.Dial. May be nil.
	Options *websocket.DialOptions
	// ReadLimit overrides DefaultReadLimit when positive.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	c.SetReadLimit(limit)
	return NewWebSocketConn(c), nil
}

// WebSocketConn adapts a websocket connection to Conn.
type WebSocketConn struct {
	c *websocket.Conn
}

// NewWebSocketConn wraps c. The producer side uses it on accepted
// connections too.
func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{c: c}
}

// ReadMessage implements Conn.
func (w *WebSocketConn) ReadMessage(ctx context.Context) (Message, error) {
	_, frame, err := w.c.Read(ctx)
	if err != nil {
		return Message{}, err
	}
	return decodeFrame(frame)
}

// WriteMessage implements Conn.
func (w *WebSocketConn) WriteMessage(ctx context.Context, msg Message) error {
	return wsjson.Write(ctx, w.c, msg)
}

// Close implements Conn.
func (w *WebSocketConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
