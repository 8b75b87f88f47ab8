package transport

import (
	"context"
	"encoding/json"
	"sync"
)

const pipeBuffer = 256

// pipeShared is the state both ends of a pipe see.
type pipeShared struct {
	done      chan struct{}
	closeOnce sync.Once
}

func (s *pipeShared) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// PipeConn is one end of an in-memory Conn pair. Frames are buffered so a
// peer can write before the other end starts reading.
type PipeConn struct {
	in     <-chan []byte
	out    chan<- []byte
	shared *pipeShared
}

// Pipe returns two connected ends.
func Pipe() (*PipeConn, *PipeConn) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	shared := &pipeShared{done: make(chan struct{})}
	return &PipeConn{in: ba, out: ab, shared: shared},
		&PipeConn{in: ab, out: ba, shared: shared}
}

// ReadMessage implements Conn. Frames already buffered are delivered before
// a close is reported.
func (p *PipeConn) ReadMessage(ctx context.Context) (Message, error) {
	select {
	case frame := <-p.in:
		return decodeFrame(frame)
	default:
	}
	select {
	case frame := <-p.in:
		return decodeFrame(frame)
	case <-p.shared.done:
		select {
		case frame := <-p.in:
			return decodeFrame(frame)
		default:
			return Message{}, ErrConnClosed
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// WriteMessage implements Conn.
func (p *PipeConn) WriteMessage(ctx context.Context, msg Message) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.WriteFrame(ctx, frame)
}

// WriteFrame sends raw bytes, which need not be a valid Message.
func (p *PipeConn) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-p.shared.done:
		return ErrConnClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.shared.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit is a convenience for producers: it sends event with payload.
func (p *PipeConn) Emit(ctx context.Context, event string, payload any) error {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	return p.WriteMessage(ctx, msg)
}

// Close closes both ends.
func (p *PipeConn) Close() error {
	p.shared.close()
	return nil
}

// Done is closed once either end has been closed.
func (p *PipeConn) Done() <-chan struct{} {
	return p.shared.done
}

// PipeDialer hands out in-memory connections and exposes the far end of each
// through Accept.
type PipeDialer struct {
	mu      sync.Mutex
	dialErr error
	dials   []string

	accepted chan *PipeConn
}

// NewPipeDialer returns a PipeDialer ready for use.
func NewPipeDialer() *PipeDialer {
	return &PipeDialer{accepted: make(chan *PipeConn, 16)}
}

// SetDialError makes subsequent dials fail with err. nil restores success.
func (d *PipeDialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

// Dials returns the URLs dialled so far.
func (d *PipeDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

// Dial implements Dialer.
func (d *PipeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, url)
	err := d.dialErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	client, server := Pipe()
	select {
	case d.accepted <- server:
		return client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Accept returns the producer end of the next dialled connection.
func (d *PipeDialer) Accept(ctx context.Context) (*PipeConn, error) {
	select {
	case c := <-d.accepted:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
