// Package transport owns a single live connection to a data producer and
// re-publishes the named messages it receives onto an event bus, so that any
// number of image sources can share one socket by subscribing to topics.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/stemview/internal/eventbus"
	"github.com/banshee-data/stemview/internal/monitoring"
)

var logf = monitoring.Component("transport")

// Transport is the contract shared by Connection and Disabled.
type Transport interface {
	// Connect starts connecting to url and subscribes to channel. It returns
	// immediately; ready is closed once the subscribe message has been sent
	// and closed once the connection has been torn down. Any existing
	// connection is disconnected first.
	Connect(url, channel string) (ready, closed <-chan struct{})
	// Disconnect tears down the live connection, if any.
	Disconnect()
	// Subscribe registers handler for inbound messages named topic.
	Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription
	// Unsubscribe removes a registration. Unknown subscriptions are ignored.
	Unsubscribe(sub eventbus.Subscription)
	// Send writes an outbound message on the live connection.
	Send(ctx context.Context, event string, payload any) error
	// Status reports the connection state.
	Status() Status
	// Close disconnects and releases taps.
	Close() error
	// AttachAdminRoutes registers debug endpoints on mux.
	AttachAdminRoutes(mux *http.ServeMux)
}

// Status is a snapshot of a transport's connection state.
type Status struct {
	Connected  bool     `json:"connected"`
	Connecting bool     `json:"connecting"`
	URL        string   `json:"url,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Generation uint64   `json:"generation"`
	Topics     []string `json:"topics"`
	Received   uint64   `json:"received"`
	Dropped    uint64   `json:"dropped"`
}

// session is one connect attempt. A newer session supersedes older ones;
// goroutines belonging to a stale session stop touching shared state.
type session struct {
	gen     uint64
	url     string
	channel string
	cancel  context.CancelFunc

	conn  Conn
	armed map[string]bool

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *session) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Connection is the owned transport instance passed to every source that
// streams from the same producer.
type Connection struct {
	dialer Dialer
	bus    *eventbus.Bus

	mu         sync.Mutex
	gen        uint64
	current    *session
	registered map[string]struct{}
	taps       map[string]chan Message
	closing    bool
	received   uint64
	dropped    uint64

	// dispatchMu serialises handler invocation so sources observe the
	// single-threaded delivery they are written for.
	dispatchMu sync.Mutex
}

// NewConnection returns a disconnected Connection that dials with dialer.
func NewConnection(dialer Dialer) *Connection {
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	return &Connection{
		dialer:     dialer,
		bus:        eventbus.New(),
		registered: make(map[string]struct{}),
		taps:       make(map[string]chan Message),
	}
}

// Connect implements Transport.
func (c *Connection) Connect(url, channel string) (ready, closed <-chan struct{}) {
	c.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		url:     url,
		channel: channel,
		cancel:  cancel,
		armed:   make(map[string]bool),
		ready:   make(chan struct{}),
		closed:  make(chan struct{}),
	}

	c.mu.Lock()
	c.gen++
	s.gen = c.gen
	c.current = s
	c.mu.Unlock()

	go c.run(ctx, s)
	return s.ready, s.closed
}

func (c *Connection) run(ctx context.Context, s *session) {
	defer c.finish(s)

	conn, err := c.dialer.Dial(ctx, s.url)
	if err != nil {
		if ctx.Err() == nil {
			logf("connect %s: %v", s.url, err)
		}
		return
	}

	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	for topic := range c.registered {
		s.armed[topic] = true
	}
	c.mu.Unlock()

	sub, err := NewMessage(EventSubscribe, s.channel)
	if err == nil {
		err = conn.WriteMessage(ctx, sub)
	}
	if err != nil {
		logf("subscribe to channel %q: %v", s.channel, err)
	} else {
		close(s.ready)
		logf("connected to %s (channel %q, generation %d)", s.url, s.channel, s.gen)
	}

	c.readLoop(ctx, s, conn)
}

func (c *Connection) readLoop(ctx context.Context, s *session, conn Conn) {
	for {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) {
				logf("skipping frame: %v", err)
				c.mu.Lock()
				c.dropped++
				c.mu.Unlock()
				continue
			}
			if ctx.Err() == nil {
				logf("connection to %s closed: %v", s.url, err)
			}
			return
		}
		c.dispatch(s, msg)
	}
}

func (c *Connection) dispatch(s *session, msg Message) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return
	}
	c.received++
	live := s.armed[msg.Event]
	for _, ch := range c.taps {
		select {
		case ch <- msg:
		default:
			// slow tap; skip rather than stall the read loop
		}
	}
	c.mu.Unlock()

	if !live {
		return
	}
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	c.bus.Publish(msg.Event, msg.Data)
}

// finish invalidates the session's connection and then resolves closed.
func (c *Connection) finish(s *session) {
	c.mu.Lock()
	conn := s.conn
	s.conn = nil
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()

	s.cancel()
	if conn != nil {
		if err := conn.Close(); err != nil {
			logf("close %s: %v", s.url, err)
		}
	}
	s.markClosed()
}

// Disconnect implements Transport. The closed channel returned by Connect is
// resolved asynchronously once the read loop has exited.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.cancel()
}

// Subscribe implements Transport. The topic is armed on the live connection
// immediately and re-armed by name on every later Connect.
func (c *Connection) Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription {
	sub := c.bus.Subscribe(topic, handler)
	c.mu.Lock()
	c.registered[topic] = struct{}{}
	if c.current != nil && c.current.conn != nil {
		c.current.armed[topic] = true
	}
	c.mu.Unlock()
	return sub
}

// Unsubscribe implements Transport. A topic with no handlers left is disarmed.
func (c *Connection) Unsubscribe(sub eventbus.Subscription) {
	if !sub.Valid() {
		return
	}
	c.bus.Unsubscribe(sub)
	if c.bus.Count(sub.Topic) > 0 {
		return
	}
	c.mu.Lock()
	delete(c.registered, sub.Topic)
	if c.current != nil {
		delete(c.current.armed, sub.Topic)
	}
	c.mu.Unlock()
}

// Send implements Transport.
func (c *Connection) Send(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	var conn Conn
	if c.current != nil {
		conn = c.current.conn
	}
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(ctx, msg)
}

// Status implements Transport.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Generation: c.gen,
		Topics:     make([]string, 0, len(c.registered)),
		Received:   c.received,
		Dropped:    c.dropped,
	}
	for topic := range c.registered {
		st.Topics = append(st.Topics, topic)
	}
	sort.Strings(st.Topics)
	if s := c.current; s != nil {
		st.URL = s.url
		st.Channel = s.channel
		st.Connected = s.conn != nil
		st.Connecting = s.conn == nil
	}
	return st
}

// Tap returns a channel receiving a copy of every inbound message, armed or
// not. Slow readers miss messages. Release it with Untap.
func (c *Connection) Tap() (string, <-chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, 64)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		close(ch)
		return id, ch
	}
	c.taps[id] = ch
	return id, ch
}

// Untap releases a tap channel.
func (c *Connection) Untap(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.taps[id]; ok {
		close(ch)
		delete(c.taps, id)
	}
}

// Close implements Transport. Subscriptions on the bus are kept so a
// closed Connection can still be unsubscribed from safely.
func (c *Connection) Close() error {
	c.Disconnect()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closing = true
	for id, ch := range c.taps {
		close(ch)
		delete(c.taps, id)
	}
	return nil
}
