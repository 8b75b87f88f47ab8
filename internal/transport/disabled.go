package transport

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/banshee-data/stemview/internal/eventbus"
)

// Disabled is a no-op Transport used when streaming is gated off (no
// session, or --disable-stream). Sources can still bind to it; nothing is
// ever published.
type Disabled struct {
	bus *eventbus.Bus

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewDisabled returns a Disabled transport.
func NewDisabled() *Disabled {
	return &Disabled{bus: eventbus.New(), topics: make(map[string]struct{})}
}

// Connect never becomes ready; closed is already resolved.
func (d *Disabled) Connect(string, string) (ready, closed <-chan struct{}) {
	done := make(chan struct{})
	close(done)
	return make(chan struct{}), done
}

func (d *Disabled) Disconnect() {}

func (d *Disabled) Subscribe(topic string, handler eventbus.Handler) eventbus.Subscription {
	d.mu.Lock()
	d.topics[topic] = struct{}{}
	d.mu.Unlock()
	return d.bus.Subscribe(topic, handler)
}

func (d *Disabled) Unsubscribe(sub eventbus.Subscription) {
	d.bus.Unsubscribe(sub)
	if d.bus.Count(sub.Topic) == 0 {
		d.mu.Lock()
		delete(d.topics, sub.Topic)
		d.mu.Unlock()
	}
}

func (d *Disabled) Send(context.Context, string, any) error { return ErrNotConnected }

func (d *Disabled) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{Topics: make([]string, 0, len(d.topics))}
	for topic := range d.topics {
		st.Topics = append(st.Topics, topic)
	}
	sort.Strings(st.Topics)
	return st
}

func (d *Disabled) Close() error { return nil }

func (d *Disabled) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/transport-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("transport disabled"))
	})
}
