// Package eventbus provides a minimal named-topic publish/subscribe primitive.
//
// Handlers run synchronously on the publisher's goroutine, in subscription
// order. Publishing to a topic nobody subscribed to is a no-op.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives a message published on a topic.
type Handler func(message any)

// Subscription identifies a single handler registration. It is the token
// passed back to Unsubscribe, since Go func values are not comparable.
type Subscription struct {
	Topic string
	ID    string
}

// Valid reports whether the subscription was returned by Subscribe.
func (s Subscription) Valid() bool {
	return s.ID != ""
}

type subscriber struct {
	id      string
	handler Handler
}

// Bus maps topic names to ordered handler lists. The zero value is ready to
// use.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]subscriber
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]subscriber)}
}

// Subscribe registers handler on topic and returns the token needed to
// remove it again.
func (b *Bus) Subscribe(topic string, handler Handler) Subscription {
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics == nil {
		b.topics = make(map[string][]subscriber)
	}
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: handler})
	return Subscription{Topic: topic, ID: id}
}

// Unsubscribe removes a registration. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.Topic]
	if !ok {
		return
	}
	kept := make([]subscriber, 0, len(subs))
	for _, s := range subs {
		if s.id != sub.ID {
			kept = append(kept, s)
		}
	}
	// The topic entry stays even when empty: a transport keys its re-arming
	// on topic names, not on live handlers.
	b.topics[sub.Topic] = kept
}

// Publish invokes every handler registered on topic with message. The handler
// list is snapshotted first so handlers may subscribe or unsubscribe while
// being called.
func (b *Bus) Publish(topic string, message any) {
	b.mu.Lock()
	subs := b.topics[topic]
	snapshot := make([]subscriber, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.handler(message)
	}
}

// HasTopic reports whether topic has ever been subscribed to.
func (b *Bus) HasTopic(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.topics[topic]
	return ok
}

// Topics returns the names of every topic that has been subscribed to.
func (b *Bus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	return names
}

// Count returns the number of handlers currently registered on topic.
func (b *Bus) Count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
