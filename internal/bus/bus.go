package bus

import (
	"sync"

	"nexus/internal/obs"

	"github.com/yanun0323/logs"
)

// Handler receives a message published on a topic or requested from an endpoint.
type Handler func(msg any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is the in-process message bus.
//
// Topics fan out to every subscriber in registration order, synchronously on the
// publisher's goroutine, so messages from one publisher are delivered in order.
// Endpoints have a single handler; registering an endpoint again replaces it.
type Bus struct {
	metrics *obs.Metrics

	mu        sync.RWMutex
	nextID    uint64
	topics    map[string][]subscription
	endpoints map[string]Handler
}

func New(metrics *obs.Metrics) *Bus {
	return &Bus{
		metrics:   metrics,
		topics:    make(map[string][]subscription),
		endpoints: make(map[string]Handler),
	}
}

// Publish delivers msg to every subscriber of the topic.
func (b *Bus) Publish(topic string, msg any) {
	b.mu.RLock()
	subs := b.topics[topic]
	b.mu.RUnlock()

	b.metrics.IncPublished(topic)
	for _, s := range subs {
		deliver(topic, s.handler, msg)
	}
}

// Subscribe appends a handler to the topic and returns a function removing it.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	// copy on write, Publish iterates a snapshot without holding the lock
	subs := make([]subscription, len(b.topics[topic]), len(b.topics[topic])+1)
	copy(subs, b.topics[topic])
	b.topics[topic] = append(subs, subscription{id: id, handler: handler})

	return func() {
		b.unsubscribe(topic, id)
	}
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.topics[topic]
	subs := make([]subscription, 0, len(old))
	for _, s := range old {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		delete(b.topics, topic)
		return
	}
	b.topics[topic] = subs
}

// Register binds the handler of an endpoint, replacing any previous one.
func (b *Bus) Register(endpoint string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.endpoints[endpoint]; ok {
		logs.Warnf("endpoint %s registered again, previous handler replaced", endpoint)
	}
	b.endpoints[endpoint] = handler
}

// Request delivers msg to the endpoint handler. It reports false when no handler is registered.
func (b *Bus) Request(endpoint string, msg any) bool {
	b.mu.RLock()
	handler, ok := b.endpoints[endpoint]
	b.mu.RUnlock()

	if !ok {
		return false
	}
	deliver(endpoint, handler, msg)
	return true
}

// Subscribers returns the number of handlers of the topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func deliver(name string, handler Handler, msg any) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("bus handler of %s panic: %+v", name, r)
		}
	}()
	handler(msg)
}
