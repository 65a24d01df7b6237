package exchangetest

import (
	"sync"

	"nexus/internal/adapter"
)

// Message is a published or requested message.
type Message struct {
	Name string
	Msg  any
}

// Bus records everything published or requested.
type Bus struct {
	mu        sync.Mutex
	published []Message
	requested []Message
}

func (b *Bus) Publish(topic string, msg any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, Message{Name: topic, Msg: msg})
}

func (b *Bus) Request(endpoint string, msg any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = append(b.requested, Message{Name: endpoint, Msg: msg})
	return true
}

// Published returns the messages published on the topic, in order.
func (b *Bus) Published(topic string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]any, 0)
	for _, m := range b.published {
		if m.Name == topic {
			out = append(out, m.Msg)
		}
	}
	return out
}

// Requested returns the messages requested from the endpoint, in order.
func (b *Bus) Requested(endpoint string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]any, 0)
	for _, m := range b.requested {
		if m.Name == endpoint {
			out = append(out, m.Msg)
		}
	}
	return out
}

// Orders returns the orders published on the topic.
func (b *Bus) Orders(topic string) []adapter.Order {
	msgs := b.Published(topic)
	out := make([]adapter.Order, 0, len(msgs))
	for _, m := range msgs {
		if o, ok := m.(adapter.Order); ok {
			out = append(out, o)
		}
	}
	return out
}

// State records what private connectors write to the cache.
type State struct {
	mu        sync.Mutex
	Balances  []adapter.AccountBalance
	Positions []adapter.Position
}

func (s *State) ApplyBalance(b adapter.AccountBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Balances = append(s.Balances, b)
}

func (s *State) ApplyPositions(ps ...adapter.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Positions = append(s.Positions, ps...)
}
