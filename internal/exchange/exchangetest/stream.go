// Package exchangetest provides an in-memory exchange.Stream for connector tests.
package exchangetest

import (
	"context"
	"sync"

	"nexus/internal/exchange"

	"github.com/bytedance/sonic"
)

// Stream records outbound payloads and delivers frames pushed with Emit.
// Requests are acknowledged right away unless RequestErr is set.
type Stream struct {
	RequestErr error

	mu         sync.Mutex
	started    bool
	closed     bool
	handshakes []any
	requests   []any
	nextID     int
	handlers   map[int]func([]byte)
}

var _ exchange.Stream = (*Stream)(nil)

func NewStream() *Stream {
	return &Stream{handlers: make(map[int]func([]byte))}
}

func (s *Stream) Start(_ context.Context, handshakes ...exchange.Handshake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	for _, h := range handshakes {
		s.handshakes = append(s.handshakes, h.Payload())
	}
	return nil
}

func (s *Stream) Request(_ context.Context, payload any, _ exchange.AckFunc, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RequestErr != nil {
		return s.RequestErr
	}
	s.requests = append(s.requests, payload)
	return nil
}

func (s *Stream) Observe(_ context.Context, handler func([]byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Emit delivers a frame to every observer synchronously.
func (s *Stream) Emit(frame string) {
	s.mu.Lock()
	handlers := make([]func([]byte), 0, len(s.handlers))
	for i := 0; i < s.nextID; i++ {
		if h, ok := s.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h([]byte(frame))
	}
}

func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Requests returns the JSON encoding of every request payload, in order.
func (s *Stream) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return encode(s.requests)
}

// Handshakes returns the JSON encoding of every handshake payload, in order.
func (s *Stream) Handshakes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return encode(s.handshakes)
}

func encode(payloads []any) []string {
	out := make([]string, 0, len(payloads))
	for _, p := range payloads {
		b, _ := sonic.ConfigStd.Marshal(p)
		out = append(out, string(b))
	}
	return out
}
