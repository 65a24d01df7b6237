package exchange

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// AckFunc inspects inbound frames after a request. It returns true once the
// request is acknowledged, or an error if the exchange rejected it.
type AckFunc func(frame []byte) (bool, error)

// Handshake is sent right after every (re)connect and must be acknowledged, e.g. a login.
// Payload is called for every connect so signatures can carry a fresh timestamp.
type Handshake struct {
	Payload func() any
	Ack     AckFunc
}

// Stream is a websocket connection to an exchange.
type Stream interface {
	// Start connects and runs the handshakes.
	Start(ctx context.Context, handshakes ...Handshake) error
	// Request sends payload and waits for ack. Replayed requests are sent again after a reconnect.
	Request(ctx context.Context, payload any, ack AckFunc, replay bool) error
	// Observe calls handler with every inbound frame on a single goroutine.
	Observe(ctx context.Context, handler func(frame []byte)) (unsubscribe func())
	Close()
}

// WSStream is the Stream backed by github.com/yanun0323/pkg/ws, which reconnects on its own.
type WSStream struct {
	url     string
	wss     *ws.WebSocket
	started uint32
}

func NewWSStream(ctx context.Context, url string) *WSStream {
	return &WSStream{
		url: url,
		wss: ws.New(ctx, url),
	}
}

func sidecar(payload func() any, ack AckFunc) ws.Sidecar {
	return ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			p := payload()
			if err := client.WriteJSON(p); err != nil {
				return errors.Wrap(err, "write payload").With("payload", p)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			raw, ok := ws.ReadMessage[json.RawMessage](m)
			if !ok {
				return false, nil
			}
			return ack(raw)
		},
	}
}

func (s *WSStream) Start(ctx context.Context, handshakes ...Handshake) error {
	sidecars := make([]ws.Sidecar, 0, len(handshakes))
	for _, h := range handshakes {
		sidecars = append(sidecars, sidecar(h.Payload, h.Ack))
	}

	if err := s.wss.Start(ctx, sidecars...); err != nil {
		return errors.Wrap(err, "start wss").With("url", s.url)
	}
	atomic.StoreUint32(&s.started, 1)
	return nil
}

func (s *WSStream) Request(ctx context.Context, payload any, ack AckFunc, replay bool) error {
	if atomic.LoadUint32(&s.started) == 0 {
		return exception.ErrStreamNotStarted
	}

	if err := s.wss.SendAndWait(ctx, sidecar(func() any { return payload }, ack), replay); err != nil {
		return errors.Wrap(err, "send and wait").With("url", s.url)
	}
	return nil
}

func (s *WSStream) Observe(ctx context.Context, handler func(frame []byte)) func() {
	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				raw, ok := ws.ReadMessage[json.RawMessage](m)
				if !ok {
					continue
				}

				handler(raw)
			}
		}
	}()

	return cancel
}

func (s *WSStream) Close() {
	if atomic.CompareAndSwapUint32(&s.started, 1, 0) {
		logs.Infof("close websocket %s", s.url)
	}
	s.wss.Close()
}
