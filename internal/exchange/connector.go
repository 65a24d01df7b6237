package exchange

import (
	"context"
	"net/http"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/obs"
	"nexus/internal/ratelimit"
	"nexus/internal/task"
)

// Publisher is the bus surface used by connectors.
type Publisher interface {
	Publish(topic string, msg any)
	Request(endpoint string, msg any) bool
}

// StateWriter is the cache surface used by private connectors.
type StateWriter interface {
	ApplyBalance(b adapter.AccountBalance)
	ApplyPositions(ps ...adapter.Position)
}

// EndpointBalance is invoked with the new adapter.AccountBalance after a wallet update.
const EndpointBalance = "balance"

// Env carries the engine services shared by the connectors of one exchange.
type Env struct {
	Bus     Publisher
	Cache   StateWriter
	Markets *adapter.MarketTable
	Limiter *ratelimit.Limiter
	Metrics *obs.Metrics
	// Tasks runs the background loops of the connectors, e.g. listen key keep-alive.
	Tasks *task.Manager
	// Now defaults to time.Now.
	Now func() time.Time
}

func (e Env) Clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Millis returns the current unix time in milliseconds.
func (e Env) Millis() int64 {
	return e.Clock().UnixMilli()
}

// Option overrides the endpoints and transport of a connector, mostly for tests.
type Option struct {
	RestURL    string
	StreamURL  string
	HTTPClient *http.Client
	// Stream replaces the websocket stream when set.
	Stream Stream
}

// PublicConnector streams market data of one exchange market context onto the bus.
type PublicConnector interface {
	Exchange() enum.Exchange
	AccountType() enum.AccountType
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	SubscribeTrade(ctx context.Context, symbol string) error
	SubscribeBookL1(ctx context.Context, symbol string) error
	SubscribeKline(ctx context.Context, symbol string, interval enum.KlineInterval) error
	SubscribeMarkPrice(ctx context.Context, symbol string) error
}

// PrivateConnector places orders for one account and reconciles its user stream.
//
// Order methods always return a usable order: on failure it is a synthetic
// FAILED order and the error carries the cause.
type PrivateConnector interface {
	Exchange() enum.Exchange
	AccountType() enum.AccountType
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error)
	CreateStopLossOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error)
	CreateTakeProfitOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (adapter.Order, error)

	// Degraded reports whether the user stream can no longer be trusted, Err returns the cause.
	Degraded() bool
	Err() error
}
