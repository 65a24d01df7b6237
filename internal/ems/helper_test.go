package ems

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/cache"
	"nexus/internal/exchange"
	"nexus/internal/exchange/exchangetest"
	"nexus/internal/obs"
	"nexus/internal/registry"
	"nexus/internal/task"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var _btcusdt = adapter.MustParseInstrumentID("BTC/USDT-BINANCE")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testMarkets(t *testing.T) *adapter.MarketTable {
	t.Helper()
	markets := adapter.NewMarketTable(enum.ExchangeBinance)
	require.NoError(t, markets.Add(adapter.Market{
		Symbol:    "BTC/USDT",
		ID:        "BTCUSDT",
		Base:      "BTC",
		Quote:     "USDT",
		Spot:      true,
		Precision: adapter.Precision{Amount: 3, Price: 2},
		Limits: adapter.Limits{
			Amount: adapter.Limit{Min: d("0.001")},
			Cost:   adapter.Limit{Min: d("5")},
		},
	}))
	return markets
}

type fixedRouter enum.AccountType

func (r fixedRouter) Route(adapter.InstrumentID) (enum.AccountType, error) {
	return enum.AccountType(r), nil
}

// fakeConnector acknowledges every order as PENDING with a sequential exchange id.
type fakeConnector struct {
	account enum.AccountType
	// hold blocks the first create until closed
	hold chan struct{}
	// streamed is called before the ack returns, as a user stream update racing the rest response
	streamed  func(req adapter.OrderRequest, id string)
	degraded  bool
	cancelErr error

	mu       sync.Mutex
	seq      int
	created  []adapter.OrderRequest
	canceled []string
}

var _ exchange.PrivateConnector = (*fakeConnector)(nil)

func (f *fakeConnector) Exchange() enum.Exchange { return f.account.Exchange() }
func (f *fakeConnector) AccountType() enum.AccountType { return f.account }
func (f *fakeConnector) Connect(context.Context) error { return nil }
func (f *fakeConnector) Disconnect(context.Context) error { return nil }
func (f *fakeConnector) Degraded() bool { return f.degraded }
func (f *fakeConnector) Err() error { return nil }

func (f *fakeConnector) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	f.mu.Lock()
	first := f.seq == 0
	f.seq++
	id := strconv.Itoa(f.seq)
	f.mu.Unlock()

	if first && f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.created = append(f.created, req)
	f.mu.Unlock()

	if f.streamed != nil {
		f.streamed(req, id)
	}

	return adapter.Order{
		Exchange:      f.account.Exchange(),
		Symbol:        req.Symbol,
		ID:            id,
		ClientOrderID: req.ClientOrderID,
		Status:        enum.OrderStatusPending,
		Side:          req.Side,
		Type:          req.Type,
		Amount:        req.Amount,
		Price:         req.Price,
	}, nil
}

func (f *fakeConnector) CreateStopLossOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	return f.CreateOrder(ctx, req)
}

func (f *fakeConnector) CreateTakeProfitOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	return f.CreateOrder(ctx, req)
}

func (f *fakeConnector) CancelOrder(_ context.Context, symbol, orderID string) (adapter.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, orderID)
	if f.cancelErr != nil {
		return adapter.Order{
			Exchange: f.account.Exchange(),
			Symbol:   symbol,
			ID:       orderID,
			Status:   enum.OrderStatusFailed,
		}, f.cancelErr
	}
	return adapter.Order{
		Exchange:  f.account.Exchange(),
		Symbol:    symbol,
		ID:        orderID,
		Status:    enum.OrderStatusCanceling,
		Timestamp: 1700000000000,
	}, nil
}

func (f *fakeConnector) Created() []adapter.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]adapter.OrderRequest, len(f.created))
	copy(out, f.created)
	return out
}

func (f *fakeConnector) Canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.canceled))
	copy(out, f.canceled)
	return out
}

type fixture struct {
	ems      *EMS
	bus      *exchangetest.Bus
	cache    *cache.Cache
	registry *registry.OrderRegistry
	metrics  *obs.Metrics
	conns    map[enum.AccountType]*fakeConnector
}

func newFixture(t *testing.T, route enum.AccountType, conns ...*fakeConnector) fixture {
	t.Helper()

	f := fixture{
		bus:      &exchangetest.Bus{},
		cache:    cache.New(nil, cache.Option{}),
		registry: registry.New(),
		metrics:  obs.NewMetrics(),
		conns:    make(map[enum.AccountType]*fakeConnector),
	}
	connectors := make(map[enum.AccountType]exchange.PrivateConnector, len(conns))
	for _, c := range conns {
		connectors[c.account] = c
		f.conns[c.account] = c
	}

	tasks := task.NewManager(t.Context())
	t.Cleanup(tasks.Cancel)

	e, err := New(Config{
		Exchange:   enum.ExchangeBinance,
		Markets:    testMarkets(t),
		Connectors: connectors,
		Router:     fixedRouter(route),
		Bus:        f.bus,
		Cache:      f.cache,
		Registry:   f.registry,
		Tasks:      tasks,
		Metrics:    f.metrics,
		Now:        func() time.Time { return time.UnixMilli(1700000000000) },
	})
	require.NoError(t, err)
	f.ems = e
	return f
}

func (f fixture) orders() []adapter.Order {
	return f.bus.Orders(enum.ExchangeBinance.OrderTopic())
}
