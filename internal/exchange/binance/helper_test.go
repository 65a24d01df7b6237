package binance

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/exchange/exchangetest"
	"nexus/internal/obs"
	"nexus/internal/task"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const _testMillis = 1700000000000

type fixture struct {
	env    exchange.Env
	bus    *exchangetest.Bus
	state  *exchangetest.State
	stream *exchangetest.Stream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	markets := adapter.NewMarketTable(enum.ExchangeBinance)
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USDT", ID: "BTCUSDT", Base: "BTC", Quote: "USDT",
		Spot: true, Margin: true,
		Precision: adapter.Precision{Amount: 5, Price: 2},
	}))
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USDT:USDT", ID: "BTCUSDT", Base: "BTC", Quote: "USDT", Settle: "USDT",
		Linear: true, ContractSize: decimal.NewFromInt(1),
		Precision: adapter.Precision{Amount: 3, Price: 1},
	}))
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USD:BTC", ID: "BTCUSD_PERP", Base: "BTC", Quote: "USD", Settle: "BTC",
		Inverse: true, ContractSize: decimal.NewFromInt(100),
	}))

	f := &fixture{
		bus:    &exchangetest.Bus{},
		state:  &exchangetest.State{},
		stream: exchangetest.NewStream(),
	}
	f.env = exchange.Env{
		Bus:     f.bus,
		Cache:   f.state,
		Markets: markets,
		Metrics: obs.NewMetrics(),
		Tasks:   task.NewManager(t.Context()),
		Now:     func() time.Time { return time.UnixMilli(_testMillis) },
	}
	return f
}

// fakeAPI serves canned responses per "METHOD path" and records every request.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []*http.Request
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeAPI(t *testing.T, responses map[string]fakeResponse) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{responses: responses}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.requests = append(api.requests, r)
		resp, ok := api.responses[r.Method+" "+r.URL.Path]
		api.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":-1000,"msg":"not found"}`))
			return
		}
		if resp.status != 0 {
			w.WriteHeader(resp.status)
		}
		w.Write([]byte(resp.body))
	}))
	t.Cleanup(server.Close)
	return api, server
}

func (a *fakeAPI) calls(method, path string) []*http.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*http.Request, 0)
	for _, r := range a.requests {
		if r.Method == method && r.URL.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func futureResponses() map[string]fakeResponse {
	return map[string]fakeResponse{
		"GET /fapi/v2/account": {body: `{"assets":[{"asset":"USDT","walletBalance":"100","availableBalance":"80"}],` +
			`"positions":[{"symbol":"BTCUSDT","positionAmt":"-0.5","entryPrice":"100","unrealizedProfit":"1","positionSide":"BOTH"},` +
			`{"symbol":"ETHUSDT","positionAmt":"0","entryPrice":"0","unrealizedProfit":"0","positionSide":"BOTH"}]}`},
		"POST /fapi/v1/listenKey":   {body: `{"listenKey":"listen-key"}`},
		"PUT /fapi/v1/listenKey":    {body: `{}`},
		"DELETE /fapi/v1/listenKey": {body: `{}`},
		"POST /fapi/v1/order": {body: `{"orderId":7,"symbol":"BTCUSDT","status":"NEW","clientOrderId":"uuid-1","price":"100",` +
			`"avgPrice":"0.00","origQty":"1","executedQty":"0","stopPrice":"0","type":"LIMIT","side":"BUY","timeInForce":"GTC",` +
			`"positionSide":"BOTH","reduceOnly":false,"updateTime":1700000000001}`},
		"DELETE /fapi/v1/order": {body: `{"orderId":7,"symbol":"BTCUSDT","status":"CANCELED","clientOrderId":"uuid-1","price":"100",` +
			`"avgPrice":"0","origQty":"1","executedQty":"0.4","type":"LIMIT","side":"BUY","timeInForce":"GTC","updateTime":1700000000002}`},
	}
}

func connectedFuture(t *testing.T, f *fixture, responses map[string]fakeResponse) (*Private, *fakeAPI) {
	t.Helper()
	api, server := newFakeAPI(t, responses)
	p, err := NewPrivate(enum.AccountBinanceUSDMFuture, adapter.NewToken("key", "secret", ""), f.env, exchange.Option{
		RestURL:    server.URL,
		HTTPClient: server.Client(),
		Stream:     f.stream,
	})
	require.NoError(t, err)
	return p, api
}
