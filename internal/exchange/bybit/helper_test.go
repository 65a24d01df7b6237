package bybit

import (
	"io"
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

	markets := adapter.NewMarketTable(enum.ExchangeBybit)
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USDT", ID: "BTCUSDT", Base: "BTC", Quote: "USDT", Spot: true,
		Precision: adapter.Precision{Amount: 6, Price: 2},
	}))
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USDT:USDT", ID: "BTCUSDT", Base: "BTC", Quote: "USDT", Settle: "USDT",
		Linear: true, ContractSize: decimal.NewFromInt(1),
		Precision: adapter.Precision{Amount: 3, Price: 1},
	}))
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USD:BTC", ID: "BTCUSD", Base: "BTC", Quote: "USD", Settle: "BTC",
		Inverse: true, ContractSize: decimal.NewFromInt(1),
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

type call struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

// fakeAPI answers "METHOD path?query" first and "METHOD path" otherwise.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []call
}

func newFakeAPI(t *testing.T, responses map[string]string) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{responses: responses}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		api.mu.Lock()
		api.calls = append(api.calls, call{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
			body:   string(body),
		})
		resp, ok := api.responses[r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery]
		if !ok {
			resp, ok = api.responses[r.Method+" "+r.URL.Path]
		}
		api.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"retCode":10001,"retMsg":"not found"}`))
			return
		}
		w.Write([]byte(resp))
	}))
	t.Cleanup(server.Close)
	return api, server
}

func (a *fakeAPI) set(key, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses[key] = body
}

func (a *fakeAPI) find(method, path string) []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]call, 0)
	for _, c := range a.calls {
		if c.method == method && c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func unifiedResponses() map[string]string {
	return map[string]string{
		"GET /v5/account/wallet-balance": `{"retCode":0,"retMsg":"OK","result":{"list":[{"accountType":"UNIFIED",` +
			`"coin":[{"coin":"USDT","walletBalance":"100","locked":"30"}]}]},"time":1700000000001}`,
		"GET /v5/position/list?category=linear&settleCoin=USDT": `{"retCode":0,"retMsg":"OK","result":{"category":"linear",` +
			`"list":[{"symbol":"BTCUSDT","side":"Sell","size":"0.5","positionIdx":0,"avgPrice":"100","unrealisedPnl":"1",` +
			`"cumRealisedPnl":"2","updatedTime":"1700000000002"},{"symbol":"ETHUSDT","side":"Buy","size":"1","positionIdx":0,` +
			`"avgPrice":"1","unrealisedPnl":"0","cumRealisedPnl":"0","updatedTime":"1"}]},"time":1700000000002}`,
		"GET /v5/position/list?category=inverse": `{"retCode":0,"retMsg":"OK","result":{"category":"inverse","list":[]},"time":1}`,
		"POST /v5/order/create": `{"retCode":0,"retMsg":"OK","result":{"orderId":"1321003749386327552","orderLinkId":"uuid-1"},` +
			`"time":1700000000003}`,
		"POST /v5/order/cancel": `{"retCode":0,"retMsg":"OK","result":{"orderId":"1321003749386327552","orderLinkId":"uuid-1"},` +
			`"time":1700000000004}`,
	}
}

func newUnified(t *testing.T, f *fixture, responses map[string]string) (*Private, *fakeAPI) {
	t.Helper()
	api, server := newFakeAPI(t, responses)
	p, err := NewPrivate(enum.AccountBybitUnified, adapter.NewToken("key", "secret", ""), f.env, exchange.Option{
		RestURL:    server.URL,
		HTTPClient: server.Client(),
		Stream:     f.stream,
	})
	require.NoError(t, err)
	return p, api
}
