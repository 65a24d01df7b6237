package okx

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

const (
	_testMillis    = 1700000000000
	_testTimestamp = "2023-11-14T22:13:20.000Z"
)

type fixture struct {
	env    exchange.Env
	bus    *exchangetest.Bus
	state  *exchangetest.State
	stream *exchangetest.Stream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	markets := adapter.NewMarketTable(enum.ExchangeOKX)
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USDT", ID: "BTC-USDT", Base: "BTC", Quote: "USDT", Spot: true,
		Precision: adapter.Precision{Amount: 8, Price: 1},
	}))
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USDT:USDT", ID: "BTC-USDT-SWAP", Base: "BTC", Quote: "USDT", Settle: "USDT",
		Linear: true, ContractSize: decimal.RequireFromString("0.01"),
	}))
	require.NoError(t, markets.Add(adapter.Market{
		Symbol: "BTC/USD:BTC", ID: "BTC-USD-SWAP", Base: "BTC", Quote: "USD", Settle: "BTC",
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

type call struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

// fakeAPI answers "METHOD path" with a canned body and records the calls.
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
		resp, ok := api.responses[r.Method+" "+r.URL.Path]
		api.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"50000","msg":"not found","data":[]}`))
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

func accountResponses() map[string]string {
	return map[string]string{
		"GET /api/v5/account/balance": `{"code":"0","msg":"","data":[{"uTime":"1700000000001","details":[` +
			`{"ccy":"USDT","cashBal":"100","availBal":"70","frozenBal":"30","eq":"100"}]}]}`,
		"GET /api/v5/account/positions": `{"code":"0","msg":"","data":[` +
			`{"instType":"SWAP","instId":"BTC-USDT-SWAP","pos":"-5","posSide":"net","avgPx":"100","upl":"1",` +
			`"realizedPnl":"2","uTime":"1700000000002"},` +
			`{"instType":"SWAP","instId":"ETH-USDT-SWAP","pos":"1","posSide":"net","avgPx":"1","upl":"0",` +
			`"realizedPnl":"0","uTime":"1"}]}`,
		"POST /api/v5/trade/order": `{"code":"0","msg":"","data":[{"ordId":"312269865356374016","clOrdId":"uuid-1",` +
			`"ts":"1700000000003","sCode":"0","sMsg":"Order placed"}]}`,
		"POST /api/v5/trade/order-algo": `{"code":"0","msg":"","data":[{"algoId":"681096944655273984","algoClOrdId":"uuid-2",` +
			`"sCode":"0","sMsg":""}]}`,
		"POST /api/v5/trade/cancel-order": `{"code":"0","msg":"","data":[{"ordId":"312269865356374016","clOrdId":"uuid-1",` +
			`"ts":"1700000000004","sCode":"0","sMsg":""}]}`,
		"POST /api/v5/trade/cancel-algos": `{"code":"0","msg":"","data":[{"algoId":"681096944655273984","algoClOrdId":"uuid-2",` +
			`"sCode":"0","sMsg":""}]}`,
	}
}

func newAccount(t *testing.T, f *fixture, account enum.AccountType, responses map[string]string) (*Private, *fakeAPI) {
	t.Helper()
	api, server := newFakeAPI(t, responses)
	p, err := NewPrivate(account, adapter.NewToken("key", "secret", "phrase"), f.env, exchange.Option{
		RestURL:    server.URL,
		HTTPClient: server.Client(),
		Stream:     f.stream,
	})
	require.NoError(t, err)
	return p, api
}
