package binance

import (
	"net/http"
	"testing"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateConnectLoadsWallet(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())

	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	require.True(t, f.stream.Started())
	require.Len(t, api.calls(http.MethodPost, "/fapi/v1/listenKey"), 1)

	require.Len(t, f.state.Balances, 1)
	usdt, ok := f.state.Balances[0].Balance("USDT")
	require.True(t, ok)
	assert.Equal(t, "80", usdt.Free.String())
	assert.Equal(t, "20", usdt.Locked.String())
	assert.Len(t, f.bus.Requested(exchange.EndpointBalance), 1)

	// unknown markets are skipped
	require.Len(t, f.state.Positions, 1)
	pos := f.state.Positions[0]
	assert.Equal(t, "BTC/USDT:USDT", pos.Symbol)
	assert.Equal(t, enum.PositionSideShort, pos.Side)
	assert.Equal(t, "-0.5", pos.SignedAmount.String())
}

func TestPrivateFutureOrderCost(t *testing.T) {
	f := newFixture(t)
	p, _ := connectedFuture(t, f, futureResponses())
	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	f.stream.Emit(`{"e":"ORDER_TRADE_UPDATE","E":1700000000100,"T":1700000000100,"o":{"s":"BTCUSDT","c":"uuid-1","S":"BUY","o":"MARKET",` +
		`"f":"GTC","q":"2","p":"0","ap":"100","sp":"0","x":"TRADE","X":"PARTIALLY_FILLED","i":42,"l":"1","z":"1","L":"100",` +
		`"N":"USDT","n":"0.01","T":1700000000100,"t":1,"m":false,"R":false,"wt":"CONTRACT_PRICE","ps":"BOTH","rp":"0"}}`)
	f.stream.Emit(`{"e":"ORDER_TRADE_UPDATE","E":1700000000200,"T":1700000000200,"o":{"s":"BTCUSDT","c":"uuid-1","S":"BUY","o":"MARKET",` +
		`"f":"GTC","q":"2","p":"0","ap":"110","sp":"0","x":"TRADE","X":"FILLED","i":42,"l":"1","z":"2","L":"120",` +
		`"N":"USDT","n":"0.01","T":1700000000200,"t":2,"m":false,"R":false,"wt":"CONTRACT_PRICE","ps":"BOTH","rp":"0"}}`)

	orders := f.bus.Orders(enum.ExchangeBinance.OrderTopic())
	require.Len(t, orders, 2)

	first, second := orders[0], orders[1]
	assert.Equal(t, "BTC/USDT:USDT", first.Symbol)
	assert.Equal(t, "42", first.ID)
	assert.Equal(t, "uuid-1", first.UUID)
	assert.Equal(t, enum.OrderStatusPartiallyFilled, first.Status)
	assert.Equal(t, enum.OrderTypeMarket, first.Type)
	assert.Equal(t, "100", first.Cost.String())
	assert.Equal(t, "100", first.CumCost.String())
	assert.Equal(t, "1", first.Remaining.String())
	assert.Equal(t, enum.PositionSideFlat, first.PositionSide)

	assert.Equal(t, enum.OrderStatusFilled, second.Status)
	assert.Equal(t, "110", second.Cost.String())
	assert.Equal(t, "220", second.CumCost.String())
	assert.Equal(t, "120", second.LastFilledPrice.String())
	assert.Equal(t, int64(1700000000200), second.Timestamp)
}

func TestPrivateLimitOrderCostBeforeFill(t *testing.T) {
	f := newFixture(t)
	p, _ := connectedFuture(t, f, futureResponses())
	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	f.stream.Emit(`{"e":"ORDER_TRADE_UPDATE","E":1,"T":1,"o":{"s":"BTCUSDT","c":"uuid-2","S":"SELL","o":"LIMIT","f":"GTX",` +
		`"q":"1","p":"105","ap":"0","sp":"0","x":"NEW","X":"NEW","i":43,"l":"0","z":"0","L":"0","n":"0","T":1,"t":0,` +
		`"m":false,"R":true,"wt":"CONTRACT_PRICE","ps":"SHORT","rp":"0"}}`)

	orders := f.bus.Orders(enum.ExchangeBinance.OrderTopic())
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, enum.OrderStatusAccepted, o.Status)
	assert.Equal(t, enum.OrderTypePostOnly, o.Type)
	assert.Equal(t, enum.OrderTimeInForceGTC, o.TimeInForce)
	assert.Equal(t, enum.PositionSideShort, o.PositionSide)
	assert.True(t, o.ReduceOnly)
	assert.True(t, o.Cost.IsZero())
	assert.True(t, o.CumCost.IsZero())
}

func TestPrivateUnknownSymbolSkipsRest(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())

	testCases := []struct {
		desc   string
		symbol string
	}{
		{"absent market", "ETH/USDT:USDT"},
		{"spot market on a futures account", "BTC/USDT"},
		{"inverse market on a linear account", "BTC/USD:BTC"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			amount := decimal.RequireFromString("0.1")
			o, err := p.CreateOrder(t.Context(), adapter.OrderRequest{
				Symbol:        tc.symbol,
				ClientOrderID: "uuid-x",
				Side:          enum.OrderSideBuy,
				Type:          enum.OrderTypeMarket,
				Amount:        amount,
			})
			require.ErrorIs(t, err, exception.ErrUnsupportedSymbol)
			if o.Status != enum.OrderStatusFailed {
				t.Fatalf("status mismatch! should be %s but got %s", enum.OrderStatusFailed, o.Status)
			}
			assert.True(t, o.Filled.IsZero())
			assert.True(t, amount.Equal(o.Remaining))
		})
	}

	require.Empty(t, api.calls(http.MethodPost, "/fapi/v1/order"))
}

func TestPrivateCreateLimitOrder(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())

	o, err := p.CreateOrder(t.Context(), adapter.OrderRequest{
		Symbol:        "BTC/USDT:USDT",
		ClientOrderID: "uuid-1",
		Side:          enum.OrderSideBuy,
		Type:          enum.OrderTypeLimit,
		Amount:        decimal.NewFromInt(1),
		Price:         decimal.NewFromInt(100),
		TimeInForce:   enum.OrderTimeInForceGTC,
		PositionSide:  enum.PositionSideLong,
		ReduceOnly:    true,
		Extra:         map[string]string{"selfTradePreventionMode": "EXPIRE_TAKER"},
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPending, o.Status)
	assert.Equal(t, "7", o.ID)
	assert.Equal(t, "uuid-1", o.UUID)
	assert.Equal(t, "100", o.Price.String())
	assert.Equal(t, int64(1700000000001), o.Timestamp)

	calls := api.calls(http.MethodPost, "/fapi/v1/order")
	require.Len(t, calls, 1)
	q := calls[0].URL.Query()
	assert.Equal(t, "key", calls[0].Header.Get("X-MBX-APIKEY"))
	assert.Equal(t, "BTCUSDT", q.Get("symbol"))
	assert.Equal(t, "BUY", q.Get("side"))
	assert.Equal(t, "LIMIT", q.Get("type"))
	assert.Equal(t, "GTC", q.Get("timeInForce"))
	assert.Equal(t, "100", q.Get("price"))
	assert.Equal(t, "1", q.Get("quantity"))
	assert.Equal(t, "LONG", q.Get("positionSide"))
	assert.Equal(t, "true", q.Get("reduceOnly"))
	assert.Equal(t, "uuid-1", q.Get("newClientOrderId"))
	assert.Equal(t, "EXPIRE_TAKER", q.Get("selfTradePreventionMode"))
	assert.Equal(t, "1700000000000", q.Get("timestamp"))
	assert.Len(t, q.Get("signature"), 64)
}

func TestPrivateCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())

	testCases := []struct {
		desc     string
		req      adapter.OrderRequest
		create   func(p *Private, req adapter.OrderRequest) (adapter.Order, error)
		expected error
	}{
		{
			desc:     "limit without price",
			req:      adapter.OrderRequest{Symbol: "BTC/USDT:USDT", Side: enum.OrderSideBuy, Type: enum.OrderTypeLimit, Amount: decimal.NewFromInt(1), TimeInForce: enum.OrderTimeInForceGTC},
			create:   func(p *Private, req adapter.OrderRequest) (adapter.Order, error) { return p.CreateOrder(t.Context(), req) },
			expected: exception.ErrOrderMissingPrice,
		},
		{
			desc:     "stop loss without trigger price",
			req:      adapter.OrderRequest{Symbol: "BTC/USDT:USDT", Side: enum.OrderSideSell, Type: enum.OrderTypeStopLossMarket, Amount: decimal.NewFromInt(1), TriggerType: enum.TriggerTypeMarkPrice},
			create:   func(p *Private, req adapter.OrderRequest) (adapter.Order, error) { return p.CreateStopLossOrder(t.Context(), req) },
			expected: exception.ErrOrderMissingTriggerPrice,
		},
		{
			desc:     "take profit with a stop loss type",
			req:      adapter.OrderRequest{Symbol: "BTC/USDT:USDT", Side: enum.OrderSideSell, Type: enum.OrderTypeStopLossMarket, Amount: decimal.NewFromInt(1)},
			create:   func(p *Private, req adapter.OrderRequest) (adapter.Order, error) { return p.CreateTakeProfitOrder(t.Context(), req) },
			expected: exception.ErrOrderUnsupportedType,
		},
		{
			desc:     "index price trigger",
			req:      adapter.OrderRequest{Symbol: "BTC/USDT:USDT", Side: enum.OrderSideSell, Type: enum.OrderTypeTakeProfitMarket, Amount: decimal.NewFromInt(1), TriggerPrice: decimal.NewFromInt(120), TriggerType: enum.TriggerTypeIndexPrice},
			create:   func(p *Private, req adapter.OrderRequest) (adapter.Order, error) { return p.CreateTakeProfitOrder(t.Context(), req) },
			expected: exception.ErrUnsupportedMapping,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			o, err := tc.create(p, tc.req)
			require.ErrorIs(t, err, tc.expected)
			assert.Equal(t, enum.OrderStatusFailed, o.Status)
		})
	}
	require.Empty(t, api.calls(http.MethodPost, "/fapi/v1/order"))
}

func TestPrivateStopLossParams(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())

	_, err := p.CreateStopLossOrder(t.Context(), adapter.OrderRequest{
		Symbol:       "BTC/USDT:USDT",
		Side:         enum.OrderSideSell,
		Type:         enum.OrderTypeStopLossMarket,
		Amount:       decimal.NewFromInt(1),
		TriggerPrice: decimal.NewFromInt(90),
		TriggerType:  enum.TriggerTypeMarkPrice,
	})
	require.NoError(t, err)

	calls := api.calls(http.MethodPost, "/fapi/v1/order")
	require.Len(t, calls, 1)
	q := calls[0].URL.Query()
	assert.Equal(t, "STOP_MARKET", q.Get("type"))
	assert.Equal(t, "90", q.Get("stopPrice"))
	assert.Equal(t, "MARK_PRICE", q.Get("workingType"))
	assert.Empty(t, q.Get("timeInForce"))
	assert.Empty(t, q.Get("price"))
}

func TestPrivateCancelOrder(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())

	o, err := p.CancelOrder(t.Context(), "BTC/USDT:USDT", "7")
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCanceling, o.Status)
	assert.Equal(t, "7", o.ID)
	assert.Equal(t, "0.6", o.Remaining.String())
	assert.Equal(t, enum.OrderTypeLimit, o.Type)

	calls := api.calls(http.MethodDelete, "/fapi/v1/order")
	require.Len(t, calls, 1)
	assert.Equal(t, "7", calls[0].URL.Query().Get("orderId"))

	o, err = p.CancelOrder(t.Context(), "ETH/USDT:USDT", "8")
	require.ErrorIs(t, err, exception.ErrUnsupportedSymbol)
	assert.Equal(t, enum.OrderStatusFailed, o.Status)
	assert.Equal(t, "8", o.ID)
}

func TestPrivateKeepAliveDegrades(t *testing.T) {
	f := newFixture(t)
	responses := futureResponses()
	responses["PUT /fapi/v1/listenKey"] = fakeResponse{status: http.StatusServiceUnavailable, body: `{"code":-1001,"msg":"Internal error; unable to process your request."}`}
	p, api := connectedFuture(t, f, responses)
	p.WithKeepAlive(KeepAlive{Interval: time.Millisecond, Retry: 3, Pause: time.Millisecond})

	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	require.Eventually(t, p.Degraded, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, p.Err(), exception.ErrSessionDegraded)
	assert.Len(t, api.calls(http.MethodPut, "/fapi/v1/listenKey"), 3)
	assert.Equal(t, uint64(3), f.env.Metrics.Snapshot().KeepAliveFailures)
}

func TestPrivateKeepAliveRecovers(t *testing.T) {
	f := newFixture(t)
	p, api := connectedFuture(t, f, futureResponses())
	p.WithKeepAlive(KeepAlive{Interval: time.Millisecond, Retry: 3, Pause: time.Millisecond})

	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	require.Eventually(t, func() bool {
		return len(api.calls(http.MethodPut, "/fapi/v1/listenKey")) >= 5
	}, time.Second, 5*time.Millisecond)
	assert.False(t, p.Degraded())
	assert.NoError(t, p.Err())
}

func TestPrivateAccountUpdate(t *testing.T) {
	f := newFixture(t)
	p, _ := connectedFuture(t, f, futureResponses())
	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	f.stream.Emit(`{"e":"ACCOUNT_UPDATE","E":1700000000300,"T":1700000000300,"a":{"m":"ORDER",` +
		`"B":[{"a":"BNB","wb":"2","cw":"2","bc":"0"}],` +
		`"P":[{"s":"BTCUSDT","pa":"0","ep":"0","bep":"0","cr":"5","up":"0","mt":"cross","iw":"0","ps":"BOTH"}]}}`)

	require.Len(t, f.state.Balances, 2)
	wallet := f.state.Balances[1]
	assert.Equal(t, int64(1700000000300), wallet.Timestamp)
	_, ok := wallet.Balance("USDT")
	assert.True(t, ok, "unchanged assets stay in the wallet")
	bnb, ok := wallet.Balance("BNB")
	require.True(t, ok)
	assert.Equal(t, "2", bnb.Free.String())

	require.Len(t, f.state.Positions, 2)
	closed := f.state.Positions[1]
	assert.True(t, closed.IsFlat())
	assert.Equal(t, enum.PositionSide(0), closed.Side)
	assert.Equal(t, "5", closed.RealizedPnl.String())
}

func TestPrivateListenKeyExpired(t *testing.T) {
	f := newFixture(t)
	p, _ := connectedFuture(t, f, futureResponses())
	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	f.stream.Emit(`{"e":"listenKeyExpired","E":1,"listenKey":"listen-key"}`)
	require.True(t, p.Degraded())
	require.ErrorIs(t, p.Err(), exception.ErrSessionDegraded)
}

func TestPrivateSpotExecutionReport(t *testing.T) {
	f := newFixture(t)
	_, server := newFakeAPI(t, map[string]fakeResponse{
		"GET /api/v3/account":            {body: `{"balances":[{"asset":"USDT","free":"1000","locked":"0"}]}`},
		"POST /api/v3/userDataStream":    {body: `{"listenKey":"spot-key"}`},
		"DELETE /api/v3/userDataStream": {body: `{}`},
	})
	p, err := NewPrivate(enum.AccountBinanceSpot, adapter.NewToken("key", "secret", ""), f.env, exchange.Option{
		RestURL: server.URL, HTTPClient: server.Client(), Stream: f.stream,
	})
	require.NoError(t, err)
	require.NoError(t, p.Connect(t.Context()))
	t.Cleanup(func() { _ = p.Disconnect(t.Context()) })

	f.stream.Emit(`{"e":"executionReport","E":1700000000400,"s":"BTCUSDT","c":"uuid-3","S":"BUY","o":"LIMIT","f":"GTC",` +
		`"q":"2","p":"101","P":"0","F":"0","g":-1,"C":"","x":"TRADE","X":"PARTIALLY_FILLED","r":"NONE","i":77,"l":"0.5",` +
		`"z":"1","L":"100","n":"0","N":"BNB","T":1700000000400,"t":9,"I":1,"w":false,"m":true,"M":true,` +
		`"O":1700000000000,"Z":"100.5","Y":"50","Q":"0","W":1700000000000,"V":"NONE"}`)
	f.stream.Emit(`{"e":"outboundAccountPosition","E":1700000000401,"u":1700000000401,"B":[{"a":"BTC","f":"1","l":"0"}]}`)

	orders := f.bus.Orders(enum.ExchangeBinance.OrderTopic())
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, "BTC/USDT", o.Symbol)
	assert.Equal(t, "100.5", o.Average.String())
	assert.Equal(t, "50", o.Cost.String())
	assert.Equal(t, "100.5", o.CumCost.String())
	assert.Equal(t, "1", o.Remaining.String())
	assert.Equal(t, "BNB", o.FeeCurrency)

	require.Len(t, f.state.Balances, 2)
	assert.Len(t, f.state.Balances[1].Balances, 2)
}
