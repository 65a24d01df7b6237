package ems

import (
	"testing"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/cache"
	"nexus/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _t0 = time.UnixMilli(1700000000000)

type algoProbe struct {
	algo     *Algo
	cache    *cache.Cache
	children []adapter.OrderSubmit
	states   []enum.AlgoState
}

func newProbe(t *testing.T, s adapter.OrderSubmit) *algoProbe {
	t.Helper()
	market, ok := testMarkets(t).Market("BTC/USDT")
	require.True(t, ok)

	p := &algoProbe{cache: cache.New(nil, cache.Option{})}
	a, err := newAlgo(s, market, _t0, algoEnv{
		cache: p.cache,
		submit: func(child adapter.OrderSubmit) error {
			p.children = append(p.children, child)
			return nil
		},
		publish: func(o adapter.AlgoOrder) {
			p.states = append(p.states, o.State)
		},
	})
	require.NoError(t, err)
	p.algo = a
	return p
}

func (p *algoProbe) book(bid, ask float64) {
	p.cache.ApplyBookL1(adapter.BookL1{Exchange: enum.ExchangeBinance, Symbol: "BTC/USDT", Bid: bid, Ask: ask})
}

// fill reports the child as done with the given status.
func (p *algoProbe) fill(uuid string, status enum.OrderStatus, filled, average string) {
	p.cache.ApplyOrder(adapter.Order{
		Exchange: enum.ExchangeBinance,
		Symbol:   "BTC/USDT",
		UUID:     uuid,
		Status:   status,
		Filled:   d(filled),
		Average:  d(average),
	})
}

func (p *algoProbe) open(uuid string) {
	p.cache.ApplyOrder(adapter.Order{Exchange: enum.ExchangeBinance, Symbol: "BTC/USDT", UUID: uuid, Status: enum.OrderStatusAccepted})
}

func (p *algoProbe) last() adapter.OrderSubmit {
	return p.children[len(p.children)-1]
}

func (p *algoProbe) tick(t *testing.T, after time.Duration, expected enum.AlgoState) {
	t.Helper()
	p.algo.Tick(_t0.Add(after))
	if state := p.algo.Snapshot(_t0).State; state != expected {
		t.Fatalf("state mismatch at %s! should be %s but got %s", after, expected, state)
	}
}

func requireChild(t *testing.T, s adapter.OrderSubmit, typ enum.OrderType, side enum.OrderSide, amount, price string) {
	t.Helper()
	assert.Equal(t, typ, s.Type)
	assert.Equal(t, side, s.Side)
	assert.True(t, s.Amount.Equal(d(amount)), "amount should be %s but got %s", amount, s.Amount)
	if len(price) != 0 {
		assert.True(t, s.Price.Equal(d(price)), "price should be %s but got %s", price, s.Price)
	}
	assert.Contains(t, s.AlgoUUID, adapter.AlgoUUIDPrefix)
}

func TestNewAlgoWaitLongerThanDuration(t *testing.T) {
	s := adapter.OrderSubmit{
		SubmitType: enum.SubmitTypeTwap,
		UUID:       adapter.NewAlgoUUID(),
		Side:       enum.OrderSideBuy,
		Amount:     d("1"),
		Wait:       60 * time.Second,
		Duration:   30 * time.Second,
	}
	_, err := newAlgo(s, adapter.Market{}, _t0, algoEnv{})
	require.ErrorIs(t, err, exception.ErrOrder)

	_, err = adapter.NewTwapSubmit(_btcusdt, adapter.AlgoParams{Side: enum.OrderSideBuy, Amount: d("1"), Wait: time.Minute, Duration: 30 * time.Second})
	require.ErrorIs(t, err, exception.ErrOrder)

	s.SubmitType = enum.SubmitTypeCreate
	_, err = newAlgo(s, adapter.Market{}, _t0, algoEnv{})
	require.ErrorIs(t, err, exception.ErrOrder)
}

func TestTwap(t *testing.T) {
	s, err := adapter.NewTwapSubmit(_btcusdt, adapter.AlgoParams{
		Side:     enum.OrderSideBuy,
		Amount:   d("1"),
		Duration: 30 * time.Second,
		Wait:     10 * time.Second,
	})
	require.NoError(t, err)
	p := newProbe(t, s)

	// waits for a book
	p.tick(t, 0, enum.AlgoStateSlicing)
	require.Empty(t, p.children)
	p.book(99.5, 100.5)

	// three slices of floor(1 / 3)
	p.tick(t, 0, enum.AlgoStateAwaitingFill)
	requireChild(t, p.last(), enum.OrderTypePostOnly, enum.OrderSideBuy, "0.333", "99.5")
	p.fill(p.last().UUID, enum.OrderStatusFilled, "0.333", "99.5")
	p.tick(t, time.Second, enum.AlgoStateSlicing)
	p.tick(t, 2*time.Second, enum.AlgoStateSlicing)
	require.Len(t, p.children, 1)

	p.tick(t, 10*time.Second, enum.AlgoStateAwaitingFill)
	second := p.last()
	requireChild(t, second, enum.OrderTypePostOnly, enum.OrderSideBuy, "0.333", "99.5")
	p.open(second.UUID)
	p.tick(t, 15*time.Second, enum.AlgoStateAwaitingFill)

	// wait elapsed, the child is canceled and its remainder re-priced
	p.tick(t, 20*time.Second, enum.AlgoStateCanceling)
	assert.Equal(t, enum.SubmitTypeCancel, p.last().SubmitType)
	assert.Equal(t, second.UUID, p.last().UUID)
	p.fill(second.UUID, enum.OrderStatusCanceled, "0.1", "99.5")
	p.tick(t, 21*time.Second, enum.AlgoStateRepricing)
	p.book(99.8, 100.2)
	p.tick(t, 22*time.Second, enum.AlgoStateAwaitingFill)
	requireChild(t, p.last(), enum.OrderTypePostOnly, enum.OrderSideBuy, "0.233", "99.8")
	p.fill(p.last().UUID, enum.OrderStatusFilled, "0.233", "99.8")
	p.tick(t, 23*time.Second, enum.AlgoStateSlicing)

	// the last slice takes the leftover below the minimum amount
	p.tick(t, 24*time.Second, enum.AlgoStateAwaitingFill)
	last := p.last()
	requireChild(t, last, enum.OrderTypePostOnly, enum.OrderSideBuy, "0.334", "99.8")
	p.open(last.UUID)

	// deadline, cancel then sweep at market
	p.tick(t, 30*time.Second, enum.AlgoStateCanceling)
	p.fill(last.UUID, enum.OrderStatusCanceled, "0", "0")
	p.tick(t, 31*time.Second, enum.AlgoStateAwaitingFill)
	requireChild(t, p.last(), enum.OrderTypeMarket, enum.OrderSideBuy, "0.334", "")
	p.fill(p.last().UUID, enum.OrderStatusFilled, "0.334", "100")

	if !p.algo.Tick(_t0.Add(32 * time.Second)) {
		t.Fatal("algo should be done")
	}
	snap := p.algo.Snapshot(_t0)
	assert.Equal(t, enum.AlgoStateDone, snap.State)
	assert.True(t, snap.Filled.Equal(d("1")), "filled %s", snap.Filled)
	assert.Len(t, snap.Children, 5)
	assert.Equal(t, enum.AlgoStateDone, p.states[len(p.states)-1])
}

func TestAdpMaker(t *testing.T) {
	s, err := adapter.NewAdpMakerSubmit(_btcusdt, adapter.AlgoParams{
		Side:           enum.OrderSideBuy,
		Amount:         d("1"),
		Duration:       time.Minute,
		Wait:           10 * time.Second,
		TriggerTPRatio: 0.01,
		TriggerSLRatio: 0.02,
		SLRatio:        0.03,
	})
	require.NoError(t, err)
	p := newProbe(t, s)
	p.book(100, 101)

	p.tick(t, 0, enum.AlgoStateAwaitingFill)
	first := p.last()
	requireChild(t, first, enum.OrderTypePostOnly, enum.OrderSideBuy, "1", "100")
	p.open(first.UUID)
	p.tick(t, time.Second, enum.AlgoStateAwaitingFill)

	// the touch moved
	p.book(100.5, 101)
	p.tick(t, 2*time.Second, enum.AlgoStateCanceling)
	p.fill(first.UUID, enum.OrderStatusCanceled, "0.4", "100")
	p.tick(t, 3*time.Second, enum.AlgoStateRepricing)
	p.tick(t, 4*time.Second, enum.AlgoStateAwaitingFill)
	requireChild(t, p.last(), enum.OrderTypePostOnly, enum.OrderSideBuy, "0.6", "100.5")
	p.fill(p.last().UUID, enum.OrderStatusFilled, "0.6", "100.5")
	p.tick(t, 5*time.Second, enum.AlgoStateDone)

	snap := p.algo.Snapshot(_t0)
	assert.True(t, snap.Average.Equal(d("100.3")), "average %s", snap.Average)

	// take profit at market, stop loss at a limit, both reduce only on the opposite side
	require.Len(t, p.children, 5)
	tp, sl := p.children[3], p.children[4]
	assert.Equal(t, enum.SubmitTypeTakeProfit, tp.SubmitType)
	requireChild(t, tp, enum.OrderTypeTakeProfitMarket, enum.OrderSideSell, "1", "")
	assert.True(t, tp.TriggerPrice.Equal(d("101.3")), "tp trigger %s", tp.TriggerPrice)
	assert.True(t, tp.ReduceOnly)

	assert.Equal(t, enum.SubmitTypeStopLoss, sl.SubmitType)
	requireChild(t, sl, enum.OrderTypeStopLossLimit, enum.OrderSideSell, "1", "97.29")
	assert.True(t, sl.TriggerPrice.Equal(d("98.29")), "sl trigger %s", sl.TriggerPrice)
	assert.True(t, sl.ReduceOnly)
}

func TestAlgoCancel(t *testing.T) {
	s, err := adapter.NewAdpMakerSubmit(_btcusdt, adapter.AlgoParams{
		Side:     enum.OrderSideSell,
		Amount:   d("0.5"),
		Duration: time.Minute,
		Wait:     10 * time.Second,
	})
	require.NoError(t, err)
	p := newProbe(t, s)
	p.book(100, 101)

	p.tick(t, 0, enum.AlgoStateAwaitingFill)
	child := p.last()
	requireChild(t, child, enum.OrderTypePostOnly, enum.OrderSideSell, "0.5", "101")
	p.open(child.UUID)

	p.algo.Cancel()
	p.tick(t, time.Second, enum.AlgoStateCanceling)
	assert.Equal(t, enum.SubmitTypeCancel, p.last().SubmitType)

	// the cancel was rejected, the child is still live
	p.fill(child.UUID, enum.OrderStatusCancelFailed, "0", "0")
	p.tick(t, 2*time.Second, enum.AlgoStateAwaitingFill)
	p.tick(t, 3*time.Second, enum.AlgoStateCanceling)
	p.fill(child.UUID, enum.OrderStatusCanceled, "0", "0")
	p.tick(t, 4*time.Second, enum.AlgoStateDone)

	snap := p.algo.Snapshot(_t0)
	assert.True(t, snap.Canceled)
	assert.True(t, snap.Filled.IsZero())
	assert.Len(t, p.children, 3)
}
