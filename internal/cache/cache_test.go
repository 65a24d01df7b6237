package cache

import (
	"testing"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/cache/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestApplyPositionWholesale(t *testing.T) {
	c := New(nil, Option{})

	updates := []adapter.Position{
		{Exchange: enum.ExchangeBinance, Symbol: "BTC/USDT:USDT", SignedAmount: dec("1"), Side: enum.PositionSideLong, EntryPrice: dec("100")},
		{Exchange: enum.ExchangeBinance, Symbol: "BTC/USDT:USDT", SignedAmount: dec("-2"), Side: enum.PositionSideShort, EntryPrice: dec("110")},
		{Exchange: enum.ExchangeBinance, Symbol: "BTC/USDT:USDT", SignedAmount: dec("0")},
	}

	for i, u := range updates {
		c.ApplyPosition(u)

		p, ok := c.Position(enum.ExchangeBinance, "BTC/USDT:USDT")
		require.True(t, ok)
		if !p.SignedAmount.Equal(u.SignedAmount) {
			t.Fatalf("update %d amount mismatch! should be %s but got %s", i, u.SignedAmount, p.SignedAmount)
		}
		if p.Side != u.Side {
			t.Fatalf("update %d side mismatch! should be %s but got %s", i, u.Side, p.Side)
		}
		if !p.EntryPrice.Equal(u.EntryPrice) {
			t.Fatalf("update %d entry price should be replaced, not merged", i)
		}
	}
}

func TestApplyBalanceWholesale(t *testing.T) {
	c := New(nil, Option{})

	c.ApplyBalance(adapter.NewAccountBalance(enum.AccountBinanceSpot, 1,
		adapter.Balance{Asset: "BTC", Free: dec("1")},
		adapter.Balance{Asset: "USDT", Free: dec("100")},
	))
	c.ApplyBalance(adapter.NewAccountBalance(enum.AccountBinanceSpot, 2,
		adapter.Balance{Asset: "USDT", Free: dec("50"), Locked: dec("10")},
	))

	b, ok := c.Balance(enum.AccountBinanceSpot)
	require.True(t, ok)
	_, ok = b.Balance("BTC")
	require.False(t, ok, "balances are replaced wholesale")

	usdt, ok := b.Balance("USDT")
	require.True(t, ok)
	assert.True(t, usdt.Total().Equal(dec("60")))
}

func TestOpenOrders(t *testing.T) {
	c := New(nil, Option{})

	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeOKX, Symbol: "ETH/USDT", UUID: "b", Status: enum.OrderStatusAccepted, Timestamp: 2})
	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeOKX, Symbol: "ETH/USDT", UUID: "a", Status: enum.OrderStatusPartiallyFilled, Timestamp: 1})
	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeOKX, Symbol: "ETH/USDT", UUID: "c", Status: enum.OrderStatusFilled, Timestamp: 3})
	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeOKX, Symbol: "BTC/USDT", UUID: "d", Status: enum.OrderStatusAccepted, Timestamp: 4})
	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeBybit, Symbol: "ETH/USDT", UUID: "e", Status: enum.OrderStatusAccepted, Timestamp: 5})

	open := c.OpenOrders(enum.ExchangeOKX, "ETH/USDT")
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].UUID)
	assert.Equal(t, "b", open[1].UUID)

	assert.Len(t, c.OpenOrders(enum.ExchangeOKX, ""), 3)

	o, ok := c.Order("c")
	require.True(t, ok)
	assert.Equal(t, enum.OrderStatusFilled, o.Status)
}

func TestSyncAndRestore(t *testing.T) {
	repo := repository.NewMemory()
	c := New(repo, Option{Prefix: "nexus", Expire: time.Hour})
	now := time.UnixMilli(10_000_000)
	c.now = func() time.Time { return now }

	c.ApplyBalance(adapter.NewAccountBalance(enum.AccountBybitUnified, 1, adapter.Balance{Asset: "USDT", Free: dec("12.5")}))
	c.ApplyPosition(adapter.Position{Exchange: enum.ExchangeBybit, Symbol: "BTC/USDT:USDT", SignedAmount: dec("0.3"), Side: enum.PositionSideLong})
	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeBybit, UUID: "open", Status: enum.OrderStatusAccepted, Amount: dec("1"), Timestamp: now.UnixMilli()})
	c.ApplyOrder(adapter.Order{Exchange: enum.ExchangeBybit, UUID: "old", Status: enum.OrderStatusFilled, Timestamp: now.Add(-2 * time.Hour).UnixMilli()})

	require.NoError(t, c.Sync(t.Context()))

	_, ok := c.Order("old")
	require.False(t, ok, "expired terminal orders are dropped on sync")

	_, ok, err := repo.Get(t.Context(), "nexus:balances")
	require.NoError(t, err)
	require.True(t, ok)

	restored := New(repo, Option{Prefix: "nexus"})
	require.NoError(t, restored.Restore(t.Context()))

	b, ok := restored.Balance(enum.AccountBybitUnified)
	require.True(t, ok)
	usdt, _ := b.Balance("USDT")
	assert.True(t, usdt.Free.Equal(dec("12.5")))

	p, ok := restored.Position(enum.ExchangeBybit, "BTC/USDT:USDT")
	require.True(t, ok)
	assert.True(t, p.SignedAmount.Equal(dec("0.3")))

	o, ok := restored.Order("open")
	require.True(t, ok)
	assert.True(t, o.Amount.Equal(dec("1")))
}

func TestSyncSkipsWhenClean(t *testing.T) {
	repo := repository.NewMemory()
	c := New(repo, Option{})
	require.NoError(t, c.Sync(t.Context()))

	_, ok, err := repo.Get(t.Context(), "balances")
	require.NoError(t, err)
	require.False(t, ok)
}
