package engine

import (
	"context"
	"sync"
	"testing"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/cache"
	"nexus/internal/cache/repository"
	"nexus/internal/exchange"
	"nexus/internal/exchange/exchangetest"
	"nexus/internal/ops"
	"nexus/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instrument(t *testing.T, s string) adapter.InstrumentID {
	t.Helper()
	id, err := adapter.ParseInstrumentID(s)
	require.NoError(t, err)
	return id
}

func TestCheck(t *testing.T) {
	key := adapter.NewToken("key", "secret", "")
	linear := ops.Subscription{Instrument: instrument(t, "BTC/USDT:USDT-BINANCE"), BookL1: true}

	testCases := []struct {
		desc string
		cfg  ops.Loaded
		ok   bool
	}{
		{
			desc: "public and private",
			cfg: ops.Loaded{
				Exchanges: []ops.Exchange{{
					Exchange: enum.ExchangeBinance,
					Token:    key,
					Public:   []enum.AccountType{enum.AccountBinanceSpot, enum.AccountBinanceUSDMFuture},
					Private:  []enum.AccountType{enum.AccountBinanceMargin, enum.AccountBinanceUSDMFuture},
				}},
				Subscriptions: []ops.Subscription{linear},
			},
			ok: true,
		},
		{
			desc: "bybit unified public",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeBybit,
				Public:   []enum.AccountType{enum.AccountBybitUnified},
			}}},
		},
		{
			desc: "binance margin public",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeBinance,
				Public:   []enum.AccountType{enum.AccountBinanceMargin},
			}}},
		},
		{
			desc: "account of another exchange",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeBinance,
				Public:   []enum.AccountType{enum.AccountBybitSpot},
			}}},
		},
		{
			desc: "duplicate connector",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeBybit,
				Public:   []enum.AccountType{enum.AccountBybitLinear, enum.AccountBybitLinear},
			}}},
		},
		{
			desc: "testnet mismatch",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeBybit,
				Public:   []enum.AccountType{enum.AccountBybitSpotTestnet},
			}}},
		},
		{
			desc: "two okx private connectors",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeOKX,
				Token:    adapter.NewToken("key", "secret", "phrase"),
				Private:  []enum.AccountType{enum.AccountOKXLive, enum.AccountOKXAWS},
			}}},
		},
		{
			desc: "private without api key",
			cfg: ops.Loaded{Exchanges: []ops.Exchange{{
				Exchange: enum.ExchangeBinance,
				Private:  []enum.AccountType{enum.AccountBinanceSpot},
			}}},
		},
		{
			desc: "subscription without public connector",
			cfg: ops.Loaded{
				Exchanges: []ops.Exchange{{
					Exchange: enum.ExchangeBinance,
					Public:   []enum.AccountType{enum.AccountBinanceSpot},
				}},
				Subscriptions: []ops.Subscription{linear},
			},
		},
		{
			desc: "subscription without private account",
			cfg: ops.Loaded{
				Exchanges: []ops.Exchange{{
					Exchange: enum.ExchangeBinance,
					Token:    key,
					Public:   []enum.AccountType{enum.AccountBinanceUSDMFuture},
					Private:  []enum.AccountType{enum.AccountBinanceSpot},
				}},
				Subscriptions: []ops.Subscription{linear},
			},
		},
		{
			desc: "subscription of unknown exchange",
			cfg: ops.Loaded{
				Subscriptions: []ops.Subscription{linear},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := check(tc.cfg)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, exception.ErrEngineBuild)
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, err := Build(t.Context(), ops.Loaded{Exchanges: []ops.Exchange{{
		Exchange: enum.ExchangeBybit,
		Public:   []enum.AccountType{enum.AccountBybitUnified},
	}}}, Option{Repository: repository.NewMemory()})
	require.ErrorIs(t, err, exception.ErrEngineBuild)
}

func TestBuildFailureClosesRepository(t *testing.T) {
	closed := 0
	open := _openRepository
	_openRepository = func(context.Context, ops.CacheConfig) (cache.Repository, func() error, error) {
		return repository.NewMemory(), func() error { closed++; return nil }, nil
	}
	t.Cleanup(func() { _openRepository = open })

	// bybit trades on unified accounts only, so the private connector fails after the repository is open
	cfg, err := ops.Parse([]byte(`
exchanges:
  bybit:
    key: key
    secret: secret
    private: [linear]
`))
	require.NoError(t, err)

	_, err = Build(t.Context(), cfg, Option{})
	require.ErrorIs(t, err, exception.ErrEngineBuild)
	if closed != 1 {
		t.Fatalf("closed mismatch! should be 1 but got %d", closed)
	}
}

const _publicConfig = `
exchanges:
  binance:
    public: [usd_m_future]
    markets:
      - symbol: BTC/USDT:USDT
        id: BTCUSDT
        precision: {amount: 3, price: 1}
subscriptions:
  - instrument: BTC/USDT:USDT-BINANCE
    bookl1: true
`

type bookRecorder struct {
	mu    sync.Mutex
	books []adapter.BookL1
}

func (r *bookRecorder) OnBookL1(b adapter.BookL1) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books = append(r.books, b)
}

func TestStartAndDispose(t *testing.T) {
	cfg, err := ops.Parse([]byte(_publicConfig))
	require.NoError(t, err)

	stream := exchangetest.NewStream()
	e, err := Build(t.Context(), cfg, Option{
		Repository: repository.NewMemory(),
		Stream:     func(enum.AccountType) exchange.Stream { return stream },
	})
	require.NoError(t, err)

	strat := &bookRecorder{}
	require.NoError(t, e.Start(t.Context(), strat))
	require.True(t, stream.Started())
	assert.Equal(t, []string{`{"method":"SUBSCRIBE","params":["btcusdt@bookTicker"],"id":1}`}, stream.Requests())

	stream.Emit(`{"e":"bookTicker","u":1,"E":1700000000010,"T":1700000000009,"s":"BTCUSDT","b":"100","B":"1","a":"101","A":"2"}`)

	book, ok := e.Cache().BookL1(enum.ExchangeBinance, "BTC/USDT:USDT")
	require.True(t, ok)
	if book.Mid() != 100.5 {
		t.Fatalf("mid mismatch! should be 100.5 but got %f", book.Mid())
	}
	require.Len(t, strat.books, 1)
	assert.Equal(t, "BTC/USDT:USDT", strat.books[0].Symbol)

	e.Dispose()
	require.True(t, stream.Closed())
	if n := e.Tasks().Running(); n != 0 {
		t.Fatalf("running tasks mismatch! should be 0 but got %d", n)
	}
}

func TestBuildWiresPrivateExchange(t *testing.T) {
	cfg, err := ops.Parse([]byte(`
exchanges:
  bybit:
    key: key
    secret: secret
    public: [spot]
    private: [unified]
    markets:
      - symbol: BTC/USDT
        id: BTCUSDT
        precision: {amount: 6, price: 2}
algo:
  check_interval: 50ms
`))
	require.NoError(t, err)

	e, err := Build(t.Context(), cfg, Option{Repository: repository.NewMemory()})
	require.NoError(t, err)
	require.Len(t, e.publics, 1)
	require.Len(t, e.privates, 1)
	require.Len(t, e.emss, 1)
	require.Len(t, e.omss, 1)
	assert.Equal(t, enum.AccountBybitUnified, e.privates[0].AccountType())
}
