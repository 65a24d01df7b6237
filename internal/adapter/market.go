package adapter

import (
	"sync"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Precision is the number of decimal places accepted by the exchange.
type Precision struct {
	Amount int32 `json:"amount" yaml:"amount"`
	Price  int32 `json:"price" yaml:"price"`
}

// Limit is an inclusive range, a zero bound means unbounded.
type Limit struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type Limits struct {
	Amount Limit `json:"amount"`
	Cost   Limit `json:"cost"`
	Price  Limit `json:"price"`
}

// Market is the static metadata of a tradable symbol.
type Market struct {
	Symbol       string
	ID           string
	Exchange     enum.Exchange
	Base         string
	Quote        string
	Settle       string
	Spot         bool
	Margin       bool
	Linear       bool
	Inverse      bool
	Option       bool
	ContractSize decimal.Decimal
	Precision    Precision
	Limits       Limits
}

// Kind returns the instrument kind of the market.
func (m Market) Kind() enum.InstrumentKind {
	switch {
	case m.Option:
		return enum.InstrumentKindOption
	case m.Linear:
		return enum.InstrumentKindLinear
	case m.Inverse:
		return enum.InstrumentKindInverse
	default:
		return enum.InstrumentKindSpot
	}
}

// IsContract reports whether amounts on the wire are counted in contracts.
func (m Market) IsContract() bool {
	return m.Linear || m.Inverse || m.Option
}

// NativeKey is the reverse lookup key of the market: its native id plus the kind suffix.
func (m Market) NativeKey() string {
	return NativeKey(m.ID, m.Kind())
}

// NativeKey builds the reverse lookup key "<native id>_spot|_linear|_inverse|_option".
func NativeKey(nativeID string, kind enum.InstrumentKind) string {
	return nativeID + "_" + kind.String()
}

// MarketTable maps canonical symbols to markets and native keys back to canonical symbols.
// It is written while loading and read only afterwards.
type MarketTable struct {
	exchange enum.Exchange

	mu       sync.RWMutex
	bySymbol map[string]Market
	byNative map[string]string
}

func NewMarketTable(exchange enum.Exchange) *MarketTable {
	return &MarketTable{
		exchange: exchange,
		bySymbol: make(map[string]Market),
		byNative: make(map[string]string),
	}
}

func (t *MarketTable) Exchange() enum.Exchange {
	return t.exchange
}

// Add registers a market; a symbol can only be registered once.
func (t *MarketTable) Add(m Market) error {
	if len(m.Symbol) == 0 || len(m.ID) == 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "empty market symbol or id").With("market", m)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.bySymbol[m.Symbol]; ok {
		return errors.Wrap(exception.ErrDuplicateMarket, m.Symbol)
	}

	m.Exchange = t.exchange
	t.bySymbol[m.Symbol] = m
	t.byNative[m.NativeKey()] = m.Symbol
	return nil
}

// Market returns the market of a canonical symbol.
func (t *MarketTable) Market(symbol string) (Market, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.bySymbol[symbol]
	return m, ok
}

// Symbol resolves a native key built with NativeKey back to the canonical symbol.
func (t *MarketTable) Symbol(nativeKey string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byNative[nativeKey]
	return s, ok
}

// NativeID returns the exchange id of a canonical symbol, or the input itself when the symbol is unknown.
func (t *MarketTable) NativeID(symbol string) string {
	if m, ok := t.Market(symbol); ok {
		return m.ID
	}
	return symbol
}

func (t *MarketTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bySymbol)
}

// Markets returns all markets, unordered.
func (t *MarketTable) Markets() []Market {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Market, 0, len(t.bySymbol))
	for _, m := range t.bySymbol {
		out = append(out, m)
	}
	return out
}
