package adapter

import (
	"strings"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

// InstrumentID identifies a symbol on an exchange, e.g. "BTC/USDT:USDT-BINANCE".
type InstrumentID struct {
	Symbol   string
	Exchange enum.Exchange
	Kind     enum.InstrumentKind
}

// ParseInstrumentID parses "BASE/QUOTE[:SETTLE]-EXCHANGE".
//
// The kind is derived from the symbol: no settle currency is spot, a settle
// equal to the quote is linear, a settle equal to the base is inverse, and a
// trailing "-C" or "-P" after the settle marks an option.
func ParseInstrumentID(s string) (InstrumentID, error) {
	idx := strings.LastIndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return InstrumentID{}, errors.Wrapf(exception.ErrInvalidInstrumentID, "missing exchange: %s", s)
	}

	symbol, venue := s[:idx], s[idx+1:]
	exchange, ok := enum.ParseExchange(venue)
	if !ok {
		return InstrumentID{}, errors.Wrapf(exception.ErrInvalidInstrumentID, "unknown exchange: %s", s)
	}

	kind, err := symbolKind(symbol)
	if err != nil {
		return InstrumentID{}, errors.Wrapf(err, "parse %s", s)
	}

	return InstrumentID{
		Symbol:   symbol,
		Exchange: exchange,
		Kind:     kind,
	}, nil
}

// MustParseInstrumentID is ParseInstrumentID for literals known to be valid.
func MustParseInstrumentID(s string) InstrumentID {
	id, err := ParseInstrumentID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func symbolKind(symbol string) (enum.InstrumentKind, error) {
	slash := strings.IndexByte(symbol, '/')
	if slash <= 0 || slash == len(symbol)-1 {
		return 0, errors.Wrapf(exception.ErrInvalidInstrumentID, "missing quote: %s", symbol)
	}

	base, rest := symbol[:slash], symbol[slash+1:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		if strings.ContainsRune(rest, '-') {
			return 0, errors.Wrapf(exception.ErrInvalidInstrumentID, "expiry without settle: %s", symbol)
		}
		return enum.InstrumentKindSpot, nil
	}

	quote, settle := rest[:colon], rest[colon+1:]
	if len(quote) == 0 || len(settle) == 0 {
		return 0, errors.Wrapf(exception.ErrInvalidInstrumentID, "empty quote or settle: %s", symbol)
	}

	var suffix string
	if dash := strings.IndexByte(settle, '-'); dash >= 0 {
		settle, suffix = settle[:dash], settle[dash:]
	}

	if strings.HasSuffix(suffix, "-C") || strings.HasSuffix(suffix, "-P") {
		return enum.InstrumentKindOption, nil
	}

	switch settle {
	case quote:
		return enum.InstrumentKindLinear, nil
	case base:
		return enum.InstrumentKindInverse, nil
	default:
		return 0, errors.Wrapf(exception.ErrInvalidInstrumentID, "settle matches neither base nor quote: %s", symbol)
	}
}

// String renders the id in the form accepted by ParseInstrumentID.
func (id InstrumentID) String() string {
	return id.Symbol + "-" + strings.ToUpper(id.Exchange.String())
}

func (id InstrumentID) IsSpot() bool {
	return id.Kind == enum.InstrumentKindSpot
}

func (id InstrumentID) IsLinear() bool {
	return id.Kind == enum.InstrumentKindLinear
}

func (id InstrumentID) IsInverse() bool {
	return id.Kind == enum.InstrumentKindInverse
}

func (id InstrumentID) IsOption() bool {
	return id.Kind == enum.InstrumentKindOption
}

// Key is used wherever state is keyed per exchange and symbol.
type Key struct {
	Exchange enum.Exchange
	Symbol   string
}

func (id InstrumentID) Key() Key {
	return Key{Exchange: id.Exchange, Symbol: id.Symbol}
}

func (k Key) String() string {
	return k.Symbol + "-" + strings.ToUpper(k.Exchange.String())
}
