package enum

import "strings"

// Exchange binance, bybit, okx
type Exchange uint8

const (
	_exchange_beg Exchange = iota
	ExchangeBinance
	ExchangeBybit
	ExchangeOKX
	_exchange_end
)

func (e Exchange) IsAvailable() bool {
	return e > _exchange_beg && e < _exchange_end
}

// String returns the lower case exchange id, which is also the prefix of exchange scoped topics.
func (e Exchange) String() string {
	switch e {
	case ExchangeBinance:
		return "binance"
	case ExchangeBybit:
		return "bybit"
	case ExchangeOKX:
		return "okx"
	default:
		return ""
	}
}

// ParseExchange accepts the exchange id in any letter case.
func ParseExchange(s string) (Exchange, bool) {
	switch strings.ToLower(s) {
	case "binance":
		return ExchangeBinance, true
	case "bybit":
		return ExchangeBybit, true
	case "okx":
		return ExchangeOKX, true
	default:
		return _exchange_beg, false
	}
}

// OrderTopic is the topic order updates of the exchange are published on.
func (e Exchange) OrderTopic() string {
	return e.String() + ".order"
}

// AlgoTopic is the topic algo order progress of the exchange is published on.
func (e Exchange) AlgoTopic() string {
	return e.String() + ".algo"
}

// InstrumentKind spot, linear, inverse, option
type InstrumentKind uint8

const (
	_instrument_kind_beg InstrumentKind = iota
	InstrumentKindSpot
	InstrumentKindLinear
	InstrumentKindInverse
	InstrumentKindOption
	_instrument_kind_end
)

func (k InstrumentKind) IsAvailable() bool {
	return k > _instrument_kind_beg && k < _instrument_kind_end
}

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentKindSpot:
		return "spot"
	case InstrumentKindLinear:
		return "linear"
	case InstrumentKindInverse:
		return "inverse"
	case InstrumentKindOption:
		return "option"
	default:
		return ""
	}
}
