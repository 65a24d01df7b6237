package exception

import "errors"

var (
	// ErrUnsupportedSymbol is returned when a symbol is absent from the market table or its market kind is not tradable on the account.
	ErrUnsupportedSymbol = errors.New("market: unsupported symbol")

	// ErrUnsupportedMapping is returned when an enum value has no equivalent on the other side of an exchange mapping.
	ErrUnsupportedMapping = errors.New("enum: unsupported mapping")

	ErrInvalidInstrumentID = errors.New("market: invalid instrument id")
	ErrDuplicateMarket     = errors.New("market: duplicate market")
	ErrNoBookL1            = errors.New("market: no bookl1")
)
