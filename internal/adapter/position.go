package adapter

import (
	"nexus/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// Position is one position per exchange and symbol, replaced wholesale on every update.
type Position struct {
	Exchange      enum.Exchange
	Symbol        string
	SignedAmount  decimal.Decimal
	Side          enum.PositionSide
	EntryPrice    decimal.Decimal
	UnrealizedPnl decimal.Decimal
	RealizedPnl   decimal.Decimal
	Timestamp     int64
}

func (p Position) Key() Key {
	return Key{Exchange: p.Exchange, Symbol: p.Symbol}
}

func (p Position) IsFlat() bool {
	return p.SignedAmount.IsZero()
}

// ResolvePositionSide derives the side of a position from its signed amount.
// A zero amount clears the side, and a netted (flat or unknown) side reported
// by the exchange becomes long or short by sign. Explicit hedge mode sides are kept.
func ResolvePositionSide(reported enum.PositionSide, signedAmount decimal.Decimal) enum.PositionSide {
	if signedAmount.IsZero() {
		return 0
	}
	if reported == enum.PositionSideLong || reported == enum.PositionSideShort {
		return reported
	}
	if signedAmount.IsPositive() {
		return enum.PositionSideLong
	}
	return enum.PositionSideShort
}
