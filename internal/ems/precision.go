package ems

import (
	"nexus/internal/adapter"

	"github.com/shopspring/decimal"
)

// RoundMode selects how a value is brought to the precision of a market.
type RoundMode uint8

const (
	RoundModeRound RoundMode = iota
	RoundModeCeil
	RoundModeFloor
)

func (m RoundMode) String() string {
	switch m {
	case RoundModeCeil:
		return "ceil"
	case RoundModeFloor:
		return "floor"
	default:
		return "round"
	}
}

// ParseRoundMode accepts "round", "ceil" and "floor", anything else rounds.
func ParseRoundMode(s string) RoundMode {
	switch s {
	case "ceil":
		return RoundModeCeil
	case "floor":
		return RoundModeFloor
	default:
		return RoundModeRound
	}
}

// minCostBuffer keeps the notional of the smallest order above the exchange minimum when the price moves.
var minCostBuffer = decimal.RequireFromString("1.1")

func toPrecision(v decimal.Decimal, places int32, mode RoundMode) decimal.Decimal {
	switch mode {
	case RoundModeCeil:
		return v.RoundCeil(places)
	case RoundModeFloor:
		return v.RoundFloor(places)
	default:
		return v.Round(places)
	}
}

// AmountToPrecision brings amount to the amount decimal places of the market.
func AmountToPrecision(m adapter.Market, amount decimal.Decimal, mode RoundMode) decimal.Decimal {
	return toPrecision(amount, m.Precision.Amount, mode)
}

// PriceToPrecision brings price to the price decimal places of the market.
func PriceToPrecision(m adapter.Market, price decimal.Decimal, mode RoundMode) decimal.Decimal {
	return toPrecision(price, m.Precision.Price, mode)
}

// MinOrderAmount is ceil(max(minCost * 1.1 / mid, minAmount)) at the amount precision.
// A zero mid ignores the cost limit.
func MinOrderAmount(m adapter.Market, mid decimal.Decimal) decimal.Decimal {
	amount := m.Limits.Amount.Min
	if mid.IsPositive() && m.Limits.Cost.Min.IsPositive() {
		byCost := m.Limits.Cost.Min.Mul(minCostBuffer).Div(mid)
		amount = decimal.Max(amount, byCost)
	}
	return AmountToPrecision(m, amount, RoundModeCeil)
}
