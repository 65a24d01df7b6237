package adapter

import (
	"nexus/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// AlgoOrder is the progress of a TWAP or adaptive maker order, published on the algo topic of its exchange.
type AlgoOrder struct {
	UUID       string
	Exchange   enum.Exchange
	Symbol     string
	SubmitType enum.SubmitType
	State      enum.AlgoState
	Side       enum.OrderSide
	Amount     decimal.Decimal
	Filled     decimal.Decimal
	Average    decimal.Decimal
	// Children lists the uuids of the child orders in placement order.
	Children  []string
	Canceled  bool
	Timestamp int64
}

func (a AlgoOrder) Remaining() decimal.Decimal {
	return a.Amount.Sub(a.Filled)
}

func (a AlgoOrder) IsDone() bool {
	return a.State == enum.AlgoStateDone
}
