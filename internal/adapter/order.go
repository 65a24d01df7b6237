package adapter

import (
	"nexus/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// Order is the canonical view of an exchange order.
//
// ID is assigned by the exchange and may be empty before the acknowledgment.
// ClientOrderID is the id sent to the exchange and UUID is the engine id the
// strategy correlates with; for plain orders both hold the same value.
type Order struct {
	Exchange        enum.Exchange
	Symbol          string
	ID              string
	ClientOrderID   string
	UUID            string
	Status          enum.OrderStatus
	Side            enum.OrderSide
	Type            enum.OrderType
	TimeInForce     enum.OrderTimeInForce
	Amount          decimal.Decimal
	Filled          decimal.Decimal
	Remaining       decimal.Decimal
	Price           decimal.Decimal
	Average         decimal.Decimal
	LastFilledPrice decimal.Decimal
	LastFilled      decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	Cost            decimal.Decimal
	CumCost         decimal.Decimal
	Timestamp       int64
	TriggerPrice    decimal.Decimal
	TriggerType     enum.TriggerType
	PositionSide    enum.PositionSide
	ReduceOnly      bool
}

func (o Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

func (o Order) IsOpen() bool {
	return o.Status.IsOpen()
}

// OrderRequest is what a private connector needs to place a new order.
type OrderRequest struct {
	Symbol        string
	ClientOrderID string
	Side          enum.OrderSide
	Type          enum.OrderType
	Amount        decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   enum.OrderTimeInForce
	PositionSide  enum.PositionSide
	TriggerPrice  decimal.Decimal
	TriggerType   enum.TriggerType
	ReduceOnly    bool
	// Extra carries exchange specific parameters sent verbatim.
	Extra map[string]string
}

// FailedOrder builds the synthetic order returned when a submission did not reach the exchange.
func (r OrderRequest) FailedOrder(exchange enum.Exchange, ts int64) Order {
	return Order{
		Exchange:      exchange,
		Symbol:        r.Symbol,
		ClientOrderID: r.ClientOrderID,
		UUID:          r.ClientOrderID,
		Status:        enum.OrderStatusFailed,
		Side:          r.Side,
		Type:          r.Type,
		TimeInForce:   r.TimeInForce,
		Amount:        r.Amount,
		Filled:        decimal.Zero,
		Remaining:     r.Amount,
		Price:         r.Price,
		Timestamp:     ts,
		TriggerPrice:  r.TriggerPrice,
		TriggerType:   r.TriggerType,
		PositionSide:  r.PositionSide,
		ReduceOnly:    r.ReduceOnly,
	}
}
