package enum

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

// Opposite returns the side that closes a position opened by s.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return s
	}
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType limit, market, post only and the trigger variants
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	OrderTypePostOnly
	OrderTypeStopLossMarket
	OrderTypeStopLossLimit
	OrderTypeTakeProfitMarket
	OrderTypeTakeProfitLimit
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

// IsLimit reports whether the order rests on the book with a price.
func (t OrderType) IsLimit() bool {
	switch t {
	case OrderTypeLimit, OrderTypePostOnly, OrderTypeStopLossLimit, OrderTypeTakeProfitLimit:
		return true
	default:
		return false
	}
}

func (t OrderType) IsMarket() bool {
	switch t {
	case OrderTypeMarket, OrderTypeStopLossMarket, OrderTypeTakeProfitMarket:
		return true
	default:
		return false
	}
}

func (t OrderType) IsStopLoss() bool {
	return t == OrderTypeStopLossMarket || t == OrderTypeStopLossLimit
}

func (t OrderType) IsTakeProfit() bool {
	return t == OrderTypeTakeProfitMarket || t == OrderTypeTakeProfitLimit
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	case OrderTypePostOnly:
		return "post_only"
	case OrderTypeStopLossMarket:
		return "stop_loss_market"
	case OrderTypeStopLossLimit:
		return "stop_loss_limit"
	case OrderTypeTakeProfitMarket:
		return "take_profit_market"
	case OrderTypeTakeProfitLimit:
		return "take_profit_limit"
	default:
		return "unknown"
	}
}

// OrderStatus pending, accepted, partially filled, filled, canceling, canceled, expired, failed, cancel failed
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusPending
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceling
	OrderStatusCanceled
	OrderStatusExpired
	OrderStatusFailed
	OrderStatusCancelFailed
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further exchange events are expected for the order.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the order may still trade on the exchange.
func (s OrderStatus) IsOpen() bool {
	return s.IsAvailable() && !s.IsTerminal()
}

// Endpoint returns the strategy callback endpoint an order in this status is delivered to.
func (s OrderStatus) Endpoint() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusAccepted:
		return "accepted"
	case OrderStatusPartiallyFilled:
		return "partially_filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCanceling:
		return "canceling"
	case OrderStatusCanceled, OrderStatusExpired:
		return "canceled"
	case OrderStatusFailed:
		return "failed"
	case OrderStatusCancelFailed:
		return "cancel_failed"
	default:
		return ""
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusExpired:
		return "expired"
	default:
		if ep := s.Endpoint(); ep != "" {
			return ep
		}
		return "unknown"
	}
}

// OrderTimeInForce GTC, IOC, FOK
type OrderTimeInForce uint8

const (
	_order_time_in_force_beg OrderTimeInForce = iota
	OrderTimeInForceGTC
	OrderTimeInForceIOC
	OrderTimeInForceFOK
	_order_time_in_force_end
)

func (s OrderTimeInForce) IsAvailable() bool {
	return s > _order_time_in_force_beg && s < _order_time_in_force_end
}

func (s OrderTimeInForce) String() string {
	switch s {
	case OrderTimeInForceGTC:
		return "GTC"
	case OrderTimeInForceIOC:
		return "IOC"
	case OrderTimeInForceFOK:
		return "FOK"
	default:
		return "unknown"
	}
}

// PositionSide long, short, flat. The zero value means no position side.
type PositionSide uint8

const (
	_position_side_beg PositionSide = iota
	PositionSideLong
	PositionSideShort
	PositionSideFlat
	_position_side_end
)

func (s PositionSide) IsAvailable() bool {
	return s > _position_side_beg && s < _position_side_end
}

func (s PositionSide) String() string {
	switch s {
	case PositionSideLong:
		return "long"
	case PositionSideShort:
		return "short"
	case PositionSideFlat:
		return "flat"
	default:
		return ""
	}
}

// TriggerType last price, mark price, index price
type TriggerType uint8

const (
	_trigger_type_beg TriggerType = iota
	TriggerTypeLastPrice
	TriggerTypeMarkPrice
	TriggerTypeIndexPrice
	_trigger_type_end
)

func (t TriggerType) IsAvailable() bool {
	return t > _trigger_type_beg && t < _trigger_type_end
}

// SubmitType is the kind of command carried by an order submission.
type SubmitType uint8

const (
	_submit_type_beg SubmitType = iota
	SubmitTypeCreate
	SubmitTypeCancel
	SubmitTypeStopLoss
	SubmitTypeTakeProfit
	SubmitTypeTwap
	SubmitTypeAdpMaker
	SubmitTypeCancelTwap
	SubmitTypeCancelAdpMaker
	_submit_type_end
)

func (t SubmitType) IsAvailable() bool {
	return t > _submit_type_beg && t < _submit_type_end
}

// IsAlgo reports whether the submission starts a client side algo order.
func (t SubmitType) IsAlgo() bool {
	return t == SubmitTypeTwap || t == SubmitTypeAdpMaker
}

func (t SubmitType) String() string {
	switch t {
	case SubmitTypeCreate:
		return "CREATE"
	case SubmitTypeCancel:
		return "CANCEL"
	case SubmitTypeStopLoss:
		return "STOP_LOSS"
	case SubmitTypeTakeProfit:
		return "TAKE_PROFIT"
	case SubmitTypeTwap:
		return "TWAP"
	case SubmitTypeAdpMaker:
		return "ADP_MAKER"
	case SubmitTypeCancelTwap:
		return "CANCEL_TWAP"
	case SubmitTypeCancelAdpMaker:
		return "CANCEL_ADP_MAKER"
	default:
		return "UNKNOWN"
	}
}

// AlgoState slicing, awaiting fill, repricing, canceling, done
type AlgoState uint8

const (
	_algo_state_beg AlgoState = iota
	AlgoStateSlicing
	AlgoStateAwaitingFill
	AlgoStateRepricing
	AlgoStateCanceling
	AlgoStateDone
	_algo_state_end
)

func (s AlgoState) IsAvailable() bool {
	return s > _algo_state_beg && s < _algo_state_end
}

func (s AlgoState) String() string {
	switch s {
	case AlgoStateSlicing:
		return "SLICING"
	case AlgoStateAwaitingFill:
		return "AWAITING_FILL"
	case AlgoStateRepricing:
		return "REPRICING"
	case AlgoStateCanceling:
		return "CANCELING"
	case AlgoStateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
