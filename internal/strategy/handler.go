package strategy

import (
	"nexus/internal/adapter"
)

// A strategy implements any subset of the interfaces below, Bind wires each one it finds.

type Initializer interface {
	Init(ctx *Context) error
}

type TradeHandler interface {
	OnTrade(t adapter.Trade)
}

type BookL1Handler interface {
	OnBookL1(b adapter.BookL1)
}

type KlineHandler interface {
	OnKline(k adapter.Kline)
}

type MarkPriceHandler interface {
	OnMarkPrice(p adapter.MarkPrice)
}

type FundingRateHandler interface {
	OnFundingRate(r adapter.FundingRate)
}

type IndexPriceHandler interface {
	OnIndexPrice(p adapter.IndexPrice)
}

type PendingOrderHandler interface {
	OnPendingOrder(o adapter.Order)
}

type AcceptedOrderHandler interface {
	OnAcceptedOrder(o adapter.Order)
}

type PartiallyFilledOrderHandler interface {
	OnPartiallyFilledOrder(o adapter.Order)
}

type FilledOrderHandler interface {
	OnFilledOrder(o adapter.Order)
}

type CancelingOrderHandler interface {
	OnCancelingOrder(o adapter.Order)
}

// CanceledOrderHandler also receives expired orders.
type CanceledOrderHandler interface {
	OnCanceledOrder(o adapter.Order)
}

type FailedOrderHandler interface {
	OnFailedOrder(o adapter.Order)
}

type CancelFailedOrderHandler interface {
	OnCancelFailedOrder(o adapter.Order)
}

type BalanceHandler interface {
	OnBalance(b adapter.AccountBalance)
}

type AlgoOrderHandler interface {
	OnAlgoOrder(a adapter.AlgoOrder)
}
