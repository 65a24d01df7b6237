package ems

import (
	"math"
	"sync"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/cache"
	"nexus/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// _maxChildFailures consecutive failed child orders stop an algo, e.g. post only orders rejected for crossing the book.
const _maxChildFailures = 3

// algoEnv is the engine surface of an algo: child commands go back to the account queue
// and child state is read from the cache.
type algoEnv struct {
	cache   cache.Reader
	submit  func(adapter.OrderSubmit) error
	publish func(adapter.AlgoOrder)
}

// Algo runs a TWAP or adaptive maker order as a state machine advanced by Tick.
//
// TWAP splits the amount into ceil(duration / wait) maker slices placed every wait.
// The adaptive maker keeps one maker order for the remainder at the touch.
// A child that stays open for wait is canceled and its remainder re-priced, and the
// remainder left at the deadline is sent at market.
type Algo struct {
	mu sync.Mutex

	submit   adapter.OrderSubmit
	market   adapter.Market
	env      algoEnv
	deadline time.Time

	state       enum.AlgoState
	nextSliceAt time.Time
	sliceAmount decimal.Decimal
	// pending is the unfilled part of the current slice
	pending decimal.Decimal
	filled  decimal.Decimal
	cost    decimal.Decimal

	child      string
	childAt    time.Time
	childPrice decimal.Decimal
	children   []string
	failures   int

	final     bool
	canceled  bool
	protected bool
}

func newAlgo(s adapter.OrderSubmit, market adapter.Market, start time.Time, env algoEnv) (*Algo, error) {
	if !s.SubmitType.IsAlgo() {
		return nil, errors.Wrapf(exception.ErrOrder, "%s is not an algo order", s.SubmitType)
	}
	if s.Wait > s.Duration {
		return nil, errors.Wrapf(exception.ErrOrder, "wait %s must be less than duration %s", s.Wait, s.Duration)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &Algo{
		submit:      s,
		market:      market,
		env:         env,
		deadline:    start.Add(s.Duration),
		state:       enum.AlgoStateSlicing,
		nextSliceAt: start,
	}, nil
}

func (a *Algo) UUID() string {
	return a.submit.UUID
}

func (a *Algo) CheckInterval() time.Duration {
	if a.submit.CheckInterval <= 0 {
		return adapter.DefaultCheckInterval
	}
	return a.submit.CheckInterval
}

// Cancel stops the algo at the next tick, an open child is canceled first.
func (a *Algo) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.canceled = true
}

// Snapshot returns the progress of the algo.
func (a *Algo) Snapshot(now time.Time) adapter.AlgoOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot(now)
}

func (a *Algo) snapshot(now time.Time) adapter.AlgoOrder {
	average := decimal.Zero
	if a.filled.IsPositive() {
		average = a.cost.Div(a.filled)
	}
	children := make([]string, len(a.children))
	copy(children, a.children)
	return adapter.AlgoOrder{
		UUID:       a.submit.UUID,
		Exchange:   a.submit.InstrumentID.Exchange,
		Symbol:     a.submit.InstrumentID.Symbol,
		SubmitType: a.submit.SubmitType,
		State:      a.state,
		Side:       a.submit.Side,
		Amount:     a.submit.Amount,
		Filled:     a.filled,
		Average:    average,
		Children:   children,
		Canceled:   a.canceled,
		Timestamp:  now.UnixMilli(),
	}
}

// Tick advances the algo and reports whether it is done. The progress is published on every state change.
func (a *Algo) Tick(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.state
	switch a.state {
	case enum.AlgoStateSlicing:
		a.slice(now)
	case enum.AlgoStateRepricing:
		a.reprice(now)
	case enum.AlgoStateAwaitingFill:
		a.await(now)
	case enum.AlgoStateCanceling:
		a.awaitCancel(now)
	}

	if a.state == enum.AlgoStateDone && !a.protected {
		a.protected = true
		a.protect()
	}
	if a.state != prev && a.env.publish != nil {
		a.env.publish(a.snapshot(now))
	}
	return a.state == enum.AlgoStateDone
}

func (a *Algo) remaining() decimal.Decimal {
	return AmountToPrecision(a.market, a.submit.Amount.Sub(a.filled), RoundModeFloor)
}

// touch returns the maker price of the side, the bid for a buy and the ask for a sell.
func (a *Algo) touch() (price, mid decimal.Decimal, ok bool) {
	book, ok := a.env.cache.BookL1(a.submit.InstrumentID.Exchange, a.submit.InstrumentID.Symbol)
	if !ok || book.Bid <= 0 || book.Ask <= 0 {
		return decimal.Zero, decimal.Zero, false
	}
	mid = decimal.NewFromFloat(book.Mid())
	if a.submit.Side == enum.OrderSideBuy {
		return PriceToPrecision(a.market, decimal.NewFromFloat(book.Bid), RoundModeFloor), mid, true
	}
	return PriceToPrecision(a.market, decimal.NewFromFloat(book.Ask), RoundModeCeil), mid, true
}

// tooSmall reports whether amount can no longer be placed.
func (a *Algo) tooSmall(amount, mid decimal.Decimal) bool {
	if !amount.IsPositive() {
		return true
	}
	floor := MinOrderAmount(a.market, mid)
	return floor.IsPositive() && amount.LessThan(floor)
}

func (a *Algo) slice(now time.Time) {
	if a.canceled {
		a.state = enum.AlgoStateDone
		return
	}
	price, mid, ok := a.touch()
	if !ok {
		return
	}
	remaining := a.remaining()
	if a.tooSmall(remaining, mid) {
		a.state = enum.AlgoStateDone
		return
	}
	if !now.Before(a.deadline) {
		a.sweep(mid)
		return
	}

	if a.submit.SubmitType != enum.SubmitTypeTwap {
		a.pending = remaining
		a.place(now, price, a.pending)
		return
	}

	if now.Before(a.nextSliceAt) {
		return
	}
	if a.sliceAmount.IsZero() {
		n := int64(math.Ceil(float64(a.submit.Duration) / float64(a.submit.Wait)))
		a.sliceAmount = AmountToPrecision(a.market, a.submit.Amount.Div(decimal.NewFromInt(n)), RoundModeFloor)
		a.sliceAmount = decimal.Max(a.sliceAmount, MinOrderAmount(a.market, mid))
	}
	a.pending = decimal.Min(a.sliceAmount, remaining)
	if a.tooSmall(remaining.Sub(a.pending), mid) {
		a.pending = remaining
	}
	a.nextSliceAt = now.Add(a.submit.Wait)
	a.place(now, price, a.pending)
}

func (a *Algo) reprice(now time.Time) {
	if a.canceled {
		a.state = enum.AlgoStateDone
		return
	}
	price, mid, ok := a.touch()
	if !ok {
		return
	}
	if !now.Before(a.deadline) {
		a.sweep(mid)
		return
	}
	if a.tooSmall(a.pending, mid) {
		a.state = enum.AlgoStateSlicing
		return
	}
	a.place(now, price, a.pending)
}

func (a *Algo) place(now time.Time, price, amount decimal.Decimal) {
	child := adapter.NewOrderSubmit(a.submit.InstrumentID, adapter.OrderParams{
		Side:         a.submit.Side,
		Type:         enum.OrderTypePostOnly,
		Amount:       amount,
		Price:        price,
		TimeInForce:  enum.OrderTimeInForceGTC,
		PositionSide: a.submit.PositionSide,
		ReduceOnly:   a.submit.ReduceOnly,
		Extra:        a.submit.Extra,
	})
	if a.submitChild(child) {
		a.child, a.childAt, a.childPrice = child.UUID, now, price
		a.state = enum.AlgoStateAwaitingFill
	}
}

// sweep sends the remainder at market.
func (a *Algo) sweep(mid decimal.Decimal) {
	remaining := a.remaining()
	if a.tooSmall(remaining, mid) {
		a.state = enum.AlgoStateDone
		return
	}
	child := adapter.NewOrderSubmit(a.submit.InstrumentID, adapter.OrderParams{
		Side:         a.submit.Side,
		Type:         enum.OrderTypeMarket,
		Amount:       remaining,
		PositionSide: a.submit.PositionSide,
		ReduceOnly:   a.submit.ReduceOnly,
		Extra:        a.submit.Extra,
	})
	if a.submitChild(child) {
		a.child, a.final = child.UUID, true
		a.state = enum.AlgoStateAwaitingFill
	}
}

func (a *Algo) submitChild(child adapter.OrderSubmit) bool {
	child.AlgoUUID = a.submit.UUID
	if err := a.env.submit(child); err != nil {
		logs.Errorf("algo %s submit child failed, err: %+v", a.submit.UUID, err)
		a.state = enum.AlgoStateDone
		return false
	}
	a.children = append(a.children, child.UUID)
	return true
}

func (a *Algo) await(now time.Time) {
	o, ok := a.env.cache.Order(a.child)
	if !ok {
		return
	}
	if o.IsTerminal() {
		a.absorb(o)
		a.next(now)
		return
	}
	if a.final {
		return
	}

	expired := a.canceled || now.Sub(a.childAt) >= a.submit.Wait || !now.Before(a.deadline)
	if !expired && a.submit.SubmitType == enum.SubmitTypeAdpMaker {
		if price, _, ok := a.touch(); ok && !price.Equal(a.childPrice) {
			expired = true
		}
	}
	if !expired {
		return
	}

	if err := a.env.submit(adapter.NewCancelSubmit(a.submit.InstrumentID, a.child)); err != nil {
		logs.Errorf("algo %s cancel child %s failed, err: %+v", a.submit.UUID, a.child, err)
		return
	}
	a.state = enum.AlgoStateCanceling
}

func (a *Algo) awaitCancel(now time.Time) {
	o, ok := a.env.cache.Order(a.child)
	if !ok {
		return
	}
	switch {
	case o.IsTerminal():
		a.absorb(o)
		a.next(now)
	case o.Status == enum.OrderStatusCancelFailed:
		// the child lives on, wait for it again
		a.childAt = now
		a.state = enum.AlgoStateAwaitingFill
	}
}

// absorb adds the fill of a terminal child.
func (a *Algo) absorb(o adapter.Order) {
	price := o.Average
	if !price.IsPositive() {
		price = o.Price
	}
	a.filled = a.filled.Add(o.Filled)
	a.cost = a.cost.Add(o.Filled.Mul(price))
	a.pending = a.pending.Sub(o.Filled)
	a.child = ""

	if o.Status == enum.OrderStatusFailed {
		a.failures++
	} else {
		a.failures = 0
	}
}

func (a *Algo) next(now time.Time) {
	switch {
	case a.final || a.canceled || a.failures >= _maxChildFailures || !a.remaining().IsPositive():
		a.state = enum.AlgoStateDone
	case !now.Before(a.deadline):
		_, mid, _ := a.touch()
		a.sweep(mid)
	case a.submit.SubmitType == enum.SubmitTypeAdpMaker:
		a.pending = a.remaining()
		a.state = enum.AlgoStateRepricing
	case a.pending.IsPositive():
		a.state = enum.AlgoStateRepricing
	default:
		a.state = enum.AlgoStateSlicing
	}
}

// protect places the take profit and stop loss of a filled adaptive maker order,
// triggered at avg * (1 ± trigger ratio) and priced at avg * (1 ± ratio).
func (a *Algo) protect() {
	s := a.submit
	if s.SubmitType != enum.SubmitTypeAdpMaker || !a.filled.IsPositive() {
		return
	}
	if s.TriggerTPRatio <= 0 && s.TriggerSLRatio <= 0 {
		return
	}

	avg := a.cost.Div(a.filled)
	sign := decimal.NewFromInt(1)
	if s.Side == enum.OrderSideSell {
		sign = sign.Neg()
	}
	at := func(ratio float64, up bool) decimal.Decimal {
		r := decimal.NewFromFloat(ratio).Mul(sign)
		if !up {
			r = r.Neg()
		}
		return PriceToPrecision(a.market, avg.Mul(decimal.NewFromInt(1).Add(r)), RoundModeRound)
	}
	amount := AmountToPrecision(a.market, a.filled, RoundModeFloor)

	if s.TriggerTPRatio > 0 {
		p := adapter.OrderParams{
			Side:         s.Side.Opposite(),
			Type:         enum.OrderTypeTakeProfitMarket,
			Amount:       amount,
			TriggerPrice: at(s.TriggerTPRatio, true),
			PositionSide: s.PositionSide,
			ReduceOnly:   true,
		}
		if s.TPRatio > 0 {
			p.Type, p.Price = enum.OrderTypeTakeProfitLimit, at(s.TPRatio, true)
		}
		a.protectWith(p)
	}
	if s.TriggerSLRatio > 0 {
		p := adapter.OrderParams{
			Side:         s.Side.Opposite(),
			Type:         enum.OrderTypeStopLossMarket,
			Amount:       amount,
			TriggerPrice: at(s.TriggerSLRatio, false),
			PositionSide: s.PositionSide,
			ReduceOnly:   true,
		}
		if s.SLRatio > 0 {
			p.Type, p.Price = enum.OrderTypeStopLossLimit, at(s.SLRatio, false)
		}
		a.protectWith(p)
	}
}

func (a *Algo) protectWith(p adapter.OrderParams) {
	child := adapter.NewOrderSubmit(a.submit.InstrumentID, p)
	child.AlgoUUID = a.submit.UUID
	if err := a.env.submit(child); err != nil {
		logs.Errorf("algo %s submit %s failed, err: %+v", a.submit.UUID, p.Type, err)
		return
	}
	a.children = append(a.children, child.UUID)
}
