// Package strategy is the surface a trading strategy is written against:
// order and algo commands, market metadata, subscriptions and callbacks.
package strategy

import (
	"context"
	"sync"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/bus"
	"nexus/internal/cache"
	"nexus/internal/ems"
	"nexus/internal/exchange"
	"nexus/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

type Bus interface {
	Subscribe(topic string, handler bus.Handler) func()
	Register(endpoint string, handler bus.Handler)
}

// Executor executes the commands of one exchange, see ems.EMS.
type Executor interface {
	Exchange() enum.Exchange
	Submit(s adapter.OrderSubmit, account ...enum.AccountType) error
	AmountToPrecision(symbol string, amount decimal.Decimal, mode ems.RoundMode) (decimal.Decimal, error)
	PriceToPrecision(symbol string, price decimal.Decimal, mode ems.RoundMode) (decimal.Decimal, error)
}

type Config struct {
	Bus       Bus
	Cache     cache.Reader
	Markets   []*adapter.MarketTable
	Executors []Executor
	Publics   []exchange.PublicConnector

	// CheckInterval applies to the algo orders created without one.
	CheckInterval time.Duration
}

type Context struct {
	bus       Bus
	cache     cache.Reader
	markets   map[enum.Exchange]*adapter.MarketTable
	executors map[enum.Exchange]Executor
	publics   []exchange.PublicConnector
	interval  time.Duration

	mu          sync.Mutex
	unsubscribe []func()
}

func NewContext(cfg Config) *Context {
	c := &Context{
		bus:       cfg.Bus,
		cache:     cfg.Cache,
		markets:   make(map[enum.Exchange]*adapter.MarketTable, len(cfg.Markets)),
		executors: make(map[enum.Exchange]Executor, len(cfg.Executors)),
		publics:   cfg.Publics,
		interval:  cfg.CheckInterval,
	}
	for _, m := range cfg.Markets {
		c.markets[m.Exchange()] = m
	}
	for _, e := range cfg.Executors {
		c.executors[e.Exchange()] = e
	}
	return c
}

// Cache returns the read only view of books, balances, positions and orders.
func (c *Context) Cache() cache.Reader {
	return c.cache
}

func (c *Context) Market(id adapter.InstrumentID) (adapter.Market, bool) {
	table, ok := c.markets[id.Exchange]
	if !ok {
		return adapter.Market{}, false
	}
	return table.Market(id.Symbol)
}

func (c *Context) executor(id adapter.InstrumentID) (Executor, error) {
	e, ok := c.executors[id.Exchange]
	if !ok {
		return nil, errors.Wrapf(exception.ErrOrderNoAccount, "no private connector on %s", id.Exchange)
	}
	return e, nil
}

func (c *Context) submit(s adapter.OrderSubmit, account ...enum.AccountType) (string, error) {
	e, err := c.executor(s.InstrumentID)
	if err != nil {
		return "", err
	}
	if err := e.Submit(s, account...); err != nil {
		return "", err
	}
	return s.UUID, nil
}

// CreateOrder submits an order and returns its uuid.
// Stop loss and take profit order types are submitted as STOP_LOSS and TAKE_PROFIT.
func (c *Context) CreateOrder(id adapter.InstrumentID, p adapter.OrderParams, account ...enum.AccountType) (string, error) {
	return c.submit(adapter.NewOrderSubmit(id, p), account...)
}

func (c *Context) CancelOrder(id adapter.InstrumentID, uuid string, account ...enum.AccountType) error {
	_, err := c.submit(adapter.NewCancelSubmit(id, uuid), account...)
	return err
}

// CreateTWAP submits a TWAP order and returns its algo uuid.
func (c *Context) CreateTWAP(id adapter.InstrumentID, p adapter.AlgoParams, account ...enum.AccountType) (string, error) {
	c.checkInterval(&p)
	s, err := adapter.NewTwapSubmit(id, p)
	if err != nil {
		return "", err
	}
	return c.submit(s, account...)
}

func (c *Context) CancelTWAP(id adapter.InstrumentID, uuid string, account ...enum.AccountType) error {
	_, err := c.submit(adapter.NewCancelAlgoSubmit(id, uuid, enum.SubmitTypeTwap), account...)
	return err
}

// CreateAdpMaker submits an adaptive maker order and returns its algo uuid.
func (c *Context) CreateAdpMaker(id adapter.InstrumentID, p adapter.AlgoParams, account ...enum.AccountType) (string, error) {
	c.checkInterval(&p)
	s, err := adapter.NewAdpMakerSubmit(id, p)
	if err != nil {
		return "", err
	}
	return c.submit(s, account...)
}

func (c *Context) checkInterval(p *adapter.AlgoParams) {
	if p.CheckInterval <= 0 {
		p.CheckInterval = c.interval
	}
}

func (c *Context) CancelAdpMaker(id adapter.InstrumentID, uuid string, account ...enum.AccountType) error {
	_, err := c.submit(adapter.NewCancelAlgoSubmit(id, uuid, enum.SubmitTypeAdpMaker), account...)
	return err
}

func (c *Context) AmountToPrecision(id adapter.InstrumentID, amount decimal.Decimal, mode ems.RoundMode) (decimal.Decimal, error) {
	e, err := c.executor(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.AmountToPrecision(id.Symbol, amount, mode)
}

func (c *Context) PriceToPrecision(id adapter.InstrumentID, price decimal.Decimal, mode ems.RoundMode) (decimal.Decimal, error) {
	e, err := c.executor(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.PriceToPrecision(id.Symbol, price, mode)
}

// public returns the public connector streaming the market kind of id.
func (c *Context) public(id adapter.InstrumentID) (exchange.PublicConnector, error) {
	if _, ok := c.Market(id); !ok {
		return nil, errors.Wrap(exception.ErrUnsupportedSymbol, id.String())
	}
	for _, p := range c.publics {
		if p.Exchange() == id.Exchange && streams(p.AccountType(), id) {
			return p, nil
		}
	}
	return nil, errors.Wrapf(exception.ErrInvalidArgument, "no public connector for %s", id)
}

func streams(account enum.AccountType, id adapter.InstrumentID) bool {
	switch {
	case account.Exchange() == enum.ExchangeOKX:
		return true
	case account.IsSpot():
		return id.IsSpot()
	case account.IsLinear():
		return id.IsLinear()
	case account.IsInverse():
		return id.IsInverse()
	default:
		return false
	}
}

func (c *Context) SubscribeTrade(ctx context.Context, id adapter.InstrumentID) error {
	p, err := c.public(id)
	if err != nil {
		return err
	}
	return p.SubscribeTrade(ctx, id.Symbol)
}

func (c *Context) SubscribeBookL1(ctx context.Context, id adapter.InstrumentID) error {
	p, err := c.public(id)
	if err != nil {
		return err
	}
	return p.SubscribeBookL1(ctx, id.Symbol)
}

func (c *Context) SubscribeKline(ctx context.Context, id adapter.InstrumentID, interval enum.KlineInterval) error {
	p, err := c.public(id)
	if err != nil {
		return err
	}
	return p.SubscribeKline(ctx, id.Symbol, interval)
}

// SubscribeMarkPrice streams the mark price, funding rate and index price of a contract.
func (c *Context) SubscribeMarkPrice(ctx context.Context, id adapter.InstrumentID) error {
	p, err := c.public(id)
	if err != nil {
		return err
	}
	return p.SubscribeMarkPrice(ctx, id.Symbol)
}

// Bind calls Init of the strategy when present, then binds every callback it implements
// to its topic or endpoint. Order callbacks replace the handlers of a previously bound strategy.
func (c *Context) Bind(strategy any) error {
	if s, ok := strategy.(Initializer); ok {
		if err := s.Init(c); err != nil {
			return errors.Wrap(err, "init strategy")
		}
	}

	if s, ok := strategy.(TradeHandler); ok {
		subscribe(c, adapter.TopicTrade, s.OnTrade)
	}
	if s, ok := strategy.(BookL1Handler); ok {
		subscribe(c, adapter.TopicBookL1, s.OnBookL1)
	}
	if s, ok := strategy.(KlineHandler); ok {
		subscribe(c, adapter.TopicKline, s.OnKline)
	}
	if s, ok := strategy.(MarkPriceHandler); ok {
		subscribe(c, adapter.TopicMarkPrice, s.OnMarkPrice)
	}
	if s, ok := strategy.(FundingRateHandler); ok {
		subscribe(c, adapter.TopicFundingRate, s.OnFundingRate)
	}
	if s, ok := strategy.(IndexPriceHandler); ok {
		subscribe(c, adapter.TopicIndexPrice, s.OnIndexPrice)
	}
	if s, ok := strategy.(AlgoOrderHandler); ok {
		for ex := range c.executors {
			subscribe(c, ex.AlgoTopic(), s.OnAlgoOrder)
		}
	}

	if s, ok := strategy.(PendingOrderHandler); ok {
		register(c, enum.OrderStatusPending.Endpoint(), s.OnPendingOrder)
	}
	if s, ok := strategy.(AcceptedOrderHandler); ok {
		register(c, enum.OrderStatusAccepted.Endpoint(), s.OnAcceptedOrder)
	}
	if s, ok := strategy.(PartiallyFilledOrderHandler); ok {
		register(c, enum.OrderStatusPartiallyFilled.Endpoint(), s.OnPartiallyFilledOrder)
	}
	if s, ok := strategy.(FilledOrderHandler); ok {
		register(c, enum.OrderStatusFilled.Endpoint(), s.OnFilledOrder)
	}
	if s, ok := strategy.(CancelingOrderHandler); ok {
		register(c, enum.OrderStatusCanceling.Endpoint(), s.OnCancelingOrder)
	}
	if s, ok := strategy.(CanceledOrderHandler); ok {
		register(c, enum.OrderStatusCanceled.Endpoint(), s.OnCanceledOrder)
	}
	if s, ok := strategy.(FailedOrderHandler); ok {
		register(c, enum.OrderStatusFailed.Endpoint(), s.OnFailedOrder)
	}
	if s, ok := strategy.(CancelFailedOrderHandler); ok {
		register(c, enum.OrderStatusCancelFailed.Endpoint(), s.OnCancelFailedOrder)
	}
	if s, ok := strategy.(BalanceHandler); ok {
		register(c, exchange.EndpointBalance, s.OnBalance)
	}
	return nil
}

// Close removes the topic subscriptions made by Bind.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, fn := range c.unsubscribe {
		fn()
	}
	c.unsubscribe = nil
}

func subscribe[T any](c *Context, topic string, fn func(T)) {
	cancel := c.bus.Subscribe(topic, func(msg any) {
		if v, ok := msg.(T); ok {
			fn(v)
		}
	})
	c.mu.Lock()
	c.unsubscribe = append(c.unsubscribe, cancel)
	c.mu.Unlock()
}

func register[T any](c *Context, endpoint string, fn func(T)) {
	c.bus.Register(endpoint, func(msg any) {
		if v, ok := msg.(T); ok {
			fn(v)
		}
	})
}
