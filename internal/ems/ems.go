// Package ems executes order commands of one exchange.
//
// Every private account owns a FIFO queue drained by a single goroutine, so the
// commands of an account reach the connector in submission order. TWAP and
// adaptive maker commands become algos that feed child commands back onto the
// queue of their account.
package ems

import (
	"context"
	"sync"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/bus"
	"nexus/internal/cache"
	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/internal/registry"
	"nexus/internal/task"
	"nexus/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Router resolves the account an instrument is traded on.
type Router interface {
	Route(id adapter.InstrumentID) (enum.AccountType, error)
}

type Config struct {
	Exchange   enum.Exchange
	Markets    *adapter.MarketTable
	Connectors map[enum.AccountType]exchange.PrivateConnector
	Router     Router
	Bus        exchange.Publisher
	Cache      cache.Reader
	Registry   *registry.OrderRegistry
	Tasks      *task.Manager
	Metrics    *obs.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

type EMS struct {
	exchange   enum.Exchange
	markets    *adapter.MarketTable
	connectors map[enum.AccountType]exchange.PrivateConnector
	router     Router
	bus        exchange.Publisher
	cache      cache.Reader
	registry   *registry.OrderRegistry
	tasks      *task.Manager
	metrics    *obs.Metrics
	now        func() time.Time

	queues map[enum.AccountType]*bus.Queue[adapter.OrderSubmit]

	algoMu sync.Mutex
	algos  map[string]*Algo
}

func New(cfg Config) (*EMS, error) {
	if !cfg.Exchange.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "ems: unknown exchange %d", cfg.Exchange)
	}
	if cfg.Markets == nil || cfg.Router == nil || cfg.Bus == nil || cfg.Cache == nil || cfg.Registry == nil {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "ems %s: missing markets, router, bus, cache or registry", cfg.Exchange)
	}
	if len(cfg.Connectors) == 0 {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "ems %s: no private connector", cfg.Exchange)
	}

	queues := make(map[enum.AccountType]*bus.Queue[adapter.OrderSubmit], len(cfg.Connectors))
	for account, conn := range cfg.Connectors {
		if conn == nil || account.Exchange() != cfg.Exchange {
			return nil, errors.Wrapf(exception.ErrEngineBuild, "ems %s: invalid private connector %s", cfg.Exchange, account)
		}
		queues[account] = bus.NewQueue[adapter.OrderSubmit]()
	}

	tasks := cfg.Tasks
	if tasks == nil {
		tasks = task.NewManager(context.Background())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &EMS{
		exchange:   cfg.Exchange,
		markets:    cfg.Markets,
		connectors: cfg.Connectors,
		router:     cfg.Router,
		bus:        cfg.Bus,
		cache:      cfg.Cache,
		registry:   cfg.Registry,
		tasks:      tasks,
		metrics:    cfg.Metrics,
		now:        now,
		queues:     queues,
		algos:      make(map[string]*Algo),
	}, nil
}

func (e *EMS) Exchange() enum.Exchange {
	return e.exchange
}

// Start runs one consumer per account queue on the task manager.
func (e *EMS) Start() {
	for account, q := range e.queues {
		e.tasks.Go(e.exchange.String()+".ems."+account.String(), func(ctx context.Context) error {
			q.Run(ctx, func(ctx context.Context, s adapter.OrderSubmit) {
				e.dispatch(ctx, account, s)
			})
			return ctx.Err()
		})
	}
	logs.Infof("%s ems started with %d accounts", e.exchange, len(e.queues))
}

// Close stops the queues from accepting commands, queued commands are still dispatched.
func (e *EMS) Close() {
	for _, q := range e.queues {
		q.Close()
	}

	e.algoMu.Lock()
	defer e.algoMu.Unlock()
	for _, a := range e.algos {
		a.Cancel()
	}
}

// Submit queues a command. The account is routed from the instrument unless given explicitly.
func (e *EMS) Submit(s adapter.OrderSubmit, account ...enum.AccountType) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.InstrumentID.Exchange != e.exchange {
		return errors.Wrapf(exception.ErrInvalidArgument, "%s ems got %s", e.exchange, s.InstrumentID)
	}
	if _, ok := e.markets.Market(s.InstrumentID.Symbol); !ok {
		return errors.Wrap(exception.ErrUnsupportedSymbol, s.InstrumentID.Symbol)
	}

	var target enum.AccountType
	if len(account) != 0 {
		target = account[0]
	} else {
		routed, err := e.router.Route(s.InstrumentID)
		if err != nil {
			return err
		}
		target = routed
	}

	if err := e.put(target, s); err != nil {
		return errors.Wrapf(err, "submit %s %s", s.SubmitType, s.UUID)
	}
	return nil
}

func (e *EMS) put(account enum.AccountType, s adapter.OrderSubmit) error {
	q, ok := e.queues[account]
	if !ok {
		return errors.Wrapf(exception.ErrOrderNoAccount, "no private connector for %s", account)
	}
	if err := q.Put(s); err != nil {
		e.metrics.IncQueueClosed()
		return err
	}
	return nil
}

// AmountToPrecision brings amount to the amount precision of the symbol.
func (e *EMS) AmountToPrecision(symbol string, amount decimal.Decimal, mode RoundMode) (decimal.Decimal, error) {
	m, ok := e.markets.Market(symbol)
	if !ok {
		return decimal.Zero, errors.Wrap(exception.ErrUnsupportedSymbol, symbol)
	}
	return AmountToPrecision(m, amount, mode), nil
}

// PriceToPrecision brings price to the price precision of the symbol.
func (e *EMS) PriceToPrecision(symbol string, price decimal.Decimal, mode RoundMode) (decimal.Decimal, error) {
	m, ok := e.markets.Market(symbol)
	if !ok {
		return decimal.Zero, errors.Wrap(exception.ErrUnsupportedSymbol, symbol)
	}
	return PriceToPrecision(m, price, mode), nil
}

// Algo returns the running algo of uuid.
func (e *EMS) Algo(uuid string) (*Algo, bool) {
	e.algoMu.Lock()
	defer e.algoMu.Unlock()
	a, ok := e.algos[uuid]
	return a, ok
}

func (e *EMS) dispatch(ctx context.Context, account enum.AccountType, s adapter.OrderSubmit) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveDispatch(time.Since(start))
	}()

	switch s.SubmitType {
	case enum.SubmitTypeCreate, enum.SubmitTypeStopLoss, enum.SubmitTypeTakeProfit:
		e.warnDegraded(account, s)
		e.create(ctx, account, s)
	case enum.SubmitTypeCancel:
		e.warnDegraded(account, s)
		e.cancel(ctx, account, s)
	case enum.SubmitTypeTwap, enum.SubmitTypeAdpMaker:
		e.startAlgo(account, s)
	case enum.SubmitTypeCancelTwap, enum.SubmitTypeCancelAdpMaker:
		e.cancelAlgo(s)
	default:
		logs.Errorf("%s ems dropped unknown submit type %d, uuid: %s", e.exchange, s.SubmitType, s.UUID)
	}
}

// warnDegraded counts and logs a command sent through an account whose user stream is lost.
func (e *EMS) warnDegraded(account enum.AccountType, s adapter.OrderSubmit) {
	conn := e.connectors[account]
	if !conn.Degraded() {
		return
	}
	e.metrics.IncDegradedDispatch()
	logs.Warnf("%s is degraded, %s %s dispatched anyway, err: %+v", account, s.SubmitType, s.UUID, conn.Err())
}

func (e *EMS) create(ctx context.Context, account enum.AccountType, s adapter.OrderSubmit) {
	conn := e.connectors[account]
	symbol := s.InstrumentID.Symbol
	if m, ok := e.markets.Market(symbol); ok {
		s.Amount = AmountToPrecision(m, s.Amount, RoundModeRound)
		if !s.Price.IsZero() {
			s.Price = PriceToPrecision(m, s.Price, RoundModeRound)
		}
		if !s.TriggerPrice.IsZero() {
			s.TriggerPrice = PriceToPrecision(m, s.TriggerPrice, RoundModeRound)
		}
	}

	// reserve the uuid so a stream update racing the rest response is still resolved
	e.registry.Register(s.UUID, "", symbol)

	req := s.OrderRequest()
	var (
		o   adapter.Order
		err error
	)
	switch s.SubmitType {
	case enum.SubmitTypeStopLoss:
		o, err = conn.CreateStopLossOrder(ctx, req)
	case enum.SubmitTypeTakeProfit:
		o, err = conn.CreateTakeProfitOrder(ctx, req)
	default:
		o, err = conn.CreateOrder(ctx, req)
	}
	if err != nil {
		logs.Errorf("%s create order %s failed, err: %+v", account, s.UUID, err)
	}

	if len(o.UUID) == 0 {
		o.UUID = s.UUID
	}
	// the stream may have finished the order already and removed its entry
	if len(o.ID) != 0 {
		e.registry.Bind(s.UUID, o.ID)
	}
	e.metrics.IncSubmission(err != nil)
	e.bus.Publish(e.exchange.OrderTopic(), o)
}

func (e *EMS) cancel(ctx context.Context, account enum.AccountType, s adapter.OrderSubmit) {
	symbol := s.InstrumentID.Symbol
	if registered, ok := e.registry.Symbol(s.UUID); ok && len(registered) != 0 {
		symbol = registered
	}

	id, ok := e.registry.OrderID(s.UUID)
	if !ok {
		logs.Warnf("%s cancel %s, err: %+v", account, s.UUID, exception.ErrOrderUnknownUUID)
		o := e.cached(s.UUID, symbol)
		o.Status = enum.OrderStatusCancelFailed
		o.Timestamp = e.now().UnixMilli()
		e.bus.Publish(e.exchange.OrderTopic(), o)
		return
	}

	o, err := e.connectors[account].CancelOrder(ctx, symbol, id)
	e.metrics.IncSubmission(err != nil)
	if err != nil {
		logs.Errorf("%s cancel order %s failed, err: %+v", account, s.UUID, err)
		// the order itself is still live as far as the engine knows
		failed := e.cached(s.UUID, symbol)
		failed.Status = enum.OrderStatusCancelFailed
		failed.Timestamp = e.now().UnixMilli()
		e.bus.Publish(e.exchange.OrderTopic(), failed)
		return
	}

	// the cancel response is sparse, keep what is known of the order
	merged := e.cached(s.UUID, symbol)
	merged.Status = o.Status
	if len(o.ID) != 0 {
		merged.ID = o.ID
	}
	if o.Timestamp != 0 {
		merged.Timestamp = o.Timestamp
	}
	e.bus.Publish(e.exchange.OrderTopic(), merged)
}

func (e *EMS) cached(uuid, symbol string) adapter.Order {
	if o, ok := e.cache.Order(uuid); ok {
		return o
	}
	return adapter.Order{
		Exchange:      e.exchange,
		Symbol:        symbol,
		ClientOrderID: uuid,
		UUID:          uuid,
	}
}

func (e *EMS) startAlgo(account enum.AccountType, s adapter.OrderSubmit) {
	market, ok := e.markets.Market(s.InstrumentID.Symbol)
	if !ok {
		logs.Errorf("%s algo %s, err: %+v", account, s.UUID, errors.Wrap(exception.ErrUnsupportedSymbol, s.InstrumentID.Symbol))
		return
	}

	a, err := newAlgo(s, market, e.now(), algoEnv{
		cache: e.cache,
		submit: func(child adapter.OrderSubmit) error {
			return e.put(account, child)
		},
		publish: e.publishAlgo,
	})
	if err != nil {
		logs.Errorf("%s create algo %s failed, err: %+v", account, s.UUID, err)
		return
	}

	e.publishAlgo(a.Snapshot(e.now()))
	e.algoMu.Lock()
	e.algos[s.UUID] = a
	e.algoMu.Unlock()

	e.tasks.Go(e.exchange.String()+".algo."+s.UUID, func(ctx context.Context) error {
		defer func() {
			e.algoMu.Lock()
			delete(e.algos, s.UUID)
			e.algoMu.Unlock()
		}()

		ticker := time.NewTicker(a.CheckInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if a.Tick(e.now()) {
					logs.Infof("%s algo %s done", account, s.UUID)
					return nil
				}
			}
		}
	})
}

func (e *EMS) cancelAlgo(s adapter.OrderSubmit) {
	a, ok := e.Algo(s.UUID)
	if !ok {
		logs.Warnf("%s cancel algo %s, err: %+v", e.exchange, s.UUID, exception.ErrOrderUnknownAlgo)
		return
	}
	a.Cancel()
}

func (e *EMS) publishAlgo(a adapter.AlgoOrder) {
	e.bus.Publish(e.exchange.AlgoTopic(), a)
}
