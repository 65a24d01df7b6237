// Package engine assembles connectors, cache, registry, EMS and OMS from the loaded config
// and runs them in order.
package engine

import (
	"context"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/bus"
	"nexus/internal/cache"
	"nexus/internal/cache/repository"
	"nexus/internal/ems"
	"nexus/internal/exchange"
	"nexus/internal/exchange/binance"
	"nexus/internal/exchange/bybit"
	"nexus/internal/exchange/okx"
	"nexus/internal/obs"
	"nexus/internal/oms"
	"nexus/internal/ops"
	"nexus/internal/ratelimit"
	"nexus/internal/registry"
	"nexus/internal/strategy"
	"nexus/internal/task"
	"nexus/pkg/conn"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const _disposeTimeout = 10 * time.Second

// _openRepository opens the cache repository of the config and its closer, if any.
var _openRepository = newRepository

// Option overrides the engine dependencies, mostly for tests.
type Option struct {
	// Repository replaces the cache repository of the config.
	Repository cache.Repository
	// Stream returns the stream of a connector, nil keeps the websocket stream.
	Stream     func(account enum.AccountType) exchange.Stream
	Now        func() time.Time
}

type Engine struct {
	cfg ops.Loaded

	metrics  *obs.Metrics
	bus      *bus.Bus
	cache    *cache.Cache
	registry *registry.OrderRegistry
	tasks    *task.Manager
	closers  []func() error

	publics  []exchange.PublicConnector
	privates []exchange.PrivateConnector
	emss     []*ems.EMS
	omss     []*oms.OMS
	strategy *strategy.Context

	unsubscribe []func()
}

// Build checks the config and assembles every component. Nothing is connected yet.
func Build(ctx context.Context, cfg ops.Loaded, opt Option) (_ *Engine, err error) {
	if err := check(cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		metrics:  obs.NewMetrics(),
		registry: registry.New(),
		tasks:    task.NewManager(ctx),
	}
	e.bus = bus.New(e.metrics)
	defer func() {
		if err != nil {
			e.close()
		}
	}()

	repo := opt.Repository
	if repo == nil {
		r, closer, err := _openRepository(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		repo = r
		if closer != nil {
			e.closers = append(e.closers, closer)
		}
	}
	e.cache = cache.New(repo, cache.Option{
		Prefix:       cfg.Cache.Prefix,
		SyncInterval: cfg.Cache.SyncInterval,
		Expire:       cfg.Cache.Expire,
	})

	limits := make(map[string]ratelimit.Config, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		limits[ex.Exchange.String()] = ex.RateLimit
	}
	limiters := ratelimit.NewGroup(limits)

	markets := make([]*adapter.MarketTable, 0, len(cfg.Exchanges))
	executors := make([]strategy.Executor, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		env := exchange.Env{
			Bus:     e.bus,
			Cache:   e.cache,
			Markets: ex.Markets,
			Limiter: limiters.Get(ex.Exchange.String()),
			Metrics: e.metrics,
			Tasks:   e.tasks,
			Now:     opt.Now,
		}
		markets = append(markets, ex.Markets)

		for _, account := range ex.Public {
			p, err := newPublic(ctx, account, env, connectorOption(ex, account, opt))
			if err != nil {
				return nil, errors.Wrapf(err, "build public connector %s", account)
			}
			e.publics = append(e.publics, p)
		}

		if len(ex.Private) == 0 {
			continue
		}
		connectors := make(map[enum.AccountType]exchange.PrivateConnector, len(ex.Private))
		for _, account := range ex.Private {
			p, err := newPrivate(account, ex.Token, env, connectorOption(ex, account, opt))
			if err != nil {
				return nil, errors.Wrapf(err, "build private connector %s", account)
			}
			connectors[account] = p
			e.privates = append(e.privates, p)
		}

		executor, err := ems.New(ems.Config{
			Exchange:   ex.Exchange,
			Markets:    ex.Markets,
			Connectors: connectors,
			Router:     newRouter(ex.Exchange, ex.Private),
			Bus:        e.bus,
			Cache:      e.cache,
			Registry:   e.registry,
			Tasks:      e.tasks,
			Metrics:    e.metrics,
			Now:        opt.Now,
		})
		if err != nil {
			return nil, err
		}
		e.emss = append(e.emss, executor)
		executors = append(executors, executor)

		manager, err := oms.New(oms.Config{
			Exchange: ex.Exchange,
			Bus:      e.bus,
			Cache:    e.cache,
			Registry: e.registry,
			Metrics:  e.metrics,
		})
		if err != nil {
			return nil, err
		}
		e.omss = append(e.omss, manager)
	}

	e.strategy = strategy.NewContext(strategy.Config{
		Bus:           e.bus,
		Cache:         e.cache,
		Markets:       markets,
		Executors:     executors,
		Publics:       e.publics,
		CheckInterval: cfg.Algo.CheckInterval,
	})

	logs.Infof("engine built with %d public and %d private connectors", len(e.publics), len(e.privates))
	return e, nil
}

func connectorOption(ex ops.Exchange, account enum.AccountType, opt Option) exchange.Option {
	o := ex.Options[account]
	if opt.Stream != nil {
		o.Stream = opt.Stream(account)
	}
	return o
}

func newPublic(ctx context.Context, account enum.AccountType, env exchange.Env, opt exchange.Option) (exchange.PublicConnector, error) {
	switch account.Exchange() {
	case enum.ExchangeBinance:
		return binance.NewPublic(ctx, account, env, opt)
	case enum.ExchangeBybit:
		return bybit.NewPublic(ctx, account, env, opt)
	case enum.ExchangeOKX:
		return okx.NewPublic(ctx, account, env, opt)
	default:
		return nil, errors.Wrapf(exception.ErrEngineBuild, "unknown account type %d", account)
	}
}

func newPrivate(account enum.AccountType, token adapter.Token, env exchange.Env, opt exchange.Option) (exchange.PrivateConnector, error) {
	switch account.Exchange() {
	case enum.ExchangeBinance:
		return binance.NewPrivate(account, token, env, opt)
	case enum.ExchangeBybit:
		return bybit.NewPrivate(account, token, env, opt)
	case enum.ExchangeOKX:
		return okx.NewPrivate(account, token, env, opt)
	default:
		return nil, errors.Wrapf(exception.ErrEngineBuild, "unknown account type %d", account)
	}
}

func newRouter(ex enum.Exchange, accounts []enum.AccountType) ems.Router {
	switch ex {
	case enum.ExchangeBinance:
		return binance.NewRouter(accounts...)
	case enum.ExchangeBybit:
		return bybit.NewRouter(accounts...)
	default:
		return okx.NewRouter(accounts...)
	}
}

func newRepository(ctx context.Context, cfg ops.CacheConfig) (cache.Repository, func() error, error) {
	switch cfg.Repository {
	case ops.RepositoryFile:
		r, err := repository.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	case ops.RepositoryRedis:
		client, err := conn.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, errors.Wrap(exception.ErrEngineBuild, err.Error())
		}
		return repository.NewRedis(client, cfg.Expire), nil, nil
	case ops.RepositoryPostgres:
		client, err := conn.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, nil, errors.Wrap(exception.ErrEngineBuild, err.Error())
		}
		r, err := repository.NewPostgres(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return r, client.Close, nil
	default:
		return nil, nil, nil
	}
}

func (e *Engine) Metrics() *obs.Metrics {
	return e.metrics
}

func (e *Engine) Cache() cache.Reader {
	return e.cache
}

func (e *Engine) Strategy() *strategy.Context {
	return e.strategy
}

func (e *Engine) Tasks() *task.Manager {
	return e.tasks
}

// Start restores the cache, starts the OMS and EMS, connects the private then the public
// connectors, binds the strategy and sends the configured subscriptions.
func (e *Engine) Start(ctx context.Context, strat any) error {
	if err := e.cache.Restore(ctx); err != nil {
		return errors.Wrap(err, "restore cache")
	}
	e.tasks.Go("cache.sync", e.cache.Run)
	e.unsubscribe = append(e.unsubscribe, e.bus.Subscribe(adapter.TopicBookL1, func(msg any) {
		if b, ok := msg.(adapter.BookL1); ok {
			e.cache.ApplyBookL1(b)
		}
	}))

	for _, m := range e.omss {
		m.Start()
	}
	for _, x := range e.emss {
		x.Start()
	}

	for _, p := range e.privates {
		if err := p.Connect(ctx); err != nil {
			return errors.Wrapf(err, "connect %s", p.AccountType())
		}
	}
	for _, p := range e.publics {
		if err := p.Connect(ctx); err != nil {
			return errors.Wrapf(err, "connect %s", p.AccountType())
		}
	}

	if strat != nil {
		if err := e.strategy.Bind(strat); err != nil {
			return err
		}
	}

	for _, s := range e.cfg.Subscriptions {
		if err := e.subscribe(ctx, s); err != nil {
			return err
		}
	}

	logs.Info("engine started")
	return nil
}

func (e *Engine) subscribe(ctx context.Context, s ops.Subscription) error {
	if s.Trade {
		if err := e.strategy.SubscribeTrade(ctx, s.Instrument); err != nil {
			return errors.Wrapf(err, "subscribe trade %s", s.Instrument)
		}
	}
	if s.BookL1 {
		if err := e.strategy.SubscribeBookL1(ctx, s.Instrument); err != nil {
			return errors.Wrapf(err, "subscribe bookl1 %s", s.Instrument)
		}
	}
	for _, interval := range s.Klines {
		if err := e.strategy.SubscribeKline(ctx, s.Instrument, interval); err != nil {
			return errors.Wrapf(err, "subscribe kline %s %s", s.Instrument, interval)
		}
	}
	if s.MarkPrice {
		if err := e.strategy.SubscribeMarkPrice(ctx, s.Instrument); err != nil {
			return errors.Wrapf(err, "subscribe mark price %s", s.Instrument)
		}
	}
	return nil
}

// Run starts the engine and blocks until ctx is done, then disposes it.
func (e *Engine) Run(ctx context.Context, strat any) error {
	if err := e.Start(ctx, strat); err != nil {
		e.Dispose()
		return err
	}
	<-ctx.Done()
	e.Dispose()
	return nil
}

// Dispose stops the tasks, disconnects every connector and writes a final cache snapshot.
func (e *Engine) Dispose() {
	ctx, cancel := context.WithTimeout(context.Background(), _disposeTimeout)
	defer cancel()

	e.strategy.Close()
	for _, fn := range e.unsubscribe {
		fn()
	}
	for _, x := range e.emss {
		x.Close()
	}
	for _, m := range e.omss {
		m.Stop()
	}

	e.tasks.Cancel()
	for _, p := range e.publics {
		if err := p.Disconnect(ctx); err != nil {
			logs.Warnf("disconnect %s, err: %+v", p.AccountType(), err)
		}
	}
	for _, p := range e.privates {
		if err := p.Disconnect(ctx); err != nil {
			logs.Warnf("disconnect %s, err: %+v", p.AccountType(), err)
		}
	}
	if err := e.tasks.Wait(ctx); err != nil {
		logs.Warnf("wait tasks, err: %+v", err)
	}

	if err := e.cache.Sync(ctx); err != nil {
		logs.Errorf("final cache sync, err: %+v", err)
	}
	e.close()
	logs.Info("engine disposed")
}

func (e *Engine) close() {
	for _, closer := range e.closers {
		if err := closer(); err != nil {
			logs.Warnf("close repository, err: %+v", err)
		}
	}
	e.closers = nil
}
