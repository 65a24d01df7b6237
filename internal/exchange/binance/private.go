package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/ratelimit"
	"nexus/internal/task"
	"nexus/pkg/backoff"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// KeepAlive controls the listen key refresh loop.
type KeepAlive struct {
	Interval time.Duration
	// Retry is the number of consecutive failures after which the session is degraded.
	Retry int
	// Pause is the wait between a failure and the next attempt.
	Pause time.Duration
}

func DefaultKeepAlive() KeepAlive {
	return KeepAlive{
		Interval: _keepAliveInterval,
		Retry:    _keepAliveRetry,
		Pause:    _keepAlivePause,
	}
}

// Private trades one binance account and reconciles its user data stream.
type Private struct {
	account   enum.AccountType
	env       exchange.Env
	opt       exchange.Option
	rest      *restClient
	endpoints endpoints
	keepAlive KeepAlive

	stream      exchange.Stream
	unsubscribe func()
	keepAliveTk *task.Handle

	wallet *exchange.Wallet

	mu        sync.Mutex
	listenKey string
	err       error
	degraded  atomic.Bool
}

var _ exchange.PrivateConnector = (*Private)(nil)

func NewPrivate(account enum.AccountType, token adapter.Token, env exchange.Env, opt exchange.Option) (*Private, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if token.IsEmpty() {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "%s has no api key", account)
	}
	if env.Limiter == nil {
		env.Limiter = ratelimit.Unlimited(account.String())
	}

	baseURL := opt.RestURL
	if len(baseURL) == 0 {
		baseURL = _restURLs[account]
	}

	return &Private{
		account:   account,
		env:       env,
		opt:       opt,
		rest:      newRestClient(baseURL, opt.HTTPClient, token, env),
		endpoints: _endpoints[account],
		keepAlive: DefaultKeepAlive(),
		wallet:    exchange.NewWallet(account),
	}, nil
}

// WithKeepAlive replaces the listen key refresh settings, it must be called before Connect.
func (p *Private) WithKeepAlive(k KeepAlive) *Private {
	p.keepAlive = k
	return p
}

func (p *Private) Exchange() enum.Exchange {
	return enum.ExchangeBinance
}

func (p *Private) AccountType() enum.AccountType {
	return p.account
}

func (p *Private) Degraded() bool {
	return p.degraded.Load()
}

func (p *Private) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Private) degrade(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	p.degraded.Store(true)
	logs.Errorf("%s user stream degraded, err: %+v", p.account, err)
}

// Connect loads the wallet, opens the user data stream and starts the listen key keep-alive.
func (p *Private) Connect(ctx context.Context) error {
	if err := p.initBalance(ctx); err != nil {
		return errors.Wrapf(err, "init %s balance", p.account)
	}

	key, err := p.createListenKey(ctx)
	if err != nil {
		return errors.Wrapf(err, "create %s listen key", p.account)
	}

	p.stream = p.opt.Stream
	if p.stream == nil {
		streamURL := p.opt.StreamURL
		if len(streamURL) == 0 {
			streamURL = _streamURLs[p.account]
		}
		p.stream = exchange.NewWSStream(ctx, streamURL+"/"+key)
	}

	if err := p.stream.Start(ctx); err != nil {
		return errors.Wrapf(err, "start %s user stream", p.account)
	}
	p.unsubscribe = p.stream.Observe(ctx, p.handle)

	tasks := p.env.Tasks
	if tasks == nil {
		tasks = task.NewManager(ctx)
	}
	p.keepAliveTk = tasks.Go(p.account.String()+".keepalive", p.keepAliveLoop)

	logs.Infof("%s user stream connected", p.account)
	return nil
}

func (p *Private) Disconnect(ctx context.Context) error {
	if p.keepAliveTk != nil {
		p.keepAliveTk.Cancel()
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	if p.stream != nil {
		p.stream.Close()
	}

	if err := p.listenKeyRequest(ctx, http.MethodDelete); err != nil {
		logs.Warnf("close %s listen key, err: %+v", p.account, err)
	}
	return nil
}

func (p *Private) createListenKey(ctx context.Context) (string, error) {
	var resp listenKeyResponse
	if err := p.rest.keyed(ctx, http.MethodPost, p.endpoints.listenKey, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.ListenKey) == 0 {
		return "", exception.ErrListenKeyEmpty
	}

	p.mu.Lock()
	p.listenKey = resp.ListenKey
	p.mu.Unlock()
	return resp.ListenKey, nil
}

// listenKeyRequest refreshes or closes the listen key. Only the spot family addresses it by parameter.
func (p *Private) listenKeyRequest(ctx context.Context, method string) error {
	p.mu.Lock()
	key := p.listenKey
	p.mu.Unlock()
	if len(key) == 0 {
		return exception.ErrListenKeyEmpty
	}

	params := url.Values{}
	if p.account.IsSpot() || p.account.IsMargin() {
		params.Set("listenKey", key)
	}
	return p.rest.keyed(ctx, method, p.endpoints.listenKey, params, nil)
}

func (p *Private) keepAliveLoop(ctx context.Context) error {
	failures := 0
	wait := p.keepAlive.Interval
	for {
		if err := backoff.Sleep(ctx, wait); err != nil {
			return nil
		}

		err := p.listenKeyRequest(ctx, http.MethodPut)
		if err == nil {
			failures = 0
			wait = p.keepAlive.Interval
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		failures++
		p.env.Metrics.IncKeepAliveFailure()
		logs.Warnf("keep alive %s listen key failed %d/%d, err: %+v", p.account, failures, p.keepAlive.Retry, err)
		if failures >= p.keepAlive.Retry {
			p.degrade(errors.Wrapf(exception.ErrSessionDegraded, "keep alive failed %d times: %s", failures, err.Error()))
			return nil
		}
		wait = p.keepAlive.Pause
	}
}

func (p *Private) initBalance(ctx context.Context) error {
	var balances []adapter.Balance
	switch {
	case p.account.IsPortfolioMargin():
		logs.Warnf("%s balance is not loaded on connect, it is filled by the user stream", p.account)
		return nil

	case p.account.IsSpot():
		var resp spotAccountResponse
		if err := p.rest.signed(ctx, http.MethodGet, p.endpoints.account, nil, &resp); err != nil {
			return err
		}
		for _, b := range resp.Balances {
			balances = append(balances, assetToBalance(b))
		}

	case p.account.IsIsolatedMargin():
		var resp isolatedAccountResponse
		if err := p.rest.signed(ctx, http.MethodGet, p.endpoints.account, nil, &resp); err != nil {
			return err
		}
		for _, a := range resp.Assets {
			balances = append(balances, assetToBalance(a.BaseAsset), assetToBalance(a.QuoteAsset))
		}

	case p.account.IsMargin():
		var resp marginAccountResponse
		if err := p.rest.signed(ctx, http.MethodGet, p.endpoints.account, nil, &resp); err != nil {
			return err
		}
		for _, b := range resp.UserAssets {
			balances = append(balances, assetToBalance(b))
		}

	default:
		var resp futureAccountResponse
		if err := p.rest.signed(ctx, http.MethodGet, p.endpoints.account, nil, &resp); err != nil {
			return err
		}
		for _, a := range resp.Assets {
			balances = append(balances, walletBalance(a.Asset, a.WalletBalance, a.AvailableBalance))
		}

		ts := p.env.Millis()
		positions := make([]adapter.Position, 0, len(resp.Positions))
		for _, pos := range resp.Positions {
			symbol, ok := p.env.Markets.Symbol(pos.Symbol + p.account.KindSuffix())
			if !ok {
				continue
			}
			positions = append(positions, p.position(symbol, pos.PositionAmt, pos.EntryPrice, pos.UnrealizedProfit, "", pos.PositionSide, ts))
		}
		p.env.Cache.ApplyPositions(positions...)
	}

	p.wallet.Apply(p.env, p.env.Millis(), balances...)
	return nil
}

func assetToBalance(b assetBalance) adapter.Balance {
	return adapter.Balance{
		Asset:  b.Asset,
		Free:   exchange.Decimal(b.Free),
		Locked: exchange.Decimal(b.Locked),
	}
}

// walletBalance splits a futures wallet into the available part and the rest.
func walletBalance(asset, wallet, available string) adapter.Balance {
	total := exchange.Decimal(wallet)
	free := exchange.Decimal(available)
	locked := total.Sub(free)
	if locked.IsNegative() {
		locked = decimal.Zero
	}
	return adapter.Balance{Asset: asset, Free: free, Locked: locked}
}

func (p *Private) position(symbol, amount, entry, upnl, realized, side string, ts int64) adapter.Position {
	signed := exchange.Decimal(amount)
	reported, err := _positionSides.Parse(side)
	if err != nil {
		reported = enum.PositionSideFlat
	}
	return adapter.Position{
		Exchange:      enum.ExchangeBinance,
		Symbol:        symbol,
		SignedAmount:  signed,
		Side:          adapter.ResolvePositionSide(reported, signed),
		EntryPrice:    exchange.Decimal(entry),
		UnrealizedPnl: exchange.Decimal(upnl),
		RealizedPnl:   exchange.Decimal(realized),
		Timestamp:     ts,
	}
}

/*
	Orders
*/

func (p *Private) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if req.Type.IsStopLoss() || req.Type.IsTakeProfit() {
		return p.failed(req, errors.Wrapf(exception.ErrOrderUnsupportedType, "%s needs a trigger order", req.Type))
	}
	return p.place(ctx, req, false)
}

func (p *Private) CreateStopLossOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if !req.Type.IsStopLoss() {
		return p.failed(req, errors.Wrapf(exception.ErrOrderUnsupportedType, "%s is not a stop loss", req.Type))
	}
	return p.place(ctx, req, true)
}

func (p *Private) CreateTakeProfitOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if !req.Type.IsTakeProfit() {
		return p.failed(req, errors.Wrapf(exception.ErrOrderUnsupportedType, "%s is not a take profit", req.Type))
	}
	return p.place(ctx, req, true)
}

func (p *Private) failed(req adapter.OrderRequest, err error) (adapter.Order, error) {
	logs.Errorf("%s create order %s failed, err: %+v", p.account, req.ClientOrderID, err)
	return req.FailedOrder(enum.ExchangeBinance, p.env.Millis()), err
}

func (p *Private) place(ctx context.Context, req adapter.OrderRequest, trigger bool) (adapter.Order, error) {
	if err := p.env.Limiter.Acquire(ctx); err != nil {
		return p.failed(req, err)
	}

	market, ok := p.env.Markets.Market(req.Symbol)
	if !ok {
		return p.failed(req, errors.Wrap(exception.ErrUnsupportedSymbol, req.Symbol))
	}

	path, err := p.orderPath(market)
	if err != nil {
		return p.failed(req, err)
	}

	params, err := p.orderParams(market, req, trigger)
	if err != nil {
		return p.failed(req, err)
	}

	var resp orderResponse
	if err := p.rest.signed(ctx, http.MethodPost, path, params, &resp); err != nil {
		return p.failed(req, err)
	}
	if resp.OrderID == 0 {
		return p.failed(req, exception.ErrOrderEmptyResponseOrderID)
	}

	order := adapter.Order{
		Exchange:      enum.ExchangeBinance,
		Symbol:        req.Symbol,
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: req.ClientOrderID,
		UUID:          req.ClientOrderID,
		Status:        enum.OrderStatusPending,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		Amount:        req.Amount,
		Filled:        decimal.Zero,
		Remaining:     req.Amount,
		Price:         exchange.Decimal(resp.Price),
		Average:       exchange.Decimal(resp.AvgPrice),
		Timestamp:     resp.timestamp(),
		TriggerPrice:  exchange.Decimal(resp.StopPrice),
		TriggerType:   req.TriggerType,
		PositionSide:  req.PositionSide,
		ReduceOnly:    resp.ReduceOnly || req.ReduceOnly,
	}
	if len(resp.ClientOrderID) != 0 {
		order.ClientOrderID = resp.ClientOrderID
	}
	if ps, err := _positionSides.Parse(resp.PositionSide); err == nil {
		order.PositionSide = ps
	}
	return order, nil
}

// orderPath checks that the market kind is tradable on the account and returns the order endpoint.
func (p *Private) orderPath(m adapter.Market) (string, error) {
	switch {
	case p.account.IsPortfolioMargin():
		switch {
		case m.Margin:
			return _pmMarginOrder, nil
		case m.Linear:
			return _pmLinearOrder, nil
		case m.Inverse:
			return _pmInverseOrder, nil
		}
	case p.account.IsSpot():
		if m.Spot {
			return p.endpoints.order, nil
		}
	case p.account.IsMargin():
		if m.Margin {
			return p.endpoints.order, nil
		}
	case p.account.IsLinear():
		if m.Linear {
			return p.endpoints.order, nil
		}
	case p.account.IsInverse():
		if m.Inverse {
			return p.endpoints.order, nil
		}
	}
	return "", errors.Wrapf(exception.ErrUnsupportedSymbol, "%s %s is not tradable on %s", m.Kind(), m.Symbol, p.account)
}

func (p *Private) orderParams(m adapter.Market, req adapter.OrderRequest, trigger bool) (url.Values, error) {
	spot := !m.IsContract()

	side, err := _sides.To(req.Side)
	if err != nil {
		return nil, err
	}
	typ, tif, err := orderType(spot, req.Type, req.TimeInForce)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", m.ID)
	params.Set("side", side)
	params.Set("type", typ)
	params.Set("quantity", req.Amount.String())

	if req.Type.IsLimit() {
		if req.Price.IsZero() {
			return nil, errors.Wrap(exception.ErrOrderMissingPrice, req.Symbol)
		}
		params.Set("price", req.Price.String())
	}
	if len(tif) != 0 {
		params.Set("timeInForce", tif)
	}
	if len(req.ClientOrderID) != 0 {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	if trigger {
		if req.TriggerPrice.IsZero() {
			return nil, errors.Wrap(exception.ErrOrderMissingTriggerPrice, req.Symbol)
		}
		params.Set("stopPrice", req.TriggerPrice.String())
		if !spot {
			wt, err := _workingTypes.To(req.TriggerType)
			if err != nil {
				return nil, err
			}
			params.Set("workingType", wt)
		}
	}

	if !spot {
		if req.PositionSide.IsAvailable() {
			ps, err := _positionSides.To(req.PositionSide)
			if err != nil {
				return nil, err
			}
			params.Set("positionSide", ps)
		}
		if req.ReduceOnly {
			params.Set("reduceOnly", "true")
		}
	}
	if p.account.IsIsolatedMargin() {
		params.Set("isIsolated", "TRUE")
	}

	for k, v := range req.Extra {
		params.Set(k, v)
	}
	return params, nil
}

func (p *Private) CancelOrder(ctx context.Context, symbol, orderID string) (adapter.Order, error) {
	failed := func(err error) (adapter.Order, error) {
		logs.Errorf("%s cancel order %s failed, err: %+v", p.account, orderID, err)
		return adapter.Order{
			Exchange:  enum.ExchangeBinance,
			Symbol:    symbol,
			ID:        orderID,
			Status:    enum.OrderStatusFailed,
			Timestamp: p.env.Millis(),
		}, err
	}

	if err := p.env.Limiter.Acquire(ctx); err != nil {
		return failed(err)
	}

	market, ok := p.env.Markets.Market(symbol)
	if !ok {
		return failed(errors.Wrap(exception.ErrUnsupportedSymbol, symbol))
	}
	path, err := p.orderPath(market)
	if err != nil {
		return failed(err)
	}

	params := url.Values{}
	params.Set("symbol", market.ID)
	params.Set("orderId", orderID)
	if p.account.IsIsolatedMargin() {
		params.Set("isIsolated", "TRUE")
	}

	var resp orderResponse
	if err := p.rest.signed(ctx, http.MethodDelete, path, params, &resp); err != nil {
		return failed(err)
	}

	order := adapter.Order{
		Exchange:      enum.ExchangeBinance,
		Symbol:        symbol,
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		UUID:          resp.ClientOrderID,
		Status:        enum.OrderStatusCanceling,
		Amount:        exchange.Decimal(resp.OrigQty),
		Filled:        exchange.Decimal(resp.ExecutedQty),
		Price:         exchange.Decimal(resp.Price),
		Average:       exchange.Decimal(resp.AvgPrice),
		Timestamp:     resp.timestamp(),
	}
	order.Remaining = order.Amount.Sub(order.Filled)
	if side, err := _sides.Parse(resp.Side); err == nil {
		order.Side = side
	}
	if tif, err := parseTimeInForce(resp.TimeInForce); err == nil {
		order.TimeInForce = tif
	}
	if market.IsContract() {
		order.Type, _ = parseFutureType(resp.Type, resp.TimeInForce)
	} else {
		order.Type, _ = _spotTypes.Parse(resp.Type)
	}
	return order, nil
}

/*
	User stream
*/

func (p *Private) handle(frame []byte) {
	event, ok := scanner.ScanStringField(frame, _keyEvent)
	if !ok {
		return
	}

	switch string(event) {
	case "ORDER_TRADE_UPDATE":
		p.handleFutureOrder(frame)
	case "executionReport":
		p.handleExecutionReport(frame)
	case "ACCOUNT_UPDATE":
		p.handleAccountUpdate(frame)
	case "outboundAccountPosition":
		p.handleAccountPosition(frame)
	case "listenKeyExpired":
		p.degrade(errors.Wrap(exception.ErrSessionDegraded, "listen key expired"))
	}
}

// futureSuffix resolves the market kind of a futures event, portfolio margin tags it with the business unit.
func (p *Private) futureSuffix(businessUnit string) string {
	switch businessUnit {
	case "UM":
		return "_linear"
	case "CM":
		return "_inverse"
	default:
		return p.account.KindSuffix()
	}
}

func (p *Private) resolve(nativeKey string) (string, bool) {
	symbol, ok := p.env.Markets.Symbol(nativeKey)
	if !ok {
		logs.Warnf("%s drops event of unknown market %s", p.account, nativeKey)
		p.env.Metrics.IncDroppedFrame()
	}
	return symbol, ok
}

func (p *Private) publishOrder(o adapter.Order) {
	p.env.Bus.Publish(enum.ExchangeBinance.OrderTopic(), o)
}

func (p *Private) handleFutureOrder(frame []byte) {
	var f futureOrderUpdateFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s order update, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}
	o := f.Order

	symbol, ok := p.resolve(o.Symbol + p.futureSuffix(f.BusinessUnit))
	if !ok {
		return
	}
	status, err := _statuses.Parse(o.Status)
	if err != nil {
		logs.Errorf("%s order update, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}

	typ, err := parseFutureType(o.Type, o.TimeInForce)
	if err != nil {
		logs.Warnf("%s order update, err: %+v", p.account, err)
	}

	lastFilled := exchange.Decimal(o.LastFilled)
	filled := exchange.Decimal(o.Filled)
	amount := exchange.Decimal(o.Quantity)
	average := exchange.Decimal(o.AvgPrice)

	// market orders have no price, limit orders fall back to the order price before the first fill
	price := average
	if !typ.IsMarket() && price.IsZero() {
		price = exchange.Decimal(o.Price)
	}

	order := adapter.Order{
		Exchange:        enum.ExchangeBinance,
		Symbol:          symbol,
		ID:              strconv.FormatInt(o.OrderID, 10),
		ClientOrderID:   o.ClientOrderID,
		UUID:            o.ClientOrderID,
		Status:          status,
		Type:            typ,
		Amount:          amount,
		Filled:          filled,
		Remaining:       amount.Sub(filled),
		Price:           exchange.Decimal(o.Price),
		Average:         average,
		LastFilledPrice: exchange.Decimal(o.LastPrice),
		LastFilled:      lastFilled,
		Fee:             exchange.Decimal(o.Fee),
		FeeCurrency:     o.FeeAsset,
		Cost:            lastFilled.Mul(price),
		CumCost:         filled.Mul(price),
		Timestamp:       f.EventTime,
		TriggerPrice:    exchange.Decimal(o.StopPrice),
		ReduceOnly:      o.ReduceOnly,
	}
	order.Side, _ = _sides.Parse(o.Side)
	order.TimeInForce, _ = parseTimeInForce(o.TimeInForce)
	order.PositionSide, _ = _positionSides.Parse(o.PositionSide)
	order.TriggerType, _ = _workingTypes.Parse(o.WorkingType)

	p.publishOrder(order)
}

func (p *Private) handleExecutionReport(frame []byte) {
	var f executionReportFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s execution report, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}

	symbol, ok := p.resolve(adapter.NativeKey(f.Symbol, enum.InstrumentKindSpot))
	if !ok {
		return
	}
	status, err := _statuses.Parse(f.Status)
	if err != nil {
		logs.Errorf("%s execution report, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}

	filled := exchange.Decimal(f.Filled)
	amount := exchange.Decimal(f.Quantity)
	cumCost := exchange.Decimal(f.CumQuote)
	average := decimal.Zero
	if !filled.IsZero() {
		average = cumCost.Div(filled)
	}

	// a canceled order reports its original client id in C
	clientOrderID := f.ClientOrderID
	if status == enum.OrderStatusCanceled && len(f.OrigClientOrderID) != 0 {
		clientOrderID = f.OrigClientOrderID
	}

	order := adapter.Order{
		Exchange:        enum.ExchangeBinance,
		Symbol:          symbol,
		ID:              strconv.FormatInt(f.OrderID, 10),
		ClientOrderID:   clientOrderID,
		UUID:            clientOrderID,
		Status:          status,
		Amount:          amount,
		Filled:          filled,
		Remaining:       amount.Sub(filled),
		Price:           exchange.Decimal(f.Price),
		Average:         average,
		LastFilledPrice: exchange.Decimal(f.LastPrice),
		LastFilled:      exchange.Decimal(f.LastFilled),
		Fee:             exchange.Decimal(f.Fee),
		FeeCurrency:     f.FeeAsset,
		Cost:            exchange.Decimal(f.LastQuote),
		CumCost:         cumCost,
		Timestamp:       f.EventTime,
		TriggerPrice:    exchange.Decimal(f.StopPrice),
	}
	order.Side, _ = _sides.Parse(f.Side)
	order.Type, _ = _spotTypes.Parse(f.Type)
	order.TimeInForce, _ = _timeInForces.Parse(f.TimeInForce)

	p.publishOrder(order)
}

func (p *Private) handleAccountUpdate(frame []byte) {
	var f accountUpdateFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s account update, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}

	balances := make([]adapter.Balance, 0, len(f.Data.Balances))
	for _, b := range f.Data.Balances {
		balances = append(balances, walletBalance(b.Asset, b.WalletBalance, b.CrossWallet))
	}
	if len(balances) != 0 {
		p.wallet.Apply(p.env, f.EventTime, balances...)
	}

	suffix := p.futureSuffix(f.BusinessUnit)
	positions := make([]adapter.Position, 0, len(f.Data.Positions))
	for _, pos := range f.Data.Positions {
		symbol, ok := p.resolve(pos.Symbol + suffix)
		if !ok {
			continue
		}
		positions = append(positions, p.position(symbol, pos.Amount, pos.EntryPrice, pos.UnrealizedPnl, pos.Realized, pos.PositionSide, f.EventTime))
	}
	if len(positions) != 0 {
		p.env.Cache.ApplyPositions(positions...)
	}
}

func (p *Private) handleAccountPosition(frame []byte) {
	var f accountPositionFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s account position, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}

	balances := make([]adapter.Balance, 0, len(f.Balances))
	for _, b := range f.Balances {
		balances = append(balances, adapter.Balance{
			Asset:  b.Asset,
			Free:   exchange.Decimal(b.Free),
			Locked: exchange.Decimal(b.Locked),
		})
	}
	p.wallet.Apply(p.env, f.EventTime, balances...)
}
