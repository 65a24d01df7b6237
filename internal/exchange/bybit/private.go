package bybit

import (
	"bytes"
	"context"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/internal/ratelimit"
	"nexus/internal/task"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// _pingRetry consecutive failed pings degrade the private stream.
const _pingRetry = 3

// execState is the cumulative fill of an order at its previous update.
type execState struct {
	qty   decimal.Decimal
	value decimal.Decimal
}

// Private trades the unified account and reconciles the order, position and wallet topics.
type Private struct {
	account enum.AccountType
	env     exchange.Env
	opt     exchange.Option
	token   adapter.Token
	rest    *restClient
	seq     *obs.Sequence

	stream      exchange.Stream
	unsubscribe func()
	heartbeatTk *task.Handle

	wallet *exchange.Wallet
	// execs is touched by the stream goroutine only
	execs map[string]execState

	mu       sync.Mutex
	err      error
	degraded atomic.Bool
}

var _ exchange.PrivateConnector = (*Private)(nil)

func NewPrivate(account enum.AccountType, token adapter.Token, env exchange.Env, opt exchange.Option) (*Private, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if !account.IsUnified() {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "%s is not allowed as a private connector, use a unified account", account)
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
		account: account,
		env:     env,
		opt:     opt,
		token:   token,
		rest:    newRestClient(baseURL, opt.HTTPClient, token, env),
		seq:     obs.NewSequence(0),
		wallet:  exchange.NewWallet(account),
		execs:   make(map[string]execState),
	}, nil
}

func (p *Private) Exchange() enum.Exchange {
	return enum.ExchangeBybit
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
	logs.Errorf("%s private stream degraded, err: %+v", p.account, err)
}

// Connect loads wallet and positions, authenticates the private stream and subscribes its topics.
func (p *Private) Connect(ctx context.Context) error {
	if err := p.initBalance(ctx); err != nil {
		return errors.Wrapf(err, "init %s balance", p.account)
	}
	if err := p.initPositions(ctx); err != nil {
		return errors.Wrapf(err, "init %s positions", p.account)
	}

	p.stream = p.opt.Stream
	if p.stream == nil {
		streamURL := p.opt.StreamURL
		if len(streamURL) == 0 {
			streamURL = _streamURLs[p.account]
		}
		p.stream = exchange.NewWSStream(ctx, streamURL)
	}

	if err := p.stream.Start(ctx, authHandshake(p.token.Key, p.token.Secret, p.env.Millis)); err != nil {
		return errors.Wrapf(err, "start %s private stream", p.account)
	}
	p.unsubscribe = p.stream.Observe(ctx, p.handle)

	for _, topic := range _privateTopics {
		req := subscribeRequest(p.seq, topic)
		if err := p.stream.Request(ctx, req, subscribeAck(req.ReqID), true); err != nil {
			return errors.Wrapf(err, "subscribe %s %s", p.account, topic)
		}
	}

	tasks := p.env.Tasks
	if tasks == nil {
		tasks = task.NewManager(ctx)
	}
	p.heartbeatTk = tasks.Go(p.account.String()+".private.heartbeat", heartbeat(p.stream, p.seq, _pingInterval, func(failures int, err error) {
		p.env.Metrics.IncKeepAliveFailure()
		logs.Warnf("%s private ping failed %d/%d, err: %+v", p.account, failures, _pingRetry, err)
		if failures == _pingRetry {
			p.degrade(errors.Wrapf(exception.ErrSessionDegraded, "ping failed %d times: %s", failures, err.Error()))
		}
	}))

	logs.Infof("%s private stream connected", p.account)
	return nil
}

func (p *Private) Disconnect(_ context.Context) error {
	if p.heartbeatTk != nil {
		p.heartbeatTk.Cancel()
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	if p.stream != nil {
		p.stream.Close()
	}
	return nil
}

func (p *Private) initBalance(ctx context.Context) error {
	params := url.Values{}
	params.Set("accountType", _accountType)

	var resp response[walletResult]
	if err := p.rest.get(ctx, _walletBalance, params, &resp); err != nil {
		return err
	}

	ts := resp.Time
	if ts == 0 {
		ts = p.env.Millis()
	}
	p.wallet.Apply(p.env, ts, walletBalances(resp.Result.List)...)
	return nil
}

// initPositions lists linear positions per settle coin and every inverse position.
func (p *Private) initPositions(ctx context.Context) error {
	settles := make(map[string]struct{})
	inverse := false
	for _, m := range p.env.Markets.Markets() {
		switch {
		case m.Linear:
			settles[m.Settle] = struct{}{}
		case m.Inverse:
			inverse = true
		}
	}

	queries := make([]url.Values, 0, len(settles)+1)
	coins := make([]string, 0, len(settles))
	for coin := range settles {
		coins = append(coins, coin)
	}
	sort.Strings(coins)
	for _, coin := range coins {
		q := url.Values{}
		q.Set("category", "linear")
		q.Set("settleCoin", coin)
		queries = append(queries, q)
	}
	if inverse {
		q := url.Values{}
		q.Set("category", "inverse")
		queries = append(queries, q)
	}

	positions := make([]adapter.Position, 0)
	for _, q := range queries {
		var resp response[positionResult]
		if err := p.rest.get(ctx, _positionList, q, &resp); err != nil {
			return err
		}
		for _, pos := range resp.Result.List {
			if len(pos.Category) == 0 {
				pos.Category = resp.Result.Category
			}
			if position, ok := p.position(pos, false); ok {
				positions = append(positions, position)
			}
		}
	}
	if len(positions) != 0 {
		p.env.Cache.ApplyPositions(positions...)
	}
	return nil
}

func walletBalances(list []walletData) []adapter.Balance {
	balances := make([]adapter.Balance, 0)
	for _, w := range list {
		for _, c := range w.Coin {
			wallet := exchange.Decimal(c.WalletBalance)
			locked := exchange.Decimal(c.Locked)
			balances = append(balances, adapter.Balance{
				Asset:  c.Coin,
				Free:   wallet.Sub(locked),
				Locked: locked,
			})
		}
	}
	return balances
}

// position converts a position entry, strict drops an unknown market as an unexpected stream event.
func (p *Private) position(d positionData, strict bool) (adapter.Position, bool) {
	kind, err := _categories.Parse(d.Category)
	if err != nil {
		if strict {
			p.env.Metrics.IncDroppedFrame()
		}
		return adapter.Position{}, false
	}
	key := adapter.NativeKey(d.Symbol, kind)
	symbol, ok := p.env.Markets.Symbol(key)
	if !ok {
		if strict {
			logs.Warnf("%s drops position of unknown market %s", p.account, key)
			p.env.Metrics.IncDroppedFrame()
		}
		return adapter.Position{}, false
	}

	signed := exchange.Decimal(d.Size)
	if d.Side == "Sell" {
		signed = signed.Neg()
	}
	reported, err := _positionIdx.Parse(d.PositionIdx)
	if err != nil {
		reported = enum.PositionSideFlat
	}

	return adapter.Position{
		Exchange:      enum.ExchangeBybit,
		Symbol:        symbol,
		SignedAmount:  signed,
		Side:          adapter.ResolvePositionSide(reported, signed),
		EntryPrice:    exchange.Decimal(d.entry()),
		UnrealizedPnl: exchange.Decimal(d.UnrealisedPnl),
		RealizedPnl:   exchange.Decimal(d.CumRealisedPnl),
		Timestamp:     exchange.Int(d.UpdatedTime),
	}, true
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
	return req.FailedOrder(enum.ExchangeBybit, p.env.Millis()), err
}

func (p *Private) place(ctx context.Context, req adapter.OrderRequest, trigger bool) (adapter.Order, error) {
	if err := p.env.Limiter.Acquire(ctx); err != nil {
		return p.failed(req, err)
	}

	market, ok := p.env.Markets.Market(req.Symbol)
	if !ok {
		return p.failed(req, errors.Wrap(exception.ErrUnsupportedSymbol, req.Symbol))
	}

	body, err := orderBody(market, req, trigger)
	if err != nil {
		return p.failed(req, err)
	}

	var resp response[orderResult]
	if err := p.rest.post(ctx, _orderCreate, body, &resp); err != nil {
		return p.failed(req, err)
	}
	if len(resp.Result.OrderID) == 0 {
		return p.failed(req, exception.ErrOrderEmptyResponseOrderID)
	}

	ts := resp.Time
	if ts == 0 {
		ts = p.env.Millis()
	}
	order := adapter.Order{
		Exchange:      enum.ExchangeBybit,
		Symbol:        req.Symbol,
		ID:            resp.Result.OrderID,
		ClientOrderID: req.ClientOrderID,
		UUID:          req.ClientOrderID,
		Status:        enum.OrderStatusPending,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		Amount:        req.Amount,
		Filled:        decimal.Zero,
		Remaining:     req.Amount,
		Price:         req.Price,
		Timestamp:     ts,
		TriggerPrice:  req.TriggerPrice,
		TriggerType:   req.TriggerType,
		PositionSide:  req.PositionSide,
		ReduceOnly:    req.ReduceOnly,
	}
	if len(resp.Result.OrderLinkID) != 0 {
		order.ClientOrderID = resp.Result.OrderLinkID
	}
	return order, nil
}

func orderBody(m adapter.Market, req adapter.OrderRequest, trigger bool) (map[string]any, error) {
	category, err := _categories.To(m.Kind())
	if err != nil {
		return nil, err
	}
	side, err := _sides.To(req.Side)
	if err != nil {
		return nil, err
	}
	typ, tif, err := orderType(req.Type, req.TimeInForce)
	if err != nil {
		return nil, err
	}
	spot := !m.IsContract()

	body := map[string]any{
		"category":  category,
		"symbol":    m.ID,
		"side":      side,
		"orderType": typ,
		"qty":       req.Amount.String(),
	}
	if req.Type.IsLimit() {
		if req.Price.IsZero() {
			return nil, errors.Wrap(exception.ErrOrderMissingPrice, req.Symbol)
		}
		body["price"] = req.Price.String()
	}
	if len(tif) != 0 {
		body["timeInForce"] = tif
	}
	if len(req.ClientOrderID) != 0 {
		body["orderLinkId"] = req.ClientOrderID
	}
	if spot && req.Type.IsMarket() {
		// spot market quantities are counted in the base coin, not the quote
		body["marketUnit"] = "baseCoin"
	}

	if trigger {
		if req.TriggerPrice.IsZero() {
			return nil, errors.Wrap(exception.ErrOrderMissingTriggerPrice, req.Symbol)
		}
		body["triggerPrice"] = req.TriggerPrice.String()
		if spot {
			body["orderFilter"] = "tpslOrder"
		} else {
			by, err := _triggerTypes.To(req.TriggerType)
			if err != nil {
				return nil, err
			}
			body["triggerBy"] = by
			body["triggerDirection"] = triggerDirection(req.Type, req.Side)
		}
	}

	if !spot {
		if req.PositionSide.IsAvailable() {
			idx, err := _positionIdx.To(req.PositionSide)
			if err != nil {
				return nil, err
			}
			body["positionIdx"] = idx
		}
		if req.ReduceOnly {
			body["reduceOnly"] = true
		}
	}

	for k, v := range req.Extra {
		body[k] = v
	}
	return body, nil
}

func (p *Private) CancelOrder(ctx context.Context, symbol, orderID string) (adapter.Order, error) {
	failed := func(err error) (adapter.Order, error) {
		logs.Errorf("%s cancel order %s failed, err: %+v", p.account, orderID, err)
		return adapter.Order{
			Exchange:  enum.ExchangeBybit,
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
	category, err := _categories.To(market.Kind())
	if err != nil {
		return failed(err)
	}

	var resp response[orderResult]
	if err := p.rest.post(ctx, _orderCancel, map[string]any{
		"category": category,
		"symbol":   market.ID,
		"orderId":  orderID,
	}, &resp); err != nil {
		return failed(err)
	}

	ts := resp.Time
	if ts == 0 {
		ts = p.env.Millis()
	}
	return adapter.Order{
		Exchange:      enum.ExchangeBybit,
		Symbol:        symbol,
		ID:            resp.Result.OrderID,
		ClientOrderID: resp.Result.OrderLinkID,
		UUID:          resp.Result.OrderLinkID,
		Status:        enum.OrderStatusCanceling,
		Timestamp:     ts,
	}, nil
}

/*
	Private stream
*/

func (p *Private) handle(raw []byte) {
	topic, ok := scanner.ScanStringField(raw, _keyTopic)
	if !ok {
		return
	}

	switch {
	case bytes.Equal(topic, []byte("order")):
		p.handleOrder(raw)
	case bytes.Equal(topic, []byte("wallet")):
		p.handleWallet(raw)
	case bytes.Equal(topic, []byte("position")):
		p.handlePosition(raw)
	}
}

func (p *Private) dropped(kind string, err error) {
	logs.Errorf("decode %s %s, err: %+v", p.account, kind, err)
	p.env.Metrics.IncDroppedFrame()
}

func (p *Private) handleOrder(raw []byte) {
	var f frame[[]orderData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("order", err)
		return
	}
	for _, d := range f.Data {
		if order, ok := p.order(d); ok {
			p.env.Bus.Publish(enum.ExchangeBybit.OrderTopic(), order)
		}
	}
}

// order derives the fill of this update from the cumulative values of the previous one.
func (p *Private) order(d orderData) (adapter.Order, bool) {
	kind, err := _categories.Parse(d.Category)
	if err != nil {
		p.dropped("order", err)
		return adapter.Order{}, false
	}
	key := adapter.NativeKey(d.Symbol, kind)
	symbol, ok := p.env.Markets.Symbol(key)
	if !ok {
		logs.Warnf("%s drops order of unknown market %s", p.account, key)
		p.env.Metrics.IncDroppedFrame()
		return adapter.Order{}, false
	}
	status, err := _statuses.Parse(d.OrderStatus)
	if err != nil {
		p.dropped("order", err)
		return adapter.Order{}, false
	}

	cumQty := exchange.Decimal(d.CumExecQty)
	cumValue := exchange.Decimal(d.CumExecValue)
	prev := p.execs[d.OrderID]
	lastFilled := cumQty.Sub(prev.qty)
	cost := cumValue.Sub(prev.value)
	if status.IsTerminal() {
		delete(p.execs, d.OrderID)
	} else {
		p.execs[d.OrderID] = execState{qty: cumQty, value: cumValue}
	}

	lastPrice := decimal.Zero
	if lastFilled.IsPositive() {
		lastPrice = cost.Div(lastFilled)
	}

	order := adapter.Order{
		Exchange:        enum.ExchangeBybit,
		Symbol:          symbol,
		ID:              d.OrderID,
		ClientOrderID:   d.OrderLinkID,
		UUID:            d.OrderLinkID,
		Status:          status,
		Amount:          exchange.Decimal(d.Qty),
		Filled:          cumQty,
		Remaining:       exchange.Decimal(d.LeavesQty),
		Price:           exchange.Decimal(d.Price),
		Average:         exchange.Decimal(d.AvgPrice),
		LastFilledPrice: lastPrice,
		LastFilled:      lastFilled,
		Fee:             exchange.Decimal(d.CumExecFee),
		FeeCurrency:     d.FeeCurrency,
		Cost:            cost,
		CumCost:         cumValue,
		Timestamp:       exchange.Int(d.UpdatedTime),
		TriggerPrice:    exchange.Decimal(d.TriggerPrice),
		ReduceOnly:      d.ReduceOnly,
	}
	order.Side, _ = _sides.Parse(d.Side)
	order.TimeInForce, _ = parseTimeInForce(d.TimeInForce)
	order.TriggerType, _ = _triggerTypes.Parse(d.TriggerBy)
	if typ, err := parseOrderType(d.OrderType, d.TimeInForce, d.StopOrderType); err == nil {
		order.Type = typ
	} else {
		logs.Warnf("%s order update, err: %+v", p.account, err)
	}
	if kind != enum.InstrumentKindSpot {
		order.PositionSide, _ = _positionIdx.Parse(d.PositionIdx)
	}
	return order, true
}

func (p *Private) handleWallet(raw []byte) {
	var f frame[[]walletData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("wallet", err)
		return
	}
	balances := walletBalances(f.Data)
	if len(balances) != 0 {
		p.wallet.Apply(p.env, f.CreationTime, balances...)
	}
}

func (p *Private) handlePosition(raw []byte) {
	var f frame[[]positionData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("position", err)
		return
	}

	positions := make([]adapter.Position, 0, len(f.Data))
	for _, d := range f.Data {
		if pos, ok := p.position(d, true); ok {
			positions = append(positions, pos)
		}
	}
	if len(positions) != 0 {
		p.env.Cache.ApplyPositions(positions...)
	}
}
