package okx

import (
	"bytes"
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/internal/ratelimit"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	_channelAccount    = []byte("account")
	_channelPositions  = []byte("positions")
	_channelOrders     = []byte("orders")
	_channelOrdersAlgo = []byte("orders-algo")
)

var _privateChannels = []arg{
	{Channel: "account"},
	{Channel: "positions", InstType: "ANY"},
	{Channel: "orders", InstType: "ANY"},
	{Channel: "orders-algo", InstType: "ANY"},
}

// Private trades one okx account. Stop loss and take profit orders are conditional algo orders,
// their algo ids are kept until terminal so a cancel reaches the algo endpoint.
type Private struct {
	account enum.AccountType
	env     exchange.Env
	opt     exchange.Option
	token   adapter.Token
	rest    *restClient
	seq     *obs.Sequence

	stream      exchange.Stream
	unsubscribe func()

	wallet *exchange.Wallet

	algoMu sync.Mutex
	// algos maps an algo id to its instrument id
	algos map[string]string

	mu       sync.Mutex
	err      error
	degraded atomic.Bool
}

var _ exchange.PrivateConnector = (*Private)(nil)

func NewPrivate(account enum.AccountType, token adapter.Token, env exchange.Env, opt exchange.Option) (*Private, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if token.IsEmpty() || len(token.Passphrase) == 0 {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "%s needs an api key, secret and passphrase", account)
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
		rest:    newRestClient(baseURL, opt.HTTPClient, token, account == enum.AccountOKXDemo, env),
		seq:     obs.NewSequence(0),
		wallet:  exchange.NewWallet(account),
		algos:   make(map[string]string),
	}, nil
}

func (p *Private) Exchange() enum.Exchange {
	return enum.ExchangeOKX
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

func (p *Private) Connect(ctx context.Context) error {
	if err := p.initBalance(ctx); err != nil {
		return errors.Wrapf(err, "init %s balance", p.account)
	}
	if err := p.initPositions(ctx); err != nil {
		return errors.Wrapf(err, "init %s positions", p.account)
	}

	p.stream = p.opt.Stream
	if p.stream == nil {
		base := p.opt.StreamURL
		if len(base) == 0 {
			base = _streamURLs[p.account]
		}
		p.stream = exchange.NewWSStream(ctx, base+_pathPrivate)
	}

	seconds := func() int64 { return p.env.Clock().Unix() }
	if err := p.stream.Start(ctx, loginHandshake(p.token.Key, p.token.Secret, p.token.Passphrase, seconds)); err != nil {
		return errors.Wrapf(err, "start %s private stream", p.account)
	}
	p.unsubscribe = p.stream.Observe(ctx, p.handle)

	for _, a := range _privateChannels {
		req := subscribeRequest(p.seq, a)
		if err := p.stream.Request(ctx, req, subscribeAck(req.ID), true); err != nil {
			return errors.Wrapf(err, "subscribe %s %s", p.account, a.Channel)
		}
	}

	logs.Infof("%s private stream connected", p.account)
	return nil
}

func (p *Private) Disconnect(_ context.Context) error {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	if p.stream != nil {
		p.stream.Close()
	}
	return nil
}

func (p *Private) initBalance(ctx context.Context) error {
	var resp response[accountData]
	if err := p.rest.get(ctx, _accountBalance, url.Values{}, &resp); err != nil {
		return err
	}

	ts := p.env.Millis()
	if len(resp.Data) != 0 {
		if t := exchange.Int(resp.Data[0].UTime); t != 0 {
			ts = t
		}
	}
	p.wallet.Apply(p.env, ts, balances(resp.Data)...)
	return nil
}

func (p *Private) initPositions(ctx context.Context) error {
	var resp response[positionData]
	if err := p.rest.get(ctx, _positions, url.Values{}, &resp); err != nil {
		return err
	}

	positions := make([]adapter.Position, 0, len(resp.Data))
	for _, d := range resp.Data {
		if position, ok := p.position(d, false); ok {
			positions = append(positions, position)
		}
	}
	if len(positions) != 0 {
		p.env.Cache.ApplyPositions(positions...)
	}
	return nil
}

func balances(data []accountData) []adapter.Balance {
	out := make([]adapter.Balance, 0)
	for _, a := range data {
		for _, d := range a.Details {
			out = append(out, adapter.Balance{
				Asset:  d.Ccy,
				Free:   exchange.Decimal(d.AvailBal),
				Locked: exchange.Decimal(d.FrozenBal),
			})
		}
	}
	return out
}

// position converts a position entry, posSide net carries the sign in pos.
func (p *Private) position(d positionData, strict bool) (adapter.Position, bool) {
	symbol, ok := lookup(p.env.Markets, d.InstID)
	if !ok {
		if strict {
			logs.Warnf("%s drops position of unknown market %s", p.account, d.InstID)
			p.env.Metrics.IncDroppedFrame()
		}
		return adapter.Position{}, false
	}

	signed := exchange.Decimal(d.Pos)
	reported, err := _positionSides.Parse(d.PosSide)
	if err != nil {
		reported = enum.PositionSideFlat
	}
	if reported == enum.PositionSideShort && signed.IsPositive() {
		signed = signed.Neg()
	}

	return adapter.Position{
		Exchange:      enum.ExchangeOKX,
		Symbol:        symbol,
		SignedAmount:  signed,
		Side:          adapter.ResolvePositionSide(reported, signed),
		EntryPrice:    exchange.Decimal(d.AvgPx),
		UnrealizedPnl: exchange.Decimal(d.Upl),
		RealizedPnl:   exchange.Decimal(d.RealizedPnl),
		Timestamp:     exchange.Int(d.UTime),
	}, true
}

/*
	Orders
*/

func (p *Private) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if req.Type.IsStopLoss() || req.Type.IsTakeProfit() {
		return p.failed(req, errors.Wrapf(exception.ErrOrderUnsupportedType, "%s needs an algo order", req.Type))
	}
	return p.place(ctx, req)
}

func (p *Private) CreateStopLossOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if !req.Type.IsStopLoss() {
		return p.failed(req, errors.Wrapf(exception.ErrOrderUnsupportedType, "%s is not a stop loss", req.Type))
	}
	return p.placeAlgo(ctx, req)
}

func (p *Private) CreateTakeProfitOrder(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if !req.Type.IsTakeProfit() {
		return p.failed(req, errors.Wrapf(exception.ErrOrderUnsupportedType, "%s is not a take profit", req.Type))
	}
	return p.placeAlgo(ctx, req)
}

func (p *Private) failed(req adapter.OrderRequest, err error) (adapter.Order, error) {
	logs.Errorf("%s create order %s failed, err: %+v", p.account, req.ClientOrderID, err)
	return req.FailedOrder(enum.ExchangeOKX, p.env.Millis()), err
}

func (p *Private) pending(req adapter.OrderRequest, id, ts string) adapter.Order {
	t := exchange.Int(ts)
	if t == 0 {
		t = p.env.Millis()
	}
	return adapter.Order{
		Exchange:      enum.ExchangeOKX,
		Symbol:        req.Symbol,
		ID:            id,
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
		Timestamp:     t,
		TriggerPrice:  req.TriggerPrice,
		TriggerType:   req.TriggerType,
		PositionSide:  req.PositionSide,
		ReduceOnly:    req.ReduceOnly,
	}
}

func (p *Private) place(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if err := p.env.Limiter.Acquire(ctx); err != nil {
		return p.failed(req, err)
	}
	market, ok := p.env.Markets.Market(req.Symbol)
	if !ok {
		return p.failed(req, errors.Wrap(exception.ErrUnsupportedSymbol, req.Symbol))
	}
	body, err := orderBody(market, req)
	if err != nil {
		return p.failed(req, err)
	}

	var resp response[orderResult]
	if err := p.rest.post(ctx, _order, body, &resp); err != nil {
		return p.failed(req, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].OrdID) == 0 {
		return p.failed(req, exception.ErrOrderEmptyResponseOrderID)
	}
	return p.pending(req, resp.Data[0].OrdID, resp.Data[0].Ts), nil
}

func (p *Private) placeAlgo(ctx context.Context, req adapter.OrderRequest) (adapter.Order, error) {
	if err := p.env.Limiter.Acquire(ctx); err != nil {
		return p.failed(req, err)
	}
	market, ok := p.env.Markets.Market(req.Symbol)
	if !ok {
		return p.failed(req, errors.Wrap(exception.ErrUnsupportedSymbol, req.Symbol))
	}
	body, err := algoBody(market, req)
	if err != nil {
		return p.failed(req, err)
	}

	var resp response[orderResult]
	if err := p.rest.post(ctx, _algoOrder, body, &resp); err != nil {
		return p.failed(req, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].AlgoID) == 0 {
		return p.failed(req, exception.ErrOrderEmptyResponseOrderID)
	}

	algoID := resp.Data[0].AlgoID
	p.algoMu.Lock()
	p.algos[algoID] = market.ID
	p.algoMu.Unlock()
	return p.pending(req, algoID, resp.Data[0].Ts), nil
}

func tdMode(m adapter.Market) string {
	if m.IsContract() {
		return _tdCross
	}
	return _tdCash
}

// baseBody holds the fields shared by plain and algo orders, Extra may override tdMode.
func baseBody(m adapter.Market, req adapter.OrderRequest) (map[string]any, error) {
	side, err := _sides.To(req.Side)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"instId": m.ID,
		"tdMode": tdMode(m),
		"side":   side,
		"sz":     req.Amount.String(),
	}
	if m.IsContract() {
		if req.PositionSide.IsAvailable() {
			posSide, err := _positionSides.To(req.PositionSide)
			if err != nil {
				return nil, err
			}
			body["posSide"] = posSide
		}
		if req.ReduceOnly {
			body["reduceOnly"] = true
		}
	}
	return body, nil
}

func orderBody(m adapter.Market, req adapter.OrderRequest) (map[string]any, error) {
	body, err := baseBody(m, req)
	if err != nil {
		return nil, err
	}
	typ, err := orderType(req.Type, req.TimeInForce)
	if err != nil {
		return nil, err
	}
	body["ordType"] = typ
	if req.Type.IsLimit() {
		if req.Price.IsZero() {
			return nil, errors.Wrap(exception.ErrOrderMissingPrice, req.Symbol)
		}
		body["px"] = req.Price.String()
	}
	if len(req.ClientOrderID) != 0 {
		body["clOrdId"] = req.ClientOrderID
	}
	if !m.IsContract() && req.Type.IsMarket() {
		// spot market sizes default to the quote currency for buys
		body["tgtCcy"] = "base_ccy"
	}
	for k, v := range req.Extra {
		body[k] = v
	}
	return body, nil
}

// algoBody builds a conditional order, the triggered order is placed at the price or at market.
func algoBody(m adapter.Market, req adapter.OrderRequest) (map[string]any, error) {
	if req.TriggerPrice.IsZero() {
		return nil, errors.Wrap(exception.ErrOrderMissingTriggerPrice, req.Symbol)
	}
	body, err := baseBody(m, req)
	if err != nil {
		return nil, err
	}
	body["ordType"] = "conditional"

	ordPx := _marketPrice
	if req.Type.IsLimit() {
		if req.Price.IsZero() {
			return nil, errors.Wrap(exception.ErrOrderMissingPrice, req.Symbol)
		}
		ordPx = req.Price.String()
	}
	pxType := "last"
	if req.TriggerType.IsAvailable() {
		if pxType, err = _triggerTypes.To(req.TriggerType); err != nil {
			return nil, err
		}
	}

	prefix := "tp"
	if req.Type.IsStopLoss() {
		prefix = "sl"
	}
	body[prefix+"TriggerPx"] = req.TriggerPrice.String()
	body[prefix+"OrdPx"] = ordPx
	body[prefix+"TriggerPxType"] = pxType
	if len(req.ClientOrderID) != 0 {
		body["algoClOrdId"] = req.ClientOrderID
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
			Exchange:  enum.ExchangeOKX,
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

	p.algoMu.Lock()
	_, algo := p.algos[orderID]
	p.algoMu.Unlock()

	var resp response[orderResult]
	if algo {
		if err := p.rest.post(ctx, _cancelAlgos, []map[string]string{{"algoId": orderID, "instId": market.ID}}, &resp); err != nil {
			return failed(err)
		}
	} else {
		if err := p.rest.post(ctx, _cancelOrder, map[string]string{"instId": market.ID, "ordId": orderID}, &resp); err != nil {
			return failed(err)
		}
	}

	order := adapter.Order{
		Exchange:  enum.ExchangeOKX,
		Symbol:    symbol,
		ID:        orderID,
		Status:    enum.OrderStatusCanceling,
		Timestamp: p.env.Millis(),
	}
	if len(resp.Data) != 0 {
		d := resp.Data[0]
		order.ClientOrderID = d.ClOrdID
		if len(d.AlgoClOrdID) != 0 {
			order.ClientOrderID = d.AlgoClOrdID
		}
		order.UUID = order.ClientOrderID
		if t := exchange.Int(d.Ts); t != 0 {
			order.Timestamp = t
		}
	}
	return order, nil
}

/*
	Private stream
*/

func (p *Private) handle(raw []byte) {
	if scanner.HasField(raw, _keyEvent) {
		p.handleEvent(raw)
		return
	}
	channel, ok := scanner.ScanStringField(raw, _keyChannel)
	if !ok {
		return
	}

	switch {
	case bytes.Equal(channel, _channelOrders):
		p.handleOrder(raw)
	case bytes.Equal(channel, _channelOrdersAlgo):
		p.handleAlgoOrder(raw)
	case bytes.Equal(channel, _channelAccount):
		p.handleAccount(raw)
	case bytes.Equal(channel, _channelPositions):
		p.handlePosition(raw)
	}
}

// handleEvent degrades on an error that answers none of our requests, e.g. a rejected login after reconnect.
func (p *Private) handleEvent(raw []byte) {
	e, ok := decodeEvent(raw)
	if !ok {
		return
	}
	switch e.Event {
	case "error":
		if len(e.ID) == 0 {
			p.degrade(errors.Wrapf(exception.ErrSessionDegraded, "code %s: %s", e.Code, e.Msg))
		}
	case "notice":
		logs.Warnf("%s private stream notice, code %s: %s", p.account, e.Code, e.Msg)
	}
}

func (p *Private) dropped(kind string, err error) {
	logs.Errorf("decode %s %s, err: %+v", p.account, kind, err)
	p.env.Metrics.IncDroppedFrame()
}

func (p *Private) handleOrder(raw []byte) {
	var f frame[orderData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("order", err)
		return
	}
	for _, d := range f.Data {
		if order, ok := p.order(d); ok {
			p.env.Bus.Publish(enum.ExchangeOKX.OrderTopic(), order)
		}
	}
}

// order maps an orders channel update, a triggered algo order keeps the uuid of its algoClOrdId.
func (p *Private) order(d orderData) (adapter.Order, bool) {
	symbol, ok := lookup(p.env.Markets, d.InstID)
	if !ok {
		logs.Warnf("%s drops order of unknown market %s", p.account, d.InstID)
		p.env.Metrics.IncDroppedFrame()
		return adapter.Order{}, false
	}
	status, err := _statuses.Parse(d.State)
	if err != nil {
		p.dropped("order", err)
		return adapter.Order{}, false
	}

	amount := exchange.Decimal(d.Sz)
	filled := exchange.Decimal(d.AccFillSz)
	lastFilled := exchange.Decimal(d.FillSz)
	lastPrice := exchange.Decimal(d.FillPx)
	average := exchange.Decimal(d.AvgPx)

	// okx reports a charged fee as a negative number
	fee := exchange.Decimal(d.Fee).Neg()

	uuid := d.ClOrdID
	if len(d.AlgoClOrdID) != 0 {
		uuid = d.AlgoClOrdID
	}

	order := adapter.Order{
		Exchange:        enum.ExchangeOKX,
		Symbol:          symbol,
		ID:              d.OrdID,
		ClientOrderID:   d.ClOrdID,
		UUID:            uuid,
		Status:          status,
		Amount:          amount,
		Filled:          filled,
		Remaining:       amount.Sub(filled),
		Price:           exchange.Decimal(d.Px),
		Average:         average,
		LastFilledPrice: lastPrice,
		LastFilled:      lastFilled,
		Fee:             fee,
		FeeCurrency:     d.FeeCcy,
		Cost:            lastFilled.Mul(lastPrice),
		CumCost:         filled.Mul(average),
		Timestamp:       exchange.Int(d.UTime),
		TimeInForce:     parseTimeInForce(d.OrdType),
		ReduceOnly:      d.ReduceOnly == "true",
	}
	order.Side, _ = _sides.Parse(d.Side)
	if typ, err := _orderTypes.Parse(d.OrdType); err == nil {
		order.Type = typ
	} else {
		logs.Warnf("%s order update, err: %+v", p.account, err)
	}
	if d.InstType != "SPOT" && d.InstType != "MARGIN" {
		order.PositionSide, _ = _positionSides.Parse(d.PosSide)
	}
	return order, true
}

func (p *Private) handleAlgoOrder(raw []byte) {
	var f frame[algoOrderData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("algo order", err)
		return
	}
	for _, d := range f.Data {
		if order, ok := p.algoOrder(d); ok {
			p.env.Bus.Publish(enum.ExchangeOKX.OrderTopic(), order)
		}
	}
}

func (p *Private) algoOrder(d algoOrderData) (adapter.Order, bool) {
	symbol, ok := lookup(p.env.Markets, d.InstID)
	if !ok {
		logs.Warnf("%s drops algo order of unknown market %s", p.account, d.InstID)
		p.env.Metrics.IncDroppedFrame()
		return adapter.Order{}, false
	}
	status, err := _algoStatuses.Parse(d.State)
	if err != nil {
		p.dropped("algo order", err)
		return adapter.Order{}, false
	}
	if status.IsTerminal() {
		p.algoMu.Lock()
		delete(p.algos, d.AlgoID)
		p.algoMu.Unlock()
	}

	order := adapter.Order{
		Exchange:      enum.ExchangeOKX,
		Symbol:        symbol,
		ID:            d.AlgoID,
		ClientOrderID: d.AlgoClOrdID,
		UUID:          d.AlgoClOrdID,
		Status:        status,
		Amount:        exchange.Decimal(d.Sz),
		Filled:        decimal.Zero,
		Remaining:     exchange.Decimal(d.Sz),
		Timestamp:     exchange.Int(d.UTime),
		TimeInForce:   enum.OrderTimeInForceGTC,
		ReduceOnly:    d.ReduceOnly == "true",
	}
	stopLoss := len(d.SlTriggerPx) != 0
	triggerPx, ordPx, pxType := d.TpTriggerPx, d.TpOrdPx, d.TpTriggerPxType
	if stopLoss {
		triggerPx, ordPx, pxType = d.SlTriggerPx, d.SlOrdPx, d.SlTriggerPxType
	}
	market := ordPx == _marketPrice
	switch {
	case stopLoss && market:
		order.Type = enum.OrderTypeStopLossMarket
	case stopLoss:
		order.Type = enum.OrderTypeStopLossLimit
	case market:
		order.Type = enum.OrderTypeTakeProfitMarket
	default:
		order.Type = enum.OrderTypeTakeProfitLimit
	}
	if !market {
		order.Price = exchange.Decimal(ordPx)
	}
	order.TriggerPrice = exchange.Decimal(triggerPx)
	order.TriggerType, _ = _triggerTypes.Parse(pxType)
	order.Side, _ = _sides.Parse(d.Side)
	if d.InstType != "SPOT" && d.InstType != "MARGIN" {
		order.PositionSide, _ = _positionSides.Parse(d.PosSide)
	}
	return order, true
}

func (p *Private) handleAccount(raw []byte) {
	var f frame[accountData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("account", err)
		return
	}
	updates := balances(f.Data)
	if len(updates) == 0 {
		return
	}
	ts := p.env.Millis()
	if len(f.Data) != 0 {
		if t := exchange.Int(f.Data[0].UTime); t != 0 {
			ts = t
		}
	}
	p.wallet.Apply(p.env, ts, updates...)
}

func (p *Private) handlePosition(raw []byte) {
	var f frame[positionData]
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
