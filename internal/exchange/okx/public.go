package okx

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	_channelTrades      = []byte("trades")
	_channelBBO         = []byte("bbo-tbt")
	_channelMarkPrice   = []byte("mark-price")
	_channelFundingRate = []byte("funding-rate")
	_channelIndex       = []byte("index-tickers")
	_prefixCandle       = []byte("candle")
)

// _kinds is the lookup order of an instrument id, okx ids are unique across instrument types.
var _kinds = []enum.InstrumentKind{
	enum.InstrumentKindSpot,
	enum.InstrumentKindLinear,
	enum.InstrumentKindInverse,
	enum.InstrumentKindOption,
}

// Public streams the market data of okx. Candles live on the business stream, everything else on the public one.
type Public struct {
	account  enum.AccountType
	env      exchange.Env
	public   exchange.Stream
	business exchange.Stream
	shared   bool
	seq      *obs.Sequence

	unsubscribe []func()

	mu sync.RWMutex
	// indexes maps an index id such as BTC-USDT to every contract symbol quoting it
	indexes map[string][]string
}

var _ exchange.PublicConnector = (*Public)(nil)

func NewPublic(ctx context.Context, account enum.AccountType, env exchange.Env, opt exchange.Option) (*Public, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}

	p := &Public{
		account: account,
		env:     env,
		seq:     obs.NewSequence(0),
		indexes: make(map[string][]string),
	}

	if opt.Stream != nil {
		p.public, p.business, p.shared = opt.Stream, opt.Stream, true
		return p, nil
	}
	base := opt.StreamURL
	if len(base) == 0 {
		base = _streamURLs[account]
	}
	p.public = exchange.NewWSStream(ctx, base+_pathPublic)
	p.business = exchange.NewWSStream(ctx, base+_pathBusiness)
	return p, nil
}

func (p *Public) Exchange() enum.Exchange {
	return enum.ExchangeOKX
}

func (p *Public) AccountType() enum.AccountType {
	return p.account
}

func (p *Public) streams() []exchange.Stream {
	if p.shared {
		return []exchange.Stream{p.public}
	}
	return []exchange.Stream{p.public, p.business}
}

func (p *Public) Connect(ctx context.Context) error {
	for _, s := range p.streams() {
		if err := s.Start(ctx); err != nil {
			return errors.Wrapf(err, "start %s public stream", p.account)
		}
		p.unsubscribe = append(p.unsubscribe, s.Observe(ctx, p.handle))
	}
	logs.Infof("%s public stream connected", p.account)
	return nil
}

func (p *Public) Disconnect(_ context.Context) error {
	for _, unsubscribe := range p.unsubscribe {
		unsubscribe()
	}
	p.unsubscribe = nil
	for _, s := range p.streams() {
		s.Close()
	}
	return nil
}

func (p *Public) SubscribeTrade(ctx context.Context, symbol string) error {
	return p.subscribe(ctx, p.public, arg{Channel: "trades", InstID: p.env.Markets.NativeID(symbol)})
}

func (p *Public) SubscribeBookL1(ctx context.Context, symbol string) error {
	return p.subscribe(ctx, p.public, arg{Channel: "bbo-tbt", InstID: p.env.Markets.NativeID(symbol)})
}

func (p *Public) SubscribeKline(ctx context.Context, symbol string, interval enum.KlineInterval) error {
	channel, err := _klineIntervals.To(interval)
	if err != nil {
		return err
	}
	return p.subscribe(ctx, p.business, arg{Channel: channel, InstID: p.env.Markets.NativeID(symbol)})
}

// SubscribeMarkPrice subscribes the mark price, the funding rate of swaps and the index price of the contract.
// An unknown symbol is taken as a native instrument id, whose index price is not subscribed
// since there is no canonical symbol to publish it under.
func (p *Public) SubscribeMarkPrice(ctx context.Context, symbol string) error {
	market, ok := p.env.Markets.Market(symbol)
	if !ok {
		return p.subscribeNativeMarkPrice(ctx, symbol)
	}
	if !market.IsContract() {
		return errors.Wrapf(exception.ErrInvalidArgument, "mark price of %s is not streamed, it is a spot market", symbol)
	}

	if err := p.subscribe(ctx, p.public, arg{Channel: "mark-price", InstID: market.ID}); err != nil {
		return err
	}
	if !market.Option {
		if err := p.subscribe(ctx, p.public, arg{Channel: "funding-rate", InstID: market.ID}); err != nil {
			return err
		}
	}

	index := market.Base + "-" + market.Quote
	p.mu.Lock()
	p.indexes[index] = append(p.indexes[index], symbol)
	p.mu.Unlock()
	return p.subscribe(ctx, p.public, arg{Channel: "index-tickers", InstID: index})
}

// subscribeNativeMarkPrice reads the kind from the id: BTC-USDT is spot, BTC-USDT-SWAP a swap,
// BTC-USD-250328 a future and BTC-USD-250328-90000-C an option.
func (p *Public) subscribeNativeMarkPrice(ctx context.Context, instID string) error {
	parts := strings.Split(instID, "-")
	if len(parts) < 3 {
		return errors.Wrapf(exception.ErrInvalidArgument, "mark price of %s is not streamed, it is a spot market", instID)
	}
	if err := p.subscribe(ctx, p.public, arg{Channel: "mark-price", InstID: instID}); err != nil {
		return err
	}
	if parts[len(parts)-1] == "SWAP" {
		return p.subscribe(ctx, p.public, arg{Channel: "funding-rate", InstID: instID})
	}
	return nil
}

func (p *Public) subscribe(ctx context.Context, stream exchange.Stream, a arg) error {
	req := subscribeRequest(p.seq, a)
	if err := stream.Request(ctx, req, subscribeAck(req.ID), true); err != nil {
		return errors.Wrapf(err, "subscribe %s %s", a.Channel, a.InstID)
	}
	logs.Infof("%s subscribed %s %s", p.account, a.Channel, a.InstID)
	return nil
}

func (p *Public) handle(frame []byte) {
	if scanner.HasField(frame, _keyEvent) {
		return
	}
	channel, ok := scanner.ScanStringField(frame, _keyChannel)
	if !ok {
		p.env.Metrics.IncDroppedFrame()
		return
	}

	switch {
	case bytes.Equal(channel, _channelTrades):
		p.handleTrade(frame)
	case bytes.Equal(channel, _channelBBO):
		p.handleBBO(frame)
	case bytes.HasPrefix(channel, _prefixCandle):
		p.handleCandle(frame, string(channel))
	case bytes.Equal(channel, _channelMarkPrice):
		p.handleMarkPrice(frame)
	case bytes.Equal(channel, _channelFundingRate):
		p.handleFundingRate(frame)
	case bytes.Equal(channel, _channelIndex):
		p.handleIndex(frame)
	default:
		p.env.Metrics.IncDroppedFrame()
	}
}

func (p *Public) symbol(instID string) (string, bool) {
	if s, ok := lookup(p.env.Markets, instID); ok {
		return s, true
	}
	p.env.Metrics.IncDroppedFrame()
	return "", false
}

func lookup(markets *adapter.MarketTable, instID string) (string, bool) {
	for _, kind := range _kinds {
		if s, ok := markets.Symbol(adapter.NativeKey(instID, kind)); ok {
			return s, true
		}
	}
	return "", false
}

func (p *Public) dropped(kind string, err error) {
	logs.Errorf("decode %s %s, err: %+v", p.account, kind, err)
	p.env.Metrics.IncDroppedFrame()
}

func (p *Public) handleTrade(raw []byte) {
	var f frame[tradeData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("trade", err)
		return
	}

	for _, d := range f.Data {
		symbol, ok := p.symbol(d.InstID)
		if !ok {
			continue
		}
		side, err := _sides.Parse(d.Side)
		if err != nil {
			p.dropped("trade", err)
			continue
		}
		p.env.Bus.Publish(adapter.TopicTrade, adapter.Trade{
			Exchange:  enum.ExchangeOKX,
			Symbol:    symbol,
			Price:     exchange.Float(d.Px),
			Size:      exchange.Float(d.Sz),
			Side:      side,
			Timestamp: exchange.Int(d.Ts),
		})
	}
}

func (p *Public) handleBBO(raw []byte) {
	var f frame[bboData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("bbo", err)
		return
	}
	symbol, ok := p.symbol(f.Arg.InstID)
	if !ok {
		return
	}

	for _, d := range f.Data {
		book := adapter.BookL1{
			Exchange:  enum.ExchangeOKX,
			Symbol:    symbol,
			Timestamp: exchange.Int(d.Ts),
		}
		if len(d.Bids) != 0 && len(d.Bids[0]) >= 2 {
			book.Bid = exchange.Float(d.Bids[0][0])
			book.BidSize = exchange.Float(d.Bids[0][1])
		}
		if len(d.Asks) != 0 && len(d.Asks[0]) >= 2 {
			book.Ask = exchange.Float(d.Asks[0][0])
			book.AskSize = exchange.Float(d.Asks[0][1])
		}
		p.env.Bus.Publish(adapter.TopicBookL1, book)
	}
}

// handleCandle decodes [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm] rows.
func (p *Public) handleCandle(raw []byte, channel string) {
	interval, err := _klineIntervals.Parse(channel)
	if err != nil {
		p.dropped("candle", err)
		return
	}
	var f frame[[]string]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("candle", err)
		return
	}
	symbol, ok := p.symbol(f.Arg.InstID)
	if !ok {
		return
	}

	for _, row := range f.Data {
		if len(row) < 9 {
			p.dropped("candle", errors.Wrapf(exception.ErrDecodePayload, "candle row has %d fields", len(row)))
			continue
		}
		start := exchange.Int(row[0])
		p.env.Bus.Publish(adapter.TopicKline, adapter.Kline{
			Exchange:  enum.ExchangeOKX,
			Symbol:    symbol,
			Interval:  interval,
			Open:      exchange.Float(row[1]),
			High:      exchange.Float(row[2]),
			Low:       exchange.Float(row[3]),
			Close:     exchange.Float(row[4]),
			Volume:    exchange.Float(row[5]),
			Start:     start,
			Timestamp: start,
			Confirm:   row[8] == "1",
		})
	}
}

func (p *Public) handleMarkPrice(raw []byte) {
	var f frame[markPriceData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("mark price", err)
		return
	}
	for _, d := range f.Data {
		symbol, ok := p.symbol(d.InstID)
		if !ok {
			continue
		}
		p.env.Bus.Publish(adapter.TopicMarkPrice, adapter.MarkPrice{
			Exchange:  enum.ExchangeOKX,
			Symbol:    symbol,
			Price:     exchange.Float(d.MarkPx),
			Timestamp: exchange.Int(d.Ts),
		})
	}
}

func (p *Public) handleFundingRate(raw []byte) {
	var f frame[fundingRateData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("funding rate", err)
		return
	}
	for _, d := range f.Data {
		symbol, ok := p.symbol(d.InstID)
		if !ok {
			continue
		}
		ts := exchange.Int(d.Ts)
		if ts == 0 {
			ts = p.env.Millis()
		}
		p.env.Bus.Publish(adapter.TopicFundingRate, adapter.FundingRate{
			Exchange:        enum.ExchangeOKX,
			Symbol:          symbol,
			Rate:            exchange.Float(d.FundingRate),
			Timestamp:       ts,
			NextFundingTime: exchange.Int(d.FundingTime),
		})
	}
}

func (p *Public) handleIndex(raw []byte) {
	var f frame[indexTickerData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("index ticker", err)
		return
	}
	for _, d := range f.Data {
		p.mu.RLock()
		symbols := p.indexes[d.InstID]
		p.mu.RUnlock()
		if len(symbols) == 0 {
			p.env.Metrics.IncDroppedFrame()
			continue
		}
		for _, symbol := range symbols {
			p.env.Bus.Publish(adapter.TopicIndexPrice, adapter.IndexPrice{
				Exchange:  enum.ExchangeOKX,
				Symbol:    symbol,
				Price:     exchange.Float(d.IdxPx),
				Timestamp: exchange.Int(d.Ts),
			})
		}
	}
}
