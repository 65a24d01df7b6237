package binance

import (
	"context"
	"strings"

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
	_keyEvent    = []byte(`"e"`)
	_keyUpdateID = []byte(`"u"`)
)

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type subscribeResponse struct {
	Result any           `json:"result"`
	ID     uint64        `json:"id"`
	Code   int64         `json:"code"`
	Msg    string        `json:"msg"`
	Error  *apiErrorBody `json:"error"`
}

// Field names of binance frames differ only by letter case, every pair present is declared
// so that the decoder never falls back to a case insensitive match.

type tradeFrame struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
	Maker     bool   `json:"m"`
	Ignore    any    `json:"M"`
}

type bookTickerFrame struct {
	EventType string `json:"e"`
	UpdateID  int64  `json:"u"`
	EventTime int64  `json:"E"`
	TransTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Bid       string `json:"b"`
	BidSize   string `json:"B"`
	Ask       string `json:"a"`
	AskSize   string `json:"A"`
}

type klineFrame struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		Start       int64  `json:"t"`
		Close       int64  `json:"T"`
		Symbol      string `json:"s"`
		Interval    string `json:"i"`
		FirstID     int64  `json:"f"`
		LastID      int64  `json:"L"`
		OpenPrice   string `json:"o"`
		ClosePrice  string `json:"c"`
		HighPrice   string `json:"h"`
		LowPrice    string `json:"l"`
		Volume      string `json:"v"`
		Trades      int64  `json:"n"`
		Closed      bool   `json:"x"`
		QuoteVolume string `json:"q"`
		TakerVolume string `json:"V"`
		TakerQuote  string `json:"Q"`
		Ignore      any    `json:"B"`
	} `json:"k"`
}

type markPriceFrame struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	IndexPrice      string `json:"i"`
	SettlePrice     string `json:"P"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

// Public streams trades, best bid and offer, klines and mark prices of one market context.
type Public struct {
	account enum.AccountType
	env     exchange.Env
	stream  exchange.Stream
	seq     *obs.Sequence

	unsubscribe func()
}

var _ exchange.PublicConnector = (*Public)(nil)

// NewPublic accepts spot and futures account types, margin accounts share the spot market data.
func NewPublic(ctx context.Context, account enum.AccountType, env exchange.Env, opt exchange.Option) (*Public, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if account.IsMargin() || account.IsPortfolioMargin() {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "%s has no public stream, use a spot or future account type", account)
	}

	stream := opt.Stream
	if stream == nil {
		url := opt.StreamURL
		if len(url) == 0 {
			url = _streamURLs[account]
		}
		stream = exchange.NewWSStream(ctx, url)
	}

	return &Public{
		account: account,
		env:     env,
		stream:  stream,
		seq:     obs.NewSequence(0),
	}, nil
}

func (p *Public) Exchange() enum.Exchange {
	return enum.ExchangeBinance
}

func (p *Public) AccountType() enum.AccountType {
	return p.account
}

func (p *Public) Connect(ctx context.Context) error {
	if err := p.stream.Start(ctx); err != nil {
		return errors.Wrapf(err, "start %s public stream", p.account)
	}
	p.unsubscribe = p.stream.Observe(ctx, p.handle)
	logs.Infof("%s public stream connected", p.account)
	return nil
}

func (p *Public) Disconnect(_ context.Context) error {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.stream.Close()
	return nil
}

func (p *Public) SubscribeTrade(ctx context.Context, symbol string) error {
	return p.subscribe(ctx, symbol, "@trade")
}

func (p *Public) SubscribeBookL1(ctx context.Context, symbol string) error {
	return p.subscribe(ctx, symbol, "@bookTicker")
}

func (p *Public) SubscribeKline(ctx context.Context, symbol string, interval enum.KlineInterval) error {
	native, err := _klineIntervals.To(interval)
	if err != nil {
		return err
	}
	return p.subscribe(ctx, symbol, "@kline_"+native)
}

func (p *Public) SubscribeMarkPrice(ctx context.Context, symbol string) error {
	if !isFuture(p.account) {
		return errors.Wrapf(exception.ErrInvalidArgument, "mark price is not streamed on %s", p.account)
	}
	return p.subscribe(ctx, symbol, "@markPrice@1s")
}

// subscribe takes an unknown symbol as a native id, its frames are dropped unless the id is in the market table.
func (p *Public) subscribe(ctx context.Context, symbol, channel string) error {
	req := subscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{strings.ToLower(p.env.Markets.NativeID(symbol)) + channel},
		ID:     p.seq.Next(),
	}

	if err := p.stream.Request(ctx, req, subscribeAck(req.ID), true); err != nil {
		return errors.Wrapf(err, "subscribe %s", req.Params[0])
	}
	logs.Infof("%s subscribed %s", p.account, req.Params[0])
	return nil
}

func subscribeAck(id uint64) exchange.AckFunc {
	return func(frame []byte) (bool, error) {
		if scanner.HasField(frame, _keyEvent) {
			return false, nil
		}
		var resp subscribeResponse
		if err := sonic.ConfigFastest.Unmarshal(frame, &resp); err != nil {
			return false, nil
		}
		if resp.ID != id {
			return false, nil
		}
		if resp.Code != 0 || resp.Error != nil {
			return false, errors.Wrap(exception.ErrSubscribeRejected, string(frame))
		}
		return true, nil
	}
}

func (p *Public) handle(frame []byte) {
	event, ok := scanner.ScanStringField(frame, _keyEvent)
	if !ok {
		// spot book tickers carry no event type
		if scanner.HasField(frame, _keyUpdateID) {
			p.handleBookTicker(frame, true)
		}
		return
	}

	switch string(event) {
	case "trade":
		p.handleTrade(frame)
	case "bookTicker":
		p.handleBookTicker(frame, false)
	case "kline":
		p.handleKline(frame)
	case "markPriceUpdate":
		p.handleMarkPrice(frame)
	default:
		p.env.Metrics.IncDroppedFrame()
	}
}

func (p *Public) symbol(nativeID string) (string, bool) {
	s, ok := p.env.Markets.Symbol(nativeID + p.account.KindSuffix())
	if !ok {
		p.env.Metrics.IncDroppedFrame()
	}
	return s, ok
}

func (p *Public) publish(topic string, msg any) {
	p.env.Bus.Publish(topic, msg)
}

func (p *Public) handleTrade(frame []byte) {
	var f tradeFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s trade, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}
	symbol, ok := p.symbol(f.Symbol)
	if !ok {
		return
	}

	// the buyer is the maker when an aggressive seller hit the bid
	side := enum.OrderSideBuy
	if f.Maker {
		side = enum.OrderSideSell
	}

	p.publish(adapter.TopicTrade, adapter.Trade{
		Exchange:  enum.ExchangeBinance,
		Symbol:    symbol,
		Price:     exchange.Float(f.Price),
		Size:      exchange.Float(f.Quantity),
		Side:      side,
		Timestamp: f.TradeTime,
	})
}

func (p *Public) handleBookTicker(frame []byte, spot bool) {
	var f bookTickerFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s book ticker, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}
	symbol, ok := p.symbol(f.Symbol)
	if !ok {
		return
	}

	ts := f.EventTime
	if spot || ts == 0 {
		ts = p.env.Millis()
	}

	p.publish(adapter.TopicBookL1, adapter.BookL1{
		Exchange:  enum.ExchangeBinance,
		Symbol:    symbol,
		Bid:       exchange.Float(f.Bid),
		Ask:       exchange.Float(f.Ask),
		BidSize:   exchange.Float(f.BidSize),
		AskSize:   exchange.Float(f.AskSize),
		Timestamp: ts,
	})
}

func (p *Public) handleKline(frame []byte) {
	var f klineFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s kline, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}
	symbol, ok := p.symbol(f.Symbol)
	if !ok {
		return
	}
	interval, err := _klineIntervals.Parse(f.Kline.Interval)
	if err != nil {
		logs.Warnf("%s kline, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}

	p.publish(adapter.TopicKline, adapter.Kline{
		Exchange:  enum.ExchangeBinance,
		Symbol:    symbol,
		Interval:  interval,
		Open:      exchange.Float(f.Kline.OpenPrice),
		High:      exchange.Float(f.Kline.HighPrice),
		Low:       exchange.Float(f.Kline.LowPrice),
		Close:     exchange.Float(f.Kline.ClosePrice),
		Volume:    exchange.Float(f.Kline.Volume),
		Start:     f.Kline.Start,
		Timestamp: f.EventTime,
		Confirm:   f.Kline.Closed,
	})
}

func (p *Public) handleMarkPrice(frame []byte) {
	var f markPriceFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &f); err != nil {
		logs.Errorf("decode %s mark price, err: %+v", p.account, err)
		p.env.Metrics.IncDroppedFrame()
		return
	}
	symbol, ok := p.symbol(f.Symbol)
	if !ok {
		return
	}

	p.publish(adapter.TopicMarkPrice, adapter.MarkPrice{
		Exchange:  enum.ExchangeBinance,
		Symbol:    symbol,
		Price:     exchange.Float(f.MarkPrice),
		Timestamp: f.EventTime,
	})
	p.publish(adapter.TopicFundingRate, adapter.FundingRate{
		Exchange:        enum.ExchangeBinance,
		Symbol:          symbol,
		Rate:            exchange.Float(f.FundingRate),
		Timestamp:       f.EventTime,
		NextFundingTime: f.NextFundingTime,
	})
	p.publish(adapter.TopicIndexPrice, adapter.IndexPrice{
		Exchange:  enum.ExchangeBinance,
		Symbol:    symbol,
		Price:     exchange.Float(f.IndexPrice),
		Timestamp: f.EventTime,
	})
}
