package bybit

import (
	"bytes"
	"context"
	"strings"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/internal/task"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	_prefixTrade  = []byte("publicTrade.")
	_prefixBook   = []byte("orderbook.1.")
	_prefixKline  = []byte("kline.")
	_prefixTicker = []byte("tickers.")
)

// Public streams the market data of one bybit category.
type Public struct {
	account enum.AccountType
	env     exchange.Env
	stream  exchange.Stream
	seq     *obs.Sequence

	unsubscribe func()
	heartbeatTk *task.Handle

	// last level 1 book per native symbol, deltas only carry the side that changed.
	// Touched by the stream goroutine only.
	books map[string]adapter.BookL1
}

var _ exchange.PublicConnector = (*Public)(nil)

// NewPublic accepts the spot, linear and inverse account types, the unified account has no public stream.
func NewPublic(ctx context.Context, account enum.AccountType, env exchange.Env, opt exchange.Option) (*Public, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if account.IsUnified() {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "%s is not allowed as a public connector", account)
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
		books:   make(map[string]adapter.BookL1),
	}, nil
}

func (p *Public) Exchange() enum.Exchange {
	return enum.ExchangeBybit
}

func (p *Public) AccountType() enum.AccountType {
	return p.account
}

func (p *Public) Connect(ctx context.Context) error {
	if err := p.stream.Start(ctx); err != nil {
		return errors.Wrapf(err, "start %s public stream", p.account)
	}
	p.unsubscribe = p.stream.Observe(ctx, p.handle)

	tasks := p.env.Tasks
	if tasks == nil {
		tasks = task.NewManager(ctx)
	}
	p.heartbeatTk = tasks.Go(p.account.String()+".public.heartbeat", heartbeat(p.stream, p.seq, _pingInterval, func(failures int, err error) {
		logs.Warnf("%s public ping failed %d times, err: %+v", p.account, failures, err)
	}))

	logs.Infof("%s public stream connected", p.account)
	return nil
}

func (p *Public) Disconnect(_ context.Context) error {
	if p.heartbeatTk != nil {
		p.heartbeatTk.Cancel()
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.stream.Close()
	return nil
}

func (p *Public) SubscribeTrade(ctx context.Context, symbol string) error {
	return p.subscribe(ctx, symbol, "publicTrade.")
}

func (p *Public) SubscribeBookL1(ctx context.Context, symbol string) error {
	return p.subscribe(ctx, symbol, "orderbook.1.")
}

func (p *Public) SubscribeKline(ctx context.Context, symbol string, interval enum.KlineInterval) error {
	native, err := _klineIntervals.To(interval)
	if err != nil {
		return err
	}
	return p.subscribe(ctx, symbol, "kline."+native+".")
}

func (p *Public) SubscribeMarkPrice(ctx context.Context, symbol string) error {
	if p.account.IsSpot() {
		return errors.Wrapf(exception.ErrInvalidArgument, "mark price is not streamed on %s", p.account)
	}
	return p.subscribe(ctx, symbol, "tickers.")
}

// subscribe takes an unknown symbol as a native id.
func (p *Public) subscribe(ctx context.Context, symbol, prefix string) error {
	topic := prefix + p.env.Markets.NativeID(symbol)
	req := subscribeRequest(p.seq, topic)
	if err := p.stream.Request(ctx, req, subscribeAck(req.ReqID), true); err != nil {
		return errors.Wrapf(err, "subscribe %s", topic)
	}
	logs.Infof("%s subscribed %s", p.account, topic)
	return nil
}

func (p *Public) handle(frame []byte) {
	topic, ok := scanner.ScanStringField(frame, _keyTopic)
	if !ok {
		// op acknowledgments
		return
	}

	switch {
	case bytes.HasPrefix(topic, _prefixTrade):
		p.handleTrade(frame)
	case bytes.HasPrefix(topic, _prefixBook):
		p.handleBook(frame)
	case bytes.HasPrefix(topic, _prefixKline):
		p.handleKline(frame, string(topic))
	case bytes.HasPrefix(topic, _prefixTicker):
		p.handleTicker(frame)
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

func (p *Public) dropped(kind string, err error) {
	logs.Errorf("decode %s %s, err: %+v", p.account, kind, err)
	p.env.Metrics.IncDroppedFrame()
}

func (p *Public) handleTrade(raw []byte) {
	var f frame[[]tradeData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("trade", err)
		return
	}

	for _, d := range f.Data {
		symbol, ok := p.symbol(d.Symbol)
		if !ok {
			continue
		}
		side, err := _sides.Parse(d.Side)
		if err != nil {
			p.dropped("trade", err)
			continue
		}
		p.env.Bus.Publish(adapter.TopicTrade, adapter.Trade{
			Exchange:  enum.ExchangeBybit,
			Symbol:    symbol,
			Price:     exchange.Float(d.Price),
			Size:      exchange.Float(d.Size),
			Side:      side,
			Timestamp: d.Timestamp,
		})
	}
}

func (p *Public) handleBook(raw []byte) {
	var f frame[bookData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("orderbook", err)
		return
	}
	symbol, ok := p.symbol(f.Data.Symbol)
	if !ok {
		return
	}

	book := p.books[f.Data.Symbol]
	if f.Type == "snapshot" {
		book = adapter.BookL1{}
	}
	book.Exchange = enum.ExchangeBybit
	book.Symbol = symbol
	book.Timestamp = f.Ts
	if len(f.Data.Bids) != 0 {
		book.Bid = exchange.Float(f.Data.Bids[0][0])
		book.BidSize = exchange.Float(f.Data.Bids[0][1])
	}
	if len(f.Data.Asks) != 0 {
		book.Ask = exchange.Float(f.Data.Asks[0][0])
		book.AskSize = exchange.Float(f.Data.Asks[0][1])
	}
	p.books[f.Data.Symbol] = book

	p.env.Bus.Publish(adapter.TopicBookL1, book)
}

func (p *Public) handleKline(raw []byte, topic string) {
	var f frame[[]klineData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("kline", err)
		return
	}

	// kline.<interval>.<symbol>
	nativeID := topic[strings.LastIndexByte(topic, '.')+1:]
	symbol, ok := p.symbol(nativeID)
	if !ok {
		return
	}

	for _, d := range f.Data {
		interval, err := _klineIntervals.Parse(d.Interval)
		if err != nil {
			p.dropped("kline", err)
			continue
		}
		p.env.Bus.Publish(adapter.TopicKline, adapter.Kline{
			Exchange:  enum.ExchangeBybit,
			Symbol:    symbol,
			Interval:  interval,
			Open:      exchange.Float(d.Open),
			High:      exchange.Float(d.High),
			Low:       exchange.Float(d.Low),
			Close:     exchange.Float(d.Close),
			Volume:    exchange.Float(d.Volume),
			Start:     d.Start,
			Timestamp: d.Timestamp,
			Confirm:   d.Confirm,
		})
	}
}

func (p *Public) handleTicker(raw []byte) {
	var f frame[tickerData]
	if err := sonic.ConfigFastest.Unmarshal(raw, &f); err != nil {
		p.dropped("ticker", err)
		return
	}
	symbol, ok := p.symbol(f.Data.Symbol)
	if !ok {
		return
	}

	if len(f.Data.MarkPrice) != 0 {
		p.env.Bus.Publish(adapter.TopicMarkPrice, adapter.MarkPrice{
			Exchange:  enum.ExchangeBybit,
			Symbol:    symbol,
			Price:     exchange.Float(f.Data.MarkPrice),
			Timestamp: f.Ts,
		})
	}
	if len(f.Data.FundingRate) != 0 {
		p.env.Bus.Publish(adapter.TopicFundingRate, adapter.FundingRate{
			Exchange:        enum.ExchangeBybit,
			Symbol:          symbol,
			Rate:            exchange.Float(f.Data.FundingRate),
			Timestamp:       f.Ts,
			NextFundingTime: exchange.Int(f.Data.NextFundingTime),
		})
	}
	if len(f.Data.IndexPrice) != 0 {
		p.env.Bus.Publish(adapter.TopicIndexPrice, adapter.IndexPrice{
			Exchange:  enum.ExchangeBybit,
			Symbol:    symbol,
			Price:     exchange.Float(f.Data.IndexPrice),
			Timestamp: f.Ts,
		})
	}
}
