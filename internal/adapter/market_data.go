package adapter

import "nexus/internal/adapter/enum"

// Bus topics of canonical market data.
const (
	TopicTrade       = "trade"
	TopicBookL1      = "bookl1"
	TopicKline       = "kline"
	TopicMarkPrice   = "mark_price"
	TopicFundingRate = "funding_rate"
	TopicIndexPrice  = "index_price"
)

type Trade struct {
	Exchange  enum.Exchange
	Symbol    string
	Price     float64
	Size      float64
	Side      enum.OrderSide
	Timestamp int64
}

type BookL1 struct {
	Exchange  enum.Exchange
	Symbol    string
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
	Timestamp int64
}

func (b BookL1) Mid() float64 {
	return (b.Bid + b.Ask) / 2
}

func (b BookL1) Key() Key {
	return Key{Exchange: b.Exchange, Symbol: b.Symbol}
}

type Kline struct {
	Exchange  enum.Exchange
	Symbol    string
	Interval  enum.KlineInterval
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Start     int64
	Timestamp int64
	Confirm   bool
}

type MarkPrice struct {
	Exchange  enum.Exchange
	Symbol    string
	Price     float64
	Timestamp int64
}

type FundingRate struct {
	Exchange        enum.Exchange
	Symbol          string
	Rate            float64
	Timestamp       int64
	NextFundingTime int64
}

type IndexPrice struct {
	Exchange  enum.Exchange
	Symbol    string
	Price     float64
	Timestamp int64
}
