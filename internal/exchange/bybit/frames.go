package bybit

// opRequest is the payload of auth, subscribe and ping operations.
type opRequest struct {
	ReqID string `json:"req_id,omitempty"`
	Op    string `json:"op"`
	Args  []any  `json:"args,omitempty"`
}

// opResponse acknowledges an operation. Public pongs answer op "ping" with ret_msg "pong",
// the private stream answers with op "pong".
type opResponse struct {
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	ConnID  string `json:"conn_id"`
	ReqID   string `json:"req_id"`
	Op      string `json:"op"`
	Args    any    `json:"args"`
}

type frame[T any] struct {
	Topic        string `json:"topic"`
	Type         string `json:"type"`
	ID           string `json:"id"`
	Ts           int64  `json:"ts"`
	Cts          int64  `json:"cts"`
	CreationTime int64  `json:"creationTime"`
	Data         T      `json:"data"`
}

// trade fields differ only in case for s/S
type tradeData struct {
	Timestamp  int64  `json:"T"`
	Symbol     string `json:"s"`
	Side       string `json:"S"`
	Size       string `json:"v"`
	Price      string `json:"p"`
	Direction  string `json:"L"`
	TradeID    string `json:"i"`
	BlockTrade bool   `json:"BT"`
}

type bookData struct {
	Symbol   string      `json:"s"`
	Bids     [][2]string `json:"b"`
	Asks     [][2]string `json:"a"`
	UpdateID int64       `json:"u"`
	Seq      int64       `json:"seq"`
}

type klineData struct {
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Interval  string `json:"interval"`
	Open      string `json:"open"`
	Close     string `json:"close"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Volume    string `json:"volume"`
	Turnover  string `json:"turnover"`
	Confirm   bool   `json:"confirm"`
	Timestamp int64  `json:"timestamp"`
}

// tickerData deltas only carry the fields that changed.
type tickerData struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type orderData struct {
	Category      string `json:"category"`
	Symbol        string `json:"symbol"`
	OrderID       string `json:"orderId"`
	OrderLinkID   string `json:"orderLinkId"`
	Side          string `json:"side"`
	PositionIdx   int    `json:"positionIdx"`
	OrderStatus   string `json:"orderStatus"`
	RejectReason  string `json:"rejectReason"`
	AvgPrice      string `json:"avgPrice"`
	LeavesQty     string `json:"leavesQty"`
	Price         string `json:"price"`
	Qty           string `json:"qty"`
	CumExecQty    string `json:"cumExecQty"`
	CumExecValue  string `json:"cumExecValue"`
	CumExecFee    string `json:"cumExecFee"`
	FeeCurrency   string `json:"feeCurrency"`
	TimeInForce   string `json:"timeInForce"`
	OrderType     string `json:"orderType"`
	StopOrderType string `json:"stopOrderType"`
	TriggerPrice  string `json:"triggerPrice"`
	TriggerBy     string `json:"triggerBy"`
	ReduceOnly    bool   `json:"reduceOnly"`
	CreatedTime   string `json:"createdTime"`
	UpdatedTime   string `json:"updatedTime"`
}

type coinData struct {
	Coin          string `json:"coin"`
	WalletBalance string `json:"walletBalance"`
	Locked        string `json:"locked"`
}

type walletData struct {
	AccountType string     `json:"accountType"`
	Coin        []coinData `json:"coin"`
}

type positionData struct {
	Category       string `json:"category"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Size           string `json:"size"`
	PositionIdx    int    `json:"positionIdx"`
	EntryPrice     string `json:"entryPrice"`
	AvgPrice       string `json:"avgPrice"`
	UnrealisedPnl  string `json:"unrealisedPnl"`
	CumRealisedPnl string `json:"cumRealisedPnl"`
	UpdatedTime    string `json:"updatedTime"`
}

// entry returns the entry price, the REST list names it avgPrice.
func (p positionData) entry() string {
	if len(p.EntryPrice) != 0 {
		return p.EntryPrice
	}
	return p.AvgPrice
}

type walletResult struct {
	List []walletData `json:"list"`
}

type positionResult struct {
	Category       string         `json:"category"`
	List           []positionData `json:"list"`
	NextPageCursor string         `json:"nextPageCursor"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}
