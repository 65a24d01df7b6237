package okx

type arg struct {
	Channel  string `json:"channel"`
	InstID   string `json:"instId,omitempty"`
	InstType string `json:"instType,omitempty"`
}

type opRequest struct {
	ID   string `json:"id,omitempty"`
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

type loginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

// eventFrame acknowledges login and subscribe requests, or reports an error.
type eventFrame struct {
	ID     string `json:"id"`
	Event  string `json:"event"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	Arg    arg    `json:"arg"`
	ConnID string `json:"connId"`
}

type frame[T any] struct {
	Arg  arg `json:"arg"`
	Data []T `json:"data"`
}

type tradeData struct {
	InstID  string `json:"instId"`
	TradeID string `json:"tradeId"`
	Px      string `json:"px"`
	Sz      string `json:"sz"`
	Side    string `json:"side"`
	Ts      string `json:"ts"`
}

// bboData levels are [price, size, deprecated, order count]
type bboData struct {
	Asks  [][]string `json:"asks"`
	Bids  [][]string `json:"bids"`
	Ts    string     `json:"ts"`
	SeqID int64      `json:"seqId"`
}

type markPriceData struct {
	InstType string `json:"instType"`
	InstID   string `json:"instId"`
	MarkPx   string `json:"markPx"`
	Ts       string `json:"ts"`
}

type fundingRateData struct {
	InstType        string `json:"instType"`
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	FundingTime     string `json:"fundingTime"`
	NextFundingTime string `json:"nextFundingTime"`
	Ts              string `json:"ts"`
}

type indexTickerData struct {
	InstID string `json:"instId"`
	IdxPx  string `json:"idxPx"`
	Ts     string `json:"ts"`
}

type orderData struct {
	InstType    string `json:"instType"`
	InstID      string `json:"instId"`
	OrdID       string `json:"ordId"`
	ClOrdID     string `json:"clOrdId"`
	AlgoClOrdID string `json:"algoClOrdId"`
	Px          string `json:"px"`
	Sz          string `json:"sz"`
	OrdType     string `json:"ordType"`
	Side        string `json:"side"`
	PosSide     string `json:"posSide"`
	TdMode      string `json:"tdMode"`
	FillPx      string `json:"fillPx"`
	FillSz      string `json:"fillSz"`
	AccFillSz   string `json:"accFillSz"`
	AvgPx       string `json:"avgPx"`
	State       string `json:"state"`
	Fee         string `json:"fee"`
	FeeCcy      string `json:"feeCcy"`
	ReduceOnly  string `json:"reduceOnly"`
	UTime       string `json:"uTime"`
	CTime       string `json:"cTime"`
}

type algoOrderData struct {
	InstType        string `json:"instType"`
	InstID          string `json:"instId"`
	AlgoID          string `json:"algoId"`
	AlgoClOrdID     string `json:"algoClOrdId"`
	OrdType         string `json:"ordType"`
	Side            string `json:"side"`
	PosSide         string `json:"posSide"`
	Sz              string `json:"sz"`
	State           string `json:"state"`
	SlTriggerPx     string `json:"slTriggerPx"`
	SlOrdPx         string `json:"slOrdPx"`
	SlTriggerPxType string `json:"slTriggerPxType"`
	TpTriggerPx     string `json:"tpTriggerPx"`
	TpOrdPx         string `json:"tpOrdPx"`
	TpTriggerPxType string `json:"tpTriggerPxType"`
	ReduceOnly      string `json:"reduceOnly"`
	UTime           string `json:"uTime"`
}

type balanceDetail struct {
	Ccy       string `json:"ccy"`
	CashBal   string `json:"cashBal"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
	Eq        string `json:"eq"`
}

type accountData struct {
	UTime   string          `json:"uTime"`
	Details []balanceDetail `json:"details"`
}

type positionData struct {
	InstType    string `json:"instType"`
	InstID      string `json:"instId"`
	Pos         string `json:"pos"`
	PosSide     string `json:"posSide"`
	AvgPx       string `json:"avgPx"`
	Upl         string `json:"upl"`
	RealizedPnl string `json:"realizedPnl"`
	UTime       string `json:"uTime"`
}

type orderResult struct {
	OrdID       string `json:"ordId"`
	ClOrdID     string `json:"clOrdId"`
	AlgoID      string `json:"algoId"`
	AlgoClOrdID string `json:"algoClOrdId"`
	Ts          string `json:"ts"`
	SCode       string `json:"sCode"`
	SMsg        string `json:"sMsg"`
}
