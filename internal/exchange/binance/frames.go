package binance

// REST responses.

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avgPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	StopPrice     string `json:"stopPrice"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	TimeInForce   string `json:"timeInForce"`
	PositionSide  string `json:"positionSide"`
	ReduceOnly    bool   `json:"reduceOnly"`
	UpdateTime    int64  `json:"updateTime"`
	TransactTime  int64  `json:"transactTime"`
}

func (r orderResponse) timestamp() int64 {
	if r.UpdateTime != 0 {
		return r.UpdateTime
	}
	return r.TransactTime
}

type assetBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type spotAccountResponse struct {
	Balances []assetBalance `json:"balances"`
}

type marginAccountResponse struct {
	UserAssets []assetBalance `json:"userAssets"`
}

type isolatedAccountResponse struct {
	Assets []struct {
		Symbol     string       `json:"symbol"`
		BaseAsset  assetBalance `json:"baseAsset"`
		QuoteAsset assetBalance `json:"quoteAsset"`
	} `json:"assets"`
}

type futureAccountResponse struct {
	Assets []struct {
		Asset            string `json:"asset"`
		WalletBalance    string `json:"walletBalance"`
		AvailableBalance string `json:"availableBalance"`
	} `json:"assets"`
	Positions []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		UnrealizedProfit string `json:"unrealizedProfit"`
		PositionSide     string `json:"positionSide"`
	} `json:"positions"`
}

// User stream events. Case colliding keys are declared in pairs, see public.go.

type futureOrderUpdateFrame struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	TransTime    int64  `json:"T"`
	BusinessUnit string `json:"fs"`
	Order        struct {
		Symbol         string `json:"s"`
		ClientOrderID  string `json:"c"`
		Side           string `json:"S"`
		Type           string `json:"o"`
		TimeInForce    string `json:"f"`
		Quantity       string `json:"q"`
		Price          string `json:"p"`
		AvgPrice       string `json:"ap"`
		StopPrice      string `json:"sp"`
		ExecutionType  string `json:"x"`
		Status         string `json:"X"`
		OrderID        int64  `json:"i"`
		LastFilled     string `json:"l"`
		Filled         string `json:"z"`
		LastPrice      string `json:"L"`
		FeeAsset       string `json:"N"`
		Fee            string `json:"n"`
		TradeTime      int64  `json:"T"`
		TradeID        int64  `json:"t"`
		Maker          bool   `json:"m"`
		ReduceOnly     bool   `json:"R"`
		WorkingType    string `json:"wt"`
		PositionSide   string `json:"ps"`
		RealizedProfit string `json:"rp"`
	} `json:"o"`
}

type executionReportFrame struct {
	EventType         string `json:"e"`
	EventTime         int64  `json:"E"`
	Symbol            string `json:"s"`
	Side              string `json:"S"`
	ClientOrderID     string `json:"c"`
	OrigClientOrderID string `json:"C"`
	Type              string `json:"o"`
	CreatedTime       int64  `json:"O"`
	TimeInForce       string `json:"f"`
	IcebergQty        string `json:"F"`
	Quantity          string `json:"q"`
	QuoteQty          string `json:"Q"`
	Price             string `json:"p"`
	StopPrice         string `json:"P"`
	ExecutionType     string `json:"x"`
	Status            string `json:"X"`
	OrderID           int64  `json:"i"`
	Ignore            any    `json:"I"`
	LastFilled        string `json:"l"`
	LastPrice         string `json:"L"`
	Filled            string `json:"z"`
	CumQuote          string `json:"Z"`
	Fee               string `json:"n"`
	FeeAsset          string `json:"N"`
	TradeID           int64  `json:"t"`
	TransactTime      int64  `json:"T"`
	OnBook            bool   `json:"w"`
	WorkingTime       int64  `json:"W"`
	Maker             bool   `json:"m"`
	IgnoreM           any    `json:"M"`
	PreventedMatchID  any    `json:"v"`
	SelfTradeMode     string `json:"V"`
	LastQuote         string `json:"Y"`
	RejectReason      string `json:"r"`
	OrderListID       int64  `json:"g"`
}

type accountUpdateFrame struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	TransTime    int64  `json:"T"`
	BusinessUnit string `json:"fs"`
	Data         struct {
		Reason   string `json:"m"`
		Balances []struct {
			Asset         string `json:"a"`
			WalletBalance string `json:"wb"`
			CrossWallet   string `json:"cw"`
			BalanceChange string `json:"bc"`
		} `json:"B"`
		Positions []struct {
			Symbol        string `json:"s"`
			Amount        string `json:"pa"`
			EntryPrice    string `json:"ep"`
			BreakEven     string `json:"bep"`
			Realized      string `json:"cr"`
			UnrealizedPnl string `json:"up"`
			MarginType    string `json:"mt"`
			IsolatedWB    string `json:"iw"`
			PositionSide  string `json:"ps"`
		} `json:"P"`
	} `json:"a"`
}

type accountPositionFrame struct {
	EventType  string `json:"e"`
	EventTime  int64  `json:"E"`
	LastUpdate int64  `json:"u"`
	Balances   []struct {
		Asset  string `json:"a"`
		Free   string `json:"f"`
		Locked string `json:"l"`
	} `json:"B"`
}
