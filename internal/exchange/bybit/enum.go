package bybit

import (
	"strings"

	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
)

var (
	_sides = exchange.NewEnumMap("bybit side", map[string]enum.OrderSide{
		"Buy":  enum.OrderSideBuy,
		"Sell": enum.OrderSideSell,
	})

	_statuses = exchange.NewEnumMap("bybit order status", map[string]enum.OrderStatus{
		"New":                     enum.OrderStatusAccepted,
		"Untriggered":             enum.OrderStatusAccepted,
		"Triggered":               enum.OrderStatusAccepted,
		"PartiallyFilled":         enum.OrderStatusPartiallyFilled,
		"Filled":                  enum.OrderStatusFilled,
		"Cancelled":               enum.OrderStatusCanceled,
		"PartiallyFilledCanceled": enum.OrderStatusCanceled,
		"Deactivated":             enum.OrderStatusCanceled,
		"Rejected":                enum.OrderStatusFailed,
	}, "New", "Cancelled")

	_timeInForces = exchange.NewEnumMap("bybit time in force", map[string]enum.OrderTimeInForce{
		"GTC": enum.OrderTimeInForceGTC,
		"IOC": enum.OrderTimeInForceIOC,
		"FOK": enum.OrderTimeInForceFOK,
	})

	_orderTypes = exchange.NewEnumMap("bybit order type", map[string]enum.OrderType{
		"Limit":  enum.OrderTypeLimit,
		"Market": enum.OrderTypeMarket,
	})

	// positionIdx: 0 one way mode, 1 hedge mode buy side, 2 hedge mode sell side
	_positionIdx = exchange.NewEnumMap("bybit position idx", map[int]enum.PositionSide{
		0: enum.PositionSideFlat,
		1: enum.PositionSideLong,
		2: enum.PositionSideShort,
	})

	_triggerTypes = exchange.NewEnumMap("bybit trigger by", map[string]enum.TriggerType{
		"LastPrice":  enum.TriggerTypeLastPrice,
		"MarkPrice":  enum.TriggerTypeMarkPrice,
		"IndexPrice": enum.TriggerTypeIndexPrice,
	})

	_categories = exchange.NewEnumMap("bybit category", map[string]enum.InstrumentKind{
		"spot":    enum.InstrumentKindSpot,
		"linear":  enum.InstrumentKindLinear,
		"inverse": enum.InstrumentKindInverse,
		"option":  enum.InstrumentKindOption,
	})

	// no 1s, 8h and 3d klines on bybit
	_klineIntervals = exchange.NewEnumMap("bybit kline interval", map[string]enum.KlineInterval{
		"1":   enum.KlineInterval1m,
		"3":   enum.KlineInterval3m,
		"5":   enum.KlineInterval5m,
		"15":  enum.KlineInterval15m,
		"30":  enum.KlineInterval30m,
		"60":  enum.KlineInterval1h,
		"120": enum.KlineInterval2h,
		"240": enum.KlineInterval4h,
		"360": enum.KlineInterval6h,
		"720": enum.KlineInterval12h,
		"D":   enum.KlineInterval1d,
		"W":   enum.KlineInterval1w,
		"M":   enum.KlineInterval1M,
	})
)

const _postOnly = "PostOnly"

// parseOrderType combines the order type, the PostOnly time in force and the stop order type.
func parseOrderType(orderType, tif, stopOrderType string) (enum.OrderType, error) {
	t, err := _orderTypes.Parse(orderType)
	if err != nil {
		return t, err
	}

	switch {
	case strings.Contains(stopOrderType, "TakeProfit"):
		if t == enum.OrderTypeMarket {
			return enum.OrderTypeTakeProfitMarket, nil
		}
		return enum.OrderTypeTakeProfitLimit, nil
	case strings.Contains(stopOrderType, "StopLoss"), stopOrderType == "Stop":
		if t == enum.OrderTypeMarket {
			return enum.OrderTypeStopLossMarket, nil
		}
		return enum.OrderTypeStopLossLimit, nil
	case t == enum.OrderTypeLimit && tif == _postOnly:
		return enum.OrderTypePostOnly, nil
	default:
		return t, nil
	}
}

func parseTimeInForce(tif string) (enum.OrderTimeInForce, error) {
	if tif == _postOnly {
		return enum.OrderTimeInForceGTC, nil
	}
	return _timeInForces.Parse(tif)
}

// orderType returns the native order type and time in force, an empty time in force is not sent.
func orderType(typ enum.OrderType, tif enum.OrderTimeInForce) (string, string, error) {
	switch {
	case typ == enum.OrderTypePostOnly:
		return "Limit", _postOnly, nil
	case typ.IsLimit():
		t, err := _timeInForces.To(tif)
		return "Limit", t, err
	case typ.IsMarket():
		return "Market", "", nil
	default:
		_, err := _orderTypes.To(typ)
		return "", "", err
	}
}

// triggerDirection is 1 when the order fires on a rising price and 2 on a falling one.
func triggerDirection(typ enum.OrderType, side enum.OrderSide) int {
	rising := typ.IsTakeProfit() == (side == enum.OrderSideSell)
	if rising {
		return 1
	}
	return 2
}
