package okx

import (
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
)

var (
	_sides = exchange.NewEnumMap("okx side", map[string]enum.OrderSide{
		"buy":  enum.OrderSideBuy,
		"sell": enum.OrderSideSell,
	})

	_statuses = exchange.NewEnumMap("okx order state", map[string]enum.OrderStatus{
		"live":             enum.OrderStatusAccepted,
		"partially_filled": enum.OrderStatusPartiallyFilled,
		"filled":           enum.OrderStatusFilled,
		"canceled":         enum.OrderStatusCanceled,
		"mmp_canceled":     enum.OrderStatusCanceled,
	}, "canceled")

	// states of conditional orders, a triggered order continues on the orders channel under the same algoClOrdId
	_algoStatuses = exchange.NewEnumMap("okx algo state", map[string]enum.OrderStatus{
		"live":                enum.OrderStatusAccepted,
		"pause":               enum.OrderStatusAccepted,
		"partially_effective": enum.OrderStatusAccepted,
		"effective":           enum.OrderStatusAccepted,
		"canceled":            enum.OrderStatusCanceled,
		"order_failed":        enum.OrderStatusFailed,
	}, "live")

	// fok and ioc orders with a price are limit orders with that time in force
	_orderTypes = exchange.NewEnumMap("okx order type", map[string]enum.OrderType{
		"market":    enum.OrderTypeMarket,
		"limit":     enum.OrderTypeLimit,
		"post_only": enum.OrderTypePostOnly,
		"fok":       enum.OrderTypeLimit,
		"ioc":       enum.OrderTypeLimit,
	}, "limit")

	_positionSides = exchange.NewEnumMap("okx position side", map[string]enum.PositionSide{
		"net":   enum.PositionSideFlat,
		"long":  enum.PositionSideLong,
		"short": enum.PositionSideShort,
	})

	_triggerTypes = exchange.NewEnumMap("okx trigger px type", map[string]enum.TriggerType{
		"last":  enum.TriggerTypeLastPrice,
		"mark":  enum.TriggerTypeMarkPrice,
		"index": enum.TriggerTypeIndexPrice,
	})

	// no 2h and 8h klines on okx
	_klineIntervals = exchange.NewEnumMap("okx kline interval", map[string]enum.KlineInterval{
		"candle1s":  enum.KlineInterval1s,
		"candle1m":  enum.KlineInterval1m,
		"candle3m":  enum.KlineInterval3m,
		"candle5m":  enum.KlineInterval5m,
		"candle15m": enum.KlineInterval15m,
		"candle30m": enum.KlineInterval30m,
		"candle1H":  enum.KlineInterval1h,
		"candle4H":  enum.KlineInterval4h,
		"candle6H":  enum.KlineInterval6h,
		"candle12H": enum.KlineInterval12h,
		"candle1D":  enum.KlineInterval1d,
		"candle3D":  enum.KlineInterval3d,
		"candle1W":  enum.KlineInterval1w,
		"candle1M":  enum.KlineInterval1M,
	})
)

func parseTimeInForce(ordType string) enum.OrderTimeInForce {
	switch ordType {
	case "fok":
		return enum.OrderTimeInForceFOK
	case "ioc":
		return enum.OrderTimeInForceIOC
	default:
		return enum.OrderTimeInForceGTC
	}
}

// orderType folds the order type and the time in force into the okx ordType.
func orderType(typ enum.OrderType, tif enum.OrderTimeInForce) (string, error) {
	switch {
	case typ == enum.OrderTypePostOnly:
		return "post_only", nil
	case typ.IsMarket():
		return "market", nil
	case typ.IsLimit():
		switch tif {
		case enum.OrderTimeInForceFOK:
			return "fok", nil
		case enum.OrderTimeInForceIOC:
			return "ioc", nil
		default:
			return "limit", nil
		}
	default:
		return _orderTypes.To(typ)
	}
}
