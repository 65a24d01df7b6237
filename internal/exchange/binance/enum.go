package binance

import (
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
)

var (
	_sides = exchange.NewEnumMap("binance side", map[string]enum.OrderSide{
		"BUY":  enum.OrderSideBuy,
		"SELL": enum.OrderSideSell,
	})

	_statuses = exchange.NewEnumMap("binance order status", map[string]enum.OrderStatus{
		"NEW":              enum.OrderStatusAccepted,
		"PARTIALLY_FILLED": enum.OrderStatusPartiallyFilled,
		"FILLED":           enum.OrderStatusFilled,
		"CANCELED":         enum.OrderStatusCanceled,
		"EXPIRED":          enum.OrderStatusExpired,
		"EXPIRED_IN_MATCH": enum.OrderStatusExpired,
		"REJECTED":         enum.OrderStatusFailed,
	}, "EXPIRED")

	_timeInForces = exchange.NewEnumMap("binance time in force", map[string]enum.OrderTimeInForce{
		"GTC": enum.OrderTimeInForceGTC,
		"IOC": enum.OrderTimeInForceIOC,
		"FOK": enum.OrderTimeInForceFOK,
	})

	_positionSides = exchange.NewEnumMap("binance position side", map[string]enum.PositionSide{
		"LONG":  enum.PositionSideLong,
		"SHORT": enum.PositionSideShort,
		"BOTH":  enum.PositionSideFlat,
	})

	_workingTypes = exchange.NewEnumMap("binance working type", map[string]enum.TriggerType{
		"CONTRACT_PRICE": enum.TriggerTypeLastPrice,
		"MARK_PRICE":     enum.TriggerTypeMarkPrice,
	})

	// the same native name means different things on spot and futures, e.g. TAKE_PROFIT.
	_spotTypes = exchange.NewEnumMap("binance spot order type", map[string]enum.OrderType{
		"LIMIT":             enum.OrderTypeLimit,
		"MARKET":            enum.OrderTypeMarket,
		"LIMIT_MAKER":       enum.OrderTypePostOnly,
		"STOP_LOSS":         enum.OrderTypeStopLossMarket,
		"STOP_LOSS_LIMIT":   enum.OrderTypeStopLossLimit,
		"TAKE_PROFIT":       enum.OrderTypeTakeProfitMarket,
		"TAKE_PROFIT_LIMIT": enum.OrderTypeTakeProfitLimit,
	})

	_futureTypes = exchange.NewEnumMap("binance future order type", map[string]enum.OrderType{
		"LIMIT":              enum.OrderTypeLimit,
		"MARKET":             enum.OrderTypeMarket,
		"STOP_MARKET":        enum.OrderTypeStopLossMarket,
		"STOP":               enum.OrderTypeStopLossLimit,
		"TAKE_PROFIT_MARKET": enum.OrderTypeTakeProfitMarket,
		"TAKE_PROFIT":        enum.OrderTypeTakeProfitLimit,
	})

	_klineIntervals = exchange.NewEnumMap("binance kline interval", map[string]enum.KlineInterval{
		"1s":  enum.KlineInterval1s,
		"1m":  enum.KlineInterval1m,
		"3m":  enum.KlineInterval3m,
		"5m":  enum.KlineInterval5m,
		"15m": enum.KlineInterval15m,
		"30m": enum.KlineInterval30m,
		"1h":  enum.KlineInterval1h,
		"2h":  enum.KlineInterval2h,
		"4h":  enum.KlineInterval4h,
		"6h":  enum.KlineInterval6h,
		"8h":  enum.KlineInterval8h,
		"12h": enum.KlineInterval12h,
		"1d":  enum.KlineInterval1d,
		"3d":  enum.KlineInterval3d,
		"1w":  enum.KlineInterval1w,
		"1M":  enum.KlineInterval1M,
	})
)

const _futurePostOnlyTIF = "GTX"

// parseFutureType maps a futures order type, a LIMIT order with GTX is post only.
func parseFutureType(typ, tif string) (enum.OrderType, error) {
	t, err := _futureTypes.Parse(typ)
	if err != nil {
		return t, err
	}
	if t == enum.OrderTypeLimit && tif == _futurePostOnlyTIF {
		return enum.OrderTypePostOnly, nil
	}
	return t, nil
}

// parseTimeInForce maps GTX, the futures post only flag, to GTC.
func parseTimeInForce(tif string) (enum.OrderTimeInForce, error) {
	if tif == _futurePostOnlyTIF {
		return enum.OrderTimeInForceGTC, nil
	}
	return _timeInForces.Parse(tif)
}

// orderType returns the native type and time in force of an order, spot for spot and margin markets.
// An empty time in force means the parameter is not sent.
func orderType(spot bool, typ enum.OrderType, tif enum.OrderTimeInForce) (string, string, error) {
	if spot {
		native, err := _spotTypes.To(typ)
		if err != nil {
			return "", "", err
		}
		if typ == enum.OrderTypePostOnly || !typ.IsLimit() {
			return native, "", nil
		}
		t, err := _timeInForces.To(tif)
		return native, t, err
	}

	if typ == enum.OrderTypePostOnly {
		return "LIMIT", _futurePostOnlyTIF, nil
	}
	native, err := _futureTypes.To(typ)
	if err != nil {
		return "", "", err
	}
	if !typ.IsLimit() {
		return native, "", nil
	}
	t, err := _timeInForces.To(tif)
	return native, t, err
}
