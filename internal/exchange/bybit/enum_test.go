package bybit

import (
	"testing"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/stretchr/testify/require"
)

func roundTrip[N comparable, C comparable](t *testing.T, name string, canonicals []C, to func(C) (N, error), parse func(N) (C, error)) {
	t.Helper()
	require.NotEmpty(t, canonicals, name)
	for _, c := range canonicals {
		n, err := to(c)
		require.NoError(t, err, name)
		again, err := parse(n)
		require.NoError(t, err, name)
		if again != c {
			t.Fatalf("%s round trip mismatch! should be %v but got %v", name, c, again)
		}
	}
}

func TestEnumRoundTrip(t *testing.T) {
	roundTrip(t, "side", _sides.Canonicals(), _sides.To, _sides.Parse)
	roundTrip(t, "status", _statuses.Canonicals(), _statuses.To, _statuses.Parse)
	roundTrip(t, "time in force", _timeInForces.Canonicals(), _timeInForces.To, _timeInForces.Parse)
	roundTrip(t, "order type", _orderTypes.Canonicals(), _orderTypes.To, _orderTypes.Parse)
	roundTrip(t, "position idx", _positionIdx.Canonicals(), _positionIdx.To, _positionIdx.Parse)
	roundTrip(t, "trigger by", _triggerTypes.Canonicals(), _triggerTypes.To, _triggerTypes.Parse)
	roundTrip(t, "category", _categories.Canonicals(), _categories.To, _categories.Parse)
	roundTrip(t, "kline", _klineIntervals.Canonicals(), _klineIntervals.To, _klineIntervals.Parse)
}

func TestKlineGaps(t *testing.T) {
	for _, interval := range []enum.KlineInterval{enum.KlineInterval1s, enum.KlineInterval8h, enum.KlineInterval3d} {
		_, err := _klineIntervals.To(interval)
		require.ErrorIs(t, err, exception.ErrUnsupportedMapping, interval.String())
	}
}

func TestParseOrderType(t *testing.T) {
	testCases := []struct {
		desc      string
		orderType string
		tif       string
		stopType  string
		expected  enum.OrderType
	}{
		{"limit", "Limit", "GTC", "", enum.OrderTypeLimit},
		{"post only", "Limit", "PostOnly", "", enum.OrderTypePostOnly},
		{"market", "Market", "IOC", "", enum.OrderTypeMarket},
		{"stop market", "Market", "IOC", "StopLoss", enum.OrderTypeStopLossMarket},
		{"conditional stop limit", "Limit", "GTC", "Stop", enum.OrderTypeStopLossLimit},
		{"partial take profit", "Limit", "GTC", "PartialTakeProfit", enum.OrderTypeTakeProfitLimit},
		{"take profit market", "Market", "IOC", "TakeProfit", enum.OrderTypeTakeProfitMarket},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			typ, err := parseOrderType(tc.orderType, tc.tif, tc.stopType)
			require.NoError(t, err)
			if typ != tc.expected {
				t.Fatalf("type mismatch! should be %s but got %s", tc.expected, typ)
			}
		})
	}

	_, err := parseOrderType("Iceberg", "GTC", "")
	require.ErrorIs(t, err, exception.ErrUnsupportedMapping)
}

func TestOrderType(t *testing.T) {
	testCases := []struct {
		desc        string
		typ         enum.OrderType
		tif         enum.OrderTimeInForce
		expectedTyp string
		expectedTIF string
	}{
		{"limit", enum.OrderTypeLimit, enum.OrderTimeInForceFOK, "Limit", "FOK"},
		{"post only", enum.OrderTypePostOnly, enum.OrderTimeInForceGTC, "Limit", "PostOnly"},
		{"market", enum.OrderTypeMarket, enum.OrderTimeInForceGTC, "Market", ""},
		{"stop limit", enum.OrderTypeStopLossLimit, enum.OrderTimeInForceGTC, "Limit", "GTC"},
		{"take profit market", enum.OrderTypeTakeProfitMarket, enum.OrderTimeInForceGTC, "Market", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			typ, tif, err := orderType(tc.typ, tc.tif)
			require.NoError(t, err)
			if typ != tc.expectedTyp {
				t.Fatalf("type mismatch! should be %s but got %s", tc.expectedTyp, typ)
			}
			if tif != tc.expectedTIF {
				t.Fatalf("time in force mismatch! should be %s but got %s", tc.expectedTIF, tif)
			}
		})
	}
}

func TestTriggerDirection(t *testing.T) {
	testCases := []struct {
		desc     string
		typ      enum.OrderType
		side     enum.OrderSide
		expected int
	}{
		{"stop loss of a short", enum.OrderTypeStopLossMarket, enum.OrderSideBuy, 1},
		{"stop loss of a long", enum.OrderTypeStopLossMarket, enum.OrderSideSell, 2},
		{"take profit of a long", enum.OrderTypeTakeProfitLimit, enum.OrderSideSell, 1},
		{"take profit of a short", enum.OrderTypeTakeProfitLimit, enum.OrderSideBuy, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if d := triggerDirection(tc.typ, tc.side); d != tc.expected {
				t.Fatalf("direction mismatch! should be %d but got %d", tc.expected, d)
			}
		})
	}
}
