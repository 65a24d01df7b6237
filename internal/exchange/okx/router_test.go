package okx

import (
	"testing"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/stretchr/testify/require"
)

func TestRouterRoute(t *testing.T) {
	spot := adapter.MustParseInstrumentID("BTC/USDT-OKX")
	swap := adapter.MustParseInstrumentID("BTC/USDT:USDT-OKX")

	r := NewRouter(enum.AccountBybitUnified, enum.AccountOKXDemo)
	for _, id := range []adapter.InstrumentID{spot, swap} {
		account, err := r.Route(id)
		require.NoError(t, err)
		if account != enum.AccountOKXDemo {
			t.Fatalf("account mismatch! should be %s but got %s", enum.AccountOKXDemo, account)
		}
	}

	_, err := NewRouter(enum.AccountBinanceSpot).Route(spot)
	require.ErrorIs(t, err, exception.ErrOrderNoAccount)
}

func TestDecodeError(t *testing.T) {
	require.NoError(t, decodeError(200, []byte(`{"code":"0","msg":"","data":[]}`)))

	err := decodeError(200, []byte(`{"code":"50011","msg":"Rate limit reached.","data":[]}`))
	require.ErrorIs(t, err, exception.ErrInResponseError)
	require.Contains(t, err.Error(), "Rate limit reached.")

	err = decodeError(401, []byte(`{"msg":"Invalid Sign","code":"50113"}`))
	require.ErrorIs(t, err, exception.ErrInResponseError)
}
