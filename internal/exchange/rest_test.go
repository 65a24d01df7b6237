package exchange

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"nexus/internal/adapter/enum"
	"nexus/internal/obs"
	"nexus/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		assert.Equal(t, "symbol=BTCUSDT", r.URL.RawQuery)
		assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
		w.Write([]byte(`{"orderId":123,"status":"NEW"}`))
	}))
	defer server.Close()

	metrics := obs.NewMetrics()
	c := NewRestClient(enum.ExchangeBinance, server.URL, server.Client(), nil, metrics)

	var out struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	err := c.Do(t.Context(), Request{
		Method: http.MethodPost,
		Path:   "/api/v3/order",
		Query:  "symbol=BTCUSDT",
		Header: http.Header{"X-MBX-APIKEY": []string{"key"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(123), out.OrderID)
	assert.Equal(t, "NEW", out.Status)
	assert.Equal(t, uint64(1), metrics.Snapshot().RestLatency.Count)
}

func TestRestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1021,"msg":"Timestamp for this request is outside of the recvWindow."}`))
	}))
	defer server.Close()

	c := NewRestClient(enum.ExchangeBinance, server.URL, server.Client(), func(status int, body []byte) error {
		if status == http.StatusOK {
			return nil
		}
		return &APIError{Exchange: enum.ExchangeBinance, Status: status, Code: -1021, Message: string(body)}
	}, nil)

	err := c.Do(t.Context(), Request{Method: http.MethodGet, Path: "/api/v3/account"}, nil)
	require.ErrorIs(t, err, exception.ErrInResponseError)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.Retryable())
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestRestClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewRestClient(enum.ExchangeOKX, server.URL, server.Client(), nil, nil)
	err := c.Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, nil)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.False(t, apiErr.Retryable())
}

func TestRetryable(t *testing.T) {
	testCases := []struct {
		exchange enum.Exchange
		code     int64
		expected bool
	}{
		{enum.ExchangeBinance, -1003, true},
		{enum.ExchangeBinance, -2010, false},
		{enum.ExchangeBybit, 10006, true},
		{enum.ExchangeBybit, 110007, false},
		{enum.ExchangeOKX, 50011, true},
		{enum.ExchangeOKX, 51008, false},
	}

	for _, tc := range testCases {
		e := &APIError{Exchange: tc.exchange, Code: tc.code}
		if e.Retryable() != tc.expected {
			t.Fatalf("retryable mismatch! %s %d should be %t", tc.exchange, tc.code, tc.expected)
		}
	}
}

func TestSign(t *testing.T) {
	// https://developers.binance.com/docs/binance-spot-api-docs/rest-api/endpoint-security-type
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", SignHex(secret, payload))
}
