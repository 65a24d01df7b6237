// Package binance connects the spot, margin, futures and portfolio margin accounts of Binance.
package binance

import (
	"time"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	_headerAPIKey = "X-MBX-APIKEY"
	_recvWindow   = "5000"

	_keepAliveInterval = 20 * time.Minute
	_keepAliveRetry    = 3
	_keepAlivePause    = 5 * time.Second
)

var _restURLs = map[enum.AccountType]string{
	enum.AccountBinanceSpot:               "https://api.binance.com",
	enum.AccountBinanceMargin:             "https://api.binance.com",
	enum.AccountBinanceIsolatedMargin:     "https://api.binance.com",
	enum.AccountBinanceUSDMFuture:         "https://fapi.binance.com",
	enum.AccountBinanceCoinMFuture:        "https://dapi.binance.com",
	enum.AccountBinancePortfolioMargin:    "https://papi.binance.com",
	enum.AccountBinanceSpotTestnet:        "https://testnet.binance.vision",
	enum.AccountBinanceUSDMFutureTestnet:  "https://testnet.binancefuture.com",
	enum.AccountBinanceCoinMFutureTestnet: "https://testnet.binancefuture.com",
}

var _streamURLs = map[enum.AccountType]string{
	enum.AccountBinanceSpot:               "wss://stream.binance.com:9443/ws",
	enum.AccountBinanceMargin:             "wss://stream.binance.com:9443/ws",
	enum.AccountBinanceIsolatedMargin:     "wss://stream.binance.com:9443/ws",
	enum.AccountBinanceUSDMFuture:         "wss://fstream.binance.com/ws",
	enum.AccountBinanceCoinMFuture:        "wss://dstream.binance.com/ws",
	enum.AccountBinancePortfolioMargin:    "wss://fstream.binance.com/pm/ws",
	enum.AccountBinanceSpotTestnet:        "wss://testnet.binance.vision/ws",
	enum.AccountBinanceUSDMFutureTestnet:  "wss://stream.binancefuture.com/ws",
	enum.AccountBinanceCoinMFutureTestnet: "wss://dstream.binancefuture.com/ws",
}

// endpoints are the REST paths of one account type.
type endpoints struct {
	order     string
	account   string
	listenKey string
}

var _endpoints = map[enum.AccountType]endpoints{
	enum.AccountBinanceSpot:               {"/api/v3/order", "/api/v3/account", "/api/v3/userDataStream"},
	enum.AccountBinanceSpotTestnet:        {"/api/v3/order", "/api/v3/account", "/api/v3/userDataStream"},
	enum.AccountBinanceMargin:             {"/sapi/v1/margin/order", "/sapi/v1/margin/account", "/sapi/v1/userDataStream"},
	enum.AccountBinanceIsolatedMargin:     {"/sapi/v1/margin/order", "/sapi/v1/margin/isolated/account", "/sapi/v1/userDataStream/isolated"},
	enum.AccountBinanceUSDMFuture:         {"/fapi/v1/order", "/fapi/v2/account", "/fapi/v1/listenKey"},
	enum.AccountBinanceUSDMFutureTestnet:  {"/fapi/v1/order", "/fapi/v2/account", "/fapi/v1/listenKey"},
	enum.AccountBinanceCoinMFuture:        {"/dapi/v1/order", "/dapi/v1/account", "/dapi/v1/listenKey"},
	enum.AccountBinanceCoinMFutureTestnet: {"/dapi/v1/order", "/dapi/v1/account", "/dapi/v1/listenKey"},
	enum.AccountBinancePortfolioMargin:    {"", "", "/papi/v1/listenKey"},
}

// Portfolio margin routes orders by market kind.
const (
	_pmMarginOrder  = "/papi/v1/margin/order"
	_pmLinearOrder  = "/papi/v1/um/order"
	_pmInverseOrder = "/papi/v1/cm/order"
)

func checkAccount(account enum.AccountType) error {
	if account.Exchange() != enum.ExchangeBinance {
		return errors.Wrapf(exception.ErrEngineBuild, "%s is not a binance account type", account)
	}
	return nil
}

// isFuture reports whether the account trades contracts through fapi or dapi.
func isFuture(account enum.AccountType) bool {
	return account.IsLinear() || account.IsInverse()
}
