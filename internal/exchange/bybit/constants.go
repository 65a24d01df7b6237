// Package bybit connects the v5 public streams and the unified trading account of Bybit.
package bybit

import (
	"time"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	_headerAPIKey     = "X-BAPI-API-KEY"
	_headerTimestamp  = "X-BAPI-TIMESTAMP"
	_headerRecvWindow = "X-BAPI-RECV-WINDOW"
	_headerSign       = "X-BAPI-SIGN"
	_recvWindow       = "5000"

	_authExpire    = 10 * time.Second
	_pingInterval  = 20 * time.Second
	_accountType   = "UNIFIED"
	_orderCreate   = "/v5/order/create"
	_orderCancel   = "/v5/order/cancel"
	_walletBalance = "/v5/account/wallet-balance"
	_positionList  = "/v5/position/list"
)

var _restURLs = map[enum.AccountType]string{
	enum.AccountBybitUnified:        "https://api.bybit.com",
	enum.AccountBybitUnifiedTestnet: "https://api-testnet.bybit.com",
}

var _streamURLs = map[enum.AccountType]string{
	enum.AccountBybitSpot:           "wss://stream.bybit.com/v5/public/spot",
	enum.AccountBybitLinear:         "wss://stream.bybit.com/v5/public/linear",
	enum.AccountBybitInverse:        "wss://stream.bybit.com/v5/public/inverse",
	enum.AccountBybitSpotTestnet:    "wss://stream-testnet.bybit.com/v5/public/spot",
	enum.AccountBybitLinearTestnet:  "wss://stream-testnet.bybit.com/v5/public/linear",
	enum.AccountBybitInverseTestnet: "wss://stream-testnet.bybit.com/v5/public/inverse",
	enum.AccountBybitUnified:        "wss://stream.bybit.com/v5/private",
	enum.AccountBybitUnifiedTestnet: "wss://stream-testnet.bybit.com/v5/private",
}

var _privateTopics = []string{"order", "position", "wallet"}

func checkAccount(account enum.AccountType) error {
	if account.Exchange() != enum.ExchangeBybit {
		return errors.Wrapf(exception.ErrEngineBuild, "%s is not a bybit account type", account)
	}
	return nil
}
