// Package okx connects the v5 public, business and private streams and the trading REST api of OKX.
package okx

import (
	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	_headerKey        = "OK-ACCESS-KEY"
	_headerSign       = "OK-ACCESS-SIGN"
	_headerTimestamp  = "OK-ACCESS-TIMESTAMP"
	_headerPassphrase = "OK-ACCESS-PASSPHRASE"
	_headerSimulated  = "x-simulated-trading"

	_timestampLayout = "2006-01-02T15:04:05.000Z"

	_pathPublic   = "/v5/public"
	_pathBusiness = "/v5/business"
	_pathPrivate  = "/v5/private"

	_accountBalance = "/api/v5/account/balance"
	_positions      = "/api/v5/account/positions"
	_order          = "/api/v5/trade/order"
	_cancelOrder    = "/api/v5/trade/cancel-order"
	_algoOrder      = "/api/v5/trade/order-algo"
	_cancelAlgos    = "/api/v5/trade/cancel-algos"

	_tdCash  = "cash"
	_tdCross = "cross"

	// _marketPrice as an algo order price executes the triggered order at market
	_marketPrice = "-1"
)

var _restURLs = map[enum.AccountType]string{
	enum.AccountOKXLive: "https://www.okx.com",
	enum.AccountOKXAWS:  "https://aws.okx.com",
	enum.AccountOKXDemo: "https://www.okx.com",
}

var _streamURLs = map[enum.AccountType]string{
	enum.AccountOKXLive: "wss://ws.okx.com:8443/ws",
	enum.AccountOKXAWS:  "wss://wsaws.okx.com:8443/ws",
	enum.AccountOKXDemo: "wss://wspap.okx.com:8443/ws",
}

func checkAccount(account enum.AccountType) error {
	if account.Exchange() != enum.ExchangeOKX {
		return errors.Wrapf(exception.ErrEngineBuild, "%s is not an okx account type", account)
	}
	return nil
}
