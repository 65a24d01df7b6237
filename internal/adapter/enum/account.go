package enum

import "strings"

// AccountType is a concrete exchange sub account or market context.
type AccountType uint8

const (
	_account_type_beg AccountType = iota
	AccountBinanceSpot
	AccountBinanceMargin
	AccountBinanceIsolatedMargin
	AccountBinanceUSDMFuture
	AccountBinanceCoinMFuture
	AccountBinancePortfolioMargin
	AccountBinanceSpotTestnet
	AccountBinanceUSDMFutureTestnet
	AccountBinanceCoinMFutureTestnet
	AccountBybitSpot
	AccountBybitLinear
	AccountBybitInverse
	AccountBybitSpotTestnet
	AccountBybitLinearTestnet
	AccountBybitInverseTestnet
	AccountBybitUnified
	AccountBybitUnifiedTestnet
	AccountOKXLive
	AccountOKXAWS
	AccountOKXDemo
	_account_type_end
)

func (a AccountType) IsAvailable() bool {
	return a > _account_type_beg && a < _account_type_end
}

var _accountTypeNames = [...]string{
	AccountBinanceSpot:               "spot",
	AccountBinanceMargin:             "margin",
	AccountBinanceIsolatedMargin:     "isolated_margin",
	AccountBinanceUSDMFuture:         "usd_m_future",
	AccountBinanceCoinMFuture:        "coin_m_future",
	AccountBinancePortfolioMargin:    "portfolio_margin",
	AccountBinanceSpotTestnet:        "spot_testnet",
	AccountBinanceUSDMFutureTestnet:  "usd_m_future_testnet",
	AccountBinanceCoinMFutureTestnet: "coin_m_future_testnet",
	AccountBybitSpot:                 "spot",
	AccountBybitLinear:               "linear",
	AccountBybitInverse:              "inverse",
	AccountBybitSpotTestnet:          "spot_testnet",
	AccountBybitLinearTestnet:        "linear_testnet",
	AccountBybitInverseTestnet:       "inverse_testnet",
	AccountBybitUnified:              "unified",
	AccountBybitUnifiedTestnet:       "unified_testnet",
	AccountOKXLive:                   "live",
	AccountOKXAWS:                    "aws",
	AccountOKXDemo:                   "demo",
}

// Name is the account type name unique within its exchange.
func (a AccountType) Name() string {
	if !a.IsAvailable() {
		return ""
	}
	return _accountTypeNames[a]
}

// String renders the account type as "<exchange>.<name>".
func (a AccountType) String() string {
	if !a.IsAvailable() {
		return "unknown"
	}
	return a.Exchange().String() + "." + a.Name()
}

// ParseAccountType resolves a name such as "usd_m_future" on the given exchange.
func ParseAccountType(exchange Exchange, name string) (AccountType, bool) {
	name = strings.ToLower(name)
	for a := _account_type_beg + 1; a < _account_type_end; a++ {
		if a.Exchange() == exchange && _accountTypeNames[a] == name {
			return a, true
		}
	}
	return _account_type_beg, false
}

func (a AccountType) Exchange() Exchange {
	switch {
	case a >= AccountBinanceSpot && a <= AccountBinanceCoinMFutureTestnet:
		return ExchangeBinance
	case a >= AccountBybitSpot && a <= AccountBybitUnifiedTestnet:
		return ExchangeBybit
	case a >= AccountOKXLive && a <= AccountOKXDemo:
		return ExchangeOKX
	default:
		return _exchange_beg
	}
}

func (a AccountType) IsTestnet() bool {
	switch a {
	case AccountBinanceSpotTestnet, AccountBinanceUSDMFutureTestnet, AccountBinanceCoinMFutureTestnet,
		AccountBybitSpotTestnet, AccountBybitLinearTestnet, AccountBybitInverseTestnet, AccountBybitUnifiedTestnet,
		AccountOKXDemo:
		return true
	default:
		return false
	}
}

func (a AccountType) IsSpot() bool {
	switch a {
	case AccountBinanceSpot, AccountBinanceSpotTestnet, AccountBybitSpot, AccountBybitSpotTestnet:
		return true
	default:
		return false
	}
}

// IsMargin reports cross or isolated margin accounts.
func (a AccountType) IsMargin() bool {
	return a == AccountBinanceMargin || a == AccountBinanceIsolatedMargin
}

func (a AccountType) IsIsolatedMargin() bool {
	return a == AccountBinanceIsolatedMargin
}

func (a AccountType) IsLinear() bool {
	switch a {
	case AccountBinanceUSDMFuture, AccountBinanceUSDMFutureTestnet, AccountBybitLinear, AccountBybitLinearTestnet:
		return true
	default:
		return false
	}
}

func (a AccountType) IsInverse() bool {
	switch a {
	case AccountBinanceCoinMFuture, AccountBinanceCoinMFutureTestnet, AccountBybitInverse, AccountBybitInverseTestnet:
		return true
	default:
		return false
	}
}

func (a AccountType) IsPortfolioMargin() bool {
	return a == AccountBinancePortfolioMargin
}

func (a AccountType) IsUnified() bool {
	return a == AccountBybitUnified || a == AccountBybitUnifiedTestnet
}

// KindSuffix is the suffix appended to a native id to key the reverse market lookup.
func (a AccountType) KindSuffix() string {
	switch {
	case a.IsSpot(), a.IsMargin():
		return "_spot"
	case a.IsLinear():
		return "_linear"
	case a.IsInverse():
		return "_inverse"
	default:
		return ""
	}
}
