package binance

import (
	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

var _spotPriority = []enum.AccountType{
	enum.AccountBinanceIsolatedMargin,
	enum.AccountBinanceMargin,
	enum.AccountBinanceSpotTestnet,
	enum.AccountBinanceSpot,
}

// Router picks the account an instrument is traded on among the configured private accounts.
type Router struct {
	accounts map[enum.AccountType]struct{}
}

func NewRouter(accounts ...enum.AccountType) *Router {
	r := &Router{accounts: make(map[enum.AccountType]struct{}, len(accounts))}
	for _, a := range accounts {
		if a.Exchange() == enum.ExchangeBinance {
			r.accounts[a] = struct{}{}
		}
	}
	return r
}

func (r *Router) has(a enum.AccountType) bool {
	_, ok := r.accounts[a]
	return ok
}

// Route resolves the account type of the instrument, a portfolio margin account takes every instrument.
func (r *Router) Route(id adapter.InstrumentID) (enum.AccountType, error) {
	if r.has(enum.AccountBinancePortfolioMargin) {
		return enum.AccountBinancePortfolioMargin, nil
	}

	switch {
	case id.IsSpot():
		for _, a := range _spotPriority {
			if r.has(a) {
				return a, nil
			}
		}
	case id.IsLinear():
		if r.has(enum.AccountBinanceUSDMFutureTestnet) {
			return enum.AccountBinanceUSDMFutureTestnet, nil
		}
		if r.has(enum.AccountBinanceUSDMFuture) {
			return enum.AccountBinanceUSDMFuture, nil
		}
	case id.IsInverse():
		if r.has(enum.AccountBinanceCoinMFutureTestnet) {
			return enum.AccountBinanceCoinMFutureTestnet, nil
		}
		if r.has(enum.AccountBinanceCoinMFuture) {
			return enum.AccountBinanceCoinMFuture, nil
		}
	}
	return 0, errors.Wrapf(exception.ErrOrderNoAccount, "%s", id)
}
