package bybit

import (
	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

// Router sends every instrument to the unified account, the testnet one when both are configured.
type Router struct {
	account enum.AccountType
}

func NewRouter(accounts ...enum.AccountType) *Router {
	r := &Router{}
	for _, a := range accounts {
		switch a {
		case enum.AccountBybitUnifiedTestnet:
			r.account = a
		case enum.AccountBybitUnified:
			if r.account != enum.AccountBybitUnifiedTestnet {
				r.account = a
			}
		}
	}
	return r
}

func (r *Router) Route(id adapter.InstrumentID) (enum.AccountType, error) {
	if !r.account.IsAvailable() {
		return 0, errors.Wrapf(exception.ErrOrderNoAccount, "%s", id)
	}
	return r.account, nil
}
