package okx

import (
	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

// Router sends every okx instrument to the one configured account, spot and contracts share it.
type Router struct {
	account enum.AccountType
}

func NewRouter(accounts ...enum.AccountType) *Router {
	r := &Router{}
	for _, a := range accounts {
		if a.Exchange() == enum.ExchangeOKX && !r.account.IsAvailable() {
			r.account = a
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
