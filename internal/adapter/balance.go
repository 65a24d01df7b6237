package adapter

import (
	"nexus/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// AccountBalance is the full wallet of one account type.
type AccountBalance struct {
	AccountType enum.AccountType
	Balances    map[string]Balance
	Timestamp   int64
}

// NewAccountBalance indexes balances by asset; a later entry of the same asset wins.
func NewAccountBalance(accountType enum.AccountType, ts int64, balances ...Balance) AccountBalance {
	m := make(map[string]Balance, len(balances))
	for _, b := range balances {
		m[b.Asset] = b
	}
	return AccountBalance{
		AccountType: accountType,
		Balances:    m,
		Timestamp:   ts,
	}
}

func (a AccountBalance) Balance(asset string) (Balance, bool) {
	b, ok := a.Balances[asset]
	return b, ok
}
