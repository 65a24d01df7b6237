package exchange

import (
	"sync"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
)

// Wallet keeps the last known balance of every asset of one account.
//
// User streams push only the assets that changed, Merge folds them into the
// wallet so the cache can still be replaced wholesale.
type Wallet struct {
	account enum.AccountType

	mu       sync.Mutex
	balances map[string]adapter.Balance
}

func NewWallet(account enum.AccountType) *Wallet {
	return &Wallet{
		account:  account,
		balances: make(map[string]adapter.Balance),
	}
}

// Merge upserts the updated assets and returns the full wallet.
func (w *Wallet) Merge(ts int64, updates ...adapter.Balance) adapter.AccountBalance {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range updates {
		w.balances[b.Asset] = b
	}
	all := make([]adapter.Balance, 0, len(w.balances))
	for _, b := range w.balances {
		all = append(all, b)
	}
	return adapter.NewAccountBalance(w.account, ts, all...)
}

// Apply merges the updates, replaces the cached wallet and notifies the balance endpoint.
func (w *Wallet) Apply(env Env, ts int64, updates ...adapter.Balance) {
	wallet := w.Merge(ts, updates...)
	env.Cache.ApplyBalance(wallet)
	env.Bus.Request(EndpointBalance, wallet)
}
