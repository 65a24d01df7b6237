package engine

import (
	"nexus/internal/adapter/enum"
	"nexus/internal/ops"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

// check rejects configurations the connectors cannot serve, before anything is built.
func check(cfg ops.Loaded) error {
	for _, ex := range cfg.Exchanges {
		if err := checkAccounts(ex, ex.Public, "public"); err != nil {
			return err
		}
		if err := checkAccounts(ex, ex.Private, "private"); err != nil {
			return err
		}

		for _, a := range ex.Public {
			switch {
			case a.IsUnified():
				return errors.Wrapf(exception.ErrEngineBuild, "%s is not allowed as a public connector", a)
			case a.IsMargin(), a.IsPortfolioMargin():
				return errors.Wrapf(exception.ErrEngineBuild, "%s is not allowed as a public connector, use spot", a)
			}
		}

		if ex.Exchange == enum.ExchangeOKX {
			if len(ex.Public) > 1 {
				return errors.Wrapf(exception.ErrEngineBuild, "okx allows one public connector, got %d", len(ex.Public))
			}
			if len(ex.Private) > 1 {
				return errors.Wrapf(exception.ErrEngineBuild, "okx allows one private connector, got %d", len(ex.Private))
			}
		}

		if len(ex.Private) != 0 && ex.Token.IsEmpty() {
			return errors.Wrapf(exception.ErrEngineBuild, "%s private connectors need an api key", ex.Exchange)
		}
	}

	for _, s := range cfg.Subscriptions {
		ex, ok := cfg.Exchange(s.Instrument.Exchange)
		if !ok {
			return errors.Wrapf(exception.ErrEngineBuild, "no basic config for %s", s.Instrument.Exchange)
		}
		if !hasPublic(ex.Public, s) {
			return errors.Wrapf(exception.ErrEngineBuild, "no public connector streams %s", s.Instrument)
		}
		if len(ex.Private) == 0 {
			continue
		}
		if _, err := newRouter(ex.Exchange, ex.Private).Route(s.Instrument); err != nil {
			return errors.Wrapf(exception.ErrEngineBuild, "no private connector trades %s: %s", s.Instrument, err.Error())
		}
	}
	return nil
}

func checkAccounts(ex ops.Exchange, accounts []enum.AccountType, kind string) error {
	seen := make(map[enum.AccountType]struct{}, len(accounts))
	for _, a := range accounts {
		if !a.IsAvailable() || a.Exchange() != ex.Exchange {
			return errors.Wrapf(exception.ErrEngineBuild, "unknown %s account type %d on %s", kind, a, ex.Exchange)
		}
		if _, ok := seen[a]; ok {
			return errors.Wrapf(exception.ErrEngineBuild, "duplicate %s connector %s", kind, a)
		}
		seen[a] = struct{}{}
		if a.IsTestnet() != ex.Testnet {
			return errors.Wrapf(exception.ErrEngineBuild, "%s connector %s does not match testnet=%t of %s", kind, a, ex.Testnet, ex.Exchange)
		}
	}
	return nil
}

func hasPublic(accounts []enum.AccountType, s ops.Subscription) bool {
	for _, a := range accounts {
		switch {
		case a.Exchange() == enum.ExchangeOKX:
			return true
		case a.IsSpot() && s.Instrument.IsSpot():
			return true
		case a.IsLinear() && s.Instrument.IsLinear():
			return true
		case a.IsInverse() && s.Instrument.IsInverse():
			return true
		}
	}
	return false
}
