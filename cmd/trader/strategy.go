package main

import (
	"nexus/internal/adapter"
	"nexus/internal/strategy"

	"github.com/yanun0323/logs"
)

// logStrategy only logs what the engine delivers, used to check a config end to end.
type logStrategy struct{}

func (s *logStrategy) Init(_ *strategy.Context) error {
	logs.Info("log strategy bound")
	return nil
}

func (s *logStrategy) OnKline(k adapter.Kline) {
	if k.Confirm {
		logs.Infof("kline %s %s %s close %f", k.Exchange, k.Symbol, k.Interval, k.Close)
	}
}

func (s *logStrategy) OnMarkPrice(p adapter.MarkPrice) {
	logs.Infof("mark price %s %s %f", p.Exchange, p.Symbol, p.Price)
}

func (s *logStrategy) OnFilledOrder(o adapter.Order) {
	logs.Infof("order %s filled %s@%s", o.UUID, o.Filled, o.Average)
}

func (s *logStrategy) OnCanceledOrder(o adapter.Order) {
	logs.Infof("order %s canceled, filled %s", o.UUID, o.Filled)
}

func (s *logStrategy) OnFailedOrder(o adapter.Order) {
	logs.Warnf("order %s failed", o.UUID)
}

func (s *logStrategy) OnBalance(b adapter.AccountBalance) {
	logs.Infof("balance %s updated, %d assets", b.AccountType, len(b.Balances))
}

func (s *logStrategy) OnAlgoOrder(a adapter.AlgoOrder) {
	logs.Infof("algo %s %s %s filled %s/%s", a.UUID, a.SubmitType, a.State, a.Filled, a.Amount)
}
