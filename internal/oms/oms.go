// Package oms reconciles the order updates of one exchange into the cache
// and delivers them to the strategy endpoints.
package oms

import (
	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/bus"
	"nexus/internal/obs"
	"nexus/internal/og"
	"nexus/internal/registry"
	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Bus is the subset of bus.Bus the OMS needs.
type Bus interface {
	Subscribe(topic string, handler bus.Handler) func()
	Request(endpoint string, msg any) bool
}

type OrderWriter interface {
	ApplyOrder(o adapter.Order)
}

type Config struct {
	Exchange enum.Exchange
	Bus      Bus
	Cache    OrderWriter
	Registry *registry.OrderRegistry
	// Tracker defaults to a new og.Tracker.
	Tracker *og.Tracker
	Metrics *obs.Metrics
}

type OMS struct {
	exchange enum.Exchange
	bus      Bus
	cache    OrderWriter
	registry *registry.OrderRegistry
	tracker  *og.Tracker
	metrics  *obs.Metrics

	unsubscribe func()
}

func New(cfg Config) (*OMS, error) {
	if !cfg.Exchange.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "oms: unknown exchange %d", cfg.Exchange)
	}
	if cfg.Bus == nil || cfg.Cache == nil || cfg.Registry == nil {
		return nil, errors.Wrapf(exception.ErrEngineBuild, "oms %s: missing bus, cache or registry", cfg.Exchange)
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = og.NewTracker()
	}

	return &OMS{
		exchange: cfg.Exchange,
		bus:      cfg.Bus,
		cache:    cfg.Cache,
		registry: cfg.Registry,
		tracker:  tracker,
		metrics:  cfg.Metrics,
	}, nil
}

// Start subscribes to the order topic of the exchange.
func (m *OMS) Start() {
	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.bus.Subscribe(m.exchange.OrderTopic(), func(msg any) {
		o, ok := msg.(adapter.Order)
		if !ok {
			logs.Errorf("%s oms got %T on the order topic", m.exchange, msg)
			return
		}
		m.Handle(o)
	})
	logs.Infof("%s oms started", m.exchange)
}

func (m *OMS) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Handle applies one order update.
func (m *OMS) Handle(o adapter.Order) {
	uuid, ok := m.resolve(o)
	if !ok {
		logs.Warnf("%s oms dropped order %s, err: %+v", m.exchange, o.ID, exception.ErrOrderUnknownUUID)
		return
	}
	o.UUID = uuid
	if len(o.ClientOrderID) == 0 {
		o.ClientOrderID = uuid
	}

	if prev, err := m.tracker.Apply(o); err != nil {
		// a late ack or a replayed frame must not roll the order back
		m.metrics.IncInvalidTransition()
		logs.Warnf("%s oms dropped order %s %s -> %s, err: %+v", m.exchange, uuid, prev, o.Status, err)
		return
	}

	if len(o.ID) != 0 && !o.IsTerminal() {
		if id, ok := m.registry.OrderID(uuid); !ok || id != o.ID {
			m.registry.Register(uuid, o.ID, o.Symbol)
		}
	}

	m.cache.ApplyOrder(o)
	if endpoint := o.Status.Endpoint(); len(endpoint) != 0 {
		m.bus.Request(endpoint, o)
	}

	if o.IsTerminal() {
		m.registry.Remove(uuid)
	}
}

func (m *OMS) resolve(o adapter.Order) (string, bool) {
	if len(o.UUID) != 0 {
		return o.UUID, true
	}
	if len(o.ClientOrderID) != 0 {
		return o.ClientOrderID, true
	}
	if len(o.ID) != 0 {
		return m.registry.UUID(o.ID)
	}
	return "", false
}
