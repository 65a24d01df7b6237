package og

import (
	"sync"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// DefaultRetention is the number of terminal orders remembered to reject late updates.
const DefaultRetention = 4096

// OrderState is the tracker's view of an order.
type OrderState struct {
	UUID   string
	Status enum.OrderStatus
	Filled decimal.Decimal
}

// Tracker follows the status of every live order and rejects regressions,
// e.g. ACCEPTED after FILLED, or the PENDING ack of an order the stream already filled.
// The last terminal orders are kept so their late updates are still rejected.
type Tracker struct {
	mu        sync.Mutex
	orders    map[string]*OrderState
	done      map[string]OrderState
	doneOrder []string
	retention int
}

// NewTracker remembers up to retention terminal orders, DefaultRetention when not positive.
func NewTracker(retention ...int) *Tracker {
	n := DefaultRetention
	if len(retention) != 0 && retention[0] > 0 {
		n = retention[0]
	}
	return &Tracker{
		orders:    make(map[string]*OrderState),
		done:      make(map[string]OrderState),
		retention: n,
	}
}

// Order returns the tracked state of uuid, terminal orders included while retained.
func (t *Tracker) Order(uuid string) (OrderState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o, ok := t.orders[uuid]; ok {
		return *o, true
	}
	o, ok := t.done[uuid]
	return o, ok
}

// Apply records the order update and returns the previous status.
// A regressing update is not recorded and the error is ErrOrderTerminated,
// ErrInvalidTransition or ErrInvalidFill.
func (t *Tracker) Apply(o adapter.Order) (enum.OrderStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if done, ok := t.done[o.UUID]; ok {
		return done.Status, errors.Wrapf(ErrOrderTerminated, "%s -> %s", done.Status, o.Status).With("uuid", o.UUID)
	}

	state, ok := t.orders[o.UUID]
	if !ok {
		state = &OrderState{UUID: o.UUID}
	}

	prev := state.Status
	switch {
	case !canTransit(prev, o.Status):
		return prev, errors.Wrapf(ErrInvalidTransition, "%s -> %s", prev, o.Status).With("uuid", o.UUID)
	case o.Filled.Cmp(state.Filled) < 0:
		return prev, errors.Wrapf(ErrInvalidFill, "%s -> %s", state.Filled, o.Filled).With("uuid", o.UUID)
	}

	state.Status = o.Status
	state.Filled = o.Filled
	if !o.Status.IsTerminal() {
		t.orders[o.UUID] = state
		return prev, nil
	}

	delete(t.orders, o.UUID)
	t.retain(*state)
	return prev, nil
}

func (t *Tracker) retain(s OrderState) {
	t.done[s.UUID] = s
	t.doneOrder = append(t.doneOrder, s.UUID)
	if len(t.doneOrder) <= t.retention {
		return
	}
	evict := t.doneOrder[0]
	t.doneOrder = t.doneOrder[1:]
	delete(t.done, evict)
}

// Forget stops tracking uuid.
func (t *Tracker) Forget(uuid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.orders, uuid)
	delete(t.done, uuid)
}

// Len returns the number of live orders.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orders)
}

func canTransit(from, to enum.OrderStatus) bool {
	if !from.IsAvailable() || from == enum.OrderStatusPending {
		return true
	}
	if from == to {
		return true
	}

	switch from {
	case enum.OrderStatusAccepted, enum.OrderStatusCancelFailed:
		return to != enum.OrderStatusPending
	case enum.OrderStatusPartiallyFilled:
		return to != enum.OrderStatusPending && to != enum.OrderStatusAccepted
	case enum.OrderStatusCanceling:
		return to.IsTerminal() || to == enum.OrderStatusPartiallyFilled || to == enum.OrderStatusCancelFailed
	default:
		return false
	}
}
