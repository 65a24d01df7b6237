package registry

import (
	"sync"

	"nexus/internal/adapter"
)

type entry struct {
	orderID string
	symbol  string
}

// OrderRegistry maps engine order uuids to exchange order ids and back.
// Entries live from submission until the order reaches a terminal status.
type OrderRegistry struct {
	mu     sync.RWMutex
	byUUID map[string]entry
	byID   map[string]string
}

func New() *OrderRegistry {
	return &OrderRegistry{
		byUUID: make(map[string]entry),
		byID:   make(map[string]string),
	}
}

// Register binds uuid to the exchange order id. An empty id reserves the uuid until the id is known.
func (r *OrderRegistry) Register(uuid, orderID, symbol string) {
	if len(uuid) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUUID[uuid]; ok && len(old.orderID) != 0 && old.orderID != orderID {
		delete(r.byID, old.orderID)
	}
	if len(orderID) == 0 {
		if old, ok := r.byUUID[uuid]; ok {
			orderID = old.orderID
		}
	}
	r.byUUID[uuid] = entry{orderID: orderID, symbol: symbol}
	if len(orderID) != 0 {
		r.byID[orderID] = uuid
	}
}

// Bind sets the exchange order id of a uuid still registered. It reports false when the uuid
// is unknown, e.g. the stream already delivered the terminal update and the entry is gone.
func (r *OrderRegistry) Bind(uuid, orderID string) bool {
	if len(uuid) == 0 || len(orderID) == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byUUID[uuid]
	if !ok {
		return false
	}
	if len(old.orderID) != 0 && old.orderID != orderID {
		delete(r.byID, old.orderID)
	}
	r.byUUID[uuid] = entry{orderID: orderID, symbol: old.symbol}
	r.byID[orderID] = uuid
	return true
}

// RegisterOrder binds the uuid and exchange id carried by the order.
func (r *OrderRegistry) RegisterOrder(o adapter.Order) {
	r.Register(o.UUID, o.ID, o.Symbol)
}

// OrderID returns the exchange order id of uuid. It reports false when the uuid is unknown or has no id yet.
func (r *OrderRegistry) OrderID(uuid string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUUID[uuid]
	if !ok || len(e.orderID) == 0 {
		return "", false
	}
	return e.orderID, true
}

// UUID returns the engine uuid of an exchange order id.
func (r *OrderRegistry) UUID(orderID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uuid, ok := r.byID[orderID]
	return uuid, ok
}

// Symbol returns the canonical symbol the uuid was submitted on.
func (r *OrderRegistry) Symbol(uuid string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUUID[uuid]
	return e.symbol, ok
}

func (r *OrderRegistry) Contains(uuid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUUID[uuid]
	return ok
}

// Remove drops both directions of the uuid.
func (r *OrderRegistry) Remove(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byUUID[uuid]; ok {
		delete(r.byID, e.orderID)
		delete(r.byUUID, uuid)
	}
}

func (r *OrderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUUID)
}
