package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	keyBalances  = "balances"
	keyPositions = "positions"
	keyOrders    = "orders"

	defaultSyncInterval = time.Second
)

// Repository stores cache snapshots under string keys.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Reader is the read only surface of the cache handed to strategies.
type Reader interface {
	BookL1(exchange enum.Exchange, symbol string) (adapter.BookL1, bool)
	Balance(account enum.AccountType) (adapter.AccountBalance, bool)
	Position(exchange enum.Exchange, symbol string) (adapter.Position, bool)
	Positions(exchange enum.Exchange) []adapter.Position
	Order(uuid string) (adapter.Order, bool)
	OpenOrders(exchange enum.Exchange, symbol string) []adapter.Order
}

type Option struct {
	// Prefix namespaces the repository keys.
	Prefix       string
	SyncInterval time.Duration
	// Expire drops terminal orders older than it on every sync. Zero keeps them.
	Expire time.Duration
}

// Cache holds the latest book tops, balances, positions and orders of the engine.
// Writes come from connectors, the OMS and the EMS; every read observes the latest completed write.
type Cache struct {
	opt  Option
	repo Repository
	now  func() time.Time

	mu        sync.RWMutex
	bookl1    map[adapter.Key]adapter.BookL1
	balances  map[enum.AccountType]adapter.AccountBalance
	positions map[adapter.Key]adapter.Position
	orders    map[string]adapter.Order
	dirty     bool
}

// New creates a cache. A nil repository disables persistence.
func New(repo Repository, opt Option) *Cache {
	if opt.SyncInterval <= 0 {
		opt.SyncInterval = defaultSyncInterval
	}
	return &Cache{
		opt:       opt,
		repo:      repo,
		now:       time.Now,
		bookl1:    make(map[adapter.Key]adapter.BookL1),
		balances:  make(map[enum.AccountType]adapter.AccountBalance),
		positions: make(map[adapter.Key]adapter.Position),
		orders:    make(map[string]adapter.Order),
	}
}

// ApplyBookL1 stores the latest top of book of the symbol.
func (c *Cache) ApplyBookL1(b adapter.BookL1) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bookl1[b.Key()] = b
}

// ApplyBalance replaces the whole wallet of the account.
func (c *Cache) ApplyBalance(b adapter.AccountBalance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[b.AccountType] = b
	c.dirty = true
}

// ApplyPosition replaces the position of the exchange and symbol.
func (c *Cache) ApplyPosition(p adapter.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[p.Key()] = p
	c.dirty = true
}

// ApplyPositions replaces every given position, in order.
func (c *Cache) ApplyPositions(ps ...adapter.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range ps {
		c.positions[p.Key()] = p
	}
	c.dirty = true
}

// ApplyOrder upserts the order by uuid, or by client order id when the uuid is unknown.
func (c *Cache) ApplyOrder(o adapter.Order) {
	key := orderKey(o)
	if len(key) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[key] = o
	c.dirty = true
}

func orderKey(o adapter.Order) string {
	if len(o.UUID) != 0 {
		return o.UUID
	}
	return o.ClientOrderID
}

func (c *Cache) BookL1(exchange enum.Exchange, symbol string) (adapter.BookL1, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bookl1[adapter.Key{Exchange: exchange, Symbol: symbol}]
	return b, ok
}

func (c *Cache) Balance(account enum.AccountType) (adapter.AccountBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.balances[account]
	return b, ok
}

func (c *Cache) Position(exchange enum.Exchange, symbol string) (adapter.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positions[adapter.Key{Exchange: exchange, Symbol: symbol}]
	return p, ok
}

// Positions returns the positions of the exchange sorted by symbol.
func (c *Cache) Positions(exchange enum.Exchange) []adapter.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]adapter.Position, 0, len(c.positions))
	for k, p := range c.positions {
		if k.Exchange == exchange {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (c *Cache) Order(uuid string) (adapter.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[uuid]
	return o, ok
}

// OpenOrders returns the non terminal orders of the symbol, oldest first. An empty symbol matches all.
func (c *Cache) OpenOrders(exchange enum.Exchange, symbol string) []adapter.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]adapter.Order, 0)
	for _, o := range c.orders {
		if o.Exchange != exchange || !o.IsOpen() {
			continue
		}
		if len(symbol) != 0 && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Run syncs the cache to the repository every sync interval until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	if c.repo == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.opt.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				logs.Errorf("sync cache, err: %+v", err)
			}
		}
	}
}

type snapshot struct {
	balances  []byte
	positions []byte
	orders    []byte
}

// Sync writes balances, positions and orders to the repository when anything changed since the last sync.
func (c *Cache) Sync(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}

	snap, ok, err := c.snapshot()
	if err != nil || !ok {
		return err
	}

	for key, value := range map[string][]byte{
		keyBalances:  snap.balances,
		keyPositions: snap.positions,
		keyOrders:    snap.orders,
	} {
		if err := c.repo.Set(ctx, c.key(key), value); err != nil {
			c.markDirty()
			return errors.Wrap(err, "set cache snapshot").With("key", c.key(key))
		}
	}
	return nil
}

func (c *Cache) snapshot() (snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return snapshot{}, false, nil
	}

	if c.opt.Expire > 0 {
		deadline := c.now().Add(-c.opt.Expire).UnixMilli()
		for k, o := range c.orders {
			if o.IsTerminal() && o.Timestamp < deadline {
				delete(c.orders, k)
			}
		}
	}

	balances := make([]adapter.AccountBalance, 0, len(c.balances))
	for _, b := range c.balances {
		balances = append(balances, b)
	}
	positions := make([]adapter.Position, 0, len(c.positions))
	for _, p := range c.positions {
		positions = append(positions, p)
	}
	orders := make([]adapter.Order, 0, len(c.orders))
	for _, o := range c.orders {
		orders = append(orders, o)
	}

	var (
		snap snapshot
		err  error
	)
	if snap.balances, err = sonic.ConfigFastest.Marshal(balances); err != nil {
		return snapshot{}, false, errors.Wrap(err, "marshal balances")
	}
	if snap.positions, err = sonic.ConfigFastest.Marshal(positions); err != nil {
		return snapshot{}, false, errors.Wrap(err, "marshal positions")
	}
	if snap.orders, err = sonic.ConfigFastest.Marshal(orders); err != nil {
		return snapshot{}, false, errors.Wrap(err, "marshal orders")
	}

	c.dirty = false
	return snap, true, nil
}

func (c *Cache) markDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Restore loads the last synced snapshot. Missing keys are skipped.
func (c *Cache) Restore(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}

	var (
		balances  []adapter.AccountBalance
		positions []adapter.Position
		orders    []adapter.Order
	)
	for key, dst := range map[string]any{
		keyBalances:  &balances,
		keyPositions: &positions,
		keyOrders:    &orders,
	} {
		data, ok, err := c.repo.Get(ctx, c.key(key))
		if err != nil {
			return errors.Wrap(err, "get cache snapshot").With("key", c.key(key))
		}
		if !ok {
			continue
		}
		if err := sonic.ConfigFastest.Unmarshal(data, dst); err != nil {
			return errors.Wrap(err, "unmarshal cache snapshot").With("key", c.key(key))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range balances {
		c.balances[b.AccountType] = b
	}
	for _, p := range positions {
		c.positions[p.Key()] = p
	}
	for _, o := range orders {
		if key := orderKey(o); len(key) != 0 {
			c.orders[key] = o
		}
	}
	logs.Infof("cache restored, balances: %d, positions: %d, orders: %d", len(balances), len(positions), len(orders))
	return nil
}

func (c *Cache) key(name string) string {
	if len(c.opt.Prefix) == 0 {
		return name
	}
	return c.opt.Prefix + ":" + name
}
