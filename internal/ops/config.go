// Package ops loads the engine configuration.
package ops

import (
	"os"
	"sort"
	"strings"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/internal/ratelimit"
	"nexus/pkg/conn"
	"nexus/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// Cache repository kinds.
const (
	RepositoryNone     = "none"
	RepositoryFile     = "file"
	RepositoryRedis    = "redis"
	RepositoryPostgres = "postgres"
)

const defaultMetricsInterval = time.Minute

// FileConfig mirrors the YAML config layout. Values may reference environment variables as ${NAME}.
type FileConfig struct {
	Exchanges     map[string]ExchangeConfig `yaml:"exchanges"`
	Cache         CacheConfig               `yaml:"cache"`
	Algo          AlgoConfig                `yaml:"algo"`
	Subscriptions []SubscriptionConfig      `yaml:"subscriptions"`
	Metrics       MetricsConfig             `yaml:"metrics"`
}

// ExchangeConfig is the basic config of an exchange and the connectors opened on it.
type ExchangeConfig struct {
	Key        string `yaml:"key"`
	Secret     string `yaml:"secret"`
	Passphrase string `yaml:"passphrase"`
	Testnet    bool   `yaml:"testnet"`

	// Public and Private list account type names, e.g. "spot" or "usd_m_future".
	Public    []string                  `yaml:"public"`
	Private   []string                  `yaml:"private"`
	RateLimit ratelimit.Config          `yaml:"rate_limit"`
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`
	Markets   []MarketConfig            `yaml:"markets"`
}

// EndpointConfig overrides the urls of one account type.
type EndpointConfig struct {
	RestURL   string `yaml:"rest_url"`
	StreamURL string `yaml:"stream_url"`
}

type MarketConfig struct {
	// Symbol is canonical, e.g. "BTC/USDT" or "BTC/USDT:USDT".
	Symbol       string            `yaml:"symbol"`
	ID           string            `yaml:"id"`
	Margin       bool              `yaml:"margin"`
	ContractSize string            `yaml:"contract_size"`
	Precision    adapter.Precision `yaml:"precision"`
	Limits       LimitsConfig      `yaml:"limits"`
}

type LimitsConfig struct {
	Amount LimitConfig `yaml:"amount"`
	Cost   LimitConfig `yaml:"cost"`
	Price  LimitConfig `yaml:"price"`
}

// LimitConfig holds decimal strings, empty is unbounded.
type LimitConfig struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

type CacheConfig struct {
	// Repository is one of none, file, redis and postgres.
	Repository   string              `yaml:"repository"`
	Prefix       string              `yaml:"prefix"`
	SyncInterval time.Duration       `yaml:"sync_interval"`
	Expire       time.Duration       `yaml:"expire"`
	Dir          string              `yaml:"dir"`
	Redis        conn.RedisOption    `yaml:"redis"`
	Postgres     conn.PostgresOption `yaml:"postgres"`
}

type AlgoConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
}

// SubscriptionConfig is the market data streamed for one instrument, e.g. "BTC/USDT:USDT-BYBIT".
type SubscriptionConfig struct {
	Instrument string   `yaml:"instrument"`
	Trade      bool     `yaml:"trade"`
	BookL1     bool     `yaml:"bookl1"`
	MarkPrice  bool     `yaml:"mark_price"`
	Klines     []string `yaml:"klines"`
}

type MetricsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	// Exchanges are ordered by exchange.
	Exchanges     []Exchange
	Cache         CacheConfig
	Algo          AlgoConfig
	Subscriptions []Subscription
	Metrics       MetricsConfig
}

type Exchange struct {
	Exchange  enum.Exchange
	Token     adapter.Token
	Testnet   bool
	Public    []enum.AccountType
	Private   []enum.AccountType
	RateLimit ratelimit.Config
	Options   map[enum.AccountType]exchange.Option
	Markets   *adapter.MarketTable
}

type Subscription struct {
	Instrument adapter.InstrumentID
	Trade      bool
	BookL1     bool
	MarkPrice  bool
	Klines     []enum.KlineInterval
}

// Exchange returns the resolved config of ex.
func (l Loaded) Exchange(ex enum.Exchange) (Exchange, bool) {
	for _, e := range l.Exchanges {
		if e.Exchange == ex {
			return e, true
		}
	}
	return Exchange{}, false
}

// LoadEnv loads .env files into the environment, missing files are skipped.
// Variables already set are kept.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(err, "load env").With("path", p)
		}
	}
	return nil
}

// Load reads a YAML config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config").With("path", path)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and resolves the result.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	return cfg.Resolve()
}

// Resolve validates the config and converts names into typed values.
func (c FileConfig) Resolve() (Loaded, error) {
	loaded := Loaded{
		Cache:   c.Cache,
		Algo:    c.Algo,
		Metrics: c.Metrics,
	}
	if loaded.Metrics.Interval <= 0 {
		loaded.Metrics.Interval = defaultMetricsInterval
	}
	if len(loaded.Cache.Repository) == 0 {
		loaded.Cache.Repository = RepositoryNone
	}
	switch loaded.Cache.Repository {
	case RepositoryNone, RepositoryFile, RepositoryRedis, RepositoryPostgres:
	default:
		return Loaded{}, errors.Wrapf(exception.ErrEngineBuild, "unknown cache repository %q", loaded.Cache.Repository)
	}

	for name, ec := range c.Exchanges {
		ex, ok := enum.ParseExchange(name)
		if !ok {
			return Loaded{}, errors.Wrapf(exception.ErrEngineBuild, "unknown exchange %q", name)
		}
		resolved, err := ec.resolve(ex)
		if err != nil {
			return Loaded{}, errors.Wrapf(err, "exchange %s", name)
		}
		loaded.Exchanges = append(loaded.Exchanges, resolved)
	}
	sort.Slice(loaded.Exchanges, func(i, j int) bool {
		return loaded.Exchanges[i].Exchange < loaded.Exchanges[j].Exchange
	})

	for _, sc := range c.Subscriptions {
		s, err := sc.resolve()
		if err != nil {
			return Loaded{}, err
		}
		ex, ok := loaded.Exchange(s.Instrument.Exchange)
		if !ok {
			return Loaded{}, errors.Wrapf(exception.ErrEngineBuild, "subscription %s has no exchange config", sc.Instrument)
		}
		if _, ok := ex.Markets.Market(s.Instrument.Symbol); !ok {
			return Loaded{}, errors.Wrap(exception.ErrUnsupportedSymbol, sc.Instrument)
		}
		loaded.Subscriptions = append(loaded.Subscriptions, s)
	}

	return loaded, nil
}

func (c ExchangeConfig) resolve(ex enum.Exchange) (Exchange, error) {
	e := Exchange{
		Exchange:  ex,
		Token:     adapter.NewToken(c.Key, c.Secret, c.Passphrase),
		Testnet:   c.Testnet,
		RateLimit: c.RateLimit,
		Options:   make(map[enum.AccountType]exchange.Option, len(c.Endpoints)),
		Markets:   adapter.NewMarketTable(ex),
	}

	var err error
	if e.Public, err = accountTypes(ex, c.Public); err != nil {
		return Exchange{}, err
	}
	if e.Private, err = accountTypes(ex, c.Private); err != nil {
		return Exchange{}, err
	}
	for name, ep := range c.Endpoints {
		account, ok := enum.ParseAccountType(ex, name)
		if !ok {
			return Exchange{}, errors.Wrapf(exception.ErrEngineBuild, "unknown account type %q", name)
		}
		e.Options[account] = exchange.Option{RestURL: ep.RestURL, StreamURL: ep.StreamURL}
	}

	for _, mc := range c.Markets {
		m, err := mc.resolve(ex)
		if err != nil {
			return Exchange{}, err
		}
		if err := e.Markets.Add(m); err != nil {
			return Exchange{}, errors.Wrapf(exception.ErrEngineBuild, "add market: %+v", err)
		}
	}
	return e, nil
}

func accountTypes(ex enum.Exchange, names []string) ([]enum.AccountType, error) {
	out := make([]enum.AccountType, 0, len(names))
	for _, name := range names {
		account, ok := enum.ParseAccountType(ex, name)
		if !ok {
			return nil, errors.Wrapf(exception.ErrEngineBuild, "unknown account type %q", name)
		}
		out = append(out, account)
	}
	return out, nil
}

func (c MarketConfig) resolve(ex enum.Exchange) (adapter.Market, error) {
	if len(c.ID) == 0 {
		return adapter.Market{}, errors.Wrapf(exception.ErrEngineBuild, "market %s has no id", c.Symbol)
	}
	id, err := adapter.ParseInstrumentID(c.Symbol + "-" + ex.String())
	if err != nil {
		return adapter.Market{}, errors.Wrapf(exception.ErrEngineBuild, "market %s: %+v", c.Symbol, err)
	}
	base, quote, settle := splitSymbol(c.Symbol)

	m := adapter.Market{
		Symbol:       c.Symbol,
		ID:           c.ID,
		Base:         base,
		Quote:        quote,
		Settle:       settle,
		Spot:         id.IsSpot(),
		Margin:       id.IsSpot() && c.Margin,
		Linear:       id.IsLinear(),
		Inverse:      id.IsInverse(),
		Option:       id.IsOption(),
		ContractSize: decimal.NewFromInt(1),
		Precision:    c.Precision,
	}
	if len(c.ContractSize) != 0 {
		if m.ContractSize, err = parseDecimal(c.Symbol, "contract_size", c.ContractSize); err != nil {
			return adapter.Market{}, err
		}
	}

	limits := []struct {
		name string
		cfg  LimitConfig
		dst  *adapter.Limit
	}{
		{"amount", c.Limits.Amount, &m.Limits.Amount},
		{"cost", c.Limits.Cost, &m.Limits.Cost},
		{"price", c.Limits.Price, &m.Limits.Price},
	}
	for _, l := range limits {
		if l.dst.Min, err = parseDecimal(c.Symbol, l.name+".min", l.cfg.Min); err != nil {
			return adapter.Market{}, err
		}
		if l.dst.Max, err = parseDecimal(c.Symbol, l.name+".max", l.cfg.Max); err != nil {
			return adapter.Market{}, err
		}
	}
	return m, nil
}

func parseDecimal(symbol, field, s string) (decimal.Decimal, error) {
	if len(s) == 0 {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(exception.ErrEngineBuild, "market %s %s %q", symbol, field, s)
	}
	return d, nil
}

// splitSymbol splits "BASE/QUOTE[:SETTLE[-EXPIRY-STRIKE-C]]".
func splitSymbol(symbol string) (base, quote, settle string) {
	base, rest, _ := strings.Cut(symbol, "/")
	quote, settle, _ = strings.Cut(rest, ":")
	settle, _, _ = strings.Cut(settle, "-")
	return base, quote, settle
}

func (c SubscriptionConfig) resolve() (Subscription, error) {
	id, err := adapter.ParseInstrumentID(c.Instrument)
	if err != nil {
		return Subscription{}, errors.Wrapf(exception.ErrEngineBuild, "subscription: %+v", err)
	}
	s := Subscription{
		Instrument: id,
		Trade:      c.Trade,
		BookL1:     c.BookL1,
		MarkPrice:  c.MarkPrice,
	}
	for _, name := range c.Klines {
		interval, ok := enum.ParseKlineInterval(name)
		if !ok {
			return Subscription{}, errors.Wrapf(exception.ErrEngineBuild, "subscription %s: unknown kline interval %q", c.Instrument, name)
		}
		s.Klines = append(s.Klines, interval)
	}
	return s, nil
}
