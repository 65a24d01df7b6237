package ratelimit

import (
	"context"
	"time"

	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
	"golang.org/x/time/rate"
)

// Config describes a token bucket: Limit tokens refill every Period, up to Burst tokens.
// A zero Limit disables limiting.
type Config struct {
	Limit  int           `yaml:"limit"`
	Period time.Duration `yaml:"period"`
	Burst  int           `yaml:"burst"`
}

// Limiter is a blocking token bucket shared by the connectors of one exchange scope.
type Limiter struct {
	name string
	l    *rate.Limiter
}

// New builds a limiter from the config.
func New(name string, cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		return &Limiter{name: name, l: rate.NewLimiter(rate.Inf, 0)}
	}

	period := cfg.Period
	if period <= 0 {
		period = time.Second
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Limit
	}

	every := period / time.Duration(cfg.Limit)
	return &Limiter{name: name, l: rate.NewLimiter(rate.Every(every), burst)}
}

// Unlimited returns a limiter that never blocks.
func Unlimited(name string) *Limiter {
	return New(name, Config{})
}

func (l *Limiter) Name() string {
	return l.name
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.AcquireN(ctx, 1)
}

// AcquireN blocks until n tokens are available or ctx is done.
func (l *Limiter) AcquireN(ctx context.Context, n int) error {
	if err := l.l.WaitN(ctx, n); err != nil {
		return errors.Wrap(exception.ErrRateLimiterCanceled, err.Error()).With("limiter", l.name)
	}
	return nil
}

// TryAcquire takes a token only if one is available now.
func (l *Limiter) TryAcquire() bool {
	return l.l.Allow()
}

// Group holds the named limiters of an engine, e.g. "binance.order" and "bybit.order".
type Group struct {
	limiters map[string]*Limiter
}

func NewGroup(configs map[string]Config) *Group {
	g := &Group{limiters: make(map[string]*Limiter, len(configs))}
	for name, cfg := range configs {
		g.limiters[name] = New(name, cfg)
	}
	return g
}

// Get returns the limiter of the name, or an unlimited one when it is not configured.
func (g *Group) Get(name string) *Limiter {
	if g != nil {
		if l, ok := g.limiters[name]; ok {
			return l
		}
	}
	return Unlimited(name)
}
