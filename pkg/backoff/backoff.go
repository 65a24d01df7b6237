package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Backoff defines retry delays.
type Backoff struct {
	// Min is the first delay.
	Min time.Duration `yaml:"min"`
	// Max caps the delay.
	Max time.Duration `yaml:"max"`
	// Factor multiplies the delay for each retry attempt. 1 keeps the delay constant.
	Factor float64 `yaml:"factor"`
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64 `yaml:"jitter"`
}

// Default provides conservative retry defaults.
func Default() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Constant waits d between every attempt.
func Constant(d time.Duration) Backoff {
	return Backoff{Min: d, Max: d, Factor: 1}
}

// Next returns the delay after the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max < min {
		max = min
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt && factor > 1; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn up to attempts times, sleeping b.Next between failures.
// It returns nil on the first success, otherwise the last error of fn or the context error.
func Retry(ctx context.Context, b Backoff, attempts int, fn func(ctx context.Context, attempt int) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if serr := Sleep(ctx, b.Next(attempt)); serr != nil {
			return serr
		}
	}
	return err
}
