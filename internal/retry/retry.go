package retry

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/types"
)

// Policy describes a bounded retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first (default: 3).
	MaxAttempts int

	// Base is the first backoff delay (default: 200ms).
	Base time.Duration

	// Multiplier grows the delay between attempts (default: 2.0).
	Multiplier float64

	// Cap bounds a single delay (default: 5s).
	Cap time.Duration

	// Seed makes the jitter deterministic when non-zero (tests only).
	Seed int64

	// Retryable decides whether an error is worth another attempt.
	// Defaults to types.IsTransient.
	Retryable func(error) bool

	// Clock is used for sleeping between attempts (default: real clock).
	Clock clock.Clock

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)

	rngOnce sync.Once
	rng     *rand.Rand
	rngMu   sync.Mutex
}

// DefaultPolicy returns the policy used by the remote adapters.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Base:        200 * time.Millisecond,
		Multiplier:  2.0,
		Cap:         5 * time.Second,
	}
}

// WithRetryable returns a copy of p that retries only the errors fn accepts.
func (p *Policy) WithRetryable(fn func(error) bool) *Policy {
	return &Policy{
		MaxAttempts: p.MaxAttempts,
		Base:        p.Base,
		Multiplier:  p.Multiplier,
		Cap:         p.Cap,
		Seed:        p.Seed,
		Retryable:   fn,
		Clock:       p.Clock,
		OnRetry:     p.OnRetry,
	}
}

func (p *Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}

	return p.MaxAttempts
}

func (p *Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}

	return types.IsTransient(err)
}

func (p *Policy) clock() clock.Clock {
	if p.Clock != nil {
		return p.Clock
	}

	return clock.RealClock{}
}

func (p *Policy) next(prev time.Duration) time.Duration {
	p.rngOnce.Do(func() { p.rng = newRNG(p.Seed) })

	base := p.Base
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	mult := p.Multiplier
	if mult == 0 {
		mult = 2.0
	}
	capDur := p.Cap
	if capDur == 0 {
		capDur = 5 * time.Second
	}

	if p.rng == nil {
		return jitterBackoff(prev, base, mult, capDur, nil)
	}

	p.rngMu.Lock()
	defer p.rngMu.Unlock()

	return jitterBackoff(prev, base, mult, capDur, p.rng)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx ends.
//
// Parameters:
//   - ctx: Context for cancellation; checked before every attempt
//   - fn: Operation to run
//
// Returns:
//   - error: nil on success, otherwise the last error from fn (or ctx.Err())
//
// Example:
//
//	err := retry.DefaultPolicy().Do(ctx, func(ctx context.Context) error {
//	    return client.Send(ctx, req)
//	})
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var (
		lastErr error
		delay   time.Duration
	)

	attempts := p.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(lastErr, err)
			}

			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.retryable(lastErr) || attempt == attempts {
			break
		}

		delay = p.next(delay)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}

		timer := p.clock().NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return errors.Join(lastErr, ctx.Err())
		case <-timer.C():
		}
	}

	if p.retryable(lastErr) {
		return fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
	}

	return lastErr
}
