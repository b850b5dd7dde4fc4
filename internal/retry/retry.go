// Package retry executes fallible operations with bounded exponential
// backoff and jitter. Policies are immutable values; classification of
// retryable versus permanent failures is always explicit.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds the retry behavior of an Executor. The executor never
// mutates a policy; the same value may be shared across goroutines.
type Policy struct {
	// MaxRetries is the number of re-invocations after the first attempt,
	// so an operation runs at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff. Jitter is added after the cap.
	MaxDelay time.Duration

	// JitterFraction bounds the uniform random addition to each delay:
	// [0, JitterFraction*delay]. Zero disables jitter.
	JitterFraction float64
}

// DefaultPolicy mirrors the defaults the backend uses for transient
// database and downstream failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.1,
	}
}

func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	if p.BaseDelay <= 0 {
		return errors.New("base delay must be positive")
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("max delay must be >= base delay")
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		return errors.New("jitter fraction must be in [0, 1]")
	}
	return nil
}

// Delay returns the backoff before retry n (1-indexed), without jitter:
// min(BaseDelay * 2^(n-1), MaxDelay).
func (p Policy) Delay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(retry-1)))
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Attempt is the observability record emitted once per failed attempt.
type Attempt struct {
	// Number is the 0-based index of the attempt that failed.
	Number int

	// Delay is the backoff (jitter included) before the next attempt.
	// Zero when no further attempt follows.
	Delay time.Duration

	// Err is the failure captured on this attempt, unmodified.
	Err error
}

// Executor re-invokes an operation on retryable failures per its policy.
// It holds no mutable state and is safe for concurrent use.
type Executor struct {
	policy   Policy
	classify Classifier
	logger   *slog.Logger
	onRetry  func(Attempt)
	sleep    func(context.Context, time.Duration) error
	random   func() float64
}

// Option adjusts an Executor at construction.
type Option func(*Executor)

// WithLogger replaces the slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithOnRetry registers a per-attempt observability hook. The hook must not
// block; it does not affect control flow.
func WithOnRetry(hook func(Attempt)) Option {
	return func(e *Executor) { e.onRetry = hook }
}

// WithSleep replaces the backoff wait. Tests use this to avoid real sleeps.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithRandom replaces the jitter source with a deterministic one.
func WithRandom(random func() float64) Option {
	return func(e *Executor) {
		if random != nil {
			e.random = random
		}
	}
}

// New builds an Executor. A classifier is required: retrying everything by
// default re-runs non-idempotent work, so the caller must opt in, if only
// via ClassifyAll.
func New(policy Policy, classify Classifier, opts ...Option) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if classify == nil {
		return nil, errors.New("classifier is required")
	}
	e := &Executor{
		policy:   policy,
		classify: classify,
		logger:   slog.Default(),
		sleep:    sleepContext,
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns a copy of the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails permanently, or retries are
// exhausted. The final failure reaches the caller unchanged, so errors.Is
// and errors.As still see the original cause. A context cancelled during
// the backoff wait aborts with ctx.Err().
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return errors.New("retry executor not initialized")
	}
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !e.classify(err) {
			e.record(Attempt{Number: attempt, Err: err}, "permanent failure")
			return err
		}
		if attempt >= e.policy.MaxRetries {
			e.record(Attempt{Number: attempt, Err: err}, "retries exhausted")
			return err
		}
		delay := e.policy.Delay(attempt + 1)
		if e.policy.JitterFraction > 0 {
			delay += time.Duration(e.random() * e.policy.JitterFraction * float64(delay))
		}
		e.record(Attempt{Number: attempt, Delay: delay, Err: err}, "retrying")
		if waitErr := e.sleep(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

// Do runs an operation that produces a value through the executor.
func Do[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var out T
	if e == nil {
		var zero T
		return zero, errors.New("retry executor not initialized")
	}
	err := e.Do(ctx, func(ctx context.Context) error {
		v, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (e *Executor) record(a Attempt, outcome string) {
	if e.onRetry != nil {
		e.onRetry(a)
	}
	e.logger.Warn("attempt failed",
		"attempt", a.Number,
		"delay", a.Delay,
		"outcome", outcome,
		"error", a.Err,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
