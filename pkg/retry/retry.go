// Package retry implements bounded retry with exponential backoff as an
// explicit, testable executor: the delay schedule is a pure function of
// (attempt, policy), and whether an error is worth retrying is decided by a
// classifier passed in by the caller.
package retry

import (
	"context"
	"time"

	"fraudwatch/pkg/structlog"
)

// Policy parameterizes the backoff schedule.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultPolicy mirrors the pipeline default: 3 attempts, 1s initial delay,
// doubling, capped at 10s (so the observed sequence is 1s, 2s).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		Multiplier:      2.0,
		MaxInterval:     10 * time.Second,
	}
}

// Delay returns the pause inserted after the given 1-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialInterval)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxInterval); p.MaxInterval > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// Executor runs operations under a Policy.
type Executor struct {
	policy Policy
	sleep  func(time.Duration)
	log    *structlog.Logger
}

// NewExecutor builds an executor. The sleep function is replaceable in tests.
func NewExecutor(policy Policy, log *structlog.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Executor{policy: policy, sleep: time.Sleep, log: log}
}

// WithSleep overrides the inter-attempt pause. Intended for tests.
func (e *Executor) WithSleep(sleep func(time.Duration)) *Executor {
	e.sleep = sleep
	return e
}

// Do invokes op up to MaxAttempts times, pausing per the policy between
// failed attempts. A non-retryable error (per the classifier) is returned
// immediately without consuming further attempts. The returned error is the
// last one observed; nil means some attempt succeeded.
func (e *Executor) Do(ctx context.Context, name string, op func() error, retryable Classifier) error {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.Delay(attempt)
		e.log.Warn("retrying after transient failure", structlog.Fields{
			"operation":    name,
			"attempt":      attempt,
			"max_attempts": e.policy.MaxAttempts,
			"delay_ms":     delay.Milliseconds(),
			"error":        lastErr.Error(),
		})
		e.sleep(delay)
	}
	return lastErr
}
