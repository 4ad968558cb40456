package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/timmy/thumbcraft/internal/logger"
)

// RetryPolicy is a bounded linear backoff: after failed attempt N the
// executor waits N * BaseDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

// linearBackOff adapts RetryPolicy to backoff.BackOff.
type linearBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt >= b.policy.MaxAttempts {
		return backoff.Stop
	}
	return b.policy.Delay(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// RetryTransient runs op until it succeeds, fails with an error isTransient
// rejects, the policy is exhausted or ctx is done.
// Parameters:
//   - ctx: bounds the waits between attempts.
//   - policy: attempt budget and delay function.
//   - isTransient: decides whether a failure may be retried.
//   - op: the operation; receives the 1-based attempt number.
//
// Returns:
//   - int: number of attempts made.
//   - error: the last error, or ctx.Err() if cancelled while waiting.
func RetryTransient(ctx context.Context, policy RetryPolicy, isTransient func(error) bool, op func(ctx context.Context, attempt int) error) (int, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx, attempts)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.With(logger.Fields{"wait_ms": wait.Milliseconds()}).
			WithAttempt(attempts).
			Warn(ctx, "Transient failure, retrying: %v", err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(&linearBackOff{policy: policy}, ctx), notify)
	return attempts, err
}
