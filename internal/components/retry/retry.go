// Package retry runs an operation a fixed number of times with a fixed delay
// between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded, constant-delay retry policy.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default is 3 attempts with 2 seconds between them.
var Default = Policy{Attempts: 3, Delay: 2 * time.Second}

// Permanent marks err so that it is returned immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Do calls op until it succeeds, returns a permanent error or the attempts run out.
// onRetry may be nil, it is called with the failed attempt number before each wait.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, onRetry)
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), onRetry func(attempt int, err error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		p.backoff(ctx),
		func(err error, _ time.Duration) {
			if onRetry != nil {
				onRetry(attempt, err)
			}
		},
	)
}
