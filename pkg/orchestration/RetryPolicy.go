package orchestration

import (
	"context"
	"time"

	"github.com/lestrrat-go/backoff/v2"
)

type RetryPolicy struct {
	MaxAttempts int
	MinInterval time.Duration
	MaxInterval time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		MinInterval: 500 * time.Millisecond,
		MaxInterval: 30 * time.Second,
	}
}

/*
Do calls fn until it succeeds, returns a non-retryable error, runs out of
attempts or ctx is done. Waits between attempts grow exponentially. It
returns the number of attempts made and the last error.
*/
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	var (
		err      error
		attempts int
	)

	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	if p.MinInterval <= 0 {
		p.MinInterval = time.Millisecond
	}

	if p.MaxInterval < p.MinInterval {
		p.MaxInterval = p.MinInterval
	}

	policy := backoff.Exponential(
		backoff.WithMinInterval(p.MinInterval),
		backoff.WithMaxInterval(p.MaxInterval),
		backoff.WithJitterFactor(0.05),
		backoff.WithMaxRetries(p.MaxAttempts),
	)

	b := policy.Start(ctx)

	for backoff.Continue(b) {
		attempts++

		if err = fn(ctx); err == nil {
			return attempts, nil
		}

		if IsNonRetryable(err) || attempts >= p.MaxAttempts {
			return attempts, err
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, ctxErr
	}

	return attempts, err
}
