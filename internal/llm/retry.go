package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryingProvider retries Transport failures of the wrapped provider with
// exponential backoff. Provider and Malformed errors are returned at once.
type RetryingProvider struct {
	next       Provider
	maxRetries uint
	initial    time.Duration
}

// WithTransportRetry wraps p so that a Transport failure is retried up to
// maxRetries times. A zero maxRetries returns p unchanged.
func WithTransportRetry(p Provider, maxRetries uint, initial time.Duration) Provider {
	if maxRetries == 0 {
		return p
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	return &RetryingProvider{next: p, maxRetries: maxRetries, initial: initial}
}

func (r *RetryingProvider) Send(ctx context.Context, req Request) (*Reply, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = 8 * r.initial

	op := func() (*Reply, error) {
		reply, err := r.next.Send(ctx, req)
		if err == nil {
			return reply, nil
		}
		if !IsKind(err, KindTransport) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxRetries+1),
	)
}
