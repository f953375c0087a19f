package service

import (
	"context"
	"errors"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy is applied by callers around single-shot client operations.
// The zero value runs the operation exactly once.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.MaxDelayMS) * time.Millisecond,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(uint64(p.MaxRetries), b)
}

// Retry runs fn, repeating it while it fails with a retryable TransportError.
// Validation errors and 4xx answers are returned on the first attempt.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		return fn(ctx)
	}
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isRetryable(err error) bool {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Retryable()
	}
	return false
}
