package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/allisson/rotator/internal/errors"
)

// RetryConfig bounds the exponential backoff used for local persistence and for
// idempotent remote calls.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultRetryConfig is used when a zero RetryConfig is supplied.
var DefaultRetryConfig = RetryConfig{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxRetries:      5,
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultRetryConfig.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultRetryConfig.MaxInterval
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultRetryConfig.MaxRetries
	}
	return c
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx)
}

// retry runs op until it succeeds, retryable reports false or the budget is spent.
func retry(ctx context.Context, cfg RetryConfig, op func() error, retryable func(error) bool) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, cfg.backOff(ctx))
}

// isRetryableLocal reports whether a local persistence failure may be transient.
func isRetryableLocal(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case apperrors.Is(err, apperrors.ErrNotFound),
		apperrors.Is(err, apperrors.ErrConflict),
		apperrors.Is(err, apperrors.ErrInvalidInput),
		apperrors.Is(err, apperrors.ErrForbidden),
		apperrors.Is(err, apperrors.ErrCrypto):
		return false
	default:
		return true
	}
}
