package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AfterTransientFailures", func(t *testing.T) {
		attempts := 0
		err := retry(ctx, testRetry, func() error {
			attempts++
			if attempts < 3 {
				return errDatabaseDown
			}
			return nil
		}, isRetryableLocal)
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Error_PermanentStopsImmediately", func(t *testing.T) {
		attempts := 0
		err := retry(ctx, testRetry, func() error {
			attempts++
			return rotationDomain.ErrRotationNotFound
		}, isRetryableLocal)
		assert.ErrorIs(t, err, rotationDomain.ErrRotationNotFound)
		assert.Equal(t, 1, attempts)
	})

	t.Run("Error_BudgetExhausted", func(t *testing.T) {
		attempts := 0
		err := retry(ctx, testRetry, func() error {
			attempts++
			return apperrors.NewRemoteError(apperrors.ErrRemoteUnavailable, "tokens", "timeout")
		}, apperrors.IsRetryable)
		assert.ErrorIs(t, err, apperrors.ErrRemoteUnavailable)
		assert.Equal(t, int(testRetry.MaxRetries)+1, attempts)
	})

	t.Run("Error_CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := retry(cancelled, testRetry, func() error { return errDatabaseDown }, isRetryableLocal)
		assert.Error(t, err)
	})
}

func TestIsRetryableLocal(t *testing.T) {
	assert.True(t, isRetryableLocal(errDatabaseDown))
	assert.False(t, isRetryableLocal(context.Canceled))
	assert.False(t, isRetryableLocal(rotationDomain.ErrRotationNameTaken))
	assert.False(t, isRetryableLocal(apperrors.Wrap(apperrors.ErrCrypto, "unwrap failed")))
	assert.False(t, isRetryableLocal(apperrors.ErrForbidden))
}

func TestRetryConfig_WithDefaults(t *testing.T) {
	assert.Equal(t, DefaultRetryConfig, RetryConfig{}.withDefaults())
	assert.Equal(t, testRetry, testRetry.withDefaults())
}
