package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customError struct {
	Msg string
}

func (e customError) Error() string { return e.Msg }

func TestNew(t *testing.T) {
	err := New("test error")
	require.Error(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(baseErr, "wrapped")
		require.Error(t, wrapped)
		assert.Equal(t, "wrapped: base error", wrapped.Error())
		assert.ErrorIs(t, wrapped, baseErr)
	})

	t.Run("wrap nil error", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "wrapped"))
	})
}

func TestWrapf(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrapf non-nil error", func(t *testing.T) {
		wrapped := Wrapf(baseErr, "wrapped %d", 123)
		require.Error(t, wrapped)
		assert.Equal(t, "wrapped 123: base error", wrapped.Error())
		assert.ErrorIs(t, wrapped, baseErr)
	})

	t.Run("wrapf nil error", func(t *testing.T) {
		assert.NoError(t, Wrapf(nil, "wrapped %d", 1))
	})
}

func TestIsAndAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", customError{Msg: "inner"})

	assert.True(t, Is(Wrap(ErrNotFound, "secret not found"), ErrNotFound))
	assert.False(t, Is(ErrNotFound, ErrConflict))

	var target customError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "inner", target.Msg)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"transport failure", Wrap(ErrRemoteUnavailable, "dial tcp"), true},
		{"provider error", Wrap(ErrBadRequest, "token name taken"), false},
		{"unknown failure", Wrap(ErrRemoteFailure, "500"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestRemoteError(t *testing.T) {
	t.Run("Success_UnwrapsToKind", func(t *testing.T) {
		err := Wrap(NewRemoteError(ErrBadRequest, "service-token", "scope not allowed"), "issue")

		assert.True(t, Is(err, ErrBadRequest))
		var remote *RemoteError
		require.True(t, As(err, &remote))
		assert.Equal(t, "service-token: scope not allowed", remote.Error())
	})

	t.Run("Success_TruncatesMessage", func(t *testing.T) {
		long := make([]byte, 1000)
		for i := range long {
			long[i] = 'x'
		}
		err := NewRemoteError(ErrRemoteFailure, "p", string(long))
		assert.Len(t, err.Message, maxRemoteMessage+3)
	})
}
