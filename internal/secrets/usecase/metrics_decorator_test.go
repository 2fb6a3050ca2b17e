package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
	"github.com/allisson/rotator/internal/secrets/usecase"
	"github.com/allisson/rotator/internal/secrets/usecase/mocks"
)

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) expect(ctx context.Context, operation, status string) {
	m.On("RecordOperation", ctx, "secrets", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "secrets", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

func TestSecretUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	actor := authDomain.Actor{Type: authDomain.ActorUser, ID: "client-1"}
	scope := secretsDomain.Scope{ProjectID: "billing", Environment: "prod", Path: "/db"}
	entries := []secretsDomain.Entry{{Key: "DB_PASSWORD", Value: []byte("x")}}

	t.Run("Upsert success", func(t *testing.T) {
		next := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}
		uc := usecase.NewSecretUseCaseWithMetrics(next, m)

		written := []*secretsDomain.Secret{{Key: "DB_PASSWORD", Version: 1}}
		next.On("Upsert", ctx, actor, scope, entries).Return(written, nil).Once()
		m.expect(ctx, "secret_upsert", "success")

		got, err := uc.Upsert(ctx, actor, scope, entries)
		assert.NoError(t, err)
		assert.Equal(t, written, got)
		m.AssertExpectations(t)
	})

	t.Run("Upsert held for approval", func(t *testing.T) {
		next := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}
		uc := usecase.NewSecretUseCaseWithMetrics(next, m)

		held := &secretsDomain.ApprovalRequiredError{RequestID: uuid.New(), PolicyID: uuid.New()}
		next.On("Upsert", ctx, actor, scope, entries).Return(nil, held).Once()
		m.expect(ctx, "secret_upsert", "approval_required")

		_, err := uc.Upsert(ctx, actor, scope, entries)
		assert.ErrorIs(t, err, held)
		m.AssertExpectations(t)
	})

	t.Run("Get error", func(t *testing.T) {
		next := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}
		uc := usecase.NewSecretUseCaseWithMetrics(next, m)

		next.On("Get", ctx, actor, scope, "DB_PASSWORD").Return(nil, errors.New("boom")).Once()
		m.expect(ctx, "secret_get", "error")

		got, err := uc.Get(ctx, actor, scope, "DB_PASSWORD")
		assert.Error(t, err)
		assert.Nil(t, got)
		m.AssertExpectations(t)
	})

	t.Run("List success", func(t *testing.T) {
		next := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}
		uc := usecase.NewSecretUseCaseWithMetrics(next, m)

		next.On("List", ctx, actor, scope).Return([]*secretsDomain.Secret{}, nil).Once()
		m.expect(ctx, "secret_list", "success")

		_, err := uc.List(ctx, actor, scope)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})

	t.Run("ApproveRequest success", func(t *testing.T) {
		next := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}
		uc := usecase.NewSecretUseCaseWithMetrics(next, m)

		id := uuid.New()
		req := &approvalDomain.Request{ID: id, Status: approvalDomain.RequestApplied}
		next.On("ApproveRequest", ctx, actor, id).Return(req, nil).Once()
		m.expect(ctx, "approval_request_approve", "success")

		got, err := uc.ApproveRequest(ctx, actor, id)
		assert.NoError(t, err)
		assert.Equal(t, req, got)
		m.AssertExpectations(t)
	})
}
