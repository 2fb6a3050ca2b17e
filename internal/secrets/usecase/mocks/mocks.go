// Package mocks provides testify mock implementations of the secrets use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// MockSecretUseCase is a mock implementation of SecretUseCase.
type MockSecretUseCase struct {
	mock.Mock
}

// NewMockSecretUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockSecretUseCase(t *testing.T) *MockSecretUseCase {
	m := &MockSecretUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSecretUseCase) Upsert(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	entries []secretsDomain.Entry,
) ([]*secretsDomain.Secret, error) {
	args := m.Called(ctx, actor, scope, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*secretsDomain.Secret), args.Error(1)
}

func (m *MockSecretUseCase) Get(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	key string,
) (*secretsDomain.Secret, error) {
	args := m.Called(ctx, actor, scope, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.Secret), args.Error(1)
}

func (m *MockSecretUseCase) List(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
) ([]*secretsDomain.Secret, error) {
	args := m.Called(ctx, actor, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*secretsDomain.Secret), args.Error(1)
}

func (m *MockSecretUseCase) ApproveRequest(
	ctx context.Context,
	actor authDomain.Actor,
	requestID uuid.UUID,
) (*approvalDomain.Request, error) {
	args := m.Called(ctx, actor, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Request), args.Error(1)
}
