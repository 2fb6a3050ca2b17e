// Package mocks provides testify mock implementations of the auth use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

// MockClientUseCase is a mock implementation of ClientUseCase.
type MockClientUseCase struct {
	mock.Mock
}

// NewMockClientUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockClientUseCase(t *testing.T) *MockClientUseCase {
	m := &MockClientUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockClientUseCase) Create(
	ctx context.Context,
	input *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.CreateClientOutput), args.Error(1)
}

func (m *MockClientUseCase) Update(
	ctx context.Context,
	clientID uuid.UUID,
	input *authDomain.UpdateClientInput,
) error {
	return m.Called(ctx, clientID, input).Error(0)
}

func (m *MockClientUseCase) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Client), args.Error(1)
}

func (m *MockClientUseCase) Delete(ctx context.Context, clientID uuid.UUID) error {
	return m.Called(ctx, clientID).Error(0)
}

func (m *MockClientUseCase) Authenticate(ctx context.Context, token string) (*authDomain.Client, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Client), args.Error(1)
}

// MockPermissionUseCase is a mock implementation of PermissionUseCase.
type MockPermissionUseCase struct {
	mock.Mock
}

// NewMockPermissionUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockPermissionUseCase(t *testing.T) *MockPermissionUseCase {
	m := &MockPermissionUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPermissionUseCase) GetProjectPermission(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
) (authDomain.Permission, error) {
	args := m.Called(ctx, actor, projectID)
	return args.Get(0).(authDomain.Permission), args.Error(1)
}
