// Package mocks provides testify mock implementations of the approval interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

// MockPolicyRepository is a mock implementation of PolicyRepository.
type MockPolicyRepository struct {
	mock.Mock
}

// NewMockPolicyRepository creates a mock whose expectations are asserted on cleanup.
func NewMockPolicyRepository(t *testing.T) *MockPolicyRepository {
	m := &MockPolicyRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *approvalDomain.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Policy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Policy), args.Error(1)
}

func (m *MockPolicyRepository) ListByEnvironment(
	ctx context.Context,
	projectID, environment string,
) ([]*approvalDomain.Policy, error) {
	args := m.Called(ctx, projectID, environment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approvalDomain.Policy), args.Error(1)
}

func (m *MockPolicyRepository) List(
	ctx context.Context,
	projectID string,
	offset, limit int,
) ([]*approvalDomain.Policy, error) {
	args := m.Called(ctx, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approvalDomain.Policy), args.Error(1)
}

// MockRequestRepository is a mock implementation of RequestRepository.
type MockRequestRepository struct {
	mock.Mock
}

// NewMockRequestRepository creates a mock whose expectations are asserted on cleanup.
func NewMockRequestRepository(t *testing.T) *MockRequestRepository {
	m := &MockRequestRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRequestRepository) Create(ctx context.Context, req *approvalDomain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Request), args.Error(1)
}

func (m *MockRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Request), args.Error(1)
}

func (m *MockRequestRepository) Update(ctx context.Context, req *approvalDomain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockResolver is a mock implementation of Resolver.
type MockResolver struct {
	mock.Mock
}

// NewMockResolver creates a mock whose expectations are asserted on cleanup.
func NewMockResolver(t *testing.T) *MockResolver {
	m := &MockResolver{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResolver) Resolve(
	ctx context.Context,
	projectID, environment, secretPath string,
) (*approvalDomain.Policy, error) {
	args := m.Called(ctx, projectID, environment, secretPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Policy), args.Error(1)
}

// MockPolicyUseCase is a mock implementation of PolicyUseCase.
type MockPolicyUseCase struct {
	mock.Mock
}

// NewMockPolicyUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockPolicyUseCase(t *testing.T) *MockPolicyUseCase {
	m := &MockPolicyUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPolicyUseCase) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input approvalDomain.CreatePolicyInput,
) (*approvalDomain.Policy, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Policy), args.Error(1)
}

func (m *MockPolicyUseCase) List(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	offset, limit int,
) ([]*approvalDomain.Policy, error) {
	args := m.Called(ctx, actor, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approvalDomain.Policy), args.Error(1)
}

func (m *MockPolicyUseCase) Resolve(
	ctx context.Context,
	actor authDomain.Actor,
	projectID, environment, secretPath string,
) (*approvalDomain.Policy, error) {
	args := m.Called(ctx, actor, projectID, environment, secretPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approvalDomain.Policy), args.Error(1)
}

// MockPermissionProvider is a mock implementation of PermissionProvider.
type MockPermissionProvider struct {
	mock.Mock
}

// NewMockPermissionProvider creates a mock whose expectations are asserted on cleanup.
func NewMockPermissionProvider(t *testing.T) *MockPermissionProvider {
	m := &MockPermissionProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPermissionProvider) GetProjectPermission(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
) (authDomain.Permission, error) {
	args := m.Called(ctx, actor, projectID)
	return args.Get(0).(authDomain.Permission), args.Error(1)
}
