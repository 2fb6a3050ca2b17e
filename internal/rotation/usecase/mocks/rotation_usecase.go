// Package mocks provides testify mock implementations of the rotation use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

// MockRotationUseCase is a mock implementation of RotationUseCase.
type MockRotationUseCase struct {
	mock.Mock
}

// NewMockRotationUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockRotationUseCase(t *testing.T) *MockRotationUseCase {
	m := &MockRotationUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRotationUseCase) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input *rotationDomain.CreateRotationInput,
) (*rotationDomain.Rotation, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Rotation), args.Error(1)
}

func (m *MockRotationUseCase) Update(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
	input *rotationDomain.UpdateRotationInput,
) (*rotationDomain.Rotation, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Rotation), args.Error(1)
}

func (m *MockRotationUseCase) Get(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.Rotation, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Rotation), args.Error(1)
}

func (m *MockRotationUseCase) List(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	offset, limit int,
) ([]*rotationDomain.Rotation, error) {
	args := m.Called(ctx, actor, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rotationDomain.Rotation), args.Error(1)
}

func (m *MockRotationUseCase) Delete(ctx context.Context, actor authDomain.Actor, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockRotationUseCase) Rotate(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.RotationResult, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.RotationResult), args.Error(1)
}

// MockConnectionUseCase is a mock implementation of ConnectionUseCase.
type MockConnectionUseCase struct {
	mock.Mock
}

// NewMockConnectionUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockConnectionUseCase(t *testing.T) *MockConnectionUseCase {
	m := &MockConnectionUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockConnectionUseCase) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input *rotationDomain.CreateConnectionInput,
) (*rotationDomain.Connection, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Connection), args.Error(1)
}

func (m *MockConnectionUseCase) Get(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.Connection, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Connection), args.Error(1)
}
