package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	"github.com/allisson/rotator/internal/approval/usecase/mocks"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
)

var (
	testActor = authDomain.Actor{Type: authDomain.ActorUser, ID: "client-1"}
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allowAll(t *testing.T) *mocks.MockPermissionProvider {
	p := mocks.NewMockPermissionProvider(t)
	p.On("GetProjectPermission", mock.Anything, mock.Anything, mock.Anything).
		Return(authDomain.SystemPermission("billing"), nil)
	return p
}

func denyAll(t *testing.T) *mocks.MockPermissionProvider {
	client := &authDomain.Client{ID: uuid.Must(uuid.NewV7()), IsActive: true}
	p := mocks.NewMockPermissionProvider(t)
	p.On("GetProjectPermission", mock.Anything, mock.Anything, "billing").
		Return(authDomain.NewClientPermission(client, "billing"), nil)
	return p
}

func strPtr(s string) *string { return &s }

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	envWide := &approvalDomain.Policy{
		ID: uuid.Must(uuid.NewV7()), ProjectID: "billing", Environment: "prod",
		Approvals: 1, ApproverIDs: []string{"alice"}, CreatedAt: testNow,
	}
	exact := &approvalDomain.Policy{
		ID: uuid.Must(uuid.NewV7()), ProjectID: "billing", Environment: "prod", SecretPath: strPtr("/db"),
		Approvals: 2, ApproverIDs: []string{"alice", "bob"}, CreatedAt: testNow.Add(time.Hour),
	}

	t.Run("Success_MostSpecificWins", func(t *testing.T) {
		repo := mocks.NewMockPolicyRepository(t)
		repo.On("ListByEnvironment", ctx, "billing", "prod").
			Return([]*approvalDomain.Policy{envWide, exact}, nil)

		got, err := NewResolver(repo).Resolve(ctx, "billing", "prod", "/db")
		require.NoError(t, err)
		assert.Equal(t, exact.ID, got.ID)
	})

	t.Run("Success_FallsBackToEnvironment", func(t *testing.T) {
		repo := mocks.NewMockPolicyRepository(t)
		repo.On("ListByEnvironment", ctx, "billing", "prod").
			Return([]*approvalDomain.Policy{envWide, exact}, nil)

		got, err := NewResolver(repo).Resolve(ctx, "billing", "prod", "/cache")
		require.NoError(t, err)
		assert.Equal(t, envWide.ID, got.ID)
	})

	t.Run("Success_NoPolicy", func(t *testing.T) {
		repo := mocks.NewMockPolicyRepository(t)
		repo.On("ListByEnvironment", ctx, "billing", "dev").Return([]*approvalDomain.Policy{}, nil)

		got, err := NewResolver(repo).Resolve(ctx, "billing", "dev", "/db")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := mocks.NewMockPolicyRepository(t)
		repo.On("ListByEnvironment", ctx, "billing", "prod").Return(nil, errors.New("db down"))

		_, err := NewResolver(repo).Resolve(ctx, "billing", "prod", "/db")
		assert.Error(t, err)
	})
}

func TestPolicyUseCase_Create(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)

	t.Run("Success", func(t *testing.T) {
		repo := mocks.NewMockPolicyRepository(t)
		repo.On("Create", ctx, mock.MatchedBy(func(p *approvalDomain.Policy) bool {
			return p.ProjectID == "billing" && p.Approvals == 1 && p.CreatedAt.Equal(testNow)
		})).Return(nil)

		uc := NewPolicyUseCase(repo, mocks.NewMockResolver(t), allowAll(t), clock, discardLogger())
		policy, err := uc.Create(ctx, testActor, approvalDomain.CreatePolicyInput{
			ProjectID:   "billing",
			Environment: "prod",
			SecretPath:  strPtr("/db/*"),
			Approvals:   1,
			ApproverIDs: []string{"alice", "bob"},
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, policy.ID)
		assert.Equal(t, "/db/*", *policy.SecretPath)
	})

	t.Run("Error_TooManyApprovals", func(t *testing.T) {
		uc := NewPolicyUseCase(
			mocks.NewMockPolicyRepository(t), mocks.NewMockResolver(t), allowAll(t), clock, discardLogger(),
		)
		_, err := uc.Create(ctx, testActor, approvalDomain.CreatePolicyInput{
			ProjectID:   "billing",
			Environment: "prod",
			Approvals:   3,
			ApproverIDs: []string{"alice"},
		})
		assert.ErrorIs(t, err, approvalDomain.ErrTooManyApprovals)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		uc := NewPolicyUseCase(
			mocks.NewMockPolicyRepository(t), mocks.NewMockResolver(t), denyAll(t), clock, discardLogger(),
		)
		_, err := uc.Create(ctx, testActor, approvalDomain.CreatePolicyInput{
			ProjectID:   "billing",
			Environment: "prod",
			Approvals:   1,
			ApproverIDs: []string{"alice"},
		})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("Error_UnknownActor", func(t *testing.T) {
		perms := mocks.NewMockPermissionProvider(t)
		perms.On("GetProjectPermission", ctx, testActor, "billing").
			Return(authDomain.Permission{}, apperrors.ErrUnauthorized)

		uc := NewPolicyUseCase(
			mocks.NewMockPolicyRepository(t), mocks.NewMockResolver(t), perms, clock, discardLogger(),
		)
		_, err := uc.Create(ctx, testActor, approvalDomain.CreatePolicyInput{ProjectID: "billing"})
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestPolicyUseCase_ListAndResolve(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	policy := &approvalDomain.Policy{
		ID: uuid.Must(uuid.NewV7()), ProjectID: "billing", Environment: "prod",
		Approvals: 1, ApproverIDs: []string{"alice"}, CreatedAt: testNow,
	}

	t.Run("Success_List", func(t *testing.T) {
		repo := mocks.NewMockPolicyRepository(t)
		repo.On("List", ctx, "billing", 0, 50).Return([]*approvalDomain.Policy{policy}, nil)

		uc := NewPolicyUseCase(repo, mocks.NewMockResolver(t), allowAll(t), clock, discardLogger())
		policies, err := uc.List(ctx, testActor, "billing", 0, 50)
		require.NoError(t, err)
		assert.Len(t, policies, 1)
	})

	t.Run("Success_Resolve", func(t *testing.T) {
		resolver := mocks.NewMockResolver(t)
		resolver.On("Resolve", ctx, "billing", "prod", "/db").Return(policy, nil)

		uc := NewPolicyUseCase(mocks.NewMockPolicyRepository(t), resolver, allowAll(t), clock, discardLogger())
		got, err := uc.Resolve(ctx, testActor, "billing", "prod", "/db")
		require.NoError(t, err)
		assert.Equal(t, policy.ID, got.ID)
	})

	t.Run("Error_ResolveForbidden", func(t *testing.T) {
		uc := NewPolicyUseCase(
			mocks.NewMockPolicyRepository(t), mocks.NewMockResolver(t), denyAll(t), clock, discardLogger(),
		)
		_, err := uc.Resolve(ctx, testActor, "billing", "prod", "/db")
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}
