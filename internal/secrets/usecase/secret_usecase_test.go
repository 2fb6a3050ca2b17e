package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	approvalMocks "github.com/allisson/rotator/internal/approval/usecase/mocks"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	dbMocks "github.com/allisson/rotator/internal/database/mocks"
	apperrors "github.com/allisson/rotator/internal/errors"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

var (
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testScope = secretsDomain.Scope{ProjectID: "billing", Environment: "prod", Path: "/db"}
	requester = authDomain.Actor{Type: authDomain.ActorUser, ID: "dave"}
	approverA = authDomain.Actor{Type: authDomain.ActorUser, ID: "alice"}
	approverB = authDomain.Actor{Type: authDomain.ActorUser, ID: "bob"}
)

type memSecretRepo struct {
	mu      sync.Mutex
	secrets []*secretsDomain.Secret
}

func (m *memSecretRepo) Create(_ context.Context, secret *secretsDomain.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.secrets {
		if s.Scope() == secret.Scope() && s.Key == secret.Key && s.Version == secret.Version {
			return secretsDomain.ErrVersionConflict
		}
	}
	c := *secret
	c.Ciphertext = bytes.Clone(secret.Ciphertext)
	m.secrets = append(m.secrets, &c)
	return nil
}

func (m *memSecretRepo) latest(scope secretsDomain.Scope, key string) *secretsDomain.Secret {
	var found *secretsDomain.Secret
	for _, s := range m.secrets {
		if s.Scope() == scope && s.Key == key && (found == nil || s.Version > found.Version) {
			found = s
		}
	}
	return found
}

func (m *memSecretRepo) GetLatest(
	_ context.Context,
	scope secretsDomain.Scope,
	key string,
) (*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.latest(scope, key)
	if found == nil {
		return nil, secretsDomain.ErrSecretNotFound
	}
	c := *found
	return &c, nil
}

func (m *memSecretRepo) ListLatest(_ context.Context, scope secretsDomain.Scope) ([]*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := map[string]struct{}{}
	for _, s := range m.secrets {
		if s.Scope() == scope {
			keys[s.Key] = struct{}{}
		}
	}
	result := make([]*secretsDomain.Secret, 0, len(keys))
	for key := range keys {
		c := *m.latest(scope, key)
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *memSecretRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.secrets)
}

type memRequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*approvalDomain.Request
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: make(map[uuid.UUID]*approvalDomain.Request)}
}

func cloneRequest(r *approvalDomain.Request) *approvalDomain.Request {
	c := *r
	c.Payload = bytes.Clone(r.Payload)
	c.ApprovedBy = append([]string(nil), r.ApprovedBy...)
	return &c
}

func (m *memRequestRepo) Create(_ context.Context, req *approvalDomain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *memRequestRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*approvalDomain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, approvalDomain.ErrRequestNotFound
	}
	return cloneRequest(r), nil
}

func (m *memRequestRepo) Update(_ context.Context, req *approvalDomain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return approvalDomain.ErrRequestNotFound
	}
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *memRequestRepo) only(t *testing.T) *approvalDomain.Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.requests, 1)
	for _, r := range m.requests {
		return cloneRequest(r)
	}
	return nil
}

// fakeEnvelope prefixes plaintext instead of encrypting it.
type fakeEnvelope struct {
	failDecrypt bool
}

var envelopePrefix = []byte("sealed:")

func (fakeEnvelope) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append(bytes.Clone(envelopePrefix), plaintext...), nil
}

func (f fakeEnvelope) Decrypt(_ context.Context, blob []byte) ([]byte, error) {
	if f.failDecrypt || !bytes.HasPrefix(blob, envelopePrefix) {
		return nil, apperrors.Wrap(apperrors.ErrCrypto, "not sealed")
	}
	return bytes.Clone(blob[len(envelopePrefix):]), nil
}

// staticPermissions grants everything unless denied is set.
type staticPermissions struct {
	denied bool
}

func (s staticPermissions) GetProjectPermission(
	_ context.Context,
	actor authDomain.Actor,
	projectID string,
) (authDomain.Permission, error) {
	if s.denied && !actor.IsSystem() {
		return authDomain.NewClientPermission(&authDomain.Client{IsActive: true}, projectID), nil
	}
	return authDomain.SystemPermission(projectID), nil
}

type fixture struct {
	secrets  *memSecretRepo
	requests *memRequestRepo
	policies *approvalMocks.MockPolicyRepository
	resolver *approvalMocks.MockResolver
	uc       SecretUseCase
}

func newFixture(t *testing.T, envelope fakeEnvelope, permissions PermissionProvider) *fixture {
	tx := dbMocks.NewMockTxManager(t)
	tx.RunInline().Maybe()

	f := &fixture{
		secrets:  &memSecretRepo{},
		requests: newMemRequestRepo(),
		policies: approvalMocks.NewMockPolicyRepository(t),
		resolver: approvalMocks.NewMockResolver(t),
	}
	f.uc = NewSecretUseCase(
		tx, f.secrets, f.policies, f.requests, f.resolver, envelope, permissions,
		clockwork.NewFakeClockAt(testNow), slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func gatedPolicy(approvals int) *approvalDomain.Policy {
	return &approvalDomain.Policy{
		ID:          uuid.Must(uuid.NewV7()),
		ProjectID:   "billing",
		Environment: "prod",
		Approvals:   approvals,
		ApproverIDs: []string{"alice", "bob"},
		CreatedAt:   testNow,
	}
}

func entries(kv ...string) []secretsDomain.Entry {
	out := make([]secretsDomain.Entry, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, secretsDomain.Entry{Key: kv[i], Value: []byte(kv[i+1])})
	}
	return out
}

func TestSecretUseCase_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_UngovernedWriteIncrementsVersion", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(nil, nil)

		first, err := f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "one"))
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, uint(1), first[0].Version)
		assert.Equal(t, "user:dave", first[0].CreatedBy)
		assert.Equal(t, []byte("sealed:one"), first[0].Ciphertext)

		second, err := f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "two", "DB_USERNAME", "app"))
		require.NoError(t, err)
		require.Len(t, second, 2)
		assert.Equal(t, uint(2), second[0].Version)
		assert.Equal(t, uint(1), second[1].Version)
	})

	t.Run("Success_ZeroApprovalPolicyWritesDirectly", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(gatedPolicy(0), nil)

		_, err := f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "one"))
		require.NoError(t, err)
		assert.Equal(t, 1, f.secrets.count())
	})

	t.Run("Success_SystemActorBypassesPolicy", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(gatedPolicy(2), nil)

		written, err := f.uc.Upsert(ctx, authDomain.SystemActor, testScope, entries("DB_PASSWORD", "rotated"))
		require.NoError(t, err)
		require.Len(t, written, 1)
		assert.Equal(t, "system:rotation-engine", written[0].CreatedBy)
		assert.Empty(t, f.requests.requests)
	})

	t.Run("Success_UserWriteHeldForApproval", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		policy := gatedPolicy(1)
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(policy, nil)

		written, err := f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "pending"))
		assert.Nil(t, written)
		assert.ErrorIs(t, err, apperrors.ErrApprovalRequired)

		var approvalErr *secretsDomain.ApprovalRequiredError
		require.True(t, errors.As(err, &approvalErr))
		assert.Equal(t, policy.ID, approvalErr.PolicyID)

		req := f.requests.only(t)
		assert.Equal(t, approvalErr.RequestID, req.ID)
		assert.Equal(t, "dave", req.RequestedBy)
		assert.Equal(t, "/db", req.SecretPath)
		assert.True(t, bytes.HasPrefix(req.Payload, envelopePrefix))
		assert.NotContains(t, string(req.Payload[len(envelopePrefix):]), "pending")
		assert.Equal(t, 0, f.secrets.count())
	})

	t.Run("Error_InvalidScope", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})

		_, err := f.uc.Upsert(ctx, requester, secretsDomain.Scope{ProjectID: "billing", Environment: "prod", Path: "db"},
			entries("K", "v"))
		assert.ErrorIs(t, err, secretsDomain.ErrInvalidScope)
	})

	t.Run("Error_DuplicateKeys", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})

		_, err := f.uc.Upsert(ctx, requester, testScope, entries("K", "a", "K", "b"))
		assert.ErrorIs(t, err, secretsDomain.ErrInvalidEntry)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{denied: true})

		_, err := f.uc.Upsert(ctx, requester, testScope, entries("K", "v"))
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("Error_ResolverFailure", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(nil, errors.New("db down"))

		_, err := f.uc.Upsert(ctx, requester, testScope, entries("K", "v"))
		assert.Error(t, err)
		assert.Equal(t, 0, f.secrets.count())
	})
}

func TestSecretUseCase_GetAndList(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture) {
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(nil, nil)
		_, err := f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "one", "DB_USERNAME", "app"))
		require.NoError(t, err)
		_, err = f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "two"))
		require.NoError(t, err)
	}

	t.Run("Success_GetLatest", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		seed(t, f)

		secret, err := f.uc.Get(ctx, requester, testScope, "DB_PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, uint(2), secret.Version)
		assert.Equal(t, []byte("two"), secret.Plaintext)
	})

	t.Run("Success_List", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		seed(t, f)

		secrets, err := f.uc.List(ctx, requester, testScope)
		require.NoError(t, err)
		require.Len(t, secrets, 2)
		assert.Equal(t, []byte("two"), secrets[0].Plaintext)
		assert.Equal(t, []byte("app"), secrets[1].Plaintext)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})

		_, err := f.uc.Get(ctx, requester, testScope, "MISSING")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Error_DecryptFailure", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{failDecrypt: true}, staticPermissions{})
		seed(t, f)

		_, err := f.uc.List(ctx, requester, testScope)
		assert.ErrorIs(t, err, apperrors.ErrCrypto)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{denied: true})

		_, err := f.uc.Get(ctx, requester, testScope, "DB_PASSWORD")
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestSecretUseCase_ApproveRequest(t *testing.T) {
	ctx := context.Background()

	hold := func(t *testing.T, f *fixture, policy *approvalDomain.Policy) uuid.UUID {
		f.resolver.On("Resolve", mock.Anything, "billing", "prod", "/db").Return(policy, nil)
		f.policies.On("Get", mock.Anything, policy.ID).Return(policy, nil)

		_, err := f.uc.Upsert(ctx, requester, testScope, entries("DB_PASSWORD", "approved-value"))
		var approvalErr *secretsDomain.ApprovalRequiredError
		require.True(t, errors.As(err, &approvalErr))
		return approvalErr.RequestID
	}

	t.Run("Success_AppliedWhenThresholdReached", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		id := hold(t, f, gatedPolicy(2))

		req, err := f.uc.ApproveRequest(ctx, approverA, id)
		require.NoError(t, err)
		assert.Equal(t, approvalDomain.RequestPending, req.Status)
		assert.Equal(t, 0, f.secrets.count())

		req, err = f.uc.ApproveRequest(ctx, approverB, id)
		require.NoError(t, err)
		assert.Equal(t, approvalDomain.RequestApplied, req.Status)
		assert.ElementsMatch(t, []string{"alice", "bob"}, req.ApprovedBy)

		secret, err := f.uc.Get(ctx, requester, testScope, "DB_PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, []byte("approved-value"), secret.Plaintext)
		assert.Equal(t, "user:dave", secret.CreatedBy)
	})

	t.Run("Success_DuplicateApprovalCountsOnce", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		id := hold(t, f, gatedPolicy(2))

		_, err := f.uc.ApproveRequest(ctx, approverA, id)
		require.NoError(t, err)
		req, err := f.uc.ApproveRequest(ctx, approverA, id)
		require.NoError(t, err)
		assert.Equal(t, approvalDomain.RequestPending, req.Status)
		assert.Equal(t, 0, f.secrets.count())
	})

	t.Run("Error_SelfApproval", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		policy := gatedPolicy(1)
		policy.ApproverIDs = append(policy.ApproverIDs, "dave")
		id := hold(t, f, policy)

		_, err := f.uc.ApproveRequest(ctx, requester, id)
		assert.ErrorIs(t, err, approvalDomain.ErrSelfApproval)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("Error_NotApprover", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		id := hold(t, f, gatedPolicy(1))

		_, err := f.uc.ApproveRequest(ctx, authDomain.Actor{Type: authDomain.ActorUser, ID: "mallory"}, id)
		assert.ErrorIs(t, err, approvalDomain.ErrNotApprover)
	})

	t.Run("Error_AlreadyApplied", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})
		id := hold(t, f, gatedPolicy(1))

		_, err := f.uc.ApproveRequest(ctx, approverA, id)
		require.NoError(t, err)
		_, err = f.uc.ApproveRequest(ctx, approverB, id)
		assert.ErrorIs(t, err, approvalDomain.ErrRequestNotPending)
		assert.Equal(t, 1, f.secrets.count())
	})

	t.Run("Error_UnknownRequest", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{}, staticPermissions{})

		_, err := f.uc.ApproveRequest(ctx, approverA, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Error_PayloadCannotBeOpened", func(t *testing.T) {
		f := newFixture(t, fakeEnvelope{failDecrypt: true}, staticPermissions{})
		id := hold(t, f, gatedPolicy(1))

		_, err := f.uc.ApproveRequest(ctx, approverA, id)
		assert.ErrorIs(t, err, apperrors.ErrCrypto)
		assert.Equal(t, approvalDomain.RequestPending, f.requests.only(t).Status)
	})
}
