package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
	"github.com/allisson/rotator/internal/rotation/factory"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

var errDatabaseDown = errors.New("connection reset by peer")

// memRotationRepo stores copies of definitions. failUpdates maps a 1-based Update call
// number to the error it returns.
type memRotationRepo struct {
	mu          sync.Mutex
	rotations   map[uuid.UUID]*rotationDomain.Rotation
	updates     int
	failUpdates map[int]error
}

func newMemRotationRepo() *memRotationRepo {
	return &memRotationRepo{
		rotations:   make(map[uuid.UUID]*rotationDomain.Rotation),
		failUpdates: make(map[int]error),
	}
}

func cloneRotation(r *rotationDomain.Rotation) *rotationDomain.Rotation {
	c := *r
	c.EncryptedCredentials = bytes.Clone(r.EncryptedCredentials)
	return &c
}

func (m *memRotationRepo) Create(_ context.Context, r *rotationDomain.Rotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotations[r.ID] = cloneRotation(r)
	return nil
}

func (m *memRotationRepo) Get(_ context.Context, id uuid.UUID) (*rotationDomain.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rotations[id]
	if !ok {
		return nil, rotationDomain.ErrRotationNotFound
	}
	return cloneRotation(r), nil
}

func (m *memRotationRepo) Update(_ context.Context, r *rotationDomain.Rotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if err, ok := m.failUpdates[m.updates]; ok {
		return err
	}
	if _, ok := m.rotations[r.ID]; !ok {
		return rotationDomain.ErrRotationNotFound
	}
	m.rotations[r.ID] = cloneRotation(r)
	return nil
}

func (m *memRotationRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rotations[id]; !ok {
		return rotationDomain.ErrRotationNotFound
	}
	delete(m.rotations, id)
	return nil
}

func (m *memRotationRepo) List(
	_ context.Context,
	projectID string,
	offset, limit int,
) ([]*rotationDomain.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*rotationDomain.Rotation, 0)
	for _, r := range m.rotations {
		if r.ProjectID == projectID {
			out = append(out, cloneRotation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if offset >= len(out) {
		return []*rotationDomain.Rotation{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRotationRepo) ListDue(
	_ context.Context,
	now, staleBefore time.Time,
	limit int,
) ([]*rotationDomain.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*rotationDomain.Rotation, 0)
	for _, r := range m.rotations {
		due := r.Status == rotationDomain.StatusActive && r.AutoRotate && r.NextRotationAt != nil &&
			!r.NextRotationAt.After(now)
		stuck := r.Status == rotationDomain.StatusRotating && !r.UpdatedAt.After(staleBefore)
		if due || stuck {
			out = append(out, cloneRotation(r))
		}
	}
	sortKey := func(r *rotationDomain.Rotation) time.Time {
		if r.NextRotationAt != nil {
			return *r.NextRotationAt
		}
		return r.UpdatedAt
	}
	sort.Slice(out, func(i, j int) bool { return sortKey(out[i]).Before(sortKey(out[j])) })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRotationRepo) stored(t *testing.T, id uuid.UUID) *rotationDomain.Rotation {
	t.Helper()
	r, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}

type memConnectionRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*rotationDomain.Connection
}

func newMemConnectionRepo() *memConnectionRepo {
	return &memConnectionRepo{conns: make(map[uuid.UUID]*rotationDomain.Connection)}
}

func (m *memConnectionRepo) Create(_ context.Context, c *rotationDomain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.ID] = c
	return nil
}

func (m *memConnectionRepo) Get(_ context.Context, id uuid.UUID) (*rotationDomain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, rotationDomain.ErrConnectionNotFound
	}
	return c, nil
}

// fakeEnvelope prefixes plaintext instead of encrypting it.
type fakeEnvelope struct{}

var envelopePrefix = []byte("sealed:")

func (fakeEnvelope) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append(bytes.Clone(envelopePrefix), plaintext...), nil
}

func (fakeEnvelope) Decrypt(_ context.Context, blob []byte) ([]byte, error) {
	if !bytes.HasPrefix(blob, envelopePrefix) {
		return nil, apperrors.Wrap(apperrors.ErrCrypto, "not sealed")
	}
	return bytes.Clone(blob[len(envelopePrefix):]), nil
}

type fakeTxManager struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx)
}

// staticPermissions grants everything unless denied is set.
type staticPermissions struct {
	denied bool
}

func (s staticPermissions) GetProjectPermission(
	_ context.Context,
	_ authDomain.Actor,
	projectID string,
) (authDomain.Permission, error) {
	if s.denied {
		client := &authDomain.Client{ID: uuid.New(), IsActive: true}
		return authDomain.NewClientPermission(client, projectID), nil
	}
	return authDomain.SystemPermission(projectID), nil
}

type upsertCall struct {
	actor   authDomain.Actor
	scope   secretsDomain.Scope
	entries map[string]string
}

type fakeSecrets struct {
	mu    sync.Mutex
	calls []upsertCall
}

func (f *fakeSecrets) Upsert(
	_ context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	entries []secretsDomain.Entry,
) ([]*secretsDomain.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = string(e.Value)
	}
	f.calls = append(f.calls, upsertCall{actor: actor, scope: scope, entries: values})
	return nil, nil
}

func (f *fakeSecrets) upserts() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upsertCall(nil), f.calls...)
}

// fakeFactory records every remote interaction.
type fakeFactory struct {
	mu sync.Mutex

	ordering  rotationDomain.Ordering
	issueErrs []error
	revokeErr error
	// started receives once per issuance; release blocks the issuance until closed.
	started chan struct{}
	release chan struct{}

	issued     []string
	revoked    [][]string
	reconciled []string
	rotations  int
	closed     int
}

func newFakeFactory(ordering rotationDomain.Ordering) *fakeFactory {
	return &fakeFactory{ordering: ordering}
}

func (f *fakeFactory) Kind() rotationDomain.Kind         { return rotationDomain.KindServiceToken }
func (f *fakeFactory) Ordering() rotationDomain.Ordering { return f.ordering }

func (f *fakeFactory) IssueCredentials(_ context.Context, displayName string) (rotationDomain.GeneratedCredential, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.issueErrs) > 0 {
		err := f.issueErrs[0]
		f.issueErrs = f.issueErrs[1:]
		if err != nil {
			return rotationDomain.GeneratedCredential{}, err
		}
	}
	id := fmt.Sprintf("cred-%d", len(f.issued)+1)
	f.issued = append(f.issued, id)
	return rotationDomain.GeneratedCredential{
		ExternalID:  id,
		Secret:      "secret-" + id,
		DisplayName: displayName,
		IssuedAt:    time.Now().UTC(),
	}, nil
}

func (f *fakeFactory) RevokeCredentials(_ context.Context, creds rotationDomain.CredentialSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, creds.ExternalIDs())
	return f.revokeErr
}

func (f *fakeFactory) CredentialExists(context.Context, rotationDomain.GeneratedCredential) (bool, error) {
	return true, nil
}

func (f *fakeFactory) RotateCredentials(
	ctx context.Context,
	old rotationDomain.CredentialSet,
	displayName string,
) (rotationDomain.GeneratedCredential, error) {
	f.mu.Lock()
	f.rotations++
	f.mu.Unlock()
	if len(old) > 0 {
		if err := f.RevokeCredentials(ctx, old); err != nil {
			return rotationDomain.GeneratedCredential{}, err
		}
	}
	return f.IssueCredentials(ctx, displayName)
}

func (f *fakeFactory) ReconcileIssue(_ context.Context, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, displayName)
	return nil
}

func (f *fakeFactory) GetSecretsPayload(set rotationDomain.CredentialSet) []rotationDomain.SecretPayload {
	active, ok := set.Active()
	if !ok {
		return nil
	}
	return []rotationDomain.SecretPayload{
		{Key: "TOKEN", Value: active.Secret},
		{Key: "TOKEN_ID", Value: active.ExternalID},
	}
}

func (f *fakeFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFactory) issuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issued)
}

// fakeBuilder hands out the same factory for every build.
type fakeBuilder struct {
	factory *fakeFactory
	current []rotationDomain.CredentialSet
}

func (b *fakeBuilder) Build(
	conn rotationDomain.ConnectionConfig,
	cfg rotationDomain.Config,
	current rotationDomain.CredentialSet,
) (factory.Factory, error) {
	if conn.Kind() != cfg.Kind() {
		return nil, rotationDomain.ErrKindMismatch
	}
	b.current = append(b.current, current)
	return b.factory, nil
}

// fixture wires the orchestrator to in-memory collaborators.
type fixture struct {
	useCase     RotationUseCase
	rotations   *memRotationRepo
	connections *memConnectionRepo
	secrets     *fakeSecrets
	factory     *fakeFactory
	builder     *fakeBuilder
	tx          *fakeTxManager
	clock       *clockwork.FakeClock
	connection  *rotationDomain.Connection
}

var testRetry = RetryConfig{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxRetries: 3}

func newFixture(t *testing.T, ordering rotationDomain.Ordering, permissions PermissionProvider) *fixture {
	t.Helper()

	f := &fixture{
		rotations:   newMemRotationRepo(),
		connections: newMemConnectionRepo(),
		secrets:     &fakeSecrets{},
		factory:     newFakeFactory(ordering),
		tx:          &fakeTxManager{},
		clock:       clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.builder = &fakeBuilder{factory: f.factory}

	sealed, err := fakeEnvelope{}.Encrypt(context.Background(),
		[]byte(`{"baseUrl":"https://tokens.example.com","apiToken":"admin"}`))
	require.NoError(t, err)
	f.connection = &rotationDomain.Connection{
		ID:                   uuid.Must(uuid.NewV7()),
		ProjectID:            "proj-1",
		Kind:                 rotationDomain.KindServiceToken,
		Name:                 "tokens",
		EncryptedCredentials: sealed,
	}
	require.NoError(t, f.connections.Create(context.Background(), f.connection))

	f.useCase = NewRotationUseCase(
		f.tx,
		f.rotations,
		f.connections,
		fakeEnvelope{},
		permissions,
		f.secrets,
		f.builder,
		Options{
			Retry:  testRetry,
			Clock:  f.clock,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	)
	return f
}

// seed stores an active definition holding set.
func (f *fixture) seed(t *testing.T, set rotationDomain.CredentialSet) *rotationDomain.Rotation {
	t.Helper()

	r := &rotationDomain.Rotation{
		ID:             uuid.Must(uuid.NewV7()),
		ProjectID:      "proj-1",
		Environment:    "prod",
		SecretPath:     "/ci",
		Name:           "ci-token",
		Kind:           rotationDomain.KindServiceToken,
		ConnectionID:   f.connection.ID,
		Parameters:     []byte(`{"tokenName":"ci","scopes":["read"]}`),
		SecretsMapping: []byte(`{"token":"TOKEN","tokenId":"TOKEN_ID"}`),
		Status:         rotationDomain.StatusCreated,
	}
	if len(set) > 0 {
		plaintext, err := set.Marshal()
		require.NoError(t, err)
		r.EncryptedCredentials, err = fakeEnvelope{}.Encrypt(context.Background(), plaintext)
		require.NoError(t, err)
		r.Status = rotationDomain.StatusActive
	}
	require.NoError(t, f.rotations.Create(context.Background(), r))
	return r
}

// storedSet decrypts the credential set persisted for id.
func (f *fixture) storedSet(t *testing.T, id uuid.UUID) rotationDomain.CredentialSet {
	t.Helper()
	r := f.rotations.stored(t, id)
	plaintext, err := fakeEnvelope{}.Decrypt(context.Background(), r.EncryptedCredentials)
	require.NoError(t, err)
	set, err := rotationDomain.UnmarshalCredentialSet(plaintext)
	require.NoError(t, err)
	return set
}

func cred(id string) rotationDomain.GeneratedCredential {
	return rotationDomain.GeneratedCredential{ExternalID: id, Secret: "secret-" + id, DisplayName: "old-" + id}
}
