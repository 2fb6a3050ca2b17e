package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
	"github.com/allisson/rotator/internal/rotation/factory"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// maxLastError bounds the failure message stored on a definition.
const maxLastError = 512

// Options configures the rotation use case.
type Options struct {
	Retry  RetryConfig
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// rotationUseCase implements RotationUseCase.
//
// Remote calls never run inside a transaction. Every state change that must stay
// consistent with the secrets store is written in one local transaction, retried with
// backoff, and never triggers a second issuance.
type rotationUseCase struct {
	txManager      database.TxManager
	rotationRepo   RotationRepository
	connectionRepo ConnectionRepository
	envelope       EnvelopeService
	permissions    PermissionProvider
	secrets        SecretsWriter
	factories      FactoryBuilder
	locks          *keyedLock
	retry          RetryConfig
	clock          clockwork.Clock
	logger         *slog.Logger
}

// run carries the state of one issuance attempt.
type run struct {
	rotation *rotationDomain.Rotation
	factory  factory.Factory
	current  rotationDomain.CredentialSet
	// restore is the status written back when the attempt fails before a new
	// credential is stored.
	restore rotationDomain.Status
	logger  *slog.Logger
}

func (r *rotationUseCase) authorize(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	capability authDomain.Capability,
) error {
	permission, err := r.permissions.GetProjectPermission(ctx, actor, projectID)
	if err != nil {
		return err
	}
	return permission.Require(capability, authDomain.SubjectRotations)
}

// Create persists a new definition and performs its first issuance.
func (r *rotationUseCase) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input *rotationDomain.CreateRotationInput,
) (*rotationDomain.Rotation, error) {
	if err := r.authorize(ctx, actor, input.ProjectID, authDomain.WriteCapability); err != nil {
		return nil, err
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	if _, err := rotationDomain.DecodeConfig(input.Kind, input.Parameters, input.SecretsMapping); err != nil {
		return nil, err
	}

	conn, err := r.connectionRepo.Get(ctx, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.ProjectID != input.ProjectID {
		return nil, rotationDomain.ErrConnectionNotFound
	}
	if conn.Kind != input.Kind {
		return nil, rotationDomain.ErrKindMismatch
	}

	now := r.clock.Now().UTC()
	rotation := &rotationDomain.Rotation{
		ID:               uuid.Must(uuid.NewV7()),
		ProjectID:        input.ProjectID,
		Environment:      input.Environment,
		SecretPath:       input.SecretPath,
		Name:             input.Name,
		Kind:             input.Kind,
		ConnectionID:     input.ConnectionID,
		Parameters:       input.Parameters,
		SecretsMapping:   input.SecretsMapping,
		Status:           rotationDomain.StatusCreated,
		AutoRotate:       input.AutoRotate,
		RotationInterval: input.RotationInterval,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.rotationRepo.Create(ctx, rotation); err != nil {
		return nil, err
	}

	r.locks.TryLock(rotation.ID)
	defer r.locks.Unlock(rotation.ID)

	if _, err := r.rotate(ctx, rotation); err != nil {
		return nil, apperrors.Wrapf(err, "rotation %s created but first issuance failed", rotation.ID)
	}
	return rotation, nil
}

// Update changes parameters, mapping or schedule. Kind is immutable.
func (r *rotationUseCase) Update(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
	input *rotationDomain.UpdateRotationInput,
) (*rotationDomain.Rotation, error) {
	rotation, err := r.rotationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, rotation.ProjectID, authDomain.WriteCapability); err != nil {
		return nil, err
	}

	if !r.locks.TryLock(id) {
		return nil, rotationDomain.ErrRotationInProgress
	}
	defer r.locks.Unlock(id)

	rotation, err = r.rotationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	parameters, mapping := rotation.Parameters, rotation.SecretsMapping
	if len(input.Parameters) > 0 {
		parameters = input.Parameters
	}
	if len(input.SecretsMapping) > 0 {
		mapping = input.SecretsMapping
	}
	if _, err := rotationDomain.DecodeConfig(rotation.Kind, parameters, mapping); err != nil {
		return nil, err
	}
	rotation.Parameters, rotation.SecretsMapping = parameters, mapping

	now := r.clock.Now().UTC()
	if input.AutoRotate != nil || input.RotationInterval != nil {
		if input.AutoRotate != nil {
			rotation.AutoRotate = *input.AutoRotate
		}
		if input.RotationInterval != nil {
			if *input.RotationInterval < 0 {
				return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "rotation interval must not be negative")
			}
			rotation.RotationInterval = *input.RotationInterval
		}
		if rotation.Status == rotationDomain.StatusActive {
			from := now
			if rotation.LastRotatedAt != nil {
				from = *rotation.LastRotatedAt
			}
			rotation.Schedule(from)
		}
	}
	rotation.UpdatedAt = now

	if err := r.rotationRepo.Update(ctx, rotation); err != nil {
		return nil, err
	}
	return rotation, nil
}

// Get returns a definition.
func (r *rotationUseCase) Get(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.Rotation, error) {
	rotation, err := r.rotationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, rotation.ProjectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}
	return rotation, nil
}

// List returns the definitions of a project ordered by name.
func (r *rotationUseCase) List(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	offset, limit int,
) ([]*rotationDomain.Rotation, error) {
	if err := r.authorize(ctx, actor, projectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}
	return r.rotationRepo.List(ctx, projectID, offset, limit)
}

// Delete revokes all live remote credentials, then removes the definition.
func (r *rotationUseCase) Delete(ctx context.Context, actor authDomain.Actor, id uuid.UUID) error {
	rotation, err := r.rotationRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.authorize(ctx, actor, rotation.ProjectID, authDomain.DeleteCapability); err != nil {
		return err
	}

	if !r.locks.TryLock(id) {
		return rotationDomain.ErrRotationInProgress
	}
	defer r.locks.Unlock(id)

	rotation, err = r.rotationRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if len(rotation.EncryptedCredentials) > 0 || rotation.PendingIssue != "" {
		state, err := r.prepare(ctx, rotation)
		if err != nil {
			return err
		}
		defer r.closeFactory(state)

		if rotation.PendingIssue != "" {
			if err := r.retryRemote(ctx, func() error {
				return state.factory.ReconcileIssue(ctx, rotation.PendingIssue)
			}); err != nil {
				return apperrors.Wrap(err, "failed to reconcile pending issuance")
			}
		}
		if len(state.current) > 0 {
			if err := r.retryRemote(ctx, func() error {
				return state.factory.RevokeCredentials(ctx, state.current)
			}); err != nil {
				return apperrors.Wrap(err, "failed to revoke credentials")
			}
		}
	}

	if err := r.rotationRepo.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("rotation deleted", slog.String("rotation_id", id.String()))
	return nil
}

// Rotate replaces the active credential of a definition.
func (r *rotationUseCase) Rotate(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.RotationResult, error) {
	rotation, err := r.rotationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, rotation.ProjectID, authDomain.RotateCapability); err != nil {
		return nil, err
	}

	if !r.locks.TryLock(id) {
		return nil, rotationDomain.ErrRotationInProgress
	}
	defer r.locks.Unlock(id)

	// Reload under the lock so the state reflects any rotation that just finished.
	rotation, err = r.rotationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.rotate(ctx, rotation)
}

// rotate performs a rotation, or the first issuance for created definitions. The
// caller holds the definition lock.
func (r *rotationUseCase) rotate(
	ctx context.Context,
	rotation *rotationDomain.Rotation,
) (*rotationDomain.RotationResult, error) {
	state, err := r.prepare(ctx, rotation)
	if err != nil {
		return nil, r.fail(ctx, &run{rotation: rotation, restore: restoreStatus(rotation), logger: r.logger}, err)
	}
	defer r.closeFactory(state)

	if rotation.PendingIssue != "" {
		pending := rotation.PendingIssue
		if err := r.retryRemote(ctx, func() error {
			return state.factory.ReconcileIssue(ctx, pending)
		}); err != nil {
			return nil, r.fail(ctx, state, apperrors.Wrap(err, "failed to reconcile pending issuance"))
		}
		state.logger.Info("reconciled pending issuance", slog.String("display_name", pending))
		rotation.PendingIssue = ""
	}

	trimmed := false
	if stale := state.current.Stale(); len(stale) > 0 {
		if err := r.retryRemote(ctx, func() error {
			return state.factory.RevokeCredentials(ctx, stale)
		}); err != nil {
			return nil, r.fail(ctx, state, apperrors.Wrap(err, "failed to revoke stale credentials"))
		}
		state.current = state.current[:1]
		trimmed = true
	}

	displayName := rotation.DisplayName(r.clock.Now())
	if err := r.markRotating(ctx, state, displayName, trimmed); err != nil {
		return nil, r.fail(ctx, state, err)
	}

	switch ordering := state.factory.Ordering(); ordering {
	case rotationDomain.IssueThenRevoke:
		return r.issueThenRevoke(ctx, state, displayName)
	case rotationDomain.RevokeThenIssue:
		return r.revokeThenIssue(ctx, state, displayName)
	default:
		return nil, r.fail(ctx, state, fmt.Errorf("unhandled ordering %s", ordering))
	}
}

func (r *rotationUseCase) issueThenRevoke(
	ctx context.Context,
	state *run,
	displayName string,
) (*rotationDomain.RotationResult, error) {
	rotation := state.rotation

	cred, err := state.factory.IssueCredentials(ctx, displayName)
	if err != nil {
		return nil, r.failIssue(ctx, state, err)
	}

	next := append(rotationDomain.CredentialSet{cred}, state.current...)
	if err := r.storeCredentials(ctx, state, next, false); err != nil {
		// The new credential is live remotely but unknown locally. PendingIssue is
		// kept, so the next attempt reconciles it.
		return nil, r.fail(ctx, state, apperrors.Wrap(err, "failed to persist issued credential"))
	}

	result := &rotationDomain.RotationResult{Rotation: rotation}
	if len(state.current) > 0 {
		old := state.current
		if err := r.retryRemote(ctx, func() error {
			return state.factory.RevokeCredentials(ctx, old)
		}); err != nil {
			state.logger.Error("failed to revoke previous credential",
				slog.Any("external_ids", old.ExternalIDs()),
				slog.Any("error", err),
			)
			result.RevokeError = err
			updated := *rotation
			updated.MarkRotated(r.clock.Now().UTC())
			updated.LastError = truncateError(err)
			updated.UpdatedAt = r.clock.Now().UTC()
			if perr := r.persist(ctx, func(txCtx context.Context) error {
				return r.rotationRepo.Update(txCtx, &updated)
			}); perr != nil {
				return nil, r.fail(ctx, state, apperrors.Wrap(perr, "failed to record rotation"))
			}
			*rotation = updated
			return result, nil
		}
	}

	if err := r.completeRotation(ctx, state, rotationDomain.CredentialSet{cred}); err != nil {
		return nil, r.fail(ctx, state, apperrors.Wrap(err, "failed to record rotation"))
	}

	state.logger.Info("rotation completed", slog.String("display_name", displayName))
	return result, nil
}

func (r *rotationUseCase) revokeThenIssue(
	ctx context.Context,
	state *run,
	displayName string,
) (*rotationDomain.RotationResult, error) {
	cred, err := state.factory.RotateCredentials(ctx, state.current, displayName)
	if err != nil {
		return nil, r.failIssue(ctx, state, err)
	}

	if err := r.storeCredentials(ctx, state, rotationDomain.CredentialSet{cred}, true); err != nil {
		return nil, r.fail(ctx, state, apperrors.Wrap(err, "failed to persist issued credential"))
	}

	state.logger.Info("rotation completed", slog.String("display_name", displayName))
	return &rotationDomain.RotationResult{Rotation: state.rotation}, nil
}

// prepare decrypts the connection and the current credential set and builds the factory.
func (r *rotationUseCase) prepare(ctx context.Context, rotation *rotationDomain.Rotation) (*run, error) {
	logger := r.logger.With(
		slog.String("rotation_id", rotation.ID.String()),
		slog.String("kind", string(rotation.Kind)),
	)

	cfg, err := rotation.Config()
	if err != nil {
		return nil, err
	}

	conn, err := r.connectionRepo.Get(ctx, rotation.ConnectionID)
	if err != nil {
		return nil, err
	}
	connJSON, err := r.envelope.Decrypt(ctx, conn.EncryptedCredentials)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to decrypt connection credentials")
	}
	connCfg, err := rotationDomain.DecodeConnectionConfig(conn.Kind, connJSON)
	cryptoDomain.Zero(connJSON)
	if err != nil {
		return nil, err
	}

	var current rotationDomain.CredentialSet
	if len(rotation.EncryptedCredentials) > 0 {
		plaintext, err := r.envelope.Decrypt(ctx, rotation.EncryptedCredentials)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to decrypt credential set")
		}
		current, err = rotationDomain.UnmarshalCredentialSet(plaintext)
		cryptoDomain.Zero(plaintext)
		if err != nil {
			return nil, err
		}
	}

	f, err := r.factories.Build(connCfg, cfg, current)
	if err != nil {
		return nil, err
	}

	return &run{
		rotation: rotation,
		factory:  f,
		current:  current,
		restore:  restoreStatus(rotation),
		logger:   logger,
	}, nil
}

// markRotating records the rotating status and the display name about to be issued.
func (r *rotationUseCase) markRotating(ctx context.Context, state *run, displayName string, trimmed bool) error {
	rotation := state.rotation

	var blob []byte
	if trimmed {
		var err error
		if blob, err = r.encryptSet(ctx, state.current); err != nil {
			return err
		}
	}

	updated := *rotation
	updated.Status = rotationDomain.StatusRotating
	updated.PendingIssue = displayName
	updated.UpdatedAt = r.clock.Now().UTC()
	if blob != nil {
		updated.EncryptedCredentials = blob
	}

	if err := r.persist(ctx, func(txCtx context.Context) error {
		return r.rotationRepo.Update(txCtx, &updated)
	}); err != nil {
		return err
	}

	*rotation = updated
	return nil
}

// storeCredentials persists set together with the mapped secrets of its active
// credential. With final set the definition becomes active and is rescheduled.
// The in-memory definition only changes once the write commits.
func (r *rotationUseCase) storeCredentials(
	ctx context.Context,
	state *run,
	set rotationDomain.CredentialSet,
	final bool,
) error {
	rotation := state.rotation

	blob, err := r.encryptSet(ctx, set)
	if err != nil {
		return err
	}

	payload := state.factory.GetSecretsPayload(set)
	entries := make([]secretsDomain.Entry, 0, len(payload))
	for _, p := range payload {
		entries = append(entries, secretsDomain.Entry{Key: p.Key, Value: []byte(p.Value)})
	}
	scope := secretsDomain.Scope{
		ProjectID:   rotation.ProjectID,
		Environment: rotation.Environment,
		Path:        rotation.SecretPath,
	}

	now := r.clock.Now().UTC()
	updated := *rotation
	updated.EncryptedCredentials = blob
	updated.PendingIssue = ""
	updated.LastError = ""
	updated.UpdatedAt = now
	if final {
		updated.MarkRotated(now)
	}

	if err := r.persist(ctx, func(txCtx context.Context) error {
		if err := r.rotationRepo.Update(txCtx, &updated); err != nil {
			return err
		}
		_, err := r.secrets.Upsert(txCtx, authDomain.SystemActor, scope, entries)
		return err
	}); err != nil {
		return err
	}

	*rotation = updated
	state.restore = rotationDomain.StatusActive
	return nil
}

// completeRotation drops revoked credentials from the stored set and marks the
// definition active. The mapped secrets already point at the active credential.
func (r *rotationUseCase) completeRotation(
	ctx context.Context,
	state *run,
	set rotationDomain.CredentialSet,
) error {
	rotation := state.rotation

	blob, err := r.encryptSet(ctx, set)
	if err != nil {
		return err
	}

	now := r.clock.Now().UTC()
	updated := *rotation
	updated.EncryptedCredentials = blob
	updated.LastError = ""
	updated.UpdatedAt = now
	updated.MarkRotated(now)

	if err := r.persist(ctx, func(txCtx context.Context) error {
		return r.rotationRepo.Update(txCtx, &updated)
	}); err != nil {
		return err
	}

	*rotation = updated
	return nil
}

func (r *rotationUseCase) encryptSet(ctx context.Context, set rotationDomain.CredentialSet) ([]byte, error) {
	plaintext, err := set.Marshal()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(plaintext)

	blob, err := r.envelope.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt credential set")
	}
	return blob, nil
}

// persist runs fn in a local transaction, retrying transient failures.
func (r *rotationUseCase) persist(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry(ctx, r.retry, func() error {
		return r.txManager.WithTx(ctx, fn)
	}, isRetryableLocal)
}

// retryRemote retries an idempotent remote call on transport failures only.
func (r *rotationUseCase) retryRemote(ctx context.Context, op func() error) error {
	return retry(ctx, r.retry, op, apperrors.IsRetryable)
}

// failIssue handles an issuance failure. A provider that rejected the request did not
// issue anything, so the pending marker is dropped; any other failure leaves the
// outcome unknown and the marker is kept for reconciliation.
func (r *rotationUseCase) failIssue(ctx context.Context, state *run, cause error) error {
	if apperrors.Is(cause, apperrors.ErrBadRequest) {
		state.rotation.PendingIssue = ""
	}
	return r.fail(ctx, state, cause)
}

// fail writes the restore status and the failure message, then returns cause.
func (r *rotationUseCase) fail(ctx context.Context, state *run, cause error) error {
	rotation := state.rotation
	rotation.Status = state.restore
	rotation.LastError = truncateError(cause)
	rotation.UpdatedAt = r.clock.Now().UTC()

	if err := r.persist(ctx, func(txCtx context.Context) error {
		return r.rotationRepo.Update(txCtx, rotation)
	}); err != nil {
		state.logger.Error("failed to record rotation failure", slog.Any("error", err))
	}

	state.logger.Warn("rotation failed",
		slog.String("pending_issue", rotation.PendingIssue),
		slog.Any("error", cause),
	)
	return cause
}

func (r *rotationUseCase) closeFactory(state *run) {
	if closer, ok := state.factory.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			state.logger.Debug("failed to close factory", slog.Any("error", err))
		}
	}
}

// restoreStatus is the status a definition returns to after a failed attempt.
func restoreStatus(rotation *rotationDomain.Rotation) rotationDomain.Status {
	if len(rotation.EncryptedCredentials) == 0 {
		return rotationDomain.StatusCreated
	}
	return rotationDomain.StatusActive
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxLastError {
		return msg[:maxLastError]
	}
	return msg
}

func validateCreateInput(input *rotationDomain.CreateRotationInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return apperrors.Wrap(apperrors.ErrInvalidInput, "name is required")
	case strings.TrimSpace(input.Environment) == "":
		return apperrors.Wrap(apperrors.ErrInvalidInput, "environment is required")
	case !strings.HasPrefix(input.SecretPath, "/"):
		return apperrors.Wrap(apperrors.ErrInvalidInput, "secret path must be absolute")
	case input.RotationInterval < 0:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "rotation interval must not be negative")
	case input.AutoRotate && input.RotationInterval == 0:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "auto rotation requires an interval")
	}
	return nil
}

// NewRotationUseCase creates the rotation orchestrator.
func NewRotationUseCase(
	txManager database.TxManager,
	rotationRepo RotationRepository,
	connectionRepo ConnectionRepository,
	envelope EnvelopeService,
	permissions PermissionProvider,
	secrets SecretsWriter,
	factories FactoryBuilder,
	opts Options,
) RotationUseCase {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &rotationUseCase{
		txManager:      txManager,
		rotationRepo:   rotationRepo,
		connectionRepo: connectionRepo,
		envelope:       envelope,
		permissions:    permissions,
		secrets:        secrets,
		factories:      factories,
		locks:          newKeyedLock(),
		retry:          opts.Retry.withDefaults(),
		clock:          opts.Clock,
		logger:         opts.Logger,
	}
}
