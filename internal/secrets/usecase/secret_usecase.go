package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// pendingEntry is the serialized form of an entry held in an approval request.
type pendingEntry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

type secretUseCase struct {
	txManager   database.TxManager
	secretRepo  SecretRepository
	policies    PolicyGetter
	requestRepo RequestRepository
	resolver    PolicyResolver
	envelope    EnvelopeService
	permissions PermissionProvider
	clock       clockwork.Clock
	logger      *slog.Logger
}

func (s *secretUseCase) require(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	capability authDomain.Capability,
) error {
	perm, err := s.permissions.GetProjectPermission(ctx, actor, projectID)
	if err != nil {
		return err
	}
	return perm.Require(capability, authDomain.SubjectSecrets)
}

func (s *secretUseCase) Upsert(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	entries []secretsDomain.Entry,
) ([]*secretsDomain.Secret, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := secretsDomain.ValidateEntries(entries); err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, scope.ProjectID, authDomain.WriteCapability); err != nil {
		return nil, err
	}

	policy, err := s.resolver.Resolve(ctx, scope.ProjectID, scope.Environment, scope.Path)
	if err != nil {
		return nil, err
	}

	if policy.RequiresApproval() {
		if !actor.IsSystem() {
			return nil, s.captureRequest(ctx, actor, scope, policy, entries)
		}
		s.logger.Info("system write applied without approval",
			slog.String("policy_id", policy.ID.String()),
			slog.String("project_id", scope.ProjectID),
			slog.String("environment", scope.Environment),
			slog.String("path", scope.Path),
			slog.Int("entries", len(entries)))
	}

	return s.write(ctx, actor, scope, entries)
}

// captureRequest seals entries into an approval request instead of writing them.
func (s *secretUseCase) captureRequest(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	policy *approvalDomain.Policy,
	entries []secretsDomain.Entry,
) error {
	pending := make([]pendingEntry, 0, len(entries))
	for _, entry := range entries {
		pending = append(pending, pendingEntry{Key: entry.Key, Value: entry.Value})
	}
	plaintext, err := json.Marshal(pending)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode approval payload")
	}
	defer cryptoDomain.Zero(plaintext)

	payload, err := s.envelope.Encrypt(ctx, plaintext)
	if err != nil {
		return err
	}

	req := approvalDomain.NewRequest(policy, scope.Path, actor.ID, payload, s.clock.Now())
	if err := s.requestRepo.Create(ctx, req); err != nil {
		return err
	}

	s.logger.Info("secret write held for approval",
		slog.String("request_id", req.ID.String()),
		slog.String("policy_id", policy.ID.String()),
		slog.String("project_id", scope.ProjectID),
		slog.String("environment", scope.Environment),
		slog.String("path", scope.Path),
		slog.String("actor", actor.String()))

	return &secretsDomain.ApprovalRequiredError{RequestID: req.ID, PolicyID: policy.ID}
}

// write stores the next version of each entry inside one transaction.
func (s *secretUseCase) write(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	entries []secretsDomain.Entry,
) ([]*secretsDomain.Secret, error) {
	now := s.clock.Now().UTC()
	written := make([]*secretsDomain.Secret, 0, len(entries))

	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		for _, entry := range entries {
			var version uint = 1
			latest, err := s.secretRepo.GetLatest(txCtx, scope, entry.Key)
			switch {
			case err == nil:
				version = latest.Version + 1
			case !errors.Is(err, secretsDomain.ErrSecretNotFound):
				return err
			}

			ciphertext, err := s.envelope.Encrypt(txCtx, entry.Value)
			if err != nil {
				return err
			}

			secret := &secretsDomain.Secret{
				ID:          uuid.Must(uuid.NewV7()),
				ProjectID:   scope.ProjectID,
				Environment: scope.Environment,
				Path:        scope.Path,
				Key:         entry.Key,
				Version:     version,
				Ciphertext:  ciphertext,
				CreatedBy:   actor.String(),
				CreatedAt:   now,
			}
			if err := s.secretRepo.Create(txCtx, secret); err != nil {
				return err
			}
			written = append(written, secret)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (s *secretUseCase) Get(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	key string,
) (*secretsDomain.Secret, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, scope.ProjectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}

	secret, err := s.secretRepo.GetLatest(ctx, scope, key)
	if err != nil {
		return nil, err
	}
	if err := s.decrypt(ctx, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (s *secretUseCase) List(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
) ([]*secretsDomain.Secret, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, scope.ProjectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}

	secrets, err := s.secretRepo.ListLatest(ctx, scope)
	if err != nil {
		return nil, err
	}
	for i, secret := range secrets {
		if err := s.decrypt(ctx, secret); err != nil {
			for _, done := range secrets[:i] {
				cryptoDomain.Zero(done.Plaintext)
			}
			return nil, err
		}
	}
	return secrets, nil
}

func (s *secretUseCase) decrypt(ctx context.Context, secret *secretsDomain.Secret) error {
	plaintext, err := s.envelope.Decrypt(ctx, secret.Ciphertext)
	if err != nil {
		return err
	}
	secret.Plaintext = plaintext
	return nil
}

func (s *secretUseCase) ApproveRequest(
	ctx context.Context,
	actor authDomain.Actor,
	requestID uuid.UUID,
) (*approvalDomain.Request, error) {
	var approved *approvalDomain.Request

	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		req, err := s.requestRepo.GetForUpdate(txCtx, requestID)
		if err != nil {
			return err
		}
		policy, err := s.policies.Get(txCtx, req.PolicyID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		ready, err := req.Approve(policy, actor.ID, now)
		if err != nil {
			return err
		}

		if ready {
			if err := s.apply(txCtx, req); err != nil {
				return err
			}
			req.MarkApplied(now)
		}

		if err := s.requestRepo.Update(txCtx, req); err != nil {
			return err
		}
		approved = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approval recorded",
		slog.String("request_id", approved.ID.String()),
		slog.String("status", string(approved.Status)),
		slog.Int("approvals", len(approved.ApprovedBy)),
		slog.String("actor", actor.String()))
	return approved, nil
}

// apply opens the sealed payload and writes it as the original requester.
func (s *secretUseCase) apply(ctx context.Context, req *approvalDomain.Request) error {
	plaintext, err := s.envelope.Decrypt(ctx, req.Payload)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(plaintext)

	var pending []pendingEntry
	if err := json.Unmarshal(plaintext, &pending); err != nil {
		return apperrors.Wrap(err, "failed to decode approval payload")
	}

	entries := make([]secretsDomain.Entry, 0, len(pending))
	for _, p := range pending {
		entries = append(entries, secretsDomain.Entry{Key: p.Key, Value: p.Value})
	}
	defer func() {
		for _, entry := range entries {
			cryptoDomain.Zero(entry.Value)
		}
	}()

	scope := secretsDomain.Scope{ProjectID: req.ProjectID, Environment: req.Environment, Path: req.SecretPath}
	requester := authDomain.Actor{Type: authDomain.ActorUser, ID: req.RequestedBy}
	_, err = s.write(ctx, requester, scope, entries)
	return err
}

// NewSecretUseCase creates a new secret use case instance with the provided dependencies.
func NewSecretUseCase(
	txManager database.TxManager,
	secretRepo SecretRepository,
	policies PolicyGetter,
	requestRepo RequestRepository,
	resolver PolicyResolver,
	envelope EnvelopeService,
	permissions PermissionProvider,
	clock clockwork.Clock,
	logger *slog.Logger,
) SecretUseCase {
	return &secretUseCase{
		txManager:   txManager,
		secretRepo:  secretRepo,
		policies:    policies,
		requestRepo: requestRepo,
		resolver:    resolver,
		envelope:    envelope,
		permissions: permissions,
		clock:       clock,
		logger:      logger,
	}
}
