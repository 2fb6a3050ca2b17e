// Package http provides HTTP handlers for the secrets store and approval requests.
package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/rotator/internal/auth/http"
	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
	"github.com/allisson/rotator/internal/httputil"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
	"github.com/allisson/rotator/internal/secrets/http/dto"
	secretsUseCase "github.com/allisson/rotator/internal/secrets/usecase"
	customValidation "github.com/allisson/rotator/internal/validation"
)

// SecretHandler handles HTTP requests for secrets and approval requests.
type SecretHandler struct {
	secretUseCase secretsUseCase.SecretUseCase
	logger        *slog.Logger
}

// NewSecretHandler creates a new secret handler.
func NewSecretHandler(secretUseCase secretsUseCase.SecretUseCase, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		secretUseCase: secretUseCase,
		logger:        logger,
	}
}

// UpsertHandler writes a new version of each entry.
// PUT /v1/secrets - Requires WriteCapability on /projects/{id}/secrets.
//
// Returns 200 with the written versions, or 202 Accepted with the approval request
// id when an approval policy holds the write back.
func (h *SecretHandler) UpsertHandler(c *gin.Context) {
	var req dto.UpsertSecretsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	entries := req.ToEntries()
	defer func() {
		for _, entry := range entries {
			cryptoDomain.Zero(entry.Value)
		}
	}()

	ctx := c.Request.Context()
	secrets, err := h.secretUseCase.Upsert(ctx, authHTTP.ActorFromRequest(ctx), req.Scope(), entries)
	if err != nil {
		var pending *secretsDomain.ApprovalRequiredError
		if errors.As(err, &pending) {
			c.JSON(http.StatusAccepted, dto.MapApprovalRequired(pending.RequestID, pending.PolicyID))
			return
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretsToWriteResponse(secrets))
}

// GetHandler reads the latest versions of a scope, or of one key when key is set.
// GET /v1/secrets?project_id=billing&environment=prod&path=/db[&key=DB_PASSWORD]
// Requires ReadCapability. Values are returned base64 encoded.
func (h *SecretHandler) GetHandler(c *gin.Context) {
	scope := secretsDomain.Scope{
		ProjectID:   c.Query("project_id"),
		Environment: c.Query("environment"),
		Path:        c.DefaultQuery("path", "/"),
	}
	if err := scope.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid scope: project_id, environment and an absolute path are required"),
			h.logger)
		return
	}

	ctx := c.Request.Context()
	actor := authHTTP.ActorFromRequest(ctx)

	if key := c.Query("key"); key != "" {
		secret, err := h.secretUseCase.Get(ctx, actor, scope, key)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		defer cryptoDomain.Zero(secret.Plaintext)

		c.JSON(http.StatusOK, dto.MapSecretToGetResponse(secret))
		return
	}

	secrets, err := h.secretUseCase.List(ctx, actor, scope)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer func() {
		for _, s := range secrets {
			cryptoDomain.Zero(s.Plaintext)
		}
	}()

	c.JSON(http.StatusOK, dto.MapSecretsToListResponse(secrets))
}

// ApproveHandler records the caller's approval of a held write.
// POST /v1/approval-requests/:id/approve - The caller must be an approver of the policy.
func (h *SecretHandler) ApproveHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid approval request ID format: must be a valid UUID"),
			h.logger)
		return
	}

	ctx := c.Request.Context()
	req, err := h.secretUseCase.ApproveRequest(ctx, authHTTP.ActorFromRequest(ctx), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapApprovalRequestToResponse(req))
}
