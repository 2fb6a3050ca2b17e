// Package http exposes approval policies over HTTP.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/rotator/internal/approval/http/dto"
	approvalUseCase "github.com/allisson/rotator/internal/approval/usecase"
	authHTTP "github.com/allisson/rotator/internal/auth/http"
	"github.com/allisson/rotator/internal/httputil"
	customValidation "github.com/allisson/rotator/internal/validation"
)

// PolicyHandler handles HTTP requests for approval policies.
type PolicyHandler struct {
	policyUseCase approvalUseCase.PolicyUseCase
	logger        *slog.Logger
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(policyUseCase approvalUseCase.PolicyUseCase, logger *slog.Logger) *PolicyHandler {
	return &PolicyHandler{
		policyUseCase: policyUseCase,
		logger:        logger,
	}
}

func (h *PolicyHandler) slugQuery(c *gin.Context, name string) (string, bool) {
	value := c.Query(name)
	if value == "" || customValidation.Slug.Validate(value) != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid %s parameter: must be a lowercase identifier", name),
			h.logger)
		return "", false
	}
	return value, true
}

// CreateHandler creates an approval policy.
// POST /v1/approval-policies - Requires WriteCapability on /projects/{id}/approval-policies.
func (h *PolicyHandler) CreateHandler(c *gin.Context) {
	var req dto.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := c.Request.Context()
	policy, err := h.policyUseCase.Create(ctx, authHTTP.ActorFromRequest(ctx), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapPolicyToResponse(policy))
}

// ListHandler lists the policies of a project.
// GET /v1/approval-policies?project_id=billing&offset=0&limit=50 - Requires ReadCapability.
func (h *PolicyHandler) ListHandler(c *gin.Context) {
	projectID, ok := h.slugQuery(c, "project_id")
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	policies, err := h.policyUseCase.List(ctx, authHTTP.ActorFromRequest(ctx), projectID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPoliciesToListResponse(policies))
}

// ResolveHandler reports which policy governs a write to a secret path.
// GET /v1/approval-policies/resolve?project_id=billing&environment=prod&secret_path=/db
func (h *PolicyHandler) ResolveHandler(c *gin.Context) {
	projectID, ok := h.slugQuery(c, "project_id")
	if !ok {
		return
	}
	environment, ok := h.slugQuery(c, "environment")
	if !ok {
		return
	}
	secretPath := c.DefaultQuery("secret_path", "/")
	if err := customValidation.SecretPath.Validate(secretPath); err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid secret_path parameter: %w", err),
			h.logger)
		return
	}

	ctx := c.Request.Context()
	policy, err := h.policyUseCase.Resolve(ctx, authHTTP.ActorFromRequest(ctx), projectID, environment, secretPath)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResolvedPolicy(policy))
}
