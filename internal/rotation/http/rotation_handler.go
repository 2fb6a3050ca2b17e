package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/rotator/internal/auth/http"
	"github.com/allisson/rotator/internal/httputil"
	"github.com/allisson/rotator/internal/rotation/http/dto"
	rotationUseCase "github.com/allisson/rotator/internal/rotation/usecase"
	customValidation "github.com/allisson/rotator/internal/validation"
)

// RotationHandler handles HTTP requests for rotation definitions.
// Permissions are checked by the use case against the definition's project.
type RotationHandler struct {
	rotationUseCase rotationUseCase.RotationUseCase
	logger          *slog.Logger
}

// NewRotationHandler creates a new rotation handler.
func NewRotationHandler(rotationUseCase rotationUseCase.RotationUseCase, logger *slog.Logger) *RotationHandler {
	return &RotationHandler{
		rotationUseCase: rotationUseCase,
		logger:          logger,
	}
}

func (h *RotationHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid rotation ID format: must be a valid UUID"),
			h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// CreateHandler creates a definition and performs the first issuance.
// POST /v1/rotations - Requires WriteCapability on /projects/{id}/rotations.
//
// Returns 201 Created when the first credential was issued. When issuance fails the
// definition is kept in the created state and the remote error is returned, so the
// caller can fix the connection and trigger a rotation later.
func (h *RotationHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := c.Request.Context()
	rotation, err := h.rotationUseCase.Create(ctx, authHTTP.ActorFromRequest(ctx), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRotationToResponse(rotation))
}

// GetHandler returns a definition.
// GET /v1/rotations/:id - Requires ReadCapability.
func (h *RotationHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rotation, err := h.rotationUseCase.Get(ctx, authHTTP.ActorFromRequest(ctx), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRotationToResponse(rotation))
}

// ListHandler lists the definitions of a project.
// GET /v1/rotations?project_id=billing&offset=0&limit=50 - Requires ReadCapability.
func (h *RotationHandler) ListHandler(c *gin.Context) {
	projectID := c.Query("project_id")
	if err := customValidation.Slug.Validate(projectID); err != nil || projectID == "" {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid project_id parameter: must be a project identifier"),
			h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	rotations, err := h.rotationUseCase.List(ctx, authHTTP.ActorFromRequest(ctx), projectID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRotationsToListResponse(rotations))
}

// UpdateHandler changes parameters, mapping or schedule of a definition.
// PATCH /v1/rotations/:id - Requires WriteCapability.
func (h *RotationHandler) UpdateHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.UpdateRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := c.Request.Context()
	rotation, err := h.rotationUseCase.Update(ctx, authHTTP.ActorFromRequest(ctx), id, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRotationToResponse(rotation))
}

// DeleteHandler revokes every live credential and removes the definition.
// DELETE /v1/rotations/:id - Requires DeleteCapability.
// Returns 204 No Content. A failed revocation keeps the definition and returns the remote error.
func (h *RotationHandler) DeleteHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.rotationUseCase.Delete(ctx, authHTTP.ActorFromRequest(ctx), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RotateHandler replaces the active credential now.
// POST /v1/rotations/:id/rotate - Requires RotateCapability.
// Returns 409 Conflict when a rotation of the same definition is already running.
func (h *RotationHandler) RotateHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	result, err := h.rotationUseCase.Rotate(ctx, authHTTP.ActorFromRequest(ctx), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if result.RevokeError != nil {
		h.logger.Warn("previous credential not revoked",
			slog.String("rotation_id", id.String()),
			slog.Any("error", result.RevokeError))
	}
	c.JSON(http.StatusOK, dto.MapRotationResultToResponse(result))
}
