// Package http provides HTTP handlers for connections and rotation definitions.
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

// ConnectionHandler handles HTTP requests for connections to remote credential systems.
type ConnectionHandler struct {
	connectionUseCase rotationUseCase.ConnectionUseCase
	logger            *slog.Logger
}

// NewConnectionHandler creates a new connection handler.
func NewConnectionHandler(
	connectionUseCase rotationUseCase.ConnectionUseCase,
	logger *slog.Logger,
) *ConnectionHandler {
	return &ConnectionHandler{
		connectionUseCase: connectionUseCase,
		logger:            logger,
	}
}

// CreateHandler registers a connection. Credentials are encrypted before they are stored.
// POST /v1/connections - Requires WriteCapability on /projects/{id}/connections.
// Returns 201 Created.
func (h *ConnectionHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := c.Request.Context()
	conn, err := h.connectionUseCase.Create(ctx, authHTTP.ActorFromRequest(ctx), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapConnectionToResponse(conn))
}

// GetHandler returns connection metadata.
// GET /v1/connections/:id - Requires ReadCapability on /projects/{id}/connections.
func (h *ConnectionHandler) GetHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid connection ID format: must be a valid UUID"),
			h.logger)
		return
	}

	ctx := c.Request.Context()
	conn, err := h.connectionUseCase.Get(ctx, authHTTP.ActorFromRequest(ctx), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConnectionToResponse(conn))
}
