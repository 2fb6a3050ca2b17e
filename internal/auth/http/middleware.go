package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	authUseCase "github.com/allisson/rotator/internal/auth/usecase"
	apperrors "github.com/allisson/rotator/internal/errors"
	"github.com/allisson/rotator/internal/httputil"
)

const bearerScheme = "bearer "

// bearerToken extracts the token from an Authorization header. The scheme is matched
// case-insensitively. An empty result means the header is missing or malformed.
func bearerToken(header string) string {
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}

// AuthenticationMiddleware resolves "Authorization: Bearer <clientId>.<secret>" to an
// API client and stores the client and its actor in the request context. Project
// permissions are checked later by the use cases.
//
// A missing or malformed header, an unknown client or a wrong secret yields 401. An
// inactive client yields 403.
func AuthenticationMiddleware(clientUseCase authUseCase.ClientUseCase, logger *slog.Logger) gin.HandlerFunc {
	reject := func(c *gin.Context, err error, reason string) {
		logger.Debug("authentication failed", slog.String("reason", reason))
		httputil.HandleErrorGin(c, err, logger)
		c.Abort()
	}

	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			reject(c, apperrors.ErrUnauthorized, "missing or malformed bearer token")
			return
		}

		ctx := c.Request.Context()
		client, err := clientUseCase.Authenticate(ctx, token)
		if err != nil {
			reject(c, err, err.Error())
			return
		}

		ctx = authDomain.WithActor(WithClient(ctx, client), authDomain.UserActor(client))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
