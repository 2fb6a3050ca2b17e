package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	usecaseMocks "github.com/allisson/rotator/internal/auth/usecase/mocks"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// createTestLogger creates a test logger that discards output.
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthRouter(t *testing.T, uc *usecaseMocks.MockClientUseCase, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(AuthenticationMiddleware(uc, createTestLogger()))
	if handler == nil {
		handler = func(c *gin.Context) { c.Status(http.StatusOK) }
	}
	router.GET("/test", handler)
	return router
}

func TestAuthenticationMiddleware(t *testing.T) {
	clientID := uuid.Must(uuid.NewV7())
	token := clientID.String() + ".plain-secret"
	client := &authDomain.Client{ID: clientID, Name: "ci", IsActive: true}

	t.Run("Success_StoresClientAndActor", func(t *testing.T) {
		uc := usecaseMocks.NewMockClientUseCase(t)
		uc.On("Authenticate", mock.Anything, token).Return(client, nil).Once()

		router := newAuthRouter(t, uc, func(c *gin.Context) {
			got, ok := GetClient(c.Request.Context())
			require.True(t, ok)
			assert.Equal(t, clientID, got.ID)

			actor := ActorFromRequest(c.Request.Context())
			assert.Equal(t, authDomain.ActorUser, actor.Type)
			assert.Equal(t, clientID.String(), actor.ID)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Success_CaseInsensitiveScheme", func(t *testing.T) {
		for _, scheme := range []string{"bearer ", "BEARER ", "BeArEr "} {
			uc := usecaseMocks.NewMockClientUseCase(t)
			uc.On("Authenticate", mock.Anything, token).Return(client, nil).Once()
			router := newAuthRouter(t, uc, nil)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", scheme+token)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, scheme)
		}
	})

	t.Run("Error_BadHeader", func(t *testing.T) {
		for name, header := range map[string]string{
			"missing":     "",
			"basic":       "Basic dXNlcjpwYXNz",
			"no token":    "Bearer ",
			"short":       "Bear",
			"only spaces": "Bearer    ",
		} {
			router := newAuthRouter(t, usecaseMocks.NewMockClientUseCase(t), nil)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		}
	})

	t.Run("Error_InvalidCredentials", func(t *testing.T) {
		uc := usecaseMocks.NewMockClientUseCase(t)
		uc.On("Authenticate", mock.Anything, token).Return(nil, authDomain.ErrInvalidCredentials).Once()
		router := newAuthRouter(t, uc, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthorized")
	})

	t.Run("Error_InactiveClient", func(t *testing.T) {
		uc := usecaseMocks.NewMockClientUseCase(t)
		uc.On("Authenticate", mock.Anything, token).Return(nil, authDomain.ErrClientInactive).Once()
		router := newAuthRouter(t, uc, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Error_RepositoryFailure", func(t *testing.T) {
		uc := usecaseMocks.NewMockClientUseCase(t)
		uc.On("Authenticate", mock.Anything, token).Return(nil, errors.New("connection refused")).Once()
		router := newAuthRouter(t, uc, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestActorFromRequest(t *testing.T) {
	t.Run("Success_StoredActor", func(t *testing.T) {
		ctx := authDomain.WithActor(context.Background(), authDomain.SystemActor)
		assert.Equal(t, authDomain.SystemActor, ActorFromRequest(ctx))
	})

	t.Run("Success_AnonymousFallback", func(t *testing.T) {
		actor := ActorFromRequest(context.Background())
		assert.Equal(t, authDomain.ActorUser, actor.Type)
		assert.Empty(t, actor.ID)
	})
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc.def":   "abc.def",
		"bearer  abc.def ": "abc.def",
		"Basic abc":        "",
		"Bearer":           "",
		"":                 "",
	} {
		assert.Equal(t, want, bearerToken(header), header)
	}
}
