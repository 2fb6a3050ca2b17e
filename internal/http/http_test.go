package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/rotator/internal/config"
	"github.com/allisson/rotator/internal/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type encryptionStatus bool

func (e encryptionStatus) IsActive() bool { return bool(e) }

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// probeRouter mounts only the probes plus the shared middleware chain.
func probeRouter(server *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string { return uuid.Must(uuid.NewV7()).String() })))
	router.Use(CustomLoggerMiddleware(server.logger))
	router.GET("/health", server.healthHandler)
	router.GET("/ready", server.readinessHandler)
	router.GET("/panic", func(*gin.Context) { panic("rotation worker exploded") })
	return router
}

func TestProbes(t *testing.T) {
	router := probeRouter(NewServer(nil, "localhost", 8080, discardLogger))

	t.Run("Success_Health", func(t *testing.T) {
		w := serve(t, router, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decodeBody(t, w)["status"])
	})

	t.Run("Success_RequestIDIsUUID", func(t *testing.T) {
		w := serve(t, router, http.MethodGet, "/health")
		id, err := uuid.Parse(w.Header().Get("X-Request-Id"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
	})

	t.Run("Error_NotReadyWithoutDependencies", func(t *testing.T) {
		w := serve(t, router, http.MethodGet, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, map[string]any{"database": "error", "encryption": "error"}, body["components"])
	})

	t.Run("Error_PanicRecovered", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, serve(t, router, http.MethodGet, "/panic").Code)
	})

	t.Run("Error_UnknownRoute", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(t, router, http.MethodGet, "/v2/nothing").Code)
	})
}

func TestReadinessHandler_Components(t *testing.T) {
	for _, tc := range []struct {
		name       string
		pingErr    error
		active     bool
		wantStatus int
		wantDB     string
		wantEnc    string
	}{
		{"Success_Ready", nil, true, http.StatusOK, "ok", "ok"},
		{"Error_EncryptionInactive", nil, false, http.StatusServiceUnavailable, "ok", "error"},
		{"Error_DatabaseDown", errors.New("connection refused"), true, http.StatusServiceUnavailable, "error", "ok"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			mock.ExpectPing().WillReturnError(tc.pingErr)

			server := NewServer(db, "localhost", 8080, discardLogger)
			server.encryption = encryptionStatus(tc.active)

			w := serve(t, probeRouter(server), http.MethodGet, "/ready")
			assert.Equal(t, tc.wantStatus, w.Code)
			components := decodeBody(t, w)["components"].(map[string]any)
			assert.Equal(t, tc.wantDB, components["database"])
			assert.Equal(t, tc.wantEnc, components["encryption"])
		})
	}
}

func TestServer_SetupRouter(t *testing.T) {
	server := NewServer(nil, "localhost", 8080, discardLogger)
	rejectAll := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	rateLimited := false
	rateLimit := func(c *gin.Context) {
		rateLimited = true
		c.Next()
	}
	server.SetupRouter(&config.Config{}, encryptionStatus(true), Handlers{}, rejectAll, rateLimit, nil)
	handler := server.GetHandler()

	t.Run("Error_V1RequiresAuthentication", func(t *testing.T) {
		const id = "0190a3c4-0000-7000-8000-000000000000"
		for _, route := range []struct{ method, path string }{
			{http.MethodPost, "/v1/connections"},
			{http.MethodGet, "/v1/rotations"},
			{http.MethodPost, "/v1/rotations/" + id + "/rotate"},
			{http.MethodGet, "/v1/approval-policies/resolve"},
			{http.MethodPost, "/v1/approval-requests/" + id + "/approve"},
			{http.MethodPut, "/v1/secrets"},
			{http.MethodGet, "/v1/secrets"},
		} {
			w := serve(t, handler, route.method, route.path)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
		}
		assert.False(t, rateLimited, "rate limiting runs after authentication")
	})

	t.Run("Success_MetricsNotOnAPIPort", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(t, handler, http.MethodGet, "/metrics").Code)
		assert.Equal(t, http.StatusOK, serve(t, handler, http.MethodGet, "/health").Code)
	})
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger)
	server.router = probeRouter(server)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(context.Background()) }()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("rotator_test")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	metricsServer := NewMetricsServer("localhost", 8081, discardLogger, provider)
	require.NotNil(t, metricsServer)

	w := serve(t, metricsServer.GetHandler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	assert.Equal(t, http.StatusOK, serve(t, metricsServer.GetHandler(), http.MethodGet, "/health").Code)
}
