package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

var testActor = authDomain.Actor{Type: authDomain.ActorUser, ID: "client-1"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestContext creates a Gin test context carrying testActor. A string body is
// sent verbatim, anything else is JSON encoded.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		bodyReader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req.WithContext(authDomain.WithActor(req.Context(), testActor))

	return c, w
}

// errForbidden is what a use case returns for a client without policies.
func errForbidden() error {
	return authDomain.NewClientPermission(&authDomain.Client{IsActive: true}, "billing").
		Require(authDomain.ReadCapability, authDomain.SubjectConnections)
}
