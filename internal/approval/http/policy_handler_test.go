package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	"github.com/allisson/rotator/internal/approval/http/dto"
	"github.com/allisson/rotator/internal/approval/usecase/mocks"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

var testActor = authDomain.Actor{Type: authDomain.ActorUser, ID: "client-1"}

func createTestContext(method, path string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != "" {
		bodyReader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req.WithContext(authDomain.WithActor(req.Context(), testActor))
	return c, w
}

func newHandler(t *testing.T) (*PolicyHandler, *mocks.MockPolicyUseCase) {
	uc := mocks.NewMockPolicyUseCase(t)
	return NewPolicyHandler(uc, slog.New(slog.NewTextHandler(io.Discard, nil))), uc
}

func samplePolicy() *approvalDomain.Policy {
	path := "/db/*"
	return &approvalDomain.Policy{
		ID:          uuid.Must(uuid.NewV7()),
		ProjectID:   "billing",
		Environment: "prod",
		SecretPath:  &path,
		Approvals:   1,
		ApproverIDs: []string{"alice", "bob"},
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPolicyHandler_CreateHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, uc := newHandler(t)
		policy := samplePolicy()
		uc.On("Create", mock.Anything, testActor, mock.MatchedBy(func(in approvalDomain.CreatePolicyInput) bool {
			return in.ProjectID == "billing" && *in.SecretPath == "/db/*" && len(in.ApproverIDs) == 2
		})).Return(policy, nil)

		c, w := createTestContext(http.MethodPost, "/v1/approval-policies",
			`{"project_id":"billing","environment":"prod","secret_path":"/db/*","approvals":1,"approver_ids":["alice","bob"]}`)
		handler.CreateHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp dto.PolicyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, policy.ID.String(), resp.ID)
		assert.Equal(t, []string{"alice", "bob"}, resp.ApproverIDs)
	})

	t.Run("Error_RelativePath", func(t *testing.T) {
		handler, _ := newHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/approval-policies",
			`{"project_id":"billing","environment":"prod","secret_path":"db","approvals":0}`)
		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, _ := newHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/approval-policies", `{"project_id":`)
		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_TooManyApprovals", func(t *testing.T) {
		handler, uc := newHandler(t)
		uc.On("Create", mock.Anything, testActor, mock.Anything).Return(nil, approvalDomain.ErrTooManyApprovals)

		c, w := createTestContext(http.MethodPost, "/v1/approval-policies",
			`{"project_id":"billing","environment":"prod","approvals":2,"approver_ids":["alice"]}`)
		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestPolicyHandler_ListHandler(t *testing.T) {
	t.Run("Success_EmptyArray", func(t *testing.T) {
		handler, uc := newHandler(t)
		uc.On("List", mock.Anything, testActor, "billing", 0, 50).Return([]*approvalDomain.Policy{}, nil)

		c, w := createTestContext(http.MethodGet, "/v1/approval-policies?project_id=billing", "")
		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	})

	t.Run("Error_MissingProject", func(t *testing.T) {
		handler, _ := newHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/approval-policies", "")
		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestPolicyHandler_ResolveHandler(t *testing.T) {
	t.Run("Success_Governed", func(t *testing.T) {
		handler, uc := newHandler(t)
		policy := samplePolicy()
		uc.On("Resolve", mock.Anything, testActor, "billing", "prod", "/db/main").Return(policy, nil)

		c, w := createTestContext(http.MethodGet,
			"/v1/approval-policies/resolve?project_id=billing&environment=prod&secret_path=/db/main", "")
		handler.ResolveHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.ResolvePolicyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Policy)
		assert.Equal(t, policy.ID.String(), resp.Policy.ID)
		assert.True(t, resp.RequiresApproval)
	})

	t.Run("Success_DefaultsToRootPath", func(t *testing.T) {
		handler, uc := newHandler(t)
		uc.On("Resolve", mock.Anything, testActor, "billing", "dev", "/").Return(nil, nil)

		c, w := createTestContext(http.MethodGet,
			"/v1/approval-policies/resolve?project_id=billing&environment=dev", "")
		handler.ResolveHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"policy":null,"requires_approval":false}`, w.Body.String())
	})

	t.Run("Error_MissingEnvironment", func(t *testing.T) {
		handler, _ := newHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/approval-policies/resolve?project_id=billing", "")
		handler.ResolveHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		handler, uc := newHandler(t)
		forbidden := authDomain.NewClientPermission(&authDomain.Client{IsActive: true}, "billing").
			Require(authDomain.ReadCapability, authDomain.SubjectApprovalPolicies)
		uc.On("Resolve", mock.Anything, testActor, "billing", "prod", "/db").Return(nil, forbidden)

		c, w := createTestContext(http.MethodGet,
			"/v1/approval-policies/resolve?project_id=billing&environment=prod&secret_path=/db", "")
		handler.ResolveHandler(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
