package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	apperrors "github.com/allisson/rotator/internal/errors"
	"github.com/allisson/rotator/internal/rotation/domain"
)

const (
	// DefaultHTTPTimeout bounds every remote API request.
	DefaultHTTPTimeout = 30 * time.Second

	serviceTokenProvider = "service-token"
	tokensPath           = "/api/v1/tokens"
)

type tokenResource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token,omitempty"` //nolint:gosec // returned once on creation
	CreatedAt time.Time `json:"createdAt"`
}

type createTokenRequest struct {
	Name       string   `json:"name"`
	Scopes     []string `json:"scopes,omitempty"`
	TTLSeconds int      `json:"ttlSeconds,omitempty"`
}

type listTokensResponse struct {
	Tokens []tokenResource `json:"tokens"`
}

// serviceTokenFactory rotates API tokens through a REST token API.
type serviceTokenFactory struct {
	baseURL  string
	apiToken string
	params   domain.ServiceTokenParameters
	mapping  domain.ServiceTokenMapping
	// client retries idempotent requests; token creation goes through its
	// underlying http.Client and is never retried.
	client *retryablehttp.Client
	logger *slog.Logger
	now    func() time.Time
}

func serviceTokenBuilder(opts Options) Builder {
	return func(conn domain.ConnectionConfig, cfg domain.Config, _ domain.CredentialSet) (Factory, error) {
		c, ok := conn.(domain.ServiceTokenConnection)
		if !ok {
			return nil, domain.ErrKindMismatch
		}
		config, ok := cfg.(domain.ServiceTokenConfig)
		if !ok {
			return nil, domain.ErrKindMismatch
		}

		return &serviceTokenFactory{
			baseURL:  strings.TrimRight(c.BaseURL, "/"),
			apiToken: c.APIToken,
			params:   config.Parameters,
			mapping:  config.Mapping,
			client:   newRetryClient(opts),
			logger:   opts.Logger.With(slog.String("kind", string(domain.KindServiceToken))),
			now:      opts.Now,
		}, nil
	}
}

func newRetryClient(opts Options) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: opts.HTTPTimeout}
	client.RetryMax = opts.HTTPRetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = opts.Logger
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func (f *serviceTokenFactory) Kind() domain.Kind { return domain.KindServiceToken }

func (f *serviceTokenFactory) Ordering() domain.Ordering { return domain.KindServiceToken.Ordering() }

// remoteName is the token name for an issuance. It is deterministic so an issuance with
// unknown outcome can be found again.
func (f *serviceTokenFactory) remoteName(displayName string) string {
	return f.params.TokenName + "-" + displayName
}

func (f *serviceTokenFactory) IssueCredentials(
	ctx context.Context,
	displayName string,
) (domain.GeneratedCredential, error) {
	name := f.remoteName(displayName)
	body, err := json.Marshal(createTokenRequest{
		Name:       name,
		Scopes:     f.params.Scopes,
		TTLSeconds: f.params.TTLSeconds,
	})
	if err != nil {
		return domain.GeneratedCredential{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+tokensPath, bytes.NewReader(body))
	if err != nil {
		return domain.GeneratedCredential{}, err
	}
	f.setHeaders(req.Header)

	resp, err := f.client.HTTPClient.Do(req)
	if err != nil {
		return domain.GeneratedCredential{}, classifyTransport(serviceTokenProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.GeneratedCredential{}, classifyResponse(serviceTokenProvider, resp)
	}

	var token tokenResource
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return domain.GeneratedCredential{}, apperrors.NewRemoteError(
			apperrors.ErrRemoteFailure, serviceTokenProvider, "malformed token response",
		)
	}
	if token.ID == "" || token.Token == "" {
		return domain.GeneratedCredential{}, apperrors.NewRemoteError(
			apperrors.ErrRemoteFailure, serviceTokenProvider, "token response missing id or token",
		)
	}

	cred := domain.GeneratedCredential{
		ExternalID:  token.ID,
		Secret:      token.Token,
		DisplayName: name,
		IssuedAt:    f.now().UTC(),
	}
	f.logger.Info("credential issued", slog.Any("credential", cred))
	return cred, nil
}

func (f *serviceTokenFactory) CredentialExists(ctx context.Context, cred domain.GeneratedCredential) (bool, error) {
	resp, err := f.do(ctx, http.MethodGet, tokensPath+"/"+url.PathEscape(cred.ExternalID))
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, classifyResponse(serviceTokenProvider, resp)
	}
}

func (f *serviceTokenFactory) RevokeCredentials(ctx context.Context, creds domain.CredentialSet) error {
	return revokeEach(ctx, f, creds, f.deleteToken, f.logger)
}

func (f *serviceTokenFactory) deleteToken(ctx context.Context, cred domain.GeneratedCredential) error {
	resp, err := f.do(ctx, http.MethodDelete, tokensPath+"/"+url.PathEscape(cred.ExternalID))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return classifyResponse(serviceTokenProvider, resp)
	}
}

func (f *serviceTokenFactory) RotateCredentials(
	ctx context.Context,
	old domain.CredentialSet,
	displayName string,
) (domain.GeneratedCredential, error) {
	return rotateInOrder(ctx, f, old, displayName)
}

// ReconcileIssue deletes every token carrying the issuance's name.
func (f *serviceTokenFactory) ReconcileIssue(ctx context.Context, displayName string) error {
	name := f.remoteName(displayName)
	resp, err := f.do(ctx, http.MethodGet, tokensPath+"?name="+url.QueryEscape(name))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return classifyResponse(serviceTokenProvider, resp)
	}

	var list listTokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return apperrors.NewRemoteError(apperrors.ErrRemoteFailure, serviceTokenProvider, "malformed token list")
	}

	for _, token := range list.Tokens {
		if token.Name != name {
			continue
		}
		orphan := domain.GeneratedCredential{ExternalID: token.ID, DisplayName: token.Name}
		if err := f.deleteToken(ctx, orphan); err != nil {
			return err
		}
		f.logger.Warn("orphaned credential removed", slog.Any("credential", orphan))
	}
	return nil
}

func (f *serviceTokenFactory) GetSecretsPayload(set domain.CredentialSet) []domain.SecretPayload {
	active, ok := set.Active()
	if !ok {
		return nil
	}
	return []domain.SecretPayload{
		{Key: f.mapping.Token, Value: active.Secret},
		{Key: f.mapping.TokenID, Value: active.ExternalID},
	}
}

// do sends an idempotent request through the retrying client.
func (f *serviceTokenFactory) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(serviceTokenProvider, err)
	}
	return resp, nil
}

func (f *serviceTokenFactory) setHeaders(h http.Header) {
	h.Set("Authorization", fmt.Sprintf("Bearer %s", f.apiToken))
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
}
