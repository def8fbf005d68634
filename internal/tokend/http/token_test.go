package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/service"
	"github.com/midgardlabs/tokend/internal/tokend/store/drivers/sqlite"
	"github.com/midgardlabs/tokend/pkg/cryptox"
	"github.com/midgardlabs/tokend/pkg/oauthx"
)

type testEnv struct {
	router *Router
	store  *sqlite.Store
	tokens *cache.TokenCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hash, err := cryptox.HashClientSecret("s3cr3t")
	require.NoError(t, err)
	require.NoError(t, st.Clients().CreateClient(context.Background(), domain.Client{
		ID:         "acme",
		SecretHash: hash,
		Scopes:     []string{"read", "write"},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	creds := cache.NewCredentialCache()
	tokens := cache.NewTokenCache()

	tokenService, err := service.NewTokenService(creds, tokens, st, 2*time.Hour)
	require.NoError(t, err)

	clientService := &service.ClientService{Store: st, Logger: logger}
	require.NoError(t, clientService.LoadCredentials(context.Background(), creds))

	router := NewRouter(BuildVersionForTests, st, creds, logger)
	router.TokenService = tokenService
	router.ApplyRoutes()

	return &testEnv{router: router, store: st, tokens: tokens}
}

// BuildVersionForTests keeps handler output stable in assertions.
const BuildVersionForTests = "test"

func (e *testEnv) postToken(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func tokenForm(grantType, clientID, secret, scope string) url.Values {
	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("client_id", clientID)
	form.Set("client_secret", secret)
	form.Set("scope", scope)
	return form
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) oauthx.ErrorResponse {
	t.Helper()
	var body oauthx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTokenEndpointIssuesToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.postToken(t, tokenForm("client_credentials", "acme", "s3cr3t", "read"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body oauthx.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	require.Equal(t, "Bearer", body.TokenType)
	require.Equal(t, "read", body.Scope)
	require.InDelta(t, 7200, body.ExpiresIn, 5)
}

func TestTokenEndpointReportsRemainingLifetimeOnReuse(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	first := env.postToken(t, tokenForm("client_credentials", "acme", "s3cr3t", "read"))
	require.Equal(t, http.StatusOK, first.Code)
	var a oauthx.TokenResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))

	second := env.postToken(t, tokenForm("client_credentials", "acme", "s3cr3t", "read"))
	require.Equal(t, http.StatusOK, second.Code)
	var b oauthx.TokenResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))

	require.Equal(t, a.AccessToken, b.AccessToken)
	require.LessOrEqual(t, b.ExpiresIn, a.ExpiresIn)
}

func TestTokenEndpointRejectsUnsupportedGrant(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.postToken(t, tokenForm("password", "acme", "s3cr3t", "read"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unsupported_grant_type", decodeError(t, rec).Error)
}

func TestTokenEndpointRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	t.Run("wrong secret", func(t *testing.T) {
		rec := env.postToken(t, tokenForm("client_credentials", "acme", "wrong", "read"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_client", decodeError(t, rec).Error)
	})

	t.Run("unknown client", func(t *testing.T) {
		rec := env.postToken(t, tokenForm("client_credentials", "nobody", "s3cr3t", "read"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// Same code and description as a wrong secret: the two cases must
		// not be distinguishable.
		require.Equal(t, "invalid_client", decodeError(t, rec).Error)
	})
}

func TestTokenEndpointRejectsDisallowedScope(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.postToken(t, tokenForm("client_credentials", "acme", "s3cr3t", "admin"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_scope", decodeError(t, rec).Error)
}

func TestTokenEndpointRejectsMissingParams(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	t.Run("only grant_type", func(t *testing.T) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")

		rec := env.postToken(t, form)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_request", decodeError(t, rec).Error)
	})

	t.Run("empty client_secret", func(t *testing.T) {
		// A missing secret is a malformed request, not a failed
		// authentication attempt.
		rec := env.postToken(t, tokenForm("client_credentials", "acme", "", "read"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_request", decodeError(t, rec).Error)
	})
}

func TestTokenEndpointRejectsWrongContentType(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/oauth2/token", strings.NewReader(`{"grant_type":"client_credentials"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeError(t, rec).Error)
}
