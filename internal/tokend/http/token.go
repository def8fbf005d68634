package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/domain"
	"github.com/midgardlabs/tokend/internal/tokend/service"
	"github.com/midgardlabs/tokend/pkg/httpx"
	"github.com/midgardlabs/tokend/pkg/oauthx"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	// 3. Handle the grant type. Only client_credentials is issued here; the
	// unsupported error still goes through the service so the grant check
	// lives in one place.
	h.handleClientCredentialsGrant(w, r, r.Form)
}

func (h *TokenHandler) handleClientCredentialsGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	grantType := strings.TrimSpace(form.Get("grant_type"))
	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	scope := strings.TrimSpace(form.Get("scope"))

	if grantType == "" || clientID == "" || clientSecret == "" || scope == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	token, err := h.TokenService.Issue(ctx, grantType, clientID, clientSecret, scope)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedGrant):
			oauthx.ErrUnsupportedGrantType.WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			oauthx.ErrInvalidClient.WriteError(w)
		case errors.Is(err, service.ErrScopeNotAllowed):
			oauthx.ErrInvalidScope.WriteError(w)
		default:
			log.Error("client_credentials grant failed", "err", err)
			oauthx.ErrServerError.WriteError(w)
		}
		return
	}

	// expires_in reports the remaining lifetime, so a reused token carries
	// its shortened window rather than a fresh TTL.
	response := oauthx.TokenResponse{
		AccessToken: token.Value,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int(token.Remaining(time.Now().UTC()).Seconds()),
		Scope:       token.Scope,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
