package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/midgardlabs/tokend/internal/tokend/service"
	"github.com/midgardlabs/tokend/pkg/httpx"
	"github.com/midgardlabs/tokend/pkg/oauthx"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

// CheckHandler serves GET /v1/oauth2/check
// Resource servers present a bearer token and get back the client identity
// and scope it was issued for.
type CheckHandler struct {
	TokenService *service.TokenService
}

func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	value, ok := bearerToken(r)
	if !ok {
		oauthx.ErrInvalidAuthorizationHeader.WriteError(w)
		return
	}

	token, err := h.TokenService.Validate(ctx, value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenNotFound):
			oauthx.ErrTokenNotFound.WriteError(w)
		case errors.Is(err, service.ErrTokenExpired):
			oauthx.ErrTokenExpired.WriteError(w)
		default:
			log.Error("token check failed", "err", err)
			oauthx.ErrServerError.WriteError(w)
		}
		return
	}

	response := oauthx.CheckResponse{
		ClientID: token.ClientID,
		Scope:    token.Scope,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme check is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
