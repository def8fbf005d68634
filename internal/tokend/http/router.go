package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/service"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/pkg/httpx"
	"github.com/midgardlabs/tokend/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	credentials *cache.CredentialCache

	TokenService *service.TokenService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	credentials *cache.CredentialCache,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		credentials:  credentials,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	// POST /token - strict rate limit by IP (authentication attempts)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /check - lenient rate limit (resource servers poll this on every
	// request they receive)
	checkHandler := &CheckHandler{TokenService: r.TokenService}
	r.Mux.Handle("GET /v1/oauth2/check",
		httpx.Chain(checkHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.credentials),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
