package http

import (
	"net/http"
	"time"

	"github.com/midgardlabs/tokend/internal/tokend/cache"
	"github.com/midgardlabs/tokend/internal/tokend/store"
	"github.com/midgardlabs/tokend/pkg/httpx"
	"github.com/midgardlabs/tokend/pkg/oauthx"
)

// ReadyzHandler is the readiness probe. The service is ready once the
// database answers pings and the credential cache has completed its startup
// bulk load.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	credentials *cache.CredentialCache,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &oauthx.HealthChecks{
			Database:    "ok",
			Credentials: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check database connectivity
		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// Check the credential snapshot has been loaded
		if !credentials.Loaded() {
			checks.Credentials = "error: not loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := oauthx.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
