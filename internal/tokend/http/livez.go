package http

import (
	"net/http"
	"time"

	"github.com/midgardlabs/tokend/pkg/httpx"
	"github.com/midgardlabs/tokend/pkg/oauthx"
)

// LivezHandler is the liveness probe. It always returns 200 OK while the
// process is running.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := oauthx.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}
