// Package httptransport assembles the process-level router. Feature handlers
// mount their own sub-routers and middleware chains; this package only adds
// the operational endpoints, which stay outside authentication.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firmo/pkg/platform/httputil"
)

// healthTimeout bounds the whole dependency sweep, not each probe.
const healthTimeout = 5 * time.Second

// Feature is a handler that mounts its routes on the root router.
type Feature interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// New builds the root router: operational endpoints first, then each feature
// mounted in order. Static routes win over the feature wildcards, so
// /healthz and /metrics stay reachable without a token.
func New(checks map[string]HealthCheck, features ...Feature) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealth(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	for _, f := range features {
		f.Register(r)
	}
	return r
}

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		resp := healthResponse{Status: "ok"}
		if len(checks) > 0 {
			resp.Dependencies = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Dependencies[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				resp.Dependencies[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
