// Package httptransport assembles the HTTP surface: the middleware chain,
// the registry routes and the health endpoint.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chimera/internal/creature/handler"
	"chimera/pkg/platform/httputil"
	"chimera/pkg/platform/middleware/admin"
	"chimera/pkg/platform/middleware/auth"
	request "chimera/pkg/platform/middleware/request"
	"chimera/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries the collaborators the router mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	Handler        *handler.Handler
	Validator      auth.JWTValidator
	Access         admin.AccessControl
	Latency        request.LatencyObserver
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

// NewRouter wires the middleware chain and every registry route.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata)
	r.Use(request.Logger(cfg.Logger, cfg.Latency))
	r.Use(request.Recovery(cfg.Logger))
	r.Use(requesttime.Middleware)
	if cfg.RequestTimeout > 0 {
		r.Use(request.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", healthz(cfg.HealthChecks, cfg.Logger))

	cfg.Handler.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Validator, nil, cfg.Logger))
		cfg.Handler.RegisterAuthenticated(r)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(cfg.Access, cfg.Logger))
			cfg.Handler.RegisterAdmin(r)
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthz is public, so a failing dependency is reported as "fail" and the
// cause only reaches the log.
func healthz(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed",
					"dependency", name,
					"error", err,
				)
				resp.Checks[name] = "fail"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
