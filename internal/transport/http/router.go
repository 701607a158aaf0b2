// Package httptransport assembles the HTTP surface: shared middleware,
// per-module routes, metrics and health.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/platform/metrics"
	ratelimit "rollcall/internal/ratelimit/middleware"
	rlModels "rollcall/internal/ratelimit/models"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/platform/middleware/metadata"
	"rollcall/pkg/platform/middleware/request"
	"rollcall/pkg/platform/middleware/requesttime"
	"rollcall/pkg/platform/middleware/staff"
)

// PublicRoutes mounts routes any client may call.
type PublicRoutes interface {
	Register(r chi.Router)
}

// Classified public routes name their rate limit budget. Others share the
// read budget.
type Classified interface {
	RateLimitClass() rlModels.EndpointClass
}

// StaffRoutes mounts instructor routes behind the staff guard.
type StaffRoutes interface {
	RegisterStaff(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger     *slog.Logger
	StaffToken string
	Gatherer   prometheus.Gatherer
	// Metrics instruments every route. Nil disables it.
	Metrics *metrics.Metrics
	Checks  map[string]HealthCheck
	Public  []PublicRoutes
	Staff   []StaffRoutes
	// RateLimiter throttles public routes per client. Nil disables it.
	RateLimiter *ratelimit.Middleware
	// Clock overrides request time; tests pin it.
	Clock func() time.Time
}

func NewRouter(cfg Config) http.Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(requesttime.MiddlewareWithClock(clock))
	r.Use(metadata.ClientMetadata)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", healthz(cfg.Checks))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range cfg.Public {
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				class := rlModels.ClassRead
				if c, ok := h.(Classified); ok {
					class = c.RateLimitClass()
				}
				r.Use(cfg.RateLimiter.RateLimit(class))
			}
			h.Register(r)
		})
	}
	r.Group(func(r chi.Router) {
		r.Use(staff.RequireStaffToken(cfg.StaffToken, cfg.Logger))
		for _, h := range cfg.Staff {
			h.RegisterStaff(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
