package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/opsdesk/opsdesk/internal/admin"
	"github.com/opsdesk/opsdesk/internal/departments"
	"github.com/opsdesk/opsdesk/internal/fleet"
	"github.com/opsdesk/opsdesk/internal/health"
	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/inventory"
	"github.com/opsdesk/opsdesk/internal/observability"
	"github.com/opsdesk/opsdesk/internal/reports"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authenticator      *identity.Middleware
	IdentityHandler    *identity.Handler
	DepartmentsHandler *departments.Handler
	ReportsHandler     *reports.Handler
	AdminHandler       *admin.Handler
	FleetHandler       *fleet.Handler
	InventoryHandler   *inventory.Handler
	HealthHandler      *health.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with OpsDesk defaults. Everything
// except login, healthz and metrics sits behind the bearer middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", params.IdentityHandler.HandleLogin)
		r.Group(func(r chi.Router) {
			r.Use(params.Authenticator.Authenticate)
			r.Get("/me", params.IdentityHandler.HandleMe)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Authenticate)

		r.Route("/departments", params.DepartmentsHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		r.Route("/admin", params.AdminHandler.MountRoutes)
		r.Route("/fleet", params.FleetHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/system", params.HealthHandler.MountRoutes)
	})

	return r
}
