package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tapiceria-erp/tapiceria-erp/internal/alerts"
	"github.com/tapiceria-erp/tapiceria-erp/internal/catalog"
	"github.com/tapiceria-erp/tapiceria-erp/internal/expenses"
	"github.com/tapiceria-erp/tapiceria-erp/internal/finance"
	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/observability"
	"github.com/tapiceria-erp/tapiceria-erp/internal/orders"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	MaterialsHandler *materials.Handler
	CatalogHandler   *catalog.Handler
	OrdersHandler    *orders.Handler
	ExpensesHandler  *expenses.Handler
	FinanceHandler   *finance.Handler
	AlertsHandler    *alerts.Handler
	Metrics          *observability.Metrics
	Idempotency      KeyChecker
}

// NewRouter constructs the chi.Router with application defaults.
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

	r.Route("/api", func(api chi.Router) {
		api.Use(RequireCompany)
		if params.Idempotency != nil {
			api.Use(IdempotencyGuard(params.Idempotency, params.Logger))
		}
		params.MaterialsHandler.MountRoutes(api)
		params.CatalogHandler.MountRoutes(api)
		params.OrdersHandler.MountRoutes(api)
		params.ExpensesHandler.MountRoutes(api)
		params.FinanceHandler.MountRoutes(api)
		params.AlertsHandler.MountRoutes(api)
	})

	return r
}
