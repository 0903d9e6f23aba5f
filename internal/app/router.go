package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vela-pos/vela/internal/cashier"
	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/customers"
	"github.com/vela-pos/vela/internal/masterdata"
	"github.com/vela-pos/vela/internal/observability"
	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/platform/httpx"
	"github.com/vela-pos/vela/internal/procurement"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/reports"
	"github.com/vela-pos/vela/internal/sales"
	"github.com/vela-pos/vela/internal/stock"
	"github.com/vela-pos/vela/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Metrics            *observability.Metrics
	Pool               *pgxpool.Pool
	MasterDataHandler  *masterdata.Handler
	StockHandler       *stock.Handler
	CustomersHandler   *customers.Handler
	CreditHandler      *credit.Handler
	SalesHandler       *sales.Handler
	ReceivablesHandler *receivables.Handler
	PayablesHandler    *payables.Handler
	CashierHandler     *cashier.Handler
	ProcurementHandler *procurement.Handler
	ReportsHandler     *reports.Handler
	JobsHandler        *jobs.Handler
}

// NewRouter assembles the HTTP API.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  p.Logger,
		Config:  p.Config,
		Metrics: p.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(p.Pool))
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if p.MasterDataHandler != nil {
			p.MasterDataHandler.MountRoutes(r)
		}
		if p.StockHandler != nil {
			r.Route("/stock", p.StockHandler.MountRoutes)
		}
		if p.CustomersHandler != nil {
			r.Route("/customers", p.CustomersHandler.MountRoutes)
		}
		if p.CreditHandler != nil {
			r.Route("/credit", p.CreditHandler.MountRoutes)
		}
		if p.SalesHandler != nil {
			r.Route("/sales", p.SalesHandler.MountRoutes)
		}
		if p.ReceivablesHandler != nil {
			r.Route("/receivables", p.ReceivablesHandler.MountRoutes)
		}
		if p.PayablesHandler != nil {
			r.Route("/payables", p.PayablesHandler.MountRoutes)
		}
		if p.CashierHandler != nil {
			r.Route("/cashier", p.CashierHandler.MountRoutes)
		}
		if p.ProcurementHandler != nil {
			r.Route("/purchases", p.ProcurementHandler.MountRoutes)
		}
		if p.ReportsHandler != nil {
			r.Route("/reports", p.ReportsHandler.MountRoutes)
		}
		if p.JobsHandler != nil {
			r.Route("/jobs", p.JobsHandler.MountRoutes)
		}
	})

	return r
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"reason": "database unreachable",
				})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
