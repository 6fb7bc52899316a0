package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/pricedesk/internal/editsession"
	"github.com/odyssey-erp/pricedesk/internal/observability"
	"github.com/odyssey-erp/pricedesk/internal/platform/httpx"
	"github.com/odyssey-erp/pricedesk/internal/pricetables"
	"github.com/odyssey-erp/pricedesk/internal/stock"
	"github.com/odyssey-erp/pricedesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PriceTablesHandler *pricetables.Handler
	StockHandler       *stock.Handler
	SessionHandler     *editsession.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	Ready              func(r *http.Request) error
}

// NewRouter constructs the chi.Router with pricedesk defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "dependencies unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.PriceTablesHandler != nil {
			params.PriceTablesHandler.MountRoutes(r)
		}
		if params.StockHandler != nil {
			params.StockHandler.MountRoutes(r)
		}
		if params.SessionHandler != nil {
			params.SessionHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			params.JobHandler.MountRoutes(r)
		}
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
