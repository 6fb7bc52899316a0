package stock

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/pricedesk/internal/platform/httpx"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// Handler wires HTTP endpoints for warehouse stock.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses/{warehouseID}/stock", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := shared.ParseID(chi.URLParam(r, "warehouseID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), warehouseID, shared.ListFiltersFromQuery(r.URL.Query()))
	if err != nil {
		h.logger.Error("list stock failed", "error", err, "warehouse_id", warehouseID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}
