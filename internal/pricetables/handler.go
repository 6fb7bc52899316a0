package pricetables

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/platform/httpx"
	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// RepriceRequest asks for a category wide price change in the background.
type RepriceRequest struct {
	PriceTableID   int64
	CategoryID     int64
	Descriptor     pricing.ChangeDescriptor
	IdempotencyKey string
}

// RepriceEnqueuer schedules category reprices.
type RepriceEnqueuer interface {
	EnqueueCategoryReprice(ctx context.Context, req RepriceRequest) (string, error)
}

// Handler wires HTTP endpoints for price tables.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer RepriceEnqueuer
}

// NewHandler builds the handler. A nil enqueuer disables category reprices.
func NewHandler(logger *slog.Logger, service *Service, enqueuer RepriceEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer}
}

// MountRoutes registers price table endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/price-tables", func(r chi.Router) {
		r.Get("/", h.listTables)
		r.Post("/quote", h.quote)
		r.Get("/{tableID}/items", h.listItems)
		r.Get("/{tableID}/export.xlsx", h.export)
		r.Post("/{tableID}/categories/{categoryID}/reprice", h.reprice)
	})
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.ListTables(r.Context())
	if err != nil {
		h.logger.Error("list price tables failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"price_tables": tables})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	tableID, err := shared.ParseID(chi.URLParam(r, "tableID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.ListItems(r.Context(), tableID, shared.ListFiltersFromQuery(r.URL.Query()))
	if err != nil {
		h.logger.Error("list price table items failed", "error", err, "table_id", tableID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	tableID, err := shared.ParseID(chi.URLParam(r, "tableID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filename := "price-table-" + strconv.FormatInt(tableID, 10) + "-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := h.service.ExportXLSX(r.Context(), tableID, w); err != nil {
		h.logger.Error("export price table failed", "error", err, "table_id", tableID)
		w.Header().Del("Content-Disposition")
		httpx.RespondError(w, err)
	}
}

type quoteRequest struct {
	Base         pricing.Money      `json:"base"`
	ChangeType   pricing.ChangeType `json:"change_type"`
	ChangeAmount decimal.Decimal    `json:"change_amount"`
}

type quoteResponse struct {
	pricing.Result
	Display string `json:"display"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Quote(req.Base, pricing.ChangeDescriptor{Type: req.ChangeType, Amount: req.ChangeAmount})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quoteResponse{Result: res, Display: res.InclTax.StringFixed(2)})
}

type repriceBody struct {
	ChangeType     pricing.ChangeType `json:"change_type"`
	ChangeAmount   decimal.Decimal    `json:"change_amount"`
	IdempotencyKey string             `json:"idempotency_key"`
}

func (h *Handler) reprice(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background jobs are not configured")
		return
	}
	tableID, err := shared.ParseID(chi.URLParam(r, "tableID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	categoryID, err := shared.ParseID(chi.URLParam(r, "categoryID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body repriceBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	desc := pricing.ChangeDescriptor{Type: body.ChangeType, Amount: body.ChangeAmount}
	if err := pricing.ValidateDescriptor(desc); err != nil {
		httpx.RespondError(w, err)
		return
	}
	taskID, err := h.enqueuer.EnqueueCategoryReprice(r.Context(), RepriceRequest{
		PriceTableID:   tableID,
		CategoryID:     categoryID,
		Descriptor:     desc,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		h.logger.Error("enqueue category reprice failed", "error", err, "table_id", tableID, "category_id", categoryID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}
