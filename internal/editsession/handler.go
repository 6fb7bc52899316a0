package editsession

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/pricedesk/internal/bulkcommit"
	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/platform/httpx"
)

// Command types accepted on the commands endpoint.
const (
	CommandEnterEdit = "enter_edit"
	CommandSetField  = "set_field"
	CommandDiscard   = "discard"
	CommandCommit    = "commit"
)

// Handler exposes edit sessions over HTTP.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// MountRoutes registers edit session endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/edit-sessions", func(r chi.Router) {
		r.Post("/", h.open)
		r.Get("/{id}", h.show)
		r.Delete("/{id}", h.close)
		r.Post("/{id}/commands", h.command)
		r.Post("/{id}/commit", h.commit)
		r.Post("/{id}/reset", h.reset)
	})
}

type openRequest struct {
	Table string `json:"table"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.registry.Open(req.Table)
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Close(chi.URLParam(r, "id")); err != nil {
		h.respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commandRequest is the wire form of an editbuffer command.
type commandRequest struct {
	Type  string             `json:"type"`
	Row   editbuffer.RowID   `json:"row,omitempty"`
	Rows  []editbuffer.RowID `json:"rows,omitempty"`
	Field string             `json:"field,omitempty"`
	Value any                `json:"value,omitempty"`
	Seed  editbuffer.Draft   `json:"seed,omitempty"`
}

func (c commandRequest) toCommand() (editbuffer.Command, error) {
	switch c.Type {
	case CommandEnterEdit:
		return editbuffer.EnterEdit{Row: c.Row, Seed: c.Seed}, nil
	case CommandSetField:
		if c.Field == "" {
			return nil, fmt.Errorf("%w: field required", httpx.ErrValidation)
		}
		return editbuffer.SetField{Row: c.Row, Field: c.Field, Value: c.Value}, nil
	case CommandDiscard:
		return editbuffer.Discard{Rows: c.Rows}, nil
	case CommandCommit:
		return editbuffer.Commit{Rows: c.Rows}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", httpx.ErrValidation, c.Type)
	}
}

type commandResponse struct {
	Snapshot Snapshot           `json:"session"`
	Report   *bulkcommit.Report `json:"report,omitempty"`
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	var req commandRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := s.Dispatch(r.Context(), cmd)
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, commandResponse{Snapshot: s.Snapshot(), Report: report})
}

type commitRequest struct {
	Rows []editbuffer.RowID `json:"rows"`
	All  bool               `json:"all"`
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	var req commitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var report *bulkcommit.Report
	if req.All {
		report, err = s.CommitAll(r.Context())
	} else {
		report, err = s.Dispatch(r.Context(), editbuffer.Commit{Rows: req.Rows})
	}
	if err != nil {
		h.respond(w, err)
		return
	}
	h.logger.Info("edit session commit", slog.String("session", s.ID()), slog.String("table", s.Table()), slog.String("report", report.String()))
	httpx.JSON(w, http.StatusOK, commandResponse{Snapshot: s.Snapshot(), Report: report})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	if err := s.Reset(); err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s.Snapshot())
}

// respond maps session and buffer errors onto the httpx sentinels.
func (h *Handler) respond(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUnknownTable):
		err = fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, editbuffer.ErrRowLocked), errors.Is(err, editbuffer.ErrNotEditing):
		err = fmt.Errorf("%w: %w", httpx.ErrConflict, err)
	case errors.Is(err, editbuffer.ErrEmptyRowID), errors.Is(err, editbuffer.ErrReservedRowID):
		err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, bulkcommit.ErrClosed):
		err = fmt.Errorf("%w: %w", httpx.ErrGone, err)
	}
	httpx.RespondError(w, err)
}
