package receivables

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/httpx"
	"github.com/vela-pos/vela/internal/shared"
)

// Handler manages receivable endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receivable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.payments)
	r.Post("/{id}/pay", h.pay)
	r.Post("/refresh-overdue", h.refreshOverdue)
}

type payRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	PaidBy int64           `json:"paid_by"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.service.Pay(r.Context(), id, req.Amount, req.PaidBy)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	items, err := h.service.Payments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		CustomerID: httpx.QueryInt64(r, "customer_id"),
		SaleID:     httpx.QueryInt64(r, "sale_id"),
		Status:     Status(r.URL.Query().Get("status")),
	}
	page := shared.NewPageRequest(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 0))
	if raw := r.URL.Query().Get("due_before"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DueBefore = t
		}
	}
	items, pagination, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) refreshOverdue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RefreshOverdue(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
