package payables

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/httpx"
)

// Handler exposes the payables HTTP API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers the payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.payments)
	r.Post("/{id}/pay", h.pay)
	r.Post("/refresh-overdue", h.refreshOverdue)
}

type createRequest struct {
	SupplierID      int64           `json:"supplier_id" validate:"required,gt=0"`
	PurchaseOrderID *int64          `json:"purchase_order_id"`
	DueDate         time.Time       `json:"due_date" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Notes           string          `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), CreateInput{
		SupplierID:      req.SupplierID,
		PurchaseOrderID: req.PurchaseOrderID,
		DueDate:         req.DueDate,
		Amount:          req.Amount,
		Notes:           req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		SupplierID: httpx.QueryInt64(r, "supplier_id"),
		Status:     Status(r.URL.Query().Get("status")),
		Limit:      httpx.QueryInt(r, "limit", 100),
		Offset:     httpx.QueryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("due_before"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DueBefore = t
		}
	}
	payables, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payables)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	payments, err := h.service.Payments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

type payRequest struct {
	Amount decimal.Decimal `json:"amount"`
	PaidBy int64           `json:"paid_by" validate:"required,gt=0"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	result, err := h.service.Pay(r.Context(), id, req.Amount, req.PaidBy)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) refreshOverdue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RefreshOverdue(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
