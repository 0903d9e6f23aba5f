package sales

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/httpx"
	"github.com/vela-pos/vela/internal/shared"
)

// Handler exposes the sales HTTP API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers the sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/items", h.addItem)
	r.Delete("/{id}/items/{itemID}", h.removeItem)
	r.Put("/{id}/discount", h.setDiscount)
	r.Post("/{id}/checkout", h.checkout)
	r.Post("/{id}/payments", h.applyPayment)
	r.Post("/{id}/cancel", h.cancel)
}

type createRequest struct {
	CustomerID *int64 `json:"customer_id"`
	CreatedBy  int64  `json:"created_by" validate:"required,gt=0"`
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
	sale, err := h.service.Create(r.Context(), req.CustomerID, req.CreatedBy)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		CustomerID: httpx.QueryInt64(r, "customer_id"),
		Status:     Status(r.URL.Query().Get("status")),
	}
	page := shared.NewPageRequest(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 0))
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = t
		}
	}
	sales, pagination, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": sales, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type addItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	itemID, err := httpx.PathInt64(r, "itemID")
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.service.RemoveItem(r.Context(), id, itemID); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type discountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req discountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.service.SetDiscount(r.Context(), id, req.Discount); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	Mode          PaymentMode `json:"mode" validate:"required"`
	Installments  int         `json:"installments" validate:"gte=0"`
	CashSessionID int64       `json:"cash_session_id"`
	ActorID       int64       `json:"actor_id" validate:"required,gt=0"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	result, err := h.service.Checkout(r.Context(), CheckoutInput{
		SaleID:         id,
		Mode:           req.Mode,
		Installments:   req.Installments,
		CashSessionID:  req.CashSessionID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ActorID:        req.ActorID,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type paymentRequest struct {
	Mode   PaymentMode     `json:"mode" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	sale, err := h.service.ApplyPayment(r.Context(), id, req.Mode, req.Amount)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type cancelRequest struct {
	ActorID int64 `json:"actor_id" validate:"required,gt=0"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	sale, err := h.service.Cancel(r.Context(), id, req.ActorID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}
