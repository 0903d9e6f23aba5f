package procurement

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/httpx"
)

// Handler exposes the purchasing HTTP API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers the purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/receive", h.receive)
	r.Post("/orders/{id}/cancel", h.cancel)
}

type orderItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  float64         `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type createOrderRequest struct {
	SupplierID int64              `json:"supplier_id" validate:"required,gt=0"`
	Notes      string             `json:"notes"`
	CreatedBy  int64              `json:"created_by" validate:"required,gt=0"`
	Items      []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	input := OrderInput{SupplierID: req.SupplierID, Notes: req.Notes, CreatedBy: req.CreatedBy}
	for _, it := range req.Items {
		input.Items = append(input.Items, OrderItemInput{
			ProductID: it.ProductID, Quantity: it.Quantity, UnitCost: it.UnitCost,
		})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context(), ListFilter{
		SupplierID: httpx.QueryInt64(r, "supplier_id"),
		Status:     Status(r.URL.Query().Get("status")),
		Limit:      httpx.QueryInt(r, "limit", 100),
		Offset:     httpx.QueryInt(r, "offset", 0),
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type receiptItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

type receiveRequest struct {
	Items      []receiptItemRequest `json:"items" validate:"required,min=1,dive"`
	DueDate    time.Time            `json:"due_date"`
	ReceivedBy int64                `json:"received_by" validate:"required,gt=0"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	input := ReceiptInput{OrderID: id, DueDate: req.DueDate, ReceivedBy: req.ReceivedBy}
	for _, it := range req.Items {
		input.Items = append(input.Items, ReceiptItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	result, err := h.service.Receive(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type cancelOrderRequest struct {
	ActorID int64 `json:"actor_id" validate:"required,gt=0"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req cancelOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	order, err := h.service.CancelOrder(r.Context(), id, req.ActorID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
