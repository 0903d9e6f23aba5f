package stock

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/httpx"
)

// Handler manages stock ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.postMovement)
	r.Get("/movements", h.listMovements)
	r.Get("/levels", h.listLevels)
	r.Get("/products/{id}", h.productStock)
}

type postMovementRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Type      MovementType    `json:"type" validate:"required"`
	Quantity  float64         `json:"quantity" validate:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reason    string          `json:"reason"`
	CreatedBy int64           `json:"created_by"`
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
	var req postMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	mv, err := h.service.Post(r.Context(), MovementInput{
		ProductID: req.ProductID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		ProductID: httpx.QueryInt64(r, "product_id"),
		Type:      MovementType(r.URL.Query().Get("type")),
		Limit:     httpx.QueryInt(r, "limit", 100),
		Offset:    httpx.QueryInt(r, "offset", 0),
	}
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
	movements, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": movements})
}

func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	lowOnly := r.URL.Query().Get("low") == "true"
	levels, err := h.service.Levels(r.Context(), lowOnly)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": levels})
}

func (h *Handler) productStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	qty, err := h.service.CurrentStock(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": id, "on_hand": qty})
}
