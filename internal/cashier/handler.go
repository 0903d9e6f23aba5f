package cashier

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/httpx"
)

// Handler exposes the cash session HTTP API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers the cash session routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sessions", h.open)
	r.Get("/sessions", h.list)
	r.Get("/sessions/{id}", h.get)
	r.Get("/sessions/{id}/report", h.report)
	r.Post("/sessions/{id}/movements", h.recordMovement)
	r.Post("/sessions/{id}/close", h.close)
}

type openRequest struct {
	RegisterID    int64           `json:"register_id" validate:"required,gt=0"`
	OpenedBy      int64           `json:"opened_by" validate:"required,gt=0"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	session, err := h.service.Open(r.Context(), req.RegisterID, req.OpenedBy, req.OpeningAmount)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.List(r.Context(),
		httpx.QueryInt64(r, "register_id"),
		httpx.QueryInt(r, "limit", 50),
		httpx.QueryInt(r, "offset", 0))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessions)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	report, err := h.service.Report(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

type movementRequest struct {
	Type      MovementType    `json:"movement_type" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedBy int64           `json:"created_by" validate:"required,gt=0"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		SessionID: id,
		Type:      req.Type,
		Amount:    req.Amount,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

type closeRequest struct {
	ClosingAmount decimal.Decimal `json:"closing_amount"`
	ClosedBy      int64           `json:"closed_by" validate:"required,gt=0"`
	Notes         string          `json:"notes"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	session, err := h.service.Close(r.Context(), id, req.ClosingAmount, req.ClosedBy, req.Notes)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}
