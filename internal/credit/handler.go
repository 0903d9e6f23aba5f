package credit

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

// Handler manages credit engine endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check/{id}", h.checkStatus)
	r.Get("/limit/{id}", h.getLimit)
	r.Post("/validate-sale", h.validateSale)
	r.Post("/simulate-sale", h.simulateSale)
	r.Get("/score/{id}", h.previewScore)
	r.Post("/recalculate/{id}", h.recalculate)
	r.Post("/recalculate-all", h.recalculateAll)
	r.Post("/limit/{id}", h.setLimit)
	r.Post("/profile/{id}", h.applyProfile)
	r.Get("/history/{id}", h.history)
	r.Get("/risk-report", h.riskReport)
	r.Get("/policies", h.listPolicies)
	r.Put("/policies", h.upsertPolicy)
}

func (h *Handler) checkStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	status, err := h.service.CheckStatus(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) getLimit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	info, err := h.service.GetLimit(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

type validateSaleRequest struct {
	CustomerID   int64           `json:"customer_id" validate:"required"`
	SaleTotal    decimal.Decimal `json:"sale_total" validate:"required"`
	Installments int             `json:"installments"`
}

func (h *Handler) validateSale(w http.ResponseWriter, r *http.Request) {
	var req validateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ValidateSale(r.Context(), req.CustomerID, req.SaleTotal, req.Installments); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approved": true})
}

func (h *Handler) simulateSale(w http.ResponseWriter, r *http.Request) {
	var req validateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	sim, err := h.service.SimulateSale(r.Context(), req.CustomerID, req.SaleTotal, req.Installments)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sim)
}

func (h *Handler) previewScore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	view, err := h.service.PreviewScore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	result, err := h.service.RecalcAndApply(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) recalculateAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.RecalcAll(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

type setLimitRequest struct {
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Notes       string          `json:"notes"`
}

func (h *Handler) setLimit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req setLimitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.SetCustomLimit(r.Context(), id, req.CreditLimit, req.Notes)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type applyProfileRequest struct {
	Profile Profile `json:"profile" validate:"required"`
	Notes   string  `json:"notes"`
}

func (h *Handler) applyProfile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req applyProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ApplyProfile(r.Context(), id, req.Profile, req.Notes); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customer_id": id, "profile": req.Profile})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id")
		return
	}
	filter := HistoryFilter{
		EventType: r.URL.Query().Get("event_type"),
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
	items, pagination, err := h.service.History(r.Context(), id, filter, page)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) riskReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RiskReport(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.Policies(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": policies})
}

func (h *Handler) upsertPolicy(w http.ResponseWriter, r *http.Request) {
	var p Policy
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.UpsertPolicy(r.Context(), p); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
