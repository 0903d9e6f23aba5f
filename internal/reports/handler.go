package reports

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vela-pos/vela/internal/platform/httpx"
)

// Handler exposes the reporting HTTP API.
type Handler struct {
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers the report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/daily-sales", h.dailySales)
	r.Get("/cash-daily", h.cashDaily)
	r.Get("/top-products", h.topProducts)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DailySales(r.Context(), httpx.QueryInt(r, "days", 30))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) cashDaily(w http.ResponseWriter, r *http.Request) {
	var day time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	out, err := h.service.CashDaily(r.Context(), day)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.TopProducts(r.Context(),
		httpx.QueryInt(r, "days", 30),
		httpx.QueryInt(r, "limit", 10))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
