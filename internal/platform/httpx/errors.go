package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vela-pos/vela/internal/shared"
)

// RespondError maps domain errors to HTTP problem responses. Anything
// that is not a known domain error is logged and masked as a 500.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *shared.PolicyError
	var pgErr *pgconn.PgError

	switch {
	case errors.As(err, &policyErr):
		Problem(w, http.StatusUnprocessableEntity, policyErr.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		Problem(w, http.StatusConflict, "duplicate entry")
	default:
		slog.ErrorContext(r.Context(), "unhandled error", slog.Any("error", err))
		Problem(w, http.StatusInternalServerError, "internal error")
	}
}
