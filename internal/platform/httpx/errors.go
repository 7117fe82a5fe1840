package httpx

import (
	"errors"
	"net/http"

	"github.com/iris-crm/iris/internal/crm"
)

// RespondError maps domain taxonomy errors to RFC7807 responses. Every
// failure carries the wrapped message so the caller can see which record
// and operation failed; nothing is swallowed into an empty body.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crm.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, crm.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, crm.ErrInvalidTransition):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, crm.ErrInvalidState):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case errors.Is(err, crm.ErrPrecondition):
		Problem(w, http.StatusPreconditionFailed, "Precondition Not Met", err.Error())
	case errors.Is(err, crm.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, crm.ErrRetryable):
		Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
