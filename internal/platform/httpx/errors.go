// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
)

// Sentinel errors for the console API layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// LoginPath is where clients are sent when the backend session is gone.
const LoginPath = "/auth/login"

// RespondError maps domain and backend errors to HTTP responses using RFC7807.
// Backend failures keep their class: an expired backend session answers 401 with a redirect hint.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apiclient.ErrAuth), errors.Is(err, ErrUnauthorized):
		JSON(w, http.StatusUnauthorized, ProblemDetail{
			Title:    "Unauthorized",
			Status:   http.StatusUnauthorized,
			Detail:   apiclient.UserMessage(err),
			Redirect: LoginPath,
		})
	case errors.Is(err, apiclient.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", apiclient.UserMessage(err))
	case errors.Is(err, apiclient.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", apiclient.UserMessage(err))
	case errors.Is(err, apiclient.ErrTransport):
		Problem(w, http.StatusBadGateway, "Backend Unavailable", apiclient.UserMessage(err))
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
