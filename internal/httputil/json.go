package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tendant/secure-login/pkg/domain"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DecodeJSON decodes the request body into v and writes the error response
// itself when that fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

// AuthError maps an authentication outcome to a status and one of a fixed
// set of messages. Internal detail is logged, never returned.
func AuthError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrSessionExpired):
		Error(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrMalformedCode):
		Error(w, http.StatusUnauthorized, "invalid code")
	case errors.Is(err, domain.ErrSecondFactorAlreadyEnabled):
		Error(w, http.StatusConflict, "second factor already enabled")
	default:
		if logger != nil {
			logger.Error("authentication backend failure", "error", err)
		}
		Error(w, http.StatusServiceUnavailable, "service unavailable")
	}
}
