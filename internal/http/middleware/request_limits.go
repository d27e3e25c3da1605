package middleware

import (
	"net/http"

	"github.com/tendant/secure-login/internal/httputil"
)

// RequestSizeLimit caps request bodies at maxBytes. Reads past the cap fail
// with *http.MaxBytesError, which httputil.DecodeJSON turns into a 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Connection", "close")
				httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
