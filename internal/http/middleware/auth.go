package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

type contextKey string

const (
	// SessionKey is the context key for the authenticated session.
	SessionKey contextKey = "session"
	// SessionTokenKey is the context key for the raw session token.
	SessionTokenKey contextKey = "session_token"
)

// Auth creates middleware that resolves the session token and slides the
// session's expiry. Checks Authorization header first, then falls back to
// cookie for web clients.
func Auth(service *auth.AuthService, cookies httputil.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httputil.SessionToken(r)
			if !ok {
				httputil.AuthError(w, logger, domain.ErrSessionExpired)
				return
			}

			session, err := service.Authenticate(r.Context(), token)
			if err != nil {
				if _, fromCookie := httputil.GetSessionTokenFromCookie(r); fromCookie {
					httputil.ClearSessionCookie(w, cookies)
				}
				httputil.AuthError(w, logger, err)
				return
			}

			// Refresh the cookie so a sliding renewal reaches the browser.
			if !httputil.IsMobileClient(r) {
				httputil.SetSessionCookie(w, token, session.ExpiresAt, cookies)
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, SessionTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the authenticated session from the request context.
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

// GetSessionToken extracts the raw session token from the request context.
func GetSessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(SessionTokenKey).(string)
	return token, ok && token != ""
}
