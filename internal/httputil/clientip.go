package httputil

import (
	"net"
	"net/http"
	"strings"

	"github.com/tendant/secure-login/pkg/auth"
)

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// resolved once by chi's RealIP middleware in front of the router, so they
// are not consulted again here.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// AttemptMeta describes the request for login attempt records.
func AttemptMeta(r *http.Request) auth.AttemptMeta {
	return auth.AttemptMeta{
		SourceAddress: ClientIP(r),
		UserAgent:     r.UserAgent(),
	}
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// SessionToken looks for the session token in the Authorization header first
// (mobile clients and API calls), then in the cookie (web clients).
func SessionToken(r *http.Request) (string, bool) {
	if token, ok := BearerToken(r); ok {
		return token, true
	}
	return GetSessionTokenFromCookie(r)
}
