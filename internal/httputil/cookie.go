package httputil

import (
	"net/http"
	"time"
)

// Cookie names.
const (
	SessionCookieName = "session_token"
	PendingCookieName = "pending_2fa"
)

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool // Set to true in production (HTTPS)
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookie sets the HttpOnly session cookie. The cookie expires with
// the session so a sliding renewal is reflected by calling this again.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, cfg CookieConfig) {
	setCookie(w, SessionCookieName, token, expiresAt, cfg)
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	clearCookie(w, SessionCookieName, cfg)
}

// SetPendingCookie sets the cookie carrying the pending second factor token.
func SetPendingCookie(w http.ResponseWriter, token string, expiresAt time.Time, cfg CookieConfig) {
	setCookie(w, PendingCookieName, token, expiresAt, cfg)
}

// ClearPendingCookie removes the pending second factor cookie.
func ClearPendingCookie(w http.ResponseWriter, cfg CookieConfig) {
	clearCookie(w, PendingCookieName, cfg)
}

// GetSessionTokenFromCookie extracts the session token from its cookie.
func GetSessionTokenFromCookie(r *http.Request) (string, bool) {
	return cookieValue(r, SessionCookieName)
}

// GetPendingTokenFromCookie extracts the pending token from its cookie.
func GetPendingTokenFromCookie(r *http.Request) (string, bool) {
	return cookieValue(r, PendingCookieName)
}

// IsMobileClient checks if request is from a mobile client.
// Mobile clients should set header: X-Client-Type: mobile
func IsMobileClient(r *http.Request) bool {
	return r.Header.Get("X-Client-Type") == "mobile"
}

func setCookie(w http.ResponseWriter, name, value string, expiresAt time.Time, cfg CookieConfig) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func clearCookie(w http.ResponseWriter, name string, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func cookieValue(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
