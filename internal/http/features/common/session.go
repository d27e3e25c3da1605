package common

import (
	"net/http"
	"time"

	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/auth"
)

// SessionResponse is returned whenever a login step ends in a session.
type SessionResponse struct {
	State        string    `json:"state"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionToken string    `json:"session_token,omitempty"`
}

// WriteSession hands the new session to the client: an HttpOnly cookie for
// web clients, the token in the body for mobile clients.
func WriteSession(w http.ResponseWriter, r *http.Request, result *auth.LoginResult, cookies httputil.CookieConfig) {
	resp := SessionResponse{
		State:     result.State.String(),
		ExpiresAt: result.Session.ExpiresAt,
	}

	if httputil.IsMobileClient(r) {
		resp.SessionToken = result.SessionToken
	} else {
		httputil.SetSessionCookie(w, result.SessionToken, result.Session.ExpiresAt, cookies)
	}

	httputil.JSON(w, http.StatusOK, resp)
}
