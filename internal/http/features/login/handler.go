package login

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/secure-login/internal/http/features/common"
	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

// PendingCookiePath scopes the pending cookie to the second factor routes.
const PendingCookiePath = "/v1/auth/2fa"

// Handler handles the login state machine endpoints.
type Handler struct {
	logger        *slog.Logger
	service       *auth.AuthService
	cookieConfig  httputil.CookieConfig
	pendingConfig httputil.CookieConfig
}

// NewHandler creates a new login handler.
func NewHandler(logger *slog.Logger, service *auth.AuthService, cookies httputil.CookieConfig) *Handler {
	pending := cookies
	pending.Path = PendingCookiePath
	pending.SameSite = http.SameSiteStrictMode

	return &Handler{
		logger:        logger,
		service:       service,
		cookieConfig:  cookies,
		pendingConfig: pending,
	}
}

// LoginRequest represents a password login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PendingResponse is returned when a second factor is still required.
type PendingResponse struct {
	State          string    `json:"state"`
	ChallengeToken string    `json:"challenge_token,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// VerifyRequest represents a second factor submission. Web clients may omit
// the challenge token and rely on the pending cookie.
type VerifyRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// Login verifies a password.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password, httputil.AttemptMeta(r))
	if err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	if result.State == domain.StateSecondFactorPending {
		if !httputil.IsMobileClient(r) {
			httputil.SetPendingCookie(w, result.PendingToken, result.PendingExpiresAt, h.pendingConfig)
		}
		httputil.JSON(w, http.StatusOK, PendingResponse{
			State:          result.State.String(),
			ChallengeToken: result.PendingToken,
			ExpiresAt:      result.PendingExpiresAt,
		})
		return
	}

	common.WriteSession(w, r, result, h.cookieConfig)
}

// Verify completes a pending login with a TOTP code. Any outcome uses up
// the challenge, so the pending cookie is always cleared.
// POST /v1/auth/2fa/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	token := req.ChallengeToken
	if token == "" {
		token, _ = httputil.GetPendingTokenFromCookie(r)
	}
	if !httputil.IsMobileClient(r) {
		httputil.ClearPendingCookie(w, h.pendingConfig)
	}

	result, err := h.service.VerifySecondFactor(r.Context(), token, req.Code, httputil.AttemptMeta(r))
	if err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	common.WriteSession(w, r, result, h.cookieConfig)
}

// Pending reports whether the challenge is still open without consuming it.
// GET /v1/auth/2fa/pending
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Challenge-Token")
	if token == "" {
		token, _ = httputil.GetPendingTokenFromCookie(r)
	}

	if err := h.service.CheckPending(r.Context(), token); err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"state": domain.StateSecondFactorPending.String()})
}

// Logout revokes the current session. Repeating it is harmless.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := httputil.SessionToken(r)

	if !httputil.IsMobileClient(r) {
		httputil.ClearSessionCookie(w, h.cookieConfig)
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
