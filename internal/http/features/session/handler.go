package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/secure-login/internal/http/middleware"
	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

// Handler exposes the current session to clients and authorization
// collaborators.
type Handler struct {
	logger  *slog.Logger
	service *auth.AuthService
	claims  *auth.ClaimsIssuer
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, service *auth.AuthService, claims *auth.ClaimsIssuer) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		claims:  claims,
	}
}

// Response describes the current session.
type Response struct {
	AccountID            string    `json:"account_id"`
	Username             string    `json:"username"`
	SecondFactorEnabled  bool      `json:"second_factor_enabled"`
	SecondFactorVerified bool      `json:"second_factor_verified"`
	ExpiresAt            time.Time `json:"expires_at"`
	AbsoluteExpiresAt    time.Time `json:"absolute_expires_at"`
	ClaimsToken          string    `json:"claims_token"`
}

// Get returns the session plus a signed claims token.
// GET /v1/session
// Requires authentication
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		httputil.AuthError(w, h.logger, domain.ErrSessionExpired)
		return
	}

	account, err := h.service.Account(r.Context(), session.AccountID)
	if err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	token, err := h.claims.Issue(session, account)
	if err != nil {
		h.logger.Error("failed to sign session claims", "session_id", session.ID, "error", err)
		httputil.Error(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	httputil.JSON(w, http.StatusOK, Response{
		AccountID:            account.ID.String(),
		Username:             account.Username,
		SecondFactorEnabled:  account.TOTPEnabled,
		SecondFactorVerified: session.SecondFactorVerified,
		ExpiresAt:            session.ExpiresAt,
		AbsoluteExpiresAt:    session.AbsoluteExpiresAt,
		ClaimsToken:          token,
	})
}
