package twofactor

import (
	"log/slog"
	"net/http"

	"github.com/tendant/secure-login/internal/http/features/common"
	"github.com/tendant/secure-login/internal/http/middleware"
	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

// Handler handles second factor enrollment for a signed-in account.
type Handler struct {
	logger       *slog.Logger
	service      *auth.AuthService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new second factor handler.
func NewHandler(logger *slog.Logger, service *auth.AuthService, cookies httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		cookieConfig: cookies,
	}
}

// SetupResponse carries the provisioning material.
type SetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"`
	Enabled         bool   `json:"enabled"`
}

// EnableRequest represents an enable second factor request.
type EnableRequest struct {
	Code string `json:"code"`
}

// Setup returns the pre-provisioned secret as a URI and QR code.
// GET /v1/me/2fa/setup
// Requires authentication
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.GetSessionToken(r.Context())
	if !ok {
		httputil.AuthError(w, h.logger, domain.ErrSessionExpired)
		return
	}

	setup, err := h.service.SecondFactorSetup(r.Context(), token)
	if err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, SetupResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
		QRCode:          setup.QRCodeDataURI,
		Enabled:         setup.Enabled,
	})
}

// Enable turns on TOTP after checking one code. The caller gets a new
// session in place of the current one.
// POST /v1/me/2fa/enable
// Requires authentication
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.GetSessionToken(r.Context())
	if !ok {
		httputil.AuthError(w, h.logger, domain.ErrSessionExpired)
		return
	}

	var req EnableRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.EnableSecondFactor(r.Context(), token, req.Code)
	if err != nil {
		httputil.AuthError(w, h.logger, err)
		return
	}

	common.WriteSession(w, r, result, h.cookieConfig)
}
