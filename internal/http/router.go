package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/secure-login/internal/config"
	"github.com/tendant/secure-login/internal/http/features/login"
	"github.com/tendant/secure-login/internal/http/features/session"
	"github.com/tendant/secure-login/internal/http/features/twofactor"
	"github.com/tendant/secure-login/internal/http/middleware"
	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	AuthService        *auth.AuthService
	ClaimsIssuer       *auth.ClaimsIssuer
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
	CookieSecure       bool // Whether to use Secure flag on cookies (should be true for HTTPS)
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 64 << 10
	}

	cookies := httputil.DefaultCookieConfig()
	cookies.Secure = cfg.CookieSecure

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	requireSession := middleware.Auth(cfg.AuthService, cookies, cfg.Logger)

	// Login state machine
	loginHandler := login.NewHandler(cfg.Logger, cfg.AuthService, cookies)
	r.Post("/v1/auth/login", loginHandler.Login)
	r.Post("/v1/auth/2fa/verify", loginHandler.Verify)
	r.Get("/v1/auth/2fa/pending", loginHandler.Pending)
	r.Post("/v1/auth/logout", loginHandler.Logout)

	// Second factor enrollment
	twoFactorHandler := twofactor.NewHandler(cfg.Logger, cfg.AuthService, cookies)
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/v1/me/2fa/setup", twoFactorHandler.Setup)
		r.Post("/v1/me/2fa/enable", twoFactorHandler.Enable)
	})

	// Session introspection
	sessionHandler := session.NewHandler(cfg.Logger, cfg.AuthService, cfg.ClaimsIssuer)
	r.With(requireSession).Get("/v1/session", sessionHandler.Get)

	return r
}
