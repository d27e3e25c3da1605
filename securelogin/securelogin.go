// Package securelogin provides password plus TOTP login with server-side
// sessions, ready to mount on a chi router.
//
// Setup:
//
//  1. Run migrations from migrations/ folder when using Postgres
//  2. Create an instance and mount its routes
//
// Basic usage (in-memory stores, single replica):
//
//	login, err := securelogin.New(securelogin.Config{
//	    SigningKey: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer login.Close(context.Background())
//
//	http.ListenAndServe(":8080", login.Router())
//
// With Postgres and Redis:
//
//	login, err := securelogin.New(securelogin.Config{
//	    DB:         db,
//	    Redis:      redisClient,
//	    SigningKey: "your-secret-key-at-least-32-chars",
//	    SecretKey:  key, // 32 bytes, encrypts TOTP secrets at rest
//	})
package securelogin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"
	"github.com/tendant/secure-login/internal/config"
	httpserver "github.com/tendant/secure-login/internal/http"
	"github.com/tendant/secure-login/internal/http/middleware"
	"github.com/tendant/secure-login/internal/httputil"
	"github.com/tendant/secure-login/pkg/audit"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
	"github.com/tendant/secure-login/pkg/repository"
)

const janitorInterval = time.Minute

// Config holds the configuration for the login library.
type Config struct {
	// DB stores accounts, sessions and login attempts. Nil keeps them in
	// memory.
	DB *sql.DB

	// SecretKey encrypts TOTP secrets at rest (32 bytes, required with DB).
	SecretKey []byte

	// Redis holds pending second factor challenges so any replica can
	// complete a login. Nil keeps them in memory.
	Redis       red.Cmdable
	RedisPrefix string

	// SigningKey signs session claims tokens (required, min 32 chars).
	SigningKey string

	// SessionIssuer is the issuer claim (default: "secure-login").
	SessionIssuer string

	PendingTokenTTL       time.Duration
	SessionIdleTimeout    time.Duration
	SessionMaxLifetime    time.Duration
	DisableSlidingRenewal bool

	// TOTPIssuer labels the account in authenticator apps.
	TOTPIssuer string

	// TOTP overrides the default engine (30s steps, one step either side).
	TOTP *auth.TOTPEngine

	// Passwords overrides the default hasher (bcrypt cost 12).
	Passwords *auth.PasswordHasher

	// PasswordConfig builds the hasher when Passwords is nil.
	PasswordConfig auth.PasswordConfig

	// AuditSinks receive login attempts alongside the log sink.
	AuditSinks      []auth.AuditSink
	AuditBufferSize int

	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
	CookieSecure       bool

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// Login is a wired login service.
type Login struct {
	config  Config
	service *auth.AuthService
	claims  *auth.ClaimsIssuer
	audit   *audit.Async
	stop    context.CancelFunc
	wg      sync.WaitGroup
	router  http.Handler
}

// sessionPurger is implemented by session stores that can drop dead rows.
type sessionPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// New creates a login instance. With a DB it returns an error if required
// tables don't exist; run migrations first.
func New(cfg Config) (*Login, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("securelogin: %w", err)
	}

	var (
		accounts auth.AccountRepository
		sessions auth.SessionStore
		sinks    = audit.Multi{audit.NewLogSink(cfg.Logger)}
	)
	if cfg.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repository.RequireTables(ctx, cfg.DB); err != nil {
			return nil, fmt.Errorf("securelogin: %w", err)
		}

		sealer, err := auth.NewSecretSealer(cfg.SecretKey, nil)
		if err != nil {
			return nil, fmt.Errorf("securelogin: %w", err)
		}
		accounts = repository.NewAccountsRepository(cfg.DB, sealer)
		sessions = repository.NewSessionsRepository(cfg.DB)
		sinks = append(sinks, repository.NewLoginAttemptsRepository(cfg.DB))
	} else {
		accounts = repository.NewMemoryAccounts()
		sessions = repository.NewMemorySessions(time.Now)
	}
	sinks = append(sinks, cfg.AuditSinks...)

	l := &Login{config: cfg}

	ctx, stop := context.WithCancel(context.Background())
	l.stop = stop

	var pending auth.PendingAuthStore
	if cfg.Redis != nil {
		pending = repository.NewRedisPendingStore(cfg.Redis, cfg.RedisPrefix)
	} else {
		store := repository.NewMemoryPendingStore(time.Now, nil)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			store.Run(ctx, janitorInterval)
		}()
		pending = store
	}

	if purger, ok := sessions.(sessionPurger); ok {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.purgeSessions(ctx, purger)
		}()
	}

	l.audit = audit.NewAsync(sinks, cfg.AuditBufferSize, cfg.Logger)

	service, err := auth.NewAuthService(auth.AuthConfig{
		PendingTokenTTL:       cfg.PendingTokenTTL,
		SessionIdleTimeout:    cfg.SessionIdleTimeout,
		SessionMaxLifetime:    cfg.SessionMaxLifetime,
		DisableSlidingRenewal: cfg.DisableSlidingRenewal,
		TOTPIssuer:            cfg.TOTPIssuer,
	}, auth.AuthDeps{
		Accounts:  accounts,
		Pending:   pending,
		Sessions:  sessions,
		Audit:     l.audit,
		Passwords: cfg.Passwords,
		TOTP:      cfg.TOTP,
		Logger:    cfg.Logger,
	})
	if err != nil {
		l.Close(context.Background())
		return nil, fmt.Errorf("securelogin: %w", err)
	}
	l.service = service
	l.claims = auth.NewClaimsIssuer([]byte(cfg.SigningKey), cfg.SessionIssuer)

	l.router = httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             cfg.Logger,
		AuthService:        l.service,
		ClaimsIssuer:       l.claims,
		SecurityHeaders:    cfg.SecurityHeaders,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		CookieSecure:       cfg.CookieSecure,
	})
	return l, nil
}

// Router returns the handler serving every login route:
//
//	POST /v1/auth/login          - Verify username and password
//	POST /v1/auth/2fa/verify     - Complete a pending login with a TOTP code
//	GET  /v1/auth/2fa/pending    - Check a pending login is still open
//	POST /v1/auth/logout         - Revoke the current session
//	GET  /v1/me/2fa/setup        - Provisioning URI and QR code (protected)
//	POST /v1/me/2fa/enable       - Turn on TOTP (protected)
//	GET  /v1/session             - Current session and claims token (protected)
//	GET  /health                 - Health check
func (l *Login) Router() http.Handler {
	return l.router
}

// Service returns the authentication service for advanced usage.
func (l *Login) Service() *auth.AuthService {
	return l.service
}

// Claims returns the issuer that signs and parses session claims tokens.
func (l *Login) Claims() *auth.ClaimsIssuer {
	return l.claims
}

// AuthMiddleware returns middleware that requires a live session.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(login.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (l *Login) AuthMiddleware() func(http.Handler) http.Handler {
	cookies := httputil.DefaultCookieConfig()
	cookies.Secure = l.config.CookieSecure
	return middleware.Auth(l.service, cookies, l.config.Logger)
}

// GetAccountID extracts the account ID from a request.
// Use after AuthMiddleware.
func GetAccountID(r *http.Request) (uuid.UUID, bool) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	return session.AccountID, true
}

// EnsureAccount provisions an account unless the username already exists.
// It reports whether a new account was created.
func (l *Login) EnsureAccount(ctx context.Context, username, email, password string) (bool, error) {
	_, err := l.service.ProvisionAccount(ctx, username, email, password)
	if errors.Is(err, domain.ErrUsernameTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close stops background work and flushes queued login attempts.
func (l *Login) Close(ctx context.Context) error {
	l.stop()
	l.wg.Wait()
	if l.audit == nil {
		return nil
	}
	return l.audit.Close(ctx)
}

func (l *Login) purgeSessions(ctx context.Context, purger sessionPurger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.DeleteExpired(ctx, time.Now())
			if err != nil {
				if ctx.Err() == nil {
					l.config.Logger.Warn("failed to purge expired sessions", "error", err)
				}
				continue
			}
			if n > 0 {
				l.config.Logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.SigningKey == "" {
		return errors.New("securelogin: SigningKey is required")
	}
	if len(cfg.SigningKey) < 32 {
		return errors.New("securelogin: SigningKey must be at least 32 characters")
	}
	if cfg.DB != nil && len(cfg.SecretKey) != 32 {
		return errors.New("securelogin: SecretKey must be 32 bytes when DB is set")
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	if cfg.SessionIssuer == "" {
		cfg.SessionIssuer = "secure-login"
	}
	if cfg.TOTP == nil {
		cfg.TOTP = auth.DefaultTOTPEngine()
	}
	if cfg.Passwords == nil {
		hasher, err := auth.NewPasswordHasher(cfg.PasswordConfig)
		if err != nil {
			return fmt.Errorf("failed to create password hasher: %w", err)
		}
		cfg.Passwords = hasher
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}
