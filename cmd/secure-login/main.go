package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	red "github.com/redis/go-redis/v9"
	"github.com/tendant/secure-login/internal/config"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/repository"
	"github.com/tendant/secure-login/securelogin"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loginCfg := securelogin.Config{
		SigningKey:            cfg.SessionSigningKey,
		SessionIssuer:         cfg.SessionIssuer,
		PendingTokenTTL:       cfg.PendingTokenTTL,
		SessionIdleTimeout:    cfg.SessionIdleTimeout,
		SessionMaxLifetime:    cfg.SessionMaxLifetime,
		DisableSlidingRenewal: !cfg.SlidingSessions,
		TOTPIssuer:            cfg.TOTPIssuer,
		TOTP:                  auth.NewTOTPEngine(auth.TOTPConfig{Skew: uint(cfg.TOTPSkew)}),
		AuditBufferSize:       cfg.AuditBufferSize,
		SecurityHeaders:       cfg.SecurityHeaders,
		MaxRequestBodySize:    cfg.MaxRequestBodySize,
		CookieSecure:          cfg.CookieSecure,
		Logger:                logger,
	}

	loginCfg.Passwords, err = auth.NewPasswordHasher(auth.PasswordConfig{
		Algorithm:  cfg.PasswordHashAlgorithm,
		BcryptCost: cfg.BcryptCost,
	})
	if err != nil {
		logger.Error("invalid password hashing configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	var db *sql.DB
	if cfg.StoreBackend == config.BackendPostgres {
		db, err = repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		loginCfg.DB = db
		loginCfg.SecretKey, _ = cfg.SecretKey()
		logger.Info("connected to database")
	} else {
		logger.Warn("using in-memory account and session stores; data is lost on restart")
	}

	// Connect to Redis
	if cfg.PendingStore == config.BackendRedis {
		client := red.NewClient(&red.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}

		loginCfg.Redis = client
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	login, err := securelogin.New(loginCfg)
	if err != nil {
		logger.Error("failed to initialize login service", "error", err)
		os.Exit(1)
	}

	if cfg.HasSeedAdmin() {
		created, err := login.EnsureAccount(context.Background(), cfg.SeedAdminUsername, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
		if err != nil {
			logger.Error("failed to seed admin account", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("seeded admin account", "username", auth.MaskUsername(cfg.SeedAdminUsername))
		}
	}

	// Create HTTP server
	addr := cfg.ServerAddress()
	server := &http.Server{
		Addr:         addr,
		Handler:      login.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := login.Close(ctx); err != nil {
		logger.Error("failed to flush login attempts", "error", err)
	}

	logger.Info("server stopped")
}
