package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// SecurityHeadersConfig holds the response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr         string
	ServerPort         int
	MaxRequestBodySize int64

	// Storage
	StoreBackend  string
	PendingStore  string
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sessions
	SessionSigningKey  string
	SessionIssuer      string
	PendingTokenTTL    time.Duration
	SessionIdleTimeout time.Duration
	SessionMaxLifetime time.Duration
	SlidingSessions    bool
	CookieSecure       bool

	// Second factor
	TOTPIssuer    string
	TOTPSkew      int
	TOTPSecretKey string // hex, 32 bytes

	// Passwords
	PasswordHashAlgorithm string
	BcryptCost            int

	// Audit
	AuditBufferSize int

	// Seeded administrator, created at startup when the password is set.
	SeedAdminUsername string
	SeedAdminEmail    string
	SeedAdminPassword string

	SecurityHeaders SecurityHeadersConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:         getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:         getEnvInt("SERVER_PORT", 8080),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64*1024)),

		// Storage defaults
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		PendingStore:  strings.ToLower(getEnv("PENDING_STORE", BackendMemory)),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnvInt("DB_PORT", 25432),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "secure_login"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Session defaults
		SessionSigningKey:  getEnv("SESSION_SIGNING_KEY", ""),
		SessionIssuer:      getEnv("SESSION_ISSUER", "secure-login"),
		PendingTokenTTL:    getEnvDuration("PENDING_TOKEN_TTL", 5*time.Minute),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 20*time.Minute),
		SessionMaxLifetime: getEnvDuration("SESSION_MAX_LIFETIME", 12*time.Hour),
		SlidingSessions:    getEnvBool("SESSION_SLIDING", true),
		CookieSecure:       getEnvBool("COOKIE_SECURE", true),

		// Second factor defaults
		TOTPIssuer:    getEnv("TOTP_ISSUER", "SecureLoginSystem"),
		TOTPSkew:      getEnvInt("TOTP_SKEW", 1),
		TOTPSecretKey: getEnv("TOTP_SECRET_KEY", ""),

		// Password defaults
		PasswordHashAlgorithm: strings.ToLower(getEnv("PASSWORD_HASH_ALGORITHM", "bcrypt")),
		BcryptCost:            getEnvInt("BCRYPT_COST", 12),

		AuditBufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 256),

		SeedAdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@example.com"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: "nosniff",
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY is required")
	}
	if len(c.SessionSigningKey) < 32 {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least 32 characters")
	}

	switch c.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, c.StoreBackend)
	}
	switch c.PendingStore {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("PENDING_STORE must be %q or %q, got %q", BackendMemory, BackendRedis, c.PendingStore)
	}

	if c.TOTPSecretKey != "" || c.StoreBackend == BackendPostgres {
		if _, err := c.SecretKey(); err != nil {
			return err
		}
	}

	if c.TOTPSkew < 0 {
		return fmt.Errorf("TOTP_SKEW must not be negative")
	}
	if c.PendingTokenTTL <= 0 || c.SessionIdleTimeout <= 0 || c.SessionMaxLifetime <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	return nil
}

// SecretKey decodes TOTP_SECRET_KEY.
func (c *Config) SecretKey() ([]byte, error) {
	key, err := hex.DecodeString(c.TOTPSecretKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("TOTP_SECRET_KEY must be 64-char hex (32 bytes)")
	}
	return key, nil
}

// ServerAddress returns the listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

// HasSeedAdmin returns true if an administrator account should be seeded.
func (c *Config) HasSeedAdmin() bool {
	return c.SeedAdminUsername != "" && c.SeedAdminPassword != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
