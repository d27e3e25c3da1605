package auth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTP parameters
	totpDigits = 6
	totpPeriod = 30
	totpWindow = 1 // Allow ±30 seconds clock drift
)

// TOTPConfig configures the TOTP engine. A zero Period selects 30 seconds.
// Skew is taken as given: zero accepts the current step only. Use
// DefaultTOTPEngine for the usual one step either side.
type TOTPConfig struct {
	Period uint // seconds per step
	Skew   uint // steps accepted either side of the current one
}

// TOTPEngine generates and verifies RFC 6238 codes (HMAC-SHA1, 6 digits).
type TOTPEngine struct {
	opts totp.ValidateOpts
}

// NewTOTPEngine creates a TOTP engine.
func NewTOTPEngine(cfg TOTPConfig) *TOTPEngine {
	if cfg.Period == 0 {
		cfg.Period = totpPeriod
	}
	return &TOTPEngine{
		opts: totp.ValidateOpts{
			Period:    cfg.Period,
			Skew:      cfg.Skew,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// DefaultTOTPEngine returns an engine with a 30 second step and ±1 step window.
func DefaultTOTPEngine() *TOTPEngine {
	return NewTOTPEngine(TOTPConfig{Period: totpPeriod, Skew: totpWindow})
}

// Period returns the step length.
func (e *TOTPEngine) Period() time.Duration {
	return time.Duration(e.opts.Period) * time.Second
}

// CurrentCode returns the code for the step containing t.
func (e *TOTPEngine) CurrentCode(secret []byte, t time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("failed to generate TOTP code: empty secret")
	}
	code, err := totp.GenerateCodeCustom(EncodeSecret(secret), t, e.opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	return code, nil
}

// Verify reports whether code matches any step within the skew window around t.
// Malformed input yields false rather than an error.
func (e *TOTPEngine) Verify(secret []byte, code string, t time.Time) bool {
	if len(secret) == 0 || !IsWellFormedCode(code) {
		return false
	}
	valid, err := totp.ValidateCustom(code, EncodeSecret(secret), t, e.opts)
	if err != nil {
		return false
	}
	return valid
}

// IsWellFormedCode reports whether code is exactly six ASCII digits.
func IsWellFormedCode(code string) bool {
	if len(code) != totpDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// ProvisioningURI builds the otpauth URI consumed by authenticator apps and
// QR renderers.
func ProvisioningURI(label, issuer string, secret []byte) string {
	i := escapeURIComponent(issuer)
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		i, escapeURIComponent(label), EncodeSecret(secret), i)
}

func escapeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
