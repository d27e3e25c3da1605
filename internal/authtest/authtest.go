// Package authtest builds an in-memory AuthService for HTTP-level tests.
package authtest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tendant/secure-login/pkg/audit"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
	"github.com/tendant/secure-login/pkg/repository"
	"golang.org/x/crypto/bcrypt"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Env is a wired service plus the pieces tests poke at.
type Env struct {
	Service  *auth.AuthService
	Claims   *auth.ClaimsIssuer
	Clock    *Clock
	TOTP     *auth.TOTPEngine
	Sessions *repository.MemorySessions
	Logger   *slog.Logger
}

// New wires an AuthService over memory stores. The clock starts at the
// wall-clock time so cookie lifetimes stay positive.
func New(t testing.TB) *Env {
	t.Helper()

	clock := &Clock{now: time.Now().Truncate(time.Second)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := auth.NewPasswordHasher(auth.PasswordConfig{Algorithm: auth.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}

	env := &Env{
		Clock:    clock,
		TOTP:     auth.DefaultTOTPEngine(),
		Sessions: repository.NewMemorySessions(clock.Now),
		Logger:   logger,
		Claims:   auth.NewClaimsIssuer([]byte("0123456789abcdef0123456789abcdef"), "secure-login"),
	}

	env.Service, err = auth.NewAuthService(auth.AuthConfig{}, auth.AuthDeps{
		Accounts:  repository.NewMemoryAccounts(),
		Pending:   repository.NewMemoryPendingStore(clock.Now, nil),
		Sessions:  env.Sessions,
		Audit:     audit.NewLogSink(logger),
		Passwords: hasher,
		TOTP:      env.TOTP,
		Logger:    logger,
		Clock:     clock.Now,
	})
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	return env
}

// Provision creates an account with second factor disabled.
func (e *Env) Provision(t testing.TB, username, password string) *domain.Account {
	t.Helper()
	account, err := e.Service.ProvisionAccount(context.Background(), username, username+"@example.com", password)
	if err != nil {
		t.Fatalf("ProvisionAccount() error = %v", err)
	}
	return account
}

// Code returns the current TOTP code for account.
func (e *Env) Code(t testing.TB, account *domain.Account) string {
	t.Helper()
	code, err := e.TOTP.CurrentCode(account.TOTPSecret, e.Clock.Now())
	if err != nil {
		t.Fatalf("CurrentCode() error = %v", err)
	}
	return code
}

// WrongCode returns a well-formed code that does not verify for account.
func (e *Env) WrongCode(t testing.TB, account *domain.Account) string {
	t.Helper()
	now := e.Clock.Now()
	valid := map[string]bool{}
	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := e.TOTP.CurrentCode(account.TOTPSecret, now.Add(offset))
		if err != nil {
			t.Fatalf("CurrentCode() error = %v", err)
		}
		valid[code] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[candidate] {
			return candidate
		}
	}
	t.Fatal("no wrong code available")
	return ""
}

// Login signs in and returns the session token. It fails the test unless
// the login completes without a second factor.
func (e *Env) Login(t testing.TB, username, password string) string {
	t.Helper()
	result, err := e.Service.Login(context.Background(), username, password, auth.AttemptMeta{SourceAddress: "192.0.2.1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.State != domain.StateAuthenticated {
		t.Fatalf("Login() state = %v, want authenticated", result.State)
	}
	return result.SessionToken
}

// EnableSecondFactor provisions username, turns on TOTP for it and returns
// the account with the session issued by the enable step.
func (e *Env) EnableSecondFactor(t testing.TB, username, password string) (*domain.Account, string) {
	t.Helper()
	account := e.Provision(t, username, password)
	token := e.Login(t, username, password)
	result, err := e.Service.EnableSecondFactor(context.Background(), token, e.Code(t, account))
	if err != nil {
		t.Fatalf("EnableSecondFactor() error = %v", err)
	}
	return account, result.SessionToken
}
