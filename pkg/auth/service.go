package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/domain"
)

// Default lifetimes
const (
	DefaultPendingTokenTTL    = 5 * time.Minute
	DefaultSessionIdleTimeout = 20 * time.Minute
	DefaultSessionMaxLifetime = 12 * time.Hour
	DefaultTOTPIssuer         = "SecureLoginSystem"
)

// AuthConfig holds the policy knobs of the login state machine.
type AuthConfig struct {
	PendingTokenTTL       time.Duration
	SessionIdleTimeout    time.Duration
	SessionMaxLifetime    time.Duration
	DisableSlidingRenewal bool
	TOTPIssuer            string
	SecretLength          int
	QRCodeSize            int
}

// AuthDeps are the collaborators of AuthService. Accounts, Pending, Sessions,
// Passwords and TOTP are required.
type AuthDeps struct {
	Accounts  AccountRepository
	Pending   PendingAuthStore
	Sessions  SessionStore
	Audit     AuditSink
	Passwords *PasswordHasher
	TOTP      *TOTPEngine
	Logger    *slog.Logger
	Clock     func() time.Time
	Random    io.Reader
}

// LoginResult is the outcome of a successful state transition.
type LoginResult struct {
	State domain.AuthState

	// Set when State is StateSecondFactorPending.
	PendingToken     string
	PendingExpiresAt time.Time

	// Set when State is StateAuthenticated.
	SessionToken string
	Session      *domain.Session
}

// SecondFactorSetup is what a user needs to register the account's secret
// with an authenticator app.
type SecondFactorSetup struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURI   string
	Enabled         bool
}

// AuthService drives the login state machine:
// Anonymous → PasswordVerified → (SecondFactorPending → SecondFactorVerified) → Authenticated.
type AuthService struct {
	config    AuthConfig
	accounts  AccountRepository
	pending   PendingAuthStore
	sessions  SessionStore
	audit     AuditSink
	passwords *PasswordHasher
	totp      *TOTPEngine
	logger    *slog.Logger
	now       func() time.Time
	random    io.Reader
	locks     accountLocks
}

// NewAuthService creates the authentication service.
func NewAuthService(config AuthConfig, deps AuthDeps) (*AuthService, error) {
	if deps.Accounts == nil || deps.Pending == nil || deps.Sessions == nil {
		return nil, errors.New("accounts, pending and sessions stores are required")
	}
	if deps.Passwords == nil || deps.TOTP == nil {
		return nil, errors.New("password hasher and TOTP engine are required")
	}

	if config.PendingTokenTTL <= 0 {
		config.PendingTokenTTL = DefaultPendingTokenTTL
	}
	if config.SessionIdleTimeout <= 0 {
		config.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	if config.SessionMaxLifetime <= 0 {
		config.SessionMaxLifetime = DefaultSessionMaxLifetime
	}
	if config.TOTPIssuer == "" {
		config.TOTPIssuer = DefaultTOTPIssuer
	}
	if config.SecretLength < MinSecretLength {
		config.SecretLength = MinSecretLength
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Random == nil {
		deps.Random = rand.Reader
	}

	return &AuthService{
		config:    config,
		accounts:  deps.Accounts,
		pending:   deps.Pending,
		sessions:  deps.Sessions,
		audit:     deps.Audit,
		passwords: deps.Passwords,
		totp:      deps.TOTP,
		logger:    deps.Logger,
		now:       deps.Clock,
		random:    deps.Random,
	}, nil
}

// SessionIdleTimeout returns the sliding idle timeout.
func (s *AuthService) SessionIdleTimeout() time.Duration {
	return s.config.SessionIdleTimeout
}

// PendingTokenTTL returns the lifetime of pending second factor tokens.
func (s *AuthService) PendingTokenTTL() time.Duration {
	return s.config.PendingTokenTTL
}

// Login verifies a password. Unknown usernames and wrong passwords are
// indistinguishable: both burn at least one verification at the configured
// cost and return domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string, meta AttemptMeta) (*LoginResult, error) {
	username = NormalizeUsername(username)

	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.passwords.VerifyDummy(password)
			s.recordAttempt(ctx, username, meta, false, domain.FailureInvalidCredentials)
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up account", "username", MaskUsername(username), "error", err)
		s.recordAttempt(ctx, username, meta, false, domain.FailureServiceUnavailable)
		return nil, unavailable("look up account", err)
	}

	if !s.passwords.VerifyStored(password, account.PasswordHash) {
		s.recordAttempt(ctx, username, meta, false, domain.FailureInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	// PasswordVerified
	s.rehashIfNeeded(ctx, account, password)

	if account.TOTPEnabled {
		token, err := s.pending.Issue(ctx, account.ID, s.config.PendingTokenTTL)
		if err != nil {
			s.logger.Error("failed to issue pending token", "username", MaskUsername(username), "error", err)
			return nil, unavailable("issue pending token", err)
		}
		s.logger.Info("second factor required", "username", MaskUsername(username))
		return &LoginResult{
			State:            domain.StateSecondFactorPending,
			PendingToken:     token,
			PendingExpiresAt: s.now().Add(s.config.PendingTokenTTL),
		}, nil
	}

	result, err := s.issueSession(ctx, account.ID, false)
	if err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, username, meta, true, "")
	s.logger.Info("login succeeded", "username", MaskUsername(username))
	return result, nil
}

// CheckPending reports whether a pending token is still usable without
// consuming it.
func (s *AuthService) CheckPending(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrSessionExpired
	}
	if _, err := s.pending.Peek(ctx, token); err != nil {
		if errors.Is(err, domain.ErrPendingTokenNotFound) || errors.Is(err, domain.ErrPendingTokenExpired) {
			return domain.ErrSessionExpired
		}
		return unavailable("peek pending token", err)
	}
	return nil
}

// VerifySecondFactor completes a pending login. The token is consumed before
// the code is checked, so a wrong code sends the caller back to Login.
func (s *AuthService) VerifySecondFactor(ctx context.Context, token, code string, meta AttemptMeta) (*LoginResult, error) {
	if token == "" {
		s.recordAttempt(ctx, "", meta, false, domain.FailureSessionExpired)
		return nil, domain.ErrSessionExpired
	}

	accountID, err := s.pending.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrPendingTokenNotFound) || errors.Is(err, domain.ErrPendingTokenExpired) {
			s.recordAttempt(ctx, "", meta, false, domain.FailureSessionExpired)
			return nil, domain.ErrSessionExpired
		}
		s.logger.Error("failed to consume pending token", "error", err)
		return nil, unavailable("consume pending token", err)
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.recordAttempt(ctx, "", meta, false, domain.FailureSessionExpired)
			return nil, domain.ErrSessionExpired
		}
		s.logger.Error("failed to load account", "account_id", accountID, "error", err)
		return nil, unavailable("load account", err)
	}

	if !s.totp.Verify(account.TOTPSecret, code, s.now()) {
		s.recordAttempt(ctx, account.Username, meta, false, domain.FailureInvalidCode)
		s.logger.Info("second factor rejected", "username", MaskUsername(account.Username))
		return nil, domain.ErrInvalidCode
	}

	// SecondFactorVerified
	result, err := s.issueSession(ctx, account.ID, true)
	if err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, account.Username, meta, true, "")
	s.logger.Info("second factor accepted", "username", MaskUsername(account.Username))
	return result, nil
}

// Authenticate resolves a session token and slides its expiry. Expired or
// revoked sessions return domain.ErrSessionExpired.
func (s *AuthService) Authenticate(ctx context.Context, sessionToken string) (*domain.Session, error) {
	if sessionToken == "" {
		return nil, domain.ErrSessionExpired
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashToken(sessionToken))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionExpired
		}
		return nil, unavailable("load session", err)
	}

	now := s.now()
	if !session.IsValid(now) {
		if session.RevokedAt == nil {
			if err := s.sessions.Revoke(ctx, session.ID); err != nil {
				s.logger.Warn("failed to revoke expired session", "session_id", session.ID, "error", err)
			}
		}
		return nil, domain.ErrSessionExpired
	}

	if next := session.Renewed(now, s.config.SessionIdleTimeout); next.After(session.ExpiresAt) {
		if err := s.sessions.Touch(ctx, session.ID, next); err != nil {
			// Revoked by a concurrent logout or second factor enable.
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, domain.ErrSessionExpired
			}
			return nil, unavailable("renew session", err)
		}
		session.ExpiresAt = next
	}

	return session, nil
}

// Logout revokes the session behind sessionToken. Unknown tokens are not an
// error.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashToken(sessionToken))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return unavailable("load session", err)
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return unavailable("revoke session", err)
	}
	s.logger.Info("session revoked", "session_id", session.ID)
	return nil
}

// SecondFactorSetup returns the provisioning material for the account behind
// sessionToken. Accounts created before secrets were pre-provisioned get one
// here.
func (s *AuthService) SecondFactorSetup(ctx context.Context, sessionToken string) (*SecondFactorSetup, error) {
	session, err := s.Authenticate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, s.sessionAccountError(err)
	}

	if !account.HasSecret() {
		account, err = s.provisionMissingSecret(ctx, account.ID)
		if err != nil {
			return nil, err
		}
	}

	uri := ProvisioningURI(accountLabel(account), s.config.TOTPIssuer, account.TOTPSecret)
	qr, err := QRCodeDataURI(uri, s.config.QRCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}

	return &SecondFactorSetup{
		Secret:          EncodeSecret(account.TOTPSecret),
		ProvisioningURI: uri,
		QRCodeDataURI:   qr,
		Enabled:         account.TOTPEnabled,
	}, nil
}

// EnableSecondFactor turns on TOTP for the account behind sessionToken after
// proving possession of the pre-provisioned secret. The old session is
// revoked and a new one issued so its claims reflect the new factor state.
func (s *AuthService) EnableSecondFactor(ctx context.Context, sessionToken, code string) (*LoginResult, error) {
	session, err := s.Authenticate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if !IsWellFormedCode(code) {
		return nil, domain.ErrMalformedCode
	}

	unlock := s.locks.lock(session.AccountID)
	defer unlock()

	account, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, s.sessionAccountError(err)
	}

	if account.TOTPEnabled {
		return nil, domain.ErrSecondFactorAlreadyEnabled
	}
	if !s.totp.Verify(account.TOTPSecret, code, s.now()) {
		s.logger.Info("second factor enable rejected", "username", MaskUsername(account.Username))
		return nil, domain.ErrInvalidCode
	}

	updated := account.Clone()
	updated.TOTPEnabled = true
	updated.UpdatedAt = s.now()
	if err := s.accounts.Save(ctx, updated); err != nil {
		s.logger.Error("failed to enable second factor", "account_id", account.ID, "error", err)
		return nil, unavailable("save account", err)
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		s.logger.Warn("failed to revoke previous session", "session_id", session.ID, "error", err)
	}

	result, err := s.issueSession(ctx, account.ID, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("second factor enabled", "username", MaskUsername(account.Username))
	return result, nil
}

// ProvisionAccount creates an account with a hashed password and a freshly
// generated TOTP secret. Second factor stays disabled until enabled by the
// account holder.
func (s *AuthService) ProvisionAccount(ctx context.Context, username, email, password string) (*domain.Account, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	secret, err := GenerateSecret(s.random, s.config.SecretLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	now := s.now()
	account := &domain.Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		TOTPSecret:   secret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, err
		}
		return nil, unavailable("create account", err)
	}

	s.logger.Info("account provisioned", "username", MaskUsername(username))
	return account, nil
}

// Account returns the account behind an authenticated session.
func (s *AuthService) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, s.sessionAccountError(err)
	}
	return account, nil
}

func (s *AuthService) issueSession(ctx context.Context, accountID uuid.UUID, secondFactorVerified bool) (*LoginResult, error) {
	token, err := GenerateToken(s.random, tokenLen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	absolute := now.Add(s.config.SessionMaxLifetime)
	expires := now.Add(s.config.SessionIdleTimeout)
	if expires.After(absolute) {
		expires = absolute
	}

	session := &domain.Session{
		ID:                   uuid.New(),
		AccountID:            accountID,
		TokenHash:            HashToken(token),
		IssuedAt:             now,
		ExpiresAt:            expires,
		AbsoluteExpiresAt:    absolute,
		SlidingRenewal:       !s.config.DisableSlidingRenewal,
		SecondFactorVerified: secondFactorVerified,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("failed to create session", "account_id", accountID, "error", err)
		return nil, unavailable("create session", err)
	}

	return &LoginResult{
		State:        domain.StateAuthenticated,
		SessionToken: token,
		Session:      session,
	}, nil
}

// rehashIfNeeded upgrades a password hash to the configured work factor.
// Failures are logged and never affect the login.
func (s *AuthService) rehashIfNeeded(ctx context.Context, account *domain.Account, password string) {
	if !s.passwords.NeedsRehash(account.PasswordHash) {
		return
	}

	unlock := s.locks.lock(account.ID)
	defer unlock()

	current, err := s.accounts.FindByID(ctx, account.ID)
	if err != nil || current.PasswordHash != account.PasswordHash {
		return
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash password", "account_id", account.ID, "error", err)
		return
	}

	updated := current.Clone()
	updated.PasswordHash = hash
	updated.UpdatedAt = s.now()
	if err := s.accounts.Save(ctx, updated); err != nil {
		s.logger.Warn("failed to store rehashed password", "account_id", account.ID, "error", err)
		return
	}
	account.PasswordHash = hash
}

func (s *AuthService) provisionMissingSecret(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, s.sessionAccountError(err)
	}
	if account.HasSecret() {
		return account, nil
	}

	secret, err := GenerateSecret(s.random, s.config.SecretLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	updated := account.Clone()
	updated.TOTPSecret = secret
	updated.UpdatedAt = s.now()
	if err := s.accounts.Save(ctx, updated); err != nil {
		return nil, unavailable("save account", err)
	}
	return updated, nil
}

func (s *AuthService) sessionAccountError(err error) error {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.ErrSessionExpired
	}
	return unavailable("load account", err)
}

// recordAttempt hands an anonymized record to the audit sink. Sink failures,
// including panics, are logged and swallowed.
func (s *AuthService) recordAttempt(ctx context.Context, username string, meta AttemptMeta, succeeded bool, reason string) {
	if s.audit == nil {
		return
	}

	record := NewAttemptRecord(username, meta, succeeded, reason, s.now())

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit sink panicked", "panic", r)
		}
	}()
	if err := s.audit.Record(ctx, record); err != nil {
		s.logger.Warn("failed to record login attempt", "username", record.MaskedUsername, "error", err)
	}
}

func accountLabel(account *domain.Account) string {
	if account.Email != "" {
		return account.Email
	}
	return account.Username
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrServiceUnavailable, op, err)
}
