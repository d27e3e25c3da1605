package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/domain"
)

// AccountRepository stores account records.
// Lookups return domain.ErrAccountNotFound when nothing matches.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// Create returns domain.ErrUsernameTaken for duplicate usernames.
	Create(ctx context.Context, account *domain.Account) error
	// Save writes all mutable fields of the account in one step.
	Save(ctx context.Context, account *domain.Account) error
}

// PendingAuthStore holds single-use tokens bridging the password and second
// factor steps.
type PendingAuthStore interface {
	Issue(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (string, error)
	// Peek returns domain.ErrPendingTokenNotFound for missing or expired tokens.
	Peek(ctx context.Context, token string) (uuid.UUID, error)
	// Consume atomically resolves and deletes a token. Exactly one concurrent
	// caller succeeds; the others get domain.ErrPendingTokenNotFound. Expired
	// tokens yield domain.ErrPendingTokenExpired or domain.ErrPendingTokenNotFound.
	Consume(ctx context.Context, token string) (uuid.UUID, error)
}

// SessionStore persists sessions keyed by the hash of their token.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	// GetByTokenHash returns domain.ErrSessionNotFound for unknown or revoked sessions.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	// Revoke is idempotent.
	Revoke(ctx context.Context, id uuid.UUID) error
}

// AuditSink receives anonymized attempt records. Delivery is fire-and-forget:
// an error is logged by the caller and never fails the request.
type AuditSink interface {
	Record(ctx context.Context, record domain.AttemptRecord) error
}
