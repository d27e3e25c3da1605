package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingAuthToken bridges a verified password to the second factor step.
// Only the hash of the token is stored.
type PendingAuthToken struct {
	TokenHash string
	AccountID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t *PendingAuthToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
