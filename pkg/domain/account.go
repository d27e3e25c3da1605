package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credential record owned by the account repository.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	TOTPSecret   []byte // provisioned at creation, present even while TOTPEnabled is false
	TOTPEnabled  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSecret reports whether a TOTP secret has been provisioned.
func (a *Account) HasSecret() bool {
	return len(a.TOTPSecret) > 0
}

// Clone returns a deep copy so callers can mutate without aliasing the secret.
func (a *Account) Clone() *Account {
	c := *a
	if a.TOTPSecret != nil {
		c.TOTPSecret = append([]byte(nil), a.TOTPSecret...)
	}
	return &c
}
