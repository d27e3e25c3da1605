package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated session.
type Session struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	TokenHash            string
	IssuedAt             time.Time
	ExpiresAt            time.Time
	AbsoluteExpiresAt    time.Time
	SlidingRenewal       bool
	SecondFactorVerified bool
	RevokedAt            *time.Time
}

// IsValid checks if the session is neither revoked nor expired at now.
func (s *Session) IsValid(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt) && now.Before(s.AbsoluteExpiresAt)
}

// Renewed returns the expiry after activity at now: extended by idle, capped
// by the absolute lifetime. Non-sliding sessions keep their expiry.
func (s *Session) Renewed(now time.Time, idle time.Duration) time.Time {
	if !s.SlidingRenewal {
		return s.ExpiresAt
	}
	next := now.Add(idle)
	if next.After(s.AbsoluteExpiresAt) {
		return s.AbsoluteExpiresAt
	}
	return next
}
