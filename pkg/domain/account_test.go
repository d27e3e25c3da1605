package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccount_HasSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret []byte
		want   bool
	}{
		{name: "nil secret", secret: nil, want: false},
		{name: "empty secret", secret: []byte{}, want: false},
		{name: "provisioned", secret: []byte("12345678901234567890"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{ID: uuid.New(), Username: "alice", TOTPSecret: tt.secret}
			if got := a.HasSecret(); got != tt.want {
				t.Errorf("HasSecret() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccount_CloneDoesNotAliasSecret(t *testing.T) {
	a := &Account{ID: uuid.New(), Username: "alice", TOTPSecret: []byte{1, 2, 3}}
	c := a.Clone()
	c.TOTPSecret[0] = 9
	c.TOTPEnabled = true

	if a.TOTPSecret[0] != 1 {
		t.Error("Clone shares the secret slice with the original")
	}
	if a.TOTPEnabled {
		t.Error("Clone shares fields with the original")
	}
}

func TestSession_IsValid(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{
			name:    "active",
			session: Session{ExpiresAt: now.Add(time.Minute), AbsoluteExpiresAt: now.Add(time.Hour)},
			want:    true,
		},
		{
			name:    "idle expired",
			session: Session{ExpiresAt: now.Add(-time.Second), AbsoluteExpiresAt: now.Add(time.Hour)},
			want:    false,
		},
		{
			name:    "absolute expired",
			session: Session{ExpiresAt: now.Add(time.Minute), AbsoluteExpiresAt: now},
			want:    false,
		},
		{
			name:    "revoked",
			session: Session{ExpiresAt: now.Add(time.Minute), AbsoluteExpiresAt: now.Add(time.Hour), RevokedAt: &revoked},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsValid(now); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_Renewed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	idle := 20 * time.Minute

	sliding := Session{
		ExpiresAt:         now.Add(5 * time.Minute),
		AbsoluteExpiresAt: now.Add(time.Hour),
		SlidingRenewal:    true,
	}
	if got := sliding.Renewed(now, idle); !got.Equal(now.Add(idle)) {
		t.Errorf("sliding Renewed() = %v, want %v", got, now.Add(idle))
	}

	capped := sliding
	capped.AbsoluteExpiresAt = now.Add(10 * time.Minute)
	if got := capped.Renewed(now, idle); !got.Equal(capped.AbsoluteExpiresAt) {
		t.Errorf("capped Renewed() = %v, want %v", got, capped.AbsoluteExpiresAt)
	}

	fixed := sliding
	fixed.SlidingRenewal = false
	if got := fixed.Renewed(now, idle); !got.Equal(fixed.ExpiresAt) {
		t.Errorf("fixed Renewed() = %v, want %v", got, fixed.ExpiresAt)
	}
}

func TestPendingAuthToken_IsExpired(t *testing.T) {
	now := time.Now()
	tok := PendingAuthToken{AccountID: uuid.New(), IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	if tok.IsExpired(now) {
		t.Error("token should be live at issue time")
	}
	if !tok.IsExpired(tok.ExpiresAt) {
		t.Error("token should be expired exactly at ExpiresAt")
	}
}

func TestAuthState_String(t *testing.T) {
	states := map[AuthState]string{
		StateAnonymous:            "anonymous",
		StatePasswordVerified:     "password_verified",
		StateSecondFactorPending:  "second_factor_pending",
		StateSecondFactorVerified: "second_factor_verified",
		StateAuthenticated:        "authenticated",
		AuthState(42):             "unknown",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("AuthState(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
