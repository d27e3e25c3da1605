package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/secure-login/pkg/auth"
)

func TestAccountsRepository_Structure(t *testing.T) {
	repo := NewAccountsRepository(nil, nil)
	if repo == nil {
		t.Fatal("NewAccountsRepository should not return nil")
	}
	if repo.db != nil {
		t.Error("Expected db to be nil in test")
	}
}

func TestAccountsRepository_SealRoundTrip(t *testing.T) {
	sealer, err := auth.NewSecretSealer([]byte("0123456789abcdef0123456789abcdef"), nil)
	if err != nil {
		t.Fatal(err)
	}
	repo := NewAccountsRepository(nil, sealer)

	sealed, err := repo.seal([]byte("12345678901234567890"))
	if err != nil {
		t.Fatalf("seal() error = %v", err)
	}
	if !sealed.Valid || sealed.String == "" {
		t.Fatalf("seal() = %+v, want a valid value", sealed)
	}

	opened, err := sealer.Open(sealed.String)
	if err != nil || string(opened) != "12345678901234567890" {
		t.Errorf("Open(seal()) = %q, %v", opened, err)
	}
}

func TestAccountsRepository_SealEmptySecret(t *testing.T) {
	repo := NewAccountsRepository(nil, nil)

	sealed, err := repo.seal(nil)
	if err != nil {
		t.Fatalf("seal(nil) error = %v", err)
	}
	if sealed.Valid {
		t.Error("empty secret should be stored as NULL")
	}

	if _, err := repo.seal([]byte("secret")); err == nil {
		t.Error("seal() without a sealer should fail")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionsAndAttemptsRepository_Structure(t *testing.T) {
	if NewSessionsRepository(nil) == nil {
		t.Fatal("NewSessionsRepository should not return nil")
	}
	if NewLoginAttemptsRepository(nil) == nil {
		t.Fatal("NewLoginAttemptsRepository should not return nil")
	}
}

func TestPendingValueEncoding(t *testing.T) {
	clock := newFakeClock()
	want := uuid.New()
	id, exp, err := decodePendingValue(encodePendingValue(want, clock.Now()))
	if err != nil {
		t.Fatalf("decodePendingValue() error = %v", err)
	}
	if id != want || !exp.Equal(clock.Now()) {
		t.Errorf("decoded = %v, %v", id, exp)
	}

	for _, raw := range []string{"", "nopipe", "not-a-uuid|123", "00000000-0000-0000-0000-000000000000|abc"} {
		if _, _, err := decodePendingValue(raw); err == nil {
			t.Errorf("decodePendingValue(%q) error = nil", raw)
		}
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "secure_login", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=secure_login sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
