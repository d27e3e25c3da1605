package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

// LoginAttemptsRepository stores anonymized login attempts. Only masked
// identifiers are ever written.
type LoginAttemptsRepository struct {
	db *sql.DB
}

// NewLoginAttemptsRepository creates a new login attempts repository.
func NewLoginAttemptsRepository(db *sql.DB) *LoginAttemptsRepository {
	return &LoginAttemptsRepository{db: db}
}

// Record inserts one attempt.
func (r *LoginAttemptsRepository) Record(ctx context.Context, record domain.AttemptRecord) error {
	query := `
		INSERT INTO login_attempts (id, masked_username, masked_source_address, user_agent,
		                            succeeded, failure_reason, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var reason sql.NullString
	if record.FailureReason != "" {
		reason = sql.NullString{String: record.FailureReason, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(), record.MaskedUsername, record.MaskedSourceAddress, record.UserAgent,
		record.Succeeded, reason, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

var _ auth.AuditSink = (*LoginAttemptsRepository)(nil)
