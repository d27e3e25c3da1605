package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

const accountColumns = `id, username, email, password_hash, totp_secret_encrypted, totp_enabled, created_at, updated_at`

// AccountsRepository persists accounts in Postgres. TOTP secrets are sealed
// with AES-256-GCM before they reach the database.
type AccountsRepository struct {
	db     *sql.DB
	sealer *auth.SecretSealer
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB, sealer *auth.SecretSealer) *AccountsRepository {
	return &AccountsRepository{db: db, sealer: sealer}
}

// FindByUsername retrieves an account by username.
func (r *AccountsRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, username))
}

// FindByID retrieves an account by ID.
func (r *AccountsRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a new account.
func (r *AccountsRepository) Create(ctx context.Context, account *domain.Account) error {
	sealed, err := r.seal(account.TOTPSecret)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		account.ID, account.Username, account.Email, account.PasswordHash,
		sealed, account.TOTPEnabled, account.CreatedAt, account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Save writes the password hash, secret and second factor flag in a single
// statement so readers never observe a partial update.
func (r *AccountsRepository) Save(ctx context.Context, account *domain.Account) error {
	sealed, err := r.seal(account.TOTPSecret)
	if err != nil {
		return err
	}

	query := `
		UPDATE accounts
		SET email = $2, password_hash = $3, totp_secret_encrypted = $4,
		    totp_enabled = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, sealed,
		account.TOTPEnabled, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountsRepository) scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	var sealed sql.NullString
	err := row.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&sealed, &account.TOTPEnabled, &account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if sealed.Valid && sealed.String != "" {
		if r.sealer == nil {
			return nil, errors.New("secret sealer not configured")
		}
		account.TOTPSecret, err = r.sealer.Open(sealed.String)
		if err != nil {
			return nil, fmt.Errorf("failed to open TOTP secret: %w", err)
		}
	}
	return account, nil
}

func (r *AccountsRepository) seal(secret []byte) (sql.NullString, error) {
	if len(secret) == 0 {
		return sql.NullString{}, nil
	}
	if r.sealer == nil {
		return sql.NullString{}, errors.New("secret sealer not configured")
	}
	sealed, err := r.sealer.Seal(secret)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to seal TOTP secret: %w", err)
	}
	return sql.NullString{String: sealed, Valid: true}, nil
}

var _ auth.AccountRepository = (*AccountsRepository)(nil)
