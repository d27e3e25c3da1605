package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

// MemoryAccounts is an in-process AccountRepository. Records are copied on
// the way in and out.
type MemoryAccounts struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*domain.Account
	byUsername map[string]uuid.UUID
}

// NewMemoryAccounts creates an empty account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:       make(map[uuid.UUID]*domain.Account),
		byUsername: make(map[string]uuid.UUID),
	}
}

// FindByUsername retrieves an account by username.
func (m *MemoryAccounts) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return m.byID[id].Clone(), nil
}

// FindByID retrieves an account by ID.
func (m *MemoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// Create inserts a new account.
func (m *MemoryAccounts) Create(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUsername[account.Username]; taken {
		return domain.ErrUsernameTaken
	}
	m.byID[account.ID] = account.Clone()
	m.byUsername[account.Username] = account.ID
	return nil
}

// Save replaces the stored account. The username is immutable.
func (m *MemoryAccounts) Save(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	updated := account.Clone()
	updated.Username = current.Username
	m.byID[account.ID] = updated
	return nil
}

// MemorySessions is an in-process SessionStore.
type MemorySessions struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.Session
	byHash map[string]uuid.UUID
	now    func() time.Time
}

// NewMemorySessions creates an empty session store. A nil clock uses time.Now.
func NewMemorySessions(clock func() time.Time) *MemorySessions {
	if clock == nil {
		clock = time.Now
	}
	return &MemorySessions{
		byID:   make(map[uuid.UUID]*domain.Session),
		byHash: make(map[string]uuid.UUID),
		now:    clock,
	}
}

// Create stores a new session.
func (m *MemorySessions) Create(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	m.byID[s.ID] = &s
	m.byHash[s.TokenHash] = s.ID
	return nil
}

// GetByTokenHash retrieves an unrevoked session by token hash.
func (m *MemorySessions) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s := m.byID[id]
	if s.RevokedAt != nil {
		return nil, domain.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

// Touch moves the idle expiry of an active session, capped by its absolute
// lifetime.
func (m *MemorySessions) Touch(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok || s.RevokedAt != nil {
		return domain.ErrSessionNotFound
	}
	if expiresAt.After(s.AbsoluteExpiresAt) {
		expiresAt = s.AbsoluteExpiresAt
	}
	s.ExpiresAt = expiresAt
	return nil
}

// Revoke marks a session revoked. Unknown or already revoked sessions are
// left alone.
func (m *MemorySessions) Revoke(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[id]; ok && s.RevokedAt == nil {
		now := m.now()
		s.RevokedAt = &now
	}
	return nil
}

// RevokeByTokenHash revokes the session behind tokenHash, if any.
func (m *MemorySessions) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	id, ok := m.byHash[tokenHash]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.Revoke(ctx, id)
}

// DeleteExpired drops sessions that expired or were revoked before cutoff.
func (m *MemorySessions) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.byID {
		dead := s.ExpiresAt.Before(cutoff) || s.AbsoluteExpiresAt.Before(cutoff) ||
			(s.RevokedAt != nil && s.RevokedAt.Before(cutoff))
		if dead {
			delete(m.byID, id)
			delete(m.byHash, s.TokenHash)
			n++
		}
	}
	return n, nil
}

var (
	_ auth.AccountRepository = (*MemoryAccounts)(nil)
	_ auth.SessionStore      = (*MemorySessions)(nil)
)
