package repository

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

const (
	pendingTokenBytes  = 32
	maxIssueCollisions = 3
)

var errTokenCollision = errors.New("failed to issue pending token: repeated collisions")

// MemoryPendingStore keeps pending second factor tokens in process memory,
// keyed by token hash.
type MemoryPendingStore struct {
	mu     sync.Mutex
	tokens map[string]domain.PendingAuthToken
	now    func() time.Time
	random io.Reader
}

// NewMemoryPendingStore creates an in-process pending token store. A nil
// clock uses time.Now and a nil random source uses crypto/rand.
func NewMemoryPendingStore(clock func() time.Time, random io.Reader) *MemoryPendingStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryPendingStore{
		tokens: make(map[string]domain.PendingAuthToken),
		now:    clock,
		random: random,
	}
}

// Issue creates a token for accountID that lives for ttl.
func (s *MemoryPendingStore) Issue(_ context.Context, accountID uuid.UUID, ttl time.Duration) (string, error) {
	for i := 0; i < maxIssueCollisions; i++ {
		token, err := auth.GenerateToken(s.random, pendingTokenBytes)
		if err != nil {
			return "", err
		}
		hash := auth.HashToken(token)

		s.mu.Lock()
		if _, exists := s.tokens[hash]; exists {
			s.mu.Unlock()
			continue
		}
		now := s.now()
		s.tokens[hash] = domain.PendingAuthToken{
			TokenHash: hash,
			AccountID: accountID,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		s.mu.Unlock()
		return token, nil
	}
	return "", errTokenCollision
}

// Peek resolves a token without consuming it.
func (s *MemoryPendingStore) Peek(_ context.Context, token string) (uuid.UUID, error) {
	hash := auth.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[hash]
	if !ok {
		return uuid.Nil, domain.ErrPendingTokenNotFound
	}
	if entry.IsExpired(s.now()) {
		delete(s.tokens, hash)
		return uuid.Nil, domain.ErrPendingTokenNotFound
	}
	return entry.AccountID, nil
}

// Consume resolves and deletes a token under one lock.
func (s *MemoryPendingStore) Consume(_ context.Context, token string) (uuid.UUID, error) {
	hash := auth.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[hash]
	if !ok {
		return uuid.Nil, domain.ErrPendingTokenNotFound
	}
	delete(s.tokens, hash)
	if entry.IsExpired(s.now()) {
		return uuid.Nil, domain.ErrPendingTokenExpired
	}
	return entry.AccountID, nil
}

// Reap removes every token expired at now and returns how many were removed.
func (s *MemoryPendingStore) Reap(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for hash, entry := range s.tokens {
		if entry.IsExpired(now) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n
}

// Run reaps expired tokens every interval until ctx is done.
func (s *MemoryPendingStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap(s.now())
		}
	}
}

// Len returns the number of stored tokens, expired or not.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

var _ auth.PendingAuthStore = (*MemoryPendingStore)(nil)
