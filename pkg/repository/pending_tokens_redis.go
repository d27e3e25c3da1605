package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"
	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

const defaultPendingPrefix = "pending2fa"

// RedisPendingStore keeps pending second factor tokens in Redis so several
// server instances can share them. Keys hold the token hash; values hold the
// account id and expiry.
type RedisPendingStore struct {
	client red.Cmdable
	prefix string
	now    func() time.Time
	random io.Reader
}

// NewRedisPendingStore creates a Redis-backed pending token store.
func NewRedisPendingStore(client red.Cmdable, keyPrefix string) *RedisPendingStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPendingPrefix
	}
	return &RedisPendingStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RedisPendingStore) WithClock(clock func() time.Time) *RedisPendingStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithRandom overrides the token random source, used in tests.
func (s *RedisPendingStore) WithRandom(r io.Reader) *RedisPendingStore {
	s.random = r
	return s
}

// Issue stores a new token with SET NX PX, retrying on collision.
func (s *RedisPendingStore) Issue(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	for i := 0; i < maxIssueCollisions; i++ {
		token, err := auth.GenerateToken(s.random, pendingTokenBytes)
		if err != nil {
			return "", err
		}

		value := encodePendingValue(accountID, s.now().Add(ttl))
		ok, err := s.client.SetNX(ctx, s.key(token), value, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("redis store pending token: %w", err)
		}
		if ok {
			return token, nil
		}
	}
	return "", errTokenCollision
}

// Peek resolves a token without consuming it.
func (s *RedisPendingStore) Peek(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Result()
	if errors.Is(err, red.Nil) {
		return uuid.Nil, domain.ErrPendingTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis get pending token: %w", err)
	}

	accountID, expiresAt, err := decodePendingValue(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if !s.now().Before(expiresAt) {
		return uuid.Nil, domain.ErrPendingTokenNotFound
	}
	return accountID, nil
}

// Consume atomically fetches and deletes a token with GETDEL.
func (s *RedisPendingStore) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.client.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, red.Nil) {
		return uuid.Nil, domain.ErrPendingTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis getdel pending token: %w", err)
	}

	accountID, expiresAt, err := decodePendingValue(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if !s.now().Before(expiresAt) {
		return uuid.Nil, domain.ErrPendingTokenExpired
	}
	return accountID, nil
}

func (s *RedisPendingStore) key(token string) string {
	return s.prefix + ":" + auth.HashToken(token)
}

func encodePendingValue(accountID uuid.UUID, expiresAt time.Time) string {
	return accountID.String() + "|" + strconv.FormatInt(expiresAt.UnixMilli(), 10)
}

func decodePendingValue(raw string) (uuid.UUID, time.Time, error) {
	id, ms, ok := strings.Cut(raw, "|")
	if !ok {
		return uuid.Nil, time.Time{}, errors.New("malformed pending token entry")
	}
	accountID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("parse pending account id: %w", err)
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("parse pending expiry: %w", err)
	}
	return accountID, time.UnixMilli(v), nil
}

var _ auth.PendingAuthStore = (*RedisPendingStore)(nil)
