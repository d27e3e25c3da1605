package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/secure-login/pkg/domain"
)

func TestMemoryPendingStore_IssueConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPendingStore(nil, nil)
	accountID := uuid.New()

	token, err := store.Issue(ctx, accountID, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(token) < 43 {
		t.Errorf("token length = %d, want at least 43 base64url chars", len(token))
	}

	got, err := store.Peek(ctx, token)
	if err != nil || got != accountID {
		t.Fatalf("Peek() = %v, %v; want %v", got, err, accountID)
	}

	got, err = store.Consume(ctx, token)
	if err != nil || got != accountID {
		t.Fatalf("Consume() = %v, %v; want %v", got, err, accountID)
	}

	if _, err := store.Consume(ctx, token); !errors.Is(err, domain.ErrPendingTokenNotFound) {
		t.Errorf("second Consume() error = %v, want ErrPendingTokenNotFound", err)
	}
	if _, err := store.Peek(ctx, token); !errors.Is(err, domain.ErrPendingTokenNotFound) {
		t.Errorf("Peek() after Consume error = %v, want ErrPendingTokenNotFound", err)
	}
}

func TestMemoryPendingStore_StoresOnlyHashes(t *testing.T) {
	store := NewMemoryPendingStore(nil, nil)
	token, _ := store.Issue(context.Background(), uuid.New(), time.Minute)

	for hash := range store.tokens {
		if hash == token {
			t.Fatal("raw token used as map key")
		}
	}
}

func TestMemoryPendingStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryPendingStore(clock.Now, nil)

	token, _ := store.Issue(ctx, uuid.New(), 5*time.Minute)
	clock.Advance(5*time.Minute - time.Second)
	if _, err := store.Peek(ctx, token); err != nil {
		t.Fatalf("Peek() just before expiry error = %v", err)
	}

	clock.Advance(time.Second)
	if _, err := store.Consume(ctx, token); !errors.Is(err, domain.ErrPendingTokenExpired) {
		t.Errorf("Consume() at expiry error = %v, want ErrPendingTokenExpired", err)
	}
	if store.Len() != 0 {
		t.Errorf("expired token was not removed on consume")
	}

	other, _ := store.Issue(ctx, uuid.New(), time.Minute)
	clock.Advance(2 * time.Minute)
	if _, err := store.Peek(ctx, other); !errors.Is(err, domain.ErrPendingTokenNotFound) {
		t.Errorf("Peek() of expired token error = %v, want ErrPendingTokenNotFound", err)
	}
}

func TestMemoryPendingStore_UnknownToken(t *testing.T) {
	store := NewMemoryPendingStore(nil, nil)
	for _, token := range []string{"", "never-issued"} {
		if _, err := store.Consume(context.Background(), token); !errors.Is(err, domain.ErrPendingTokenNotFound) {
			t.Errorf("Consume(%q) error = %v, want ErrPendingTokenNotFound", token, err)
		}
	}
}

func TestMemoryPendingStore_Collision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPendingStore(nil, fixedReader(7))

	if _, err := store.Issue(ctx, uuid.New(), time.Minute); err != nil {
		t.Fatalf("first Issue() error = %v", err)
	}
	if _, err := store.Issue(ctx, uuid.New(), time.Minute); !errors.Is(err, errTokenCollision) {
		t.Errorf("second Issue() error = %v, want errTokenCollision", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryPendingStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPendingStore(nil, nil)
	token, _ := store.Issue(ctx, uuid.New(), time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, token); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful consumes = %d, want exactly 1", successes)
	}
}

func TestMemoryPendingStore_Reap(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryPendingStore(clock.Now, nil)

	store.Issue(ctx, uuid.New(), time.Minute)
	store.Issue(ctx, uuid.New(), time.Minute)
	live, _ := store.Issue(ctx, uuid.New(), time.Hour)

	if n := store.Reap(clock.Now().Add(2 * time.Minute)); n != 2 {
		t.Errorf("Reap() = %d, want 2", n)
	}
	if _, err := store.Peek(ctx, live); err != nil {
		t.Errorf("live token reaped: %v", err)
	}
}

func TestMemoryPendingStore_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryPendingStore(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
