package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kushan1992/diagram-builder/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return redisStore, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer redisStore.Close()

	if err := redisStore.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "test-token-hash"
	user := store.User{ID: "user-123", Email: "alice@x.com", Role: "editor"}

	if err := redisStore.SaveRefreshSession(ctx, tokenHash, user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := redisStore.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, got.ID)
	}
	if got.Email != user.Email {
		t.Errorf("expected email %s, got %s", user.Email, got.Email)
	}
	if got.Role != "editor" {
		t.Errorf("expected role editor, got %s", got.Role)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	ctx := context.Background()
	user := store.User{ID: "user-456", Email: "bob@x.com", Role: "viewer"}

	if err := redisStore.SaveRefreshSession(ctx, "expired-token", user, time.Now().Add(1*time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := redisStore.LookupRefreshSession(ctx, "expired-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	defer redisStore.Close()
	defer s.Close()

	ctx := context.Background()
	user := store.User{ID: "user-789", Email: "carol@x.com", Role: "editor"}

	if err := redisStore.SaveRefreshSession(ctx, "revoke-me", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := redisStore.RevokeRefreshSession(ctx, "revoke-me"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := redisStore.LookupRefreshSession(ctx, "revoke-me"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}
