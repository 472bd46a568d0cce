package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisStore(t *testing.T) (*redisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisStoreWithClient(client, time.Second), srv
}

func TestRedisStoreAllowsWithinLimit(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := store.Allow(ctx, "cardhall:login:10.0.0.1", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow error on attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := store.Allow(ctx, "cardhall:login:10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if allowed {
		t.Fatal("fourth attempt should be blocked")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry hint, got %v", retryAfter)
	}
}

func TestRedisStoreWindowExpires(t *testing.T) {
	store, srv := newMiniredisStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := store.Allow(ctx, "cardhall:login:10.0.0.2", 1, time.Minute); err != nil {
			t.Fatalf("Allow error: %v", err)
		}
	}
	if allowed, _, _ := store.Allow(ctx, "cardhall:login:10.0.0.2", 1, time.Minute); allowed {
		t.Fatal("expected attempt beyond limit to be blocked")
	}

	srv.FastForward(time.Minute + time.Second)

	allowed, _, err := store.Allow(ctx, "cardhall:login:10.0.0.2", 1, time.Minute)
	if err != nil {
		t.Fatalf("Allow error after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected fresh window after expiry")
	}
}

func TestRedisStoreKeysAreIndependent(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	if _, _, err := store.Allow(ctx, "cardhall:login:10.0.0.3", 1, time.Minute); err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if allowed, _, _ := store.Allow(ctx, "cardhall:login:10.0.0.3", 1, time.Minute); allowed {
		t.Fatal("expected second attempt on same key to be blocked")
	}

	allowed, _, err := store.Allow(ctx, "cardhall:login:10.0.0.4", 1, time.Minute)
	if err != nil {
		t.Fatalf("Allow error for second key: %v", err)
	}
	if !allowed {
		t.Fatal("different key must have its own counter")
	}
}
