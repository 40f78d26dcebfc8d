package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestIdempotencyStore_ReserveReturnsCompletedResponse(t *testing.T) {
	client, _ := newTestRedisClient(t)

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if err := store.Complete(ctx, "POST /api/v1/loans k1", []byte(`{"status":201}`), time.Minute); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	reserved, resp, err := store.Reserve(ctx, "POST /api/v1/loans k1", time.Minute)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if reserved || string(resp) != `{"status":201}` {
		t.Fatalf("expected stored response, got reserved=%v resp=%s", reserved, resp)
	}
}

func TestIdempotencyStore_ReserveClaimsFreeKey(t *testing.T) {
	client, mr := newTestRedisClient(t)

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	reserved, resp, err := store.Reserve(ctx, "pending", 30*time.Second)
	if err != nil || !reserved || resp != nil {
		t.Fatalf("unexpected result: reserved=%v resp=%s err=%v", reserved, resp, err)
	}

	val, err := mr.Get(store.prefix + "pending")
	if err != nil || val != inFlightMarker {
		t.Fatalf("expected claim marker, got val=%s err=%v", val, err)
	}
	if ttl := mr.TTL(store.prefix + "pending"); ttl != 30*time.Second {
		t.Fatalf("expected claim ttl 30s, got %s", ttl)
	}

	reserved, resp, err = store.Reserve(ctx, "pending", 30*time.Second)
	if err != nil || reserved || resp != nil {
		t.Fatalf("second claim must report in-flight, got reserved=%v resp=%s err=%v", reserved, resp, err)
	}
}

func TestIdempotencyStore_ConcurrentReserveHasOneWinner(t *testing.T) {
	client, _ := newTestRedisClient(t)

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reserved, _, err := store.Reserve(ctx, "DELETE /api/v1/payments/p1 k", time.Minute)
			if err == nil && reserved {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one claim, got %d", got)
	}
}

func TestIdempotencyStore_ReleaseFreesClaimOnly(t *testing.T) {
	client, mr := newTestRedisClient(t)

	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if _, _, err := store.Reserve(ctx, "failed", time.Minute); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := store.Release(ctx, "failed"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists(store.prefix + "failed") {
		t.Fatalf("expected claim to be released")
	}

	if err := store.Complete(ctx, "done", []byte("response"), time.Minute); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := store.Release(ctx, "done"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if val, _ := mr.Get(store.prefix + "done"); val != "response" {
		t.Fatalf("completed response must survive release, got %q", val)
	}
}
