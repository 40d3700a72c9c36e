package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/petclinic/auth-service/internal/core/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// ---------------------------------------------------------------------------
// ResetTokenStore
// ---------------------------------------------------------------------------

func TestResetTokenStore_SaveTake(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()

	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second).UTC()
	if err := store.Save(ctx, domain.ResetToken{UserID: "u-1", TokenHash: "h1", ExpiresAt: exp}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Take(ctx, "h1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.UserID != "u-1" || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected record %+v", got)
	}

	if _, err := store.Take(ctx, "h1"); !errors.Is(err, domain.ErrResetTokenNotFound) {
		t.Fatalf("second take: expected ErrResetTokenNotFound, got %v", err)
	}
	if n, _ := rdb.Exists(ctx, resetUserPrefix+"u-1").Result(); n != 0 {
		t.Fatalf("user index must be cleared after take")
	}
}

func TestResetTokenStore_SaveReplacesPrevious(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if err := store.Save(ctx, domain.ResetToken{UserID: "u-1", TokenHash: "old", ExpiresAt: exp}); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := store.Save(ctx, domain.ResetToken{UserID: "u-1", TokenHash: "new", ExpiresAt: exp}); err != nil {
		t.Fatalf("save new: %v", err)
	}

	if _, err := store.Take(ctx, "old"); !errors.Is(err, domain.ErrResetTokenNotFound) {
		t.Fatalf("old token should be gone, got %v", err)
	}
	if _, err := store.Take(ctx, "new"); err != nil {
		t.Fatalf("new token should be usable: %v", err)
	}
	if n, _ := rdb.ZCard(ctx, resetExpiryIndex).Result(); n != 0 {
		t.Fatalf("expiry index should be empty, has %d", n)
	}
}

func TestResetTokenStore_ConcurrentTake(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()

	if err := store.Save(ctx, domain.ResetToken{UserID: "u-1", TokenHash: "race", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	const callers = 10
	var wins, misses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Take(ctx, "race")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrResetTokenNotFound):
				misses.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || misses.Load() != callers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d misses=%d", wins.Load(), misses.Load())
	}
}

func TestResetTokenStore_PurgeExpired(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()
	now := time.Now()

	_ = store.Save(ctx, domain.ResetToken{UserID: "u-1", TokenHash: "stale", ExpiresAt: now.Add(-time.Minute)})
	_ = store.Save(ctx, domain.ResetToken{UserID: "u-2", TokenHash: "live", ExpiresAt: now.Add(time.Hour)})

	n, err := store.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	if _, err := store.Take(ctx, "stale"); !errors.Is(err, domain.ErrResetTokenNotFound) {
		t.Fatalf("stale token survived purge")
	}
	if _, err := store.Take(ctx, "live"); err != nil {
		t.Fatalf("live token purged: %v", err)
	}
}

func TestResetTokenStore_RecordOutlivesExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()

	exp := time.Now().Add(10 * time.Minute)
	_ = store.Save(ctx, domain.ResetToken{UserID: "u-1", TokenHash: "h", ExpiresAt: exp})

	// Just past expiry the record is still there, so callers can report Expired.
	mr.FastForward(11 * time.Minute)
	got, err := store.Take(ctx, "h")
	if err != nil {
		t.Fatalf("take after expiry: %v", err)
	}
	if !got.Expired(exp.Add(time.Second)) {
		t.Fatalf("record should report expired")
	}
}

// ---------------------------------------------------------------------------
// RevocationList
// ---------------------------------------------------------------------------

func TestRevocationList(t *testing.T) {
	mr, rdb := newTestRedis(t)
	list := NewRevocationList(rdb)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("fresh token reported revoked: %v %v", revoked, err)
	}

	if err := list.Revoke(ctx, "jti-1", time.Now().Add(30*time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := list.IsRevoked(ctx, "jti-1"); !revoked {
		t.Fatalf("expected jti-1 to be revoked")
	}

	ttl := mr.TTL(revokedKeyPrefix + "jti-1")
	if ttl <= 0 || ttl > 30*time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if revoked, _ := list.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatalf("entry should expire with the token")
	}
}

func TestRevocationList_ExpiredTokenNeedsNoEntry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	list := NewRevocationList(rdb)

	if err := list.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if mr.Exists(revokedKeyPrefix + "old") {
		t.Fatalf("no entry expected for an already expired token")
	}
}

func TestRevocationList_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	list := NewRevocationList(rdb)
	mr.Close()

	if _, err := list.IsRevoked(context.Background(), "x"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
