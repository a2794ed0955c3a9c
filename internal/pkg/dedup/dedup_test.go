package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newDedup(t *testing.T, ttl time.Duration) (*Deduplicator, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return NewDeduplicator(rdb, ttl), s
}

func TestDeduplicator_Claim(t *testing.T) {
	d, _ := newDedup(t, time.Minute)
	ctx := context.Background()

	dup, err := d.Claim(ctx, "verification:task_1", "0xAbCd")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if dup {
		t.Fatalf("expected first to be non-duplicate")
	}

	dup, err = d.Claim(ctx, "verification:task_1", "0xabcd")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !dup {
		t.Fatalf("expected case-insensitive duplicate")
	}

	dup, err = d.Claim(ctx, "verification:task_2", "0xabcd")
	if err != nil {
		t.Fatalf("other scope: %v", err)
	}
	if dup {
		t.Fatalf("scopes must not collide")
	}
}

func TestDeduplicator_ReleaseAndExpiry(t *testing.T) {
	d, s := newDedup(t, time.Minute)
	ctx := context.Background()

	if _, err := d.Claim(ctx, "s", "sig"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := d.Release(ctx, "s", "sig"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if dup, _ := d.Claim(ctx, "s", "sig"); dup {
		t.Fatalf("expected claim to succeed after release")
	}

	s.FastForward(2 * time.Minute)
	if dup, _ := d.Claim(ctx, "s", "sig"); dup {
		t.Fatalf("expected claim to succeed after window")
	}
}
