package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	got := Key(KindSlot, "doc-1", "2026-03-01", "09:30")
	if got != "lock:appointment_slot:doc-1:2026-03-01:09:30" {
		t.Errorf("unexpected key %q", got)
	}
}

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()
	parts := []string{"ward-1", time.Now().Format("150405.000000")}

	var inner error
	err := l.WithLock(ctx, KindBed, parts, func(ctx context.Context) error {
		inner = l.WithLock(ctx, KindBed, parts, func(context.Context) error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("outer lock: %v", err)
	}
	if !errors.Is(inner, ErrNotAcquired) {
		t.Errorf("expected nested acquisition to fail, got %v", inner)
	}

	// Released after fn returns.
	if err := l.WithLock(ctx, KindBed, parts, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected lock to be free again, got %v", err)
	}

	boom := errors.New("boom")
	if err := l.WithLock(ctx, KindBed, parts, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected fn error to propagate, got %v", err)
	}
}

func TestMemoryLocker(t *testing.T) {
	exerciseLocker(t, NewMemoryLocker(time.Second))
}

func TestMemoryLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewMemoryLocker(0)
	err := l.WithLock(context.Background(), KindSlot, []string{"a"}, func(ctx context.Context) error {
		return l.WithLock(ctx, KindSlot, []string{"b"}, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("CLINICDESK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CLINICDESK_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	exerciseLocker(t, NewRedisLocker(client, 5*time.Second))
}
