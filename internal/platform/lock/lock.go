// Package lock serializes booking decisions that must not interleave: two
// receptionists booking the same provider slot, or two nurses admitting
// patients into the same bed.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired means another request holds the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// Lock kinds.
const (
	KindSlot = "appointment_slot"
	KindBed  = "bed"
	KindWard = "ward"

	// KindPatient guards the one-open-admission-per-patient check.
	KindPatient = "patient_admission"
	// KindEmail guards the unique staff email check.
	KindEmail   = "user_email"
)

// Locker runs fn while holding the lock named by kind and parts. The
// context passed to fn expires with the lock.
type Locker interface {
	WithLock(ctx context.Context, kind string, parts []string, fn func(ctx context.Context) error) error
}

// Key builds the lock key, e.g. lock:appointment_slot:doc-1:2026-03-01:09:30.
func Key(kind string, parts ...string) string {
	return fmt.Sprintf("lock:%s:%s", kind, strings.Join(parts, ":"))
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker holds each lock for at most ttl so a crashed holder cannot
// block a slot forever.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) WithLock(ctx context.Context, kind string, parts []string, fn func(ctx context.Context) error) error {
	key := Key(kind, parts...)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", kind, err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(lockCtx)
}

// unlockScript deletes the key only if we still own it.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// memoryLocker is the single-instance fallback when no Redis is configured.
// A held key fails fast like SET NX does.
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	ttl  time.Duration
}

func NewMemoryLocker(ttl time.Duration) Locker {
	return &memoryLocker{held: make(map[string]struct{}), ttl: ttl}
}

func (l *memoryLocker) WithLock(ctx context.Context, kind string, parts []string, fn func(ctx context.Context) error) error {
	key := Key(kind, parts...)

	l.mu.Lock()
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrNotAcquired
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	if l.ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}
	return fn(ctx)
}
