package redisclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

var (
	// ErrLockNotAcquired matches appointment.ErrSlotBusy under errors.Is. It is
	// returned only after the slot stayed busy for the whole wait.
	ErrLockNotAcquired = apperr.New(apperr.Conflict, "slot_busy", "slot is currently being booked, please retry")
)

const (
	minRetryDelay = 5 * time.Millisecond
	maxRetryDelay = 100 * time.Millisecond
)

// SlotLocker serializes the critical section of one slot through a Redis key.
// It satisfies appointment.Locker. Slot uniqueness itself is checked against
// the owning api-server's in-memory index, so the lock does not make two
// writers sharing one Redis safe.
// A busy slot is waited for, like a mutex, until the wait budget or the
// caller's context runs out.
type SlotLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	prefix string
}

// NewSlotLocker creates a locker that uses a per slot Redis key. Callers wait
// at most ttl for a busy slot.
func NewSlotLocker(client redis.UniversalClient, ttl time.Duration) *SlotLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SlotLocker{
		client: client,
		ttl:    ttl,
		wait:   ttl,
		prefix: "lock:slot:",
	}
}

func (l *SlotLocker) WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error {
	key := l.prefix + slot
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even if the caller's context was cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// acquire retries SETNX with jittered exponential backoff. ErrLockNotAcquired
// means the slot stayed busy for the whole wait budget.
func (l *SlotLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	delay := minRetryDelay

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockNotAcquired
		}
		sleep := min(delay/2+rand.N(delay/2+1), remaining)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("acquire slot lock: %w", ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *SlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
