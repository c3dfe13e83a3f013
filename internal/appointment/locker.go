package appointment

import (
	"context"
	"sort"
	"sync"
)

// Locker guards the critical section of a single slot. The Redis
// implementation in internal/redis serializes across processes; LocalLocker
// serializes within one.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LocalLocker is a keyed mutex. Entries are dropped once nobody holds or
// waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	defer func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// withSlotLocks takes every key in sorted order so two callers locking the
// same pair can never deadlock.
func withSlotLocks(ctx context.Context, l Locker, keys []string, fn func(ctx context.Context) error) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var run func(ctx context.Context, i int) error
	run = func(ctx context.Context, i int) error {
		if i == len(sorted) {
			return fn(ctx)
		}
		return l.WithSlotLock(ctx, sorted[i], func(ctx context.Context) error {
			return run(ctx, i+1)
		})
	}
	return run(ctx, 0)
}
