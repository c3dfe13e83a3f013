package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlotLockRunsAndReleases(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSlotLocker(client, time.Second)

	ran := false
	err := locker.WithSlotLock(context.Background(), "DOC-1:2026-03-02:10:00", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:slot:DOC-1:2026-03-02:10:00"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:slot:DOC-1:2026-03-02:10:00"))
}

func TestSlotLockGivesUpAfterWaiting(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSlotLocker(client, 100*time.Millisecond)

	require.NoError(t, mr.Set("lock:slot:busy", "someone-else"))

	start := time.Now()
	err := locker.WithSlotLock(context.Background(), "busy", func(context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "slot_busy", apperr.CodeOf(err))

	// the foreign holder's key is untouched
	got, _ := mr.Get("lock:slot:busy")
	assert.Equal(t, "someone-else", got)
}

func TestSlotLockWaitsForHolder(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSlotLocker(client, 2*time.Second)

	require.NoError(t, mr.Set("lock:slot:busy", "someone-else"))
	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del("lock:slot:busy")
	}()

	ran := false
	err := locker.WithSlotLock(context.Background(), "busy", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:slot:busy"))
}

func TestSlotLockStopsWaitingWhenContextEnds(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSlotLocker(client, 5*time.Second)

	require.NoError(t, mr.Set("lock:slot:busy", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := locker.WithSlotLock(ctx, "busy", func(context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}

func TestSlotLockSerializesConcurrentCallers(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewSlotLocker(client, 5*time.Second)

	const n = 20
	var inside, maxInside, total atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithSlotLock(context.Background(), "shared", func(context.Context) error {
				cur := inside.Add(1)
				for {
					prev := maxInside.Load()
					if cur <= prev || maxInside.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				total.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), total.Load())
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestSlotLockReleasesOnError(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSlotLocker(client, time.Second)

	boom := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:slot:k"))
}

func TestSlotLockSetsTTL(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSlotLocker(client, 3*time.Second)

	err := locker.WithSlotLock(context.Background(), "k", func(context.Context) error {
		assert.Equal(t, 3*time.Second, mr.TTL("lock:slot:k"))
		return nil
	})
	require.NoError(t, err)
}
