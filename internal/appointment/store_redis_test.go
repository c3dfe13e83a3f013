package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	redisclient "github.com/hackgods/doctor-queue-scheduling/internal/redis"
)

func newRedisStore(t *testing.T, f *fixture) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewStore(f.dir, f.clock, clock.RandomIDs{},
		Config{Location: time.UTC, CancelNotice: 24 * time.Hour},
		WithLocker(redisclient.NewSlotLocker(rdb, 5*time.Second)))
	return store, mr
}

func TestConcurrentBookingsWithRedisLockHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	store, _ := newRedisStore(t, f)

	day, at := date(t, "2026-03-02"), tod(t, "10:00")

	const n = 50
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Book(context.Background(), BookRequest{
				PatientID: uuid.NewString(),
				DoctorID:  f.docID,
				Date:      day,
				Time:      at,
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrSlotConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
	assert.Equal(t, 1, store.Counts().Scheduled)
}

func TestCancelWaitsForBusySlotLock(t *testing.T) {
	f := newFixture(t)
	store, mr := newRedisStore(t, f)

	appt, err := store.Book(context.Background(), BookRequest{
		PatientID: "P-1",
		DoctorID:  f.docID,
		Date:      date(t, "2026-03-02"),
		Time:      tod(t, "10:00"),
	})
	require.NoError(t, err)

	key := "lock:slot:" + SlotKey{DoctorID: appt.DoctorID, Date: appt.Date, Time: appt.Time}.String()
	require.NoError(t, mr.Set(key, "another-instance"))
	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del(key)
	}()

	got, err := store.Cancel(context.Background(), appt.ID, "P-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.False(t, mr.Exists(key))
}
