package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu    sync.Mutex
	calls int
	grace time.Duration
	err   error
}

func (f *fakeTarget) SweepNoShows(_ context.Context, grace time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.grace = grace
	return 1, f.err
}

func (f *fakeTarget) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunOncePassesGrace(t *testing.T) {
	target := &fakeTarget{}
	w := New(target, time.Minute, 15*time.Minute, zerolog.Nop())

	w.RunOnce(context.Background())
	assert.Equal(t, 1, target.Calls())
	assert.Equal(t, 15*time.Minute, target.grace)
}

func TestRunOnceSurvivesErrors(t *testing.T) {
	target := &fakeTarget{err: errors.New("boom")}
	w := New(target, time.Minute, time.Minute, zerolog.Nop())

	assert.NotPanics(t, func() { w.RunOnce(context.Background()) })
}

func TestRunTicksUntilCancelled(t *testing.T) {
	target := &fakeTarget{}
	w := New(target, 5*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return target.Calls() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
