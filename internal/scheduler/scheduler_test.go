package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowExecutesJobImmediately(t *testing.T) {
	s := New(zerolog.Nop())
	s.Start()
	defer s.Shutdown(context.Background())

	var ran atomic.Bool
	done := make(chan struct{})
	s.RunNow(Job{Name: "immediate", Run: func(ctx context.Context) error {
		ran.Store(true)
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run in time")
	}
	assert.True(t, ran.Load())
}

func TestDispatchSkipsWhileJobStillRunning(t *testing.T) {
	s := New(zerolog.Nop())
	s.Start()
	defer s.Shutdown(context.Background())

	var runCount atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	job := Job{Name: "slow", Run: func(ctx context.Context) error {
		runCount.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}}

	s.RunNow(job)
	<-started // wait for the first run to actually start

	s.RunNow(job) // should be skipped: previous run still in flight

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runCount.Load())
}

func TestRunNowAfterShutdownIsNoOp(t *testing.T) {
	s := New(zerolog.Nop())
	s.Start()
	s.GracePeriod = 100 * time.Millisecond
	s.Shutdown(context.Background())

	var ran atomic.Bool
	assert.NotPanics(t, func() {
		s.RunNow(Job{Name: "after-shutdown", Run: func(ctx context.Context) error {
			ran.Store(true)
			return nil
		}})
	})
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestShutdownCancelsRunningJobAfterGracePeriod(t *testing.T) {
	s := New(zerolog.Nop())
	s.GracePeriod = 50 * time.Millisecond
	s.Start()

	cancelled := make(chan struct{})
	started := make(chan struct{})
	s.RunNow(Job{Name: "long-runner", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}})
	<-started

	s.Shutdown(context.Background())

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("running job was not cancelled after grace period")
	}
}

func TestRegisterBuiltinsSkipsNilHandlers(t *testing.T) {
	s := New(zerolog.Nop())
	ran := make(chan string, 1)
	err := RegisterBuiltins(s, Handlers{
		ProcessWishlist: func(ctx context.Context) error {
			ran <- "process-wishlist"
			return nil
		},
	})
	require.NoError(t, err)
}
