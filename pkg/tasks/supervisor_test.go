package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ai-support-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSupervisor(t *testing.T, size int, timeout time.Duration) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(size, timeout, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func TestSupervisor_RunsTasks(t *testing.T) {
	s := newSupervisor(t, 4, time.Second)

	var n int32
	for i := 0; i < 3; i++ {
		s.Go("count", func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		})
	}
	s.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&n))
}

func TestSupervisor_SurvivesErrorsAndPanics(t *testing.T) {
	s := newSupervisor(t, 2, time.Second)

	s.Go("fails", func(ctx context.Context) error { return errors.New("db down") })
	s.Go("panics", func(ctx context.Context) error { panic("nil map") })

	ran := false
	s.Go("after", func(ctx context.Context) error {
		ran = true
		return nil
	})
	s.Wait()
	assert.True(t, ran)
}

func TestSupervisor_TaskContextIsDetached(t *testing.T) {
	s := newSupervisor(t, 1, 50*time.Millisecond)

	var deadline time.Time
	var errAtStart error
	s.Go("detached", func(ctx context.Context) error {
		errAtStart = ctx.Err()
		deadline, _ = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	})
	s.Wait()

	assert.NoError(t, errAtStart)
	assert.False(t, deadline.IsZero())
}

func TestSupervisor_GoDoesNotBlockWhenSaturated(t *testing.T) {
	s := newSupervisor(t, 1, time.Second)

	release := make(chan struct{})
	s.Go("busy", func(ctx context.Context) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		s.Go("overflow", func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Go blocked on a saturated pool")
	}
	close(release)
	s.Wait()
}
