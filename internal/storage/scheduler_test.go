package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	var purges, backups atomic.Int32
	s := NewScheduler(
		Job{Name: "purge", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			purges.Add(1)
			return nil
		}},
		Job{Name: "backup", Interval: time.Hour, StartImmediately: true, Run: func(context.Context) error {
			backups.Add(1)
			return errors.New("disk full")
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return purges.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Equal(t, int32(1), backups.Load())
	st, err := s.Status("backup")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 1, st.Failures)
	assert.EqualError(t, st.LastError, "disk full")

	st, err = s.Status("purge")
	require.NoError(t, err)
	assert.Zero(t, st.Failures)
	assert.GreaterOrEqual(t, st.Runs, 3)
}

func TestScheduler_DropsDisabledJobs(t *testing.T) {
	s := NewScheduler(Job{Name: "backup", Interval: 0, Run: func(context.Context) error { return nil }})

	_, err := s.Status("backup")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)
}
