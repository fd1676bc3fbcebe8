package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefetcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefetcher) Refetch(context.Context) (int, error) {
	f.calls.Add(1)
	return 3, f.err
}

type fakeReminder struct {
	olderThan time.Duration
}

func (f *fakeReminder) RemindAwaiting(_ context.Context, olderThan time.Duration) (int, error) {
	f.olderThan = olderThan
	return 1, nil
}

func TestScheduler_RunsRegisteredJobs(t *testing.T) {
	s := NewScheduler()
	refetcher := &fakeRefetcher{}

	require.NoError(t, s.Register(RefetchJobName, "@every 1s", RefetchJob(refetcher)))
	s.Start()

	assert.Eventually(t, func() bool {
		return refetcher.calls.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	s.Stop()
	after := refetcher.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, refetcher.calls.Load())
}

func TestScheduler_FailingJobKeepsRunning(t *testing.T) {
	s := NewScheduler()
	refetcher := &fakeRefetcher{err: errors.New("database is closed")}

	require.NoError(t, s.Register(RefetchJobName, "@every 1s", RefetchJob(refetcher)))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return refetcher.calls.Load() >= 2
	}, 4*time.Second, 10*time.Millisecond)
}

func TestScheduler_Register_InvalidSpec(t *testing.T) {
	s := NewScheduler()
	err := s.Register("broken", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_StopCancelsJobContext(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	var once atomic.Bool

	require.NoError(t, s.Register("blocking", "@every 1s", func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestReminderJob_PassesResponseTimeout(t *testing.T) {
	reminder := &fakeReminder{}
	require.NoError(t, ReminderJob(reminder, 30*time.Minute)(context.Background()))
	assert.Equal(t, 30*time.Minute, reminder.olderThan)
}
