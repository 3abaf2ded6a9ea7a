package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner holds each run until release is closed.
type blockingRunner struct {
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	aborted   atomic.Bool
	started   chan time.Time
	release   chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan time.Time, 16), release: make(chan struct{})}
}

func (r *blockingRunner) RunScheduled(ctx context.Context, scheduledAt time.Time) models.ReminderRun {
	r.calls.Add(1)
	active := r.active.Add(1)
	for {
		peak := r.maxActive.Load()
		if active <= peak || r.maxActive.CompareAndSwap(peak, active) {
			break
		}
	}
	r.started <- scheduledAt
	select {
	case <-r.release:
	case <-ctx.Done():
		r.aborted.Store(true)
	}
	r.active.Add(-1)
	return models.ReminderRun{ScheduledAt: scheduledAt, DeliveryStatus: models.StatusSent}
}

// testClock is a settable wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// manualScheduler returns a scheduler that is never started; tests fire
// ticks by running the cron entry's wrapped job at the clock's time.
func manualScheduler(t *testing.T, runner Runner) (*Scheduler, *testClock, func()) {
	t.Helper()
	s, err := NewScheduler(runner, SchedulerOptions{Spec: "0 8 * * *", Location: tokyo, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 10, 16, 8, 0, 0, 20e6, tokyo)}
	s.now = clock.Now

	entry := s.cron.Entry(s.entryID)
	require.NotNil(t, entry.WrappedJob)
	return s, clock, entry.WrappedJob.Run
}

// everySchedule fires at a fixed interval so the cron runner can be
// exercised without waiting for a real trigger time.
type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

func startedScheduler(t *testing.T, ctx context.Context, runner Runner) *Scheduler {
	t.Helper()
	s := newScheduler(runner, everySchedule(10*time.Millisecond), SchedulerOptions{Location: tokyo, ShutdownTimeout: time.Second})
	require.NoError(t, s.Start(ctx))
	return s
}

func TestSchedulerDropsOverlappingTicks(t *testing.T) {
	runner := newBlockingRunner()
	s, clock, fire := manualScheduler(t, runner)

	go fire()
	<-runner.started
	assert.True(t, s.Running())

	clock.Set(clock.Now().Add(time.Minute))
	fire()
	fire()
	assert.Equal(t, int32(1), runner.calls.Load(), "overlapping ticks are dropped, not queued")

	close(runner.release)
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)

	clock.Set(clock.Now().Add(24 * time.Hour))
	fire()
	<-runner.started

	assert.Equal(t, int32(2), runner.calls.Load())
	assert.Equal(t, int32(1), runner.maxActive.Load(), "never more than one run in flight")
	assert.False(t, s.Running())
}

func TestSchedulerRunsEachTickOnce(t *testing.T) {
	runner := &countingRunner{}
	s, clock, fire := manualScheduler(t, runner)

	fire()
	// The wall clock steps back below the trigger time and the runner
	// wakes again for the same minute.
	clock.Set(time.Date(2026, 10, 16, 7, 59, 59, 5e8, tokyo))
	fire()
	clock.Set(time.Date(2026, 10, 16, 8, 0, 0, 9e8, tokyo))
	fire()

	ticks := runner.ticks()
	require.Len(t, ticks, 1)
	assert.True(t, ticks[0].Equal(time.Date(2026, 10, 16, 8, 0, 0, 0, tokyo)), "got %s", ticks[0])

	clock.Set(time.Date(2026, 10, 17, 8, 0, 0, 1e6, tokyo))
	fire()
	assert.Len(t, runner.ticks(), 2)
	assert.False(t, s.Running())
}

type countingRunner struct {
	mu        sync.Mutex
	scheduled []time.Time
}

func (r *countingRunner) RunScheduled(ctx context.Context, scheduledAt time.Time) models.ReminderRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, scheduledAt)
	return models.ReminderRun{ScheduledAt: scheduledAt, DeliveryStatus: models.StatusSent}
}

func (r *countingRunner) ticks() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.scheduled...)
}

func TestSchedulerKeepsFiringAfterFailedQuery(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	notifier := &fakeNotifier{}
	_, clock, fire := manualScheduler(t, newTestJob(source, notifier))

	fire()
	assert.Equal(t, 1, source.callCount())

	clock.Set(clock.Now().Add(24 * time.Hour))
	fire()
	assert.Equal(t, 2, source.callCount())

	assert.Zero(t, notifier.pushCount())
}

type panickingRunner struct {
	calls atomic.Int32
}

func (r *panickingRunner) RunScheduled(ctx context.Context, scheduledAt time.Time) models.ReminderRun {
	if r.calls.Add(1) == 1 {
		panic("formatter bug")
	}
	return models.ReminderRun{DeliveryStatus: models.StatusSkippedEmpty}
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	runner := &panickingRunner{}
	s, clock, fire := manualScheduler(t, runner)

	assert.NotPanics(t, fire)
	assert.False(t, s.Running())

	clock.Set(clock.Now().Add(24 * time.Hour))
	fire()
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestSchedulerStartedRunnerFires(t *testing.T) {
	runner := &countingRunner{}
	s := startedScheduler(t, context.Background(), runner)

	require.Eventually(t, func() bool { return len(runner.ticks()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Equal(t, runner.ticks()[0], runner.ticks()[0].Truncate(time.Minute))
}

func TestSchedulerStopWaitsForRun(t *testing.T) {
	runner := newBlockingRunner()
	s := startedScheduler(t, context.Background(), runner)
	<-runner.started

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
	assert.False(t, s.Running())
	assert.Equal(t, int32(1), runner.calls.Load())
}

type stuckRunner struct {
	started   chan struct{}
	cancelled atomic.Bool
}

func (r *stuckRunner) RunScheduled(ctx context.Context, scheduledAt time.Time) models.ReminderRun {
	close(r.started)
	<-ctx.Done()
	r.cancelled.Store(true)
	return models.ReminderRun{DeliveryStatus: models.StatusFailedDelivery, Err: ctx.Err()}
}

func TestSchedulerStopTimeout(t *testing.T) {
	runner := &stuckRunner{started: make(chan struct{})}
	s := startedScheduler(t, context.Background(), runner)
	s.shutdownTimeout = 30 * time.Millisecond
	<-runner.started

	assert.Error(t, s.Stop())
	assert.Eventually(t, runner.cancelled.Load, time.Second, 5*time.Millisecond)
}

func TestSchedulerParentCancelDoesNotAbortRun(t *testing.T) {
	runner := newBlockingRunner()
	ctx, cancel := context.WithCancel(context.Background())
	s := startedScheduler(t, ctx, runner)
	<-runner.started
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Stop())
	}()
	close(runner.release)
	wg.Wait()
	assert.False(t, runner.aborted.Load(), "run finished instead of being cancelled")
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s, _, _ := manualScheduler(t, newBlockingRunner())
	assert.NoError(t, s.Stop())
}

func TestSchedulerStartTwice(t *testing.T) {
	s, _, _ := manualScheduler(t, newBlockingRunner())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerNextUsesTimeZone(t *testing.T) {
	s, err := NewScheduler(newBlockingRunner(), SchedulerOptions{Spec: "0 8 * * *", Location: tokyo})
	require.NoError(t, err)

	// 09:00 JST, past today's trigger.
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	next := s.Next(now)

	assert.Equal(t, time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC), next.UTC())
	assert.Equal(t, 8, next.Hour())
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(newBlockingRunner(), SchedulerOptions{Spec: "every morning"})
	assert.Error(t, err)
}

func TestDailySpec(t *testing.T) {
	tests := []struct {
		time     string
		override string
		want     string
		wantErr  bool
	}{
		{time: "08:00", want: "0 8 * * *"},
		{time: "8:05", want: "5 8 * * *"},
		{time: "00:00", want: "0 0 * * *"},
		{time: "23:59", want: "59 23 * * *"},
		{time: "08:00", override: "*/30 9-18 * * 1-5", want: "*/30 9-18 * * 1-5"},
		{time: "24:00", wantErr: true},
		{time: "8am", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.time+tt.override, func(t *testing.T) {
			got, err := DailySpec(tt.time, tt.override)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
