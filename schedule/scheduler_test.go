package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/internal/util"
)

// fakeClock drives every dueness decision in these tests. Ticks still
// come from a real (fast) ticker, but a tick can only dispatch when the
// fake clock says a task is due, so assertions stay deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{TickSeconds: 1, Workers: 4, StopTimeoutSeconds: 2}
}

// newTestScheduler returns a scheduler on a fake clock with a fast
// ticker so loop tests do not wait out real seconds.
func newTestScheduler(t *testing.T) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewWithClock(testConfig(), nil, clock.Now)
	s.tick = 2 * time.Millisecond
	return s, clock
}

func noop(ctx context.Context) error { return nil }

func TestAddTaskDuplicate(t *testing.T) {
	s, _ := newTestScheduler(t)

	assert.True(t, s.AddTask("sweep", noop, time.Minute))
	assert.False(t, s.AddTask("sweep", noop, time.Minute), "duplicate id must be rejected")
}

func TestAddTaskRejectsUnrunnable(t *testing.T) {
	s, _ := newTestScheduler(t)

	assert.False(t, s.AddTask("", noop, time.Minute))
	assert.False(t, s.AddTask("nil-fn", nil, time.Minute))
	assert.False(t, s.AddTask("zero-interval", noop, 0))
}

func TestRemoveTask(t *testing.T) {
	s, _ := newTestScheduler(t)

	assert.False(t, s.RemoveTask("absent"), "removing an unknown id is a no-op")

	require.True(t, s.AddTask("sweep", noop, time.Minute))
	assert.True(t, s.RemoveTask("sweep"))
	assert.False(t, s.RemoveTask("sweep"))
}

func TestUpdateTask(t *testing.T) {
	s, clock := newTestScheduler(t)

	assert.False(t, s.UpdateTask("absent", util.Ptr(time.Minute), nil))

	require.True(t, s.AddTask("sweep", noop, 100*time.Second))

	assert.True(t, s.UpdateTask("sweep", util.Ptr(5*time.Second), nil))
	st, ok := s.TaskStatus("sweep")
	require.True(t, ok)
	assert.Equal(t, 5, st.IntervalSeconds)
	require.NotNil(t, st.NextRun)
	assert.Equal(t, clock.Now().Add(5*time.Second), *st.NextRun)

	// Nil interval keeps the interval, fn swap alone is a valid update
	assert.True(t, s.UpdateTask("sweep", nil, noop))
	st, _ = s.TaskStatus("sweep")
	assert.Equal(t, 5, st.IntervalSeconds)

	assert.False(t, s.UpdateTask("sweep", util.Ptr(-time.Second), nil))
}

func TestTaskStatusNeverRun(t *testing.T) {
	s, clock := newTestScheduler(t)

	require.True(t, s.AddTask("sweep", noop, 30*time.Second))

	st, ok := s.TaskStatus("sweep")
	require.True(t, ok)
	assert.Nil(t, st.LastRun, "a task that never ran reports no last run")
	assert.False(t, st.Running)
	assert.Zero(t, st.ErrorCount)
	require.NotNil(t, st.NextRun)
	assert.Equal(t, clock.Now().Add(30*time.Second), *st.NextRun)

	_, ok = s.TaskStatus("absent")
	assert.False(t, ok)
}

func TestAllTasksSortedByID(t *testing.T) {
	s, _ := newTestScheduler(t)

	s.AddTask("b", noop, time.Minute)
	s.AddTask("a", noop, time.Minute)
	s.AddTask("c", noop, time.Minute)

	tasks := s.AllTasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
	assert.Equal(t, "c", tasks[2].ID)
}

func TestFirstRunAfterFullInterval(t *testing.T) {
	s, clock := newTestScheduler(t)

	var runs atomic.Int32
	require.True(t, s.AddTask("sweep", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, 10*time.Second))

	s.Start()
	defer s.Stop()

	// Plenty of ticks pass, but the clock has not moved: not due yet
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, runs.Load(), "task must not fire before one full interval")

	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return runs.Load() == 1 },
		2*time.Second, 2*time.Millisecond)

	// One interval elapsed exactly once: no further firings until the
	// clock moves again
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	st, ok := s.TaskStatus("sweep")
	require.True(t, ok)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, clock.Now(), *st.LastRun)
}

func TestFailingTaskCountsErrorsAndRetries(t *testing.T) {
	s, clock := newTestScheduler(t)

	var healthy atomic.Bool
	require.True(t, s.AddTask("flaky", func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return context.DeadlineExceeded
	}, 5*time.Second))

	s.Start()
	defer s.Stop()

	clock.Advance(5 * time.Second)

	// Failure leaves last_run unset, so the task stays due and retries
	// on following ticks
	require.Eventually(t, func() bool {
		st, _ := s.TaskStatus("flaky")
		return st.ErrorCount >= 2
	}, 2*time.Second, 2*time.Millisecond)

	st, _ := s.TaskStatus("flaky")
	assert.Nil(t, st.LastRun)

	healthy.Store(true)
	require.Eventually(t, func() bool {
		st, _ := s.TaskStatus("flaky")
		return st.LastRun != nil
	}, 2*time.Second, 2*time.Millisecond)
}

func TestPanickingTaskCountedNotFatal(t *testing.T) {
	s, clock := newTestScheduler(t)

	require.True(t, s.AddTask("angry", func(ctx context.Context) error {
		panic("boom")
	}, time.Second))
	var runs atomic.Int32
	require.True(t, s.AddTask("calm", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, time.Second))

	s.Start()
	defer s.Stop()

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		st, _ := s.TaskStatus("angry")
		return st.ErrorCount >= 1 && runs.Load() >= 1
	}, 2*time.Second, 2*time.Millisecond)
}

func TestNoOverlappingExecutions(t *testing.T) {
	s, clock := newTestScheduler(t)

	var starts atomic.Int32
	release := make(chan struct{})
	require.True(t, s.AddTask("slow", func(ctx context.Context) error {
		starts.Add(1)
		<-release
		return nil
	}, time.Second))

	s.Start()
	defer s.Stop()

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return starts.Load() == 1 },
		2*time.Second, 2*time.Millisecond)

	// Task is due again and again while still running; the claim must
	// fail every time
	clock.Advance(10 * time.Second)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), starts.Load(), "a running task must not be dispatched twice")

	close(release)
	require.Eventually(t, func() bool {
		st, _ := s.TaskStatus("slow")
		return !st.Running && st.LastRun != nil
	}, 2*time.Second, 2*time.Millisecond)

	// After completion the task reschedules from its completion stamp
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return starts.Load() == 2 },
		2*time.Second, 2*time.Millisecond)
}

func TestStopWaitsForWellBehavedTasks(t *testing.T) {
	s, clock := newTestScheduler(t)

	entered := make(chan struct{})
	require.True(t, s.AddTask("obedient", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return nil
	}, time.Second))

	s.Start()
	clock.Advance(time.Second)
	<-entered

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
}

func TestStopTimesOutOnStalledTask(t *testing.T) {
	cfg := testConfig()
	cfg.StopTimeoutSeconds = 1
	clock := newFakeClock()
	s := NewWithClock(cfg, nil, clock.Now)
	s.tick = 2 * time.Millisecond

	stall := make(chan struct{})
	entered := make(chan struct{})
	require.True(t, s.AddTask("stubborn", func(ctx context.Context) error {
		close(entered)
		<-stall
		return nil
	}, time.Second))

	s.Start()
	clock.Advance(time.Second)
	<-entered

	err := s.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	close(stall)
}

func TestStartStopIdempotent(t *testing.T) {
	s, _ := newTestScheduler(t)

	assert.False(t, s.Running())
	s.Start()
	assert.True(t, s.Running())
	s.Start() // no-op
	assert.True(t, s.Running())

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	require.NoError(t, s.Stop()) // no-op
}

func TestRestart(t *testing.T) {
	s, clock := newTestScheduler(t)

	var runs atomic.Int32
	require.True(t, s.AddTask("sweep", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, time.Second))

	s.Start()
	require.NoError(t, s.Stop())

	s.Start()
	defer s.Stop()
	assert.True(t, s.Running())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return runs.Load() >= 1 },
		2*time.Second, 2*time.Millisecond)
}

func TestStatusAndStats(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.AddTask("sweep", noop, time.Minute)

	st := s.Status()
	assert.False(t, st.Running)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "sweep", st.Tasks[0].ID)
	assert.Equal(t, 60, st.Tasks[0].IntervalSeconds)

	stats := s.Stats()
	assert.Contains(t, stats, "last_tick_at")
	assert.Contains(t, stats, "ticks_since_start")
	assert.Contains(t, stats, "workers")
}
