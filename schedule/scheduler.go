// Package schedule provides the in-memory interval scheduler that
// drives periodic work such as the re-scoring sweep. Tasks register a
// callable and an interval; a single ticker loop checks dueness every
// tick and hands due tasks to a bounded worker pool. Task state lives
// only in memory and does not survive a restart.
package schedule

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
)

// Scheduler runs registered tasks at fixed intervals. A task fires for
// the first time one full interval after registration, then one
// interval after each successful completion. A failing task keeps its
// last completion time, stays due, and is retried on subsequent ticks
// with its error count growing.
type Scheduler struct {
	cfg     config.SchedulerConfig
	tick    time.Duration
	timeNow func() time.Time
	log     *zap.SugaredLogger

	mu    sync.Mutex
	tasks map[string]*task

	lastTickAt      time.Time
	ticksSinceStart int64

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workCh  chan *task
}

// New creates a scheduler using the wall clock.
func New(cfg config.SchedulerConfig, log *zap.SugaredLogger) *Scheduler {
	return NewWithClock(cfg, log, time.Now)
}

// NewWithClock creates a scheduler with an injectable clock. The clock
// feeds every dueness decision and last-run stamp, which makes timing
// behavior fully deterministic under test.
func NewWithClock(cfg config.SchedulerConfig, log *zap.SugaredLogger, timeNow func() time.Time) *Scheduler {
	if log == nil {
		log = logger.ComponentLogger("schedule")
	}
	tick := cfg.TickInterval()
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		cfg:     cfg,
		tick:    tick,
		timeNow: timeNow,
		log:     log,
		tasks:   make(map[string]*task),
	}
}

// AddTask registers a task under a unique id. Returns false when the id
// is already taken or the arguments cannot form a runnable task.
func (s *Scheduler) AddTask(id string, fn TaskFunc, interval time.Duration) bool {
	if id == "" || fn == nil || interval <= 0 {
		s.log.Warnw("rejecting unrunnable task",
			logger.FieldTaskID, id,
			logger.FieldInterval, interval)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		s.log.Warnw("task already exists", logger.FieldTaskID, id)
		return false
	}

	s.tasks[id] = &task{
		id:       id,
		fn:       fn,
		interval: interval,
		addedAt:  s.timeNow(),
	}
	s.log.Infow("task added",
		logger.FieldTaskID, id,
		logger.FieldInterval, interval)
	return true
}

// RemoveTask unregisters a task. Returns false when the id is unknown.
// An execution already in flight finishes; it is not interrupted.
func (s *Scheduler) RemoveTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		s.log.Warnw("task does not exist", logger.FieldTaskID, id)
		return false
	}

	delete(s.tasks, id)
	s.log.Infow("task removed", logger.FieldTaskID, id)
	return true
}

// UpdateTask mutates a live task. A nil interval or fn leaves that
// field unchanged. Changes take effect at the next tick's dueness
// check, not retroactively.
func (s *Scheduler) UpdateTask(id string, interval *time.Duration, fn TaskFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk, exists := s.tasks[id]
	if !exists {
		s.log.Warnw("task does not exist", logger.FieldTaskID, id)
		return false
	}

	if interval != nil {
		if *interval <= 0 {
			s.log.Warnw("ignoring non-positive interval update",
				logger.FieldTaskID, id,
				logger.FieldInterval, *interval)
			return false
		}
		tk.interval = *interval
	}
	if fn != nil {
		tk.fn = fn
	}

	s.log.Infow("task updated", logger.FieldTaskID, id)
	return true
}

// TaskStatus reports one task's state.
func (s *Scheduler) TaskStatus(id string) (TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk, exists := s.tasks[id]
	if !exists {
		return TaskStatus{}, false
	}
	return s.taskStatusLocked(tk), true
}

// AllTasks reports every task's state, ordered by id.
func (s *Scheduler) AllTasks() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, tk := range s.tasks {
		out = append(out, s.taskStatusLocked(tk))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Status reports the scheduler state plus every task.
func (s *Scheduler) Status() Status {
	return Status{
		Running: s.started.Load(),
		Tasks:   s.AllTasks(),
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	return s.started.Load()
}

// Stats returns ticker heartbeat statistics.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"last_tick_at":      s.lastTickAt,
		"ticks_since_start": s.ticksSinceStart,
		"interval":          s.tick.String(),
		"workers":           s.cfg.Workers,
	}
}

func (s *Scheduler) taskStatusLocked(tk *task) TaskStatus {
	st := TaskStatus{
		ID:              tk.id,
		IntervalSeconds: int(tk.interval / time.Second),
		Running:         tk.running.Load(),
		ErrorCount:      tk.errors.Load(),
	}
	if !tk.lastRun.IsZero() {
		lastRun := tk.lastRun
		st.LastRun = &lastRun
	}
	next := tk.dueRef().Add(tk.interval)
	st.NextRun = &next
	return st
}

// Start spawns the ticker loop and the worker pool. Calling Start on a
// running scheduler is a logged no-op.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		s.log.Warnw("scheduler already running")
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.workCh = make(chan *task)

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.wg.Add(1)
	go s.run()

	s.log.Infow("scheduler started",
		logger.FieldInterval, s.tick,
		"workers", workers)
}

// Stop signals the loop and workers to exit and waits a bounded time
// for them. Tasks that ignore their context keep running detached; Stop
// reports that as an error instead of blocking forever.
func (s *Scheduler) Stop() error {
	if !s.started.CompareAndSwap(true, false) {
		s.log.Warnw("scheduler not running")
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Infow("scheduler stopped")
		return nil
	case <-time.After(s.cfg.StopTimeout()):
		s.log.Warnw("scheduler stop timed out with tasks in flight",
			logger.FieldDurationMS, s.cfg.StopTimeout().Milliseconds())
		return errors.Newf("scheduler stop timed out after %s", s.cfg.StopTimeout())
	}
}

// run is the ticker loop.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.timeNow()
			s.mu.Lock()
			s.lastTickAt = now
			s.ticksSinceStart++
			s.mu.Unlock()

			s.checkDueTasks(now)
		}
	}
}

// checkDueTasks claims every due task with a compare-and-swap on its
// running flag and hands it to an idle worker. A task whose flag is
// already set, or for which no worker is free, is left for a later
// tick; dueness is re-evaluated there.
func (s *Scheduler) checkDueTasks(now time.Time) {
	s.mu.Lock()
	var due []*task
	for _, tk := range s.tasks {
		if now.Sub(tk.dueRef()) >= tk.interval {
			due = append(due, tk)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	for _, tk := range due {
		if !tk.running.CompareAndSwap(false, true) {
			s.log.Debugw("task still running, skipping tick", logger.FieldTaskID, tk.id)
			continue
		}
		select {
		case s.workCh <- tk:
		default:
			tk.running.Store(false)
			s.log.Debugw("worker pool saturated, deferring task", logger.FieldTaskID, tk.id)
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case tk := <-s.workCh:
			s.runTask(tk)
		}
	}
}

// runTask executes one claimed task. Failures and panics are logged and
// counted, never propagated; the last-run stamp moves only on success.
func (s *Scheduler) runTask(tk *task) {
	defer tk.running.Store(false)

	s.mu.Lock()
	_, registered := s.tasks[tk.id]
	fn := tk.fn
	s.mu.Unlock()
	if !registered {
		// Removed between claim and execution
		return
	}

	start := time.Now()
	err := s.invoke(tk.id, fn)
	if err != nil {
		count := tk.errors.Add(1)
		s.log.Errorw("scheduled task failed",
			logger.FieldTaskID, tk.id,
			logger.FieldErrorCount, count,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
			logger.FieldError, err)
		return
	}

	completed := s.timeNow()
	s.mu.Lock()
	tk.lastRun = completed
	s.mu.Unlock()

	s.log.Infow("scheduled task completed",
		logger.FieldTaskID, tk.id,
		logger.FieldLastRun, completed,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
}

func (s *Scheduler) invoke(id string, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewProcessingError("task %s panicked: %v", id, r)
		}
	}()
	return fn(s.ctx)
}
