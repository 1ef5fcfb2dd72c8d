package schedule

import (
	"context"
	"sync/atomic"
	"time"
)

// TaskFunc is the body of a scheduled task. The context is cancelled
// when the scheduler stops; long-running tasks should honor it.
type TaskFunc func(ctx context.Context) error

// task is one registered periodic task. The running flag is atomic so
// dispatch can claim execution with a compare-and-swap; every other
// mutable field is guarded by the scheduler's lock.
type task struct {
	id       string
	fn       TaskFunc
	interval time.Duration
	addedAt  time.Time
	lastRun  time.Time // zero = never completed successfully
	running  atomic.Bool
	errors   atomic.Int64
}

// dueRef returns the reference point the interval is measured from:
// the last successful completion, or the registration time for a task
// that has never completed.
func (t *task) dueRef() time.Time {
	if t.lastRun.IsZero() {
		return t.addedAt
	}
	return t.lastRun
}

// TaskStatus is the reporting view of one task.
type TaskStatus struct {
	ID              string     `json:"id"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastRun         *time.Time `json:"last_run"`
	NextRun         *time.Time `json:"next_run"`
	Running         bool       `json:"running"`
	ErrorCount      int64      `json:"error_count"`
}

// Status is the reporting view of the whole scheduler.
type Status struct {
	Running bool         `json:"running"`
	Tasks   []TaskStatus `json:"tasks"`
}
