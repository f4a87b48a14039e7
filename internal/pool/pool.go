// Package pool executes independent tasks under a concurrency ceiling and
// reports per-task status plus aggregate batch statistics.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"arenalib/internal/async"
	"arenalib/internal/logging"
)

// maxCeiling bounds the concurrency ceiling regardless of configuration.
const maxCeiling = 20

// Task is one independent unit of batch work.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Status is a task's terminal state within the batch.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskReport records one task's outcome. A failed task carries enough
// identity to keep the rest of the batch coherent.
type TaskReport struct {
	ID       string    `json:"id"`
	Status   Status    `json:"status"`
	Err      string    `json:"error,omitempty"`
	Started  time.Time `json:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty"`
}

// Duration returns the task's wall-clock duration.
func (r TaskReport) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// BatchReport aggregates a batch run. Reports preserve input order, never
// completion order. AchievedParallelism is total busy time divided by wall
// clock and is used only for observability.
type BatchReport struct {
	Reports             []TaskReport  `json:"reports"`
	Succeeded           int           `json:"succeeded"`
	Failed              int           `json:"failed"`
	WallClock           time.Duration `json:"wall_clock"`
	AchievedParallelism float64       `json:"achieved_parallelism"`
}

func clampCeiling(ceiling int) int {
	if ceiling <= 0 {
		return 1
	}
	if ceiling > maxCeiling {
		return maxCeiling
	}
	return ceiling
}

// Run dispatches tasks so at most ceiling are in flight at once: launch up
// to the ceiling, await completions, backfill. A task's error or panic
// becomes a failed report entry; it never crashes the batch.
func Run(ctx context.Context, tasks []Task, ceiling int, logger logging.Logger) BatchReport {
	logger = logging.OrNop(logger)
	reports := make([]TaskReport, len(tasks))
	if len(tasks) == 0 {
		return BatchReport{Reports: reports}
	}

	sem := make(chan struct{}, clampCeiling(ceiling))
	var wg sync.WaitGroup
	var busyNanos atomic.Int64

	start := time.Now()
	for i, task := range tasks {
		// Not-yet-scheduled work fails with the cancellation reason; tasks
		// already in flight run to completion.
		if err := ctx.Err(); err != nil {
			reports[i] = TaskReport{ID: task.ID, Status: StatusFailed, Err: err.Error()}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			reports[i] = TaskReport{ID: task.ID, Status: StatusFailed, Err: ctx.Err().Error()}
			continue
		}

		wg.Add(1)
		async.Go(logger, "pool.task", func() {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i] = runTask(ctx, task)
			busyNanos.Add(int64(reports[i].Duration()))
		})
	}
	wg.Wait()

	wall := time.Since(start)
	report := BatchReport{Reports: reports, WallClock: wall}
	for _, r := range reports {
		if r.Status == StatusCompleted {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	if wall > 0 {
		report.AchievedParallelism = float64(busyNanos.Load()) / float64(wall)
	}

	logger.Debug("batch finished: %d ok, %d failed, wall=%s, parallelism=%.2f",
		report.Succeeded, report.Failed, wall, report.AchievedParallelism)
	return report
}

func runTask(ctx context.Context, task Task) TaskReport {
	report := TaskReport{ID: task.ID, Started: time.Now()}

	err := async.Safe("task "+task.ID, func() error {
		return task.Run(ctx)
	})

	report.Finished = time.Now()
	if err != nil {
		report.Status = StatusFailed
		report.Err = err.Error()
		return report
	}
	report.Status = StatusCompleted
	return report
}
