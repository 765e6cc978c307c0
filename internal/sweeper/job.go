// Package sweeper runs periodic maintenance jobs with a single-flight guard.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flexyframe/artbot/core/logger"
)

// ErrStopped is returned by RunNow after Stop.
var ErrStopped = errors.New("sweeper: job stopped")

// Task is one pass of a job. Returned attrs are added to the summary log line.
type Task func(ctx context.Context) ([]slog.Attr, error)

// Job runs a Task on a fixed interval. Overlapping runs (a tick and a manual
// RunNow) collapse into one through singleflight.
type Job struct {
	name     string
	interval time.Duration
	task     Task

	sf      singleflight.Group
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewJob builds a job; it does nothing until Start.
func NewJob(name string, interval time.Duration, task Task) *Job {
	return &Job{name: name, interval: interval, task: task}
}

// Name returns the job name.
func (j *Job) Name() string {
	return j.name
}

// Start launches the ticker loop. The first pass runs immediately.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil || j.stopped {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)

	logger.SWEEP.Info("job started",
		slog.String("event", "job.start"),
		slog.String("job", j.name),
		slog.Duration("interval", j.interval),
	)
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel = nil
	j.stopped = true
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.SWEEP.Info("job stopped",
		slog.String("event", "job.stop"),
		slog.String("job", j.name),
	)
}

func (j *Job) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	_, _ = j.RunNow(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = j.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow runs one pass, or joins the pass already in flight. shared reports
// whether the result came from a concurrent caller.
func (j *Job) RunNow(ctx context.Context) (shared bool, err error) {
	j.mu.Lock()
	stopped := j.stopped
	j.mu.Unlock()
	if stopped {
		return false, ErrStopped
	}

	_, err, shared = j.sf.Do(j.name, func() (any, error) {
		return nil, j.runOnce(ctx)
	})
	return shared, err
}

func (j *Job) runOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.SWEEP.Error("job panic",
				slog.String("event", "job.panic"),
				slog.String("job", j.name),
				slog.Any("panic", r),
			)
			err = errors.New("sweeper: job panicked")
		}
	}()

	attrs, err := j.task(ctx)
	base := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("job", j.name),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		base = append(base, slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, logger.SWEEP, level, "job.run", append(base, attrs...)...)
	return err
}
