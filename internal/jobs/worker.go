package jobs

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gsarma/botkit/internal/bot"
)

const defaultInterval = time.Minute

// Task is one client the worker runs its job for.
type Task struct {
	User   string
	Client *bot.Client
	Args   []string
}

// Worker runs one job for a set of tasks on a fixed interval. A failing task
// backs off exponentially until it succeeds again.
type Worker struct {
	registry    *Registry
	job         string
	tasks       []Task
	interval    time.Duration
	concurrency int
	maxBackoff  time.Duration
	onResult    func(Task, Result)
	logger      *slog.Logger

	failures []int
	nextRun  []time.Time
	now      func() time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithInterval sets the time between runs. Default one minute; a
// non-positive value keeps the default.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.interval = d
	}
}

// WithConcurrency bounds how many tasks run at once. Default 5.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		w.concurrency = n
	}
}

// WithResultHandler receives every outcome. It may be called concurrently.
func WithResultHandler(fn func(Task, Result)) WorkerOption {
	return func(w *Worker) {
		w.onResult = fn
	}
}

// NewWorker creates a worker running job from registry for tasks.
func NewWorker(registry *Registry, job string, tasks []Task, opts ...WorkerOption) *Worker {
	w := &Worker{
		registry:    registry,
		job:         job,
		tasks:       tasks,
		interval:    defaultInterval,
		concurrency: 5,
		maxBackoff:  time.Hour,
		logger:      slog.Default(),
		failures:    make([]int, len(tasks)),
		nextRun:     make([]time.Time, len(tasks)),
		now:         time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	if w.interval <= 0 {
		w.interval = defaultInterval
	}
	return w
}

// Start runs every due task now and then once per interval.
// It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs the tasks that are due and waits for them.
func (w *Worker) RunOnce(ctx context.Context) {
	now := w.now()
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i := range w.tasks {
		if now.Before(w.nextRun[i]) {
			continue
		}
		g.Go(func() error {
			w.run(ctx, i, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) run(ctx context.Context, i int, now time.Time) {
	task := w.tasks[i]
	v, err := w.registry.Run(ctx, w.job, task.Client, task.Args)
	if err != nil {
		w.failures[i]++
		backoff := w.backoff(w.failures[i])
		w.nextRun[i] = now.Add(backoff)
		w.logger.Warn("worker: task failed", "job", w.job, "user", task.User,
			"attempt", w.failures[i], "retry_in", backoff, "error", err)
	} else {
		w.failures[i] = 0
		w.nextRun[i] = time.Time{}
	}
	if w.onResult != nil {
		w.onResult(task, Result{Value: v, Err: err})
	}
}

// backoff doubles the interval per consecutive failure.
func (w *Worker) backoff(failures int) time.Duration {
	d := w.interval
	for n := 0; n < failures && d < w.maxBackoff; n++ {
		d *= 2
	}
	return min(d, w.maxBackoff)
}
