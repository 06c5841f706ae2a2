package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gsarma/botkit/internal/bot"
)

// ErrUnknownJob is returned by Run for a name nothing registered.
var ErrUnknownJob = errors.New("unknown job")

// Job performs one operation with an authorized client.
type Job func(ctx context.Context, c *bot.Client, args []string) (any, error)

// Result is the single outcome of a job started with Start.
// Value is nil whenever Err is set.
type Result struct {
	Value any
	Err   error
}

// Registry holds the named jobs of one bot.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Register adds or replaces the job called name.
func (r *Registry) Register(name string, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[name] = job
}

// Names returns the registered job names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the named job and forwards its outcome unchanged.
func (r *Registry) Run(ctx context.Context, name string, c *bot.Client, args []string) (any, error) {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	start := time.Now()
	v, err := job(ctx, c, args)
	if err != nil {
		slog.Error("job failed", "job", name, "duration", time.Since(start), "error", err)
		return nil, err
	}
	slog.Info("job completed", "job", name, "duration", time.Since(start))
	return v, nil
}

// Start runs the named job in a goroutine. The channel yields exactly one
// Result and is then closed.
func (r *Registry) Start(ctx context.Context, name string, c *bot.Client, args []string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		v, err := r.Run(ctx, name, c, args)
		ch <- Result{Value: v, Err: err}
	}()
	return ch
}
